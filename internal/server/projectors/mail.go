package projectors

import (
	"context"
	"fmt"
	"net/url"

	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	"github.com/dmitrijs2005/accountkeeper/internal/server/events"
	"github.com/dmitrijs2005/accountkeeper/internal/server/mailer"
)

const MailProjectorName = "mail"

// MailProjector sends the verification and welcome mails. With a Deduper it
// skips envelopes it has already sent for; without one every delivery sends.
type MailProjector struct {
	sender          mailer.Sender
	dedupe          Deduper
	verificationURL string
	log             logging.Logger
}

func NewMailProjector(sender mailer.Sender, dedupe Deduper, verificationURL string, log logging.Logger) *MailProjector {
	return &MailProjector{
		sender:          sender,
		dedupe:          dedupe,
		verificationURL: verificationURL,
		log:             log.With("module", "mail-projector"),
	}
}

func (p *MailProjector) OnMailVerifyRequested(ctx context.Context, meta events.Meta, e events.MailVerifyRequested) (err error) {
	defer projected(MailProjectorName, e.Kind(), &err)

	link, err := VerificationLink(p.verificationURL, e)
	if err != nil {
		return err
	}
	msg, err := mailer.Verification(e.Email, e.DisplayName, link)
	if err != nil {
		return err
	}
	return p.send(ctx, meta, e.IdentityID, msg)
}

func (p *MailProjector) OnMailVerified(ctx context.Context, meta events.Meta, e events.MailVerified) (err error) {
	defer projected(MailProjectorName, e.Kind(), &err)

	msg, err := mailer.Welcome(e.Email, e.Username)
	if err != nil {
		return err
	}
	return p.send(ctx, meta, e.IdentityID, msg)
}

func (p *MailProjector) OnUserCreated(context.Context, events.Meta, events.UserCreated) error {
	return nil
}

func (p *MailProjector) OnUserDeleted(context.Context, events.Meta, events.UserDeleted) error {
	return nil
}

func (p *MailProjector) send(ctx context.Context, meta events.Meta, identityID string, msg mailer.Message) error {
	log := p.log.With("identity_id", identityID, "event_id", meta.ID)

	claimed := false
	if p.dedupe != nil && meta.ID != "" {
		fresh, err := p.dedupe.Claim(ctx, meta.ID)
		switch {
		case err != nil:
			log.Warn(ctx, "dedupe lookup failed, sending anyway", "error", err)
		case !fresh:
			log.Debug(ctx, "mail already sent for event")
			return nil
		default:
			claimed = true
		}
	}

	if err := p.sender.Send(ctx, msg); err != nil {
		log.Error(ctx, "send mail failed", "subject", msg.Subject, "error", err)
		if claimed {
			if rerr := p.dedupe.Release(ctx, meta.ID); rerr != nil {
				log.Warn(ctx, "release dedupe claim failed", "error", rerr)
			}
		}
		return fmt.Errorf("send %q: %w", msg.Subject, err)
	}

	log.Info(ctx, "mail sent", "subject", msg.Subject)
	return nil
}

// VerificationLink builds the link a user follows to verify their address.
// Absent location and occupation are sent as empty values.
func VerificationLink(base string, e events.MailVerifyRequested) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("verification url: %w", err)
	}

	q := u.Query()
	q.Set("token", e.VerificationToken)
	q.Set("userId", e.IdentityID)
	q.Set("email", e.Email)
	q.Set("username", e.Username)
	q.Set("displayname", e.DisplayName)
	q.Set("location", deref(e.Location))
	q.Set("occupation", deref(e.Occupation))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
