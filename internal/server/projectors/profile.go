// Package projectors turns identity events into profile rows and outbound
// mail. Each projector is an events.Handler subscribed to the event bus.
package projectors

import (
	"context"

	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	"github.com/dmitrijs2005/accountkeeper/internal/metrics"
	"github.com/dmitrijs2005/accountkeeper/internal/server/events"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/profiles"
)

const ProfileProjectorName = "profile"

// ProfileProjector keeps the profile store in step with identity creation
// and deletion.
type ProfileProjector struct {
	repo profiles.Repository
	log  logging.Logger
}

func NewProfileProjector(repo profiles.Repository, log logging.Logger) *ProfileProjector {
	return &ProfileProjector{repo: repo, log: log.With("module", "profile-projector")}
}

func (p *ProfileProjector) OnMailVerifyRequested(context.Context, events.Meta, events.MailVerifyRequested) error {
	return nil
}

func (p *ProfileProjector) OnMailVerified(context.Context, events.Meta, events.MailVerified) error {
	return nil
}

func (p *ProfileProjector) OnUserCreated(ctx context.Context, meta events.Meta, e events.UserCreated) (err error) {
	defer projected(ProfileProjectorName, e.Kind(), &err)

	at := meta.OccurredAt.UTC()
	created, err := p.repo.CreateIfAbsent(ctx, &models.Profile{
		ID:          e.IdentityID,
		Username:    e.Username,
		DisplayName: e.DisplayName,
		Email:       e.Email,
		Role:        e.Role,
		Location:    e.Location,
		Occupation:  e.Occupation,
		CreatedAt:   at,
		UpdatedAt:   at,
	})
	if err != nil {
		p.log.Error(ctx, "create profile failed", "identity_id", e.IdentityID, "error", err)
		return err
	}
	if !created {
		p.log.Debug(ctx, "profile already exists", "identity_id", e.IdentityID, "event_id", meta.ID)
	}
	return nil
}

func (p *ProfileProjector) OnUserDeleted(ctx context.Context, meta events.Meta, e events.UserDeleted) (err error) {
	defer projected(ProfileProjectorName, e.Kind(), &err)

	deleted, err := p.repo.DeleteIfPresent(ctx, e.IdentityID)
	if err != nil {
		p.log.Error(ctx, "delete profile failed", "identity_id", e.IdentityID, "error", err)
		return err
	}
	if !deleted {
		p.log.Debug(ctx, "profile already gone", "identity_id", e.IdentityID, "event_id", meta.ID)
	}
	return nil
}

func projected(projector string, kind events.Kind, err *error) {
	metrics.ProjectedTotal.WithLabelValues(projector, string(kind), metrics.Result(*err)).Inc()
}
