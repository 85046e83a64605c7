// Package mailer renders and sends the account emails.
package mailer

import (
	"context"

	"github.com/dmitrijs2005/accountkeeper/internal/logging"
)

// Message is a rendered HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a message. Errors are returned so the caller can retry.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of sending them. Used when no
// SMTP host is configured.
type LogSender struct {
	log logging.Logger
}

func NewLogSender(log logging.Logger) *LogSender {
	return &LogSender{log: log.With("module", "mailer")}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.log.Info(ctx, "mail not sent, no SMTP transport configured", "to", msg.To, "subject", msg.Subject, "body", msg.HTML)
	return nil
}
