// Package eventbus carries event envelopes from the outbox relay to the
// projectors. Delivery is at least once: a handler error makes the bus
// deliver the envelope again later.
package eventbus

import (
	"context"

	"github.com/dmitrijs2005/accountkeeper/internal/server/events"
)

// Publisher accepts envelopes for delivery.
type Publisher interface {
	Publish(ctx context.Context, env events.Envelope) error
}

// Bus is a Publisher that fans every envelope out to each named
// subscription.
type Bus interface {
	Publisher
	// Subscribe registers h under name. Must be called before Run.
	Subscribe(name string, h events.Handler)
	// Run delivers envelopes until ctx is cancelled.
	Run(ctx context.Context) error
	Close() error
}
