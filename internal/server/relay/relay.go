// Package relay moves committed outbox records onto the event bus.
package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	"github.com/dmitrijs2005/accountkeeper/internal/metrics"
	"github.com/dmitrijs2005/accountkeeper/internal/server/eventbus"
	"github.com/dmitrijs2005/accountkeeper/internal/server/events"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/outbox"
)

type Relay struct {
	outbox       outbox.Repository
	publisher    eventbus.Publisher
	log          logging.Logger
	pollInterval time.Duration
	batchSize    int
	now          func() time.Time
}

func New(repo outbox.Repository, publisher eventbus.Publisher, log logging.Logger, pollInterval time.Duration, batchSize int) *Relay {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{
		outbox:       repo,
		publisher:    publisher,
		log:          log.With("module", "relay"),
		pollInterval: pollInterval,
		batchSize:    batchSize,
		now:          time.Now,
	}
}

// Run drains the outbox every poll interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		if _, err := r.DrainOnce(ctx); err != nil {
			r.log.Warn(ctx, "outbox drain failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// DrainOnce publishes up to one batch of pending records in order and
// returns how many were dispatched. It stops at the first publish failure so
// later records of the same identity are not delivered ahead of it.
func (r *Relay) DrainOnce(ctx context.Context) (int, error) {
	pending, err := r.outbox.Pending(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("load pending: %w", err)
	}

	sent := 0
	for _, rec := range pending {
		env := events.Envelope{
			ID:         rec.ID,
			Kind:       events.Kind(rec.EventKind),
			IdentityID: rec.IdentityID,
			OccurredAt: rec.OccurredAt.UTC(),
			Payload:    rec.Payload,
		}

		// Handlers of the in-memory bus run on this context.
		ectx := logging.ContextWith(ctx, "event_id", rec.ID, "event_kind", rec.EventKind)

		if err := r.publisher.Publish(ectx, env); err != nil {
			metrics.OutboxDispatchedTotal.WithLabelValues(rec.EventKind, metrics.Result(err)).Inc()
			if markErr := r.outbox.MarkFailed(ectx, rec.ID, err.Error()); markErr != nil {
				r.log.Error(ectx, "failed to record publish attempt", "error", markErr)
			}
			return sent, fmt.Errorf("publish %s %s: %w", rec.EventKind, rec.ID, err)
		}

		if err := r.outbox.MarkDispatched(ectx, rec.ID, r.now()); err != nil {
			return sent, fmt.Errorf("mark dispatched %s: %w", rec.ID, err)
		}
		metrics.OutboxDispatchedTotal.WithLabelValues(rec.EventKind, metrics.Result(nil)).Inc()
		sent++
	}

	if sent > 0 {
		r.log.Debug(ctx, "outbox drained", "count", sent)
	}
	return sent, nil
}
