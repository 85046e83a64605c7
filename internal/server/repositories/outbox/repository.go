// Package outbox stores events awaiting publication. Records are appended in
// the same unit of work as the state change they describe.
package outbox

import (
	"context"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
)

type Repository interface {
	Append(ctx context.Context, rec *models.OutboxRecord) error
	// Pending returns up to limit undispatched records, oldest first.
	Pending(ctx context.Context, limit int) ([]models.OutboxRecord, error)
	MarkDispatched(ctx context.Context, id string, at time.Time) error
	// MarkFailed increments the attempt counter and stores reason.
	MarkFailed(ctx context.Context, id string, reason string) error
}
