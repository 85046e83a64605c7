// Package metadata is a small key/value table in the CLI's local database.
// The session token pair lives here between runs.
package metadata

import (
	"context"
)

// Repository stores opaque values by key.
type Repository interface {
	// GetMany returns the stored values for keys. Missing keys are absent
	// from the result.
	GetMany(ctx context.Context, keys ...string) (map[string][]byte, error)
	// SetMany upserts every pair. Run it inside a transaction to make the
	// write atomic.
	SetMany(ctx context.Context, values map[string][]byte) error
	Clear(ctx context.Context) error
}
