// Package identities stores authentication identities.
package identities

import (
	"context"

	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
)

// Repository persists identities. Lookups return common.ErrorNotFound when
// nothing matches.
type Repository interface {
	// Create inserts a new identity. A duplicate id or email yields
	// common.ErrAlreadyExists.
	Create(ctx context.Context, identity *models.Identity) error
	Get(ctx context.Context, id string) (*models.Identity, error)
	GetByEmail(ctx context.Context, email string) (*models.Identity, error)
	GetByRefreshToken(ctx context.Context, token string) (*models.Identity, error)
	// Replace overwrites the stored identity only if its version still equals
	// identity.Version, and bumps the version on success. Otherwise it returns
	// common.ErrVersionConflict.
	Replace(ctx context.Context, identity *models.Identity) error
	Delete(ctx context.Context, id string) error
}
