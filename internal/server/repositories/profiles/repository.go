// Package profiles stores the public profile projection.
package profiles

import (
	"context"

	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
)

type Repository interface {
	// CreateIfAbsent inserts p unless a profile with the same id exists and
	// reports whether it inserted.
	CreateIfAbsent(ctx context.Context, p *models.Profile) (bool, error)
	Get(ctx context.Context, id string) (*models.Profile, error)
	// Update overwrites the mutable fields of an existing profile.
	Update(ctx context.Context, p *models.Profile) error
	// DeleteIfPresent removes the profile and reports whether it existed.
	DeleteIfPresent(ctx context.Context, id string) (bool, error)
}
