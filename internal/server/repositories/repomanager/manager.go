// Package repomanager groups the identity, profile and outbox repositories
// behind one handle and runs units of work across them.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/identities"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/outbox"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/profiles"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Identities() identities.Repository
	Profiles() profiles.Repository
	Outbox() outbox.Repository
	// WithTx runs fn as one unit of work. Repositories obtained from the
	// manager passed to fn take part in it; fn's error undoes every write.
	WithTx(ctx context.Context, fn func(ctx context.Context, m RepositoryManager) error) error
	Close() error
}
