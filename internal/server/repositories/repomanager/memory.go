package repomanager

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/accountkeeper/internal/dbx"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/identities"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/outbox"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/profiles"
)

// memoryStores is shared by a MemoryRepositoryManager and the per-unit-of-work
// views it hands to WithTx callbacks.
type memoryStores struct {
	txMu       sync.Mutex
	identities *identities.MemoryStore
	profiles   *profiles.MemoryStore
	outbox     *outbox.MemoryStore
}

// MemoryRepositoryManager keeps everything in process memory. Units of work
// are serialized and undone through an undo log on error; reads never wait
// for a unit of work, so concurrent writers still race on identity versions
// the same way they do against Postgres.
type MemoryRepositoryManager struct {
	stores *memoryStores
	undo   *dbx.UndoLog
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{stores: &memoryStores{
		identities: identities.NewMemoryStore(),
		profiles:   profiles.NewMemoryStore(),
		outbox:     outbox.NewMemoryStore(),
	}}
}

func (m *MemoryRepositoryManager) Identities() identities.Repository {
	return identities.NewMemoryRepository(m.stores.identities, m.undo)
}

func (m *MemoryRepositoryManager) Profiles() profiles.Repository {
	return profiles.NewMemoryRepository(m.stores.profiles, m.undo)
}

func (m *MemoryRepositoryManager) Outbox() outbox.Repository {
	return outbox.NewMemoryRepository(m.stores.outbox, m.undo)
}

// OutboxStore exposes the raw outbox for inspection in tests.
func (m *MemoryRepositoryManager) OutboxStore() *outbox.MemoryStore {
	return m.stores.outbox
}

func (m *MemoryRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, m RepositoryManager) error) (err error) {
	if m.undo != nil {
		return fn(ctx, m)
	}

	m.stores.txMu.Lock()
	defer m.stores.txMu.Unlock()

	tx := &MemoryRepositoryManager{stores: m.stores, undo: &dbx.UndoLog{}}
	defer func() {
		if p := recover(); p != nil {
			tx.undo.Rollback()
			panic(p)
		}
		if err != nil {
			tx.undo.Rollback()
		}
	}()

	return fn(ctx, tx)
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context) error {
	return nil
}

func (m *MemoryRepositoryManager) Close() error {
	return nil
}
