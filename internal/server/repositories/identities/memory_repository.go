package identities

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/dbx"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
)

// MemoryStore holds identities for the in-memory repository. Several
// repository views, each with its own undo log, may share one store.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]models.Identity
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]models.Identity)}
}

// MemoryRepository is a Repository over a MemoryStore. Writes are recorded
// into undo when it is non-nil.
type MemoryRepository struct {
	store *MemoryStore
	undo  *dbx.UndoLog
}

func NewMemoryRepository(store *MemoryStore, undo *dbx.UndoLog) *MemoryRepository {
	return &MemoryRepository{store: store, undo: undo}
}

func (r *MemoryRepository) Create(_ context.Context, i *models.Identity) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.byID[i.ID]; ok {
		return common.ErrAlreadyExists
	}
	for _, other := range r.store.byID {
		if other.Email == i.Email {
			return common.ErrAlreadyExists
		}
	}

	r.store.byID[i.ID] = clone(*i)
	id := i.ID
	r.undo.Record(func() { r.store.remove(id) })
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*models.Identity, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	i, ok := r.store.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := clone(i)
	return &c, nil
}

func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*models.Identity, error) {
	return r.find(func(i *models.Identity) bool { return i.Email == email })
}

func (r *MemoryRepository) GetByRefreshToken(_ context.Context, token string) (*models.Identity, error) {
	return r.find(func(i *models.Identity) bool { return i.RefreshToken == token })
}

func (r *MemoryRepository) find(match func(*models.Identity) bool) (*models.Identity, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, i := range r.store.byID {
		if match(&i) {
			c := clone(i)
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *MemoryRepository) Replace(_ context.Context, i *models.Identity) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	prev, ok := r.store.byID[i.ID]
	if !ok || prev.Version != i.Version {
		return common.ErrVersionConflict
	}
	for id, other := range r.store.byID {
		if id != i.ID && other.Email == i.Email {
			return common.ErrAlreadyExists
		}
	}

	next := clone(*i)
	next.Version++
	r.store.byID[i.ID] = next
	i.Version = next.Version
	r.undo.Record(func() { r.store.put(prev) })
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	prev, ok := r.store.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	delete(r.store.byID, id)
	r.undo.Record(func() { r.store.put(prev) })
	return nil
}

func (s *MemoryStore) put(i models.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[i.ID] = i
}

func (s *MemoryStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
}

func clone(i models.Identity) models.Identity {
	if i.EmailVerificationToken != nil {
		t := *i.EmailVerificationToken
		i.EmailVerificationToken = &t
	}
	if i.EmailVerifiedAt != nil {
		t := *i.EmailVerifiedAt
		i.EmailVerifiedAt = &t
	}
	return i
}
