package profiles

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/dbx"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
)

type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]models.Profile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]models.Profile)}
}

type MemoryRepository struct {
	store *MemoryStore
	undo  *dbx.UndoLog
}

func NewMemoryRepository(store *MemoryStore, undo *dbx.UndoLog) *MemoryRepository {
	return &MemoryRepository{store: store, undo: undo}
}

func (r *MemoryRepository) CreateIfAbsent(_ context.Context, p *models.Profile) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.byID[p.ID]; ok {
		return false, nil
	}
	r.store.byID[p.ID] = clone(*p)
	id := p.ID
	r.undo.Record(func() { r.store.remove(id) })
	return true, nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*models.Profile, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	p, ok := r.store.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := clone(p)
	return &c, nil
}

func (r *MemoryRepository) Update(_ context.Context, p *models.Profile) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	prev, ok := r.store.byID[p.ID]
	if !ok {
		return common.ErrorNotFound
	}
	next := prev
	next.DisplayName = p.DisplayName
	next.Location = p.Location
	next.Occupation = p.Occupation
	next.ProfilePicturePath = p.ProfilePicturePath
	next.UpdatedAt = p.UpdatedAt
	r.store.byID[p.ID] = clone(next)
	r.undo.Record(func() { r.store.put(prev) })
	return nil
}

func (r *MemoryRepository) DeleteIfPresent(_ context.Context, id string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	prev, ok := r.store.byID[id]
	if !ok {
		return false, nil
	}
	delete(r.store.byID, id)
	r.undo.Record(func() { r.store.put(prev) })
	return true, nil
}

func (s *MemoryStore) put(p models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[p.ID] = p
}

func (s *MemoryStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
}

func clone(p models.Profile) models.Profile {
	p.Location = copyString(p.Location)
	p.Occupation = copyString(p.Occupation)
	p.ProfilePicturePath = copyString(p.ProfilePicturePath)
	return p
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
