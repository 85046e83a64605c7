package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/dbx"
	"github.com/dmitrijs2005/accountkeeper/internal/server/models"
)

// MemoryStore keeps records in append order.
type MemoryStore struct {
	mu      sync.Mutex
	records []*models.OutboxRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

type MemoryRepository struct {
	store *MemoryStore
	undo  *dbx.UndoLog
}

func NewMemoryRepository(store *MemoryStore, undo *dbx.UndoLog) *MemoryRepository {
	return &MemoryRepository{store: store, undo: undo}
}

func (r *MemoryRepository) Append(_ context.Context, rec *models.OutboxRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	c := *rec
	c.Payload = append([]byte(nil), rec.Payload...)
	r.store.records = append(r.store.records, &c)
	r.undo.Record(func() { r.store.drop(c.ID) })
	return nil
}

func (r *MemoryRepository) Pending(_ context.Context, limit int) ([]models.OutboxRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var out []models.OutboxRecord
	for _, rec := range r.store.records {
		if len(out) >= limit {
			break
		}
		if rec.DispatchedAt == nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *MemoryRepository) MarkDispatched(_ context.Context, id string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	rec := r.store.find(id)
	if rec == nil {
		return common.ErrorNotFound
	}
	rec.DispatchedAt = &at
	return nil
}

func (r *MemoryRepository) MarkFailed(_ context.Context, id string, reason string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	rec := r.store.find(id)
	if rec == nil {
		return common.ErrorNotFound
	}
	rec.Attempts++
	rec.LastError = &reason
	return nil
}

// All returns a copy of every record, dispatched or not.
func (s *MemoryStore) All() []models.OutboxRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.OutboxRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, *rec)
	}
	return out
}

func (s *MemoryStore) find(id string) *models.OutboxRecord {
	for _, rec := range s.records {
		if rec.ID == id {
			return rec
		}
	}
	return nil
}

func (s *MemoryStore) drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for n, rec := range s.records {
		if rec.ID == id {
			s.records = append(s.records[:n], s.records[n+1:]...)
			return
		}
	}
}
