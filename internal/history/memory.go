package history

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/classpulse/backend/internal/models"
)

// MemoryStore is an in-process Store used by tests and databaseless dev runs.
// Records do not survive a restart.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append stores a copy of the record and assigns it an id.
func (s *MemoryStore) Append(_ context.Context, rec *Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = uuid.New().String()
	stored := *rec
	stored.Options = append([]models.Option(nil), rec.Options...)
	s.records = append(s.records, stored)
	return rec.ID, nil
}

// QueryByCreator returns the creator's records, newest first.
func (s *MemoryStore) QueryByCreator(_ context.Context, creatorID string, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var list []Record
	for i := len(s.records) - 1; i >= 0 && len(list) < limit; i-- {
		if s.records[i].CreatorID == creatorID {
			rec := s.records[i]
			rec.Options = append([]models.Option(nil), s.records[i].Options...)
			list = append(list, rec)
		}
	}
	return list, nil
}
