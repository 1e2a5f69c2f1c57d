package chat

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/classpulse/backend/internal/models"
)

// MemoryStore is an in-process chat log for tests and databaseless dev runs.
type MemoryStore struct {
	mu       sync.Mutex
	messages []models.ChatMessage
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory chat store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save appends a message and assigns it an id.
func (s *MemoryStore) Save(_ context.Context, msg *models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.ID = uuid.New().String()
	s.messages = append(s.messages, *msg)
	return nil
}

// Recent returns the newest messages, oldest first.
func (s *MemoryStore) Recent(_ context.Context, limit int) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := len(s.messages) - limit
	if start < 0 {
		start = 0
	}
	return append([]models.ChatMessage(nil), s.messages[start:]...), nil
}
