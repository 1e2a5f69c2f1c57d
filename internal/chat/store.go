// Package chat persists the classroom chat log. Chat has no invariants beyond
// append and broadcast; the store exists so history survives reconnects.
package chat

import (
	"context"

	"github.com/classpulse/backend/internal/models"
)

// Store is an append-only chat message log.
type Store interface {
	Save(ctx context.Context, msg *models.ChatMessage) error
	// Recent returns up to limit of the newest messages, oldest first, ready
	// to render.
	Recent(ctx context.Context, limit int) ([]models.ChatMessage, error)
}
