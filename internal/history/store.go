// Package history is the durable, append-only record of closed polls.
package history

import (
	"context"
	"time"

	"github.com/classpulse/backend/internal/models"
)

// Record is the immutable projection of a closed poll.
type Record struct {
	ID               string          `json:"id"`
	Question         string          `json:"question"`
	Options          []models.Option `json:"options"`
	CreatorID        string          `json:"creatorId"`
	StartedAt        time.Time       `json:"startTime"`
	EndedAt          time.Time       `json:"endedAt"`
	TimeLimitSeconds int             `json:"timeLimit"`
}

// Store persists closed polls. Append is called exactly once per closed poll;
// a failed append is reported upward but never retried, and the closed poll is
// discarded either way.
type Store interface {
	Append(ctx context.Context, rec *Record) (string, error)
	// QueryByCreator returns up to limit records for the creator, newest first.
	QueryByCreator(ctx context.Context, creatorID string, limit int) ([]Record, error)
}
