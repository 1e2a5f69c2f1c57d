package chat

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classpulse/backend/internal/models"
)

// PostgresStore persists chat messages in the chat_messages table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a Postgres-backed chat store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Save inserts a chat message and fills in its generated id.
func (s *PostgresStore) Save(ctx context.Context, msg *models.ChatMessage) error {
	const query = `INSERT INTO chat_messages (id, text, sender_name, sender_id, sender_role, sent_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		RETURNING id`
	return s.pool.QueryRow(ctx, query, msg.Text, msg.SenderName, msg.SenderID, string(msg.SenderRole), msg.Timestamp).
		Scan(&msg.ID)
}

// Recent returns the newest messages, oldest first.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	const query = `SELECT id, text, sender_name, sender_id, sender_role, sent_at
		FROM chat_messages ORDER BY sent_at DESC LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.ChatMessage
	for rows.Next() {
		var msg models.ChatMessage
		var role string
		if err := rows.Scan(&msg.ID, &msg.Text, &msg.SenderName, &msg.SenderID, &role, &msg.Timestamp); err != nil {
			return nil, err
		}
		msg.SenderRole = models.Role(role)
		list = append(list, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// reverse into chronological order
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	return list, nil
}
