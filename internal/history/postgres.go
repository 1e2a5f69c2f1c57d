package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classpulse/backend/internal/models"
)

// PostgresStore persists closed polls in the polls table, with options stored
// as a JSONB array so option order and final tallies survive round-trips.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a Postgres-backed history store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Append inserts a closed-poll record and returns its generated id.
func (s *PostgresStore) Append(ctx context.Context, rec *Record) (string, error) {
	opts, err := json.Marshal(rec.Options)
	if err != nil {
		return "", fmt.Errorf("marshal options: %w", err)
	}
	const query = `INSERT INTO polls (id, question, options, creator_id, status, started_at, ended_at, time_limit_seconds)
		VALUES (gen_random_uuid(), $1, $2, $3, 'closed', $4, $5, $6)
		RETURNING id`
	var id string
	err = s.pool.QueryRow(ctx, query, rec.Question, opts, rec.CreatorID, rec.StartedAt, rec.EndedAt, rec.TimeLimitSeconds).
		Scan(&id)
	if err != nil {
		return "", err
	}
	rec.ID = id
	return id, nil
}

// QueryByCreator returns the creator's closed polls, newest first.
func (s *PostgresStore) QueryByCreator(ctx context.Context, creatorID string, limit int) ([]Record, error) {
	const query = `SELECT id, question, options, creator_id, started_at, ended_at, time_limit_seconds
		FROM polls WHERE creator_id = $1 ORDER BY started_at DESC LIMIT $2`
	rows, err := s.pool.Query(ctx, query, creatorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Record
	for rows.Next() {
		var rec Record
		var opts []byte
		if err := rows.Scan(&rec.ID, &rec.Question, &opts, &rec.CreatorID, &rec.StartedAt, &rec.EndedAt, &rec.TimeLimitSeconds); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(opts, &rec.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options: %w", err)
		}
		if rec.Options == nil {
			rec.Options = []models.Option{}
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}
