package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classpulse/backend/internal/models"
)

func record(question, creatorID string, startedAt time.Time) *Record {
	return &Record{
		Question:         question,
		Options:          []models.Option{{Text: "Red", Votes: 1}, {Text: "Blue", Votes: 0}},
		CreatorID:        creatorID,
		StartedAt:        startedAt,
		EndedAt:          startedAt.Add(30 * time.Second),
		TimeLimitSeconds: 30,
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	rec := record("Pick a color", "teacher-1", start)
	id, err := store.Append(ctx, rec)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, rec.ID)

	got, err := store.QueryByCreator(ctx, "teacher-1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Pick a color", got[0].Question)
	assert.Equal(t, []models.Option{{Text: "Red", Votes: 1}, {Text: "Blue", Votes: 0}}, got[0].Options)
	assert.Equal(t, start, got[0].StartedAt)
	assert.Equal(t, 30, got[0].TimeLimitSeconds)
}

func TestMemoryStoreQueryIsNewestFirstAndBounded(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	for i, q := range []string{"first", "second", "third"} {
		_, err := store.Append(ctx, record(q, "teacher-1", start.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}
	_, err := store.Append(ctx, record("other", "teacher-2", start))
	require.NoError(t, err)

	got, err := store.QueryByCreator(ctx, "teacher-1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "third", got[0].Question)
	assert.Equal(t, "second", got[1].Question)
}

func TestMemoryStoreIsolatesStoredRecords(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec := record("Pick a color", "teacher-1", time.Now())
	_, err := store.Append(ctx, rec)
	require.NoError(t, err)
	rec.Options[0].Votes = 99

	got, err := store.QueryByCreator(ctx, "teacher-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, got[0].Options[0].Votes)
}
