package remote

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claude/liftlog/internal/models"
)

func doc(t *testing.T, owner string, body any) models.Document {
	t.Helper()
	d, err := models.NewDocument("", owner, body)
	require.NoError(t, err)
	return d
}

func stepClock(start time.Time) func() time.Time {
	cur := start
	return func() time.Time {
		cur = cur.Add(time.Second)
		return cur
	}
}

// TestMemoryUpsertPreservesCreatedAt verifies replacements keep the first
// creation time and bump updatedAt.
func TestMemoryUpsertPreservesCreatedAt(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.now = stepClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, m.Upsert(ctx, "c", "a", doc(t, "u1", map[string]int{"v": 1})))
	require.NoError(t, m.Upsert(ctx, "c", "a", doc(t, "u1", map[string]int{"v": 2})))

	docs, err := m.QueryByOwner(ctx, "c", "u1", "createdAt", Desc)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0].ID)
	assert.True(t, docs[0].UpdatedAt.After(docs[0].CreatedAt))
	assert.JSONEq(t, `{"v":2}`, string(docs[0].Body))
	assert.Equal(t, 1, m.Len("c"))
	assert.Equal(t, 2, m.Writes())
}

func TestMemoryOwnership(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Upsert(ctx, "c", "a", doc(t, "u1", 1)))

	err := m.Upsert(ctx, "c", "a", doc(t, "u2", 1))
	assert.ErrorIs(t, err, ErrPermission)

	docs, err := m.QueryByOwner(ctx, "c", "u2", "", Desc)
	require.NoError(t, err)
	assert.Empty(t, docs)

	assert.ErrorIs(t, m.Upsert(ctx, "c", "b", doc(t, "", 1)), ErrInvalid)
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Upsert(ctx, "c", "a", doc(t, "u1", 1)))
	require.NoError(t, m.Delete(ctx, "c", "a"))
	assert.ErrorIs(t, m.Delete(ctx, "c", "a"), ErrNotFound)
}

func TestMemoryCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewMemory()
	err := m.Upsert(ctx, "c", "a", doc(t, "u1", 1))
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestMemorySubscribe(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := m.Subscribe(ctx, "c", "u1")
	require.NoError(t, err)
	assert.Empty(t, <-ch)

	require.NoError(t, m.Upsert(context.Background(), "c", "a", doc(t, "u1", 1)))
	require.NoError(t, m.Upsert(context.Background(), "c", "x", doc(t, "u2", 1)))

	snap := <-ch
	require.Len(t, snap, 1)
	assert.Equal(t, "a", snap[0].ID)

	cancel()
	for range ch {
	}
}

func TestSortDocumentsByBodyField(t *testing.T) {
	mk := func(id, date string, n float64) models.Document {
		body, _ := json.Marshal(map[string]any{"date": date, "n": n})
		return models.Document{ID: id, Body: body}
	}
	docs := []models.Document{
		mk("a", "2025-01-02T00:00:00Z", 3),
		mk("b", "2025-01-03T00:00:00+09:00", 1),
		mk("c", "2025-01-01T00:00:00Z", 2),
	}

	SortDocuments(docs, "date", Desc)
	// b is 2025-01-02T15:00Z once the offset is applied.
	assert.Equal(t, []string{"b", "a", "c"}, ids(docs))

	SortDocuments(docs, "n", Asc)
	assert.Equal(t, []string{"b", "c", "a"}, ids(docs))

	SortDocuments(docs, "missing", Asc)
	assert.Equal(t, []string{"b", "c", "a"}, ids(docs), "sort is stable on equal keys")
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, Desc, d)
	d, err = ParseDirection("ASC")
	require.NoError(t, err)
	assert.Equal(t, Asc, d)
	_, err = ParseDirection("sideways")
	assert.Error(t, err)
}

func ids(docs []models.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}
