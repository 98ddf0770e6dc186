package archive

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ethanbaker/avatar-client/pkg/evaluation"
	"github.com/ethanbaker/avatar-client/pkg/transcript"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(room string, messages ...string) *Record {
	record := NewRecord(room, "user-abc")
	for _, m := range messages {
		record.Transcript = append(record.Transcript, transcript.Entry{Role: "agent", Message: m})
	}
	record.Outcome = evaluation.Report(&evaluation.Result{Text: "ok"}, nil)
	record.EndedAt = time.Now()
	return record
}

func TestMemoryStoreSaveGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	record := newRecord("room-1", "hello")
	require.NoError(t, store.Save(ctx, record))
	assert.False(t, record.CreatedAt.IsZero())

	got, err := store.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "room-1", got.Room)
	assert.Equal(t, evaluation.OutcomeReport, got.Outcome.Kind)

	// Mutating the returned copy does not touch the stored record
	got.Transcript[0].Message = "changed"
	again, err := store.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", again.Transcript[0].Message)

	assert.Error(t, store.Save(ctx, record), "duplicate ids are rejected")
	assert.Error(t, store.Save(ctx, nil))
}

func TestMemoryStoreGeneratesID(t *testing.T) {
	store := NewMemoryStore()
	record := &Record{Room: "room-x"}

	require.NoError(t, store.Save(context.Background(), record))
	assert.NotEqual(t, uuid.Nil, record.ID)
}

func TestMemoryStoreList(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for _, room := range []string{"room-1", "room-2", "room-3"} {
		require.NoError(t, store.Save(ctx, newRecord(room)))
	}

	records, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "room-3", records[0].Room)
	assert.Equal(t, "room-1", records[2].Room)

	records, err = store.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestMemoryStoreSearch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Save(ctx, newRecord("room-alpha", "We discussed the claim")))
	require.NoError(t, store.Save(ctx, newRecord("room-beta", "Just saying hi")))

	records, err := store.Search(ctx, "CLAIM")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "room-alpha", records[0].Room)

	records, err = store.Search(ctx, "room-")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	record := newRecord("room-1")
	require.NoError(t, store.Save(ctx, record))
	require.NoError(t, store.Delete(ctx, record.ID))

	_, err := store.Get(ctx, record.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, record.ID), ErrNotFound)
}

func TestSummarize(t *testing.T) {
	record := newRecord("room-1", "a", "b")
	summary := record.Summarize()

	assert.Equal(t, record.ID, summary.ID)
	assert.Equal(t, 2, summary.Messages)
	assert.Equal(t, evaluation.OutcomeReport, summary.Kind)
}

func TestDatabaseConfigDSN(t *testing.T) {
	cfg := DatabaseConfig{Username: "root", Password: "pw", Host: "localhost", Database: "avatar"}

	assert.True(t, cfg.Enabled())
	dsn := cfg.DSN()
	assert.True(t, strings.HasPrefix(dsn, "root:pw@tcp(localhost:3306)/avatar?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
	assert.False(t, DatabaseConfig{}.Enabled())
}

func TestLikePatternEscapesWildcards(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"claim", `%claim%`},
		{"100%", `%100\%%`},
		{"room_1", `%room\_1%`},
		{`C:\path`, `%C:\\path%`},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, likePattern(tt.query))
		})
	}
}

func TestMemoryStoreSearchIsLiteral(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Save(ctx, newRecord("room-1", "Coverage is 100% now")))
	require.NoError(t, store.Save(ctx, newRecord("room-2", "Nothing to see")))

	records, err := store.Search(ctx, "%")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "room-1", records[0].Room)

	records, err = store.Search(ctx, "room_")
	require.NoError(t, err)
	assert.Empty(t, records)
}
