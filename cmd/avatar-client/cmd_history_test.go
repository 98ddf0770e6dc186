package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ethanbaker/avatar-client/internal/archive"
	"github.com/ethanbaker/avatar-client/pkg/evaluation"
	"github.com/ethanbaker/avatar-client/pkg/transcript"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedArchive(t *testing.T) (*archive.MemoryStore, *archive.Record, *archive.Record) {
	t.Helper()
	store := archive.NewMemoryStore()

	first := archive.NewRecord("room-one", "user-aaa")
	first.Transcript = []transcript.Entry{{Role: "user", Message: "I like cooking"}}
	first.Outcome = evaluation.Report(&evaluation.Result{Text: "Good pacing."}, nil)
	first.EndedAt = time.Now().Add(-time.Hour)
	first.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, store.Save(context.Background(), first))

	second := archive.NewRecord("room-two", "user-bbb")
	second.Outcome = evaluation.NoTranscript()
	second.CreatedAt = time.Now()
	require.NoError(t, store.Save(context.Background(), second))

	return store, first, second
}

func TestHistoryList(t *testing.T) {
	store, first, second := seedArchive(t)
	useArchive(t, store)

	out, err := runCLI(t, "", "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, first.ID.String())
	assert.Contains(t, out, second.ID.String())
	assert.Contains(t, out, "no transcript")

	out, err = runCLI(t, "", "history", "list", "--query", "cooking", "--json")
	require.NoError(t, err)

	var summaries []archive.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, first.ID, summaries[0].ID)
	assert.Equal(t, 1, summaries[0].Messages)
}

func TestHistoryListEmpty(t *testing.T) {
	useArchive(t, archive.NewMemoryStore())

	out, err := runCLI(t, "", "history", "list")
	require.NoError(t, err)
	assert.Equal(t, "No sessions found\n", out)
}

func TestHistoryShow(t *testing.T) {
	store, first, _ := seedArchive(t)
	useArchive(t, store)

	out, err := runCLI(t, "", "history", "show", first.ID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "Good pacing.")
	assert.Contains(t, out, "user: I like cooking")

	_, err = runCLI(t, "", "history", "show", uuid.NewString())
	assert.ErrorIs(t, err, archive.ErrNotFound)

	_, err = runCLI(t, "", "history", "show", "not-a-uuid")
	assert.ErrorContains(t, err, "invalid record id")
}

func TestHistoryDelete(t *testing.T) {
	t.Run("declined", func(t *testing.T) {
		store, first, _ := seedArchive(t)
		useArchive(t, store)
		asked := usePrompt(t, false)

		out, err := runCLI(t, "", "history", "delete", first.ID.String())
		require.NoError(t, err)
		assert.Contains(t, out, "Aborted")
		assert.Equal(t, "Delete session "+first.ID.String()+"?", *asked)

		_, err = store.Get(context.Background(), first.ID)
		assert.NoError(t, err)
	})

	t.Run("confirmed", func(t *testing.T) {
		store, first, _ := seedArchive(t)
		useArchive(t, store)
		usePrompt(t, true)

		out, err := runCLI(t, "", "history", "delete", first.ID.String())
		require.NoError(t, err)
		assert.Contains(t, out, "Deleted session")

		_, err = store.Get(context.Background(), first.ID)
		assert.ErrorIs(t, err, archive.ErrNotFound)
	})

	t.Run("yes flag skips the prompt", func(t *testing.T) {
		store, _, second := seedArchive(t)
		useArchive(t, store)
		asked := usePrompt(t, false)

		_, err := runCLI(t, "", "history", "delete", "--yes", second.ID.String())
		require.NoError(t, err)
		assert.Empty(t, *asked)

		_, err = store.Get(context.Background(), second.ID)
		assert.ErrorIs(t, err, archive.ErrNotFound)
	})
}

func TestHistoryRequiresDatabase(t *testing.T) {
	t.Setenv("MYSQL_HOST", "")
	t.Setenv("MYSQL_DATABASE", "")

	_, err := runCLI(t, "", "history", "list")
	assert.ErrorContains(t, err, "no database configured")
}

func TestDefaultPromptConfirmWithoutTerminal(t *testing.T) {
	// Not a terminal, so the answer is always no
	assert.False(t, defaultPromptConfirm(nil, nil, "Delete?"))
}
