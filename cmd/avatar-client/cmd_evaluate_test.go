package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend serves the evaluation endpoints and records the raw conversations it was sent
type fakeBackend struct {
	mu       sync.Mutex
	computed string
	raw      []string
	rawReply string
	history  string

	// tokenCalls counts /getToken requests, which always fail
	tokenCalls int
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/process-evaluation":
		if b.computed == "" {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"detail": "No transcript found"}`)
			return
		}
		io.WriteString(w, b.computed)

	case r.Method == http.MethodPost && r.URL.Path == "/evaluate-raw-conversation":
		var req struct {
			ConversationText string `json:"conversation_text"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		b.raw = append(b.raw, req.ConversationText)
		io.WriteString(w, b.rawReply)

	case r.Method == http.MethodPost && r.URL.Path == "/getToken":
		b.tokenCalls++
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"detail": "token service unavailable"}`)

	case r.Method == http.MethodGet && r.URL.Path == "/conversation-history/room-1":
		io.WriteString(w, b.history)

	default:
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail": "Not Found"}`)
	}
}

func (b *fakeBackend) TokenCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokenCalls
}

func (b *fakeBackend) Raw() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.raw...)
}

func startBackend(t *testing.T, b *fakeBackend) {
	t.Helper()

	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	t.Setenv("BACKEND_BASE_URL", srv.URL)
	t.Setenv("EVALUATION_MAX_ATTEMPTS", "1")
}

func TestEvaluateComputed(t *testing.T) {
	startBackend(t, &fakeBackend{computed: `{"evaluation": "## Summary\n\nGreat conversation.", "scores": {"Clarity": 8}}`})

	out, err := runCLI(t, "", "evaluate")
	require.NoError(t, err)

	assert.Contains(t, out, "Evaluation Report")
	assert.Contains(t, out, "Clarity")
	assert.Contains(t, out, "Great conversation.")
}

func TestEvaluateFileFallsBackToSubmit(t *testing.T) {
	backend := &fakeBackend{rawReply: `{"evaluation": "Well done."}`}
	startBackend(t, backend)

	path := filepath.Join(t.TempDir(), "transcript.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"role": "assistant", "message": "Hello", "timestamp": "2026-01-01T00:00:00.000Z"},
		{"role": "user", "message": "Hi there", "timestamp": "2026-01-01T00:00:01.000Z"}
	]`), 0o644))

	out, err := runCLI(t, "", "evaluate", "--file", path, "--format", "markdown")
	require.NoError(t, err)

	assert.Contains(t, out, "# Evaluation Report")
	assert.Contains(t, out, "Well done.")
	assert.Contains(t, out, "**user**: Hi there")

	raw := backend.Raw()
	require.Len(t, raw, 1)
	assert.Contains(t, raw[0], "user: Hi there")
}

func TestEvaluateStdinAndRoom(t *testing.T) {
	backend := &fakeBackend{
		rawReply: `{"evaluation": "Nice."}`,
		history:  `{"room": "room-1", "transcript": [{"role": "user", "message": "From the room", "timestamp": ""}]}`,
	}
	startBackend(t, backend)

	out, err := runCLI(t, `[{"role": "user", "message": "From stdin", "timestamp": ""}]`, "evaluate", "-f", "-", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"kind": "report"`)

	_, err = runCLI(t, "", "evaluate", "--room", "room-1")
	require.NoError(t, err)

	raw := backend.Raw()
	require.Len(t, raw, 2)
	assert.Contains(t, raw[0], "From stdin")
	assert.Contains(t, raw[1], "From the room")
}

func TestEvaluateNoTranscript(t *testing.T) {
	startBackend(t, &fakeBackend{})

	out, err := runCLI(t, "", "evaluate")
	require.NoError(t, err)
	assert.Contains(t, out, "No conversation transcript available")
}

func TestEvaluateErrors(t *testing.T) {
	startBackend(t, &fakeBackend{})

	_, err := runCLI(t, "", "evaluate", "--room", "a", "--file", "b")
	assert.ErrorContains(t, err, "cannot be used together")

	_, err = runCLI(t, "not json", "evaluate", "--file", "-")
	assert.ErrorContains(t, err, "failed to parse transcript")

	_, err = runCLI(t, "[]", "evaluate", "--file", "-", "--format", "pdf")
	assert.ErrorContains(t, err, "unknown format 'pdf'")
}
