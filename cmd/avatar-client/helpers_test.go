package main

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethanbaker/avatar-client/internal/archive"
	"github.com/ethanbaker/avatar-client/internal/settings"
)

// runCLI executes the root command with args and returns what it printed
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	// Point at an env file that does not exist so only t.Setenv values apply
	envFile := filepath.Join(t.TempDir(), "missing.env")

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(append([]string{"--env", envFile}, args...))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	return out.String(), err
}

// useArchive swaps the archive for store and pretends a database is configured
func useArchive(t *testing.T, store archive.Store) {
	t.Helper()

	t.Setenv("MYSQL_HOST", "localhost")
	t.Setenv("MYSQL_DATABASE", "avatar")

	original := openArchive
	openArchive = func(*settings.Settings) (archive.Store, error) { return store, nil }
	t.Cleanup(func() { openArchive = original })
}

// usePrompt swaps the confirmation prompt for a fixed answer and records the question
func usePrompt(t *testing.T, answer bool) *string {
	t.Helper()

	var asked string
	original := promptConfirm
	promptConfirm = func(in io.Reader, out io.Writer, question string) bool {
		asked = question
		return answer
	}
	t.Cleanup(func() { promptConfirm = original })

	return &asked
}
