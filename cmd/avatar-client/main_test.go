package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionFailedError(t *testing.T) {
	err := &SessionFailedError{Message: "session failed: token request failed"}

	assert.Equal(t, "session failed: token request failed", err.Error())
}

func TestErrorTypeDetection(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantSession bool
	}{
		{"SessionFailedError", &SessionFailedError{Message: "failed"}, true},
		{"regular error", errors.New("config error"), false},
		{"wrapped SessionFailedError", errors.Join(&SessionFailedError{Message: "failed"}, errors.New("context")), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sessionErr *SessionFailedError
			assert.Equal(t, tt.wantSession, errors.As(tt.err, &sessionErr))
		})
	}
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCommand()

	names := []string{}
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Subset(t, names, []string{"connect", "serve", "evaluate", "history"})

	for _, flag := range []string{"env", "settings", "debug"} {
		require.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}
