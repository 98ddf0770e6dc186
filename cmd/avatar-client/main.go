package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess       = 0 // Session ended with a report
	ExitSessionFailed = 1 // Session ended on the error screen
	ExitError         = 2 // Configuration or runtime error
)

// SessionFailedError indicates that the client ran, but the last session ended in an error
type SessionFailedError struct {
	Message string
}

func (e *SessionFailedError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var sessionErr *SessionFailedError
		if errors.As(err, &sessionErr) {
			os.Exit(ExitSessionFailed)
		}

		os.Exit(ExitError)
	}
}
