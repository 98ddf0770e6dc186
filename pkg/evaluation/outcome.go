package evaluation

import (
	"errors"

	"github.com/ethanbaker/avatar-client/pkg/transcript"
)

// OutcomeKind is the terminal shape of an evaluation run
type OutcomeKind string

const (
	OutcomeReport       OutcomeKind = "report"
	OutcomeNoTranscript OutcomeKind = "no_transcript"
	OutcomeError        OutcomeKind = "error"
)

// Outcome is exactly one of: a report, the no-transcript message, or an error message
type Outcome struct {
	Kind    OutcomeKind `json:"kind"`
	Result  *Result     `json:"result,omitempty"`
	Message string      `json:"message,omitempty"`

	// Transcript is the backend's copy of the conversation, when it sent one
	Transcript []transcript.Entry `json:"-"`
}

// Report wraps a result
func Report(result *Result, remote []transcript.Entry) Outcome {
	return Outcome{Kind: OutcomeReport, Result: result, Transcript: remote}
}

// NoTranscript is the outcome when nothing could be evaluated
func NoTranscript() Outcome {
	return Outcome{Kind: OutcomeNoTranscript, Message: MessageNoTranscript}
}

// Failed turns an evaluation failure into a readable outcome
func Failed(err error) Outcome {
	detail := "Failed to evaluate conversation"

	var evalErr *EvaluationError
	switch {
	case errors.As(err, &evalErr) && evalErr.Detail != "":
		detail = evalErr.Detail
	case err != nil:
		detail = err.Error()
	}

	return Outcome{Kind: OutcomeError, Message: "Error: " + detail}
}

// Text is the user-visible body of the outcome
func (o Outcome) Text() string {
	if o.Kind == OutcomeReport {
		return o.Result.Render()
	}
	return o.Message
}
