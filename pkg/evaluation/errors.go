package evaluation

import (
	"errors"
	"fmt"

	"github.com/ethanbaker/avatar-client/pkg/sdk"
)

// ErrNotReady means the backend has not computed an evaluation yet. It drives polling
// and is never surfaced to the user
var ErrNotReady = errors.New("evaluation not ready")

// EvaluationError is returned when an on-demand evaluation request fails
type EvaluationError struct {
	Detail string // backend detail message, or the transport error text
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("evaluation failed: %s", e.Detail)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// newEvaluationError prefers the backend's detail over the raw error text
func newEvaluationError(err error) *EvaluationError {
	detail := err.Error()

	var httpErr *sdk.HTTPError
	if errors.As(err, &httpErr) && httpErr.Detail != "" {
		detail = httpErr.Detail
	}
	return &EvaluationError{Detail: detail, Err: err}
}
