package evaluation

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/ethanbaker/avatar-client/pkg/sdk"
	"github.com/ethanbaker/avatar-client/pkg/transcript"
	"github.com/sethvargo/go-retry"
)

const (
	DefaultMaxAttempts = 5               // Total calls to the computed-evaluation endpoint
	DefaultBackoffStep = 2 * time.Second // Wait before attempt n+1 is n * step

	// Messages surfaced in place of a report
	MessageNoTranscript = "No conversation transcript available for evaluation. Please wait for the conversation to complete."
	MessageNoResults    = "Evaluation completed but no results were returned."
)

// SubmitMode selects the fallback submission endpoint
type SubmitMode string

const (
	SubmitRaw    SubmitMode = "raw"    // POST /evaluate-raw-conversation with formatted text
	SubmitLegacy SubmitMode = "legacy" // POST /evaluate with the structured transcript
)

// Backend is the subset of the backend client the retriever needs
type Backend interface {
	ProcessEvaluation(ctx context.Context) (*sdk.EvaluationResponse, error)
	Evaluate(ctx context.Context, entries []transcript.Entry) (*sdk.EvaluationResponse, error)
	EvaluateRawConversation(ctx context.Context, text string) (*sdk.EvaluationResponse, error)
}

// Options configures a Retriever
type Options struct {
	MaxAttempts int           `json:"max_attempts" yaml:"max_attempts"`
	BackoffStep time.Duration `json:"backoff_step" yaml:"backoff_step"`
	SubmitMode  SubmitMode    `json:"submit_mode" yaml:"submit_mode"`
}

// Computed is an evaluation fetched from the backend, with the backend's transcript if it sent one
type Computed struct {
	Result     *Result
	Transcript []transcript.Entry
}

// Retriever fetches a computed evaluation with bounded retries and falls back to
// submitting the local transcript
type Retriever struct {
	backend Backend
	opts    Options
}

// NewRetriever creates a retriever, filling unset options with defaults
func NewRetriever(backend Backend, opts *Options) *Retriever {
	r := &Retriever{
		backend: backend,
		opts: Options{
			MaxAttempts: DefaultMaxAttempts,
			BackoffStep: DefaultBackoffStep,
			SubmitMode:  SubmitRaw,
		},
	}

	if opts != nil {
		if opts.MaxAttempts > 0 {
			r.opts.MaxAttempts = opts.MaxAttempts
		}
		if opts.BackoffStep > 0 {
			r.opts.BackoffStep = opts.BackoffStep
		}
		if opts.SubmitMode == SubmitLegacy {
			r.opts.SubmitMode = SubmitLegacy
		}
	}

	return r
}

// Backoff returns the polling schedule: step, 2*step, 3*step... stopping after
// maxAttempts-1 waits so the endpoint is called at most maxAttempts times
func Backoff(maxAttempts int, step time.Duration) retry.Backoff {
	var n int64
	linear := retry.BackoffFunc(func() (time.Duration, bool) {
		n++
		return time.Duration(n) * step, false
	})

	retries := 0
	if maxAttempts > 1 {
		retries = maxAttempts - 1
	}
	return retry.WithMaxRetries(uint64(retries), linear)
}

// FetchComputed makes a single call to the computed-evaluation endpoint.
// A 404, a "No transcript" detail or an empty body all yield ErrNotReady
func (r *Retriever) FetchComputed(ctx context.Context) (*Computed, error) {
	resp, err := r.backend.ProcessEvaluation(ctx)
	if err != nil {
		var httpErr *sdk.HTTPError
		if errors.As(err, &httpErr) && (httpErr.NotFound() || strings.Contains(httpErr.Detail, notReadyMarker)) {
			return nil, ErrNotReady
		}
		return nil, err
	}

	if IsNotReady(resp) {
		return nil, ErrNotReady
	}

	result, ok := FromResponse(resp)
	if !ok {
		return nil, ErrNotReady
	}

	return &Computed{Result: result, Transcript: resp.Transcript}, nil
}

// Poll calls FetchComputed until it yields a result, the attempts run out, or a hard
// error occurs. Context cancellation is honored before each attempt and each wait
func (r *Retriever) Poll(ctx context.Context) (*Computed, error) {
	var computed *Computed
	attempt := 0

	err := retry.Do(ctx, Backoff(r.opts.MaxAttempts, r.opts.BackoffStep), func(ctx context.Context) error {
		attempt++

		c, err := r.FetchComputed(ctx)
		if errors.Is(err, ErrNotReady) {
			if attempt < r.opts.MaxAttempts {
				log.Printf("[EVALUATION]: Transcript not ready yet, retrying in %s (%d/%d)", time.Duration(attempt)*r.opts.BackoffStep, attempt, r.opts.MaxAttempts)
			}
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}

		computed = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	// A result that raced with cancellation is discarded
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return computed, nil
}

// Submit sends the transcript for on-demand evaluation. A nil result with a nil error
// means the backend answered without an evaluation
func (r *Retriever) Submit(ctx context.Context, entries []transcript.Entry) (*Result, []transcript.Entry, error) {
	var (
		resp *sdk.EvaluationResponse
		err  error
	)

	switch r.opts.SubmitMode {
	case SubmitLegacy:
		resp, err = r.backend.Evaluate(ctx, entries)
	default:
		resp, err = r.backend.EvaluateRawConversation(ctx, transcript.Format(entries))
	}
	if err != nil {
		return nil, nil, newEvaluationError(err)
	}

	result, ok := FromResponse(resp)
	if !ok {
		return nil, resp.Transcript, nil
	}
	return result, resp.Transcript, nil
}

// Resolve runs the full retrieval sequence and always produces an Outcome. The only
// error returned is the context's, in which case the outcome must be discarded
func (r *Retriever) Resolve(ctx context.Context, entries []transcript.Entry) (Outcome, error) {
	computed, err := r.Poll(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Outcome{}, ctxErr
	}

	if err == nil && computed != nil {
		return Report(computed.Result, computed.Transcript), nil
	}

	if errors.Is(err, ErrNotReady) {
		log.Println("[EVALUATION]: Could not get evaluation from backend, trying with local transcript...")
	} else {
		log.Printf("[EVALUATION]: Error processing evaluation: %v", err)
	}

	if len(entries) == 0 {
		return NoTranscript(), nil
	}

	result, remote, err := r.Submit(ctx, entries)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Outcome{}, ctxErr
	}
	if err != nil {
		log.Printf("[EVALUATION]: Error evaluating conversation: %v", err)
		return Failed(err), nil
	}
	if result == nil {
		return Report(&Result{Text: MessageNoResults}, remote), nil
	}

	return Report(result, remote), nil
}
