package sdk

import (
	"context"
	"net/http"

	"github.com/ethanbaker/avatar-client/pkg/transcript"
)

// ProcessEvaluation asks the backend for the evaluation computed from the most recent session
func (c *Client) ProcessEvaluation(ctx context.Context) (*EvaluationResponse, error) {
	path := "/process-evaluation"

	var out EvaluationResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// Evaluate submits a structured transcript for synchronous evaluation
func (c *Client) Evaluate(ctx context.Context, entries []transcript.Entry) (*EvaluationResponse, error) {
	path := "/evaluate"

	req := &EvaluateRequest{Transcript: entries}
	if req.Transcript == nil {
		req.Transcript = []transcript.Entry{}
	}

	var out EvaluationResponse
	if err := c.doJSON(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// EvaluateRawConversation submits a formatted conversation text for synchronous evaluation
func (c *Client) EvaluateRawConversation(ctx context.Context, text string) (*EvaluationResponse, error) {
	path := "/evaluate-raw-conversation"

	var out EvaluationResponse
	if err := c.doJSON(ctx, http.MethodPost, path, &RawConversationRequest{ConversationText: text}, &out); err != nil {
		return nil, err
	}

	return &out, nil
}
