package sdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// GetToken requests a room access token for the given room and participant
func (c *Client) GetToken(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	path := "/getToken"

	var out TokenResponse
	if err := c.doJSON(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// GetConversationHistory fetches the transcript the backend stored for a room
func (c *Client) GetConversationHistory(ctx context.Context, room string) (*HistoryResponse, error) {
	path := fmt.Sprintf("/conversation-history/%s", url.PathEscape(room))

	var out HistoryResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// GetTranscript fetches the stored transcript from the older per-room endpoint
func (c *Client) GetTranscript(ctx context.Context, room string) (*HistoryResponse, error) {
	path := fmt.Sprintf("/transcript/%s", url.PathEscape(room))

	var out HistoryResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// FetchHistory tries the conversation-history endpoint first, then the transcript endpoint.
// The first non-empty transcript wins; if both fail the last error is returned
func (c *Client) FetchHistory(ctx context.Context, room string) (*HistoryResponse, error) {
	if room == "" {
		return nil, fmt.Errorf("room cannot be empty")
	}

	primary, err := c.GetConversationHistory(ctx, room)
	if err == nil && len(primary.Transcript) > 0 {
		return primary, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}

	fallback, fallbackErr := c.GetTranscript(ctx, room)
	if fallbackErr == nil {
		return fallback, nil
	}

	// Prefer the primary's (possibly empty) answer over a failed fallback
	if err == nil {
		return primary, nil
	}
	return nil, fallbackErr
}
