package sdk

import (
	"bytes"
	"encoding/json"

	"github.com/ethanbaker/avatar-client/pkg/transcript"
)

/** Requests */

// TokenRequest represents the request body for POST /getToken
type TokenRequest struct {
	Room     string `json:"room"`
	Name     string `json:"name"`
	Identity string `json:"identity"`
}

// EvaluateRequest represents the request body for the legacy POST /evaluate
type EvaluateRequest struct {
	Transcript []transcript.Entry `json:"transcript"`
}

// RawConversationRequest represents the request body for POST /evaluate-raw-conversation
type RawConversationRequest struct {
	ConversationText string `json:"conversation_text"`
}

/** Responses */

// TokenResponse holds whichever token field the backend returned.
// A bare JSON string body is accepted as the token itself
type TokenResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
}

// UnmarshalJSON accepts either an object or a bare string
func (r *TokenResponse) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &r.Token)
	}

	type alias TokenResponse
	var out alias
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return err
	}
	*r = TokenResponse(out)
	return nil
}

// Value returns the usable token, preferring "token" over "access_token"
func (r *TokenResponse) Value() string {
	if r == nil {
		return ""
	}
	if r.Token != "" {
		return r.Token
	}
	return r.AccessToken
}

// EvaluationResponse is the duck-typed body of every evaluation endpoint.
// Fields are kept raw because each may hold a string or a structured object
type EvaluationResponse struct {
	Evaluation json.RawMessage    `json:"evaluation,omitempty"`
	Result     json.RawMessage    `json:"result,omitempty"`
	Data       json.RawMessage    `json:"data,omitempty"`
	Text       json.RawMessage    `json:"text,omitempty"`
	Message    json.RawMessage    `json:"message,omitempty"`
	Output     json.RawMessage    `json:"output,omitempty"`
	Detail     json.RawMessage    `json:"detail,omitempty"`
	Transcript []transcript.Entry `json:"transcript,omitempty"`

	// Raw is the complete body as received
	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON keeps the raw body and decodes known fields when the body is an object
func (r *EvaluationResponse) UnmarshalJSON(data []byte) error {
	raw := append(json.RawMessage(nil), bytes.TrimSpace(data)...)

	if len(raw) == 0 || raw[0] != '{' {
		*r = EvaluationResponse{Raw: raw}
		return nil
	}

	type alias EvaluationResponse
	var out alias
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*r = EvaluationResponse(out)
	r.Raw = raw
	return nil
}

// IsObject reports whether the body was a JSON object
func (r *EvaluationResponse) IsObject() bool {
	return len(r.Raw) > 0 && r.Raw[0] == '{'
}

// HistoryResponse is the body of the conversation history endpoints
type HistoryResponse struct {
	Room       string             `json:"room,omitempty"`
	Transcript []transcript.Entry `json:"transcript"`
}
