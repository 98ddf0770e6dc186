package evaluation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethanbaker/avatar-client/pkg/sdk"
)

// notReadyMarker is the backend detail text meaning no transcript has been persisted yet
const notReadyMarker = "No transcript"

// textFields are read in order; "evaluation" is canonical, the rest are deprecated aliases
var textFields = []string{"evaluation", "result", "text", "message", "output"}

// reservedFields never show up as additional information
var reservedFields = map[string]bool{
	"evaluation": true, "result": true, "text": true, "message": true, "output": true,
	"scores": true, "score": true, "transcript": true,
}

// Band classifies a score ratio for display
type Band string

const (
	BandGood    Band = "good"    // >= 70%
	BandAverage Band = "average" // >= 50%
	BandPoor    Band = "poor"
	BandUnknown Band = "unknown" // value is not numeric
)

// Score is a single evaluation category
type Score struct {
	Category string   `json:"category"`
	Ratio    *float64 `json:"ratio,omitempty"` // 0..1 when the value is numeric
	Display  string   `json:"display"`
}

// Band returns the display band of the score
func (s Score) Band() Band {
	if s.Ratio == nil {
		return BandUnknown
	}
	switch pct := *s.Ratio * 100; {
	case pct >= 70:
		return BandGood
	case pct >= 50:
		return BandAverage
	default:
		return BandPoor
	}
}

// Field is an additional top-level field kept in arrival order
type Field struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Result is a parsed evaluation report. Every part is optional
type Result struct {
	Text   string  `json:"text,omitempty"`
	Scores []Score `json:"scores,omitempty"`
	Extra  []Field `json:"extra,omitempty"`
}

// Empty reports whether the result carries nothing to show
func (r *Result) Empty() bool {
	return r == nil || (r.Text == "" && len(r.Scores) == 0 && len(r.Extra) == 0)
}

// Render returns the report as plain text (the "copy to clipboard" form)
func (r *Result) Render() string {
	if r.Empty() {
		return "No evaluation data available."
	}

	if len(r.Scores) > 0 {
		var b strings.Builder
		b.WriteString("Evaluation Scores:\n")
		for _, s := range r.Scores {
			fmt.Fprintf(&b, "%s: %s\n", s.Category, s.Display)
		}
		if r.Text != "" {
			b.WriteString("\nEvaluation Details:\n")
			b.WriteString(r.Text)
		}
		return b.String()
	}

	if r.Text != "" {
		return r.Text
	}
	return r.ExtraJSON()
}

// ExtraJSON renders the additional fields as an indented JSON object, keeping their order
func (r *Result) ExtraJSON() string {
	if r == nil || len(r.Extra) == 0 {
		return ""
	}

	var b bytes.Buffer
	b.WriteString("{")
	for i, f := range r.Extra {
		if i > 0 {
			b.WriteString(",")
		}
		key, _ := json.Marshal(f.Key)
		b.Write(key)
		b.WriteString(":")
		b.Write(f.Value)
	}
	b.WriteString("}")

	var out bytes.Buffer
	if err := json.Indent(&out, b.Bytes(), "", "  "); err != nil {
		return b.String()
	}
	return out.String()
}

// FromResponse interprets a duck-typed backend body. It returns false when the body
// holds no evaluation, including the backend's "No transcript" pending signal
func FromResponse(resp *sdk.EvaluationResponse) (*Result, bool) {
	if resp == nil {
		return nil, false
	}
	if !resp.IsObject() {
		return Parse(resp.Raw)
	}

	fields, err := decodeObject(resp.Raw)
	if err != nil {
		return nil, false
	}

	// Scores at the top level mean the body itself is the report
	if _, ok := lookup(fields, "scores"); ok {
		return parseObject(fields)
	}
	if _, ok := lookup(fields, "score"); ok {
		return parseObject(fields)
	}

	for _, raw := range [][]byte{resp.Evaluation, resp.Result, resp.Data, resp.Text, resp.Message, resp.Output} {
		if result, ok := Parse(raw); ok {
			return result, true
		}
	}

	if detail, ok := stringValue(resp.Detail); ok && !strings.Contains(detail, notReadyMarker) {
		return Parse(resp.Detail)
	}
	return nil, false
}

// IsNotReady reports whether the body is the backend's "No transcript" signal
func IsNotReady(resp *sdk.EvaluationResponse) bool {
	if resp == nil {
		return false
	}
	detail, ok := stringValue(resp.Detail)
	return ok && strings.Contains(detail, notReadyMarker)
}

// Parse reads a single evaluation value: a string, a structured object, or any other JSON
func Parse(raw []byte) (*Result, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || strings.TrimSpace(s) == "" {
			return nil, false
		}
		return &Result{Text: s}, true
	case '{':
		fields, err := decodeObject(raw)
		if err != nil {
			return nil, false
		}
		return parseObject(fields)
	default:
		text := indentJSON(raw)
		if text == "[]" {
			return nil, false
		}
		return &Result{Text: text}, true
	}
}

func parseObject(fields []Field) (*Result, bool) {
	result := &Result{}

	for _, name := range textFields {
		value, ok := lookup(fields, name)
		if !ok {
			continue
		}
		if s, ok := stringValue(value); ok {
			if s != "" {
				result.Text = s
				break
			}
			continue
		}
		if !isNull(value) {
			result.Text = indentJSON(value)
			break
		}
	}

	if value, ok := lookup(fields, "scores"); ok {
		result.Scores = parseScores(value)
	} else if value, ok := lookup(fields, "score"); ok && !isNull(value) {
		result.Scores = []Score{newScore("Overall", value)}
	}

	for _, f := range fields {
		if !reservedFields[f.Key] {
			result.Extra = append(result.Extra, f)
		}
	}

	if result.Empty() {
		return nil, false
	}
	return result, true
}

func parseScores(raw json.RawMessage) []Score {
	fields, err := decodeObject(raw)
	if err != nil {
		return nil
	}

	scores := make([]Score, 0, len(fields))
	for _, f := range fields {
		scores = append(scores, newScore(f.Key, f.Value))
	}
	return scores
}

func newScore(category string, raw json.RawMessage) Score {
	score := Score{Category: category}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		score.Ratio = &n
		score.Display = strconv.FormatFloat(n*100, 'f', 1, 64) + "%"
		return score
	}

	if s, ok := stringValue(raw); ok {
		score.Display = s
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			score.Ratio = &parsed
		}
		return score
	}

	score.Display = string(raw)
	return score
}

// decodeObject decodes a JSON object into fields, preserving key order
func decodeObject(raw []byte) ([]Field, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var fields []Field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		fields = append(fields, Field{Key: key, Value: value})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return fields, nil
}

func lookup(fields []Field, key string) (json.RawMessage, bool) {
	for _, f := range fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

func stringValue(raw []byte) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func isNull(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func indentJSON(raw []byte) string {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return string(raw)
	}
	return out.String()
}
