package evaluation

import (
	"encoding/json"
	"testing"

	"github.com/ethanbaker/avatar-client/pkg/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func response(t *testing.T, body string) *sdk.EvaluationResponse {
	t.Helper()
	var resp sdk.EvaluationResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	return &resp
}

func TestFromResponse(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		ok     bool
		text   string
		scores int
	}{
		{"canonical string", `{"evaluation":"Well done"}`, true, "Well done", 0},
		{"legacy result alias", `{"result":"Fine"}`, true, "Fine", 0},
		{"legacy output alias", `{"output":"Out"}`, true, "Out", 0},
		{"canonical wins over aliases", `{"text":"alias","evaluation":"canonical"}`, true, "canonical", 0},
		{"nested object", `{"evaluation":{"evaluation":"Nested","scores":{"Tone":0.5,"Pace":0.9}}}`, true, "Nested", 2},
		{"top-level scores", `{"scores":{"Tone":0.5},"evaluation":"Top"}`, true, "Top", 1},
		{"data field", `{"data":"From data"}`, true, "From data", 0},
		{"bare string", `"Just text"`, true, "Just text", 0},
		{"detail used when not pending", `{"detail":"Evaluated offline"}`, true, "Evaluated offline", 0},
		{"pending detail", `{"detail":"No transcript found for room"}`, false, "", 0},
		{"empty object", `{}`, false, "", 0},
		{"null evaluation", `{"evaluation":null}`, false, "", 0},
		{"empty array", `[]`, false, "", 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result, ok := FromResponse(response(t, test.body))
			require.Equal(t, test.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, test.text, result.Text)
			assert.Len(t, result.Scores, test.scores)
		})
	}
}

func TestIsNotReady(t *testing.T) {
	assert.True(t, IsNotReady(response(t, `{"detail":"No transcript available"}`)))
	assert.False(t, IsNotReady(response(t, `{"detail":"Something else"}`)))
	assert.False(t, IsNotReady(response(t, `"No transcript"`)))
	assert.False(t, IsNotReady(nil))
}

func TestScores(t *testing.T) {
	result, ok := Parse([]byte(`{"scores":{"Empathy":0.85,"Clarity":0.55,"Pace":0.2,"Tone":"n/a","Focus":"0.4"}}`))
	require.True(t, ok)
	require.Len(t, result.Scores, 5)

	expected := []struct {
		category string
		display  string
		band     Band
	}{
		{"Empathy", "85.0%", BandGood},
		{"Clarity", "55.0%", BandAverage},
		{"Pace", "20.0%", BandPoor},
		{"Tone", "n/a", BandUnknown},
		{"Focus", "0.4", BandPoor},
	}
	for i, e := range expected {
		assert.Equal(t, e.category, result.Scores[i].Category)
		assert.Equal(t, e.display, result.Scores[i].Display)
		assert.Equal(t, e.band, result.Scores[i].Band(), e.category)
	}
}

func TestSingleScore(t *testing.T) {
	result, ok := Parse([]byte(`{"score":0.75}`))
	require.True(t, ok)
	require.Len(t, result.Scores, 1)
	assert.Equal(t, "Overall", result.Scores[0].Category)
	assert.Equal(t, BandGood, result.Scores[0].Band())
}

func TestExtraFieldsKeepOrder(t *testing.T) {
	result, ok := Parse([]byte(`{"zeta":1,"evaluation":"x","alpha":{"b":2},"transcript":[],"mid":"m"}`))
	require.True(t, ok)

	keys := make([]string, 0, len(result.Extra))
	for _, f := range result.Extra {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, keys)
	assert.JSONEq(t, `{"zeta":1,"alpha":{"b":2},"mid":"m"}`, result.ExtraJSON())
}

func TestRender(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var result *Result
		assert.Equal(t, "No evaluation data available.", result.Render())
	})

	t.Run("text only", func(t *testing.T) {
		assert.Equal(t, "Hello", (&Result{Text: "Hello"}).Render())
	})

	t.Run("scores and details", func(t *testing.T) {
		result, ok := Parse([]byte(`{"evaluation":"Good job","scores":{"Tone":0.5}}`))
		require.True(t, ok)
		assert.Equal(t, "Evaluation Scores:\nTone: 50.0%\n\nEvaluation Details:\nGood job", result.Render())
	})

	t.Run("extra only", func(t *testing.T) {
		result, ok := Parse([]byte(`{"summary":"s"}`))
		require.True(t, ok)
		assert.Equal(t, "{\n  \"summary\": \"s\"\n}", result.Render())
	})
}

func TestNonStringEvaluationIsIndented(t *testing.T) {
	result, ok := Parse([]byte(`[1,2]`))
	require.True(t, ok)
	assert.Equal(t, "[\n  1,\n  2\n]", result.Text)
}
