package classify

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResultDefaults(t *testing.T) {
	result := parseResult(map[string]any{}, nil)

	assert.Equal(t, "unknown", result.Label)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Equal(t, 0, result.Person.Count)
}

func TestParseResultPersonLabelForcesCount(t *testing.T) {
	result := parseResult(map[string]any{
		"label":      "person",
		"confidence": 0.8,
	}, nil)

	assert.Equal(t, 1, result.Person.Count)
	require.Len(t, result.Person.Details, 1)
	assert.Equal(t, PersonDetail{"unknown", "unknown", "unknown", "unknown"}, result.Person.Details[0])
}

func TestParseResultSynthesizesDetailsToCount(t *testing.T) {
	result := parseResult(map[string]any{
		"label": "person",
		"person": map[string]any{
			"count": float64(3),
		},
	}, nil)

	assert.Equal(t, 3, result.Person.Count)
	require.Len(t, result.Person.Details, 3)
	for _, d := range result.Person.Details {
		assert.Equal(t, "unknown", d.AgeGroup)
		assert.Equal(t, "unknown", d.Role)
	}
}

func TestParseResultSummaryAggregation(t *testing.T) {
	result := parseResult(map[string]any{
		"label":      "person",
		"confidence": 0.9,
		"person": map[string]any{
			"count": float64(3),
			"details": []any{
				map[string]any{"age_group": "adult", "gender": "male", "role": "visitor"},
				map[string]any{"age_group": "adult", "gender": "female", "role": "resident"},
				map[string]any{"age_group": "young_child", "gender": "female", "role": "visitor"},
			},
		},
	}, nil)

	assert.Equal(t, "2 adults, 1 young child", result.Person.AgeSummary)
	assert.Equal(t, "1 male, 2 females", result.Person.GenderSummary)
	assert.Equal(t, "visitor, resident, unknown", result.Person.RoleSummary)
}

func TestParseResultKeepsExplicitSummaries(t *testing.T) {
	result := parseResult(map[string]any{
		"label": "person",
		"person": map[string]any{
			"count":       float64(2),
			"age_summary": "two grown-ups",
		},
	}, nil)

	assert.Equal(t, "two grown-ups", result.Person.AgeSummary)
}

func TestParseResultFallbackPreservesPersonCount(t *testing.T) {
	primary := parseResult(map[string]any{
		"label":      "person",
		"confidence": 0.7,
		"person":     map[string]any{"count": float64(2)},
	}, nil)

	// Enrichment answer that lost the people must not regress the count.
	enriched := parseResult(map[string]any{
		"label":      "person",
		"confidence": 0.75,
	}, &primary)

	// label "person" still forces count 1 in the new answer, so the new
	// block wins only when it actually reports people; a zero-count block
	// never replaces the primary.
	assert.Equal(t, "person", enriched.Label)
	assert.GreaterOrEqual(t, enriched.Person.Count, 1)

	regressed := parseResult(map[string]any{
		"label":  "dog",
		"person": map[string]any{"count": float64(0)},
	}, &primary)
	assert.Equal(t, 2, regressed.Person.Count)
}

func TestParseResultFallbackFillsBlanks(t *testing.T) {
	primary := ClassificationResult{Label: "cat", Confidence: 0.6}

	result := parseResult(map[string]any{}, &primary)

	assert.Equal(t, "cat", result.Label)
	assert.Equal(t, 0.6, result.Confidence)
}

func TestPersonSummaryMarshalZeroCount(t *testing.T) {
	data, err := json.Marshal(PersonSummary{Count: 0})
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":0}`, string(data))
	assert.Equal(t, `{"count":0}`, string(data))
}

func TestPersonSummaryMarshalFull(t *testing.T) {
	summary := PersonSummary{
		Count:       1,
		Description: "one adult at the door",
		Details: []PersonDetail{
			{AgeGroup: "adult", Gender: "male", Appearance: "blue jacket", Role: "courier"},
		},
		AgeSummary:    "1 adult",
		GenderSummary: "1 male",
		RoleSummary:   "courier",
	}

	data, err := json.Marshal(summary)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"count": 1,
		"description": "one adult at the door",
		"details": [{"age_group":"adult","gender":"male","appearance":"blue jacket","role":"courier"}],
		"age_summary": "1 adult",
		"gender_summary": "1 male",
		"role_summary": "courier"
	}`, string(data))
}

func TestPersonSummaryMarshalDefaultsBlanks(t *testing.T) {
	data, err := json.Marshal(PersonSummary{Count: 2})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "unknown", decoded["description"])
	assert.Equal(t, "unknown", decoded["age_summary"])
	assert.Equal(t, []any{}, decoded["details"])
}

func TestHasPersonDetails(t *testing.T) {
	assert.False(t, hasPersonDetails(map[string]any{"label": "person"}))
	assert.False(t, hasPersonDetails(map[string]any{
		"person": map[string]any{"count": float64(1)},
	}))
	assert.True(t, hasPersonDetails(map[string]any{
		"person": map[string]any{"description": "a courier"},
	}))
	assert.True(t, hasPersonDetails(map[string]any{
		"person": map[string]any{"details": []any{map[string]any{"role": "courier"}}},
	}))
}

func TestCoercions(t *testing.T) {
	assert.Equal(t, "cat", coerceString(" cat "))
	assert.Equal(t, "0.5", coerceString(0.5))
	assert.Equal(t, "", coerceString([]any{}))

	f, ok := coerceFloat("0.75")
	assert.True(t, ok)
	assert.Equal(t, 0.75, f)
	_, ok = coerceFloat(nil)
	assert.False(t, ok)

	n, ok := coerceInt("3")
	assert.True(t, ok)
	assert.Equal(t, 3, n)
}
