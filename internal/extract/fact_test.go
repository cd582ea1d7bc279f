package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactID_Deterministic(t *testing.T) {
	a := FactID(12, "Scope 1 emissions were 1,200 tCO2e.")
	b := FactID(12, "Scope 1 emissions were 1,200 tCO2e.")
	assert.Equal(t, a, b)
	assert.Regexp(t, `^fact_12_[0-9a-f]{10}$`, a)
	assert.NotEqual(t, a, FactID(13, "Scope 1 emissions were 1,200 tCO2e."))
	assert.NotEqual(t, a, FactID(12, "Scope 2 emissions were 1,200 tCO2e."))
}

func TestFactID_KnownValue(t *testing.T) {
	// sha256("abc") = ba7816bf8f01cfea...
	assert.Equal(t, "fact_3_ba7816bf8f", FactID(3, "abc"))
}

func TestParseConfidence(t *testing.T) {
	assert.Equal(t, ConfidenceHigh, ParseConfidence("HIGH"))
	assert.Equal(t, ConfidenceMedium, ParseConfidence(" medium "))
	assert.Equal(t, ConfidenceLow, ParseConfidence("low"))
	assert.Equal(t, ConfidenceLow, ParseConfidence("certain"))
	assert.Equal(t, ConfidenceLow, ParseConfidence(""))
	assert.Greater(t, ConfidenceHigh.Rank(), ConfidenceMedium.Rank())
	assert.Greater(t, ConfidenceMedium.Rank(), ConfidenceLow.Rank())
}

func TestNormalize_FillsLocation(t *testing.T) {
	loc := Location{Page: 7, FileName: "acme.pdf", SectionPath: "4 Climate > 4.1 Targets"}
	f, ok := Normalize(map[string]any{
		"text":       "Net zero by 2040.",
		"confidence": "high",
		"metric":     "net zero target",
		"year":       float64(2040),
	}, loc)

	require.True(t, ok)
	assert.Equal(t, 7, f.Page)
	assert.Equal(t, "acme.pdf", f.FileName)
	assert.Equal(t, "4 Climate > 4.1 Targets", f.SectionPath)
	assert.Equal(t, FactID(7, "Net zero by 2040."), f.ID)
	assert.Equal(t, ConfidenceHigh, f.Confidence)
	assert.Equal(t, "net zero target", f.Metric)
	assert.Equal(t, float64(2040), f.Year)
	assert.Nil(t, f.Extra)
}

func TestNormalize_KeepsModelValues(t *testing.T) {
	loc := Location{Page: 7, FileName: "acme.pdf", SectionPath: "4 Climate"}
	f, ok := Normalize(map[string]any{
		"text":      "Scope 3 covers 15 categories.",
		"page":      float64(9),
		"id":        "custom-id",
		"file_name": "annex.pdf",
		"scope":     float64(3),
		"source":    "table 4",
	}, loc)

	require.True(t, ok)
	assert.Equal(t, 9, f.Page)
	assert.Equal(t, "custom-id", f.ID)
	assert.Equal(t, "annex.pdf", f.FileName)
	assert.Equal(t, "4 Climate", f.SectionPath)
	assert.Equal(t, ConfidenceLow, f.Confidence)
	assert.Empty(t, f.Scope)
	assert.Equal(t, map[string]any{"scope": float64(3), "source": "table 4"}, f.Extra)
}

func TestNormalize_IDUsesFinalPage(t *testing.T) {
	f, ok := Normalize(map[string]any{"text": "x tCO2e", "page": "11"}, Location{Page: 2})
	require.True(t, ok)
	assert.Equal(t, 11, f.Page)
	assert.Equal(t, FactID(11, "x tCO2e"), f.ID)
}

func TestNormalize_TextFallsBackToClaim(t *testing.T) {
	f, ok := Normalize(map[string]any{"claim": "Emissions fell 30%."}, Location{Page: 1})
	require.True(t, ok)
	assert.Equal(t, "Emissions fell 30%.", f.Text)
}

func TestNormalize_DropsEmptyText(t *testing.T) {
	_, ok := Normalize(map[string]any{"text": "   ", "confidence": "high"}, Location{Page: 1})
	assert.False(t, ok)
	_, ok = Normalize(map[string]any{"text": 42}, Location{Page: 1})
	assert.False(t, ok)
}

func TestMerge_KeepsHighestConfidence(t *testing.T) {
	facts := []Fact{
		{ID: "a", Page: 1, Text: "same", Confidence: ConfidenceLow},
		{ID: "b", Page: 1, Text: "same", Confidence: ConfidenceHigh},
		{ID: "c", Page: 1, Text: "same", Confidence: ConfidenceMedium},
		{ID: "d", Page: 2, Text: "same", Confidence: ConfidenceLow},
	}
	got := Merge(facts)

	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, ConfidenceHigh, got[0].Confidence)
	assert.Equal(t, "d", got[1].ID)
}

func TestMerge_FirstWinsOnTie(t *testing.T) {
	got := Merge([]Fact{
		{ID: "first", Page: 1, Text: "t", Confidence: ConfidenceMedium, Unit: "%"},
		{ID: "second", Page: 1, Text: "t", Confidence: ConfidenceMedium},
	})
	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].ID)
}

func TestMerge_OrderIndependent(t *testing.T) {
	a := []Fact{
		{ID: FactID(3, "x"), Page: 3, Text: "x", Confidence: ConfidenceLow},
		{ID: FactID(1, "y"), Page: 1, Text: "y", Confidence: ConfidenceHigh},
		{ID: FactID(3, "x"), Page: 3, Text: "x", Confidence: ConfidenceHigh},
	}
	b := []Fact{a[2], a[1], a[0]}
	assert.Equal(t, Merge(a), Merge(b))
	assert.Empty(t, Merge(nil))
}

func TestFact_JSONShape(t *testing.T) {
	f := Fact{
		ID:          "fact_1_abc",
		Text:        "Scope 2 emissions were 800 tCO2e.",
		Page:        1,
		FileName:    "acme.pdf",
		SectionPath: "",
		Confidence:  ConfidenceHigh,
		Metric:      "Scope 2 emissions",
		Value:       float64(800),
		Unit:        "tCO2e",
		Extra:       map[string]any{"method": "market-based"},
	}
	data, err := json.Marshal(f)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "fact_1_abc", m["id"])
	assert.Equal(t, float64(1), m["page"])
	assert.Equal(t, "", m["section_path"])
	assert.Equal(t, "high", m["confidence"])
	assert.Equal(t, "market-based", m["method"])
	assert.Equal(t, "tCO2e", m["unit"])
	assert.NotContains(t, m, "claim")
	assert.NotContains(t, m, "year")

	var back Fact
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, f, back)
}
