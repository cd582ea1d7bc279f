// Package extract turns retrieved evidence chunks into deduplicated facts.
package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Confidence is the model's own rating of a fact.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// ParseConfidence maps s onto the closed set. Anything unrecognized is low.
func ParseConfidence(s string) Confidence {
	switch c := Confidence(strings.ToLower(strings.TrimSpace(s))); c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return c
	}
	return ConfidenceLow
}

// Rank orders confidences for deduplication: low=1, medium=2, high=3.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	}
	return 0
}

// Fact is one extracted claim with the evidence location it came from.
// Keys the model emitted beyond the named fields are kept in Extra and
// written back out unchanged.
type Fact struct {
	ID          string
	Text        string
	Page        int
	FileName    string
	SectionPath string
	Confidence  Confidence

	Claim    string
	Metric   string
	Value    any
	Unit     string
	Year     any
	Scope    string
	Category string

	Extra map[string]any
}

// FactID is the deterministic id of a fact: page plus the first ten hex
// digits of the SHA-256 of its text.
func FactID(page int, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("fact_%d_%s", page, hex.EncodeToString(sum[:])[:10])
}

var knownKeys = map[string]bool{
	"id": true, "text": true, "page": true, "file_name": true, "section_path": true,
	"confidence": true, "claim": true, "metric": true, "value": true, "unit": true,
	"year": true, "scope": true, "category": true,
}

func (f Fact) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(f.Extra)+13)
	for k, v := range f.Extra {
		out[k] = v
	}
	out["id"] = f.ID
	out["text"] = f.Text
	out["page"] = f.Page
	out["file_name"] = f.FileName
	out["section_path"] = f.SectionPath
	out["confidence"] = f.Confidence
	optional := map[string]string{
		"claim": f.Claim, "metric": f.Metric, "unit": f.Unit,
		"scope": f.Scope, "category": f.Category,
	}
	for k, v := range optional {
		if v != "" {
			out[k] = v
		}
	}
	if f.Value != nil {
		out["value"] = f.Value
	}
	if f.Year != nil {
		out["year"] = f.Year
	}
	return json.Marshal(out)
}

func (f *Fact) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*f = fromMap(m)
	if p, ok := intOf(m["page"]); ok {
		f.Page = p
	}
	f.ID = stringOf(m["id"])
	f.FileName = stringOf(m["file_name"])
	f.SectionPath = stringOf(m["section_path"])
	return nil
}

// fromMap copies the model-supplied fields of m into a Fact without
// filling location defaults. Values of the wrong type stay in Extra.
func fromMap(m map[string]any) Fact {
	var f Fact
	f.Text = strings.TrimSpace(stringOf(m["text"]))
	f.Confidence = ParseConfidence(stringOf(m["confidence"]))
	f.Value = m["value"]
	f.Year = m["year"]

	typed := map[string]*string{
		"claim": &f.Claim, "metric": &f.Metric, "unit": &f.Unit,
		"scope": &f.Scope, "category": &f.Category,
	}
	for k, v := range m {
		if dst, ok := typed[k]; ok {
			if s, isStr := v.(string); isStr {
				*dst = s
				continue
			}
			if v == nil {
				continue
			}
		} else if knownKeys[k] {
			continue
		}
		if f.Extra == nil {
			f.Extra = make(map[string]any)
		}
		f.Extra[k] = v
	}
	return f
}

// Location is the evidence metadata a fact defaults to.
type Location struct {
	Page        int
	FileName    string
	SectionPath string
}

// Normalize builds a Fact from one model-emitted record, filling page, id,
// file name and section path from loc when the model left them out. The
// second result is false when the record has no usable text.
func Normalize(m map[string]any, loc Location) (Fact, bool) {
	f := fromMap(m)
	if f.Text == "" && f.Claim != "" {
		f.Text = strings.TrimSpace(f.Claim)
	}
	if f.Text == "" {
		return Fact{}, false
	}

	f.Page = loc.Page
	if p, ok := intOf(m["page"]); ok {
		f.Page = p
	}
	f.ID = stringOf(m["id"])
	if f.ID == "" {
		f.ID = FactID(f.Page, f.Text)
	}
	f.FileName = stringOf(m["file_name"])
	if f.FileName == "" {
		f.FileName = loc.FileName
	}
	f.SectionPath = stringOf(m["section_path"])
	if f.SectionPath == "" {
		f.SectionPath = loc.SectionPath
	}
	return f, true
}

type mergeKey struct {
	page int
	text string
}

// Merge deduplicates facts on (page, text), keeping the highest confidence.
// On equal confidence the first occurrence wins. The result is sorted by
// page, then id.
func Merge(facts []Fact) []Fact {
	merged := make(map[mergeKey]Fact, len(facts))
	for _, f := range facts {
		k := mergeKey{page: f.Page, text: f.Text}
		cur, ok := merged[k]
		if !ok || f.Confidence.Rank() > cur.Confidence.Rank() {
			merged[k] = f
		}
	}
	out := make([]Fact, 0, len(merged))
	for _, f := range merged {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Page != out[j].Page {
			return out[i].Page < out[j].Page
		}
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		return out[i].Text < out[j].Text
	})
	return out
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

func intOf(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}
