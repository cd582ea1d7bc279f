package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

var errNoObject = errors.New("no JSON object found")

// ParseObject coerces raw model text into a JSON object. It first tries the
// text as-is (whole, then the outermost {...} slice), then repairs common
// damage: code fences, raw newlines and tabs, trailing commas.
func ParseObject(raw string) (map[string]any, error) {
	if obj, err := extractObject(raw); err == nil {
		return obj, nil
	}
	obj, err := extractObject(repair(raw))
	if err != nil {
		return nil, &MalformedOutputError{Raw: raw, Err: err}
	}
	return obj, nil
}

func repair(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.ReplaceAll(s, ", }", " }")
	s = strings.ReplaceAll(s, ",}", "}")
	s = strings.ReplaceAll(s, ", ]", " ]")
	s = strings.ReplaceAll(s, ",]", "]")
	return s
}

// extractObject parses s directly, falling back to the substring between
// the first '{' and the last '}'.
func extractObject(s string) (map[string]any, error) {
	s = strings.TrimSpace(s)
	if obj, err := decodeObject(s); err == nil {
		return obj, nil
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, errNoObject
	}
	return decodeObject(s[start : end+1])
}

func decodeObject(s string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errNoObject
	}
	return obj, nil
}
