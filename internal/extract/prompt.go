package extract

import (
	"fmt"
	"os"
	"strings"

	"github.com/dgallion1/factgest/internal/index"
)

// DefaultSystemPrompt is used when no prompt template path is configured.
const DefaultSystemPrompt = `You extract climate and sustainability facts from corporate report evidence. Return a JSON object of the form {"facts": [...]}. Each fact object has these fields:

- "text": the fact as one self-contained sentence quoted or closely paraphrased from the evidence (string)
- "claim": short normalized statement of what is asserted (string)
- "metric": what is measured, e.g. "Scope 1 emissions", "carbon intensity", "2030 reduction target" (string)
- "value": the number as written in the evidence (number or string)
- "unit": unit of the value, e.g. "tCO2e", "%", "MWh" (string or null)
- "year": reporting or target year the value refers to (integer or null)
- "scope": "1", "2", "3" or null
- "category": one of "emissions", "target", "methodology", "assurance", "intensity", "other"
- "confidence": "high" when the evidence states the fact explicitly with a number and unit, "medium" when it is stated but incomplete, "low" otherwise

Rules:
- Only extract facts that are present in the EVIDENCE block. Never use outside knowledge.
- One fact per distinct metric, year and scope.
- Keep numbers exactly as written, including thousands separators.
- Do not include page, file or section fields; they are added for you.
- Return {"facts": []} if the evidence contains no relevant facts.

Respond with ONLY the JSON object, no other text.`

// FactsSchema is the JSON Schema for the extraction response, used when
// strict schema checking is enabled.
const FactsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["facts"],
  "properties": {
    "facts": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "text": {"type": "string"},
          "confidence": {"enum": ["low", "medium", "high", "LOW", "MEDIUM", "HIGH"]}
        }
      }
    }
  }
}`

// LoadSystemPrompt reads the prompt template at path, or returns the
// built-in prompt when path is empty.
func LoadSystemPrompt(path string) (string, error) {
	if path == "" {
		return DefaultSystemPrompt, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt template: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("prompt template %s is empty", path)
	}
	return prompt, nil
}

// BuildChunkPrompt creates the user prompt for one evidence chunk. The chunk
// text is cut to snippetChars characters.
func BuildChunkPrompt(company string, year int, hit index.Hit, snippetChars int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Company: %s\nYear: %d\n\n", company, year)
	sb.WriteString("The following is EVIDENCE from the report:\n")
	fmt.Fprintf(&sb, "[page: %d, file: %s, section: %s]\n\n", hit.Meta.Page, hit.Meta.FileName, hit.Meta.SectionPath)
	sb.WriteString("EVIDENCE:\n\"\"\"\n")
	sb.WriteString(Snippet(hit.Text, snippetChars))
	sb.WriteString("\n\"\"\"\n\n")
	sb.WriteString("Extract ONLY the facts according to the extraction rules.\n")
	sb.WriteString("Return ONLY valid JSON.\n")
	return sb.String()
}

// Snippet returns the first n runes of s. n <= 0 means no limit.
func Snippet(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
