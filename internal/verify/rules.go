package verify

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules are the textual tests that decide axioms and citations.
type Rules struct {
	Axioms          []string `yaml:"axioms"`
	CitationPhrases []string `yaml:"citation_phrases"`
}

func DefaultRules() Rules {
	return Rules{
		Axioms: []string{
			"1 liter of diesel",
			"GHG Protocol Scope 2 Guidance 2015",
		},
		CitationPhrases: []string{
			"according to",
			"per ",
			"in accordance with",
			"verified by",
			"as defined in",
		},
	}
}

// LoadRules returns the default rules extended with the entries of the YAML
// file at path. An empty path yields the defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read verify rules: %w", err)
	}
	var extra Rules
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return Rules{}, fmt.Errorf("parse verify rules %s: %w", path, err)
	}
	rules.Axioms = appendNew(rules.Axioms, extra.Axioms)
	rules.CitationPhrases = appendNew(rules.CitationPhrases, extra.CitationPhrases)
	return rules, nil
}

func appendNew(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	for _, s := range base {
		seen[strings.ToLower(s)] = true
	}
	for _, s := range extra {
		if s == "" || seen[strings.ToLower(s)] {
			continue
		}
		seen[strings.ToLower(s)] = true
		base = append(base, s)
	}
	return base
}

// IsAxiom reports whether statement contains an axiom, ignoring case.
func (r Rules) IsAxiom(statement string) bool {
	return containsAny(strings.ToLower(statement), r.Axioms)
}

// HasSource reports whether statement carries a citation phrase, ignoring case.
func (r Rules) HasSource(statement string) bool {
	return containsAny(strings.ToLower(statement), r.CitationPhrases)
}

func containsAny(lower string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
