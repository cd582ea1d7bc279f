package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/dgallion1/factgest/internal/index"
)

// MaxFallbackFacts caps what the regex miner emits for one run.
const MaxFallbackFacts = 12

var (
	digitPattern   = regexp.MustCompile(`\d`)
	keywordPattern = regexp.MustCompile(`(?i)(tco2e?|scope\s*[123]|%|emission|\b(?:19|20)\d{2}\b|\bmt\b|ghg)`)
)

// MineFallback scans hits for sentences that contain a number and a domain
// keyword and returns them as medium-confidence facts, in hit order, at most
// MaxFallbackFacts of them.
func MineFallback(hits []index.Hit) []Fact {
	var out []Fact
	seen := make(map[mergeKey]bool)
	for _, h := range hits {
		for _, s := range sentences(h.Text) {
			if !digitPattern.MatchString(s) || !keywordPattern.MatchString(s) {
				continue
			}
			k := mergeKey{page: h.Meta.Page, text: s}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, Fact{
				ID:          FactID(h.Meta.Page, s),
				Text:        s,
				Page:        h.Meta.Page,
				FileName:    h.Meta.FileName,
				SectionPath: h.Meta.SectionPath,
				Confidence:  ConfidenceMedium,
			})
			if len(out) == MaxFallbackFacts {
				return out
			}
		}
	}
	return out
}

// sentences splits text after '.', '!' or '?' when followed by whitespace,
// so decimals like "1.5" stay intact. Whitespace inside a sentence is
// collapsed.
func sentences(text string) []string {
	var (
		out []string
		cur strings.Builder
	)
	flush := func() {
		s := strings.Join(strings.Fields(cur.String()), " ")
		if s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}
	runes := []rune(text)
	for i, r := range runes {
		cur.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				flush()
			}
		}
	}
	flush()
	return out
}
