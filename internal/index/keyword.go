package index

import (
	"sort"
	"strings"
	"unicode"
)

// tokenize lowercases text and splits on anything that is not a letter or digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// keywordScore is the fraction of distinct query terms present in text.
func keywordScore(queryTerms map[string]struct{}, text string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	seen := make(map[string]struct{})
	for _, t := range tokenize(text) {
		if _, ok := queryTerms[t]; ok {
			seen[t] = struct{}{}
		}
	}
	return float64(len(seen)) / float64(len(queryTerms))
}

func termSet(query string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range tokenize(query) {
		if len(t) < 2 {
			continue
		}
		out[t] = struct{}{}
	}
	return out
}

// rank sorts hits by descending score, ties by id, and keeps the first n.
// Hits with a non-positive score are dropped when dropZero is set.
func rank(hits []Hit, n int, dropZero bool) []Hit {
	if dropZero {
		kept := hits[:0]
		for _, h := range hits {
			if h.Score > 0 {
				kept = append(kept, h)
			}
		}
		hits = kept
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if n > 0 && len(hits) > n {
		hits = hits[:n]
	}
	return hits
}

// sortMetadata orders metadata by file then page.
func sortMetadata(ms []Metadata) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].FileName != ms[j].FileName {
			return ms[i].FileName < ms[j].FileName
		}
		if ms[i].Page != ms[j].Page {
			return ms[i].Page < ms[j].Page
		}
		return ms[i].SectionPath < ms[j].SectionPath
	})
}
