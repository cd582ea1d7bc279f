package doctree

import "strings"

// PageRecord is the text of one page of a source report.
type PageRecord struct {
	Page      int    `json:"page"` // 1-based
	Text      string `json:"text"`
	FileName  string `json:"file_name"`
	SourceURI string `json:"source_uri"`
}

// Chunk is a sized text segment with its section context, ready for indexing.
type Chunk struct {
	Text        string `json:"text"`
	Page        int    `json:"page"`
	FileName    string `json:"file_name"`
	SourceURI   string `json:"source_uri"`
	SectionPath string `json:"section_path"` // e.g. "2 Environment > 2.1 Emissions"
}

// SectionSeparator joins section path entries.
const SectionSeparator = " > "

// SectionPath is the stack of numbered headings active at a point in a page.
type SectionPath []string

// Update returns the path after entering a heading at the given depth.
// Entries at the same or deeper level are dropped first.
func (p SectionPath) Update(heading string, depth int) SectionPath {
	keep := depth - 1
	if keep < 0 {
		keep = 0
	}
	if keep > len(p) {
		keep = len(p)
	}
	out := make(SectionPath, keep, keep+1)
	copy(out, p[:keep])
	return append(out, heading)
}

func (p SectionPath) String() string {
	return strings.Join(p, SectionSeparator)
}
