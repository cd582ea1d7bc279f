package chunker

import (
	"regexp"
	"strings"

	"github.com/dgallion1/factgest/internal/doctree"
)

// Config controls chunking behavior.
type Config struct {
	ChunkSize    int // Target chunk size in tokens.
	ChunkOverlap int // Overlap carried into the next chunk, in tokens.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    1100,
		ChunkOverlap: 150,
	}
}

// headingRe matches numbered headings such as "2 Climate Strategy" or
// "3.4.2 Scope 3 methodology" on the first line of a paragraph.
var headingRe = regexp.MustCompile(`^(\d+(?:\.\d+)*)([.\s]+)([A-Z][^\n]{2,100})$`)

// DetectHeading returns the normalized "<number> <title>" heading and its
// depth if the paragraph starts with a numbered heading.
func DetectHeading(para string) (heading string, depth int, ok bool) {
	first, _, _ := strings.Cut(strings.TrimSpace(para), "\n")
	m := headingRe.FindStringSubmatch(strings.TrimSpace(first))
	if m == nil {
		return "", 0, false
	}
	num := m[1]
	title := strings.TrimSpace(m[3])
	return num + " " + title, strings.Count(num, ".") + 1, true
}

// ChunkPage splits one page into paragraph-aligned chunks, tracking the
// section path from numbered headings. Each chunk carries the section path
// active when it was flushed. Consecutive chunks share trailing paragraphs
// worth at most overlap tokens.
func ChunkPage(rec doctree.PageRecord, chunkSize, overlap int) []doctree.Chunk {
	var (
		chunks    []doctree.Chunk
		buf       []string
		bufTokens int
		path      doctree.SectionPath
	)

	emit := func() {
		chunks = append(chunks, doctree.Chunk{
			Text:        strings.Join(buf, "\n\n"),
			Page:        rec.Page,
			FileName:    rec.FileName,
			SourceURI:   rec.SourceURI,
			SectionPath: path.String(),
		})
	}

	for _, para := range splitByParagraphs(rec.Text) {
		if heading, depth, ok := DetectHeading(para); ok {
			path = path.Update(heading, depth)
		}

		ptoks := EstimateTokens(para)
		if len(buf) > 0 && bufTokens+ptoks > chunkSize {
			emit()
			carried, carriedTokens := overlapTail(buf, overlap)
			buf = append(carried, para)
			bufTokens = carriedTokens + ptoks
			continue
		}
		buf = append(buf, para)
		bufTokens += ptoks
	}

	if len(buf) > 0 {
		emit()
	}
	return chunks
}

// ChunkPages chunks each page in order. Pages with no text are skipped.
func ChunkPages(recs []doctree.PageRecord, cfg Config) []doctree.Chunk {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultConfig().ChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
	}

	var chunks []doctree.Chunk
	for _, rec := range recs {
		if strings.TrimSpace(rec.Text) == "" {
			continue
		}
		chunks = append(chunks, ChunkPage(rec, cfg.ChunkSize, cfg.ChunkOverlap)...)
	}
	return chunks
}

// overlapTail returns the longest run of trailing paragraphs whose token
// sum stays within budget. The walk stops at the first paragraph that
// would exceed it.
func overlapTail(buf []string, budget int) ([]string, int) {
	sum := 0
	start := len(buf)
	for i := len(buf) - 1; i >= 0; i-- {
		t := EstimateTokens(buf[i])
		if sum+t > budget {
			break
		}
		sum += t
		start = i
	}
	out := make([]string, len(buf)-start, len(buf)-start+1)
	copy(out, buf[start:])
	return out, sum
}

// splitByParagraphs splits on double-newlines.
func splitByParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
