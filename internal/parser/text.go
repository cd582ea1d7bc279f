package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/factgest/internal/doctree"
)

// TextParser handles plain text files. Form feeds separate pages, blank
// lines separate paragraphs.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) ([]doctree.PageRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	b := newPageBuilder(filename)
	var current strings.Builder
	flush := func() {
		b.add(current.String())
		current.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()
		for {
			before, after, found := strings.Cut(line, "\f")
			appendLine(&current, before, flush)
			if !found {
				break
			}
			flush()
			b.breakPage()
			line = after
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return b.records(), nil
}

func appendLine(current *strings.Builder, line string, flush func()) {
	if strings.TrimSpace(line) == "" {
		flush()
		return
	}
	if current.Len() > 0 {
		current.WriteString("\n")
	}
	current.WriteString(line)
}
