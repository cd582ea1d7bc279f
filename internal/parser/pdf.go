package parser

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/dgallion1/factgest/internal/chunker"
	"github.com/dgallion1/factgest/internal/doctree"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser handles PDF files. It tries the Go library first,
// then falls back to pdftotext if available.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) ([]doctree.PageRecord, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "factgest-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	pages, err := extractPDFPages(tmpPath)
	if err != nil && p.FallbackPdftotext {
		pages, err = extractPdftotext(tmpPath)
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	var out []doctree.PageRecord
	for i, raw := range pages {
		text := pageParagraphs(cleanPageText(raw))
		if text == "" {
			continue
		}
		out = append(out, doctree.PageRecord{Page: i + 1, Text: text, FileName: filename})
	}
	return out, nil
}

// extractPDFPages returns the plain text of every page, in order. Pages
// that cannot be read come back empty so numbering stays aligned.
func extractPDFPages(path string) ([]string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	numPages := reader.NumPage()
	pages := make([]string, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages[i-1] = text
	}
	return pages, nil
}

func extractPdftotext(path string) ([]string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	pages := strings.Split(string(out), "\f")
	// pdftotext ends the last page with a form feed too.
	if n := len(pages); n > 1 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}
	return pages, nil
}

// cleanPageText drops page-number lines such as "12" or "Page 12".
func cleanPageText(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	kept := lines[:0]
	for _, ln := range lines {
		if isPageNumber(ln) {
			continue
		}
		kept = append(kept, ln)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func isPageNumber(line string) bool {
	trimmed := strings.TrimSpace(line)
	if allDigits(trimmed) {
		return true
	}
	if strings.HasPrefix(strings.ToLower(line), "page ") {
		return allDigits(strings.TrimSpace(line[5:]))
	}
	return false
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// pageParagraphs regroups extracted lines into paragraphs separated by
// blank lines. Numbered heading lines always start a paragraph of their own
// so the chunker can see them.
func pageParagraphs(text string) string {
	var (
		paras   []string
		current []string
	)
	flush := func() {
		if len(current) > 0 {
			paras = append(paras, strings.Join(current, "\n"))
			current = nil
		}
	}
	for _, ln := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(ln)
		if trimmed == "" {
			flush()
			continue
		}
		if _, _, ok := chunker.DetectHeading(trimmed); ok {
			flush()
			paras = append(paras, trimmed)
			continue
		}
		current = append(current, trimmed)
	}
	flush()
	return strings.Join(paras, "\n\n")
}
