// Package parser turns report files into page records.
package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/factgest/internal/doctree"
)

// Parser converts raw document bytes into page records. Formats without
// physical pages report their content as page 1 unless they carry explicit
// page breaks.
type Parser interface {
	Parse(r io.Reader, filename string) ([]doctree.PageRecord, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: true}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// pageBuilder accumulates paragraphs into numbered pages.
type pageBuilder struct {
	filename string
	page     int
	paras    []string
	out      []doctree.PageRecord
}

func newPageBuilder(filename string) *pageBuilder {
	return &pageBuilder{filename: filename, page: 1}
}

func (b *pageBuilder) add(para string) {
	para = strings.TrimSpace(para)
	if para != "" {
		b.paras = append(b.paras, para)
	}
}

// breakPage closes the current page. Empty pages still advance the number.
func (b *pageBuilder) breakPage() {
	if len(b.paras) > 0 {
		b.out = append(b.out, doctree.PageRecord{
			Page:     b.page,
			Text:     strings.Join(b.paras, "\n\n"),
			FileName: b.filename,
		})
	}
	b.paras = nil
	b.page++
}

func (b *pageBuilder) records() []doctree.PageRecord {
	if len(b.paras) > 0 {
		b.breakPage()
	}
	return b.out
}
