package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/factgest/internal/doctree"
)

// csvRowsPerPage is how many data rows make up one page record.
const csvRowsPerPage = 20

// CSVParser handles CSV files. Every batch of data rows becomes one page,
// each row a paragraph of "header: value" pairs.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) ([]doctree.PageRecord, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	// First row is headers.
	headers := records[0]
	dataRows := records[1:]

	b := newPageBuilder(filename)
	for i := 0; i < len(dataRows); i += csvRowsPerPage {
		end := min(i+csvRowsPerPage, len(dataRows))
		b.add(fmt.Sprintf("Rows %d-%d. Headers: %s", i+2, end+1, strings.Join(headers, ", ")))
		for _, row := range dataRows[i:end] {
			b.add(rowPairs(headers, row))
		}
		b.breakPage()
	}
	return b.records(), nil
}

func rowPairs(headers, row []string) string {
	var text strings.Builder
	for j, cell := range row {
		if j > 0 {
			text.WriteString(", ")
		}
		if j < len(headers) {
			text.WriteString(headers[j] + ": " + cell)
		} else {
			text.WriteString(cell)
		}
	}
	return text.String()
}
