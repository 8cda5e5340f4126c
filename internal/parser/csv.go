package parser

import (
	"encoding/csv"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/dgallion1/pageflow/internal/doctree"
)

// CSVParser handles CSV files. The column names are repeated in the header
// of every page and each record is one table row.
type CSVParser struct {
	opts Options
}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	doc := newDocument(trimExt(filename, ".csv"), p.opts)
	doc.ContentTag = "tbody"

	if len(records) == 0 {
		return doc, nil
	}

	// First row is headers.
	headers := records[0]
	doc.Header = fragment(p.opts.Header + `<table class="csv-columns">` + tableRow("th", headers) + `</table>`)

	for _, row := range records[1:] {
		addNode(doc, tableRow("td", row), strings.Join(row, ", "))
	}

	return doc, nil
}

func tableRow(cell string, values []string) string {
	var b strings.Builder
	b.WriteString("<tr>")
	for _, v := range values {
		b.WriteString("<" + cell + ">" + html.EscapeString(v) + "</" + cell + ">")
	}
	b.WriteString("</tr>")
	return b.String()
}
