package parser

import (
	"strings"
	"testing"
)

func TestCSVParser_RowsAndRepeatedColumns(t *testing.T) {
	input := "name,dob,license\nAna,1990-01-01,TX123\nLuis,1985-05-05,TX456\n"
	p := &CSVParser{}
	doc, err := p.Parse(strings.NewReader(input), "drivers.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "drivers" {
		t.Errorf("expected title %q, got %q", "drivers", doc.Title)
	}
	if doc.ContentTag != "tbody" {
		t.Errorf("expected tbody content, got %q", doc.ContentTag)
	}
	if len(doc.Nodes) != 2 {
		t.Fatalf("expected 2 row nodes, got %d", len(doc.Nodes))
	}
	if doc.Nodes[0].Markup != "<tr><td>Ana</td><td>1990-01-01</td><td>TX123</td></tr>" {
		t.Errorf("unexpected row markup %q", doc.Nodes[0].Markup)
	}
	if !strings.Contains(doc.Header.Markup, "<th>license</th>") {
		t.Errorf("expected column names in header, got %q", doc.Header.Markup)
	}
}

func TestCSVParser_Empty(t *testing.T) {
	p := &CSVParser{}
	doc, err := p.Parse(strings.NewReader(""), "empty.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Nodes) != 0 {
		t.Errorf("expected no nodes, got %d", len(doc.Nodes))
	}
}
