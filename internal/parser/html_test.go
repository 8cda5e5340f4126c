package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/pageflow/internal/dom"
)

const letterPage = `<!DOCTYPE html>
<html><head><title>Carta 5</title></head><body>
<div class="ajm-pdf-container">
  <div class="ajm-pdf-page">
    <div class="ajm-pdf-header-fixed"><img src="logo.png"/> ACME</div>
    <div class="ajm-pdf-content">
      <!-- drivers -->
      <p>Dear client,</p>
      <table><tbody id="drivers-tbody"><tr class="driver-row"><td>Ana</td></tr></tbody></table>
      <p>Regards</p>
    </div>
    <div class="ajm-pdf-footer-fixed">Houston</div>
  </div>
</div>
</body></html>`

func TestHTMLParser_ReadsAnchors(t *testing.T) {
	p := &HTMLParser{Selectors: dom.DefaultSelectors()}
	doc, err := p.Parse(strings.NewReader(letterPage), "carta5.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !doc.Paginable {
		t.Fatal("expected document to be paginable")
	}
	if doc.Title != "Carta 5" {
		t.Errorf("expected title from <title>, got %q", doc.Title)
	}
	if doc.Root == nil {
		t.Error("expected parsed root to be kept")
	}
	if doc.ContentTag != "div" {
		t.Errorf("expected content tag div, got %q", doc.ContentTag)
	}
	if len(doc.Nodes) != 3 {
		t.Fatalf("expected 3 nodes (comment and whitespace skipped), got %d", len(doc.Nodes))
	}
	if !strings.HasPrefix(doc.Nodes[1].Markup, "<table>") {
		t.Errorf("expected table node, got %q", doc.Nodes[1].Markup)
	}
	if !strings.Contains(doc.Header.Markup, `class="ajm-pdf-header-fixed"`) {
		t.Errorf("expected header outer markup, got %q", doc.Header.Markup)
	}
	if doc.Footer.Text != "Houston" {
		t.Errorf("expected footer text %q, got %q", "Houston", doc.Footer.Text)
	}
}

func TestHTMLParser_MissingAnchorsIsNotAnError(t *testing.T) {
	p := &HTMLParser{Selectors: dom.DefaultSelectors()}
	doc, err := p.Parse(strings.NewReader(`<html><body><p>plain page</p></body></html>`), "plain.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Paginable {
		t.Error("expected document without anchors to be non-paginable")
	}
	if len(doc.Nodes) != 0 {
		t.Errorf("expected no nodes, got %d", len(doc.Nodes))
	}
	if doc.Title != "plain" {
		t.Errorf("expected title from filename, got %q", doc.Title)
	}
}

func TestForFile(t *testing.T) {
	tests := []struct {
		filename string
		wantErr  bool
	}{
		{"a.html", false},
		{"a.HTM", false},
		{"a.md", false},
		{"a.txt", false},
		{"a.csv", false},
		{"a.docx", false},
		{"a.pdf", false},
		{"a.exe", true},
	}
	for _, tt := range tests {
		_, err := ForFile(tt.filename, Options{})
		if (err != nil) != tt.wantErr {
			t.Errorf("ForFile(%q): wantErr=%v, got %v", tt.filename, tt.wantErr, err)
		}
		if IsSupportedExtension(tt.filename) == tt.wantErr {
			t.Errorf("IsSupportedExtension(%q) disagrees with ForFile", tt.filename)
		}
	}
}
