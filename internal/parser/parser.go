package parser

import (
	"fmt"
	"html"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/pageflow/internal/doctree"
	"github.com/dgallion1/pageflow/internal/dom"
)

// Parser converts raw document bytes into a paginable Document.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.Document, error)
}

// Options carries what a parser cannot find in the input itself.
type Options struct {
	Selectors dom.Selectors // Anchor classes for HTML inputs.
	Header    string        // Header markup for non-HTML inputs.
	Footer    string        // Footer markup for non-HTML inputs.

	PDFFallbackPdftotext bool
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
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{opts: opts}, nil
	case ".md", ".markdown":
		return &MarkdownParser{opts: opts}, nil
	case ".csv":
		return &CSVParser{opts: opts}, nil
	case ".html", ".htm":
		return &HTMLParser{Selectors: opts.Selectors}, nil
	case ".pdf":
		return &PDFParser{opts: opts, FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{opts: opts}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// newDocument starts a document whose fragments come from opts.
func newDocument(title string, opts Options) *doctree.Document {
	return &doctree.Document{
		Title:      title,
		Header:     fragment(opts.Header),
		Footer:     fragment(opts.Footer),
		ContentTag: "div",
		Paginable:  true,
	}
}

func fragment(markup string) doctree.Fragment {
	f := doctree.Fragment{Markup: markup}
	if markup == "" {
		return f
	}
	nodes, err := dom.ParseFragment(markup, "div")
	if err != nil {
		f.Text = markup
		return f
	}
	var parts []string
	for _, n := range nodes {
		if t := dom.TextContent(n); t != "" {
			parts = append(parts, t)
		}
	}
	f.Text = strings.Join(parts, "\n")
	return f
}

func addNode(doc *doctree.Document, markup, text string) {
	doc.Nodes = append(doc.Nodes, doctree.ContentNode{
		Index:  len(doc.Nodes),
		Markup: markup,
		Text:   text,
	})
}

// paragraphMarkup escapes text and keeps its line breaks.
func paragraphMarkup(tag, text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = html.EscapeString(l)
	}
	return "<" + tag + ">" + strings.Join(lines, "<br/>") + "</" + tag + ">"
}

func trimExt(filename string, exts ...string) string {
	for _, ext := range exts {
		filename = strings.TrimSuffix(filename, ext)
	}
	return filename
}
