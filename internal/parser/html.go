package parser

import (
	"fmt"
	"io"

	"github.com/dgallion1/pageflow/internal/doctree"
	"github.com/dgallion1/pageflow/internal/dom"
	"golang.org/x/net/html"
)

// HTMLParser handles HTML pages that carry header, footer and content
// anchors.
type HTMLParser struct {
	Selectors dom.Selectors
}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	doc := FromDOM(root, p.Selectors)
	doc.Title = trimExt(filename, ".html", ".htm")

	// Extract title from <title> tag if present.
	if title := findTitle(root); title != "" {
		doc.Title = title
	}
	return doc, nil
}

// FromDOM builds a Document from the live tree. When an anchor is missing
// the document is returned with Paginable unset and no nodes.
func FromDOM(root *html.Node, sel dom.Selectors) *doctree.Document {
	doc := &doctree.Document{Root: root}
	a, ok := dom.FindAnchors(root, sel)
	if !ok {
		return doc
	}

	doc.Paginable = true
	doc.ContentTag = a.Content.Data
	doc.Header = doctree.Fragment{Markup: dom.Outer(a.Header), Text: dom.TextContent(a.Header)}
	doc.Footer = doctree.Fragment{Markup: dom.Outer(a.Footer), Text: dom.TextContent(a.Footer)}

	for c := a.Content.FirstChild; c != nil; c = c.NextSibling {
		if dom.IsBlank(c) {
			continue
		}
		addNode(doc, dom.Outer(c), dom.TextContent(c))
	}
	return doc
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return dom.TextContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}
