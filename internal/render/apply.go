// Package render turns a Layout into page containers: inside a live DOM,
// as a standalone HTML document, or as a PDF.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dgallion1/pageflow/internal/doctree"
	"github.com/dgallion1/pageflow/internal/dom"
	"golang.org/x/net/html"
)

// Apply replaces any previously generated pages under the anchors' shared
// container with the pages of layout, inserted after the original page
// container, and sets the original's visibility. It returns false without
// touching the tree when an anchor is missing.
func Apply(root *html.Node, sel dom.Selectors, layout *doctree.Layout) (bool, error) {
	a, ok := dom.FindAnchors(root, sel)
	if !ok {
		return false, nil
	}

	RemoveGenerated(a.Container)

	after := a.Original
	for _, p := range layout.Pages {
		page, err := buildPage(p, layout, sel, a.Content.Data)
		if err != nil {
			return false, err
		}
		a.Container.InsertBefore(page, after.NextSibling)
		after = page
	}

	setVisible(a.Original, layout.Original.Visible)
	return true, nil
}

// RemoveGenerated detaches the page containers a previous run created.
func RemoveGenerated(container *html.Node) int {
	removed := 0
	for c := container.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && dom.Attr(c, dom.GeneratedAttr) == "generated" {
			container.RemoveChild(c)
			removed++
		}
		c = next
	}
	return removed
}

func buildPage(p doctree.Page, layout *doctree.Layout, sel dom.Selectors, contentTag string) (*html.Node, error) {
	page := dom.Element("div", sel.Page)
	dom.SetAttr(page, dom.GeneratedAttr, "generated")
	dom.SetAttr(page, "data-page-number", strconv.Itoa(p.Number))

	if err := appendMarkup(page, layout.Header.Markup, "div"); err != nil {
		return nil, fmt.Errorf("page %d header: %w", p.Number, err)
	}

	outer, inner := contentElement(contentTag, sel.Content)
	for _, n := range p.Nodes {
		if err := appendMarkup(inner, n.Markup, inner.Data); err != nil {
			return nil, fmt.Errorf("page %d node %d: %w", p.Number, n.Index, err)
		}
	}
	page.AppendChild(outer)

	if err := appendMarkup(page, layout.Footer.Markup, "div"); err != nil {
		return nil, fmt.Errorf("page %d footer: %w", p.Number, err)
	}
	return page, nil
}

// contentElement builds the content container. Table sections get a
// wrapping table so the rows stay valid markup.
func contentElement(tag, class string) (outer, inner *html.Node) {
	switch tag {
	case "", "div":
		n := dom.Element("div", class)
		return n, n
	case "tbody", "thead", "tfoot":
		table := dom.Element("table", class)
		body := dom.Element(tag, "")
		table.AppendChild(body)
		return table, body
	}
	n := dom.Element(tag, class)
	return n, n
}

func appendMarkup(parent *html.Node, markup, context string) error {
	if markup == "" {
		return nil
	}
	nodes, err := dom.ParseFragment(markup, context)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		parent.AppendChild(n)
	}
	return nil
}

func setVisible(n *html.Node, visible bool) {
	var kept []string
	for _, decl := range strings.Split(dom.Attr(n, "style"), ";") {
		d := strings.TrimSpace(decl)
		if d == "" || strings.ReplaceAll(d, " ", "") == "display:none" {
			continue
		}
		kept = append(kept, d)
	}
	if !visible {
		kept = append(kept, "display:none")
	}
	if len(kept) == 0 {
		dom.RemoveAttr(n, "style")
		return
	}
	dom.SetAttr(n, "style", strings.Join(kept, ";"))
}
