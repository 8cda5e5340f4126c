// Package dom locates pagination anchors in parsed HTML and provides the
// small set of tree operations the renderer and form helpers need.
package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// GeneratedAttr marks page containers created by a pagination run.
const GeneratedAttr = "data-pageflow"

// Selectors names the class of each anchor element.
type Selectors struct {
	Header  string `yaml:"header"`
	Footer  string `yaml:"footer"`
	Content string `yaml:"content"`
	Page    string `yaml:"page"`
}

// DefaultSelectors matches the portal's letter templates.
func DefaultSelectors() Selectors {
	return Selectors{
		Header:  "ajm-pdf-header-fixed",
		Footer:  "ajm-pdf-footer-fixed",
		Content: "ajm-pdf-content",
		Page:    "ajm-pdf-page",
	}
}

// Anchors are the elements a pagination run reads and writes.
type Anchors struct {
	Header    *html.Node
	Footer    *html.Node
	Content   *html.Node
	Original  *html.Node // Page container holding the source content.
	Container *html.Node // Parent of all page containers.
}

// FindAnchors returns the first header, footer and content element in
// document order. ok is false if any of them, or the content's ancestors,
// are missing.
func FindAnchors(root *html.Node, sel Selectors) (*Anchors, bool) {
	a := &Anchors{
		Header:  FindByClass(root, sel.Header),
		Footer:  FindByClass(root, sel.Footer),
		Content: FindByClass(root, sel.Content),
	}
	if a.Header == nil || a.Footer == nil || a.Content == nil {
		return nil, false
	}
	a.Original = a.Content.Parent
	if a.Original == nil || a.Original.Parent == nil {
		return nil, false
	}
	a.Container = a.Original.Parent
	return a, true
}

// FindByClass returns the first element carrying class in document order.
func FindByClass(n *html.Node, class string) *html.Node {
	if class == "" {
		return nil
	}
	if n.Type == html.ElementNode && HasClass(n, class) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := FindByClass(c, class); found != nil {
			return found
		}
	}
	return nil
}

// FindByID returns the first element with the given id.
func FindByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode && Attr(n, "id") == id {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := FindByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// ChildrenByClass returns the direct element children of n carrying class.
func ChildrenByClass(n *html.Node, class string) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && HasClass(c, class) {
			out = append(out, c)
		}
	}
	return out
}

// HasClass reports whether n's class attribute contains class.
func HasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(Attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// Attr returns the value of attribute key, or "".
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// SetAttr sets or replaces attribute key.
func SetAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes attribute key if present.
func RemoveAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			out = append(out, a)
		}
	}
	n.Attr = out
}

// Element creates a detached element with the given class.
func Element(tag, class string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	if class != "" {
		n.Attr = []html.Attribute{{Key: "class", Val: class}}
	}
	return n
}

// Clone returns a deep copy of n with no parent or siblings.
func Clone(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		c.Attr = make([]html.Attribute, len(n.Attr))
		copy(c.Attr, n.Attr)
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(Clone(child))
	}
	return c
}

// RemoveChildren detaches every child of n.
func RemoveChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

// Outer renders n including its own tag.
func Outer(n *html.Node) string {
	var b strings.Builder
	if err := html.Render(&b, n); err != nil {
		return ""
	}
	return b.String()
}

// Inner renders the children of n.
func Inner(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return ""
		}
	}
	return b.String()
}

// TextContent returns the concatenated, trimmed text under n.
func TextContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			buf.WriteString(n.Data)
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style:
				return
			case atom.Br, atom.P, atom.Div, atom.Tr, atom.Li:
				defer buf.WriteString("\n")
			case atom.Td, atom.Th:
				defer buf.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

// IsBlank reports whether n carries no content worth paginating:
// comments and whitespace-only text.
func IsBlank(n *html.Node) bool {
	switch n.Type {
	case html.CommentNode, html.DoctypeNode:
		return true
	case html.TextNode:
		return strings.TrimSpace(n.Data) == ""
	}
	return false
}

// ParseFragment parses markup as children of an element named tag.
func ParseFragment(markup, tag string) ([]*html.Node, error) {
	if tag == "" {
		tag = "div"
	}
	ctx := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	return html.ParseFragment(strings.NewReader(markup), ctx)
}

// ContextTag picks a parent element under which markup parses without the
// parser discarding it. Table rows, cells and list items need a matching
// parent.
func ContextTag(markup string) string {
	s := strings.TrimSpace(markup)
	if !strings.HasPrefix(s, "<") {
		return "div"
	}
	end := strings.IndexAny(s[1:], " \t\n/>")
	if end < 0 {
		return "div"
	}
	switch strings.ToLower(s[1 : end+1]) {
	case "tr":
		return "tbody"
	case "td", "th":
		return "tr"
	case "thead", "tbody", "tfoot", "caption", "colgroup":
		return "table"
	case "li":
		return "ul"
	case "option", "optgroup":
		return "select"
	}
	return "div"
}
