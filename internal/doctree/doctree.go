package doctree

import "golang.org/x/net/html"

// ContentNode is one atomic unit of paginated content. It is never split
// across pages and is copied, not moved, into page containers.
type ContentNode struct {
	Index  int    `json:"index"`  // Position in the source document
	Markup string `json:"markup"` // Rendered HTML of the node
	Text   string `json:"text"`   // Plain text content, used by the PDF renderer
}

// Fragment is static header or footer markup repeated on every page.
type Fragment struct {
	Markup string `json:"markup"`
	Text   string `json:"text"`
}

// Document is the ordered content to paginate plus its fragments.
type Document struct {
	Title  string
	Header Fragment
	Footer Fragment
	Nodes  []ContentNode

	// ContentTag is the element name of the content container; node markup
	// is re-parsed in that context when pages are rendered.
	ContentTag string

	// Paginable is false when the source had no header, footer or content
	// anchor. Such documents are passed through untouched.
	Paginable bool

	// Root is the parsed source tree for HTML inputs, nil otherwise.
	Root *html.Node
}

// Page is one generated page: header, a contiguous slice of nodes, footer.
type Page struct {
	Number     int           `json:"number"` // 1-based, in creation order
	Nodes      []ContentNode `json:"nodes"`
	Height     float64       `json:"content_height"`
	Degenerate bool          `json:"degenerate,omitempty"` // single node taller than the budget
}

// OriginalView records what happens to the source page container once the
// generated pages exist.
type OriginalView struct {
	Visible bool `json:"visible"`
}

// Layout is the declarative result of a pagination run. Renderers apply it.
type Layout struct {
	Header       Fragment     `json:"header"`
	Footer       Fragment     `json:"footer"`
	Pages        []Page       `json:"pages"`
	Budget       float64      `json:"budget"`
	HeaderHeight float64      `json:"header_height"`
	FooterHeight float64      `json:"footer_height"`
	Original     OriginalView `json:"original"`
}

// Partition returns the source indices held by each page, in page order.
func (l *Layout) Partition() [][]int {
	out := make([][]int, len(l.Pages))
	for i, p := range l.Pages {
		idx := make([]int, len(p.Nodes))
		for j, n := range p.Nodes {
			idx[j] = n.Index
		}
		out[i] = idx
	}
	return out
}

// DegenerateCount returns how many pages hold a single oversized node.
func (l *Layout) DegenerateCount() int {
	n := 0
	for _, p := range l.Pages {
		if p.Degenerate {
			n++
		}
	}
	return n
}

// NodeCount returns the total number of nodes placed across all pages.
func (l *Layout) NodeCount() int {
	n := 0
	for _, p := range l.Pages {
		n += len(p.Nodes)
	}
	return n
}
