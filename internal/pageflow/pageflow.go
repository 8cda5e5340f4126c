// Package pageflow splits a content stream into bounded-height pages that
// repeat a header and footer.
package pageflow

import (
	"errors"
	"fmt"

	"github.com/dgallion1/pageflow/internal/doctree"
)

// ErrFragmentTooTall means the header or footer alone fills a page, so no
// content could ever be placed.
var ErrFragmentTooTall = errors.New("header or footer does not fit on a page")

// Measurer reports rendered heights. Implementations stand in for the
// off-screen staging area of a browser.
type Measurer interface {
	FragmentHeight(f doctree.Fragment) float64
	SliceHeight(nodes []doctree.ContentNode) float64
}

// Options controls page geometry.
type Options struct {
	MaxPageHeight float64 // Physical page height in px.
	Margin        float64 // Fixed allowance subtracted from every page.
}

// DefaultOptions returns A4 at 96dpi with a 40px allowance.
func DefaultOptions() Options {
	return Options{
		MaxPageHeight: 1122,
		Margin:        40,
	}
}

// Paginate partitions doc.Nodes into pages using greedy first-fit.
//
// A node that does not fit on a page that already holds content starts a
// new page. A node that does not fit on an empty page is placed there alone
// and the page is marked degenerate. At least one page is always returned.
func Paginate(doc *doctree.Document, m Measurer, opts Options) (*doctree.Layout, error) {
	if opts.MaxPageHeight <= 0 {
		opts.MaxPageHeight = DefaultOptions().MaxPageHeight
	}
	if opts.Margin < 0 {
		opts.Margin = 0
	}

	headerH := m.FragmentHeight(doc.Header)
	footerH := m.FragmentHeight(doc.Footer)
	if headerH >= opts.MaxPageHeight || footerH >= opts.MaxPageHeight {
		return nil, fmt.Errorf("%w: header=%.1f footer=%.1f max=%.1f",
			ErrFragmentTooTall, headerH, footerH, opts.MaxPageHeight)
	}

	layout := &doctree.Layout{
		Header:       doc.Header,
		Footer:       doc.Footer,
		Budget:       opts.MaxPageHeight - headerH - footerH - opts.Margin,
		HeaderHeight: headerH,
		FooterHeight: footerH,
	}

	page := doctree.Page{Number: 1}
	closePage := func() {
		layout.Pages = append(layout.Pages, page)
		page = doctree.Page{Number: len(layout.Pages) + 1}
	}

	for i := 0; i < len(doc.Nodes); {
		candidate := make([]doctree.ContentNode, len(page.Nodes), len(page.Nodes)+1)
		copy(candidate, page.Nodes)
		candidate = append(candidate, doc.Nodes[i])
		h := m.SliceHeight(candidate)

		switch {
		case h <= layout.Budget:
			page.Nodes = candidate
			page.Height = h
			i++
		case len(page.Nodes) > 0:
			// Retry the same node on a fresh page.
			closePage()
		default:
			page.Nodes = candidate
			page.Height = h
			page.Degenerate = true
			i++
			closePage()
		}
	}

	if len(page.Nodes) > 0 || len(layout.Pages) == 0 {
		closePage()
	}

	// The source container stays in the tree as the print fallback.
	layout.Original.Visible = false
	return layout, nil
}

// Fits reports whether a page respects the height bound of its layout.
// Degenerate pages are exempt.
func Fits(l *doctree.Layout, p doctree.Page) bool {
	return p.Degenerate || p.Height <= l.Budget
}
