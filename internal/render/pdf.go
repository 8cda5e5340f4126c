package render

import (
	"fmt"
	"io"

	"github.com/dgallion1/pageflow/internal/doctree"
	"github.com/go-pdf/fpdf"
)

// PDFOptions controls PDF output. Layout heights are in px and are scaled
// so that PageHeightPx maps to the A4 page.
type PDFOptions struct {
	PageHeightPx float64
	FontSize     float64 // pt
	LineHeight   float64 // mm
}

// DefaultPDFOptions matches the default page geometry.
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		PageHeightPx: 1122,
		FontSize:     11,
		LineHeight:   5,
	}
}

// PDF writes one A4 page per layout page. Automatic page breaks are off:
// the layout decides where pages end, and text that still overflows the
// space between header and footer continues on an extra sheet.
func PDF(w io.Writer, layout *doctree.Layout, opts PDFOptions) error {
	def := DefaultPDFOptions()
	if opts.PageHeightPx <= 0 {
		opts.PageHeightPx = def.PageHeightPx
	}
	if opts.FontSize <= 0 {
		opts.FontSize = def.FontSize
	}
	if opts.LineHeight <= 0 {
		opts.LineHeight = def.LineHeight
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, pageH := pdf.GetPageSize()
	left, top, right, _ := pdf.GetMargins()
	width := pageW - left - right
	bottom := pageH - 10
	scale := pageH / opts.PageHeightPx

	footerH := layout.FooterHeight * scale
	if footerH < opts.LineHeight {
		footerH = opts.LineHeight
	}
	contentTop := top + layout.HeaderHeight*scale
	contentBottom := bottom - footerH

	// frame starts a PDF page carrying the header, footer and page label.
	frame := func(p doctree.Page) {
		pdf.AddPage()
		if layout.Header.Text != "" {
			pdf.SetFont("Helvetica", "B", opts.FontSize)
			pdf.SetXY(left, top)
			pdf.MultiCell(width, opts.LineHeight, tr(layout.Header.Text), "", "L", false)
		}
		if layout.Footer.Text != "" {
			pdf.SetFont("Helvetica", "", opts.FontSize)
			pdf.SetXY(left, bottom-footerH)
			pdf.MultiCell(width, opts.LineHeight, tr(layout.Footer.Text), "", "L", false)
		}
		pdf.SetFont("Helvetica", "", opts.FontSize)
		pdf.SetXY(left, bottom-opts.LineHeight)
		pdf.CellFormat(width, opts.LineHeight, fmt.Sprintf("%d / %d", p.Number, len(layout.Pages)), "", 0, "R", false, 0, "")
	}

	for _, p := range layout.Pages {
		frame(p)
		y := contentTop
		for _, n := range p.Nodes {
			if n.Text == "" {
				continue
			}
			for _, line := range pdf.SplitLines([]byte(tr(n.Text)), width) {
				// Text that the estimate did not fit, or an oversized node,
				// continues on an extra sheet instead of running into the footer.
				if y+opts.LineHeight > contentBottom && y > contentTop {
					frame(p)
					y = contentTop
				}
				pdf.SetXY(left, y)
				pdf.CellFormat(width, opts.LineHeight, string(line), "", 0, "L", false, 0, "")
				y += opts.LineHeight
			}
			y += opts.LineHeight / 2
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
