// Package measure estimates the rendered height of HTML blocks at a fixed
// content width. It replaces the hidden staging element a browser would use.
package measure

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/dgallion1/pageflow/internal/dom"
	"github.com/dgallion1/pageflow/internal/doctree"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mattn/go-runewidth"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"
)

// Config controls the box model used for estimates. All values are px.
type Config struct {
	ContentWidth float64 // 190mm at 96dpi by default.
	FontSize     float64
	LineHeight   float64 // Multiplier of the font size.
	CacheSize    int     // Distinct markup heights kept.
}

// DefaultConfig matches the portal's A4 letters.
func DefaultConfig() Config {
	return Config{
		ContentWidth: 718,
		FontSize:     16,
		LineHeight:   1.5,
		CacheSize:    4096,
	}
}

const (
	blockGap     = 16 // margin-bottom of p, ul, ol, pre, table
	headingGap   = 8
	cellPadding  = 8
	controlH     = 38
	textareaPad  = 14
	listIndent   = 32
	monoAdvance  = 0.6 // cell width as a fraction of the font size
	headingLineH = 1.2
)

var headingScale = map[atom.Atom]float64{
	atom.H1: 2.5,
	atom.H2: 2,
	atom.H3: 1.75,
	atom.H4: 1.5,
	atom.H5: 1.25,
	atom.H6: 1,
}

type faceKey struct {
	size float64
	bold bool
}

// TextMeasurer estimates heights from Go font metrics. It is safe for
// concurrent use; each measurement borrows its own font faces.
type TextMeasurer struct {
	cfg     Config
	regular *opentype.Font
	bold    *opentype.Font

	cache *lru.Cache[string, float64]
	boxes sync.Pool // *box
}

// New parses the embedded Go fonts and returns a measurer.
func New(cfg Config) (*TextMeasurer, error) {
	def := DefaultConfig()
	if cfg.ContentWidth <= 0 {
		cfg.ContentWidth = def.ContentWidth
	}
	if cfg.FontSize <= 0 {
		cfg.FontSize = def.FontSize
	}
	if cfg.LineHeight <= 0 {
		cfg.LineHeight = def.LineHeight
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}

	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}
	cache, err := lru.New[string, float64](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create height cache: %w", err)
	}
	m := &TextMeasurer{
		cfg:     cfg,
		regular: regular,
		bold:    bold,
		cache:   cache,
	}
	m.boxes.New = func() any {
		return &box{m: m, faces: make(map[faceKey]font.Face)}
	}
	return m, nil
}

// Config returns the effective configuration.
func (m *TextMeasurer) Config() Config {
	return m.cfg
}

// Cached returns the number of markup heights currently cached.
func (m *TextMeasurer) Cached() int {
	return m.cache.Len()
}

// FragmentHeight measures header or footer markup.
func (m *TextMeasurer) FragmentHeight(f doctree.Fragment) float64 {
	return m.markupHeight(f.Markup)
}

// SliceHeight measures nodes stacked in order.
func (m *TextMeasurer) SliceHeight(nodes []doctree.ContentNode) float64 {
	var h float64
	for _, n := range nodes {
		h += m.markupHeight(n.Markup)
	}
	return h
}

// MarkupHeight measures arbitrary markup.
func (m *TextMeasurer) MarkupHeight(markup string) float64 {
	return m.markupHeight(markup)
}

func (m *TextMeasurer) markupHeight(markup string) float64 {
	if h, ok := m.cache.Get(markup); ok {
		return h
	}
	nodes, err := dom.ParseFragment(markup, dom.ContextTag(markup))
	if err != nil {
		// Unparseable markup still occupies its text.
		nodes = []*html.Node{{Type: html.TextNode, Data: markup}}
	}
	holder := dom.Element("div", "")
	for _, n := range nodes {
		holder.AppendChild(n)
	}

	b := m.boxes.Get().(*box)
	h := b.flow(holder, m.cfg.ContentWidth, m.cfg.FontSize)
	m.boxes.Put(b)

	m.cache.Add(markup, h)
	return h
}

// box lays out one block tree. Font faces keep per-face scratch buffers,
// so a box is used by one goroutine at a time.
type box struct {
	m     *TextMeasurer
	faces map[faceKey]font.Face
}

// flow stacks the children of n: runs of inline content are wrapped into
// lines, block children are measured on their own.
func (b *box) flow(n *html.Node, width, size float64) float64 {
	var h float64
	var run strings.Builder
	bold := false

	flush := func() {
		if run.Len() > 0 {
			h += b.wrap(run.String(), width, size, bold)
			run.Reset()
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.TextNode:
			run.WriteString(c.Data)
		case c.Type == html.ElementNode && isInline(c):
			if c.DataAtom == atom.B || c.DataAtom == atom.Strong {
				bold = true
			}
			run.WriteString(inlineText(c))
		case c.Type == html.ElementNode:
			flush()
			h += b.block(c, width, size)
		}
	}
	flush()
	return h
}

func (b *box) block(n *html.Node, width, size float64) float64 {
	if v := dom.Attr(n, "data-height"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			return f
		}
	}
	if strings.Contains(strings.ReplaceAll(dom.Attr(n, "style"), " ", ""), "display:none") {
		return 0
	}

	if scale, ok := headingScale[n.DataAtom]; ok {
		hs := size * scale
		lines := b.lines(dom.TextContent(n), width, hs, true)
		return float64(lines)*hs*headingLineH + headingGap
	}

	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Head, atom.Meta, atom.Link, atom.Title, atom.Template:
		return 0
	case atom.Br:
		return size * b.m.cfg.LineHeight
	case atom.Hr:
		return 1 + blockGap
	case atom.Img:
		return attrFloat(n, "height")
	case atom.Input:
		if strings.EqualFold(dom.Attr(n, "type"), "hidden") {
			return 0
		}
		return controlH
	case atom.Select, atom.Button:
		return controlH
	case atom.Textarea:
		rows := attrFloat(n, "rows")
		if rows <= 0 {
			rows = 2
		}
		return rows*size*b.m.cfg.LineHeight + textareaPad
	case atom.Table:
		return b.rows(n, width, size) + blockGap
	case atom.Thead, atom.Tbody, atom.Tfoot:
		return b.rows(n, width, size)
	case atom.Tr:
		return b.row(n, width, size)
	case atom.Pre:
		return b.mono(dom.TextContent(n), width, size) + blockGap
	case atom.P, atom.Blockquote:
		return b.flow(n, width, size) + blockGap
	case atom.Ul, atom.Ol:
		return b.flow(n, width-listIndent, size) + blockGap
	}
	return b.flow(n, width, size)
}

func (b *box) rows(n *html.Node, width, size float64) float64 {
	var h float64
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Tr:
			h += b.row(c, width, size)
		case atom.Thead, atom.Tbody, atom.Tfoot:
			h += b.rows(c, width, size)
		case atom.Caption:
			h += b.flow(c, width, size)
		}
	}
	return h
}

// row is as tall as its tallest cell; cells share the width evenly.
func (b *box) row(tr *html.Node, width, size float64) float64 {
	var cells []*html.Node
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
			cells = append(cells, c)
		}
	}
	if len(cells) == 0 {
		return 0
	}
	cellW := width/float64(len(cells)) - 2*cellPadding
	if cellW < size {
		cellW = size
	}
	var tallest float64
	for _, c := range cells {
		if h := b.flow(c, cellW, size); h > tallest {
			tallest = h
		}
	}
	if tallest == 0 {
		tallest = size * b.m.cfg.LineHeight
	}
	return tallest + 2*cellPadding
}

func (b *box) wrap(text string, width, size float64, bold bool) float64 {
	return float64(b.lines(text, width, size, bold)) * size * b.m.cfg.LineHeight
}

// lines greedily word-wraps text and returns the line count.
func (b *box) lines(text string, width, size float64, bold bool) int {
	words := strings.Fields(norm.NFC.String(text))
	if len(words) == 0 {
		return 0
	}
	face := b.face(size, bold)
	space := advance(face, " ")

	lines := 1
	var cur float64
	for _, w := range words {
		ww := advance(face, w)
		if ww > width {
			// An unbreakable word spills over several lines.
			if cur > 0 {
				lines++
			}
			extra := int(math.Ceil(ww/width)) - 1
			lines += extra
			cur = ww - float64(extra)*width
			continue
		}
		switch {
		case cur == 0:
			cur = ww
		case cur+space+ww <= width:
			cur += space + ww
		default:
			lines++
			cur = ww
		}
	}
	return lines
}

// mono wraps preformatted text by terminal cell width.
func (b *box) mono(text string, width, size float64) float64 {
	cols := int(width / (size * monoAdvance))
	if cols < 1 {
		cols = 1
	}
	var lines int
	for _, l := range strings.Split(norm.NFC.String(text), "\n") {
		w := runewidth.StringWidth(l)
		if w == 0 {
			lines++
			continue
		}
		lines += (w + cols - 1) / cols
	}
	return float64(lines) * size * b.m.cfg.LineHeight
}

func (b *box) face(size float64, bold bool) font.Face {
	key := faceKey{size: size, bold: bold}
	if f, ok := b.faces[key]; ok {
		return f
	}
	src := b.m.regular
	if bold {
		src = b.m.bold
	}
	f, err := opentype.NewFace(src, &opentype.FaceOptions{
		Size:    size,
		DPI:     72, // 1pt == 1px
		Hinting: font.HintingNone,
	})
	if err != nil {
		// Fall back to the default size, which always parses.
		f, _ = opentype.NewFace(src, &opentype.FaceOptions{Size: 16, DPI: 72})
	}
	b.faces[key] = f
	return f
}

func advance(f font.Face, s string) float64 {
	return float64(font.MeasureString(f, s)) / 64
}

func isInline(n *html.Node) bool {
	switch n.DataAtom {
	case atom.A, atom.Abbr, atom.B, atom.Code, atom.Em, atom.Font, atom.I,
		atom.Label, atom.Mark, atom.S, atom.Small, atom.Span, atom.Strong,
		atom.Sub, atom.Sup, atom.U, atom.Time, atom.Q, atom.Kbd, atom.Var:
		return true
	}
	return false
}

func inlineText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func attrFloat(n *html.Node, key string) float64 {
	v := strings.TrimSuffix(dom.Attr(n, key), "px")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}
