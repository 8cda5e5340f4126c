package render

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dgallion1/pageflow/internal/doctree"
	"github.com/dgallion1/pageflow/internal/dom"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const printCSS = `@page { size: A4; margin: 0; }
body { margin: 0; }
.%[1]s { width: 210mm; height: 297mm; padding: 10mm; box-sizing: border-box;
  display: flex; flex-direction: column; page-break-after: always; }
.%[1]s .%[2]s { flex: 1; }
`

// Standalone writes a complete HTML document holding only the generated
// pages. Used for inputs that had no page markup of their own.
func Standalone(w io.Writer, layout *doctree.Layout, sel dom.Selectors, title, contentTag string) error {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	root := dom.Element("html", "")
	head := dom.Element("head", "")
	meta := dom.Element("meta", "")
	dom.SetAttr(meta, "charset", "utf-8")
	head.AppendChild(meta)

	t := dom.Element("title", "")
	t.AppendChild(&html.Node{Type: html.TextNode, Data: title})
	head.AppendChild(t)

	style := dom.Element("style", "")
	style.AppendChild(&html.Node{Type: html.TextNode, Data: fmt.Sprintf(printCSS, sel.Page, sel.Content)})
	head.AppendChild(style)
	root.AppendChild(head)

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	container := dom.Element("div", "pageflow-container")
	for _, p := range layout.Pages {
		page, err := buildPage(p, layout, sel, contentTag)
		if err != nil {
			return err
		}
		container.AppendChild(page)
	}
	body.AppendChild(container)
	root.AppendChild(body)
	doc.AppendChild(root)

	return html.Render(w, doc)
}

// HTML renders a whole tree, typically one Apply has just updated.
func HTML(root *html.Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}
