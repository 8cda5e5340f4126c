package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/pageflow/internal/doctree"
)

// TextParser handles plain text files.
type TextParser struct {
	opts Options
}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var paragraphs []string
	var current strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		} else {
			if current.Len() > 0 {
				current.WriteString("\n")
			}
			current.WriteString(line)
		}
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	doc := newDocument(trimExt(filename, ".txt"), p.opts)

	// Each paragraph becomes one content node.
	for _, para := range paragraphs {
		addNode(doc, paragraphMarkup("p", para), para)
	}

	return doc, nil
}
