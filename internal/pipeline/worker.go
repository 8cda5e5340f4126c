package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/pageflow/internal/doctree"
	"github.com/dgallion1/pageflow/internal/dom"
	"github.com/dgallion1/pageflow/internal/pageflow"
	"github.com/dgallion1/pageflow/internal/parser"
	"github.com/dgallion1/pageflow/internal/render"
	"github.com/dgallion1/pageflow/internal/stats"
)

// Worker paginates a single document job.
type Worker struct {
	measure   pageflow.Measurer
	selectors dom.Selectors
	stats     *stats.Pagination
	log       *slog.Logger

	pdfFallback bool
	pdfOpts     render.PDFOptions
}

func NewWorker(m pageflow.Measurer, sel dom.Selectors, st *stats.Pagination, log *slog.Logger, pdfFallback bool) *Worker {
	return &Worker{
		measure:     m,
		selectors:   sel,
		stats:       st,
		log:         log,
		pdfFallback: pdfFallback,
		pdfOpts:     render.DefaultPDFOptions(),
	}
}

// Process runs parse, paginate and render for a job. The job ends in a
// terminal status.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)
	req := job.Request()
	start := time.Now()

	if err := ctx.Err(); err != nil {
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "cancelled")
		return
	}

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFile(req.Filename, parser.Options{
		Selectors:            w.selectors,
		Header:               req.Header,
		Footer:               req.Footer,
		PDFFallbackPdftotext: w.pdfFallback,
	})
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	doc, err := p.Parse(bytes.NewReader(req.Data), req.Filename)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	if req.Title != "" {
		doc.Title = req.Title
	}
	if !doc.Paginable {
		log.Info("no pagination anchors, skipping")
		job.SetStatus(StatusSkipped, "parsing")
		return
	}
	job.SetNodes(len(doc.Nodes))

	// Phase 2: Paginate
	job.SetStatus(StatusPaginating, "paginating")
	layout, err := pageflow.Paginate(doc, w.measure, req.Options)
	if err != nil {
		log.Error("pagination failed", "error", err)
		job.AddError(fmt.Sprintf("paginate: %s", err))
		job.SetStatus(StatusFailed, "paginating")
		return
	}
	if n := layout.DegenerateCount(); n > 0 {
		log.Warn("oversized nodes placed alone", "degenerate_pages", n)
	}

	// Phase 3: Render
	job.SetStatus(StatusRendering, "rendering")
	res := &Result{Layout: layout}

	page, err := w.renderHTML(doc, layout)
	if err != nil {
		log.Error("html render failed", "error", err)
		job.AddError(fmt.Sprintf("render html: %s", err))
		job.SetStatus(StatusFailed, "rendering")
		return
	}
	res.HTML = page

	var pdfBuf bytes.Buffer
	pdfOpts := w.pdfOpts
	if req.Options.MaxPageHeight > 0 {
		pdfOpts.PageHeightPx = req.Options.MaxPageHeight
	}
	if err := render.PDF(&pdfBuf, layout, pdfOpts); err != nil {
		// The layout and HTML are still usable.
		log.Warn("pdf render failed", "error", err)
		job.AddError(fmt.Sprintf("render pdf: %s", err))
	} else {
		res.PDF = pdfBuf.Bytes()
	}

	job.SetResult(res)
	elapsed := time.Since(start)
	if w.stats != nil {
		w.stats.Record(stats.Run{
			Source:     job.source,
			Duration:   elapsed,
			Pages:      len(layout.Pages),
			Nodes:      layout.NodeCount(),
			Degenerate: layout.DegenerateCount(),
		})
	}
	log.Info("pagination complete", "pages", len(layout.Pages), "nodes", layout.NodeCount(), "duration_ms", elapsed.Milliseconds())
	job.SetStatus(StatusCompleted, "done")
}

// renderHTML applies the pages to the source tree of HTML inputs, keeping
// their head and surrounding markup. Other inputs get a standalone document.
func (w *Worker) renderHTML(doc *doctree.Document, layout *doctree.Layout) ([]byte, error) {
	if doc.Root != nil {
		ok, err := render.Apply(doc.Root, w.selectors, layout)
		if err != nil {
			return nil, err
		}
		if ok {
			return render.HTML(doc.Root)
		}
	}
	var buf bytes.Buffer
	if err := render.Standalone(&buf, layout, w.selectors, doc.Title, doc.ContentTag); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
