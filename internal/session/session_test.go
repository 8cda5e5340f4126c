package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgallion1/pageflow/internal/doctree"
	"github.com/dgallion1/pageflow/internal/dom"
	"github.com/dgallion1/pageflow/internal/form"
	"github.com/dgallion1/pageflow/internal/pageflow"
	"github.com/dgallion1/pageflow/internal/stats"
)

// flatMeasurer gives every node and fragment the same height.
type flatMeasurer struct {
	node, fragment float64
}

func (m flatMeasurer) FragmentHeight(doctree.Fragment) float64 { return m.fragment }
func (m flatMeasurer) SliceHeight(nodes []doctree.ContentNode) float64 {
	return float64(len(nodes)) * m.node
}

func letter(paragraphs int) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="ajm-pdf-container"><div class="ajm-pdf-page">`)
	b.WriteString(`<div class="ajm-pdf-header-fixed">H</div><div class="ajm-pdf-content">`)
	for i := range paragraphs {
		fmt.Fprintf(&b, "<p>p%d</p>", i)
	}
	b.WriteString(`<table><tbody id="drivers-tbody"></tbody></table>`)
	b.WriteString(`</div><div class="ajm-pdf-footer-fixed">F</div></div></div></body></html>`)
	return b.String()
}

type recorder struct {
	mu      sync.Mutex
	results []*Result
	errs    []error
	ch      chan struct{}
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan struct{}, 16)}
}

func (r *recorder) publish(res *Result, err error) {
	r.mu.Lock()
	if err != nil {
		r.errs = append(r.errs, err)
	} else {
		r.results = append(r.results, res)
	}
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a run")
	}
}

func (r *recorder) last() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.results) == 0 {
		return nil
	}
	return r.results[len(r.results)-1]
}

func newSession(t *testing.T, m pageflow.Measurer, delays Delays, rec *recorder) *Session {
	t.Helper()
	s := New(Config{
		Selectors: dom.DefaultSelectors(),
		Options:   pageflow.DefaultOptions(),
		Delays:    delays,
	}, m, rec.publish, stats.NewPagination(time.Hour), slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(s.Close)
	return s
}

func TestSession_LoadRunsAfterDelay(t *testing.T) {
	rec := newRecorder()
	s := newSession(t, flatMeasurer{node: 100, fragment: 100}, Delays{Load: 20 * time.Millisecond, Structural: time.Hour}, rec)

	// 9 paragraphs plus the drivers table: 10 nodes at 100px, 882px budget.
	if err := s.Load(letter(9)); err != nil {
		t.Fatalf("load: %v", err)
	}
	rec.wait(t)

	res := rec.last()
	if res == nil {
		t.Fatal("expected a result")
	}
	if res.Trigger != TriggerLoad {
		t.Errorf("expected load trigger, got %s", res.Trigger)
	}
	if len(res.Layout.Pages) != 2 || len(res.Layout.Pages[0].Nodes) != 8 {
		t.Fatalf("expected pages of 8 and 2 nodes, got %v", res.Layout.Partition())
	}
	if strings.Count(res.HTML, `data-pageflow="generated"`) != 2 {
		t.Errorf("expected 2 generated pages in the document")
	}
}

func TestSession_InputRunsImmediately(t *testing.T) {
	rec := newRecorder()
	s := newSession(t, flatMeasurer{node: 100, fragment: 100}, Delays{Load: time.Hour, Structural: time.Hour}, rec)

	if err := s.Load(letter(2)); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.Input("<p>only</p>"); err != nil {
		t.Fatalf("input: %v", err)
	}

	res := rec.last()
	if res == nil {
		t.Fatal("expected input to paginate before returning")
	}
	if res.Layout.NodeCount() != 1 {
		t.Errorf("expected 1 node after input, got %d", res.Layout.NodeCount())
	}

	// A second edit replaces the generated pages instead of adding to them.
	if err := s.Input("<p>a</p><p>b</p>"); err != nil {
		t.Fatalf("input: %v", err)
	}
	out, err := s.HTML()
	if err != nil {
		t.Fatalf("html: %v", err)
	}
	if n := strings.Count(out, `data-pageflow="generated"`); n != 1 {
		t.Errorf("expected 1 generated page, got %d", n)
	}
	if !strings.Contains(out, "display:none") {
		t.Error("expected the original page to be hidden")
	}
}

func TestSession_AddRowRunsStructural(t *testing.T) {
	rec := newRecorder()
	s := newSession(t, flatMeasurer{node: 10, fragment: 100}, Delays{Load: time.Hour, Structural: 10 * time.Millisecond}, rec)

	if err := s.Load(letter(1)); err != nil {
		t.Fatalf("load: %v", err)
	}
	names, err := s.AddRow(form.Driver)
	if err != nil {
		t.Fatalf("add row: %v", err)
	}
	if names[0] != "driver_name_1" {
		t.Errorf("expected first driver row, got %v", names)
	}
	rec.wait(t)

	res := rec.last()
	if res == nil || res.Trigger != TriggerStructural {
		t.Fatalf("expected a structural run, got %+v", res)
	}
	if !strings.Contains(res.HTML, `name="driver_name_1"`) {
		t.Error("expected the new row in the generated pages")
	}
}

func TestSession_MissingAnchorsPublishesNothing(t *testing.T) {
	rec := newRecorder()
	s := newSession(t, flatMeasurer{node: 100, fragment: 100}, Delays{Load: time.Hour, Structural: time.Hour}, rec)

	if err := s.Load(`<html><body><p>plain</p></body></html>`); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.Input("<p>x</p>"); err != nil {
		t.Fatalf("input: %v", err)
	}
	s.Repaginate()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.results) != 0 || len(rec.errs) != 0 {
		t.Fatalf("expected no publications, got %d results and %d errors", len(rec.results), len(rec.errs))
	}
}

func TestSession_FragmentTooTallKeepsPriorPages(t *testing.T) {
	rec := newRecorder()
	m := &switchMeasurer{flat: flatMeasurer{node: 100, fragment: 100}}
	s := newSession(t, m, Delays{Load: time.Hour, Structural: time.Hour}, rec)

	if err := s.Load(letter(3)); err != nil {
		t.Fatalf("load: %v", err)
	}
	s.Repaginate()
	before, _ := s.HTML()

	m.tall.Store(true)
	s.Repaginate()

	rec.mu.Lock()
	errs := rec.errs
	rec.mu.Unlock()
	if len(errs) != 1 || !errors.Is(errs[0], pageflow.ErrFragmentTooTall) {
		t.Fatalf("expected ErrFragmentTooTall, got %v", errs)
	}
	after, _ := s.HTML()
	if after != before {
		t.Error("expected the document to be unchanged after a failed run")
	}
}

func TestSession_EditsBeforeLoad(t *testing.T) {
	rec := newRecorder()
	s := newSession(t, flatMeasurer{}, DefaultDelays(), rec)
	if err := s.Input("<p>x</p>"); !errors.Is(err, ErrNoDocument) {
		t.Errorf("expected ErrNoDocument from Input, got %v", err)
	}
	if _, err := s.AddRow(form.Unit); !errors.Is(err, ErrNoDocument) {
		t.Errorf("expected ErrNoDocument from AddRow, got %v", err)
	}
}

type switchMeasurer struct {
	flat flatMeasurer
	tall atomic.Bool
}

func (m *switchMeasurer) FragmentHeight(f doctree.Fragment) float64 {
	if m.tall.Load() {
		return 5000
	}
	return m.flat.FragmentHeight(f)
}

func (m *switchMeasurer) SliceHeight(nodes []doctree.ContentNode) float64 {
	return m.flat.SliceHeight(nodes)
}
