// Package session holds a live document that is repaginated as it is
// loaded, edited and extended with form rows.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/pageflow/internal/doctree"
	"github.com/dgallion1/pageflow/internal/dom"
	"github.com/dgallion1/pageflow/internal/form"
	"github.com/dgallion1/pageflow/internal/pageflow"
	"github.com/dgallion1/pageflow/internal/parser"
	"github.com/dgallion1/pageflow/internal/render"
	"github.com/dgallion1/pageflow/internal/stats"
	"golang.org/x/net/html"
)

// ErrNoDocument is returned by edits made before Load.
var ErrNoDocument = errors.New("no document loaded")

// Result is what a pagination run produced.
type Result struct {
	Trigger  Trigger
	Layout   *doctree.Layout
	HTML     string // The whole document with generated pages applied.
	Duration time.Duration
}

// Publisher receives the outcome of every run that touched the document.
// err is set when the layout could not be built; the previous pages stay in
// place in that case. It is called with the session locked and must not
// call back into the session.
type Publisher func(res *Result, err error)

// Config holds what a session needs besides its collaborators.
type Config struct {
	Selectors dom.Selectors
	Options   pageflow.Options
	Delays    Delays
}

// Session owns one document tree. All methods are safe for concurrent use.
type Session struct {
	cfg     Config
	measure pageflow.Measurer
	publish Publisher
	stats   *stats.Pagination
	log     *slog.Logger

	mu   sync.Mutex
	root *html.Node

	sched *Scheduler
}

// New creates an empty session. st may be nil.
func New(cfg Config, m pageflow.Measurer, publish Publisher, st *stats.Pagination, log *slog.Logger) *Session {
	if publish == nil {
		publish = func(*Result, error) {}
	}
	s := &Session{
		cfg:     cfg,
		measure: m,
		publish: publish,
		stats:   st,
		log:     log,
	}
	s.sched = NewScheduler(s.run, cfg.Delays)
	return s
}

// Load replaces the document and schedules a load run.
func (s *Session) Load(markup string) error {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	s.mu.Lock()
	s.root = root
	s.mu.Unlock()

	s.sched.Fire(TriggerLoad)
	return nil
}

// Input replaces the children of the source content element and
// repaginates before returning. A document without a content element is
// left as is.
func (s *Session) Input(content string) error {
	s.mu.Lock()
	if s.root == nil {
		s.mu.Unlock()
		return ErrNoDocument
	}
	if a, ok := dom.FindAnchors(s.root, s.cfg.Selectors); ok {
		nodes, err := dom.ParseFragment(content, a.Content.Data)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("parse content: %w", err)
		}
		dom.RemoveChildren(a.Content)
		for _, n := range nodes {
			a.Content.AppendChild(n)
		}
	}
	s.mu.Unlock()

	s.sched.Fire(TriggerInput)
	return nil
}

// AddRow appends a form row and schedules a structural run. It returns the
// new row's field names.
func (s *Session) AddRow(kind form.RowKind) ([]string, error) {
	s.mu.Lock()
	if s.root == nil {
		s.mu.Unlock()
		return nil, ErrNoDocument
	}
	names, err := form.AddRow(s.root, kind)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.sched.Fire(TriggerStructural)
	return names, nil
}

// Repaginate runs pagination now, outside the scheduler's delays but still
// exclusive with scheduled runs.
func (s *Session) Repaginate() {
	s.sched.exec(TriggerInput)
}

// HTML renders the current document.
func (s *Session) HTML() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.root == nil {
		return "", ErrNoDocument
	}
	b, err := render.HTML(s.root)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Close cancels pending runs and waits for one in flight.
func (s *Session) Close() {
	s.sched.Stop()
}

func (s *Session) run(t Trigger) {
	log := s.log.With("trigger", t.String())
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.root == nil {
		return
	}

	doc := parser.FromDOM(s.root, s.cfg.Selectors)
	if !doc.Paginable {
		log.Debug("pagination anchors missing, skipping")
		return
	}

	layout, err := pageflow.Paginate(doc, s.measure, s.cfg.Options)
	if err != nil {
		log.Warn("pagination failed", "error", err)
		s.publish(nil, err)
		return
	}
	if _, err := render.Apply(s.root, s.cfg.Selectors, layout); err != nil {
		log.Warn("apply layout failed", "error", err)
		s.publish(nil, err)
		return
	}

	out, err := render.HTML(s.root)
	if err != nil {
		s.publish(nil, fmt.Errorf("render document: %w", err))
		return
	}

	elapsed := time.Since(start)
	if s.stats != nil {
		s.stats.Record(stats.Run{
			Source:     "session",
			Duration:   elapsed,
			Pages:      len(layout.Pages),
			Nodes:      layout.NodeCount(),
			Degenerate: layout.DegenerateCount(),
		})
	}
	log.Debug("paginated", "pages", len(layout.Pages), "duration_ms", elapsed.Milliseconds())
	s.publish(&Result{Trigger: t, Layout: layout, HTML: string(out), Duration: elapsed}, nil)
}
