// Package stats keeps rolling statistics of pagination runs.
package stats

import (
	"slices"
	"sync"
	"time"
)

// Run describes one completed pagination.
type Run struct {
	Source     string // "sync", "job" or "session".
	Duration   time.Duration
	Pages      int
	Nodes      int
	Degenerate int
}

type sample struct {
	at  time.Time
	run Run
}

// Snapshot aggregates the runs inside the window.
type Snapshot struct {
	Count           int            `json:"count"`
	MinMs           int64          `json:"min_ms"`
	MaxMs           int64          `json:"max_ms"`
	AvgMs           float64        `json:"avg_ms"`
	P50Ms           float64        `json:"p50_ms"`
	P95Ms           float64        `json:"p95_ms"`
	P99Ms           float64        `json:"p99_ms"`
	Pages           int            `json:"pages"`
	Nodes           int            `json:"nodes"`
	DegeneratePages int            `json:"degenerate_pages"`
	BySource        map[string]int `json:"by_source,omitempty"`
}

// Pagination tracks recent runs within a rolling window. The zero value is
// not usable; call NewPagination.
type Pagination struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
	now     func() time.Time
}

func NewPagination(maxAge time.Duration) *Pagination {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Pagination{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

func (s *Pagination) Record(r Run) {
	if r.Duration < 0 {
		r.Duration = 0
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	s.samples = append(s.samples, sample{at: now, run: r})
}

func (s *Pagination) Snapshot() Snapshot {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	if len(s.samples) == 0 {
		return Snapshot{}
	}

	snap := Snapshot{Count: len(s.samples), BySource: make(map[string]int)}
	values := make([]int64, 0, len(s.samples))
	var sum int64
	for _, sm := range s.samples {
		ms := sm.run.Duration.Milliseconds()
		values = append(values, ms)
		sum += ms
		snap.Pages += sm.run.Pages
		snap.Nodes += sm.run.Nodes
		snap.DegeneratePages += sm.run.Degenerate
		if sm.run.Source != "" {
			snap.BySource[sm.run.Source]++
		}
	}
	slices.Sort(values)

	snap.MinMs = values[0]
	snap.MaxMs = values[len(values)-1]
	snap.AvgMs = float64(sum) / float64(len(values))
	snap.P50Ms = percentile(values, 50)
	snap.P95Ms = percentile(values, 95)
	snap.P99Ms = percentile(values, 99)
	return snap
}

func (s *Pagination) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	s.samples = slices.DeleteFunc(s.samples, func(sm sample) bool {
		return sm.at.Before(cutoff)
	})
}

// percentile interpolates linearly between the closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case pct <= 0:
		return float64(sorted[0])
	case pct >= 100:
		return float64(sorted[len(sorted)-1])
	}

	index := float64(len(sorted)-1) * pct / 100
	lower := int(index)
	if lower+1 >= len(sorted) {
		return float64(sorted[lower])
	}
	weight := index - float64(lower)
	lo, hi := float64(sorted[lower]), float64(sorted[lower+1])
	return lo + (hi-lo)*weight
}
