package session

import (
	"sync"
	"time"
)

// Trigger is a reason to repaginate.
type Trigger int

const (
	TriggerLoad       Trigger = iota // Document loaded; layout may still settle.
	TriggerInput                     // Content edited.
	TriggerStructural                // A row was added or removed.
)

func (t Trigger) String() string {
	switch t {
	case TriggerLoad:
		return "load"
	case TriggerInput:
		return "input"
	case TriggerStructural:
		return "structural"
	}
	return "unknown"
}

// Delays holds how long each trigger waits before running.
type Delays struct {
	Load       time.Duration
	Structural time.Duration
}

// DefaultDelays mirrors the portal: 500ms after load, 300ms after a row is
// added.
func DefaultDelays() Delays {
	return Delays{
		Load:       500 * time.Millisecond,
		Structural: 300 * time.Millisecond,
	}
}

// Scheduler runs a function in response to triggers. Runs never overlap;
// a run that is already in flight is not cancelled.
type Scheduler struct {
	run    func(Trigger)
	delays Delays

	runMu sync.Mutex // held for the duration of a run

	mu      sync.Mutex
	timers  map[*time.Timer]struct{}
	stopped bool
	wg      sync.WaitGroup
}

func NewScheduler(run func(Trigger), delays Delays) *Scheduler {
	return &Scheduler{
		run:    run,
		delays: delays,
		timers: make(map[*time.Timer]struct{}),
	}
}

// Fire schedules a run. Input triggers run in the caller's goroutine before
// Fire returns; the others run on a timer.
func (s *Scheduler) Fire(t Trigger) {
	var delay time.Duration
	switch t {
	case TriggerLoad:
		delay = s.delays.Load
	case TriggerStructural:
		delay = s.delays.Structural
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if t == TriggerInput || delay <= 0 {
		s.wg.Add(1)
		s.mu.Unlock()
		defer s.wg.Done()
		s.exec(t)
		return
	}

	s.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		defer s.wg.Done()
		s.mu.Lock()
		_, pending := s.timers[timer]
		delete(s.timers, timer)
		stopped := s.stopped
		s.mu.Unlock()
		if !pending || stopped {
			return
		}
		s.exec(t)
	})
	s.timers[timer] = struct{}{}
	s.mu.Unlock()
}

func (s *Scheduler) exec(t Trigger) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	s.run(t)
}

// Pending returns the number of timers that have not fired yet.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels pending timers and waits for a run in flight to finish.
// Triggers fired after Stop are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for timer := range s.timers {
		if timer.Stop() {
			// The callback will never run, so release its slot here.
			s.wg.Done()
		}
		delete(s.timers, timer)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
