package portal

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Caller performs an attendance call.
type Caller interface {
	Call(ctx context.Context, action Action) (*Result, error)
}

// Control is the clickable element.
type Control interface {
	Disabled() bool
	SetDisabled(bool)
	Label() string
	SetLabel(string)
}

// UI carries the page-level effects of a click.
type UI interface {
	Alert(msg string)
	Confirm(msg string) bool
	Reload()
}

// Outcome reports how a click ended.
type Outcome int

const (
	OutcomeIgnored  Outcome = iota // Control was disabled.
	OutcomeDeclined                // User did not confirm.
	OutcomeReloaded                // Portal accepted; page reloaded.
	OutcomeRejected                // Portal answered without success.
	OutcomeFailed                  // Portal could not be reached.
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeDeclined:
		return "declined"
	case OutcomeReloaded:
		return "reloaded"
	case OutcomeRejected:
		return "rejected"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Button wires an Action to a control.
type Button struct {
	Action  Action
	Caller  Caller
	Control Control
	UI      UI
	Log     *slog.Logger

	mu sync.Mutex
}

// Click runs the disable, call, reload-or-alert, restore flow. It blocks
// until the call returns.
func (b *Button) Click(ctx context.Context) Outcome {
	b.mu.Lock()
	if b.Control.Disabled() {
		b.mu.Unlock()
		return OutcomeIgnored
	}
	if b.Action.Confirm != "" && !b.UI.Confirm(b.Action.Confirm) {
		b.mu.Unlock()
		return OutcomeDeclined
	}
	label := b.Control.Label()
	b.Control.SetDisabled(true)
	b.Control.SetLabel(b.Action.BusyLabel)
	b.mu.Unlock()

	_, err := b.Caller.Call(ctx, b.Action)
	if err == nil {
		b.UI.Reload()
		return OutcomeReloaded
	}

	outcome := OutcomeFailed
	var rej *RejectedError
	if errors.As(err, &rej) {
		outcome = OutcomeRejected
		msg := rej.Message
		if msg == "" {
			msg = "Unknown error"
		}
		b.UI.Alert("Error: " + msg)
	} else {
		b.logger().Error(b.Action.Name+" error", "error", err)
		b.UI.Alert(b.Action.Failure)
	}

	b.mu.Lock()
	b.Control.SetDisabled(false)
	b.Control.SetLabel(label)
	b.mu.Unlock()
	return outcome
}

func (b *Button) logger() *slog.Logger {
	if b.Log != nil {
		return b.Log
	}
	return slog.Default()
}

// State is an in-memory Control.
type State struct {
	mu       sync.Mutex
	label    string
	disabled bool
}

func NewState(label string) *State {
	return &State{label: label}
}

func (s *State) Disabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disabled
}

func (s *State) SetDisabled(v bool) {
	s.mu.Lock()
	s.disabled = v
	s.mu.Unlock()
}

func (s *State) Label() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.label
}

func (s *State) SetLabel(l string) {
	s.mu.Lock()
	s.label = l
	s.mu.Unlock()
}
