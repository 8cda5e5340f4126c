package portal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

type fakeUI struct {
	mu       sync.Mutex
	alerts   []string
	confirms []string
	answer   bool
	reloads  int
}

func (u *fakeUI) Alert(msg string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.alerts = append(u.alerts, msg)
}

func (u *fakeUI) Confirm(msg string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.confirms = append(u.confirms, msg)
	return u.answer
}

func (u *fakeUI) Reload() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.reloads++
}

type calls struct {
	mu    sync.Mutex
	reqs  []rpcRequest
	paths []string
}

func (c *calls) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reqs)
}

func (c *calls) at(i int) (rpcRequest, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reqs[i], c.paths[i]
}

// portalServer answers every call with body and records the request.
func portalServer(t *testing.T, body string) (*httptest.Server, *calls) {
	t.Helper()
	rec := &calls{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected json content type, got %q", ct)
		}
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		rec.mu.Lock()
		rec.reqs = append(rec.reqs, req)
		rec.paths = append(rec.paths, r.URL.Path)
		rec.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestButton_CheckInSuccessReloads(t *testing.T) {
	srv, rec := portalServer(t, `{"jsonrpc":"2.0","id":null,"result":{"success":true,"check_in":"2026-10-16 08:00:00"}}`)
	ui := &fakeUI{}
	ctrl := NewState(CheckIn.Label)
	b := &Button{Action: CheckIn, Caller: NewClient(srv.URL), Control: ctrl, UI: ui, Log: quietLog()}

	if got := b.Click(context.Background()); got != OutcomeReloaded {
		t.Fatalf("expected reloaded, got %s", got)
	}
	if ui.reloads != 1 {
		t.Errorf("expected one reload, got %d", ui.reloads)
	}
	if len(ui.alerts) != 0 {
		t.Errorf("expected no alerts, got %v", ui.alerts)
	}
	if len(ui.confirms) != 0 {
		t.Errorf("check-in should not confirm, got %v", ui.confirms)
	}
	req, path := rec.at(0)
	if path != "/my/sales/check-in" {
		t.Errorf("unexpected path %s", path)
	}
	if req.JSONRPC != "2.0" || req.Method != "call" || req.Params == nil || len(req.Params) != 0 {
		t.Errorf("unexpected request body %+v", req)
	}
	// The page reloads, so the control stays busy.
	if !ctrl.Disabled() || ctrl.Label() != CheckIn.BusyLabel {
		t.Errorf("expected busy control, got disabled=%v label=%q", ctrl.Disabled(), ctrl.Label())
	}
}

func TestButton_CheckInRejectedRestoresLabel(t *testing.T) {
	srv, _ := portalServer(t, `{"jsonrpc":"2.0","id":null,"result":{"error":"Already checked in"}}`)
	ui := &fakeUI{}
	ctrl := NewState(CheckIn.Label)
	b := &Button{Action: CheckIn, Caller: NewClient(srv.URL), Control: ctrl, UI: ui, Log: quietLog()}

	if got := b.Click(context.Background()); got != OutcomeRejected {
		t.Fatalf("expected rejected, got %s", got)
	}
	if len(ui.alerts) != 1 || ui.alerts[0] != "Error: Already checked in" {
		t.Errorf("unexpected alerts %v", ui.alerts)
	}
	if ctrl.Disabled() {
		t.Error("expected control to be enabled again")
	}
	if ctrl.Label() != CheckIn.Label {
		t.Errorf("expected label %q, got %q", CheckIn.Label, ctrl.Label())
	}
	if ui.reloads != 0 {
		t.Error("expected no reload")
	}
}

func TestButton_MissingResultIsUnknownError(t *testing.T) {
	srv, _ := portalServer(t, `{"jsonrpc":"2.0","id":null,"error":{"code":200,"message":"Odoo Server Error"}}`)
	ui := &fakeUI{}
	b := &Button{Action: CheckIn, Caller: NewClient(srv.URL), Control: NewState(CheckIn.Label), UI: ui, Log: quietLog()}

	b.Click(context.Background())
	if len(ui.alerts) != 1 || ui.alerts[0] != "Error: Unknown error" {
		t.Errorf("unexpected alerts %v", ui.alerts)
	}
}

func TestButton_TransportFailure(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		alert  string
	}{
		{"check-in", CheckIn, "Error checking in. Please try again."},
		{"check-out", CheckOut, "Error checking out. Please try again."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "<html>bad gateway</html>", http.StatusBadGateway)
			}))
			defer srv.Close()

			ui := &fakeUI{answer: true}
			ctrl := NewState("custom label")
			b := &Button{Action: tt.action, Caller: NewClient(srv.URL), Control: ctrl, UI: ui, Log: quietLog()}

			if got := b.Click(context.Background()); got != OutcomeFailed {
				t.Fatalf("expected failed, got %s", got)
			}
			if len(ui.alerts) != 1 || ui.alerts[0] != tt.alert {
				t.Errorf("unexpected alerts %v", ui.alerts)
			}
			if ctrl.Disabled() || ctrl.Label() != "custom label" {
				t.Errorf("expected restored control, got disabled=%v label=%q", ctrl.Disabled(), ctrl.Label())
			}
		})
	}
}

func TestButton_CheckOutDeclined(t *testing.T) {
	srv, rec := portalServer(t, `{"result":{"success":true}}`)
	ui := &fakeUI{answer: false}
	ctrl := NewState(CheckOut.Label)
	b := &Button{Action: CheckOut, Caller: NewClient(srv.URL), Control: ctrl, UI: ui, Log: quietLog()}

	if got := b.Click(context.Background()); got != OutcomeDeclined {
		t.Fatalf("expected declined, got %s", got)
	}
	if len(ui.confirms) != 1 || ui.confirms[0] != "Are you sure you want to check out?" {
		t.Errorf("unexpected confirms %v", ui.confirms)
	}
	if n := rec.count(); n != 0 {
		t.Errorf("expected no request, got %d", n)
	}
	if ctrl.Disabled() || ctrl.Label() != CheckOut.Label {
		t.Error("expected control untouched")
	}
}

func TestButton_CheckOutConfirmed(t *testing.T) {
	srv, rec := portalServer(t, `{"result":{"success":true,"check_out":"2026-10-16 17:00:00","worked_hours":9}}`)
	ui := &fakeUI{answer: true}
	b := &Button{Action: CheckOut, Caller: NewClient(srv.URL), Control: NewState(CheckOut.Label), UI: ui, Log: quietLog()}

	if got := b.Click(context.Background()); got != OutcomeReloaded {
		t.Fatalf("expected reloaded, got %s", got)
	}
	if _, path := rec.at(0); path != "/my/sales/check-out" {
		t.Errorf("unexpected path %s", path)
	}
}

func TestButton_DisabledControlIgnoresClick(t *testing.T) {
	ui := &fakeUI{answer: true}
	ctrl := NewState(CheckIn.Label)
	ctrl.SetDisabled(true)
	b := &Button{Action: CheckIn, Caller: NewClient("http://127.0.0.1:0"), Control: ctrl, UI: ui}

	if got := b.Click(context.Background()); got != OutcomeIgnored {
		t.Fatalf("expected ignored, got %s", got)
	}
	if len(ui.alerts)+ui.reloads != 0 {
		t.Error("expected no effects")
	}
}

func TestClient_SendsSessionCookie(t *testing.T) {
	cookies := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("session_id")
		if err != nil {
			cookies <- ""
		} else {
			cookies <- c.Value
		}
		_, _ = io.WriteString(w, `{"result":{"success":true,"worked_hours":7.5}}`)
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL+"/", WithSession("abc123")).Call(context.Background(), CheckOut)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cookie := <-cookies; cookie != "abc123" {
		t.Errorf("expected session cookie, got %q", cookie)
	}
	if res.WorkedHours != 7.5 {
		t.Errorf("expected worked hours 7.5, got %v", res.WorkedHours)
	}
}

func TestClient_RejectedError(t *testing.T) {
	srv, _ := portalServer(t, `{"result":{"error":"Not checked in"}}`)
	res, err := NewClient(srv.URL).Call(context.Background(), CheckOut)
	var rej *RejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("expected RejectedError, got %v", err)
	}
	if rej.Message != "Not checked in" || res == nil || res.Success {
		t.Errorf("unexpected rejection %+v result %+v", rej, res)
	}
	if err.Error() != "check-out rejected: Not checked in" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
