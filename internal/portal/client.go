// Package portal calls the attendance endpoints of the employee portal and
// drives the check-in and check-out buttons.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Action is one attendance endpoint together with its button texts.
type Action struct {
	Name      string
	Path      string
	Label     string // Idle button markup.
	BusyLabel string // Shown while the call is outstanding.
	Failure   string // Alert for transport failures.
	Confirm   string // Asked before calling; empty means no prompt.
}

var (
	CheckIn = Action{
		Name:      "check-in",
		Path:      "/my/sales/check-in",
		Label:     `<i class="fa fa-sign-in me-2"></i>Check In`,
		BusyLabel: `<i class="fa fa-spinner fa-spin me-2"></i>Checking in...`,
		Failure:   "Error checking in. Please try again.",
	}
	CheckOut = Action{
		Name:      "check-out",
		Path:      "/my/sales/check-out",
		Label:     `<i class="fa fa-sign-out me-2"></i>Check Out`,
		BusyLabel: `<i class="fa fa-spinner fa-spin me-2"></i>Checking out...`,
		Failure:   "Error checking out. Please try again.",
		Confirm:   "Are you sure you want to check out?",
	}
)

// Result is the "result" member of an attendance response.
type Result struct {
	Success     bool    `json:"success"`
	Error       string  `json:"error,omitempty"`
	CheckIn     string  `json:"check_in,omitempty"`
	CheckOut    string  `json:"check_out,omitempty"`
	WorkedHours float64 `json:"worked_hours,omitempty"`
}

// RejectedError is returned when the portal answered but did not report
// success.
type RejectedError struct {
	Action  string
	Message string // Empty when the portal gave no reason.
}

func (e *RejectedError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "Unknown error"
	}
	return fmt.Sprintf("%s rejected: %s", e.Action, msg)
}

type rpcRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
}

type rpcResponse struct {
	Result *Result `json:"result"`
}

// Client posts JSON-RPC calls to the portal.
type Client struct {
	baseURL    string
	sessionID  string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithSession authenticates calls with the portal's session cookie.
func WithSession(id string) Option {
	return func(c *Client) { c.sessionID = id }
}

// WithHTTPClient replaces the default client with its 30s timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Call invokes action. A reply without success yields *RejectedError; any
// failure to reach the portal or read its reply is returned wrapped.
func (c *Client) Call(ctx context.Context, action Action) (*Result, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: "call", Params: map[string]any{}})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+action.Path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.sessionID != "" {
		req.AddCookie(&http.Cookie{Name: "session_id", Value: c.sessionID})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action.Name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", action.Name, err)
	}
	var rpc rpcResponse
	if err := json.Unmarshal(raw, &rpc); err != nil {
		snippet := raw
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, fmt.Errorf("%s: status %d: decode response: %w: %s", action.Name, resp.StatusCode, err, snippet)
	}

	if rpc.Result == nil || !rpc.Result.Success {
		rej := &RejectedError{Action: action.Name}
		if rpc.Result != nil {
			rej.Message = rpc.Result.Error
		}
		return rpc.Result, rej
	}
	return rpc.Result, nil
}
