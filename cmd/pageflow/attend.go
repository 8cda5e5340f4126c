package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dgallion1/pageflow/internal/portal"
	"github.com/spf13/cobra"
)

const (
	portalCheckIn  = "check-in"
	portalCheckOut = "check-out"
)

type attendFlags struct {
	baseURL string
	session string
	yes     bool
}

func (c *cli) attendCmd(name string) *cobra.Command {
	action := portal.CheckIn
	short := "Check in on the employee portal"
	if name == portalCheckOut {
		action = portal.CheckOut
		short = "Check out on the employee portal"
	}

	var f attendFlags
	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.baseURL == "" {
				f.baseURL = c.cfg.PortalURL
			}
			if f.session == "" {
				f.session = os.Getenv("PORTAL_SESSION")
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return c.runAttend(ctx, action, f)
		},
	}
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "Portal base URL (default from PORTAL_URL)")
	cmd.Flags().StringVar(&f.session, "session", "", "Portal session_id cookie (default from PORTAL_SESSION)")
	if action.Confirm != "" {
		cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "Skip confirmation prompt")
	}
	return cmd
}

func (c *cli) runAttend(ctx context.Context, action portal.Action, f attendFlags) error {
	ui := &terminalUI{in: bufio.NewReader(c.in), out: c.out, errOut: c.errOut, assumeYes: f.yes}
	b := &portal.Button{
		Action:  action,
		Caller:  portal.NewClient(f.baseURL, portal.WithSession(f.session)),
		Control: portal.NewState(action.Label),
		UI:      ui,
		Log:     c.log,
	}

	switch outcome := b.Click(ctx); outcome {
	case portal.OutcomeReloaded:
		return nil
	case portal.OutcomeDeclined:
		fmt.Fprintln(c.out, "Aborted.")
		return nil
	default:
		return fmt.Errorf("%s %s", action.Name, outcome)
	}
}

// terminalUI shows alerts on stderr and asks for confirmation on stdin.
type terminalUI struct {
	in        *bufio.Reader
	out       io.Writer
	errOut    io.Writer
	assumeYes bool
}

func (u *terminalUI) Alert(msg string) {
	fmt.Fprintln(u.errOut, msg)
}

func (u *terminalUI) Confirm(msg string) bool {
	if u.assumeYes {
		return true
	}
	fmt.Fprintf(u.out, "%s [y/N]: ", msg)
	line, _ := u.in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// Reload has no page to refresh; it reports success instead.
func (u *terminalUI) Reload() {
	fmt.Fprintln(u.out, "Done.")
}
