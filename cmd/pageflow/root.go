package main

import (
	"io"
	"log/slog"

	"github.com/dgallion1/pageflow/internal/config"
	"github.com/spf13/cobra"
)

// cli carries the streams and shared state of one invocation.
type cli struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	debug bool
	log   *slog.Logger
	cfg   config.Config
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	c := &cli{in: in, out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "pageflow",
		Short: "Paginate print documents and record portal attendance",
		Long: `pageflow splits long documents into print pages that repeat a header
and footer, and drives the employee portal's check-in and check-out actions.

Configuration comes from the environment and, when PAGEFLOW_CONFIG is set,
from that YAML file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if c.debug {
				level = slog.LevelDebug
			}
			c.log = slog.New(slog.NewTextHandler(c.errOut, &slog.HandlerOptions{Level: level}))

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c.cfg = cfg
			return nil
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().BoolVar(&c.debug, "debug", false, "Enable debug logging")

	root.AddCommand(c.paginateCmd(), c.attendCmd(portalCheckIn), c.attendCmd(portalCheckOut))
	return root
}
