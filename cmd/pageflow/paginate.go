package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dgallion1/pageflow/internal/measure"
	"github.com/dgallion1/pageflow/internal/pipeline"
	"github.com/spf13/cobra"
)

type paginateFlags struct {
	format     string
	output     string
	headerFile string
	footerFile string
	title      string
	maxHeight  float64
	margin     float64
}

func (c *cli) paginateCmd() *cobra.Command {
	var f paginateFlags
	cmd := &cobra.Command{
		Use:   "paginate FILE",
		Short: "Split a document into print pages",
		Long: `Reads an HTML, Markdown, text, CSV, DOCX or PDF file and writes its
pages as JSON, standalone HTML or PDF. HTML input must carry header, footer
and content anchors; other formats take the header and footer from files.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPaginate(cmd.Context(), args[0], f, cmd.Flags().Changed("max-height"), cmd.Flags().Changed("margin"))
		},
	}
	cmd.Flags().StringVarP(&f.format, "format", "f", "html", "Output format: html, json or pdf")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Write to this file instead of stdout")
	cmd.Flags().StringVar(&f.headerFile, "header", "", "File with header markup")
	cmd.Flags().StringVar(&f.footerFile, "footer", "", "File with footer markup")
	cmd.Flags().StringVar(&f.title, "title", "", "Document title")
	cmd.Flags().Float64Var(&f.maxHeight, "max-height", 0, "Page height in px (default from config)")
	cmd.Flags().Float64Var(&f.margin, "margin", 0, "Allowance subtracted from every page in px (default from config)")
	return cmd
}

func (c *cli) runPaginate(ctx context.Context, path string, f paginateFlags, heightSet, marginSet bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	switch f.format {
	case "html", "json", "pdf":
	default:
		return fmt.Errorf("unknown format %q", f.format)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	header, err := readOptional(f.headerFile)
	if err != nil {
		return err
	}
	footer, err := readOptional(f.footerFile)
	if err != nil {
		return err
	}

	opts := c.cfg.PageOptions()
	if heightSet {
		opts.MaxPageHeight = f.maxHeight
	}
	if marginSet {
		opts.Margin = f.margin
	}

	m, err := measure.New(c.cfg.MeasureConfig())
	if err != nil {
		return err
	}
	orch := pipeline.NewOrchestrator(c.cfg, m, nil, c.log)
	job := pipeline.NewJob(pipeline.Request{
		Filename: filepath.Base(path),
		Title:    f.title,
		Data:     data,
		Header:   header,
		Footer:   footer,
		Options:  opts,
	})
	orch.Run(ctx, job)

	snap := job.Snapshot()
	switch snap.Status {
	case pipeline.StatusFailed:
		if len(snap.Progress.Errors) > 0 {
			return fmt.Errorf("%s", snap.Progress.Errors[0])
		}
		return fmt.Errorf("pagination failed")
	case pipeline.StatusSkipped:
		c.log.Warn("no pagination anchors found; output is the input unchanged")
		if f.format != "html" {
			return fmt.Errorf("%s has no header, footer or content anchors", path)
		}
		return c.writeOutput(f.output, func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		})
	}

	res := job.Result()
	c.log.Info("paginated", "pages", snap.Progress.Pages, "nodes", snap.Progress.Nodes,
		"degenerate_pages", snap.Progress.DegeneratePages)

	return c.writeOutput(f.output, func(w io.Writer) error {
		switch f.format {
		case "json":
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(res.Layout)
		case "pdf":
			if res.PDF == nil {
				return fmt.Errorf("pdf rendering failed")
			}
			_, err := w.Write(res.PDF)
			return err
		default:
			_, err := w.Write(res.HTML)
			return err
		}
	})
}

func (c *cli) writeOutput(path string, write func(io.Writer) error) error {
	if path == "" {
		return write(c.out)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := write(out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func readOptional(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(b), nil
}
