package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/scribe/internal/extract"
	"github.com/MrWong99/scribe/internal/integrate"
	"github.com/MrWong99/scribe/internal/observe"
	"github.com/MrWong99/scribe/internal/store"
	"github.com/MrWong99/scribe/internal/transcript"
)

type processOptions struct {
	input  metaInput
	dryRun bool
}

func newProcessCommand(c *cli) *cobra.Command {
	var opts processOptions
	cmd := &cobra.Command{
		Use:   "process FILE",
		Short: "Extract meeting records from a transcript file",
		Long: `Extract attendees, projects, topics, tasks and a summary from a transcript
(.txt, .md, .vtt or .srt) and store them.

Missing --name or --type opens an interactive form when run in a terminal.
The name defaults to one derived from the file name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runProcess(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.input.Name, "name", "", "meeting name (default: derived from the file name)")
	cmd.Flags().StringVar(&opts.input.Type, "type", "", "meeting type: "+meetingTypeList())
	cmd.Flags().StringVar(&opts.input.Date, "date", "", "meeting date, YYYY-MM-DD or DD-MM-YYYY (default: today)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "process against an in-memory copy and write nothing")
	return cmd
}

func (c *cli) runProcess(cmd *cobra.Command, path string, opts processOptions) error {
	ctx := cmd.Context()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}
	text, err := transcript.Load(filepath.Base(path), data)
	if err != nil {
		return err
	}

	in := opts.input
	if in.Name == "" {
		in.Name = transcript.MeetingName(path)
	}
	if !in.complete() && interactive() {
		if in, err = promptMeta(in); err != nil {
			return err
		}
	}
	meta, err := in.parse(time.Now())
	if err != nil {
		return err
	}

	var st store.Store
	switch db, err := c.openStore(ctx); {
	case err == nil:
		defer db.Close()
		st = db
	case opts.dryRun && errors.Is(err, errNoDatabase):
		slog.Warn("dry run without a database: nothing will match existing records")
	default:
		return err
	}
	if opts.dryRun {
		if st, err = dryRunStore(ctx, st, transcript.ContentHash(text)); err != nil {
			return err
		}
	}

	integrator, _, err := c.newIntegrator(st, observe.DefaultMetrics())
	if err != nil {
		return err
	}

	slog.Info("processing transcript", "file", path, "meeting", meta.Name, "type", meta.Type, "dry_run", opts.dryRun)
	res, err := integrator.Process(ctx, text, meta)
	if err != nil {
		return explainProcessError(err)
	}

	out := cmd.OutOrStdout()
	printResult(out, meta, res)
	if opts.dryRun {
		fmt.Fprintln(out, "\nDry run: nothing was written.")
	}
	return nil
}

// explainProcessError adds a hint for errors the user can act on.
func explainProcessError(err error) error {
	var dup *integrate.DuplicateError
	var oerr *extract.OracleError
	switch {
	case errors.As(err, &dup):
		return fmt.Errorf("%w: nothing was changed", err)
	case errors.As(err, &oerr) && oerr.Retryable:
		return fmt.Errorf("%w: nothing was saved, try again later", err)
	}
	return err
}

// writeSection writes a titled block followed by a blank line.
func writeSection(w io.Writer, title, body string) {
	fmt.Fprintf(w, "%s\n%s\n\n", title, body)
}
