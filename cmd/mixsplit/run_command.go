package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mixsplit/internal/preflight"
	"mixsplit/internal/report"
	"mixsplit/internal/workflow"
)

// errRunStopped is returned after a run ended early at a batch boundary.
var errRunStopped = errors.New("run stopped before all batches were processed")

func newRunCommand(ctx *commandContext) *cobra.Command {
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "run <input_dir>",
		Short: "Split, identify, tag and file every recording in a directory",
		Long: `Process every supported recording in input_dir in memory-bounded batches.

Each batch is split into tracks first, then every track is identified,
tagged and placed in the library. The first interrupt finishes the batch in
flight and stops; a second interrupt cancels immediately.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			inputDir := args[0]

			if !skipPreflight {
				results := preflight.RunAll(cmd.Context(), cfg, inputDir)
				if failed := preflight.Failed(results); len(failed) > 0 {
					if !ctx.JSONMode() {
						writePreflight(cmd.ErrOrStderr(), results)
					}
					return fmt.Errorf("preflight failed: %d check(s) did not pass", len(failed))
				}
			}

			orchestrator := workflow.NewOrchestrator(cfg, logger)
			runCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			stopSignals := watchSignals(orchestrator, cancel, cmd.ErrOrStderr())
			defer stopSignals()

			run, runErr := orchestrator.Run(runCtx, inputDir)
			if run == nil {
				return runErr
			}
			if ctx.JSONMode() {
				if err := writeJSON(cmd, run); err != nil {
					return err
				}
			} else {
				writeRunSummary(cmd.OutOrStdout(), run)
			}
			if runErr != nil {
				return runErr
			}
			if run.Stopped {
				return errRunStopped
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip directory, free space and binary checks")
	return cmd
}

// watchSignals turns the first SIGINT or SIGTERM into a stop request and the
// second into cancellation. The returned func unregisters the handler.
func watchSignals(orchestrator *workflow.Orchestrator, cancel context.CancelFunc, out io.Writer) func() {
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		received := 0
		for {
			select {
			case <-done:
				return
			case <-signals:
				received++
				if received == 1 {
					fmt.Fprintln(out, "Stopping after the current batch; interrupt again to cancel")
					orchestrator.RequestStop()
					continue
				}
				cancel()
				return
			}
		}
	}()
	return func() {
		signal.Stop(signals)
		close(done)
	}
}

func writeRunSummary(out io.Writer, run *report.RunReport) {
	fmt.Fprintf(out, "Run %s\n", run.RunID)
	fmt.Fprintf(out, "Input: %s\nLibrary: %s\nBudget: %s (%s)\n\n", run.InputDir, run.LibraryDir, formatBytes(run.Budget), run.BudgetMode)

	if len(run.Batches) > 0 {
		rows := make([][]string, 0, len(run.Batches))
		for _, batch := range run.Batches {
			files := fmt.Sprintf("%d", batch.Files)
			if batch.Oversized {
				files += " (oversized)"
			}
			rows = append(rows, []string{
				fmt.Sprintf("%d", batch.Index),
				files,
				fmt.Sprintf("%d", batch.Counts.Produced),
				fmt.Sprintf("%d", batch.Counts.Identified),
				fmt.Sprintf("%d", batch.Counts.Unidentified),
				fmt.Sprintf("%d", batch.Counts.Skipped),
				fmt.Sprintf("%d", batch.Counts.Failed),
				formatElapsed(batch.Elapsed),
			})
		}
		t := run.Totals
		fmt.Fprint(out, renderTableWithFooter(
			[]string{"Batch", "Files", "Tracks", "Identified", "Unidentified", "Skipped", "Failed", "Elapsed"},
			rows,
			[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
			[]string{"Total", "", fmt.Sprintf("%d", t.Produced), fmt.Sprintf("%d", t.Identified), fmt.Sprintf("%d", t.Unidentified), fmt.Sprintf("%d", t.Skipped), fmt.Sprintf("%d", t.Failed), formatElapsed(run.Elapsed)},
		))
	} else {
		fmt.Fprintln(out, "No supported recordings found")
	}

	if len(run.Skipped) > 0 {
		fmt.Fprintf(out, "\nSkipped inputs: %d\n", len(run.Skipped))
		for _, skipped := range run.Skipped {
			fmt.Fprintf(out, "  %s (%s)\n", skipped.Path, skipped.Reason)
		}
	}
	writeFailures(out, run.Failures)

	switch {
	case run.Halted:
		fmt.Fprintln(out, "\nRun halted: the library could not be written")
	case run.Stopped:
		fmt.Fprintln(out, "\nRun stopped before all batches were processed")
	}
}

func writeFailures(out io.Writer, failures []report.Failure) {
	if len(failures) == 0 {
		return
	}
	rows := make([][]string, 0, len(failures))
	for _, failure := range failures {
		track := "-"
		if failure.Track > 0 {
			track = fmt.Sprintf("%d", failure.Track)
		}
		rows = append(rows, []string{failure.Path, track, string(failure.Kind), failure.Message})
	}
	fmt.Fprintf(out, "\nFailures: %d\n", len(failures))
	fmt.Fprint(out, renderTable(
		[]string{"File", "Track", "Kind", "Message"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
	))
}
