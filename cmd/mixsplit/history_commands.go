package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"mixsplit/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect previous runs",
	}

	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryPruneCommand(ctx))

	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				runs, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					if runs == nil {
						runs = []history.RunSummary{}
					}
					return writeJSON(cmd, runs)
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{
						shortID(run.ID),
						formatTimestamp(run.StartedAt),
						filepath.Base(run.InputDir),
						fmt.Sprintf("%d", run.Totals.Produced),
						fmt.Sprintf("%d", run.Totals.Identified),
						fmt.Sprintf("%d", run.Totals.Failed),
						runState(run),
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"Run", "Started", "Input", "Tracks", "Identified", "Failed", "State"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run_id>",
		Short: "Show one run with its batches and failures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				detail, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, detail)
				}
				writeRunDetail(cmd.OutOrStdout(), detail)
				return nil
			})
		},
	}
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			return ctx.withHistory(func(store *history.Store) error {
				removed, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"removed": removed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run(s)\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Remove runs started before now minus this duration")
	return cmd
}

func runState(run history.RunSummary) string {
	switch {
	case run.Halted:
		return "halted"
	case run.Stopped:
		return "stopped"
	default:
		return "completed"
	}
}

func writeRunDetail(out io.Writer, detail *history.RunDetail) {
	fmt.Fprintf(out, "Run:      %s\n", detail.ID)
	fmt.Fprintf(out, "Started:  %s\n", formatTimestamp(detail.StartedAt))
	fmt.Fprintf(out, "Elapsed:  %s\n", formatElapsed(detail.Elapsed))
	fmt.Fprintf(out, "Input:    %s\n", detail.InputDir)
	fmt.Fprintf(out, "Library:  %s\n", detail.LibraryDir)
	fmt.Fprintf(out, "Budget:   %s (%s)\n", formatBytes(detail.Budget), detail.BudgetMode)
	fmt.Fprintf(out, "State:    %s\n\n", runState(detail.RunSummary))

	if len(detail.Batches) > 0 {
		rows := make([][]string, 0, len(detail.Batches))
		for _, batch := range detail.Batches {
			rows = append(rows, []string{
				fmt.Sprintf("%d", batch.Index),
				fmt.Sprintf("%d", batch.Files),
				formatBytes(batch.Estimate),
				fmt.Sprintf("%d", batch.Counts.Produced),
				fmt.Sprintf("%d", batch.Counts.Identified),
				fmt.Sprintf("%d", batch.Counts.Unidentified),
				fmt.Sprintf("%d", batch.Counts.Skipped),
				fmt.Sprintf("%d", batch.Counts.Failed),
				yesNo(batch.Oversized),
			})
		}
		fmt.Fprint(out, renderTable(
			[]string{"Batch", "Files", "Estimate", "Tracks", "Identified", "Unidentified", "Skipped", "Failed", "Oversized"},
			rows,
			[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
		))
	}

	if len(detail.Tracks) > 0 {
		rows := make([][]string, 0, len(detail.Tracks))
		for _, track := range detail.Tracks {
			name := "-"
			if track.Metadata.Title != "" {
				name = track.Metadata.Artist + " - " + track.Metadata.Title
			}
			rows = append(rows, []string{
				filepath.Base(track.Parent),
				fmt.Sprintf("%d", track.Ordinal),
				string(track.Status),
				name,
			})
		}
		fmt.Fprintln(out)
		fmt.Fprint(out, renderTable(
			[]string{"File", "Track", "Status", "Identified As"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
		))
	}

	if len(detail.Skipped) > 0 {
		fmt.Fprintf(out, "\nSkipped inputs: %d\n", len(detail.Skipped))
		for _, skipped := range detail.Skipped {
			fmt.Fprintf(out, "  %s (%s)\n", skipped.Path, skipped.Reason)
		}
	}
	writeFailures(out, detail.Failures)
}
