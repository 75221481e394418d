package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mixsplit/internal/logging"
	"mixsplit/internal/manifest"
	"mixsplit/internal/workflow"
)

func newManifestCommand(ctx *commandContext) *cobra.Command {
	manifestCmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect and compare run manifests",
	}

	manifestCmd.AddCommand(newManifestListCommand(ctx))
	manifestCmd.AddCommand(newManifestDiffCommand(ctx))
	manifestCmd.AddCommand(newManifestRollbackCommand(ctx))

	return manifestCmd
}

func newManifestListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List manifests in the report directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			entries, err := manifest.List(cfg.Paths.ReportDir)
			if err != nil {
				return fmt.Errorf("list manifests: %w", err)
			}
			if ctx.JSONMode() {
				if entries == nil {
					entries = []manifest.Entry{}
				}
				return writeJSON(cmd, entries)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No manifests found")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{
					shortID(entry.RunID),
					formatTimestamp(entry.CreatedAt),
					fmt.Sprintf("%d", entry.Summary.TotalTracks),
					fmt.Sprintf("%d", entry.Summary.Identified),
					fmt.Sprintf("%d", entry.Summary.Failed),
					entry.Path,
				})
			}
			fmt.Fprint(out, renderTable(
				[]string{"Run", "Created", "Tracks", "Identified", "Failed", "Path"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func newManifestDiffCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <before> <after>",
		Short: "Compare two runs by manifest path or run id prefix",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			before, err := resolveManifest(cfg.Paths.ReportDir, args[0])
			if err != nil {
				return err
			}
			after, err := resolveManifest(cfg.Paths.ReportDir, args[1])
			if err != nil {
				return err
			}
			diff := manifest.Compare(before, after)
			if ctx.JSONMode() {
				return writeJSON(cmd, diff)
			}
			writeManifestDiff(cmd.OutOrStdout(), diff)
			return nil
		},
	}
}

func newManifestRollbackCommand(ctx *commandContext) *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "rollback <run-id-prefix>",
		Short: "Return the library to the files a run produced",
		Long: `Compare the library with the outputs recorded by a run manifest and list
the audio files (flac, mp3, m4a) that run did not write.

Nothing is deleted unless --apply is given. Recorded outputs that are gone
are reported but cannot be restored; re-run the pipeline for those. The
library lock is held so a running pipeline is never rolled back under.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			lock := workflow.NewLibraryLock(cfg.LockPath())
			if err := lock.Acquire(); err != nil {
				return err
			}
			defer lock.Release()

			m, err := resolveManifest(cfg.Paths.ReportDir, args[0])
			if err != nil {
				return err
			}
			plan, err := manifest.PlanRollback(m, cfg.Paths.LibraryDir)
			if err != nil {
				return err
			}

			var result *manifest.RollbackResult
			if apply {
				logger, err := ctx.ensureLogger()
				if err != nil {
					return err
				}
				applied := plan.Apply()
				result = &applied
				logger.Info("library rolled back",
					logging.String(logging.FieldRunID, plan.RunID),
					logging.Int("deleted", len(applied.Deleted)),
					logging.Int("pruned", len(applied.Pruned)),
					logging.Int("errors", len(applied.Errors)),
					logging.String(logging.FieldEventType, "manifest_rollback"),
				)
			}

			if ctx.JSONMode() {
				return writeJSON(cmd, map[string]any{
					"plan":    plan,
					"applied": apply,
					"result":  result,
				})
			}
			writeRollback(cmd.OutOrStdout(), plan, result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "Delete the listed files instead of previewing")

	return cmd
}

func writeRollback(out io.Writer, plan manifest.RollbackPlan, result *manifest.RollbackResult) {
	fmt.Fprintf(out, "Rollback to run %s (library %s)\n", shortID(plan.RunID), plan.LibraryDir)
	fmt.Fprintf(out, "Recorded outputs present: %d\n", len(plan.Keep))
	for _, path := range plan.Missing {
		fmt.Fprintf(out, "! missing %s\n", path)
	}
	if len(plan.Delete) == 0 {
		fmt.Fprintln(out, "Library already matches this run")
		return
	}
	if result == nil {
		for _, path := range plan.Delete {
			fmt.Fprintf(out, "- %s\n", path)
		}
		fmt.Fprintf(out, "Dry run: %d files would be deleted; pass --apply to delete them\n", len(plan.Delete))
		return
	}
	for _, path := range result.Deleted {
		fmt.Fprintf(out, "- %s\n", path)
	}
	fmt.Fprintf(out, "Deleted %d files, pruned %d directories\n", len(result.Deleted), len(result.Pruned))
	for _, e := range result.Errors {
		fmt.Fprintf(out, "  Error: %s: %s\n", e.Path, e.Error)
	}
}

// resolveManifest loads ref as a file path when it exists, otherwise as a
// run id prefix among the manifests in dir.
func resolveManifest(dir, ref string) (*manifest.Manifest, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("manifest reference is required")
	}
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return manifest.Load(ref)
	}
	entries, err := manifest.List(dir)
	if err != nil {
		return nil, fmt.Errorf("list manifests: %w", err)
	}
	var matches []manifest.Entry
	for _, entry := range entries {
		if strings.HasPrefix(entry.RunID, ref) {
			matches = append(matches, entry)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no manifest matches %q", ref)
	case 1:
		return manifest.Load(matches[0].Path)
	default:
		return nil, fmt.Errorf("run id prefix %q matches %d manifests", ref, len(matches))
	}
}

func writeManifestDiff(out io.Writer, diff manifest.Diff) {
	if diff.Empty() {
		fmt.Fprintln(out, "No differences")
		return
	}
	if len(diff.TracksChanged) > 0 {
		rows := make([][]string, 0, len(diff.TracksChanged))
		for _, change := range diff.TracksChanged {
			rows = append(rows, []string{change.Parent, fmt.Sprintf("%d", change.TrackNumber), change.Old, change.New})
		}
		fmt.Fprintf(out, "Tracks changed: %d\n", len(diff.TracksChanged))
		fmt.Fprint(out, renderTable(
			[]string{"File", "Track", "Before", "After"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
		))
	}
	for _, path := range diff.FilesAdded {
		fmt.Fprintf(out, "+ %s\n", path)
	}
	for _, path := range diff.FilesRemoved {
		fmt.Fprintf(out, "- %s\n", path)
	}
}
