package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"mixsplit/internal/batching"
	"mixsplit/internal/workflow"
)

type planFileView struct {
	Path     string `json:"path"`
	Format   string `json:"format"`
	Size     int64  `json:"size_bytes"`
	Estimate int64  `json:"estimate_bytes"`
}

type planBatchView struct {
	Index     int            `json:"index"`
	Total     int64          `json:"estimate_bytes"`
	Oversized bool           `json:"oversized"`
	Files     []planFileView `json:"files"`
}

type planView struct {
	InputDir    string          `json:"input_dir"`
	BudgetBytes int64           `json:"budget_bytes"`
	BudgetMode  string          `json:"budget_mode"`
	Batches     []planBatchView `json:"batches"`
	Unsupported []string        `json:"unsupported"`
}

func newPlanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <input_dir>",
		Short: "Show how a directory would be batched without processing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			plan, err := workflow.NewOrchestrator(cfg, logger).Plan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			view := buildPlanView(plan)
			if ctx.JSONMode() {
				return writeJSON(cmd, view)
			}
			writePlan(cmd.OutOrStdout(), plan, view)
			return nil
		},
	}
}

func buildPlanView(plan *workflow.Plan) planView {
	view := planView{
		InputDir:    plan.InputDir,
		BudgetBytes: plan.Budget.Bytes,
		BudgetMode:  plan.BudgetMode(),
		Batches:     make([]planBatchView, 0, len(plan.Batches)),
		Unsupported: make([]string, 0, len(plan.Rejected)),
	}
	for _, batch := range plan.Batches {
		b := planBatchView{Index: batch.Index, Total: batch.Total, Oversized: batch.Oversized}
		for _, file := range batch.Files {
			b.Files = append(b.Files, planFileView{Path: file.Path, Format: file.Format, Size: file.Size, Estimate: file.Estimate})
		}
		view.Batches = append(view.Batches, b)
	}
	for _, rejected := range plan.Rejected {
		view.Unsupported = append(view.Unsupported, rejected.File.Path)
	}
	return view
}

func writePlan(out io.Writer, plan *workflow.Plan, view planView) {
	summary := batching.Summarize(plan.Batches)
	fmt.Fprintf(out, "Input: %s\nBudget: %s\n\n", view.InputDir, plan.Budget)
	if summary.Batches == 0 {
		fmt.Fprintln(out, "No supported recordings found")
	} else {
		var rows [][]string
		for _, batch := range view.Batches {
			for i, file := range batch.Files {
				index := ""
				if i == 0 {
					index = fmt.Sprintf("%d", batch.Index)
					if batch.Oversized {
						index += "*"
					}
				}
				rows = append(rows, []string{index, filepath.Base(file.Path), file.Format, formatBytes(file.Size), formatBytes(file.Estimate)})
			}
		}
		fmt.Fprint(out, renderTableWithFooter(
			[]string{"Batch", "File", "Format", "Size", "Estimate"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight},
			[]string{"", fmt.Sprintf("%d files in %d batches", summary.Files, summary.Batches), "", "", formatBytes(summary.Total)},
		))
		if summary.Oversized > 0 {
			fmt.Fprintf(out, "* %d file(s) exceed the budget and run alone\n", summary.Oversized)
		}
	}
	if len(view.Unsupported) > 0 {
		fmt.Fprintf(out, "\nUnsupported: %d\n", len(view.Unsupported))
		for _, path := range view.Unsupported {
			fmt.Fprintf(out, "  %s\n", path)
		}
	}
}
