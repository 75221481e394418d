package workflow

import (
	"context"
	"log/slog"

	"mixsplit/internal/batching"
	"mixsplit/internal/inputs"
	"mixsplit/internal/logging"
	"mixsplit/internal/memory"
)

// Rejected is a discovered file excluded before batching.
type Rejected struct {
	File *inputs.InputFile
	Err  error
}

// Plan is the batching decision for an input directory.
type Plan struct {
	InputDir string
	Files    []*inputs.InputFile
	Rejected []Rejected
	Budget   memory.Budget
	Batches  []*batching.Batch
}

// BudgetMode names how the budget was derived.
func (p *Plan) BudgetMode() string {
	switch {
	case p.Budget.Disabled:
		return "serial"
	case p.Budget.Fixed:
		return "configured"
	default:
		return "system"
	}
}

// Plan discovers inputs, estimates them, reads the memory source once and
// partitions the supported files into batches. It has no side effects and
// backs both Run and the plan command.
func (o *Orchestrator) Plan(ctx context.Context, inputDir string) (*Plan, error) {
	logger := logging.WithContext(ctx, o.logger)
	files, err := inputs.Discover(inputDir, inputs.DiscoverOptions{
		Recursive: o.cfg.Workflow.Recursive,
		Exclude:   []string{o.cfg.Paths.LibraryDir, o.cfg.Paths.StagingDir},
	})
	if err != nil {
		return nil, err
	}

	plan := &Plan{InputDir: inputDir}
	estimator := memory.NewEstimator(o.cfg.Memory.ExpansionFactors)
	for _, file := range files {
		if err := estimator.EstimateFile(file); err != nil {
			logger.Info("unsupported input skipped",
				logging.String(logging.FieldFile, file.Path),
				logging.String("format", file.Format),
				logging.String(logging.FieldEventType, "input_unsupported"),
			)
			plan.Rejected = append(plan.Rejected, Rejected{File: file, Err: err})
			continue
		}
		plan.Files = append(plan.Files, file)
	}

	budget, err := memory.ResolveBudget(o.cfg.Memory, o.memory)
	if err != nil {
		logging.WarnWithContext(logger, "memory query unavailable; processing one file per batch", "memory_degraded",
			logging.Error(err),
			logging.String(logging.FieldImpact, "batches hold a single file"),
			logging.String(logging.FieldErrorHint, "set memory.budget_mb to use a fixed budget"),
		)
	}
	plan.Budget = budget

	batches, err := batching.ForBudget(budget).Plan(plan.Files)
	if err != nil {
		return nil, err
	}
	plan.Batches = batches
	logPlan(logger, plan)
	return plan, nil
}

func logPlan(logger *slog.Logger, plan *Plan) {
	summary := batching.Summarize(plan.Batches)
	logger.Info("batch plan ready",
		logging.Int("files", summary.Files),
		logging.Int("unsupported", len(plan.Rejected)),
		logging.Int("batches", summary.Batches),
		logging.Int("oversized", summary.Oversized),
		logging.String("budget", plan.Budget.String()),
		logging.String(logging.FieldEventType, "plan_ready"),
	)
	for _, batch := range plan.Batches {
		if batch.Oversized {
			logging.WarnWithContext(logger, "file exceeds the memory budget; processing it alone", "batch_oversized",
				logging.Int(logging.FieldBatch, batch.Index),
				logging.String(logging.FieldFile, batch.Files[0].Path),
				logging.Int64("estimate_bytes", batch.Total),
				logging.String(logging.FieldImpact, "peak memory may exceed the budget for this batch"),
			)
		}
	}
}
