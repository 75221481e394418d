package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"mixsplit/internal/config"
	"mixsplit/internal/logging"
	"mixsplit/internal/memory"
	"mixsplit/internal/notifications"
	"mixsplit/internal/report"
	"mixsplit/internal/services"
	"mixsplit/internal/staging"
)

// ErrRunHalted is returned when a destination write failure stopped the run.
var ErrRunHalted = errors.New("run halted")

// HistoryRecorder persists finished runs.
type HistoryRecorder interface {
	Save(ctx context.Context, run *report.RunReport) error
}

// Orchestrator plans and runs batches for an input directory.
type Orchestrator struct {
	cfg      *config.Config
	logger   *slog.Logger
	memory   memory.Source
	notifier notifications.Service
	history  HistoryRecorder
	deps     Collaborators
	newRunID func() string
	now      func() time.Time

	stop atomic.Bool
}

// Option configures optional Orchestrator behavior.
type Option func(*Orchestrator)

// WithMemorySource replaces the system memory query.
func WithMemorySource(source memory.Source) Option {
	return func(o *Orchestrator) { o.memory = source }
}

// WithNotifier replaces the configured notification service.
func WithNotifier(notifier notifications.Service) Option {
	return func(o *Orchestrator) { o.notifier = notifier }
}

// WithHistory records runs in recorder instead of the configured database.
func WithHistory(recorder HistoryRecorder) Option {
	return func(o *Orchestrator) { o.history = recorder }
}

// WithCollaborators supplies executor collaborators (used in tests).
func WithCollaborators(deps Collaborators) Option {
	return func(o *Orchestrator) { o.deps = deps }
}

// WithRunID fixes the run identifier generator.
func WithRunID(fn func() string) Option {
	return func(o *Orchestrator) { o.newRunID = fn }
}

// NewOrchestrator constructs an orchestrator for cfg.
func NewOrchestrator(cfg *config.Config, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	o := &Orchestrator{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "orchestrator"),
		memory:   memory.NewSystemSource(),
		notifier: notifications.NewService(cfg),
		newRunID: uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RequestStop asks the run to end at the next batch boundary. The batch in
// flight always completes.
func (o *Orchestrator) RequestStop() {
	if o.stop.CompareAndSwap(false, true) {
		o.logger.Info("stop requested; finishing current batch",
			logging.String(logging.FieldEventType, "stop_requested"),
		)
	}
}

// StopRequested reports whether RequestStop was called.
func (o *Orchestrator) StopRequested() bool {
	return o.stop.Load()
}

// Run processes inputDir batch by batch and returns the run report. The
// report is returned alongside ErrRunHalted when a destination failure
// stopped scheduling; planner precondition, lock and discovery failures
// return an error before any batch runs.
func (o *Orchestrator) Run(ctx context.Context, inputDir string) (*report.RunReport, error) {
	runID := o.newRunID()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, o.logger)

	if abs, err := filepath.Abs(inputDir); err == nil {
		inputDir = abs
	}

	lock := NewLibraryLock(o.cfg.LockPath())
	if err := lock.Acquire(); err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("failed to release library lock", logging.Error(err))
		}
	}()

	if err := o.cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "run", "prepare directories", "", err)
	}
	retention := time.Duration(o.cfg.Workflow.StagingRetentionHours) * time.Hour
	staging.CleanStale(ctx, o.cfg.Paths.StagingDir, retention, logger)

	started := o.now()
	run := &report.RunReport{
		RunID:      runID,
		InputDir:   inputDir,
		LibraryDir: o.cfg.Paths.LibraryDir,
		StartedAt:  started.UTC(),
	}
	logger.Info("run started",
		logging.String("input_dir", inputDir),
		logging.String("library_dir", o.cfg.Paths.LibraryDir),
		logging.String(logging.FieldEventType, "run_started"),
	)

	plan, err := o.Plan(ctx, inputDir)
	if err != nil {
		return nil, err
	}
	run.Budget = plan.Budget.Bytes
	run.BudgetMode = plan.BudgetMode()
	for _, rejected := range plan.Rejected {
		run.AddSkipped(rejected.File.Path, rejected.File.Format, rejected.Err)
	}

	if len(plan.Batches) > 0 {
		if err := o.execute(ctx, run, plan); err != nil {
			return nil, err
		}
	}

	run.Elapsed = o.now().Sub(started)
	o.persist(context.WithoutCancel(ctx), logger, run)
	logger.Info("run finished",
		logging.Int("batches", len(run.Batches)),
		logging.Int("produced", run.Totals.Produced),
		logging.Int("identified", run.Totals.Identified),
		logging.Int("unidentified", run.Totals.Unidentified),
		logging.Int("failed", run.Totals.Failed),
		logging.Int("skipped_inputs", len(run.Skipped)),
		logging.Bool("stopped", run.Stopped),
		logging.Bool("halted", run.Halted),
		logging.Duration("elapsed", run.Elapsed),
		logging.String(logging.FieldEventType, "run_finished"),
	)

	if run.Halted {
		return run, fmt.Errorf("%w: %s", ErrRunHalted, haltReason(run))
	}
	return run, nil
}

// execute runs the planned batches strictly one after another.
func (o *Orchestrator) execute(ctx context.Context, run *report.RunReport, plan *Plan) error {
	logger := logging.WithContext(ctx, o.logger)
	executor, err := NewExecutor(o.cfg, run.RunID, o.deps, o.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := executor.Layout().RemoveRun(); err != nil {
			logger.Debug("run staging directory not removed", logging.Error(err))
		}
	}()

	for i, batch := range plan.Batches {
		if o.StopRequested() || ctx.Err() != nil {
			run.Stopped = true
			logger.Info("run stopped at batch boundary",
				logging.Int("completed_batches", i),
				logging.Int("remaining_batches", len(plan.Batches)-i),
				logging.String(logging.FieldEventType, "run_stopped"),
			)
			break
		}
		result := executor.Run(ctx, batch)
		run.AddBatch(result)
		if result.Fatal {
			logging.ErrorWithContext(logger, "destination write failure; no further batches scheduled", "run_halted",
				logging.Int(logging.FieldBatch, batch.Index),
				logging.Int("remaining_batches", len(plan.Batches)-i-1),
				logging.String(logging.FieldErrorHint, "check library_dir permissions and free space"),
			)
			break
		}
	}
	return nil
}

func haltReason(run *report.RunReport) string {
	for _, failure := range run.Failures {
		if failure.Kind == services.KindDestinationWriteFailure {
			return failure.Message
		}
	}
	return "destination write failure"
}
