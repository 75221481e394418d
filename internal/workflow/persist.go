package workflow

import (
	"context"
	"log/slog"

	"mixsplit/internal/history"
	"mixsplit/internal/logging"
	"mixsplit/internal/manifest"
	"mixsplit/internal/report"
)

// persist records the finished run in the history database and the report
// directory, then notifies. Every step is best effort: the run's output is
// already in the library.
func (o *Orchestrator) persist(ctx context.Context, logger *slog.Logger, run *report.RunReport) {
	if err := o.saveHistory(ctx, run); err != nil {
		logging.WarnWithContext(logger, "failed to record run history", "history_save_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions"),
			logging.String(logging.FieldImpact, "run missing from mixsplit history"),
		)
	}

	if path, err := manifest.Write(o.cfg.Paths.ReportDir, manifest.Build(run, o.cfg)); err != nil {
		logging.WarnWithContext(logger, "failed to write run manifest", "manifest_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check report_dir permissions"),
		)
	} else {
		logger.Info("run manifest written",
			logging.String("path", path),
			logging.String(logging.FieldEventType, "manifest_written"),
		)
	}

	if o.notifier == nil {
		return
	}
	if err := o.notifier.NotifyRunCompleted(ctx, run); err != nil {
		logger.Debug("run notification failed", logging.Error(err))
	}
}

func (o *Orchestrator) saveHistory(ctx context.Context, run *report.RunReport) error {
	if o.history != nil {
		return o.history.Save(ctx, run)
	}
	store, err := history.Open(o.cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Save(ctx, run)
}
