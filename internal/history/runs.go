package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mixsplit/internal/report"
	"mixsplit/internal/services"
)

// ErrAmbiguousRun is returned when a run id prefix matches several runs.
var ErrAmbiguousRun = errors.New("run id prefix is ambiguous")

// RunSummary is one row of the runs table.
type RunSummary struct {
	ID         string
	InputDir   string
	LibraryDir string
	StartedAt  time.Time
	Elapsed    time.Duration
	Budget     int64
	BudgetMode string
	Totals     report.Counts
	Stopped    bool
	Halted     bool
}

// BatchRow is one row of the batches table.
type BatchRow struct {
	Index     int
	Files     int
	Estimate  int64
	Oversized bool
	Counts    report.Counts
	Elapsed   time.Duration
	Fatal     bool
}

// RunDetail is a run with its batches, failures and skipped inputs.
type RunDetail struct {
	RunSummary
	Batches  []BatchRow
	Tracks   []report.TrackOutcome
	Failures []report.Failure
	Skipped  []report.SkippedInput
}

// Save persists a run report in one transaction.
func (s *Store) Save(ctx context.Context, run *report.RunReport) error {
	if run == nil || run.RunID == "" {
		return errors.New("run report without id")
	}
	return retryOnBusy(ctx, func() error { return s.save(ctx, run) })
}

func (s *Store) save(ctx context.Context, run *report.RunReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT INTO runs (
            id, input_dir, library_dir, started_at, elapsed_ms, budget_bytes, budget_mode,
            produced, identified, unidentified, skipped, failed, stopped, halted
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.InputDir, run.LibraryDir,
		run.StartedAt.UTC().Format(timeLayout),
		run.Elapsed.Milliseconds(), run.Budget, run.BudgetMode,
		run.Totals.Produced, run.Totals.Identified, run.Totals.Unidentified, run.Totals.Skipped, run.Totals.Failed,
		boolToInt(run.Stopped), boolToInt(run.Halted),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, batch := range run.Batches {
		if _, err := tx.ExecContext(ctx, `INSERT INTO batches (
                run_id, idx, files, estimate_bytes, oversized,
                produced, identified, unidentified, skipped, failed, elapsed_ms, fatal
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, batch.Index, batch.Files, batch.Estimate, boolToInt(batch.Oversized),
			batch.Counts.Produced, batch.Counts.Identified, batch.Counts.Unidentified, batch.Counts.Skipped, batch.Counts.Failed,
			batch.Elapsed.Milliseconds(), boolToInt(batch.Fatal),
		); err != nil {
			return fmt.Errorf("insert batch %d: %w", batch.Index, err)
		}
		for _, track := range batch.Outcomes {
			if _, err := tx.ExecContext(ctx, `INSERT INTO tracks (
                    run_id, batch_idx, parent, ordinal, status, artist, title, album,
                    provider, confidence, output_path, tagged, start_ms, end_ms
                ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				run.RunID, batch.Index, track.Parent, track.Ordinal, string(track.Status),
				nullableString(track.Metadata.Artist), nullableString(track.Metadata.Title), nullableString(track.Metadata.Album),
				nullableString(track.Provider), track.Confidence, nullableString(track.OutputPath), boolToInt(track.Tagged),
				track.Start.Milliseconds(), track.End.Milliseconds(),
			); err != nil {
				return fmt.Errorf("insert track %s#%d: %w", track.Parent, track.Ordinal, err)
			}
		}
	}

	for _, failure := range run.Failures {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO failures (run_id, path, track, kind, message) VALUES (?, ?, ?, ?, ?)`,
			run.RunID, failure.Path, nullableInt(failure.Track), string(failure.Kind), failure.Message,
		); err != nil {
			return fmt.Errorf("insert failure: %w", err)
		}
	}
	for _, skipped := range run.Skipped {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO skipped_inputs (run_id, path, format, reason) VALUES (?, ?, ?, ?)`,
			run.RunID, skipped.Path, nullableString(skipped.Format), skipped.Reason,
		); err != nil {
			return fmt.Errorf("insert skipped input: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

const runColumns = "id, input_dir, library_dir, started_at, elapsed_ms, budget_bytes, budget_mode, produced, identified, unidentified, skipped, failed, stopped, halted"

func scanRun(scanner interface{ Scan(dest ...any) error }) (RunSummary, error) {
	var (
		run             RunSummary
		startedRaw      string
		elapsedMS       int64
		stopped, halted int
	)
	if err := scanner.Scan(
		&run.ID, &run.InputDir, &run.LibraryDir, &startedRaw, &elapsedMS, &run.Budget, &run.BudgetMode,
		&run.Totals.Produced, &run.Totals.Identified, &run.Totals.Unidentified, &run.Totals.Skipped, &run.Totals.Failed,
		&stopped, &halted,
	); err != nil {
		return RunSummary{}, err
	}
	if started, err := time.Parse(timeLayout, startedRaw); err == nil {
		run.StartedAt = started
	}
	run.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	run.Stopped = stopped != 0
	run.Halted = halted != 0
	return run, nil
}

// List returns the most recent runs, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Get loads a run by id or unique id prefix.
func (s *Store) Get(ctx context.Context, idPrefix string) (*RunDetail, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id LIKE ? || '%' LIMIT 2`, idPrefix)
	if err != nil {
		return nil, fmt.Errorf("find run: %w", err)
	}
	var matches []RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		matches = append(matches, run)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find run: %w", err)
	}
	switch len(matches) {
	case 0:
		return nil, services.Wrap(services.ErrNotFound, "history", "get", fmt.Sprintf("no run matches %q", idPrefix), nil)
	case 1:
	default:
		return nil, fmt.Errorf("%w: %q", ErrAmbiguousRun, idPrefix)
	}

	detail := &RunDetail{RunSummary: matches[0]}
	if detail.Batches, err = s.batches(ctx, detail.ID); err != nil {
		return nil, err
	}
	if detail.Tracks, err = s.tracks(ctx, detail.ID); err != nil {
		return nil, err
	}
	if detail.Failures, err = s.failures(ctx, detail.ID); err != nil {
		return nil, err
	}
	if detail.Skipped, err = s.skipped(ctx, detail.ID); err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *Store) batches(ctx context.Context, runID string) ([]BatchRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT idx, files, estimate_bytes, oversized,
            produced, identified, unidentified, skipped, failed, elapsed_ms, fatal
        FROM batches WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("load batches: %w", err)
	}
	defer rows.Close()
	var out []BatchRow
	for rows.Next() {
		var (
			row              BatchRow
			oversized, fatal int
			elapsedMS        int64
		)
		if err := rows.Scan(&row.Index, &row.Files, &row.Estimate, &oversized,
			&row.Counts.Produced, &row.Counts.Identified, &row.Counts.Unidentified, &row.Counts.Skipped, &row.Counts.Failed,
			&elapsedMS, &fatal); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		row.Oversized = oversized != 0
		row.Fatal = fatal != 0
		row.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) tracks(ctx context.Context, runID string) ([]report.TrackOutcome, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT parent, ordinal, status, artist, title, album,
            provider, confidence, output_path, tagged, start_ms, end_ms
        FROM tracks WHERE run_id = ? ORDER BY batch_idx, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("load tracks: %w", err)
	}
	defer rows.Close()
	var out []report.TrackOutcome
	for rows.Next() {
		var (
			track                                  report.TrackOutcome
			status                                 string
			artist, title, album, provider, output sql.NullString
			confidence                             sql.NullFloat64
			tagged                                 int
			startMS, endMS                         int64
		)
		if err := rows.Scan(&track.Parent, &track.Ordinal, &status, &artist, &title, &album,
			&provider, &confidence, &output, &tagged, &startMS, &endMS); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		track.Status = report.TrackStatus(status)
		track.Metadata.Artist = artist.String
		track.Metadata.Title = title.String
		track.Metadata.Album = album.String
		track.Provider = provider.String
		track.Confidence = confidence.Float64
		track.OutputPath = output.String
		track.Tagged = tagged != 0
		track.Start = time.Duration(startMS) * time.Millisecond
		track.End = time.Duration(endMS) * time.Millisecond
		out = append(out, track)
	}
	return out, rows.Err()
}

func (s *Store) failures(ctx context.Context, runID string) ([]report.Failure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, track, kind, message FROM failures WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("load failures: %w", err)
	}
	defer rows.Close()
	var out []report.Failure
	for rows.Next() {
		var (
			failure report.Failure
			track   sql.NullInt64
			kind    string
		)
		if err := rows.Scan(&failure.Path, &track, &kind, &failure.Message); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		failure.Track = int(track.Int64)
		failure.Kind = services.FailureKind(kind)
		out = append(out, failure)
	}
	return out, rows.Err()
}

func (s *Store) skipped(ctx context.Context, runID string) ([]report.SkippedInput, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, format, reason FROM skipped_inputs WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("load skipped inputs: %w", err)
	}
	defer rows.Close()
	var out []report.SkippedInput
	for rows.Next() {
		var (
			skipped report.SkippedInput
			format  sql.NullString
		)
		if err := rows.Scan(&skipped.Path, &format, &skipped.Reason); err != nil {
			return nil, fmt.Errorf("scan skipped input: %w", err)
		}
		skipped.Format = format.String
		out = append(out, skipped)
	}
	return out, rows.Err()
}

// Prune deletes runs that started before cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		stamp := cutoff.UTC().Format(timeLayout)
		for _, table := range []string{"batches", "tracks", "failures", "skipped_inputs"} {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM `+table+` WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)`, stamp); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, stamp)
		if err != nil {
			return err
		}
		if removed, err = res.RowsAffected(); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return removed, nil
}
