package history_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"mixsplit/internal/history"
	"mixsplit/internal/identification"
	"mixsplit/internal/report"
	"mixsplit/internal/services"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.OpenPath(filepath.Join(t.TempDir(), "state", "history.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleRun(id string, started time.Time) *report.RunReport {
	run := &report.RunReport{
		RunID:      id,
		InputDir:   "/in",
		LibraryDir: "/lib",
		StartedAt:  started,
		Elapsed:    90 * time.Second,
		Budget:     8 << 30,
		BudgetMode: "budget",
	}
	run.AddBatch(report.BatchResult{
		Index:    1,
		Files:    2,
		Estimate: 6 << 30,
		Counts:   report.Counts{Produced: 2, Identified: 1, Unidentified: 1},
		Elapsed:  40 * time.Second,
		Outcomes: []report.TrackOutcome{
			{
				Parent: "/in/mix.mp3", Ordinal: 1, Status: report.TrackIdentified,
				Metadata: identification.Metadata{Artist: "Air", Title: "La Femme d'Argent", Album: "Moon Safari"},
				Provider: "acrcloud", Confidence: 0.92, OutputPath: "/lib/Air/Air - La Femme d'Argent.flac", Tagged: true,
				Start: 0, End: 7 * time.Minute,
			},
			{
				Parent: "/in/mix.mp3", Ordinal: 2, Status: report.TrackUnidentified,
				OutputPath: "/lib/mix_Track_2_Unidentified.flac", Start: 7 * time.Minute, End: 12 * time.Minute,
			},
		},
		Failures: []report.Failure{
			report.NewFailure("/in/mix.mp3", 2, services.Wrap(services.ErrIdentificationFailure, "identify", "acrcloud", "quota", nil)),
		},
	})
	run.AddSkipped("/in/cover.jpg", "jpg", services.Wrap(services.ErrUnsupportedFormat, "estimate", "format", "jpg", nil))
	return run
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.Save(ctx, sampleRun("7f0c2d9e-0000-4000-8000-000000000001", started)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	detail, err := store.Get(ctx, "7f0c2d9e")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !detail.StartedAt.Equal(started) || detail.Elapsed != 90*time.Second {
		t.Fatalf("unexpected timing %v / %v", detail.StartedAt, detail.Elapsed)
	}
	if detail.Totals != (report.Counts{Produced: 2, Identified: 1, Unidentified: 1}) {
		t.Fatalf("unexpected totals %+v", detail.Totals)
	}
	if len(detail.Batches) != 1 || detail.Batches[0].Estimate != 6<<30 {
		t.Fatalf("unexpected batches %+v", detail.Batches)
	}
	if len(detail.Tracks) != 2 || detail.Tracks[0].Metadata.Album != "Moon Safari" || !detail.Tracks[0].Tagged {
		t.Fatalf("unexpected tracks %+v", detail.Tracks)
	}
	if detail.Tracks[1].End != 12*time.Minute {
		t.Fatalf("unexpected track span %+v", detail.Tracks[1])
	}
	if len(detail.Failures) != 2 {
		t.Fatalf("expected identification and unsupported failures, got %+v", detail.Failures)
	}
	if detail.Failures[0].Track != 2 || detail.Failures[0].Kind != services.KindIdentificationFailure {
		t.Fatalf("unexpected failure %+v", detail.Failures[0])
	}
	if len(detail.Skipped) != 1 || detail.Skipped[0].Format != "jpg" {
		t.Fatalf("unexpected skipped %+v", detail.Skipped)
	}
}

func TestGetUnknownAndAmbiguous(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	now := time.Now()
	for _, id := range []string{"abc-1", "abc-2"} {
		if err := store.Save(ctx, sampleRun(id, now)); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}
	if _, err := store.Get(ctx, "zzz"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.Get(ctx, "abc"); !errors.Is(err, history.ErrAmbiguousRun) {
		t.Fatalf("expected ambiguous, got %v", err)
	}
	if _, err := store.Get(ctx, "abc-2"); err != nil {
		t.Fatalf("Get exact: %v", err)
	}
}

func TestListNewestFirstAndPrune(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		if err := store.Save(ctx, sampleRun(id, base.Add(time.Duration(i)*24*time.Hour))); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	runs, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-c" || runs[1].ID != "run-b" {
		t.Fatalf("unexpected order %+v", runs)
	}

	removed, err := store.Prune(ctx, base.Add(36*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	runs, err = store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-c" {
		t.Fatalf("unexpected remaining runs %+v", runs)
	}
}

func TestSaveRejectsDuplicateRun(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	run := sampleRun("dup", time.Now())
	if err := store.Save(ctx, run); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, run); err == nil {
		t.Fatal("expected primary key violation")
	}
	detail, err := store.Get(ctx, "dup")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(detail.Tracks) != 2 {
		t.Fatalf("failed save leaked rows: %d tracks", len(detail.Tracks))
	}
}
