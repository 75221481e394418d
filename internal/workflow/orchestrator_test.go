package workflow_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"mixsplit/internal/identification"
	"mixsplit/internal/manifest"
	"mixsplit/internal/services"
	"mixsplit/internal/testsupport"
	"mixsplit/internal/workflow"
)

func fixedRunID(id string) workflow.Option {
	return workflow.WithRunID(func() string { return id })
}

func (h *harness) orchestrator(opts ...workflow.Option) *workflow.Orchestrator {
	base := []workflow.Option{
		workflow.WithCollaborators(h.collaborators()),
		fixedRunID("run-1"),
	}
	return workflow.NewOrchestrator(h.cfg, nil, append(base, opts...)...)
}

func TestRunEmptyDirectoryReturnsEmptyReport(t *testing.T) {
	h := newHarness(t)
	input := testsupport.InputDir(t, h.cfg)
	hist := &recordingHistory{}

	run, err := h.orchestrator(workflow.WithHistory(hist)).Run(context.Background(), input)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(run.Batches) != 0 || run.Totals.Produced != 0 || !run.Clean() {
		t.Fatalf("expected empty report, got %+v", run)
	}
	if len(hist.runs) != 1 {
		t.Fatalf("empty run should still be recorded, got %d", len(hist.runs))
	}
}

func TestRunPlansBatchesAndAggregates(t *testing.T) {
	h := newHarness(t, testsupport.WithBudgetMB(1))
	input := testsupport.InputDir(t, h.cfg)
	testsupport.WriteInputs(t, input, 400*1024, "a.wav", "b.wav", "c.wav")
	testsupport.WriteFile(t, filepath.Join(input, "notes.txt"), 10)
	testsupport.WriteFile(t, filepath.Join(input, ".hidden.wav"), 10)
	h.decoder.always = shortTrack
	hist := &recordingHistory{}

	run, err := h.orchestrator(workflow.WithHistory(hist)).Run(context.Background(), input)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if run.RunID != "run-1" || run.BudgetMode != "configured" || run.Budget != 1<<20 {
		t.Fatalf("unexpected run header %+v", run)
	}
	if len(run.Batches) != 2 || run.Batches[0].Files != 2 || run.Batches[1].Files != 1 {
		t.Fatalf("unexpected batches %+v", run.Batches)
	}
	if run.Totals.Produced != 3 || run.Totals.Unidentified != 3 {
		t.Fatalf("totals = %+v", run.Totals)
	}
	if len(run.Skipped) != 1 || filepath.Base(run.Skipped[0].Path) != "notes.txt" {
		t.Fatalf("skipped = %+v", run.Skipped)
	}
	if len(run.Failures) != 1 || run.Failures[0].Kind != services.KindUnsupportedFormat {
		t.Fatalf("failures = %+v", run.Failures)
	}
	if run.Elapsed <= 0 {
		t.Fatal("elapsed not recorded")
	}

	for _, name := range []string{"a", "b", "c"} {
		if !exists(t, filepath.Join(h.cfg.Paths.LibraryDir, name+"_Track_1_Unidentified.flac")) {
			t.Errorf("missing library output for %s", name)
		}
	}
	if exists(t, filepath.Join(h.cfg.Paths.StagingDir, "run-1")) {
		t.Fatal("run staging directory should be removed")
	}

	entries, err := manifest.List(h.cfg.Paths.ReportDir)
	if err != nil || len(entries) != 1 || entries[0].RunID != "run-1" {
		t.Fatalf("manifest entries = %+v, err = %v", entries, err)
	}
	if len(hist.runs) != 1 || hist.runs[0] != run {
		t.Fatal("run not handed to history")
	}
}

func TestRunRecordsHistoryDatabase(t *testing.T) {
	h := newHarness(t)
	input := testsupport.InputDir(t, h.cfg)
	testsupport.WriteInputs(t, input, 1024, "set.flac")
	h.decoder.always = fourTrackMix

	if _, err := h.orchestrator().Run(context.Background(), input); err != nil {
		t.Fatalf("Run: %v", err)
	}

	store := testsupport.MustOpenHistory(t, h.cfg)
	detail, err := store.Get(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if detail.Totals.Produced != 4 || len(detail.Tracks) != 4 || len(detail.Batches) != 1 {
		t.Fatalf("unexpected detail %+v", detail)
	}
}

func TestRunSerialWhenMemoryUnavailable(t *testing.T) {
	h := newHarness(t)
	input := testsupport.InputDir(t, h.cfg)
	testsupport.WriteInputs(t, input, 1024, "a.flac", "b.flac", "c.flac")
	unavailable := fixedMemory{err: services.Wrap(services.ErrMemoryQueryUnavailable, "plan", "memory", "no procfs", nil)}

	plan, err := h.orchestrator(workflow.WithMemorySource(unavailable)).Plan(context.Background(), input)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.BudgetMode() != "serial" || len(plan.Batches) != 3 {
		t.Fatalf("mode = %s, batches = %d", plan.BudgetMode(), len(plan.Batches))
	}
	for i, batch := range plan.Batches {
		if batch.Len() != 1 || batch.Index != i+1 || batch.Oversized {
			t.Fatalf("unexpected batch %+v", batch)
		}
	}
}

func TestRunOversizedFileGetsOwnBatch(t *testing.T) {
	h := newHarness(t, testsupport.WithBudgetMB(1))
	input := testsupport.InputDir(t, h.cfg)
	testsupport.WriteInputs(t, input, 100*1024, "a.wav")
	testsupport.WriteInputs(t, input, 2<<20, "b.wav")
	testsupport.WriteInputs(t, input, 100*1024, "c.wav")

	plan, err := h.orchestrator().Plan(context.Background(), input)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Batches) != 3 || !plan.Batches[1].Oversized || plan.Batches[1].Len() != 1 {
		t.Fatalf("unexpected plan %+v", plan.Batches)
	}
}

func TestRunStopsAtBatchBoundary(t *testing.T) {
	h := newHarness(t)
	input := testsupport.InputDir(t, h.cfg)
	testsupport.WriteInputs(t, input, 1024, "a.flac", "b.flac", "c.flac")
	h.decoder.always = shortTrack

	var orch *workflow.Orchestrator
	h.provider.fn = func(identification.Sample) (identification.Match, error) {
		orch.RequestStop()
		return identification.Match{}, nil
	}
	orch = h.orchestrator(
		workflow.WithMemorySource(fixedMemory{err: errors.New("unavailable")}),
		workflow.WithHistory(&recordingHistory{}),
	)

	run, err := orch.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !run.Stopped || len(run.Batches) != 1 {
		t.Fatalf("stopped = %v, batches = %d", run.Stopped, len(run.Batches))
	}
	if run.Batches[0].Counts.Unidentified != 1 {
		t.Fatal("the batch in flight must complete")
	}
	if len(h.decoder.calls) != 1 {
		t.Fatalf("decoded %d files, want 1", len(h.decoder.calls))
	}
}

func TestRunHaltsOnDestinationFailure(t *testing.T) {
	h := newHarness(t)
	h.library = &brokenLibrary{}
	input := testsupport.InputDir(t, h.cfg)
	testsupport.WriteInputs(t, input, 1024, "a.flac", "b.flac")
	h.decoder.always = shortTrack
	hist := &recordingHistory{}

	run, err := h.orchestrator(
		workflow.WithMemorySource(fixedMemory{err: errors.New("unavailable")}),
		workflow.WithHistory(hist),
	).Run(context.Background(), input)

	if !errors.Is(err, workflow.ErrRunHalted) {
		t.Fatalf("err = %v, want ErrRunHalted", err)
	}
	if run == nil || !run.Halted || len(run.Batches) != 1 {
		t.Fatalf("unexpected report %+v", run)
	}
	if len(h.decoder.calls) != 1 {
		t.Fatal("no batch may start after a destination failure")
	}
	if len(hist.runs) != 1 {
		t.Fatal("halted runs are still recorded")
	}
}

func TestRunRefusesWhileLibraryLocked(t *testing.T) {
	h := newHarness(t)
	input := testsupport.InputDir(t, h.cfg)
	lock := workflow.NewLibraryLock(h.cfg.LockPath())
	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Release()

	run, err := h.orchestrator().Run(context.Background(), input)
	if !errors.Is(err, workflow.ErrLibraryLocked) || run != nil {
		t.Fatalf("run = %v, err = %v", run, err)
	}
}

func TestRunMissingInputDirectory(t *testing.T) {
	h := newHarness(t)
	if _, err := h.orchestrator().Run(context.Background(), filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected discovery error")
	}
}
