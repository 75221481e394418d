package batching_test

import (
	"errors"
	"fmt"
	"testing"

	"mixsplit/internal/batching"
	"mixsplit/internal/inputs"
	"mixsplit/internal/memory"
)

const gib = int64(1 << 30)

func filesWithEstimates(estimates ...int64) []*inputs.InputFile {
	files := make([]*inputs.InputFile, 0, len(estimates))
	for i, est := range estimates {
		file := inputs.New(i+1, fmt.Sprintf("/in/%02d.mp3", i+1), est/12)
		file.Estimate = est
		files = append(files, file)
	}
	return files
}

func assertExactCover(t *testing.T, files []*inputs.InputFile, batches []*batching.Batch) {
	t.Helper()
	var flattened []*inputs.InputFile
	for i, batch := range batches {
		if batch.Index != i+1 {
			t.Fatalf("batch %d has index %d", i, batch.Index)
		}
		var total int64
		for _, file := range batch.Files {
			total += file.Estimate
		}
		if total != batch.Total {
			t.Fatalf("batch %d total %d does not match files %d", batch.Index, batch.Total, total)
		}
		flattened = append(flattened, batch.Files...)
	}
	if len(flattened) != len(files) {
		t.Fatalf("expected %d files across batches, got %d", len(files), len(flattened))
	}
	for i := range files {
		if flattened[i] != files[i] {
			t.Fatalf("file %d out of order: got %s want %s", i, flattened[i].Path, files[i].Path)
		}
	}
}

func TestBudgetPlannerPacksGreedilyInOrder(t *testing.T) {
	files := filesWithEstimates(3*gib, 3*gib, 3*gib, 3*gib, 3*gib, 3*gib)
	batches, err := batching.BudgetPlanner{Budget: 8 * gib}.Plan(files)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	for _, batch := range batches {
		if batch.Len() != 2 || batch.Total != 6*gib || batch.Oversized {
			t.Fatalf("unexpected batch %+v", batch)
		}
		if batch.Status != batching.StatusPending {
			t.Fatalf("expected pending status, got %s", batch.Status)
		}
	}
	assertExactCover(t, files, batches)
}

func TestBudgetPlannerIsolatesOversizedFile(t *testing.T) {
	files := filesWithEstimates(20 * gib)
	batches, err := batching.BudgetPlanner{Budget: 8 * gib}.Plan(files)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if len(batches) != 1 || !batches[0].Oversized || batches[0].Len() != 1 {
		t.Fatalf("expected single oversized batch, got %+v", batches)
	}
}

func TestBudgetPlannerOversizedClosesOpenBatch(t *testing.T) {
	files := filesWithEstimates(2*gib, 20*gib, 1*gib, 1*gib)
	batches, err := batching.BudgetPlanner{Budget: 8 * gib}.Plan(files)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	if batches[0].Len() != 1 || batches[0].Oversized {
		t.Fatalf("unexpected first batch %+v", batches[0])
	}
	if !batches[1].Oversized {
		t.Fatal("expected middle batch to be oversized")
	}
	if batches[2].Len() != 2 || batches[2].Total != 2*gib {
		t.Fatalf("unexpected last batch %+v", batches[2])
	}
	assertExactCover(t, files, batches)
}

func TestBudgetPlannerRespectsBudgetProperty(t *testing.T) {
	sizes := []int64{5, 1, 9, 3, 3, 7, 2, 8, 1, 1, 6, 4, 15, 2}
	for budget := int64(1); budget <= 16; budget++ {
		files := filesWithEstimates(sizes...)
		batches, err := batching.BudgetPlanner{Budget: budget}.Plan(files)
		if err != nil {
			t.Fatalf("budget %d: Plan returned error: %v", budget, err)
		}
		assertExactCover(t, files, batches)
		for _, batch := range batches {
			if batch.Oversized {
				if batch.Len() != 1 || batch.Total <= budget {
					t.Fatalf("budget %d: invalid oversized batch %+v", budget, batch)
				}
				continue
			}
			if batch.Total > budget {
				t.Fatalf("budget %d: batch %d total %d exceeds budget", budget, batch.Index, batch.Total)
			}
		}
	}
}

func TestBudgetPlannerDeterministic(t *testing.T) {
	files := filesWithEstimates(4, 4, 1, 7, 3, 3, 3)
	first, err := batching.BudgetPlanner{Budget: 8}.Plan(files)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	second, err := batching.BudgetPlanner{Budget: 8}.Plan(files)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("batch counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Len() != second[i].Len() || first[i].Total != second[i].Total {
			t.Fatalf("batch %d differs between runs", i)
		}
		for j := range first[i].Files {
			if first[i].Files[j] != second[i].Files[j] {
				t.Fatalf("batch %d file %d differs between runs", i, j)
			}
		}
	}
}

func TestBudgetPlannerEmptyInput(t *testing.T) {
	batches, err := batching.BudgetPlanner{Budget: 8}.Plan(nil)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if len(batches) != 0 {
		t.Fatalf("expected no batches, got %d", len(batches))
	}
}

func TestBudgetPlannerRejectsInvalidInputs(t *testing.T) {
	if _, err := (batching.BudgetPlanner{Budget: 0}).Plan(filesWithEstimates(1)); !errors.Is(err, batching.ErrInvalidBudget) {
		t.Fatalf("expected invalid budget error, got %v", err)
	}
	if _, err := (batching.BudgetPlanner{Budget: -5}).Plan(nil); !errors.Is(err, batching.ErrInvalidBudget) {
		t.Fatalf("expected invalid budget error for negative budget, got %v", err)
	}
	unestimated := []*inputs.InputFile{inputs.New(1, "/in/a.mp3", 10)}
	if _, err := (batching.BudgetPlanner{Budget: 8}).Plan(unestimated); err == nil {
		t.Fatal("expected error for file without estimate")
	}
}

func TestSerialPlannerOneFilePerBatch(t *testing.T) {
	files := filesWithEstimates(20*gib, 1, 1)
	batches, err := batching.SerialPlanner{}.Plan(files)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	for _, batch := range batches {
		if batch.Len() != 1 || batch.Oversized {
			t.Fatalf("unexpected serial batch %+v", batch)
		}
	}
	assertExactCover(t, files, batches)
}

func TestForBudgetSelectsPlanner(t *testing.T) {
	if _, ok := batching.ForBudget(memory.Budget{Disabled: true}).(batching.SerialPlanner); !ok {
		t.Fatal("expected serial planner for disabled budget")
	}
	planner, ok := batching.ForBudget(memory.Budget{Bytes: 42}).(batching.BudgetPlanner)
	if !ok || planner.Budget != 42 {
		t.Fatalf("expected budget planner with 42 bytes, got %#v", planner)
	}
}

func TestSummarize(t *testing.T) {
	batches, err := batching.BudgetPlanner{Budget: 8}.Plan(filesWithEstimates(4, 4, 20, 1))
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	summary := batching.Summarize(batches)
	if summary.Batches != 3 || summary.Files != 4 || summary.Oversized != 1 || summary.Largest != 20 || summary.Total != 29 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}
