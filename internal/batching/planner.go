package batching

import (
	"errors"
	"fmt"

	"mixsplit/internal/inputs"
	"mixsplit/internal/memory"
	"mixsplit/internal/services"
)

// ErrInvalidBudget is returned when a budget planner is asked to plan with a
// non-positive budget.
var ErrInvalidBudget = errors.New("memory budget must be positive")

// Planner partitions files into ordered batches.
type Planner interface {
	Plan(files []*inputs.InputFile) ([]*Batch, error)
}

// ForBudget selects the planner for a resolved budget: the greedy budget
// planner normally, or the serial planner when the budget is disabled.
func ForBudget(budget memory.Budget) Planner {
	if budget.Disabled {
		return SerialPlanner{}
	}
	return BudgetPlanner{Budget: budget.Bytes}
}

// BudgetPlanner packs files greedily in discovery order until the next file
// would push the batch over Budget. A file whose estimate alone exceeds the
// budget is placed alone in its own batch and flagged oversized.
type BudgetPlanner struct {
	Budget int64
}

// Plan implements Planner.
func (p BudgetPlanner) Plan(files []*inputs.InputFile) ([]*Batch, error) {
	if p.Budget <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBudget, p.Budget)
	}
	if err := checkEstimates(files); err != nil {
		return nil, err
	}

	var batches []*Batch
	var current *Batch
	flush := func() {
		if current != nil && current.Len() > 0 {
			batches = append(batches, current)
		}
		current = nil
	}

	for _, file := range files {
		if file.Estimate > p.Budget {
			flush()
			oversized := newBatch(len(batches) + 1)
			oversized.add(file)
			oversized.Oversized = true
			batches = append(batches, oversized)
			continue
		}
		if current != nil && current.Total+file.Estimate > p.Budget {
			flush()
		}
		if current == nil {
			current = newBatch(len(batches) + 1)
		}
		current.add(file)
	}
	flush()
	return batches, nil
}

// SerialPlanner places every file in its own batch. It is used when no memory
// budget is available.
type SerialPlanner struct{}

// Plan implements Planner.
func (SerialPlanner) Plan(files []*inputs.InputFile) ([]*Batch, error) {
	if err := checkEstimates(files); err != nil {
		return nil, err
	}
	batches := make([]*Batch, 0, len(files))
	for _, file := range files {
		batch := newBatch(len(batches) + 1)
		batch.add(file)
		batches = append(batches, batch)
	}
	return batches, nil
}

func checkEstimates(files []*inputs.InputFile) error {
	for _, file := range files {
		if file == nil {
			return services.Wrap(services.ErrValidation, "plan", "", "nil input file", nil)
		}
		if file.Estimate <= 0 {
			return services.Wrap(services.ErrValidation, "plan", file.Path, "file has no size estimate", nil)
		}
	}
	return nil
}

// Summary describes a plan for display.
type Summary struct {
	Batches   int
	Files     int
	Oversized int
	Largest   int64
	Total     int64
}

// Summarize returns aggregate figures for a plan.
func Summarize(batches []*Batch) Summary {
	var s Summary
	s.Batches = len(batches)
	for _, batch := range batches {
		s.Files += batch.Len()
		s.Total += batch.Total
		if batch.Oversized {
			s.Oversized++
		}
		if batch.Total > s.Largest {
			s.Largest = batch.Total
		}
	}
	return s
}
