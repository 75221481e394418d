package batching

import "mixsplit/internal/inputs"

// Status is the completion state of a batch.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"
)

// Batch is an ordered, memory-bounded group of input files processed together
// through both pipeline phases.
type Batch struct {
	// Index is the 1-based position in the plan.
	Index int
	Files []*inputs.InputFile
	// Total is the sum of the files' estimates.
	Total int64
	// Oversized marks a singleton whose estimate alone exceeds the budget.
	Oversized bool
	Status    Status
}

// Len returns the number of files in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Files)
}

// MarkCompleted records that both phases finished.
func (b *Batch) MarkCompleted() { b.Status = StatusCompleted }

// MarkAborted records that the batch stopped on an unrecoverable failure.
func (b *Batch) MarkAborted() { b.Status = StatusAborted }

func newBatch(index int) *Batch {
	return &Batch{Index: index, Status: StatusPending}
}

func (b *Batch) add(file *inputs.InputFile) {
	b.Files = append(b.Files, file)
	b.Total += file.Estimate
}
