package report

import (
	"time"

	"mixsplit/internal/identification"
	"mixsplit/internal/services"
)

// TrackStatus is the final state of one track.
type TrackStatus string

const (
	TrackIdentified   TrackStatus = "identified"
	TrackUnidentified TrackStatus = "unidentified"
	TrackSkipped      TrackStatus = "skipped"
	TrackFailed       TrackStatus = "failed"
)

// Failure is one recorded problem, attributed to an input file and, when the
// problem belongs to a single track, its ordinal.
type Failure struct {
	Path    string               `json:"path"`
	Track   int                  `json:"track,omitempty"`
	Kind    services.FailureKind `json:"kind"`
	Message string               `json:"message"`
}

// NewFailure classifies err and builds a Failure for path.
func NewFailure(path string, track int, err error) Failure {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Failure{Path: path, Track: track, Kind: services.KindOf(err), Message: msg}
}

// TrackOutcome is what happened to one exported track.
type TrackOutcome struct {
	Parent     string                  `json:"parent"`
	Ordinal    int                     `json:"ordinal"`
	Status     TrackStatus             `json:"status"`
	Metadata   identification.Metadata `json:"metadata"`
	Provider   string                  `json:"provider,omitempty"`
	Confidence float64                 `json:"confidence,omitempty"`
	OutputPath string                  `json:"output_path,omitempty"`
	Tagged     bool                    `json:"tagged"`
	Start      time.Duration           `json:"start_ns"`
	End        time.Duration           `json:"end_ns"`
}

// FileSplit records how one input file was classified and cut.
type FileSplit struct {
	Path           string        `json:"path"`
	Format         string        `json:"format"`
	Size           int64         `json:"size"`
	Duration       time.Duration `json:"duration_ns"`
	Classification string        `json:"classification"`
	Segments       int           `json:"segments"`
	Gaps           int           `json:"gaps"`
	Degenerate     bool          `json:"degenerate"`
	Silent         bool          `json:"silent,omitempty"`
}

// Counts are the per-batch and per-run track tallies.
type Counts struct {
	Produced     int `json:"produced"`
	Identified   int `json:"identified"`
	Unidentified int `json:"unidentified"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
}

// Add accumulates other into c.
func (c *Counts) Add(other Counts) {
	c.Produced += other.Produced
	c.Identified += other.Identified
	c.Unidentified += other.Unidentified
	c.Skipped += other.Skipped
	c.Failed += other.Failed
}

// Count tallies one track outcome.
func (c *Counts) Count(status TrackStatus) {
	switch status {
	case TrackIdentified:
		c.Identified++
	case TrackUnidentified:
		c.Unidentified++
	case TrackSkipped:
		c.Skipped++
	case TrackFailed:
		c.Failed++
	}
}

// BatchResult is the outcome of one batch. It is read-only once returned.
type BatchResult struct {
	Index     int            `json:"index"`
	Files     int            `json:"files"`
	Estimate  int64          `json:"estimate_bytes"`
	Oversized bool           `json:"oversized"`
	Counts    Counts         `json:"counts"`
	Elapsed   time.Duration  `json:"elapsed_ns"`
	Splits    []FileSplit    `json:"splits,omitempty"`
	Outcomes  []TrackOutcome `json:"outcomes,omitempty"`
	Failures  []Failure      `json:"failures,omitempty"`
	// Fatal is set when a destination write failure stopped the batch.
	Fatal bool `json:"fatal"`
}

// SkippedInput is a discovered file that never entered a batch.
type SkippedInput struct {
	Path   string `json:"path"`
	Format string `json:"format"`
	Reason string `json:"reason"`
}

// RunReport aggregates a whole run.
type RunReport struct {
	RunID      string         `json:"run_id"`
	InputDir   string         `json:"input_dir"`
	LibraryDir string         `json:"library_dir"`
	StartedAt  time.Time      `json:"started_at"`
	Elapsed    time.Duration  `json:"elapsed_ns"`
	Budget     int64          `json:"budget_bytes"`
	BudgetMode string         `json:"budget_mode"`
	Batches    []BatchResult  `json:"batches"`
	Skipped    []SkippedInput `json:"skipped_inputs"`
	Failures   []Failure      `json:"failures"`
	Totals     Counts         `json:"totals"`
	// Stopped is set when a stop request ended the run at a batch boundary.
	Stopped bool `json:"stopped"`
	// Halted is set when a destination write failure ended the run.
	Halted bool `json:"halted"`
}

// AddBatch appends a batch result and folds it into the totals.
func (r *RunReport) AddBatch(result BatchResult) {
	r.Batches = append(r.Batches, result)
	r.Totals.Add(result.Counts)
	r.Failures = append(r.Failures, result.Failures...)
	if result.Fatal {
		r.Halted = true
	}
}

// AddSkipped records an input excluded before planning.
func (r *RunReport) AddSkipped(path, format string, err error) {
	reason := "unsupported format"
	if err != nil {
		reason = err.Error()
	}
	r.Skipped = append(r.Skipped, SkippedInput{Path: path, Format: format, Reason: reason})
	r.Failures = append(r.Failures, NewFailure(path, 0, err))
}

// Clean reports whether the run finished without failures.
func (r *RunReport) Clean() bool {
	return len(r.Failures) == 0 && !r.Halted
}
