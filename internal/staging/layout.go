package staging

import (
	"fmt"
	"os"
	"path/filepath"

	"mixsplit/internal/services"
)

// Layout resolves the scratch directories of one run:
// <staging>/<run_id>/batch-NNN.
type Layout struct {
	Root  string
	RunID string
}

// RunDir is the directory holding every batch of the run.
func (l Layout) RunDir() string {
	return filepath.Join(l.Root, l.RunID)
}

// BatchDir is the scratch directory of a single batch.
func (l Layout) BatchDir(index int) string {
	return filepath.Join(l.RunDir(), fmt.Sprintf("batch-%03d", index))
}

// CreateBatch creates the batch directory and its samples subdirectory.
func (l Layout) CreateBatch(index int) (string, error) {
	dir := l.BatchDir(index)
	if err := os.MkdirAll(filepath.Join(dir, "samples"), 0o755); err != nil {
		return "", services.Wrap(services.ErrDestinationWriteFailure, "split", "create staging", "Failed to create batch staging directory", err)
	}
	return dir, nil
}

// RemoveBatch deletes a batch directory and everything beneath it.
func (l Layout) RemoveBatch(index int) error {
	return os.RemoveAll(l.BatchDir(index))
}

// RemoveRun deletes the run directory if nothing is left in it.
func (l Layout) RemoveRun() error {
	err := os.Remove(l.RunDir())
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	entries, readErr := os.ReadDir(l.RunDir())
	if readErr == nil && len(entries) > 0 {
		return nil
	}
	return err
}
