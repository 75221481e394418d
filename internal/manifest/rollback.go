package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// audioExtensions are the library files a rollback considers. Anything else
// under the library (cover art, notes, hidden files) is never touched.
var audioExtensions = map[string]struct{}{
	".flac": {},
	".mp3":  {},
	".m4a":  {},
}

// RollbackPlan lists what returning the library to a run's state removes.
type RollbackPlan struct {
	RunID      string   `json:"run_id"`
	LibraryDir string   `json:"library_dir"`
	Keep       []string `json:"keep"`
	Missing    []string `json:"missing"`
	Delete     []string `json:"delete"`
}

// RollbackResult is the outcome of applying a plan.
type RollbackResult struct {
	Deleted []string        `json:"deleted"`
	Pruned  []string        `json:"pruned"`
	Errors  []RollbackError `json:"errors"`
}

// RollbackError pairs a path with the reason it could not be removed.
type RollbackError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// PlanRollback compares the audio files under the library with the outputs m
// recorded. Files the run did not write are scheduled for deletion; recorded
// outputs that are gone are reported as missing, since restoring them needs
// the run to be repeated. libraryDir is used when m does not name one.
func PlanRollback(m *Manifest, libraryDir string) (RollbackPlan, error) {
	if m == nil {
		return RollbackPlan{}, errors.New("rollback without manifest")
	}
	root := strings.TrimSpace(m.LibraryDir)
	if root == "" {
		root = strings.TrimSpace(libraryDir)
	}
	if root == "" {
		return RollbackPlan{}, fmt.Errorf("manifest %s names no library directory", m.RunID)
	}
	root = filepath.Clean(root)
	plan := RollbackPlan{RunID: m.RunID, LibraryDir: root}

	recorded := make(map[string]struct{}, len(m.Outputs))
	for _, output := range m.Outputs {
		path := output.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		recorded[filepath.Clean(path)] = struct{}{}
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if _, ok := audioExtensions[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}
		if _, ok := recorded[path]; ok {
			plan.Keep = append(plan.Keep, path)
			delete(recorded, path)
			return nil
		}
		plan.Delete = append(plan.Delete, path)
		return nil
	})
	if err != nil {
		return RollbackPlan{}, fmt.Errorf("scan library %s: %w", root, err)
	}
	for path := range recorded {
		plan.Missing = append(plan.Missing, path)
	}
	sort.Strings(plan.Missing)
	return plan, nil
}

// Apply removes the planned files and then any directory under the library
// root left empty by the removal. Failures are collected, not fatal.
func (p RollbackPlan) Apply() RollbackResult {
	result := RollbackResult{}
	dirs := make(map[string]struct{})
	for _, path := range p.Delete {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			result.Errors = append(result.Errors, RollbackError{Path: path, Error: err.Error()})
			continue
		}
		result.Deleted = append(result.Deleted, path)
		dirs[filepath.Dir(path)] = struct{}{}
	}

	// Deepest first so a parent empties after its children.
	ordered := make([]string, 0, len(dirs))
	for dir := range dirs {
		ordered = append(ordered, dir)
	}
	sort.Slice(ordered, func(i, j int) bool { return len(ordered[i]) > len(ordered[j]) })
	for _, dir := range ordered {
		for dir != p.LibraryDir && strings.HasPrefix(dir, p.LibraryDir+string(filepath.Separator)) {
			if err := os.Remove(dir); err != nil {
				break
			}
			result.Pruned = append(result.Pruned, dir)
			dir = filepath.Dir(dir)
		}
	}
	return result
}
