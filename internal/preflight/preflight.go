package preflight

import (
	"context"

	"mixsplit/internal/config"
	"mixsplit/internal/deps"
)

// MinFreeBytes is the free space required on the staging and library filesystems.
const MinFreeBytes = 1 << 30

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks for a run over inputDir. An empty inputDir
// skips the input check.
func RunAll(ctx context.Context, cfg *config.Config, inputDir string) []Result {
	if cfg == nil {
		return nil
	}
	var results []Result
	if inputDir != "" {
		results = append(results, CheckReadableDirectory("Input directory", inputDir))
	}
	results = append(results,
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Library directory", cfg.Paths.LibraryDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckFreeSpace("Staging free space", cfg.Paths.StagingDir, MinFreeBytes),
		CheckFreeSpace("Library free space", cfg.Paths.LibraryDir, MinFreeBytes),
	)
	for _, status := range CheckSystemDeps(ctx, cfg) {
		if status.Optional && !status.Available {
			continue
		}
		result := Result{Name: status.Name, Passed: status.Available, Detail: status.Command}
		if !status.Available {
			result.Detail = status.Detail
		}
		results = append(results, result)
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}

// CheckSystemDeps evaluates the external binaries required by cfg.
func CheckSystemDeps(_ context.Context, cfg *config.Config) []deps.Status {
	return deps.Check(cfg)
}
