package inputs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DiscoverOptions controls directory traversal.
type DiscoverOptions struct {
	Recursive bool
	// Exclude lists directories that are never descended into, such as the
	// library root when it lives inside the input directory.
	Exclude []string
}

// Discover lists candidate files under dir in a stable order. Hidden files and
// directories are ignored. Format support is decided later by the estimator so
// unsupported files can be reported rather than silently dropped.
func Discover(dir string, opts DiscoverOptions) ([]*InputFile, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("inspect input directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input path %q is not a directory", dir)
	}

	excluded := make(map[string]struct{}, len(opts.Exclude))
	for _, path := range opts.Exclude {
		if abs, err := filepath.Abs(path); err == nil {
			excluded[abs] = struct{}{}
		}
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == dir {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if !opts.Recursive {
				return filepath.SkipDir
			}
			if abs, err := filepath.Abs(path); err == nil {
				if _, skip := excluded[abs]; skip {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk input directory: %w", err)
	}

	sort.Strings(paths)
	files := make([]*InputFile, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		files = append(files, New(len(files)+1, path, info.Size()))
	}
	return files, nil
}
