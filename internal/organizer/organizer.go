package organizer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"mixsplit/internal/fileutil"
	"mixsplit/internal/logging"
	"mixsplit/internal/services"
	"mixsplit/internal/textutil"
)

// maxCollisionSuffix bounds the " (N)" search for one name.
const maxCollisionSuffix = 10000

// destinationErrors are filesystem conditions that make the library
// unwritable for every remaining track.
var destinationErrors = []error{
	syscall.EACCES,
	syscall.EPERM,
	syscall.ENOSPC,
	syscall.EROFS,
	syscall.EDQUOT,
}

// Organizer places tracks under a library root. It is safe for concurrent use.
type Organizer struct {
	root   string
	logger *slog.Logger
	move   func(src, dst string) error

	mu       sync.Mutex
	reserved map[string]struct{}
	index    map[string]struct{}
}

// New returns an organizer rooted at root.
func New(root string, logger *slog.Logger) *Organizer {
	return &Organizer{
		root:     root,
		logger:   logging.NewComponentLogger(logger, "organizer"),
		move:     fileutil.MoveNoReplace,
		reserved: make(map[string]struct{}),
	}
}

// Root returns the library root.
func (o *Organizer) Root() string {
	return o.root
}

// BuildIndex scans the library once and records the case-folded relative
// paths of the files already present. Exists consults this snapshot.
func (o *Organizer) BuildIndex() error {
	index := make(map[string]struct{})
	err := filepath.WalkDir(o.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == o.root && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			if path != o.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(o.root, path)
		if err != nil {
			return err
		}
		index[textutil.FoldKey(rel)] = struct{}{}
		return nil
	})
	if err != nil {
		return services.Wrap(services.ErrDestinationWriteFailure, "organize", "index library", o.root, err)
	}
	o.mu.Lock()
	o.index = index
	o.mu.Unlock()
	o.logger.Debug("library index built", logging.Int("files", len(index)))
	return nil
}

// Exists reports whether rel (a library-relative path) was present when the
// index was built. It returns false when no index has been built.
func (o *Organizer) Exists(rel string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.index == nil {
		return false
	}
	_, ok := o.index[textutil.FoldKey(rel)]
	return ok
}

// Place moves src to rel under the library root, choosing the first free
// collision variant. It returns the absolute path written.
func (o *Organizer) Place(ctx context.Context, src, rel string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir := filepath.Join(o.root, filepath.Dir(rel))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", classify("create directory", dir, err)
	}

	name := filepath.Base(rel)
	for n := 1; n <= maxCollisionSuffix; n++ {
		target, ok, err := o.reserve(dir, candidate(name, n))
		if err != nil {
			return "", classify("scan directory", dir, err)
		}
		if !ok {
			continue
		}
		err = o.move(src, target)
		if err == nil {
			logging.WithContext(ctx, o.logger).Debug("track placed",
				logging.String("source", src),
				logging.String("target", target),
			)
			return target, nil
		}
		o.release(target)
		if errors.Is(err, fs.ErrExist) {
			// Someone outside this process took the name.
			continue
		}
		return "", classify("move track", target, err)
	}
	return "", services.Wrap(services.ErrDestinationWriteFailure, "organize", "choose name",
		fmt.Sprintf("no free name for %s", rel), nil)
}

// reserve claims name in dir unless a case-folded equal name exists on disk
// or is already claimed by this run.
func (o *Organizer) reserve(dir, name string) (string, bool, error) {
	key := textutil.FoldKey(filepath.Join(dir, name))
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, taken := o.reserved[key]; taken {
		return "", false, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false, err
	}
	folded := textutil.FoldKey(name)
	for _, entry := range entries {
		if textutil.FoldKey(entry.Name()) == folded {
			return "", false, nil
		}
	}
	o.reserved[key] = struct{}{}
	return filepath.Join(dir, name), true, nil
}

func (o *Organizer) release(target string) {
	o.mu.Lock()
	delete(o.reserved, textutil.FoldKey(target))
	o.mu.Unlock()
}

// IsDestinationError reports whether err means the library cannot accept
// further writes.
func IsDestinationError(err error) bool {
	for _, target := range destinationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func classify(op, path string, err error) error {
	if IsDestinationError(err) {
		return services.Wrap(services.ErrDestinationWriteFailure, "organize", op, path, err)
	}
	return services.Wrap(services.ErrTransient, "organize", op, path, err)
}
