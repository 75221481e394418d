package workflow

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLibraryLocked is returned when another run holds the library lock.
var ErrLibraryLocked = errors.New("another mixsplit run is using this library")

// LibraryLock serialises runs that share a state directory, and therefore a
// library and history database.
type LibraryLock struct {
	path string
	lock *flock.Flock
}

// NewLibraryLock returns an unlocked lock at path.
func NewLibraryLock(path string) *LibraryLock {
	return &LibraryLock{path: path, lock: flock.New(path)}
}

// Path returns the lock file location.
func (l *LibraryLock) Path() string {
	return l.path
}

// Acquire takes the lock without blocking.
func (l *LibraryLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w (lock %s)", ErrLibraryLocked, l.path)
	}
	return nil
}

// Release drops the lock.
func (l *LibraryLock) Release() error {
	return l.lock.Unlock()
}
