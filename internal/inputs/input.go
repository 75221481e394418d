package inputs

import (
	"path/filepath"
	"strings"
	"time"
)

// Classification is the mix-versus-track decision for an input file.
type Classification int

const (
	Unclassified Classification = iota
	SingleTrack
	Mix
)

func (c Classification) String() string {
	switch c {
	case SingleTrack:
		return "single_track"
	case Mix:
		return "mix"
	default:
		return "unclassified"
	}
}

// InputFile is one discovered recording. Estimate is filled by the memory
// estimator; Duration and Classification are filled during the Split-Phase of
// the batch that owns the file.
type InputFile struct {
	// Ordinal is the 1-based discovery position.
	Ordinal        int
	Path           string
	Format         string
	Size           int64
	Estimate       int64
	Duration       time.Duration
	Classification Classification
}

// New builds an InputFile record for path with the given on-disk size.
func New(ordinal int, path string, size int64) *InputFile {
	return &InputFile{
		Ordinal: ordinal,
		Path:    path,
		Format:  FormatOf(path),
		Size:    size,
	}
}

// Stem returns the file name without directory or extension.
func (f *InputFile) Stem() string {
	if f == nil {
		return ""
	}
	base := filepath.Base(f.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Name returns the base file name.
func (f *InputFile) Name() string {
	if f == nil {
		return ""
	}
	return filepath.Base(f.Path)
}

// FormatOf returns the lower-case container format tag derived from the extension.
func FormatOf(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}
