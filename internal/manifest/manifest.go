package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mixsplit/internal/config"
	"mixsplit/internal/fileutil"
	"mixsplit/internal/report"
)

// Version is the manifest format version.
const Version = "2.0"

// Manifest is the on-disk run record.
type Manifest struct {
	ManifestVersion string           `json:"manifest_version"`
	RunID           string           `json:"run_id"`
	CreatedAt       time.Time        `json:"created_at"`
	InputDir        string           `json:"input_dir"`
	LibraryDir      string           `json:"library_dir"`
	Mode            string           `json:"mode"`
	Pipeline        Pipeline         `json:"pipeline"`
	Inputs          []Input          `json:"inputs"`
	Outputs         []Output         `json:"outputs"`
	Tracks          []Track          `json:"tracks"`
	Failures        []report.Failure `json:"failures,omitempty"`
	Summary         Summary          `json:"summary"`
}

// Pipeline captures the parameters a run used.
type Pipeline struct {
	SplitMethod         string  `json:"split_method"`
	MixThresholdSeconds int     `json:"mix_threshold_seconds"`
	MinSilenceMS        int     `json:"min_silence_ms"`
	SilenceThresholdDB  float64 `json:"silence_threshold_db"`
	KeepSilenceMS       int     `json:"keep_silence_ms"`
	WindowMS            int     `json:"window_ms"`
	SampleSeconds       int     `json:"sample_seconds"`
	BudgetBytes         int64   `json:"budget_bytes"`
	BudgetMode          string  `json:"budget_mode"`
	Batches             int     `json:"batches"`
	OutputFormat        string  `json:"output_format"`
}

// Input is one processed recording.
type Input struct {
	File            string  `json:"file"`
	Format          string  `json:"format"`
	SizeBytes       int64   `json:"size_bytes"`
	SHA256          string  `json:"sha256,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
	Classification  string  `json:"classification"`
	Segments        int     `json:"segments"`
	Gaps            int     `json:"gaps"`
	Degenerate      bool    `json:"degenerate,omitempty"`
}

// Output is one file written to the library.
type Output struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
	SHA256    string `json:"sha256,omitempty"`
}

// Track is one track outcome.
type Track struct {
	Parent       string  `json:"parent"`
	TrackNumber  int     `json:"track_number"`
	Status       string  `json:"status"`
	Artist       string  `json:"artist,omitempty"`
	Title        string  `json:"title,omitempty"`
	Album        string  `json:"album,omitempty"`
	Year         string  `json:"year,omitempty"`
	Provider     string  `json:"provider,omitempty"`
	Confidence   float64 `json:"confidence,omitempty"`
	OutputFile   string  `json:"output_file,omitempty"`
	Tagged       bool    `json:"tagged"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
}

// Summary mirrors the run totals.
type Summary struct {
	TotalTracks  int `json:"total_tracks"`
	Identified   int `json:"identified"`
	Unidentified int `json:"unidentified"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
}

// Build assembles a manifest from a finished run. Files that no longer
// exist are listed without a hash.
func Build(run *report.RunReport, cfg *config.Config) *Manifest {
	m := &Manifest{
		ManifestVersion: Version,
		RunID:           run.RunID,
		CreatedAt:       time.Now().UTC(),
		InputDir:        run.InputDir,
		LibraryDir:      run.LibraryDir,
		Mode:            cfg.Identification.Mode,
		Pipeline: Pipeline{
			SplitMethod:         "silence",
			MixThresholdSeconds: cfg.Split.MixThresholdSeconds,
			MinSilenceMS:        cfg.Split.MinSilenceMS,
			SilenceThresholdDB:  cfg.Split.SilenceThresholdDB,
			KeepSilenceMS:       cfg.Split.KeepSilenceMS,
			WindowMS:            cfg.Split.WindowMS,
			SampleSeconds:       cfg.Identification.SampleSeconds,
			BudgetBytes:         run.Budget,
			BudgetMode:          run.BudgetMode,
			Batches:             len(run.Batches),
			OutputFormat:        cfg.Library.OutputFormat,
		},
		Failures: run.Failures,
		Summary: Summary{
			TotalTracks:  run.Totals.Produced,
			Identified:   run.Totals.Identified,
			Unidentified: run.Totals.Unidentified,
			Skipped:      run.Totals.Skipped,
			Failed:       run.Totals.Failed,
		},
	}

	for _, batch := range run.Batches {
		for _, split := range batch.Splits {
			input := Input{
				File:            split.Path,
				Format:          split.Format,
				SizeBytes:       split.Size,
				DurationSeconds: split.Duration.Seconds(),
				Classification:  split.Classification,
				Segments:        split.Segments,
				Gaps:            split.Gaps,
				Degenerate:      split.Degenerate,
			}
			if sum, _, err := fileutil.HashFile(split.Path); err == nil {
				input.SHA256 = sum
			}
			m.Inputs = append(m.Inputs, input)
		}
		for _, outcome := range batch.Outcomes {
			m.Tracks = append(m.Tracks, Track{
				Parent:       outcome.Parent,
				TrackNumber:  outcome.Ordinal,
				Status:       string(outcome.Status),
				Artist:       outcome.Metadata.Artist,
				Title:        outcome.Metadata.Title,
				Album:        outcome.Metadata.Album,
				Year:         outcome.Metadata.Year,
				Provider:     outcome.Provider,
				Confidence:   outcome.Confidence,
				OutputFile:   outcome.OutputPath,
				Tagged:       outcome.Tagged,
				StartSeconds: outcome.Start.Seconds(),
				EndSeconds:   outcome.End.Seconds(),
			})
			if outcome.OutputPath == "" || outcome.Status == report.TrackSkipped {
				continue
			}
			output := Output{Path: outcome.OutputPath}
			if sum, size, err := fileutil.HashFile(outcome.OutputPath); err == nil {
				output.SHA256 = sum
				output.SizeBytes = size
			}
			m.Outputs = append(m.Outputs, output)
		}
	}
	return m
}

// FileName returns the manifest file name for a run.
func FileName(runID string) string {
	return runID + ".json"
}

// Write stores m as <dir>/<run_id>.json and returns the path. The file is
// written to a temporary name first and renamed into place.
func Write(dir string, m *Manifest) (string, error) {
	if m == nil || m.RunID == "" {
		return "", errors.New("manifest without run id")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure manifest dir: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	target := filepath.Join(dir, FileName(m.RunID))
	tmp, err := os.CreateTemp(dir, ".manifest-*.json")
	if err != nil {
		return "", fmt.Errorf("create manifest: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close manifest: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("rename manifest: %w", err)
	}
	return target, nil
}

// Load reads a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", filepath.Base(path), err)
	}
	if m.ManifestVersion != Version {
		return nil, fmt.Errorf("manifest %s has version %q, expected %q", filepath.Base(path), m.ManifestVersion, Version)
	}
	return &m, nil
}

// Entry summarizes a manifest on disk.
type Entry struct {
	Path      string
	RunID     string
	CreatedAt time.Time
	Summary   Summary
}

// List returns the manifests in dir, newest first. Unreadable files are skipped.
func List(dir string) ([]Entry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []Entry
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		path := filepath.Join(dir, name)
		m, err := Load(path)
		if err != nil {
			continue
		}
		out = append(out, Entry{Path: path, RunID: m.RunID, CreatedAt: m.CreatedAt, Summary: m.Summary})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
