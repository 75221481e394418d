package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mixsplit/internal/config"
	"mixsplit/internal/identification"
	"mixsplit/internal/report"
)

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func sha(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func TestBuildWriteLoad(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "in", "mix.mp3"), "mix-bytes")
	output := writeFile(t, filepath.Join(dir, "lib", "Air", "Air - Sexy Boy.flac"), "track-bytes")
	cfg := config.Default()

	run := &report.RunReport{RunID: "run-1", InputDir: filepath.Dir(input), LibraryDir: filepath.Join(dir, "lib"), BudgetMode: "budget"}
	run.AddBatch(report.BatchResult{
		Index:  1,
		Counts: report.Counts{Produced: 2, Identified: 1, Unidentified: 1},
		Splits: []report.FileSplit{{
			Path: input, Format: "mp3", Size: 9, Duration: 20 * time.Minute,
			Classification: "mix", Segments: 2, Gaps: 1,
		}},
		Outcomes: []report.TrackOutcome{
			{Parent: input, Ordinal: 1, Status: report.TrackIdentified, OutputPath: output,
				Metadata: identification.Metadata{Artist: "Air", Title: "Sexy Boy"}, End: 5 * time.Minute},
			{Parent: input, Ordinal: 2, Status: report.TrackUnidentified,
				OutputPath: filepath.Join(dir, "lib", "gone.flac"), Start: 5 * time.Minute, End: 20 * time.Minute},
		},
	})

	m := Build(run, &cfg)
	if m.ManifestVersion != Version || m.Summary.TotalTracks != 2 {
		t.Fatalf("unexpected header %+v", m)
	}
	if len(m.Inputs) != 1 || m.Inputs[0].SHA256 != sha("mix-bytes") || m.Inputs[0].DurationSeconds != 1200 {
		t.Fatalf("unexpected inputs %+v", m.Inputs)
	}
	if len(m.Outputs) != 2 || m.Outputs[0].SHA256 != sha("track-bytes") || m.Outputs[0].SizeBytes != 11 {
		t.Fatalf("unexpected outputs %+v", m.Outputs)
	}
	if m.Outputs[1].SHA256 != "" {
		t.Fatal("expected missing output to have no hash")
	}
	if m.Pipeline.MinSilenceMS != cfg.Split.MinSilenceMS || m.Pipeline.SplitMethod != "silence" {
		t.Fatalf("unexpected pipeline %+v", m.Pipeline)
	}

	reports := filepath.Join(dir, "reports")
	path, err := Write(reports, m)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Base(path) != "run-1.json" {
		t.Fatalf("unexpected manifest path %s", path)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.RunID != "run-1" || len(loaded.Tracks) != 2 || loaded.Tracks[1].StartSeconds != 300 {
		t.Fatalf("unexpected loaded manifest %+v", loaded)
	}

	entries, err := List(reports)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].RunID != "run-1" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestLoadRejectsOtherVersions(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "old.json"), `{"manifest_version":"1.0","run_id":"x"}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected version error")
	}
}

func TestListMissingDir(t *testing.T) {
	entries, err := List(filepath.Join(t.TempDir(), "absent"))
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected empty list, got %v %v", entries, err)
	}
}

func TestCompare(t *testing.T) {
	before := &Manifest{
		Tracks: []Track{
			{Parent: "/in/a.mp3", TrackNumber: 1, Artist: "Air", Title: "Talisman"},
			{Parent: "/in/a.mp3", TrackNumber: 2},
		},
		Outputs: []Output{{Path: "/lib/a_Track_2_Unidentified.flac"}, {Path: "/lib/Air/Air - Talisman.flac"}},
	}
	after := &Manifest{
		Tracks: []Track{
			{Parent: "/in/a.mp3", TrackNumber: 1, Artist: "Air", Title: "Talisman"},
			{Parent: "/in/a.mp3", TrackNumber: 2, Artist: "Air", Title: "Remember"},
		},
		Outputs: []Output{{Path: "/lib/Air/Air - Remember.flac"}, {Path: "/lib/Air/Air - Talisman.flac"}},
	}

	diff := Compare(before, after)
	if len(diff.TracksChanged) != 1 || diff.TracksChanged[0].Old != "(unidentified)" || diff.TracksChanged[0].New != "Air - Remember" {
		t.Fatalf("unexpected track changes %+v", diff.TracksChanged)
	}
	if len(diff.FilesAdded) != 1 || diff.FilesAdded[0] != "/lib/Air/Air - Remember.flac" {
		t.Fatalf("unexpected added %v", diff.FilesAdded)
	}
	if len(diff.FilesRemoved) != 1 || diff.FilesRemoved[0] != "/lib/a_Track_2_Unidentified.flac" {
		t.Fatalf("unexpected removed %v", diff.FilesRemoved)
	}
	if !Compare(after, after).Empty() {
		t.Fatal("expected identical manifests to compare empty")
	}
}
