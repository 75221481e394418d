package preflight

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mixsplit/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckDirectoryAccess("test", f); result.Passed {
		t.Fatal("expected failure for file path")
	}
	if result := CheckReadableDirectory("test", f); result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDirectoryAccess_Unconfigured(t *testing.T) {
	if result := CheckDirectoryAccess("test", ""); result.Passed || result.Detail != "not configured" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("space", dir, 1); !result.Passed {
		t.Fatalf("expected pass, got %s", result.Detail)
	}
	result := CheckFreeSpace("space", dir, math.MaxUint64)
	if result.Passed || !strings.Contains(result.Detail, "need") {
		t.Fatalf("expected shortage, got %+v", result)
	}
	if result := CheckFreeSpace("space", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected statfs failure")
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[uint64]string{
		512:     "512 B",
		2048:    "2.0 KiB",
		1 << 30: "1.0 GiB",
	}
	for in, want := range cases {
		if got := formatBytes(in); got != want {
			t.Fatalf("formatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestRunAllReportsMissingBinaries(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LibraryDir = filepath.Join(base, "library")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", filepath.Join(base, "empty-bin"))

	results := RunAll(context.Background(), &cfg, base)
	failed := Failed(results)
	names := make([]string, 0, len(failed))
	for _, result := range failed {
		names = append(names, result.Name)
	}
	joined := strings.Join(names, ",")
	if !strings.Contains(joined, "FFmpeg") || !strings.Contains(joined, "FFprobe") {
		t.Fatalf("expected ffmpeg and ffprobe failures, got %s", joined)
	}
	for _, result := range failed {
		if strings.Contains(result.Name, "directory") {
			t.Fatalf("unexpected directory failure %+v", result)
		}
	}
}
