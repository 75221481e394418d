package organizer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"

	"mixsplit/internal/logging"
	"mixsplit/internal/services"
)

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func TestNaming(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"identified", IdentifiedPath("Daft Punk", "One More Time", "flac"), filepath.Join("Daft Punk", "Daft Punk - One More Time.flac")},
		{"sanitized", IdentifiedPath("AC/DC", "T.N.T.", ".MP3"), filepath.Join("AC-DC", "AC-DC - T.N.T.mp3")},
		{"unidentified", UnidentifiedPath("side_a", 3, ".flac"), "side_a_Track_3_Unidentified.flac"},
		{"collision", candidate("A - B.flac", 3), "A - B (3).flac"},
		{"first candidate", candidate("A - B.flac", 1), "A - B.flac"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestPlaceAppendsCollisionSuffix(t *testing.T) {
	root := t.TempDir()
	src := t.TempDir()
	org := New(root, logging.NewNop())
	rel := IdentifiedPath("Moby", "Porcelain", ".flac")

	existing := filepath.Join(root, "Moby", "moby - PORCELAIN.flac")
	if err := os.MkdirAll(filepath.Dir(existing), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(existing, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	first, err := org.Place(context.Background(), writeSource(t, src, "a.flac", "one"), rel)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if filepath.Base(first) != "Moby - Porcelain (2).flac" {
		t.Fatalf("expected case-folded collision to pick (2), got %s", first)
	}
	second, err := org.Place(context.Background(), writeSource(t, src, "b.flac", "two"), rel)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if filepath.Base(second) != "Moby - Porcelain (3).flac" {
		t.Fatalf("expected (3), got %s", second)
	}
	if data, _ := os.ReadFile(existing); string(data) != "old" {
		t.Fatalf("existing file overwritten: %q", data)
	}
	if _, err := os.Stat(filepath.Join(src, "a.flac")); !os.IsNotExist(err) {
		t.Fatalf("expected source removed, stat err=%v", err)
	}
}

func TestPlaceConcurrentNeverSharesName(t *testing.T) {
	root := t.TempDir()
	src := t.TempDir()
	org := New(root, logging.NewNop())
	rel := UnidentifiedPath("mix", 1, ".flac")

	const workers = 8
	paths := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		source := writeSource(t, src, filepath.Base(t.Name())+string(rune('a'+i))+".flac", "x")
		wg.Add(1)
		go func(i int, source string) {
			defer wg.Done()
			paths[i], errs[i] = org.Place(context.Background(), source, rel)
		}(i, source)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i := range paths {
		if errs[i] != nil {
			t.Fatalf("Place %d: %v", i, errs[i])
		}
		if seen[paths[i]] {
			t.Fatalf("duplicate placement %s", paths[i])
		}
		seen[paths[i]] = true
	}
}

func TestPlaceRetriesWhenTargetAppearsExternally(t *testing.T) {
	root := t.TempDir()
	org := New(root, logging.NewNop())
	calls := 0
	org.move = func(src, dst string) error {
		calls++
		if calls == 1 {
			return &os.LinkError{Op: "link", Old: src, New: dst, Err: os.ErrExist}
		}
		return nil
	}
	got, err := org.Place(context.Background(), "/src.flac", "Artist/Artist - Song.flac")
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if filepath.Base(got) != "Artist - Song (2).flac" {
		t.Fatalf("unexpected target %s", got)
	}
}

func TestPlaceMapsFatalErrors(t *testing.T) {
	root := t.TempDir()
	org := New(root, logging.NewNop())
	org.move = func(src, dst string) error {
		return &os.LinkError{Op: "link", Old: src, New: dst, Err: syscall.ENOSPC}
	}
	_, err := org.Place(context.Background(), "/src.flac", "x.flac")
	if !errors.Is(err, services.ErrDestinationWriteFailure) || !services.IsFatal(err) {
		t.Fatalf("expected destination write failure, got %v", err)
	}

	org.move = func(string, string) error { return os.ErrNotExist }
	_, err = org.Place(context.Background(), "/src.flac", "y.flac")
	if err == nil || services.IsFatal(err) {
		t.Fatalf("expected non-fatal error, got %v", err)
	}
}

func TestExistsUsesIndexSnapshot(t *testing.T) {
	root := t.TempDir()
	rel := IdentifiedPath("Björk", "Jóga", ".flac")
	if err := os.MkdirAll(filepath.Join(root, filepath.Dir(rel)), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, rel), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	org := New(root, logging.NewNop())
	if org.Exists(rel) {
		t.Fatal("expected no match before index is built")
	}
	if err := org.BuildIndex(); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if !org.Exists(IdentifiedPath("BJÖRK", "jóga", ".FLAC")) {
		t.Fatal("expected case-folded match")
	}
	if org.Exists(IdentifiedPath("Björk", "Hyperballad", ".flac")) {
		t.Fatal("unexpected match")
	}
}

func TestBuildIndexMissingRoot(t *testing.T) {
	org := New(filepath.Join(t.TempDir(), "absent"), logging.NewNop())
	if err := org.BuildIndex(); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if org.Exists("anything.flac") {
		t.Fatal("expected empty index")
	}
}
