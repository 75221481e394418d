package staging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLayoutPaths(t *testing.T) {
	l := Layout{Root: "/stage", RunID: "abc"}
	if got := l.RunDir(); got != "/stage/abc" {
		t.Errorf("RunDir = %q", got)
	}
	if got := l.BatchDir(7); got != "/stage/abc/batch-007" {
		t.Errorf("BatchDir = %q", got)
	}
}

func TestLayoutLifecycle(t *testing.T) {
	l := Layout{Root: t.TempDir(), RunID: "run"}

	dir, err := l.CreateBatch(1)
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	if info, err := os.Stat(filepath.Join(dir, "samples")); err != nil || !info.IsDir() {
		t.Fatalf("samples dir missing: %v", err)
	}
	if _, err := l.CreateBatch(2); err != nil {
		t.Fatalf("CreateBatch 2: %v", err)
	}

	if err := l.RemoveBatch(1); err != nil {
		t.Fatalf("RemoveBatch: %v", err)
	}
	if err := l.RemoveRun(); err != nil {
		t.Fatalf("RemoveRun with remaining batch: %v", err)
	}
	if _, err := os.Stat(l.RunDir()); err != nil {
		t.Fatal("run dir removed while a batch remained")
	}

	if err := l.RemoveBatch(2); err != nil {
		t.Fatalf("RemoveBatch 2: %v", err)
	}
	if err := l.RemoveRun(); err != nil {
		t.Fatalf("RemoveRun: %v", err)
	}
	if _, err := os.Stat(l.RunDir()); !os.IsNotExist(err) {
		t.Fatal("run dir should be gone")
	}
	if err := l.RemoveRun(); err != nil {
		t.Fatalf("RemoveRun twice: %v", err)
	}
}
