package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mixsplit/internal/manifest"
	"mixsplit/internal/testsupport"
	"mixsplit/internal/workflow"
)

// seedRollback writes a manifest recording one library file and adds a second
// file the run never produced.
func seedRollback(t *testing.T, env *cliTestEnv) (kept, extra string) {
	t.Helper()
	lib := env.cfg.Paths.LibraryDir
	kept = filepath.Join(lib, "Air", "Air - Sexy Boy.flac")
	extra = filepath.Join(lib, "Moby", "Moby - Porcelain.flac")
	testsupport.WriteFile(t, kept, 16)
	testsupport.WriteFile(t, extra, 16)

	m := &manifest.Manifest{
		ManifestVersion: manifest.Version,
		RunID:           "0f3a9c1e-rollback",
		CreatedAt:       time.Now().UTC(),
		LibraryDir:      lib,
		Outputs:         []manifest.Output{{Path: kept}},
	}
	if _, err := manifest.Write(env.cfg.Paths.ReportDir, m); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return kept, extra
}

func TestManifestRollbackPreviewsByDefault(t *testing.T) {
	env := setupCLITestEnv(t)
	_, extra := seedRollback(t, env)

	out, _, err := runCLI(t, []string{"manifest", "rollback", "0f3a"}, env.configPath)
	if err != nil {
		t.Fatalf("manifest rollback: %v", err)
	}
	requireContains(t, out, "Recorded outputs present: 1")
	requireContains(t, out, "- "+extra)
	requireContains(t, out, "pass --apply")
	if _, err := os.Stat(extra); err != nil {
		t.Fatalf("dry run deleted %s: %v", extra, err)
	}
}

func TestManifestRollbackApply(t *testing.T) {
	env := setupCLITestEnv(t)
	kept, extra := seedRollback(t, env)

	out, _, err := runCLI(t, []string{"--json", "manifest", "rollback", "0f3a", "--apply"}, env.configPath)
	if err != nil {
		t.Fatalf("manifest rollback --apply: %v", err)
	}
	var payload struct {
		Applied bool                     `json:"applied"`
		Plan    manifest.RollbackPlan    `json:"plan"`
		Result  *manifest.RollbackResult `json:"result"`
	}
	decodeJSON(t, out, &payload)
	if !payload.Applied || payload.Result == nil || len(payload.Result.Deleted) != 1 || payload.Result.Deleted[0] != extra {
		t.Fatalf("unexpected rollback payload %+v", payload)
	}
	if _, err := os.Stat(extra); !os.IsNotExist(err) {
		t.Fatalf("expected %s removed, stat err %v", extra, err)
	}
	if _, err := os.Stat(filepath.Dir(extra)); !os.IsNotExist(err) {
		t.Fatalf("expected empty artist dir pruned, stat err %v", err)
	}
	if _, err := os.Stat(kept); err != nil {
		t.Fatalf("recorded output removed: %v", err)
	}

	out, _, err = runCLI(t, []string{"manifest", "rollback", "0f3a"}, env.configPath)
	if err != nil {
		t.Fatalf("manifest rollback: %v", err)
	}
	requireContains(t, out, "Library already matches this run")
}

func TestManifestRollbackRequiresLock(t *testing.T) {
	env := setupCLITestEnv(t)
	_, extra := seedRollback(t, env)
	lock := workflow.NewLibraryLock(env.cfg.LockPath())
	if err := lock.Acquire(); err != nil {
		t.Fatalf("acquire lock: %v", err)
	}
	defer lock.Release()

	_, _, err := runCLI(t, []string{"manifest", "rollback", "0f3a", "--apply"}, env.configPath)
	if !errors.Is(err, workflow.ErrLibraryLocked) {
		t.Fatalf("expected ErrLibraryLocked, got %v", err)
	}
	if _, err := os.Stat(extra); err != nil {
		t.Fatalf("locked rollback deleted %s: %v", extra, err)
	}
}

func TestManifestRollbackUnknownRun(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"manifest", "rollback", "ffff"}, env.configPath)
	if err == nil {
		t.Fatal("expected error for unknown run")
	}
	requireContains(t, err.Error(), "no manifest matches")
}
