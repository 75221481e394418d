package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"mixsplit/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Network-backed features are off: identification mode is none, artwork
// lookup is disabled and the identification interval is zero.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths = config.Paths{
		LibraryDir: filepath.Join(base, "library"),
		StagingDir: filepath.Join(base, "staging"),
		StateDir:   filepath.Join(base, "state"),
		ReportDir:  filepath.Join(base, "reports"),
		LogDir:     filepath.Join(base, "logs"),
	}
	cfgVal.Identification.Mode = "none"
	cfgVal.Identification.MinIntervalMS = 0
	cfgVal.Artwork.Enabled = false
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBudgetMB fixes the per-batch memory budget.
func WithBudgetMB(mb int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Memory.BudgetMB = mb
	}
}

// WithOutputFormat sets the library output format.
func WithOutputFormat(format string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Library.OutputFormat = format
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}

// InputDir creates and returns an empty input directory beside the config's
// managed directories.
func InputDir(t testing.TB, cfg *config.Config) string {
	t.Helper()
	dir := filepath.Join(BaseDir(cfg), "inputs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir inputs: %v", err)
	}
	return dir
}
