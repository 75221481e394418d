package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LibraryDir string `toml:"library_dir"`
	StagingDir string `toml:"staging_dir"`
	StateDir   string `toml:"state_dir"`
	ReportDir  string `toml:"report_dir"`
	LogDir     string `toml:"log_dir"`
}

// Memory controls how the per-batch memory budget is derived.
type Memory struct {
	// BudgetMB overrides the system query when positive. Zero defers to the
	// system query and negative values are rejected.
	BudgetMB int `toml:"budget_mb"`
	// BudgetFraction is the share of available RAM a single batch may claim.
	BudgetFraction float64 `toml:"budget_fraction"`
	// ExpansionFactors overrides decoded-size factors per container format.
	ExpansionFactors map[string]float64 `toml:"expansion_factors"`
}

// Split contains mix classification and silence detection parameters.
type Split struct {
	MixThresholdSeconds int     `toml:"mix_threshold_seconds"`
	MinSilenceMS        int     `toml:"min_silence_ms"`
	SilenceThresholdDB  float64 `toml:"silence_threshold_db"`
	KeepSilenceMS       int     `toml:"keep_silence_ms"`
	WindowMS            int     `toml:"window_ms"`
	Workers             int     `toml:"workers"`
}

// Identification selects and paces fingerprint providers.
type Identification struct {
	// Mode is one of auto, acrcloud, acoustid, dual, tags, none.
	Mode           string `toml:"mode"`
	SampleSeconds  int    `toml:"sample_seconds"`
	MinIntervalMS  int    `toml:"min_interval_ms"`
	Workers        int    `toml:"workers"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	// MinAgreement is the Jaro-Winkler score above which dual-mode results are
	// treated as the same recording.
	MinAgreement float64 `toml:"min_agreement"`
}

// ACRCloud contains credentials for the ACRCloud identify endpoint.
type ACRCloud struct {
	Host         string `toml:"host"`
	AccessKey    string `toml:"access_key"`
	AccessSecret string `toml:"access_secret"`
}

// AcoustID contains settings for AcoustID lookups.
type AcoustID struct {
	APIKey       string `toml:"api_key"`
	BaseURL      string `toml:"base_url"`
	FpcalcBinary string `toml:"fpcalc_binary"`
}

// Artwork controls cover art retrieval.
type Artwork struct {
	Enabled        bool   `toml:"enabled"`
	Size           int    `toml:"size"`
	ITunesEnabled  bool   `toml:"itunes_enabled"`
	ITunesBaseURL  string `toml:"itunes_base_url"`
	PageScrape     bool   `toml:"page_scrape"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Library contains configuration for the output library tree.
type Library struct {
	// OutputFormat is flac or mp3.
	OutputFormat     string `toml:"output_format"`
	MP3Bitrate       string `toml:"mp3_bitrate"`
	SkipExisting     bool   `toml:"skip_existing"`
	NormalizeArtists bool   `toml:"normalize_artists"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RunCompleted   bool   `toml:"run_completed"`
	Errors         bool   `toml:"errors"`
}

// Workflow contains run-level behaviour.
type Workflow struct {
	Recursive             bool `toml:"recursive"`
	StagingRetentionHours int  `toml:"staging_retention_hours"`
	DecodeTimeoutSeconds  int  `toml:"decode_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format         string            `toml:"format"`
	Level          string            `toml:"level"`
	StageOverrides map[string]string `toml:"stage_overrides"`
}

// Config encapsulates all configuration values for mixsplit.
//
// Configuration sections by subsystem:
//   - Paths: library, staging, state, report and log directories
//   - Memory: batch memory budget
//   - Split: mix threshold and silence detection
//   - Identification: provider selection, sampling and pacing
//   - ACRCloud / AcoustID: provider credentials
//   - Artwork: cover art lookup
//   - Library: output format and naming behaviour
//   - Notifications: ntfy push notification settings
//   - Workflow: discovery and staging behaviour
//   - Logging: log format and level
type Config struct {
	Paths          Paths          `toml:"paths"`
	Memory         Memory         `toml:"memory"`
	Split          Split          `toml:"split"`
	Identification Identification `toml:"identification"`
	ACRCloud       ACRCloud       `toml:"acrcloud"`
	AcoustID       AcoustID       `toml:"acoustid"`
	Artwork        Artwork        `toml:"artwork"`
	Library        Library        `toml:"library"`
	Notifications  Notifications  `toml:"notifications"`
	Workflow       Workflow       `toml:"workflow"`
	Logging        Logging        `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(filepath.Join(xdg.ConfigHome, "mixsplit", "config.toml"))
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	if found, err := xdg.SearchConfigFile(filepath.Join("mixsplit", "config.toml")); err == nil {
		return found, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mixsplit.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a run writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LibraryDir, c.Paths.StagingDir, c.Paths.StateDir, c.Paths.ReportDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used for decoding and export.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// HistoryPath returns the run history database location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LockPath returns the library lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "library.lock")
}

// MixThreshold returns the duration at which a recording is treated as a mix.
func (c *Config) MixThreshold() time.Duration {
	return time.Duration(c.Split.MixThresholdSeconds) * time.Second
}

// IdentificationInterval returns the minimum spacing between identification calls.
func (c *Config) IdentificationInterval() time.Duration {
	return time.Duration(c.Identification.MinIntervalMS) * time.Millisecond
}

// IdentificationTimeout returns the per-request timeout for identification providers.
func (c *Config) IdentificationTimeout() time.Duration {
	return time.Duration(c.Identification.TimeoutSeconds) * time.Second
}

// SampleLength returns the identification excerpt length.
func (c *Config) SampleLength() time.Duration {
	return time.Duration(c.Identification.SampleSeconds) * time.Second
}

// HasACRCloud reports whether ACRCloud credentials are configured.
func (c *Config) HasACRCloud() bool {
	return c.ACRCloud.AccessKey != "" && c.ACRCloud.AccessSecret != ""
}

// HasAcoustID reports whether an AcoustID client key is configured.
func (c *Config) HasAcoustID() bool {
	return c.AcoustID.APIKey != ""
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
