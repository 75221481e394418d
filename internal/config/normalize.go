package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeMemory()
	c.normalizeSplit()
	c.normalizeIdentification()
	c.normalizeProviders()
	c.normalizeArtwork()
	c.normalizeLibrary()
	c.normalizeNotifications()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name     string
		value    *string
		fallback string
	}{
		{"paths.library_dir", &c.Paths.LibraryDir, defaultLibraryDir},
		{"paths.staging_dir", &c.Paths.StagingDir, defaultStagingDir},
		{"paths.state_dir", &c.Paths.StateDir, defaultStateDir},
		{"paths.report_dir", &c.Paths.ReportDir, defaultReportDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.fallback
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeMemory() {
	if c.Memory.BudgetFraction == 0 {
		c.Memory.BudgetFraction = defaultBudgetFraction
	}
	if len(c.Memory.ExpansionFactors) > 0 {
		factors := make(map[string]float64, len(c.Memory.ExpansionFactors))
		for format, factor := range c.Memory.ExpansionFactors {
			key := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".")
			if key == "" {
				continue
			}
			factors[key] = factor
		}
		c.Memory.ExpansionFactors = factors
	}
}

func (c *Config) normalizeSplit() {
	if c.Split.MixThresholdSeconds == 0 {
		c.Split.MixThresholdSeconds = defaultMixThresholdSeconds
	}
	if c.Split.MinSilenceMS == 0 {
		c.Split.MinSilenceMS = defaultMinSilenceMS
	}
	if c.Split.WindowMS == 0 {
		c.Split.WindowMS = defaultWindowMS
	}
	if c.Split.KeepSilenceMS < 0 {
		c.Split.KeepSilenceMS = 0
	}
	if c.Split.Workers <= 0 {
		c.Split.Workers = defaultSplitWorkers
	}
}

func (c *Config) normalizeIdentification() {
	c.Identification.Mode = strings.ToLower(strings.TrimSpace(c.Identification.Mode))
	switch c.Identification.Mode {
	case "":
		c.Identification.Mode = defaultIdentificationMode
	case "manual", "off":
		c.Identification.Mode = "none"
	case "musicbrainz":
		c.Identification.Mode = "acoustid"
	}
	if c.Identification.SampleSeconds == 0 {
		c.Identification.SampleSeconds = defaultSampleSeconds
	}
	if c.Identification.SampleSeconds < minSampleSeconds {
		c.Identification.SampleSeconds = minSampleSeconds
	}
	if c.Identification.SampleSeconds > maxSampleSeconds {
		c.Identification.SampleSeconds = maxSampleSeconds
	}
	if c.Identification.MinIntervalMS < 0 {
		c.Identification.MinIntervalMS = 0
	}
	if c.Identification.Workers <= 0 {
		c.Identification.Workers = defaultIdentifyWorkers
	}
	if c.Identification.TimeoutSeconds <= 0 {
		c.Identification.TimeoutSeconds = defaultIdentifyTimeout
	}
	if c.Identification.MinAgreement == 0 {
		c.Identification.MinAgreement = defaultMinAgreement
	}
}

func (c *Config) normalizeProviders() {
	c.ACRCloud.Host = strings.TrimSpace(c.ACRCloud.Host)
	if c.ACRCloud.Host == "" {
		c.ACRCloud.Host = defaultACRCloudHost
	}
	c.ACRCloud.AccessKey = envFallback(c.ACRCloud.AccessKey, "ACRCLOUD_ACCESS_KEY")
	c.ACRCloud.AccessSecret = envFallback(c.ACRCloud.AccessSecret, "ACRCLOUD_ACCESS_SECRET")

	c.AcoustID.APIKey = envFallback(c.AcoustID.APIKey, "ACOUSTID_API_KEY")
	c.AcoustID.BaseURL = strings.TrimSpace(c.AcoustID.BaseURL)
	if c.AcoustID.BaseURL == "" {
		c.AcoustID.BaseURL = defaultAcoustIDBaseURL
	}
	c.AcoustID.FpcalcBinary = strings.TrimSpace(c.AcoustID.FpcalcBinary)
	if c.AcoustID.FpcalcBinary == "" {
		c.AcoustID.FpcalcBinary = defaultFpcalcBinary
	}
}

func (c *Config) normalizeArtwork() {
	if c.Artwork.Size <= 0 {
		c.Artwork.Size = defaultArtworkSize
	}
	c.Artwork.ITunesBaseURL = strings.TrimSpace(c.Artwork.ITunesBaseURL)
	if c.Artwork.ITunesBaseURL == "" {
		c.Artwork.ITunesBaseURL = defaultITunesBaseURL
	}
	if c.Artwork.TimeoutSeconds <= 0 {
		c.Artwork.TimeoutSeconds = defaultArtworkTimeout
	}
}

func (c *Config) normalizeLibrary() {
	c.Library.OutputFormat = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.Library.OutputFormat)), ".")
	if c.Library.OutputFormat == "" {
		c.Library.OutputFormat = defaultOutputFormat
	}
	c.Library.MP3Bitrate = strings.TrimSpace(c.Library.MP3Bitrate)
	if c.Library.MP3Bitrate == "" {
		c.Library.MP3Bitrate = defaultMP3Bitrate
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = envFallback(c.Notifications.NtfyTopic, "NTFY_TOPIC")
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.StagingRetentionHours < 0 {
		c.Workflow.StagingRetentionHours = 0
	}
	if c.Workflow.DecodeTimeoutSeconds <= 0 {
		c.Workflow.DecodeTimeoutSeconds = defaultDecodeTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func envFallback(current, key string) string {
	current = strings.TrimSpace(current)
	if current != "" {
		return current
	}
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
