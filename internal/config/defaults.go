package config

const (
	defaultLibraryDir            = "~/Music/mixsplit"
	defaultStagingDir            = "~/.local/share/mixsplit/staging"
	defaultStateDir              = "~/.local/state/mixsplit"
	defaultReportDir             = "~/.local/share/mixsplit/reports"
	defaultLogDir                = "~/.local/share/mixsplit/logs"
	defaultBudgetFraction        = 0.6
	defaultMixThresholdSeconds   = 480
	defaultMinSilenceMS          = 2000
	defaultSilenceThresholdDB    = -40
	defaultKeepSilenceMS         = 200
	defaultWindowMS              = 10
	defaultSplitWorkers          = 1
	defaultIdentificationMode    = "auto"
	defaultSampleSeconds         = 12
	minSampleSeconds             = 8
	maxSampleSeconds             = 45
	defaultMinIntervalMS         = 1200
	defaultIdentifyWorkers       = 2
	defaultIdentifyTimeout       = 30
	defaultMinAgreement          = 0.85
	defaultACRCloudHost          = "identify-eu-west-1.acrcloud.com"
	defaultAcoustIDBaseURL       = "https://api.acoustid.org/v2/lookup"
	defaultFpcalcBinary          = "fpcalc"
	defaultArtworkSize           = 600
	defaultITunesBaseURL         = "https://itunes.apple.com/search"
	defaultArtworkTimeout        = 15
	defaultOutputFormat          = "flac"
	defaultMP3Bitrate            = "320k"
	defaultNotifyTimeout         = 10
	defaultStagingRetentionHours = 24
	defaultDecodeTimeoutSeconds  = 1800
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir: defaultLibraryDir,
			StagingDir: defaultStagingDir,
			StateDir:   defaultStateDir,
			ReportDir:  defaultReportDir,
			LogDir:     defaultLogDir,
		},
		Memory: Memory{
			BudgetFraction: defaultBudgetFraction,
		},
		Split: Split{
			MixThresholdSeconds: defaultMixThresholdSeconds,
			MinSilenceMS:        defaultMinSilenceMS,
			SilenceThresholdDB:  defaultSilenceThresholdDB,
			KeepSilenceMS:       defaultKeepSilenceMS,
			WindowMS:            defaultWindowMS,
			Workers:             defaultSplitWorkers,
		},
		Identification: Identification{
			Mode:           defaultIdentificationMode,
			SampleSeconds:  defaultSampleSeconds,
			MinIntervalMS:  defaultMinIntervalMS,
			Workers:        defaultIdentifyWorkers,
			TimeoutSeconds: defaultIdentifyTimeout,
			MinAgreement:   defaultMinAgreement,
		},
		ACRCloud: ACRCloud{
			Host: defaultACRCloudHost,
		},
		AcoustID: AcoustID{
			BaseURL:      defaultAcoustIDBaseURL,
			FpcalcBinary: defaultFpcalcBinary,
		},
		Artwork: Artwork{
			Enabled:        true,
			Size:           defaultArtworkSize,
			ITunesEnabled:  true,
			ITunesBaseURL:  defaultITunesBaseURL,
			PageScrape:     true,
			TimeoutSeconds: defaultArtworkTimeout,
		},
		Library: Library{
			OutputFormat:     defaultOutputFormat,
			MP3Bitrate:       defaultMP3Bitrate,
			NormalizeArtists: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			RunCompleted:   true,
			Errors:         true,
		},
		Workflow: Workflow{
			StagingRetentionHours: defaultStagingRetentionHours,
			DecodeTimeoutSeconds:  defaultDecodeTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
