package config

const (
	StorageLocal = "local"
	StorageGCS   = "gcs"
)

const (
	defaultConfigPath              = "~/.config/mediaflow/config.toml"
	defaultStagingDir              = "~/.local/share/mediaflow/staging"
	defaultStateDir                = "~/.local/share/mediaflow"
	defaultLogDir                  = "~/.local/share/mediaflow/logs"
	defaultArtifactDir             = "~/.local/share/mediaflow/artifacts"
	defaultAPIBind                 = "127.0.0.1:7390"
	defaultStagingHeartbeatTimeout = 60
	defaultStagingStartToClose     = 30 * 60
	defaultStagingScheduleToClose  = 60 * 60
	defaultStagingMaxDownloadMiB   = 4096
	defaultStagingRetentionHours   = 24
	defaultStagingCleanupInterval  = 600
	defaultActivityStartToClose    = 5 * 60
	defaultActivityScheduleToClose = 20 * 60
	defaultRetryMaxAttempts        = 3
	defaultRetryBaseDelayMillis    = 1000
	defaultRetryMaxDelaySeconds    = 30
	defaultUploadConcurrency       = 4
	defaultMaxConcurrentJobs       = 4
	defaultJobTimeout              = 2 * 60 * 60
	defaultResultRetention         = 10 * 60
	defaultHistoryRetentionDays    = 30
	defaultSignedURLTTL            = 24 * 60 * 60
	defaultAIBaseURL               = "https://api.openai.com/v1"
	defaultAIModel                 = "gpt-4o-mini"
	defaultAITimeoutSeconds        = 120
	defaultCallbackRequestTimeout  = 10
	defaultCallbackUserAgent       = "mediaflow/0.1"
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultTelemetryServiceName    = "mediaflow"
	defaultFFmpegBinary            = "ffmpeg"
	defaultFFprobeBinary           = "ffprobe"
	defaultSofficeBinary           = "soffice"
	defaultPdftoppmBinary          = "pdftoppm"
	defaultImageMagickBinary       = "magick"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Staging: Staging{
			HeartbeatTimeout:       defaultStagingHeartbeatTimeout,
			StartToCloseTimeout:    defaultStagingStartToClose,
			ScheduleToCloseTimeout: defaultStagingScheduleToClose,
			MaxDownloadMiB:         defaultStagingMaxDownloadMiB,
			RetentionHours:         defaultStagingRetentionHours,
			CleanupInterval:        defaultStagingCleanupInterval,
		},
		Activities: Activities{
			StartToCloseTimeout:    defaultActivityStartToClose,
			ScheduleToCloseTimeout: defaultActivityScheduleToClose,
			RetryMaxAttempts:       defaultRetryMaxAttempts,
			RetryBaseDelayMillis:   defaultRetryBaseDelayMillis,
			RetryMaxDelaySeconds:   defaultRetryMaxDelaySeconds,
			UploadConcurrency:      defaultUploadConcurrency,
		},
		Workflow: Workflow{
			MaxConcurrentJobs:    defaultMaxConcurrentJobs,
			JobTimeout:           defaultJobTimeout,
			ResultRetention:      defaultResultRetention,
			HistoryRetentionDays: defaultHistoryRetentionDays,
		},
		Storage: Storage{
			Backend:      StorageLocal,
			LocalDir:     defaultArtifactDir,
			SignedURLTTL: defaultSignedURLTTL,
		},
		AI: AI{
			BaseURL:        defaultAIBaseURL,
			Model:          defaultAIModel,
			TimeoutSeconds: defaultAITimeoutSeconds,
		},
		Callback: Callback{
			RequestTimeout: defaultCallbackRequestTimeout,
			UserAgent:      defaultCallbackUserAgent,
		},
		Tools: Tools{
			FFmpeg:      defaultFFmpegBinary,
			FFprobe:     defaultFFprobeBinary,
			Soffice:     defaultSofficeBinary,
			Pdftoppm:    defaultPdftoppmBinary,
			ImageMagick: defaultImageMagickBinary,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Telemetry: Telemetry{
			ServiceName: defaultTelemetryServiceName,
		},
	}
}
