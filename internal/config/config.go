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

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
	APIToken   string `toml:"api_token"`

	// AllowedOrigins lists browser origins permitted by CORS. Empty disables CORS headers.
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Staging controls how job inputs are fetched into the per-job scratch directory.
type Staging struct {
	HeartbeatTimeout       int `toml:"heartbeat_timeout"`
	StartToCloseTimeout    int `toml:"start_to_close_timeout"`
	ScheduleToCloseTimeout int `toml:"schedule_to_close_timeout"`
	MaxDownloadMiB         int `toml:"max_download_mib"`
	RetentionHours         int `toml:"retention_hours"`
	CleanupInterval        int `toml:"cleanup_interval"`
	// AllowedLocalRoots lists the directories API submissions may stage
	// local files from. Empty restricts the API to http(s) sources.
	AllowedLocalRoots []string `toml:"allowed_local_roots"`
}

// Activities holds the default invocation policy for activity steps.
type Activities struct {
	StartToCloseTimeout    int `toml:"start_to_close_timeout"`
	ScheduleToCloseTimeout int `toml:"schedule_to_close_timeout"`
	RetryMaxAttempts       int `toml:"retry_max_attempts"`
	RetryBaseDelayMillis   int `toml:"retry_base_delay_ms"`
	RetryMaxDelaySeconds   int `toml:"retry_max_delay"`
	UploadConcurrency      int `toml:"upload_concurrency"`
}

// Workflow contains orchestrator limits.
type Workflow struct {
	MaxConcurrentJobs int `toml:"max_concurrent_jobs"`
	JobTimeout        int `toml:"job_timeout"`
	ResultRetention   int `toml:"result_retention"`
	// HistoryRetentionDays bounds how long finished jobs stay in the
	// history database. Zero keeps them forever.
	HistoryRetentionDays int `toml:"history_retention_days"`
}

// Storage selects where artifacts are uploaded.
type Storage struct {
	Backend       string `toml:"backend"`
	LocalDir      string `toml:"local_dir"`
	PublicBaseURL string `toml:"public_base_url"`
	Bucket        string `toml:"bucket"`
	Prefix        string `toml:"prefix"`
	SignedURLTTL  int    `toml:"signed_url_ttl"`
}

// AI contains the OpenAI-compatible endpoint used for image and font description.
type AI struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Callback configures outbound callback delivery.
type Callback struct {
	RequestTimeout int    `toml:"request_timeout"`
	UserAgent      string `toml:"user_agent"`
}

// Tools names the external binaries activities shell out to.
type Tools struct {
	FFmpeg      string `toml:"ffmpeg"`
	FFprobe     string `toml:"ffprobe"`
	Soffice     string `toml:"soffice"`
	Pdftoppm    string `toml:"pdftoppm"`
	ImageMagick string `toml:"imagemagick"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Telemetry configures OTLP trace export. Export is disabled when Endpoint is empty.
type Telemetry struct {
	Endpoint    string `toml:"endpoint"`
	Headers     string `toml:"headers"`
	ServiceName string `toml:"service_name"`
}

// Config encapsulates all configuration values for mediaflow.
//
// Configuration sections by subsystem:
//   - Paths: directories, API bind address and token
//   - Staging: input download policy and scratch cleanup
//   - Activities: default timeout and retry policy for activity steps
//   - Workflow: job concurrency, job timeout and result retention
//   - Storage: artifact upload backend
//   - AI: model endpoint for description activities
//   - Callback: outbound callback delivery
//   - Tools: external binaries
//   - Logging: log format and level
//   - Telemetry: OTLP tracing
type Config struct {
	Paths      Paths      `toml:"paths"`
	Staging    Staging    `toml:"staging"`
	Activities Activities `toml:"activities"`
	Workflow   Workflow   `toml:"workflow"`
	Storage    Storage    `toml:"storage"`
	AI         AI         `toml:"ai"`
	Callback   Callback   `toml:"callback"`
	Tools      Tools      `toml:"tools"`
	Logging    Logging    `toml:"logging"`
	Telemetry  Telemetry  `toml:"telemetry"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
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
		decoder.DisallowUnknownFields()
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

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mediaflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StagingDir, c.Paths.StateDir, c.Paths.LogDir}
	if c.Storage.Backend == StorageLocal {
		dirs = append(dirs, c.Storage.LocalDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the job history database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "jobs.db")
}

// LockPath returns the single-instance daemon lock location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "mediaflow.lock")
}

// ActivityTimeouts returns the default start-to-close and schedule-to-close limits.
func (c *Config) ActivityTimeouts() (time.Duration, time.Duration) {
	return seconds(c.Activities.StartToCloseTimeout), seconds(c.Activities.ScheduleToCloseTimeout)
}

// RetryBackoff returns the base and maximum retry delays.
func (c *Config) RetryBackoff() (time.Duration, time.Duration) {
	return time.Duration(c.Activities.RetryBaseDelayMillis) * time.Millisecond, seconds(c.Activities.RetryMaxDelaySeconds)
}

// StagingTimeouts returns heartbeat, start-to-close and schedule-to-close limits for downloads.
func (c *Config) StagingTimeouts() (heartbeat, attempt, total time.Duration) {
	return seconds(c.Staging.HeartbeatTimeout), seconds(c.Staging.StartToCloseTimeout), seconds(c.Staging.ScheduleToCloseTimeout)
}

// JobTimeout returns the overall per-job deadline.
func (c *Config) JobTimeout() time.Duration {
	return seconds(c.Workflow.JobTimeout)
}

// ResultRetention returns how long finished job handles stay queryable in memory.
func (c *Config) ResultRetention() time.Duration {
	return seconds(c.Workflow.ResultRetention)
}

// HistoryRetention returns how long finished jobs stay in the history
// database, zero for forever.
func (c *Config) HistoryRetention() time.Duration {
	return time.Duration(c.Workflow.HistoryRetentionDays) * 24 * time.Hour
}

func seconds(v int) time.Duration {
	return time.Duration(v) * time.Second
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
