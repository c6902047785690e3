package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStaging(); err != nil {
		return err
	}
	if err := c.validateActivities(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Callback.RequestTimeout <= 0 {
		return errors.New("callback.request_timeout must be positive")
	}
	if c.AI.TimeoutSeconds <= 0 {
		return errors.New("ai.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateStaging() error {
	if err := ensurePositiveMap(map[string]int{
		"staging.heartbeat_timeout":         c.Staging.HeartbeatTimeout,
		"staging.start_to_close_timeout":    c.Staging.StartToCloseTimeout,
		"staging.schedule_to_close_timeout": c.Staging.ScheduleToCloseTimeout,
		"staging.retention_hours":           c.Staging.RetentionHours,
		"staging.cleanup_interval":          c.Staging.CleanupInterval,
	}); err != nil {
		return err
	}
	if c.Staging.ScheduleToCloseTimeout < c.Staging.StartToCloseTimeout {
		return errors.New("staging.schedule_to_close_timeout must be at least staging.start_to_close_timeout")
	}
	if c.Staging.HeartbeatTimeout >= c.Staging.StartToCloseTimeout {
		return errors.New("staging.heartbeat_timeout must be less than staging.start_to_close_timeout")
	}
	if c.Staging.MaxDownloadMiB < 0 {
		return errors.New("staging.max_download_mib must not be negative")
	}
	// The stale sweep must never reach a job that can still be running.
	if c.Workflow.JobTimeout > 0 && c.Staging.RetentionHours*60*60 <= c.Workflow.JobTimeout {
		return fmt.Errorf("staging.retention_hours (%dh) must exceed workflow.job_timeout (%ds)",
			c.Staging.RetentionHours, c.Workflow.JobTimeout)
	}
	return nil
}

func (c *Config) validateActivities() error {
	if err := ensurePositiveMap(map[string]int{
		"activities.start_to_close_timeout":    c.Activities.StartToCloseTimeout,
		"activities.schedule_to_close_timeout": c.Activities.ScheduleToCloseTimeout,
		"activities.retry_max_attempts":        c.Activities.RetryMaxAttempts,
		"activities.retry_max_delay":           c.Activities.RetryMaxDelaySeconds,
		"activities.upload_concurrency":        c.Activities.UploadConcurrency,
	}); err != nil {
		return err
	}
	if c.Activities.RetryBaseDelayMillis < 0 {
		return errors.New("activities.retry_base_delay_ms must not be negative")
	}
	if c.Activities.ScheduleToCloseTimeout < c.Activities.StartToCloseTimeout {
		return errors.New("activities.schedule_to_close_timeout must be at least activities.start_to_close_timeout")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.HistoryRetentionDays < 0 {
		return errors.New("workflow.history_retention_days must be zero or positive")
	}
	return ensurePositiveMap(map[string]int{
		"workflow.max_concurrent_jobs": c.Workflow.MaxConcurrentJobs,
		"workflow.job_timeout":         c.Workflow.JobTimeout,
		"workflow.result_retention":    c.Workflow.ResultRetention,
	})
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageLocal:
		if c.Storage.PublicBaseURL == "" && c.Paths.APIBind == "" {
			return errors.New("storage.public_base_url must be set when paths.api_bind is empty")
		}
	case StorageGCS:
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket must be set when storage.backend is \"gcs\" (or export MEDIAFLOW_GCS_BUCKET)")
		}
		if c.Storage.SignedURLTTL <= 0 {
			return errors.New("storage.signed_url_ttl must be positive")
		}
		// V4 signed URLs cannot outlive seven days.
		if c.Storage.SignedURLTTL > 7*24*60*60 {
			return errors.New("storage.signed_url_ttl must not exceed 604800 seconds")
		}
	default:
		return fmt.Errorf("storage.backend: unsupported value %q (expected %q or %q)", c.Storage.Backend, StorageLocal, StorageGCS)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	var invalid []string
	for key, value := range values {
		if value <= 0 {
			invalid = append(invalid, key)
		}
	}
	if len(invalid) == 0 {
		return nil
	}
	if len(invalid) == 1 {
		return fmt.Errorf("%s must be positive", invalid[0])
	}
	slices.Sort(invalid)
	return fmt.Errorf("%s must be positive", strings.Join(invalid, ", "))
}
