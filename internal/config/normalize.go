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
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeAI()
	c.normalizeCallback()
	c.normalizeTools()
	c.normalizeLogging()
	c.normalizeTelemetry()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("MEDIAFLOW_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	origins := c.Paths.AllowedOrigins[:0]
	for _, origin := range c.Paths.AllowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	c.Paths.AllowedOrigins = origins

	roots := make([]string, 0, len(c.Staging.AllowedLocalRoots))
	for _, root := range c.Staging.AllowedLocalRoots {
		if root = strings.TrimSpace(root); root == "" {
			continue
		}
		expanded, err := expandPath(root)
		if err != nil {
			return fmt.Errorf("staging.allowed_local_roots: %w", err)
		}
		roots = append(roots, expanded)
	}
	c.Staging.AllowedLocalRoots = roots
	return nil
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageLocal
	}
	if strings.TrimSpace(c.Storage.LocalDir) == "" {
		c.Storage.LocalDir = defaultArtifactDir
	}
	var err error
	if c.Storage.LocalDir, err = expandPath(c.Storage.LocalDir); err != nil {
		return fmt.Errorf("storage.local_dir: %w", err)
	}
	c.Storage.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.PublicBaseURL), "/")
	if c.Storage.PublicBaseURL == "" && c.Paths.APIBind != "" {
		c.Storage.PublicBaseURL = "http://" + c.Paths.APIBind + "/artifacts"
	}
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	if c.Storage.Bucket == "" {
		if value, ok := os.LookupEnv("MEDIAFLOW_GCS_BUCKET"); ok {
			c.Storage.Bucket = strings.TrimSpace(value)
		}
	}
	c.Storage.Prefix = strings.Trim(strings.TrimSpace(c.Storage.Prefix), "/")
	return nil
}

func (c *Config) normalizeAI() {
	c.AI.APIKey = strings.TrimSpace(c.AI.APIKey)
	if c.AI.APIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.AI.APIKey = strings.TrimSpace(value)
		}
	}
	c.AI.BaseURL = strings.TrimSpace(c.AI.BaseURL)
	if c.AI.BaseURL == "" {
		c.AI.BaseURL = defaultAIBaseURL
	}
	c.AI.Model = strings.TrimSpace(c.AI.Model)
	if c.AI.Model == "" {
		c.AI.Model = defaultAIModel
	}
}

func (c *Config) normalizeCallback() {
	c.Callback.UserAgent = strings.TrimSpace(c.Callback.UserAgent)
	if c.Callback.UserAgent == "" {
		c.Callback.UserAgent = defaultCallbackUserAgent
	}
}

func (c *Config) normalizeTools() {
	c.Tools.FFmpeg = orDefault(c.Tools.FFmpeg, defaultFFmpegBinary)
	c.Tools.FFprobe = orDefault(c.Tools.FFprobe, defaultFFprobeBinary)
	c.Tools.Soffice = orDefault(c.Tools.Soffice, defaultSofficeBinary)
	c.Tools.Pdftoppm = orDefault(c.Tools.Pdftoppm, defaultPdftoppmBinary)
	c.Tools.ImageMagick = strings.TrimSpace(c.Tools.ImageMagick)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeTelemetry() {
	c.Telemetry.Endpoint = strings.TrimRight(strings.TrimSpace(c.Telemetry.Endpoint), "/")
	if c.Telemetry.Endpoint == "" {
		if value, ok := os.LookupEnv("OTEL_EXPORTER_OTLP_ENDPOINT"); ok {
			c.Telemetry.Endpoint = strings.TrimRight(strings.TrimSpace(value), "/")
		}
	}
	c.Telemetry.ServiceName = orDefault(c.Telemetry.ServiceName, defaultTelemetryServiceName)
}

func orDefault(value, fallback string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return fallback
}
