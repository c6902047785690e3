package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"mediaflow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Retries are immediate and deadlines short so failing steps resolve quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Storage.LocalDir = filepath.Join(base, "artifacts")
	cfgVal.Storage.PublicBaseURL = "http://artifacts.test"
	cfgVal.Activities.StartToCloseTimeout = 10
	cfgVal.Activities.ScheduleToCloseTimeout = 30
	cfgVal.Activities.RetryBaseDelayMillis = 0
	cfgVal.Workflow.JobTimeout = 60
	cfgVal.AI.APIKey = ""

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

// WithAIEndpoint points the AI client at baseURL with a test key.
func WithAIEndpoint(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.AI.BaseURL = baseURL
		b.cfg.AI.APIKey = "test-key"
	}
}

// WithRetries sets the activity attempt limit.
func WithRetries(attempts int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Activities.RetryMaxAttempts = attempts
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, every configured tool is
// stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			tools := b.cfg.Tools
			names = []string{tools.FFmpeg, tools.FFprobe, tools.Soffice, tools.Pdftoppm, tools.ImageMagick}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			StubBinary(b.t, binDir, name, "exit 0")
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

// WithTool replaces one tool binary with a shell script and points the
// config at it. name is the config key: ffmpeg, ffprobe, soffice, pdftoppm
// or imagemagick.
func WithTool(name, script string) ConfigOption {
	return func(b *configBuilder) {
		path := StubBinary(b.t, filepath.Join(b.baseDir, "tools"), name, script)
		switch name {
		case "ffmpeg":
			b.cfg.Tools.FFmpeg = path
		case "ffprobe":
			b.cfg.Tools.FFprobe = path
		case "soffice":
			b.cfg.Tools.Soffice = path
		case "pdftoppm":
			b.cfg.Tools.Pdftoppm = path
		case "imagemagick":
			b.cfg.Tools.ImageMagick = path
		default:
			b.t.Fatalf("unknown tool %q", name)
		}
	}
}

// StubBinary writes an executable /bin/sh script named name into dir and
// returns its path.
func StubBinary(t testing.TB, dir, name, script string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
