package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"mediaflow/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level            string
	Format           string
	OutputPaths      []string
	ErrorOutputPaths []string
	Development      bool
	// Color enables ANSI level colours on console outputs attached to a terminal.
	Color bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	outputs, err := openWriters(
		orDefault(opts.OutputPaths, "stdout"),
		orDefault(opts.ErrorOutputPaths, "stderr"),
		opts.Color,
	)
	if err != nil {
		return nil, err
	}

	addSource := opts.Development || level <= slog.LevelDebug

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		return slog.New(newJSONHandler(combineOutputs(outputs), levelVar, addSource)), nil
	case "console", "":
		return slog.New(newConsoleHandler(outputs, levelVar, addSource)), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
}

// NewFromConfig creates a logger using application config defaults.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{})
	}
	opts := Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		Color:            true,
	}
	if cfg.Paths.LogDir != "" {
		logPath := filepath.Join(cfg.Paths.LogDir, "mediaflow.log")
		opts.OutputPaths = append(opts.OutputPaths, logPath)
		opts.ErrorOutputPaths = append(opts.ErrorOutputPaths, logPath)
	}
	return New(opts)
}

// parseLevel accepts slog level names ("warn", "ERROR", "info+2"). Unknown
// values fall back to info.
func parseLevel(value string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func orDefault(values []string, fallback ...string) []string {
	if len(values) == 0 {
		return fallback
	}
	return slices.Clone(values)
}

// output is one log destination. Colour is only ever enabled for terminals.
type output struct {
	writer io.Writer
	color  bool
}

// openWriters resolves each distinct path once. stderr is skipped when stdout
// is also configured since stdout already carries every record.
func openWriters(outputPaths, errorPaths []string, color bool) ([]output, error) {
	paths := make([]string, 0, len(outputPaths)+len(errorPaths))
	for _, p := range slices.Concat(outputPaths, errorPaths) {
		if p = strings.TrimSpace(p); p != "" && !slices.Contains(paths, p) {
			paths = append(paths, p)
		}
	}

	var outputs []output
	for _, p := range paths {
		switch p {
		case "stdout":
			outputs = append(outputs, terminalOutput(os.Stdout, color))
		case "stderr":
			if !slices.Contains(paths, "stdout") {
				outputs = append(outputs, terminalOutput(os.Stderr, color))
			}
		default:
			file, err := openLogFile(p)
			if err != nil {
				return nil, err
			}
			outputs = append(outputs, output{writer: file})
		}
	}
	if len(outputs) == 0 {
		outputs = append(outputs, output{writer: os.Stdout})
	}
	return outputs, nil
}

func terminalOutput(f *os.File, color bool) output {
	return output{writer: f, color: color && isTerminal(f)}
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory for %s: %w", path, err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return file, nil
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func combineOutputs(outputs []output) io.Writer {
	writers := make([]io.Writer, len(outputs))
	for i, out := range outputs {
		writers[i] = out.writer
	}
	if len(writers) == 1 {
		return writers[0]
	}
	return io.MultiWriter(writers...)
}

// newJSONHandler writes one object per record with ts, level, msg and an
// optional file:line source.
func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: addSource,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return attr
			}
			switch attr.Key {
			case slog.TimeKey:
				return slog.String("ts", attr.Value.Time().UTC().Format(time.RFC3339))
			case slog.LevelKey:
				return slog.String("level", strings.ToLower(attr.Value.String()))
			case slog.SourceKey:
				if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
					return slog.String(slog.SourceKey, sourceLocation(src))
				}
			}
			return attr
		},
	})
}

func sourceLocation(src *slog.Source) string {
	return filepath.Base(src.File) + ":" + strconv.Itoa(src.Line)
}
