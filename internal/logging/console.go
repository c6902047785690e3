package logging

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler renders one human-readable line per record:
//
//	2026-01-02T15:04:05Z INFO [0f8fad5b] orchestrator: job submitted key=value
//
// The job ID and component are lifted out of the attributes into the prefix.
type consoleHandler struct {
	mu        *sync.Mutex
	outputs   []output
	level     *slog.LevelVar
	attrs     []field
	groups    []string
	addSource bool
}

type field struct {
	key   string
	value slog.Value
}

func newConsoleHandler(outputs []output, lvl *slog.LevelVar, addSource bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, outputs: outputs, level: lvl, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = slices.Clip(h.attrs)
	for _, attr := range attrs {
		clone.attrs = appendField(clone.attrs, h.groups, attr)
	}
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(slices.Clip(h.groups), name)
	return &clone
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	fields := slices.Clone(h.attrs)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendField(fields, h.groups, attr)
		return true
	})

	var component, jobID string
	fields = slices.DeleteFunc(fields, func(f field) bool {
		switch f.key {
		case FieldComponent:
			if component == "" {
				component = plain(f.value)
			}
			return true
		case FieldJobID:
			if jobID == "" {
				jobID = plain(f.value)
			}
			return true
		}
		return false
	})

	when := record.Time
	if when.IsZero() {
		when = time.Now()
	}
	var prefix strings.Builder
	if jobID != "" {
		prefix.WriteString("[" + shortID(jobID) + "] ")
	}
	if component != "" {
		prefix.WriteString(component + ": ")
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	var tail strings.Builder
	if h.addSource {
		if src := record.Source(); src != nil {
			tail.WriteString(" [" + sourceLocation(src) + "]")
		}
	}
	for _, f := range fields {
		tail.WriteString(" " + f.key + "=" + quoted(f.value))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, out := range h.outputs {
		label := levelLabel(record.Level)
		if out.color {
			label = levelColor(record.Level) + label + ansiReset
		}
		line := when.UTC().Format(time.RFC3339) + " " + label + " " + prefix.String() + msg + tail.String() + "\n"
		if _, err := out.writer.Write([]byte(line)); err != nil {
			return err
		}
	}
	return nil
}

// appendField flattens groups into dotted keys.
func appendField(dst []field, groups []string, attr slog.Attr) []field {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	if attr.Value.Kind() == slog.KindGroup {
		if attr.Key != "" {
			groups = append(slices.Clip(groups), attr.Key)
		}
		for _, child := range attr.Value.Group() {
			dst = appendField(dst, groups, child)
		}
		return dst
	}
	key := attr.Key
	if len(groups) > 0 {
		key = strings.Join(append(slices.Clip(groups), attr.Key), ".")
	}
	return append(dst, field{key: key, value: attr.Value})
}

// plain renders v without quoting.
func plain(v slog.Value) string {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

// quoted renders v, quoting it when it is empty or contains spaces, '=' or
// '"'.
func quoted(v slog.Value) string {
	s := plain(v)
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

const ansiReset = "\x1b[0m"

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "\x1b[31m"
	case level >= slog.LevelWarn:
		return "\x1b[33m"
	case level >= slog.LevelInfo:
		return "\x1b[32m"
	default:
		return "\x1b[90m"
	}
}

// shortID trims UUID job identifiers to their first group.
func shortID(id string) string {
	if len(id) == 36 && id[8] == '-' {
		return id[:8]
	}
	return id
}
