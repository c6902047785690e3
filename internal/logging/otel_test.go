package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestWithTelemetryAddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := WithTelemetry(slog.New(slog.NewJSONHandler(&buf, nil)), "mediaflow", false)

	provider := sdktrace.NewTracerProvider()
	ctx, span := provider.Tracer("test").Start(context.Background(), "invoke")
	logger.InfoContext(ctx, "inside span")
	span.End()
	logger.Info("outside span")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %q", buf.String())
	}
	var inside, outside map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &inside); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &outside); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if inside["trace_id"] != span.SpanContext().TraceID().String() {
		t.Fatalf("expected trace id, got %v", inside["trace_id"])
	}
	if _, ok := outside["trace_id"]; ok {
		t.Fatal("unexpected trace id outside span")
	}
}

func TestTeeHandlerRespectsLevels(t *testing.T) {
	var info, errs bytes.Buffer
	h := &teeHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&errs, &slog.HandlerOptions{Level: slog.LevelError}),
	}}
	logger := slog.New(h).With("component", "tee")
	logger.Info("only info")
	logger.Error("both")

	if !strings.Contains(info.String(), "only info") || !strings.Contains(info.String(), "both") {
		t.Fatalf("info handler missing records: %q", info.String())
	}
	if strings.Contains(errs.String(), "only info") || !strings.Contains(errs.String(), "component=tee") {
		t.Fatalf("error handler got wrong records: %q", errs.String())
	}
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug should be disabled for both handlers")
	}
}
