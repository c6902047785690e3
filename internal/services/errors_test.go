package services_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"mediaflow/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "video-transcode", "ffmpeg", "failed", base)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"video-transcode", "ffmpeg", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestTypedErrorsMatchMarkers(t *testing.T) {
	deadline := &services.DeadlineExceededError{Activity: "audio-waveform", Step: "waveform", Kind: services.DeadlineStartToClose, Limit: 5 * time.Minute}
	wrapped := &services.ActivityError{Activity: "audio-waveform", Err: deadline}

	if !errors.Is(wrapped, services.ErrTimeout) {
		t.Fatal("expected deadline to match ErrTimeout through ActivityError")
	}
	var target *services.DeadlineExceededError
	if !errors.As(wrapped, &target) || target.Kind != services.DeadlineStartToClose {
		t.Fatalf("expected DeadlineExceededError, got %v", wrapped)
	}
	if !strings.Contains(wrapped.Error(), "audio-waveform") {
		t.Fatalf("expected activity name in %q", wrapped.Error())
	}

	staging := &services.StagingError{Source: "https://example.com/a.mp4", Err: errors.New("404")}
	if !errors.Is(staging, services.ErrStaging) {
		t.Fatal("expected staging marker")
	}
	if !errors.Is(services.Invalid("activities", "must not be empty"), services.ErrValidation) {
		t.Fatal("expected validation marker")
	}
	if !errors.Is(&services.CallbackDeliveryError{URL: "http://x", StatusCode: 500}, services.ErrCallback) {
		t.Fatal("expected callback marker")
	}
}

func TestKindAndRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      string
		retryable bool
	}{
		{"nil", nil, "", false},
		{"validation", services.Invalid("file", "required"), "validation", false},
		{"staging", &services.StagingError{Source: "x", Err: errors.New("boom")}, "staging", false},
		{"attempt deadline", &services.DeadlineExceededError{Kind: services.DeadlineStartToClose}, "deadline_exceeded", true},
		{"total deadline", &services.DeadlineExceededError{Kind: services.DeadlineScheduleToClose}, "deadline_exceeded", false},
		{"heartbeat", &services.HeartbeatTimeoutError{Window: time.Minute}, "heartbeat_timeout", true},
		{"transient", services.Wrap(services.ErrTransient, "image-detail", "describe", "rejected", nil), "transient", true},
		{"tool", services.Wrap(services.ErrExternalTool, "video-metadata", "ffprobe", "", errors.New("exit 1")), "external_tool", false},
		{"plain", errors.New("plain"), "activity", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Kind(tc.err); got != tc.kind {
				t.Fatalf("Kind = %q, want %q", got, tc.kind)
			}
			if got := services.Retryable(tc.err); got != tc.retryable {
				t.Fatalf("Retryable = %v, want %v", got, tc.retryable)
			}
		})
	}
}
