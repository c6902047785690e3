package callback_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"mediaflow/internal/callback"
	"mediaflow/internal/config"
	"mediaflow/internal/request"
	"mediaflow/internal/services"
)

func samplePayload() callback.Payload {
	return callback.Payload{
		ID: "job-1",
		Request: request.Request{
			File:       "https://example.com/a.mp4",
			Activities: []string{"video-metadata"},
			Callback:   "http://hooks.example.com",
		},
		Result: map[string]any{"video-metadata": map[string]any{"duration": 12.5}},
	}
}

func TestNotifyPostsJSON(t *testing.T) {
	var (
		gotBody    callback.Payload
		gotHeaders http.Header
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		gotHeaders = r.Header.Clone()
		data, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(data, &gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	cfg := config.Default()
	notifier := callback.NewNotifier(&cfg)
	if err := notifier.Notify(context.Background(), server.URL, callback.KindActivity, samplePayload()); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if gotHeaders.Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected content type %q", gotHeaders.Get("Content-Type"))
	}
	if gotHeaders.Get("Idempotency-Key") != "job-1:activity:video-metadata" {
		t.Fatalf("unexpected idempotency key %q", gotHeaders.Get("Idempotency-Key"))
	}
	if gotHeaders.Get("User-Agent") != cfg.Callback.UserAgent {
		t.Fatalf("unexpected user agent %q", gotHeaders.Get("User-Agent"))
	}
	if gotBody.ID != "job-1" || gotBody.Request.File != "https://example.com/a.mp4" {
		t.Fatalf("unexpected body %+v", gotBody)
	}
	if _, ok := gotBody.Result["video-metadata"]; !ok {
		t.Fatalf("expected activity result in body: %+v", gotBody.Result)
	}
}

func TestNotifyErrorPayloadOmitsResult(t *testing.T) {
	var raw map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
	}))
	defer server.Close()

	payload := samplePayload()
	payload.Result = nil
	payload.Error = "activity audio-waveform failed: deadline exceeded"
	if err := callback.NewHTTPNotifier(server.Client(), "").Notify(context.Background(), server.URL, callback.KindError, payload); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if _, ok := raw["result"]; ok {
		t.Fatalf("error payload must not carry result: %v", raw)
	}
	if raw["error"] != payload.Error {
		t.Fatalf("unexpected error field %v", raw["error"])
	}
}

func TestNotifyServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database down", http.StatusInternalServerError)
	}))
	defer server.Close()

	err := callback.NewHTTPNotifier(server.Client(), "test").Notify(context.Background(), server.URL, callback.KindFinal, samplePayload())
	var delivery *services.CallbackDeliveryError
	if !errors.As(err, &delivery) {
		t.Fatalf("expected CallbackDeliveryError, got %v", err)
	}
	if delivery.StatusCode != http.StatusInternalServerError || delivery.Body != "database down" {
		t.Fatalf("unexpected delivery error %+v", delivery)
	}
	if !services.Retryable(err) {
		t.Fatal("5xx should be retryable")
	}
	if services.Kind(err) != "callback" {
		t.Fatalf("unexpected kind %q", services.Kind(err))
	}
}

func TestNotifyClientErrorIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	err := callback.NewHTTPNotifier(server.Client(), "test").Notify(context.Background(), server.URL, callback.KindFinal, samplePayload())
	if !errors.Is(err, services.ErrCallback) {
		t.Fatalf("expected ErrCallback, got %v", err)
	}
	if services.Retryable(err) {
		t.Fatal("4xx should not be retried")
	}
}

func TestNotifyUnreachableIsTransient(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	err := callback.NewHTTPNotifier(nil, "").Notify(context.Background(), url, callback.KindFinal, samplePayload())
	if !errors.Is(err, services.ErrCallback) || !services.Retryable(err) {
		t.Fatalf("expected retryable callback error, got %v", err)
	}
}

func TestNoopAndEmptyURL(t *testing.T) {
	if err := (callback.Noop{}).Notify(context.Background(), "http://x", callback.KindFinal, samplePayload()); err != nil {
		t.Fatalf("Noop: %v", err)
	}
	if err := callback.NewHTTPNotifier(nil, "").Notify(context.Background(), " ", callback.KindFinal, samplePayload()); err != nil {
		t.Fatalf("empty url should be ignored: %v", err)
	}
}
