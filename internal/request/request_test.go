package request_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"mediaflow/internal/request"
	"mediaflow/internal/services"
)

func TestNormalizeDeduplicatesActivities(t *testing.T) {
	req := request.Request{
		File:       "  https://example.com/a.mp4 ",
		Activities: []string{"video-metadata", " audio-waveform", "video-metadata", ""},
		Params:     map[string]json.RawMessage{"audio-waveform": json.RawMessage(`{"num_samples":10}`)},
	}
	got := req.Normalize()
	if got.File != "https://example.com/a.mp4" {
		t.Fatalf("unexpected file: %q", got.File)
	}
	if strings.Join(got.Activities, ",") != "video-metadata,audio-waveform" {
		t.Fatalf("unexpected activities: %v", got.Activities)
	}
	got.Params["audio-waveform"][0] = 'X'
	if req.Params["audio-waveform"][0] != '{' {
		t.Fatal("Normalize must not alias the caller's params")
	}
	if !got.IsRemote() {
		t.Fatal("expected https file to be remote")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		req   request.Request
		field string
	}{
		{"missing file", request.Request{Activities: []string{"video-metadata"}}, "file"},
		{"no activities", request.Request{File: "a.mp4"}, "activities"},
		{"params for unrequested activity", request.Request{
			File:       "a.mp4",
			Activities: []string{"video-metadata"},
			Params:     map[string]json.RawMessage{"audio-waveform": json.RawMessage(`{}`)},
		}, "params.audio-waveform"},
		{"callback scheme", request.Request{File: "a.mp4", Activities: []string{"x"}, Callback: "ftp://host/cb"}, "callback"},
		{"callback host", request.Request{File: "a.mp4", Activities: []string{"x"}, Callback: "http:///cb"}, "callback"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			var verr *services.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Fatalf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}

	ok := request.Request{File: "a.mp4", Activities: []string{"video-metadata"}, Callback: "https://hooks.example.com/cb"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestRequestJSONShape(t *testing.T) {
	var req request.Request
	payload := `{"file":"a.png","activities":["image-thumbnail"],"params":{"image-thumbnail":{"size":[200,200]}},"callback":"http://cb"}`
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.Callback != "http://cb" || string(req.Params["image-thumbnail"]) != `{"size":[200,200]}` {
		t.Fatalf("unexpected decode: %+v", req)
	}
}
