package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediaflow/internal/config"
	"mediaflow/internal/language"
	"mediaflow/internal/services"
)

func mustLanguage(t *testing.T, value string) language.Language {
	t.Helper()
	lang, err := language.Normalize(value)
	if err != nil {
		t.Fatalf("Normalize(%q): %v", value, err)
	}
	return lang
}

func TestDecodeJSONHandlesCodeFences(t *testing.T) {
	var out struct {
		OK bool `json:"ok"`
	}
	if err := DecodeJSON("```json\n{\"ok\":true}\n```", &out); err != nil || !out.OK {
		t.Fatalf("DecodeJSON fenced: ok=%v err=%v", out.OK, err)
	}
	out.OK = false
	if err := DecodeJSON("Sure! Here it is: {\"ok\":true} Hope this helps.", &out); err != nil || !out.OK {
		t.Fatalf("DecodeJSON prose: ok=%v err=%v", out.OK, err)
	}
	if err := DecodeJSON("", &out); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestCheckTagsSplitsAndDefaults(t *testing.T) {
	content := `{"theme_identification":["education,technology"],"emotion_capture":"joyful","style_annotation":[1,2],"color_analysis":["blue，red", " "]}`
	verdict := CheckTags(content, language.English)
	tags, ok := verdict.Value()
	if !ok {
		t.Fatalf("unexpected rejection: %s", verdict.Reason())
	}
	if got := tags["theme_identification"]; len(got) != 2 || got[0] != "education" || got[1] != "technology" {
		t.Fatalf("theme_identification = %v", got)
	}
	if got := tags["emotion_capture"]; len(got) != 0 {
		t.Fatalf("non-list aspect should be empty, got %v", got)
	}
	if got := tags["style_annotation"]; len(got) != 0 {
		t.Fatalf("non-string list should be empty, got %v", got)
	}
	if got := tags["color_analysis"]; len(got) != 2 || got[1] != "red" {
		t.Fatalf("color_analysis = %v", got)
	}
	if len(tags) != len(TagKeys) {
		t.Fatalf("expected every aspect present, got %d", len(tags))
	}
	if joined := tags.Joined(); joined != "education,technology,blue,red" {
		t.Fatalf("Joined() = %q", joined)
	}
}

func TestChecksRejectEnglishForOtherLanguages(t *testing.T) {
	zh := mustLanguage(t, "zh-Hans")
	if v := CheckTags(`{"theme_identification":["教育","technology"]}`, zh); v.OK() {
		t.Fatal("expected ASCII tag to be rejected for Chinese")
	}
	if v := CheckTags(`{"theme_identification":["教育"]}`, zh); !v.OK() {
		t.Fatalf("unexpected rejection: %s", v.Reason())
	}
	if v := CheckBasic(`{"title":"A cat","description":"一只猫"}`, zh); v.OK() {
		t.Fatal("expected English title to be rejected")
	}
	if v := CheckBasic(`{"title":"A cat","description":"A cat on a mat"}`, language.English); !v.OK() {
		t.Fatalf("English output must be accepted for English: %s", v.Reason())
	}
	if v := CheckDetails(`{"usage":"poster"}`, zh); v.OK() {
		t.Fatal("expected English detail to be rejected")
	}
}

func TestCheckDetailsOrdersAndNulls(t *testing.T) {
	verdict := CheckDetails(`{"mood":"calm","usage":42,"holiday_theme":null}`, language.English)
	details, ok := verdict.Value()
	if !ok {
		t.Fatalf("unexpected rejection: %s", verdict.Reason())
	}
	ordered := details.Ordered()
	if len(ordered) != len(DetailKeys) {
		t.Fatalf("got %d entries", len(ordered))
	}
	if ordered[0]["usage"] != nil {
		t.Fatal("non-string usage should be null")
	}
	if mood := ordered[1]["mood"]; mood == nil || *mood != "calm" {
		t.Fatalf("mood = %v", mood)
	}
	encoded, err := json.Marshal(ordered[:2])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(encoded) != `[{"usage":null},{"mood":"calm"}]` {
		t.Fatalf("encoded = %s", encoded)
	}
}

func TestCheckFontDetailRequiresEveryField(t *testing.T) {
	complete := `{"description":"d","tags":["a","b"],"font_category":"serif","stroke_characteristics":"s","historical_period":"h"}`
	detail, ok := CheckFontDetail(complete, language.English).Value()
	if !ok {
		t.Fatal("expected complete font detail to pass")
	}
	if detail.Tags != "a,b" {
		t.Fatalf("Tags = %q", detail.Tags)
	}
	if v := CheckFontDetail(`{"description":"d"}`, language.English); v.OK() || !strings.Contains(v.Reason(), "tags") {
		t.Fatalf("expected missing tags rejection, got %q", v.Reason())
	}
}

func TestVerdictUnwrapIsRetryable(t *testing.T) {
	_, err := Rejected[Basic]("no title").Unwrap("image basic")
	if !services.Retryable(err) {
		t.Fatalf("rejection should be retryable, got %v", err)
	}
	value, err := Ok(Basic{Title: "t"}).Unwrap("image basic")
	if err != nil || value.Title != "t" {
		t.Fatalf("Unwrap ok: %v %v", value, err)
	}
}

func TestImageURLInlinesLocalFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thumb.png")
	if err := os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ImageURL(path)
	if err != nil {
		t.Fatalf("ImageURL: %v", err)
	}
	if !strings.HasPrefix(got, "data:image/png;base64,") {
		t.Fatalf("ImageURL = %q", got[:min(len(got), 40)])
	}
	if remote, _ := ImageURL("https://cdn.test/a.png"); remote != "https://cdn.test/a.png" {
		t.Fatalf("remote URL changed: %s", remote)
	}
}

func completionServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []any{map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestDescriberImageDetail(t *testing.T) {
	server := completionServer(t, http.StatusOK, `{"title":"Cat","description":"A cat","tags":"cat,pet"}`)
	d := NewDescriber(config.AI{APIKey: "test-key", BaseURL: server.URL, Model: "test-model"})
	verdict, err := d.ImageDetail(context.Background(), "https://cdn.test/cat.png", language.English)
	if err != nil {
		t.Fatalf("ImageDetail: %v", err)
	}
	detail, ok := verdict.Value()
	if !ok || detail.Tags != "cat,pet" {
		t.Fatalf("unexpected verdict %+v (%s)", detail, verdict.Reason())
	}
}

func TestDescriberClassifiesServerErrors(t *testing.T) {
	server := completionServer(t, http.StatusServiceUnavailable, "")
	d := NewDescriber(config.AI{APIKey: "test-key", BaseURL: server.URL})
	_, err := d.Basic(context.Background(), "https://cdn.test/cat.png", language.English)
	if !services.Retryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

func TestDescriberWithoutKeyIsConfigurationError(t *testing.T) {
	d := NewDescriber(config.AI{})
	_, err := d.Tags(context.Background(), "https://cdn.test/cat.png", language.English)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
