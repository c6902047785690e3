package staging

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediaflow/internal/config"
	"mediaflow/internal/services"
)

func TestStageDownloadUsesContentTypeExtension(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer server.Close()

	dir := t.TempDir()
	path, err := New(nil).Stage(context.Background(), dir, server.URL+"/download?id=7")
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if path != filepath.Join(dir, "input.jpg") {
		t.Fatalf("path = %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "jpeg-bytes" {
		t.Fatalf("staged content = %q, %v", data, err)
	}
}

func TestStageDownloadFallsBackToURLExtension(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("font"))
	}))
	defer server.Close()

	path, err := New(nil).Stage(context.Background(), t.TempDir(), server.URL+"/fonts/Inter.TTF")
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if filepath.Base(path) != "input.ttf" {
		t.Fatalf("path = %s", path)
	}
}

func TestStageDownloadClassifiesStatus(t *testing.T) {
	cases := []struct {
		status    int
		retryable bool
		marker    error
	}{
		{http.StatusNotFound, false, services.ErrNotFound},
		{http.StatusForbidden, false, services.ErrExternalTool},
		{http.StatusBadGateway, true, services.ErrTransient},
		{http.StatusTooManyRequests, true, services.ErrTransient},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			}))
			defer server.Close()

			_, err := New(nil).Stage(context.Background(), t.TempDir(), server.URL+"/a.mp4")
			if !errors.Is(err, tc.marker) {
				t.Fatalf("expected %v, got %v", tc.marker, err)
			}
			if got := services.Retryable(err); got != tc.retryable {
				t.Fatalf("Retryable = %v, want %v", got, tc.retryable)
			}
		})
	}
}

func TestStageDownloadRejectsOversizedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Chunked response: no Content-Length, so the limit trips mid-copy.
		w.(http.Flusher).Flush()
		_, _ = w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer server.Close()

	dir := t.TempDir()
	_, err := New(nil, WithMaxBytes(1024)).Stage(context.Background(), dir, server.URL+"/big.bin")
	if !errors.Is(err, services.ErrValidation) || services.Retryable(err) {
		t.Fatalf("expected permanent validation error, got %v", err)
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Fatalf("partial download left behind: %v", entries)
	}
}

func TestStageCopiesLocalFile(t *testing.T) {
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "Clip.MP4")
	if err := os.WriteFile(src, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Staging.AllowedLocalRoots = []string{srcDir}
	stager := New(&cfg)

	for _, source := range []string{src, "file://" + src} {
		dir := t.TempDir()
		path, err := stager.Stage(context.Background(), dir, source)
		if err != nil {
			t.Fatalf("Stage(%s): %v", source, err)
		}
		if path != filepath.Join(dir, "input.mp4") {
			t.Fatalf("path = %s", path)
		}
	}
}

func TestStageMissingLocalFile(t *testing.T) {
	_, err := New(nil, WithAnyLocalPath()).Stage(context.Background(), t.TempDir(), "/nonexistent/clip.mp4")
	if !errors.Is(err, services.ErrNotFound) || services.Retryable(err) {
		t.Fatalf("expected permanent not found, got %v", err)
	}

	root := t.TempDir()
	_, err = New(nil, WithLocalRoots([]string{root})).Stage(context.Background(), t.TempDir(), filepath.Join(root, "clip.mp4"))
	if !errors.Is(err, services.ErrNotFound) || services.Retryable(err) {
		t.Fatalf("expected permanent not found, got %v", err)
	}
}

func TestStageConfinesLocalPaths(t *testing.T) {
	root := t.TempDir()
	inside := filepath.Join(root, "clip.mp4")
	if err := os.WriteFile(inside, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	outsideDir := t.TempDir()
	outside := filepath.Join(outsideDir, "secret.txt")
	if err := os.WriteFile(outside, []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	escape := filepath.Join(root, "escape.mp4")
	if err := os.Symlink(outside, escape); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	cases := []struct {
		name   string
		roots  []string
		source string
		ok     bool
	}{
		{"inside root", []string{root}, inside, true},
		{"file url inside root", []string{root}, "file://" + inside, true},
		{"outside root", []string{root}, outside, false},
		{"dot dot escape", []string{root}, filepath.Join(root, "..", filepath.Base(outsideDir), "secret.txt"), false},
		{"symlink escape", []string{root}, escape, false},
		{"missing outside root", []string{root}, filepath.Join(outsideDir, "nope.mp4"), false},
		{"no roots", nil, inside, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Staging.AllowedLocalRoots = tc.roots
			_, err := New(&cfg).Stage(context.Background(), t.TempDir(), tc.source)
			if tc.ok {
				if err != nil {
					t.Fatalf("Stage(%s): %v", tc.source, err)
				}
				return
			}
			if !errors.Is(err, services.ErrValidation) || services.Retryable(err) {
				t.Fatalf("Stage(%s): expected permanent validation error, got %v", tc.source, err)
			}
		})
	}

	cfg := config.Default()
	if _, err := New(&cfg, WithAnyLocalPath()).Stage(context.Background(), t.TempDir(), outside); err != nil {
		t.Fatalf("unrestricted stager rejected %s: %v", outside, err)
	}
}

func TestExtensionFor(t *testing.T) {
	cases := []struct {
		contentType string
		path        string
		want        string
	}{
		{"video/mp4", "/x", ".mp4"},
		{"image/png; charset=binary", "/x.jpg", ".png"},
		{"", "/a/b/c.WEBM", ".webm"},
		{"application/octet-stream", "/doc.pdf", ".pdf"},
		{"", "/noext", ""},
	}
	for _, tc := range cases {
		if got := extensionFor(tc.contentType, tc.path); got != tc.want {
			t.Errorf("extensionFor(%q, %q) = %q, want %q", tc.contentType, tc.path, got, tc.want)
		}
	}
}
