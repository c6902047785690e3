package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cloud.google.com/go/storage"

	"mediaflow/internal/config"
	"mediaflow/internal/services"
)

func TestObjectName(t *testing.T) {
	ctx := services.WithActivity(services.WithJobID(context.Background(), "job-1"), "video-sprite")
	digest := strings.Repeat("ab", 32)

	cases := []struct {
		name        string
		ctx         context.Context
		prefix      string
		path        string
		contentType string
		want        string
	}{
		{"scoped", ctx, "", "/tmp/sprite-1.JPG", "image/jpeg", "job-1/video-sprite/" + digest[:24] + ".jpg"},
		{"prefixed", ctx, "media", "/tmp/out", "image/png", "media/job-1/video-sprite/" + digest[:24] + ".png"},
		{"unsafe", services.WithActivity(services.WithJobID(context.Background(), ".."), "video-sprite"), "../media//", "/tmp/a.png", "image/png", "_/media/_/video-sprite/" + digest[:24] + ".png"},
		{"unscoped", context.Background(), "", "/tmp/a.mp4", "video/mp4", "adhoc/artifact/" + digest[:24] + ".mp4"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := objectName(tc.ctx, tc.prefix, tc.path, tc.contentType, digest); got != tc.want {
				t.Fatalf("objectName = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestLocalUploadIsContentAddressed(t *testing.T) {
	root := t.TempDir()
	backend := NewLocal(root, "http://127.0.0.1:7390/artifacts", "")
	src := filepath.Join(t.TempDir(), "thumb.png")
	if err := os.WriteFile(src, []byte("png-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx := services.WithActivity(services.WithJobID(context.Background(), "job-9"), "image-thumbnail")

	first, err := backend.Upload(ctx, src, "image/png")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	second, err := backend.Upload(ctx, src, "image/png")
	if err != nil {
		t.Fatalf("second Upload: %v", err)
	}
	if first != second {
		t.Fatalf("retried upload produced a new URL: %s vs %s", first, second)
	}
	prefix := "http://127.0.0.1:7390/artifacts/job-9/image-thumbnail/"
	if !strings.HasPrefix(first, prefix) || !strings.HasSuffix(first, ".png") {
		t.Fatalf("url = %s", first)
	}

	stored := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(first, "http://127.0.0.1:7390/artifacts/")))
	data, err := os.ReadFile(stored)
	if err != nil || string(data) != "png-bytes" {
		t.Fatalf("stored artifact = %q, %v", data, err)
	}
	if matches, _ := filepath.Glob(filepath.Join(filepath.Dir(stored), "*.part")); len(matches) != 0 {
		t.Fatalf("temporary files left: %v", matches)
	}
}

func TestLocalUploadMissingFile(t *testing.T) {
	backend := NewLocal(t.TempDir(), "http://x", "")
	if _, err := backend.Upload(context.Background(), "/nonexistent/file.png", "image/png"); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.LocalDir = t.TempDir()
	backend, err := New(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := backend.(*Local); !ok {
		t.Fatalf("backend = %T, want *Local", backend)
	}

	cfg.Storage.Backend = "s3"
	if _, err := New(context.Background(), &cfg); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestClassifyMissingBucketIsPermanent(t *testing.T) {
	if err := classify("write object", "a", storage.ErrBucketNotExist); services.Retryable(err) {
		t.Fatalf("missing bucket should not be retried: %v", err)
	}
	if err := classify("write object", "a", errors.New("connection reset")); !services.Retryable(err) {
		t.Fatalf("network failure should be retried: %v", err)
	}
}
