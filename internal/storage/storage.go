// Package storage publishes activity artifacts and returns URLs for them.
//
// Two backends exist: Local copies artifacts into a directory the daemon
// serves under /artifacts, and GCS writes them to a Cloud Storage bucket and
// returns V4 signed URLs. Object names are content addressed and scoped by
// job and activity, so a retried upload rewrites the same object.
package storage

import (
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"mediaflow/internal/config"
	"mediaflow/internal/services"
	"mediaflow/internal/textutil"
)

// Backend uploads artifacts. Close releases backend clients.
type Backend interface {
	Upload(ctx context.Context, path, contentType string) (string, error)
	Close() error
}

// New builds the configured backend.
func New(ctx context.Context, cfg *config.Config) (Backend, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "init", "configuration is required", nil)
	}
	switch cfg.Storage.Backend {
	case config.StorageLocal:
		return NewLocal(cfg.Storage.LocalDir, cfg.Storage.PublicBaseURL, cfg.Storage.Prefix), nil
	case config.StorageGCS:
		return NewGCS(ctx, cfg)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "storage", "init", fmt.Sprintf("unsupported backend %q", cfg.Storage.Backend), nil)
	}
}

// objectName builds prefix/job/activity/digest.ext. Job and activity come
// from ctx and fall back to "adhoc" and "artifact". Every segment is
// sanitized so a caller-chosen job ID cannot escape the artifact root.
func objectName(ctx context.Context, prefix, localPath, contentType, digest string) string {
	jobID, ok := services.JobIDFromContext(ctx)
	if !ok {
		jobID = "adhoc"
	}
	activity, ok := services.ActivityFromContext(ctx)
	if !ok {
		activity = "artifact"
	}
	if len(digest) > 24 {
		digest = digest[:24]
	}
	name := digest + extension(localPath, contentType)
	parts := []string{textutil.SanitizeFileName(jobID), textutil.SanitizeFileName(activity), name}
	if prefix = textutil.SanitizePath(prefix); prefix != "" {
		parts = append([]string{prefix}, parts...)
	}
	return path.Join(parts...)
}

func extension(localPath, contentType string) string {
	if ext := strings.ToLower(filepath.Ext(localPath)); ext != "" {
		return ext
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
