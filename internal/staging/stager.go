package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"mediaflow/internal/activity"
	"mediaflow/internal/config"
	"mediaflow/internal/fileutil"
	"mediaflow/internal/logging"
	"mediaflow/internal/services"
)

// inputName is the base name of every staged input; the extension comes
// from the source.
const inputName = "input"

// Stager fetches job inputs. Remote sources are downloaded over HTTP(S);
// anything else is treated as a local path (optionally a file:// URL) and
// copied. Local paths must resolve under one of the allowed roots unless
// the stager was built with WithAnyLocalPath.
type Stager struct {
	client   *http.Client
	maxBytes int64
	logger   *slog.Logger
	roots    []string
	anyLocal bool
}

// Option configures a Stager.
type Option func(*Stager)

// WithHTTPClient overrides the download client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Stager) {
		if client != nil {
			s.client = client
		}
	}
}

// WithMaxBytes caps download size. Zero disables the cap.
func WithMaxBytes(limit int64) Option {
	return func(s *Stager) { s.maxBytes = limit }
}

// WithLocalRoots replaces the directories local sources may be read from.
func WithLocalRoots(roots []string) Option {
	return func(s *Stager) { s.roots = roots }
}

// WithAnyLocalPath lifts the local root restriction. Only in-process callers
// that already run as the submitting user should use it.
func WithAnyLocalPath() Option {
	return func(s *Stager) { s.anyLocal = true }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Stager) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a Stager from configuration.
func New(cfg *config.Config, opts ...Option) *Stager {
	s := &Stager{
		// No client timeout: the invoker's deadlines and heartbeat bound
		// downloads instead.
		client: &http.Client{},
		logger: logging.NewNop(),
	}
	if cfg != nil {
		s.maxBytes = int64(cfg.Staging.MaxDownloadMiB) << 20
		s.roots = cfg.Staging.AllowedLocalRoots
	}
	for _, opt := range opts {
		opt(s)
	}
	s.roots = resolveRoots(s.roots)
	s.logger = logging.NewComponentLogger(s.logger, "staging")
	return s
}

// Stage fetches source into dir and returns the local path. Every chunk
// read records an activity heartbeat. Network failures and 5xx/429
// responses are transient; missing files, other HTTP errors and oversized
// inputs are permanent.
func (s *Stager) Stage(ctx context.Context, dir, source string) (string, error) {
	source = strings.TrimSpace(source)
	parsed, err := url.Parse(source)
	if err == nil && (parsed.Scheme == "http" || parsed.Scheme == "https") {
		return s.download(ctx, dir, parsed)
	}
	if err == nil && parsed.Scheme == "file" {
		source = parsed.Path
	}
	ext := strings.ToLower(filepath.Ext(source))
	if !s.anyLocal {
		if source, err = s.confine(source); err != nil {
			return "", err
		}
	}
	return s.copyLocal(ctx, dir, source, ext)
}

// confine resolves symlinks in source and rejects it unless the result lies
// under an allowed root. Paths that do not resolve are checked lexically so
// a missing file outside the roots reads the same as an existing one.
func (s *Stager) confine(source string) (string, error) {
	if len(s.roots) == 0 {
		return "", services.Wrap(services.ErrValidation, "staging", "copy",
			"local paths are disabled; submit an http(s) URL or set staging.allowed_local_roots", nil)
	}
	abs, err := filepath.Abs(source)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "staging", "copy", source, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		resolved = abs
	}
	for _, root := range s.roots {
		if within(root, resolved) {
			return resolved, nil
		}
	}
	return "", services.Wrap(services.ErrValidation, "staging", "copy",
		source+" is outside staging.allowed_local_roots", nil)
}

func resolveRoots(roots []string) []string {
	resolved := make([]string, 0, len(roots))
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		if target, err := filepath.EvalSymlinks(abs); err == nil {
			abs = target
		}
		resolved = append(resolved, abs)
	}
	return resolved
}

func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func (s *Stager) download(ctx context.Context, dir string, source *url.URL) (string, error) {
	logger := logging.WithContext(ctx, s.logger)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.String(), nil)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "staging", "build request", source.Redacted(), err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", context.Cause(ctx)
		}
		return "", services.Wrap(services.ErrTransient, "staging", "download", source.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		message := fmt.Sprintf("%s returned %s", source.Redacted(), resp.Status)
		if body := strings.TrimSpace(string(snippet)); body != "" {
			message += ": " + body
		}
		marker := services.ErrExternalTool
		switch {
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			marker = services.ErrTransient
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
			marker = services.ErrNotFound
		}
		return "", services.Wrap(marker, "staging", "download", message, nil)
	}
	if s.maxBytes > 0 && resp.ContentLength > s.maxBytes {
		return "", services.Wrap(services.ErrValidation, "staging", "download",
			fmt.Sprintf("%s is %d bytes, limit is %d", source.Redacted(), resp.ContentLength, s.maxBytes), nil)
	}

	target := filepath.Join(dir, inputName+extensionFor(resp.Header.Get("Content-Type"), source.Path))
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "staging", "create input", target, err)
	}
	written, err := fileutil.Copy(ctx, out, resp.Body, s.maxBytes, func(int64) {
		activity.RecordHeartbeat(ctx)
	})
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(target)
		switch {
		case ctx.Err() != nil:
			return "", context.Cause(ctx)
		case errors.Is(err, fileutil.ErrTooLarge):
			return "", services.Wrap(services.ErrValidation, "staging", "download", source.Redacted(), err)
		default:
			return "", services.Wrap(services.ErrTransient, "staging", "download", source.Redacted(), err)
		}
	}
	if resp.ContentLength > 0 && written != resp.ContentLength {
		_ = os.Remove(target)
		return "", services.Wrap(services.ErrTransient, "staging", "download",
			fmt.Sprintf("short body: got %d of %d bytes", written, resp.ContentLength), nil)
	}

	logger.Info("input downloaded",
		logging.String(logging.FieldEventType, "input_staged"),
		logging.String("source", source.Redacted()),
		logging.Int64("bytes", written),
		logging.String("path", target),
	)
	return target, nil
}

func (s *Stager) copyLocal(ctx context.Context, dir, source, ext string) (string, error) {
	info, err := os.Stat(source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", services.Wrap(services.ErrNotFound, "staging", "copy", source, err)
		}
		return "", services.Wrap(services.ErrConfiguration, "staging", "copy", source, err)
	}
	if info.IsDir() {
		return "", services.Wrap(services.ErrValidation, "staging", "copy", source+" is a directory", nil)
	}
	if s.maxBytes > 0 && info.Size() > s.maxBytes {
		return "", services.Wrap(services.ErrValidation, "staging", "copy",
			fmt.Sprintf("%s is %d bytes, limit is %d", source, info.Size(), s.maxBytes), nil)
	}

	target := filepath.Join(dir, inputName+ext)
	written, err := fileutil.CopyFile(ctx, source, target, func(int64) {
		activity.RecordHeartbeat(ctx)
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", context.Cause(ctx)
		}
		return "", services.Wrap(services.ErrExternalTool, "staging", "copy", source, err)
	}
	logging.WithContext(ctx, s.logger).Debug("input copied",
		logging.String("source", source),
		logging.Int64("bytes", written),
	)
	return target, nil
}

// extensionFor prefers the response content type and falls back to the URL
// path. Generic binary types never decide the extension.
func extensionFor(contentType, urlPath string) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && mediaType != "application/octet-stream" {
		if ext, ok := preferredExtensions[mediaType]; ok {
			return ext
		}
		if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}
	return strings.ToLower(path.Ext(urlPath))
}

// preferredExtensions pins types whose mime table order is unhelpful.
var preferredExtensions = map[string]string{
	"image/jpeg":      ".jpg",
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"audio/mpeg":      ".mp3",
	"font/ttf":        ".ttf",
	"font/otf":        ".otf",
	"application/pdf": ".pdf",
}
