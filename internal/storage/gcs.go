package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/storage"

	"mediaflow/internal/config"
	"mediaflow/internal/fileutil"
	"mediaflow/internal/services"
)

// GCS writes artifacts to a Cloud Storage bucket and returns V4 signed GET
// URLs. Credentials come from Application Default Credentials.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewGCS creates a client for cfg.Storage.Bucket.
func NewGCS(ctx context.Context, cfg *config.Config) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "create gcs client", "", err)
	}
	return &GCS{
		client: client,
		bucket: cfg.Storage.Bucket,
		prefix: cfg.Storage.Prefix,
		ttl:    time.Duration(cfg.Storage.SignedURLTTL) * time.Second,
		now:    time.Now,
	}, nil
}

func (g *GCS) Upload(ctx context.Context, localPath, contentType string) (string, error) {
	digest, err := fileutil.HashFile(localPath)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "storage", "hash artifact", localPath, err)
	}
	name := objectName(ctx, g.prefix, localPath, contentType, digest)

	in, err := os.Open(localPath)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "storage", "open artifact", localPath, err)
	}
	defer in.Close()

	bucket := g.client.Bucket(g.bucket)
	writer := bucket.Object(name).NewWriter(ctx)
	writer.ContentType = contentType
	writer.CacheControl = "private, max-age=31536000, immutable"
	if _, err := io.Copy(writer, in); err != nil {
		_ = writer.Close()
		return "", classify("write object", name, err)
	}
	if err := writer.Close(); err != nil {
		return "", classify("finalize object", name, err)
	}

	url, err := bucket.SignedURL(name, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: g.now().Add(g.ttl),
	})
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "storage", "sign url", name, err)
	}
	return url, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

// classify marks everything retryable except a missing bucket.
func classify(operation, name string, err error) error {
	if errors.Is(err, storage.ErrBucketNotExist) {
		return services.Wrap(services.ErrConfiguration, "storage", operation, name, err)
	}
	return services.Wrap(services.ErrTransient, "storage", operation, fmt.Sprintf("gs object %s", name), err)
}
