package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"mediaflow/internal/fileutil"
	"mediaflow/internal/services"
)

// Local copies artifacts under a directory and returns URLs beneath a
// public base URL.
type Local struct {
	dir     string
	baseURL string
	prefix  string
}

// NewLocal returns a Local backend rooted at dir.
func NewLocal(dir, baseURL, prefix string) *Local {
	return &Local{dir: dir, baseURL: baseURL, prefix: prefix}
}

// Upload copies localPath to its content-addressed object name and returns
// the public URL.
func (l *Local) Upload(ctx context.Context, localPath, contentType string) (string, error) {
	digest, err := fileutil.HashFile(localPath)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "storage", "hash artifact", localPath, err)
	}
	name := objectName(ctx, l.prefix, localPath, contentType, digest)
	target := filepath.Join(l.dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "storage", "create artifact directory", filepath.Dir(target), err)
	}

	tmp := target + ".part"
	copied, err := fileutil.CopyFileVerified(localPath, tmp)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "storage", "copy artifact", localPath, err)
	}
	if copied != digest {
		_ = os.Remove(tmp)
		return "", services.Wrap(services.ErrTransient, "storage", "copy artifact", fmt.Sprintf("%s changed during upload", localPath), nil)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return "", services.Wrap(services.ErrTransient, "storage", "publish artifact", target, err)
	}
	return l.baseURL + "/" + name, nil
}

func (l *Local) Close() error { return nil }
