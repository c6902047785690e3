// Package fileutil holds the copy helpers shared by staging and local
// artifact storage.
package fileutil

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrTooLarge is returned when a copy exceeds its byte limit.
var ErrTooLarge = errors.New("exceeds size limit")

const chunkSize = 256 * 1024

// Copy streams src to dst in chunks, calling progress with the running total
// after every chunk. A positive limit aborts the copy with ErrTooLarge once
// more than limit bytes were read. Copy stops between chunks when ctx ends.
func Copy(ctx context.Context, dst io.Writer, src io.Reader, limit int64, progress func(int64)) (int64, error) {
	if limit > 0 {
		// Read one byte past the limit so an exact-size input is accepted.
		src = io.LimitReader(src, limit+1)
	}
	buf := make([]byte, chunkSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, context.Cause(ctx)
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			if limit > 0 && written+int64(n) > limit {
				return written, fmt.Errorf("%w of %d bytes", ErrTooLarge, limit)
			}
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, err
			}
			written += int64(n)
			if progress != nil {
				progress(written)
			}
		}
		if errors.Is(readErr, io.EOF) {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

// CopyFile copies src to dst (mode 0o644) with progress reporting.
func CopyFile(ctx context.Context, src, dst string, progress func(int64)) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	written, err := Copy(ctx, out, in, 0, progress)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dst)
		return written, err
	}
	return written, nil
}

// CopyFileVerified copies src to dst, checks the copied size against the
// source and returns the hex SHA-256 of the content. dst is removed on any
// mismatch.
func CopyFileVerified(src, dst string) (string, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = out.Close()
	}()

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(out, hasher), in)
	if err != nil {
		_ = os.Remove(dst)
		return "", err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return "", err
	}
	if written != srcInfo.Size() {
		_ = os.Remove(dst)
		return "", fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), written)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// HashFile returns the hex SHA-256 of path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
