package testsupport

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path with size bytes of filler, making parent
// directories as needed. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	filler := bytes.NewReader(bytes.Repeat([]byte{0x42}, 32*1024))
	for remaining := max(size, 1); remaining > 0; {
		filler.Seek(0, io.SeekStart)
		n, err := io.CopyN(f, filler, min(remaining, filler.Size()))
		if err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= n
	}
}
