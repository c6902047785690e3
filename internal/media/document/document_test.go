package document

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediaflow/internal/services"
)

func writeStub(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestToPDFPassesThroughPDFInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input")
	if err := os.WriteFile(input, []byte("%PDF-1.7\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ToPDF(context.Background(), filepath.Join(dir, "never-called"), input, filepath.Join(dir, "out"))
	if err != nil {
		t.Fatalf("ToPDF: %v", err)
	}
	if got != input {
		t.Fatalf("ToPDF = %s, want input unchanged", got)
	}
}

func TestToPDFConvertsWithSoffice(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.docx")
	if err := os.WriteFile(input, []byte("PK\x03\x04"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	soffice := writeStub(t, "soffice", `out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "--outdir" ]; then out="$2"; fi
  last="$1"
  shift
done
name=$(basename "$last")
echo "%PDF-1.4" > "$out/${name%.*}.pdf"
`)
	out := filepath.Join(dir, "out")
	got, err := ToPDF(context.Background(), soffice, input, out)
	if err != nil {
		t.Fatalf("ToPDF: %v", err)
	}
	if got != filepath.Join(out, "input.pdf") {
		t.Fatalf("ToPDF = %s", got)
	}
}

func TestToPDFWithoutOutputIsValidationError(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.bin")
	if err := os.WriteFile(input, []byte{0, 1, 2}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	soffice := writeStub(t, "soffice", "exit 0\n")
	_, err := ToPDF(context.Background(), soffice, input, filepath.Join(dir, "out"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRenderPagesOrdersAllPages(t *testing.T) {
	pdftoppm := writeStub(t, "pdftoppm", `for last; do :; done
for n in 10 02 01; do echo png > "$last-$n.png"; done
`)
	out := filepath.Join(t.TempDir(), "pages")
	paths, err := RenderPages(context.Background(), pdftoppm, "doc.pdf", out, nil)
	if err != nil {
		t.Fatalf("RenderPages: %v", err)
	}
	want := []string{"page-01.png", "page-02.png", "page-10.png"}
	for i, name := range want {
		if filepath.Base(paths[i]) != name {
			t.Fatalf("paths = %v, want %v", paths, want)
		}
	}
}

func TestRenderPagesSelectedPages(t *testing.T) {
	log := filepath.Join(t.TempDir(), "calls")
	pdftoppm := writeStub(t, "pdftoppm", `echo "$@" >> "`+log+`"
for last; do :; done
echo png > "$last.png"
`)
	out := filepath.Join(t.TempDir(), "pages")
	paths, err := RenderPages(context.Background(), pdftoppm, "doc.pdf", out, []int{3, 1})
	if err != nil {
		t.Fatalf("RenderPages: %v", err)
	}
	if filepath.Base(paths[0]) != "page-3.png" || filepath.Base(paths[1]) != "page-1.png" {
		t.Fatalf("paths = %v", paths)
	}
	calls, err := os.ReadFile(log)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(calls), "-f 3 -l 3 -singlefile") {
		t.Fatalf("unexpected invocation: %s", calls)
	}
}

func TestRenderPagesOutOfRange(t *testing.T) {
	pdftoppm := writeStub(t, "pdftoppm", "echo 'Wrong page range given: the first page (9) can not be after the last page (2).' >&2\nexit 99\n")
	_, err := RenderPages(context.Background(), pdftoppm, "doc.pdf", t.TempDir(), []int{9})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
