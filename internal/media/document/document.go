// Package document converts office documents to PDF with LibreOffice and
// renders PDF pages to PNG with pdftoppm.
package document

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"mediaflow/internal/activity"
	"mediaflow/internal/services"
)

// RenderDPI is the resolution pages are rasterized at.
const RenderDPI = 72

var pdfMagic = []byte("%PDF-")

// IsPDF reports whether path starts with the PDF signature.
func IsPDF(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, services.Wrap(services.ErrNotFound, "document", "open", path, err)
	}
	defer file.Close()
	header := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(file, header); err != nil {
		return false, nil
	}
	return bytes.Equal(header, pdfMagic), nil
}

// ToPDF converts input into outDir and returns the PDF path. PDF input is
// returned unchanged. Each conversion uses its own LibreOffice profile so
// concurrent conversions do not contend for the user profile lock.
func ToPDF(ctx context.Context, soffice, input, outDir string) (string, error) {
	isPDF, err := IsPDF(input)
	if err != nil {
		return "", err
	}
	if isPDF {
		return input, nil
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "document", "create output directory", outDir, err)
	}
	profile := filepath.Join(outDir, ".profile")
	args := []string{
		"-env:UserInstallation=file://" + filepath.ToSlash(profile),
		"--headless", "--norestore",
		"--convert-to", "pdf",
		"--outdir", outDir,
		input,
	}
	if err := runTool(ctx, soffice, "soffice", "convert to pdf", args...); err != nil {
		return "", err
	}
	output := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))+".pdf")
	if _, err := os.Stat(output); err != nil {
		return "", services.Wrap(services.ErrValidation, "document", "convert to pdf", "no pdf produced; the input may not be a document", err)
	}
	return output, nil
}

// RenderPages rasterizes pdf into outDir. pages are 1-based; an empty list
// renders every page. Paths are returned in page order.
func RenderPages(ctx context.Context, pdftoppm, pdf, outDir string, pages []int) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "document", "create output directory", outDir, err)
	}
	dpi := strconv.Itoa(RenderDPI)
	if len(pages) == 0 {
		prefix := filepath.Join(outDir, "page")
		if err := runTool(ctx, pdftoppm, "pdftoppm", "render pages", "-png", "-r", dpi, pdf, prefix); err != nil {
			return nil, err
		}
		return pageOutputs(outDir, "page-")
	}

	paths := make([]string, 0, len(pages))
	for _, page := range pages {
		n := strconv.Itoa(page)
		prefix := filepath.Join(outDir, "page-"+n)
		if err := runTool(ctx, pdftoppm, "pdftoppm", "render page "+n, "-png", "-r", dpi, "-f", n, "-l", n, "-singlefile", pdf, prefix); err != nil {
			return nil, err
		}
		activity.RecordHeartbeat(ctx)
		paths = append(paths, prefix+".png")
	}
	return paths, nil
}

// pageOutputs lists <prefix><n>.png files ordered by n. pdftoppm zero-pads n
// to the width of the page count.
func pageOutputs(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "document", "list pages", dir, err)
	}
	type page struct {
		n    int
		path string
	}
	var found []page
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || filepath.Ext(name) != ".png" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".png"))
		if err != nil {
			continue
		}
		found = append(found, page{n: n, path: filepath.Join(dir, name)})
	}
	if len(found) == 0 {
		return nil, services.Wrap(services.ErrValidation, "document", "render pages", "document has no pages", nil)
	}
	slices.SortFunc(found, func(a, b page) int { return a.n - b.n })
	paths := make([]string, len(found))
	for i, p := range found {
		paths[i] = p.path
	}
	return paths, nil
}

func runTool(ctx context.Context, binary, fallback, operation string, args ...string) error {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = fallback
	}
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) || errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrConfiguration, fallback, operation, binary+" not available", err)
		}
		detail := strings.TrimSpace(output.String())
		if strings.Contains(detail, "Wrong page range") {
			return services.Wrap(services.ErrValidation, fallback, operation, detail, err)
		}
		return services.Wrap(services.ErrExternalTool, fallback, operation, detail, err)
	}
	return nil
}
