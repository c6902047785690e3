package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"mediaflow/internal/services"
)

// Size bounds a thumbnail. A nil *Size keeps the original dimensions.
type Size struct {
	Width  int
	Height int
}

// Decode reads a natively supported image.
func Decode(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "imaging", "open", path, err)
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), errUnsupported)
		}
		return nil, services.Wrap(services.ErrValidation, "imaging", "decode", filepath.Base(path), err)
	}
	return img, nil
}

var errUnsupported = errors.New("unsupported image format")

// Load decodes path, rasterizing it with ImageMagick into scratchDir when
// the format is not supported natively.
func Load(ctx context.Context, magick, path, scratchDir string) (image.Image, error) {
	img, err := Decode(path)
	if err == nil || !errors.Is(err, errUnsupported) {
		return img, err
	}
	converted := filepath.Join(scratchDir, "rasterized.png")
	if err := Rasterize(ctx, magick, path, converted); err != nil {
		return nil, err
	}
	return Decode(converted)
}

// Rasterize flattens the first frame or layer of src into a PNG at dst.
func Rasterize(ctx context.Context, magick, src, dst string) error {
	magick = strings.TrimSpace(magick)
	if magick == "" {
		magick = "magick"
	}
	cmd := exec.CommandContext(ctx, magick, src+"[0]", "-auto-orient", "-background", "white", "-flatten", "png:"+dst) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) || errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrConfiguration, "imaging", "rasterize", "imagemagick not available", err)
		}
		return services.Wrap(services.ErrValidation, "imaging", "rasterize", strings.TrimSpace(stderr.String()), err)
	}
	return nil
}

// Fit returns the largest dimensions with src's aspect ratio that fit
// within bound. Images are never enlarged.
func Fit(src image.Rectangle, bound Size) (int, int) {
	w, h := src.Dx(), src.Dy()
	if w <= 0 || h <= 0 {
		return w, h
	}
	if w <= bound.Width && h <= bound.Height {
		return w, h
	}
	scaleW := float64(bound.Width) / float64(w)
	scaleH := float64(bound.Height) / float64(h)
	scale := min(scaleW, scaleH)
	nw := max(1, int(float64(w)*scale+0.5))
	nh := max(1, int(float64(h)*scale+0.5))
	return min(nw, bound.Width), min(nh, bound.Height)
}

// Thumbnail scales img to fit within bound. A nil bound returns an RGBA copy
// at the original size.
func Thumbnail(img image.Image, bound *Size) *image.RGBA {
	src := img.Bounds()
	w, h := src.Dx(), src.Dy()
	if bound != nil {
		w, h = Fit(src, *bound)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// Flatten transparency onto white so PNG output matches an RGB render.
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if w == src.Dx() && h == src.Dy() {
		draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Over)
		return dst
	}
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, src, xdraw.Over, nil)
	return dst
}

// WritePNG encodes img to path.
func WritePNG(path string, img image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "imaging", "create", path, err)
	}
	if err := png.Encode(file, img); err != nil {
		_ = file.Close()
		return services.Wrap(services.ErrExternalTool, "imaging", "encode png", path, err)
	}
	if err := file.Close(); err != nil {
		return services.Wrap(services.ErrConfiguration, "imaging", "close", path, err)
	}
	return nil
}

// ThumbnailFile loads src, fits it within bound and writes a PNG to dst.
func ThumbnailFile(ctx context.Context, magick, src, dst string, bound *Size) error {
	img, err := Load(ctx, magick, src, filepath.Dir(dst))
	if err != nil {
		return err
	}
	return WritePNG(dst, Thumbnail(img, bound))
}
