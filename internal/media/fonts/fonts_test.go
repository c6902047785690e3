package fonts

import (
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"

	"mediaflow/internal/language"
	"mediaflow/internal/services"
)

func openGoRegular(t *testing.T) *Font {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Go-Regular.ttf")
	if err := os.WriteFile(path, goregular.TTF, 0o644); err != nil {
		t.Fatalf("write font: %v", err)
	}
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return f
}

func TestMetadataReadsNameTable(t *testing.T) {
	f := openGoRegular(t)
	meta := f.Metadata(language.English)
	if meta.Family != "Go" {
		t.Fatalf("Family = %q, want Go", meta.Family)
	}
	if meta.Subfamily != "Regular" {
		t.Fatalf("Subfamily = %q, want Regular", meta.Subfamily)
	}
	if !strings.Contains(meta.FullName, "Go") {
		t.Fatalf("FullName = %q", meta.FullName)
	}
	if meta.GlyphCount <= 0 {
		t.Fatalf("GlyphCount = %d", meta.GlyphCount)
	}
	if meta.Chinese {
		t.Fatal("Go Regular should not report Chinese coverage")
	}
	if meta.Language != "English" {
		t.Fatalf("Language = %q", meta.Language)
	}
}

func TestNameFallsBackToEnglish(t *testing.T) {
	f := openGoRegular(t)
	zh, err := language.Normalize("zh-Hans")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got, want := f.Name(sfnt.NameIDFamily, zh), f.Name(sfnt.NameIDFamily, language.English); got != want || got == "" {
		t.Fatalf("Name in zh-Hans = %q, want English fallback %q", got, want)
	}
}

func TestCovers(t *testing.T) {
	f := openGoRegular(t)
	if !f.Covers("AaBb") {
		t.Fatal("expected Latin coverage")
	}
	if f.Covers("中") {
		t.Fatal("unexpected Han coverage")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("definitely not a font file"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestWindowsLanguageID(t *testing.T) {
	tests := map[string]uint16{
		"English":            0x0409,
		"Simplified Chinese": 0x0804,
		"zh-Hant":            0x0404,
		"ja":                 0x0411,
		"fr-CA":              0x040C,
	}
	for input, want := range tests {
		lang, err := language.Normalize(input)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", input, err)
		}
		if got := windowsLanguageID(lang); got != want {
			t.Errorf("windowsLanguageID(%q) = %#x, want %#x", input, got, want)
		}
	}
}

func darkPixels(t *testing.T, f *Font, w, h int, size float64) int {
	t.Helper()
	img, err := f.Render(w, h, size)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if b := img.Bounds(); b.Dx() != w || b.Dy() != h {
		t.Fatalf("canvas is %dx%d, want %dx%d", b.Dx(), b.Dy(), w, h)
	}
	dark := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if c := img.RGBAAt(x, y); c.R < 128 && c != (color.RGBA{}) {
				dark++
			}
		}
	}
	return dark
}

func TestRenderDrawsSpecimen(t *testing.T) {
	f := openGoRegular(t)
	if darkPixels(t, f, 800, 600, 200) == 0 {
		t.Fatal("expected ink on the specimen")
	}
}

func TestRenderShrinksToFit(t *testing.T) {
	f := openGoRegular(t)
	if darkPixels(t, f, 120, 40, 200) == 0 {
		t.Fatal("expected ink on a small canvas")
	}
}
