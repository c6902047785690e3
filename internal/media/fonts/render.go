package fonts

import (
	"image"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"mediaflow/internal/services"
)

// Specimen lines rendered by Render. The Chinese line is only drawn for
// fonts that cover it.
var (
	latinSpecimen   = []string{"AaBbCc", "0123456789"}
	chineseSpecimen = "中文字体"
)

// Render draws a specimen of the font onto a white width x height canvas.
// The size shrinks until the specimen fits with a margin.
func (f *Font) Render(width, height int, size float64) (*image.RGBA, error) {
	lines := latinSpecimen
	if f.Covers(chineseSpecimen) {
		lines = append([]string{chineseSpecimen}, lines...)
	} else if !f.Covers(lines[0]) {
		// Symbol and non-Latin fonts: show whatever the first glyphs are.
		lines = []string{f.sampleRunes(8)}
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	face, err := f.fit(lines, width, height, size)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	metrics := face.Metrics()
	lineHeight := metrics.Height
	block := lineHeight.Mul(fixed.I(len(lines)))
	y := (fixed.I(height)-block)/2 + metrics.Ascent
	drawer := &font.Drawer{Dst: img, Src: image.Black, Face: face}
	for _, line := range lines {
		advance := drawer.MeasureString(line)
		drawer.Dot = fixed.Point26_6{X: (fixed.I(width) - advance) / 2, Y: y}
		drawer.DrawString(line)
		y += lineHeight
	}
	return img, nil
}

func (f *Font) fit(lines []string, width, height int, size float64) (font.Face, error) {
	const margin = 0.9
	for range 8 {
		face, err := opentype.NewFace(f.face, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "fonts", "create face", "", err)
		}
		drawer := &font.Drawer{Face: face}
		widest := fixed.Int26_6(0)
		for _, line := range lines {
			widest = max(widest, drawer.MeasureString(line))
		}
		tall := face.Metrics().Height.Mul(fixed.I(len(lines)))
		scale := min(
			margin*float64(width)/float64(max(widest, 1).Ceil()),
			margin*float64(height)/float64(max(tall, 1).Ceil()),
		)
		if scale >= 1 {
			return face, nil
		}
		_ = face.Close()
		size *= scale
	}
	return opentype.NewFace(f.face, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
}

func (f *Font) sampleRunes(n int) string {
	var out []rune
	for r := rune(0x21); r < 0x3000 && len(out) < n; r++ {
		index, err := f.face.GlyphIndex(&f.buf, r)
		if err == nil && index != 0 {
			out = append(out, r)
		}
	}
	return string(out)
}
