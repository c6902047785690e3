package imaging

import (
	"fmt"
	"image"
	"slices"
)

// maxSamples caps how many pixels feed the palette.
const maxSamples = 250_000

// Swatch is one palette entry. Frequency is the share of sampled pixels the
// colour represents.
type Swatch struct {
	Color     string  `json:"color"`
	Frequency float64 `json:"frequency"`
}

type rgb [3]uint8

type box struct {
	pixels []rgb
}

// widest returns the channel with the largest value range and its bounds.
func (b box) widest() (channel int, lo, hi uint8) {
	low := [3]uint8{255, 255, 255}
	var high [3]uint8
	for _, p := range b.pixels {
		for c := range 3 {
			low[c] = min(low[c], p[c])
			high[c] = max(high[c], p[c])
		}
	}
	spread := -1
	for c := range 3 {
		if s := int(high[c]) - int(low[c]); s > spread {
			channel, spread = c, s
		}
	}
	return channel, low[channel], high[channel]
}

func (b box) mean() rgb {
	var sum [3]int
	for _, p := range b.pixels {
		for c := range 3 {
			sum[c] += int(p[c])
		}
	}
	n := len(b.pixels)
	return rgb{uint8(sum[0] / n), uint8(sum[1] / n), uint8(sum[2] / n)}
}

// Palette extracts up to count dominant colours, most frequent first. The
// box with the widest channel range is cut at the midpoint of that range
// until count boxes exist or every box is a single colour. Fully transparent
// pixels are ignored.
func Palette(img image.Image, count int) []Swatch {
	pixels := sample(img)
	if len(pixels) == 0 || count < 1 {
		return nil
	}
	boxes := []box{{pixels: pixels}}
	for len(boxes) < count {
		best, bestSpread := -1, 0
		for i, b := range boxes {
			if len(b.pixels) < 2 {
				continue
			}
			if _, lo, hi := b.widest(); int(hi)-int(lo) > bestSpread {
				best, bestSpread = i, int(hi)-int(lo)
			}
		}
		if best < 0 {
			break
		}
		target := boxes[best]
		channel, lo, hi := target.widest()
		slices.SortFunc(target.pixels, func(a, b rgb) int { return int(a[channel]) - int(b[channel]) })
		threshold := uint8((int(lo) + int(hi)) / 2)
		cut, _ := slices.BinarySearchFunc(target.pixels, threshold, func(p rgb, t uint8) int {
			if p[channel] <= t {
				return -1
			}
			return 1
		})
		boxes[best] = box{pixels: target.pixels[:cut]}
		boxes = append(boxes, box{pixels: target.pixels[cut:]})
	}

	swatches := make([]Swatch, 0, len(boxes))
	for _, b := range boxes {
		c := b.mean()
		swatches = append(swatches, Swatch{
			Color:     fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]),
			Frequency: float64(len(b.pixels)) / float64(len(pixels)),
		})
	}
	slices.SortStableFunc(swatches, func(a, b Swatch) int {
		switch {
		case a.Frequency > b.Frequency:
			return -1
		case a.Frequency < b.Frequency:
			return 1
		default:
			return 0
		}
	})
	return swatches
}

func sample(img image.Image) []rgb {
	bounds := img.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total <= 0 {
		return nil
	}
	stride := 1
	for total/(stride*stride) > maxSamples {
		stride++
	}
	pixels := make([]rgb, 0, min(total, maxSamples))
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stride {
		for x := bounds.Min.X; x < bounds.Max.X; x += stride {
			r, g, b, a := img.At(x, y).RGBA()
			if a == 0 {
				continue
			}
			// Un-premultiply so translucent pixels keep their hue.
			r, g, b = r*0xffff/a, g*0xffff/a, b*0xffff/a
			pixels = append(pixels, rgb{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)})
		}
	}
	return pixels
}
