package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	sharpenSigma = 1.0

	// histogram tails clipped before stretching
	contrastClip = 0.01
	// luminance ranges narrower than this are left unstretched
	minContrastSpread = 8
)

// Enhance converts a page to grayscale, stretches its contrast and sharpens it.
func Enhance(img image.Image) *image.NRGBA {
	gray := imaging.Grayscale(img)
	return imaging.Sharpen(normalizeContrast(gray), sharpenSigma)
}

// EnhanceBytes decodes an encoded page image, enhances it and re-encodes it as PNG.
func EnhanceBytes(b []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(b), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode page image: %w", err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, Enhance(img), imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode page image: %w", err)
	}
	return buf.Bytes(), nil
}

// normalizeContrast maps the [1st, 99th] luminance percentile range onto [0, 255].
func normalizeContrast(img *image.NRGBA) *image.NRGBA {
	hist := imaging.Histogram(img)
	lo := percentile(hist, contrastClip)
	hi := percentile(hist, 1-contrastClip)
	if hi-lo < minContrastSpread {
		return img
	}
	scale := 255.0 / float64(hi-lo)
	stretch := func(v uint8) uint8 {
		x := (float64(v) - float64(lo)) * scale
		return uint8(math.Max(0, math.Min(255, math.Round(x))))
	}
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: stretch(c.R), G: stretch(c.G), B: stretch(c.B), A: c.A}
	})
}

// percentile returns the first bin at which the cumulative share reaches p.
func percentile(hist [256]float64, p float64) int {
	var acc float64
	for i, v := range hist {
		acc += v
		if acc >= p {
			return i
		}
	}
	return 255
}
