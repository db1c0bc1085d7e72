package safeswipe

import (
	"bytes"
	"image"
	"image/jpeg"

	"golang.org/x/text/cases"
)

const jpegQuality = 92

// EncodeJPEG encodes img for transport to a classification backend.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// fold returns the case-folded form of s for caseless comparison.
// A Caser is stateful, so each call builds its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
