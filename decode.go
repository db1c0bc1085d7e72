package safeswipe

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrEmptyImage    = errors.New("empty image data")
	ErrImageTooLarge = errors.New("image dimensions exceed limit")
)

// DecodeImage checks the declared dimensions before decoding data, so a
// small file declaring a huge canvas is rejected without allocating it.
// maxPixels <= 0 disables the check. Returns the decoded image and the
// format name reported by the image package ("jpeg", "png", ...).
func DecodeImage(data []byte, maxPixels int) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}

	imgCfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode config: %w", err)
	}
	if imgCfg.Width <= 0 || imgCfg.Height <= 0 {
		return nil, "", fmt.Errorf("invalid dimensions %dx%d", imgCfg.Width, imgCfg.Height)
	}
	if maxPixels > 0 && imgCfg.Width*imgCfg.Height > maxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrImageTooLarge, imgCfg.Width, imgCfg.Height)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode: %w", err)
	}
	return img, format, nil
}

// ToRGB converts img to an opaque RGBA image anchored at the origin.
// The alpha channel is discarded (colour values are kept un-premultiplied),
// which is the canonical 3-channel form every backend receives.
func ToRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	rect := image.Rect(0, 0, b.Dx(), b.Dy())

	// Premultiplied and straight colour agree when every pixel is opaque.
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		dst := image.NewRGBA(rect)
		xdraw.Draw(dst, rect, img, b.Min, xdraw.Src)
		return dst
	}

	dst := image.NewNRGBA(rect)
	xdraw.Draw(dst, rect, img, b.Min, xdraw.Src)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return &image.RGBA{Pix: dst.Pix, Stride: dst.Stride, Rect: dst.Rect}
}

// canonical returns img when it already is in ToRGB form.
func canonical(img image.Image) image.Image {
	if rgb, ok := img.(*image.RGBA); ok && rgb.Rect.Min == (image.Point{}) && rgb.Opaque() {
		return rgb
	}
	return ToRGB(img)
}

// SniffMIME returns declared without parameters when it is an image type,
// otherwise the type detected from data.
func SniffMIME(declared string, data []byte) string {
	ct := declared
	// Strip MIME parameters: "image/jpeg; charset=utf-8" → "image/jpeg"
	if idx := strings.IndexByte(ct, ';'); idx >= 0 {
		ct = strings.TrimSpace(ct[:idx])
	}
	if strings.HasPrefix(ct, "image/") {
		return ct
	}
	return http.DetectContentType(data)
}
