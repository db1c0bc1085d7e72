package safeswipe

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// solidImage returns an opaque image filled with one colour.
func solidImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: 100, G: 149, B: 237, A: 255})
		}
	}
	return img
}

// patternImage returns one of a few visually distinct test images.
func patternImage(kind string, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			var v uint8
			switch kind {
			case "hgrad":
				v = uint8(x * 255 / (w - 1))
			case "vgrad":
				v = uint8(y * 255 / (h - 1))
			case "checker":
				if (x/(w/4)+y/(h/4))%2 == 0 {
					v = 255
				}
			}
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeImage_Formats(t *testing.T) {
	t.Parallel()

	src := patternImage("hgrad", 40, 30)
	tests := []struct {
		name       string
		data       []byte
		wantFormat string
	}{
		{name: "png", data: encodePNG(t, src), wantFormat: "png"},
		{name: "jpeg", data: encodeJPEG(t, src), wantFormat: "jpeg"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			img, format, err := DecodeImage(tc.data, DefaultMaxImagePixels)
			if err != nil {
				t.Fatalf("DecodeImage() error = %v", err)
			}
			if format != tc.wantFormat {
				t.Errorf("format = %q, want %q", format, tc.wantFormat)
			}
			if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 30 {
				t.Errorf("bounds = %v, want 40x30", img.Bounds())
			}
		})
	}
}

func TestDecodeImage_Errors(t *testing.T) {
	t.Parallel()

	if _, _, err := DecodeImage(nil, 0); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("DecodeImage(nil) error = %v, want ErrEmptyImage", err)
	}
	if _, _, err := DecodeImage([]byte("definitely not an image"), 0); err == nil {
		t.Error("DecodeImage(garbage) error = nil, want error")
	}

	big := encodePNG(t, solidImage(100, 100))
	if _, _, err := DecodeImage(big, 100*100-1); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("DecodeImage(over limit) error = %v, want ErrImageTooLarge", err)
	}
	if _, _, err := DecodeImage(big, 0); err != nil {
		t.Errorf("DecodeImage(no limit) error = %v, want nil", err)
	}
}

func TestToRGB_DropsAlpha(t *testing.T) {
	t.Parallel()

	src := image.NewNRGBA(image.Rect(10, 10, 12, 12))
	src.SetNRGBA(10, 10, color.NRGBA{R: 200, G: 100, B: 50, A: 0})
	src.SetNRGBA(11, 11, color.NRGBA{R: 10, G: 20, B: 30, A: 128})

	got := ToRGB(src)
	if got.Bounds() != image.Rect(0, 0, 2, 2) {
		t.Fatalf("bounds = %v, want origin-anchored 2x2", got.Bounds())
	}
	if !got.Opaque() {
		t.Error("ToRGB result is not opaque")
	}
	if c := got.RGBAAt(1, 1); c.R != 10 || c.G != 20 || c.B != 30 {
		t.Errorf("pixel (1,1) = %v, want colour channels kept", c)
	}
}

func TestToRGB_OpaqueSource(t *testing.T) {
	t.Parallel()

	src, _, err := DecodeImage(encodeJPEG(t, patternImage("checker", 16, 16)), 0)
	if err != nil {
		t.Fatalf("DecodeImage() error = %v", err)
	}
	if _, ok := src.(*image.YCbCr); !ok {
		t.Fatalf("decoded %T, want *image.YCbCr", src)
	}

	got := ToRGB(src)
	for y := range 16 {
		for x := range 16 {
			want := color.RGBAModel.Convert(src.At(x, y)).(color.RGBA)
			if c := got.RGBAAt(x, y); c != want {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, c, want)
			}
		}
	}
}

// pngHeader returns a PNG signature and IHDR chunk declaring w x h, which is
// all DecodeConfig reads.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 0, 17)
	ihdr = append(ihdr, "IHDR"...)
	ihdr = binary.BigEndian.AppendUint32(ihdr, w)
	ihdr = binary.BigEndian.AppendUint32(ihdr, h)
	ihdr = append(ihdr, 8, 2, 0, 0, 0) // 8-bit truecolour

	out := []byte("\x89PNG\r\n\x1a\n")
	out = binary.BigEndian.AppendUint32(out, 13)
	out = append(out, ihdr...)
	return binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(ihdr))
}

func TestDecodeImage_DefaultPixelLimit(t *testing.T) {
	t.Parallel()

	// a 24 MP canvas declared by a few dozen bytes
	_, _, err := DecodeImage(pngHeader(6000, 4000), DefaultMaxImagePixels)
	if !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("DecodeImage(6000x4000) error = %v, want ErrImageTooLarge", err)
	}

	// a 12 MP phone photo passes the dimension check and fails later on
	// the missing pixel data instead
	_, _, err = DecodeImage(pngHeader(4000, 3000), DefaultMaxImagePixels)
	if err == nil || errors.Is(err, ErrImageTooLarge) {
		t.Errorf("DecodeImage(4000x3000) error = %v, want a decode error", err)
	}
}

func TestSniffMIME(t *testing.T) {
	t.Parallel()

	pngData := encodePNG(t, solidImage(2, 2))
	tests := []struct {
		name     string
		declared string
		data     []byte
		want     string
	}{
		{name: "declared image kept", declared: "image/webp", data: pngData, want: "image/webp"},
		{name: "parameters stripped", declared: "image/jpeg; charset=utf-8", data: nil, want: "image/jpeg"},
		{name: "octet-stream sniffed", declared: "application/octet-stream", data: pngData, want: "image/png"},
		{name: "missing sniffed", declared: "", data: pngData, want: "image/png"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := SniffMIME(tc.declared, tc.data); got != tc.want {
				t.Errorf("SniffMIME(%q) = %q, want %q", tc.declared, got, tc.want)
			}
		})
	}
}
