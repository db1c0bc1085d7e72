package safeswipe

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// cropFace returns the largest detected face resized to a square, or img
// unchanged when no detector is configured or no face is found.
func (cfg *Config) cropFace(img image.Image) image.Image {
	if cfg.FaceDetector == nil {
		return img
	}
	region, ok := LargestRegion(cfg.FaceDetector.DetectFaces(img), img.Bounds())
	if !ok {
		return img
	}
	return CropSquare(img, region, cfg.faceCropSize())
}

// LargestRegion clips rects to bounds and returns the one with the largest
// area. Ties keep the earliest rectangle.
func LargestRegion(rects []image.Rectangle, bounds image.Rectangle) (image.Rectangle, bool) {
	var best image.Rectangle
	bestArea := 0
	for _, r := range rects {
		r = r.Canon().Intersect(bounds)
		if area := r.Dx() * r.Dy(); area > bestArea {
			best, bestArea = r, area
		}
	}
	return best, bestArea > 0
}

// CropSquare scales the region r of img into a size×size RGBA image.
func CropSquare(img image.Image, r image.Rectangle, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, r, xdraw.Src, nil)
	return dst
}
