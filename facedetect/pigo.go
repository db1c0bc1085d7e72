// Package facedetect finds faces with the pigo pixel-intensity-comparison
// cascade so the classifier can look at the face instead of the whole photo.
package facedetect

import (
	"cmp"
	"errors"
	"fmt"
	"image"
	"os"
	"slices"
	"sync"

	pigo "github.com/esimov/pigo/core"
	xdraw "golang.org/x/image/draw"
)

// Default cascade parameters, tuned for portrait photos.
const (
	DefaultMinSize     = 40
	DefaultMaxSize     = 1200
	DefaultShiftFactor = 0.1
	DefaultScaleFactor = 1.1
	DefaultIoU         = 0.2
	DefaultMinQuality  = 5.0

	minCascadeBytes = 16
)

// ErrInvalidCascade is returned for data that is not a pigo face cascade.
var ErrInvalidCascade = errors.New("invalid face cascade")

// Pigo detects faces with an unpacked pigo cascade.
// It is safe for concurrent use.
type Pigo struct {
	MinSize     int
	MaxSize     int
	ShiftFactor float64
	ScaleFactor float64
	IoU         float64 // overlap threshold for clustering detections
	MinQuality  float32 // detections below this score are dropped

	mu         sync.Mutex
	classifier *pigo.Pigo
}

// Load reads a cascade file (the "facefinder" file shipped with pigo).
func Load(path string) (*Pigo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cascade: %w", err)
	}
	return New(data)
}

// New unpacks cascade data.
func New(cascade []byte) (p *Pigo, err error) {
	if len(cascade) < minCascadeBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidCascade, len(cascade))
	}

	// Unpack indexes into the buffer without bounds checks.
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("%w: %v", ErrInvalidCascade, r)
		}
	}()

	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCascade, err)
	}

	return &Pigo{
		MinSize:     DefaultMinSize,
		MaxSize:     DefaultMaxSize,
		ShiftFactor: DefaultShiftFactor,
		ScaleFactor: DefaultScaleFactor,
		IoU:         DefaultIoU,
		MinQuality:  DefaultMinQuality,
		classifier:  classifier,
	}, nil
}

// DetectFaces returns face rectangles in img's coordinate space, best first.
func (p *Pigo) DetectFaces(img image.Image) []image.Rectangle {
	if p == nil || p.classifier == nil || img == nil {
		return nil
	}

	b := img.Bounds()
	if b.Empty() {
		return nil
	}
	src := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(src, src.Bounds(), img, b.Min, xdraw.Src)

	params := pigo.CascadeParams{
		MinSize:     p.MinSize,
		MaxSize:     min(p.MaxSize, max(b.Dx(), b.Dy())),
		ShiftFactor: p.ShiftFactor,
		ScaleFactor: p.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(src),
			Rows:   b.Dy(),
			Cols:   b.Dx(),
			Dim:    b.Dx(),
		},
	}

	p.mu.Lock()
	dets := p.classifier.RunCascade(params, 0)
	dets = p.classifier.ClusterDetections(dets, p.IoU)
	p.mu.Unlock()

	return Rects(dets, p.MinQuality, b.Min)
}

// Rects converts detections of at least minQuality into rectangles offset
// by origin, ordered by descending quality.
func Rects(dets []pigo.Detection, minQuality float32, origin image.Point) []image.Rectangle {
	kept := make([]pigo.Detection, 0, len(dets))
	for _, d := range dets {
		if d.Q >= minQuality && d.Scale > 0 {
			kept = append(kept, d)
		}
	}
	slices.SortStableFunc(kept, func(a, b pigo.Detection) int {
		return cmp.Compare(b.Q, a.Q)
	})

	rects := make([]image.Rectangle, len(kept))
	for i, d := range kept {
		half := d.Scale / 2
		rects[i] = image.Rect(d.Col-half, d.Row-half, d.Col+half, d.Row+half).Add(origin)
	}
	return rects
}
