package safeswipe

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"
)

const (
	// DefaultMaxImages is the number of images analyzed per submission.
	DefaultMaxImages = 5
	// DefaultTimeout bounds a single classification call.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxImagePixels rejects images whose declared dimensions exceed
	// this many pixels before the full decode. Phone cameras stay below it.
	DefaultMaxImagePixels = 20_000_000
	// DefaultFaceCropSize is the side of the square face crop sent to the backend.
	DefaultFaceCropSize = 224
	// DefaultModelID is the public image-classification model used when none is configured.
	DefaultModelID = "umm-maybe/ai-art-detector"
)

// ImageInput is one uploaded image. It lives for a single request.
type ImageInput struct {
	Name     string // original filename, informational only
	Data     []byte // raw encoded bytes
	MIMEType string // declared or sniffed content type, e.g. "image/jpeg"
}

// Submission is the unit of analysis: up to MaxImages photos and a bio.
type Submission struct {
	Images []ImageInput
	Bio    string
}

// Backend abstracts an image-classification service (remote or in-process).
// Classify receives a canonical RGB image and returns the raw label/score
// pairs the service produced. Failures should be returned as *BackendError.
type Backend interface {
	Name() string
	Classify(ctx context.Context, img image.Image) ([]LabelScore, error)
}

// readiness is implemented by backends that can tell at startup that they
// will never succeed (missing credentials, empty endpoint).
type readiness interface {
	Ready() error
}

// FaceDetector returns candidate face regions in img's coordinate space.
type FaceDetector interface {
	DetectFaces(img image.Image) []image.Rectangle
}

// ClassificationEvent is reported for every classification attempt.
type ClassificationEvent struct {
	RequestID   string
	Image       int // index in the submission
	Backend     string
	Probability float64
	Available   bool
	Reason      Reason
	Elapsed     time.Duration
}

// Config holds the collaborators and tunables of an Analyzer.
// It is copied by New and never mutated afterwards.
type Config struct {
	Backend      Backend      // nil = classifier unavailable
	FaceDetector FaceDetector // optional: crop to the largest face before classifying
	ModelID      string       // informational, surfaced to the delivery layer

	// Keywords overrides DefaultKeywords. A label counts as "AI" when it
	// contains any keyword (case-insensitive).
	Keywords []string

	// Cliches overrides DefaultCliches. Order defines signal order.
	Cliches []string

	MaxImages      int           // default: DefaultMaxImages
	MaxImagePixels int           // default: DefaultMaxImagePixels
	FaceCropSize   int           // default: DefaultFaceCropSize
	Timeout        time.Duration // per classification call, default: DefaultTimeout

	// Scoring overrides DefaultScoring when non-zero.
	Scoring Scoring

	// OnClassification is an optional audit hook. It is called from the
	// classification goroutines and must be safe for concurrent use.
	OnClassification func(ClassificationEvent)
}

// defaults fills zero-value fields. Called once by New on its private copy.
func (c *Config) defaults() {
	if len(c.Keywords) == 0 {
		c.Keywords = DefaultKeywords
	}
	if len(c.Cliches) == 0 {
		c.Cliches = DefaultCliches
	}
	if c.MaxImages <= 0 {
		c.MaxImages = DefaultMaxImages
	}
	if c.MaxImagePixels <= 0 {
		c.MaxImagePixels = DefaultMaxImagePixels
	}
	if c.FaceCropSize <= 0 {
		c.FaceCropSize = DefaultFaceCropSize
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Scoring == (Scoring{}) {
		c.Scoring = DefaultScoring()
	}
	if c.ModelID == "" {
		c.ModelID = DefaultModelID
	}
}

// Validate reports every invalid setting. Zero values are valid: they mean
// "use the default".
func (c Config) Validate() error {
	var errs []error
	if c.MaxImages < 0 {
		errs = append(errs, fmt.Errorf("max images must not be negative, got %d", c.MaxImages))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	for _, kw := range c.Keywords {
		if strings.TrimSpace(kw) == "" {
			errs = append(errs, errors.New("keywords must not contain empty entries"))
			break
		}
	}
	for _, p := range c.Cliches {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, errors.New("cliches must not contain empty entries"))
			break
		}
	}
	if c.Scoring != (Scoring{}) {
		if err := c.Scoring.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func (c *Config) keywords() []string {
	if len(c.Keywords) == 0 {
		return DefaultKeywords
	}
	return c.Keywords
}

func (c *Config) faceCropSize() int {
	if c.FaceCropSize <= 0 {
		return DefaultFaceCropSize
	}
	return c.FaceCropSize
}
