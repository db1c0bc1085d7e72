package safeswipe

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"strings"
)

// DefaultKeywords mark a classifier label as "AI-generated" when any of them
// appears in the lower-cased label.
var DefaultKeywords = []string{"ai", "fake", "generated", "synthetic", "art", "render", "cgi"}

// LabelScore is one entry of a classification backend response.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Reason explains why a classification is unavailable.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonNotConfigured Reason = "not_configured"
	ReasonTimeout       Reason = "timeout"
	ReasonTransport     Reason = "transport"
	ReasonStatus        Reason = "status"
	ReasonUnauthorized  Reason = "unauthorized"
	ReasonParse         Reason = "parse"
	ReasonUndecodable   Reason = "undecodable"
	ReasonPanic         Reason = "panic"
)

// ClassificationResult is either a probability in [0,1] or "unavailable".
// Unavailable means "no evidence", which is not the same as probability 0.
type ClassificationResult struct {
	Probability float64 `json:"probability"`
	Available   bool    `json:"available"`
	Reason      Reason  `json:"reason,omitempty"`
}

// Unavailable returns a result carrying no evidence.
func Unavailable(reason Reason) ClassificationResult {
	return ClassificationResult{Reason: reason}
}

// BackendError is the typed failure returned by backends.
type BackendError struct {
	Reason Reason
	Err    error
}

func (e *BackendError) Error() string {
	if e.Err == nil {
		return "classifier " + string(e.Reason)
	}
	return fmt.Sprintf("classifier %s: %v", e.Reason, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// ClassifyImage asks the configured backend how likely img is AI-generated.
// It never fails: every error, timeout or panic becomes an unavailable result.
// The call is bounded by cfg.Timeout and is never retried.
func (cfg *Config) ClassifyImage(ctx context.Context, img image.Image) (res ClassificationResult) {
	if cfg.Backend == nil {
		return Unavailable(ReasonNotConfigured)
	}
	if img == nil {
		return Unavailable(ReasonUndecodable)
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Warn("safeswipe: classifier panic", "backend", cfg.Backend.Name(), "panic", r)
			res = Unavailable(ReasonPanic)
		}
	}()

	input := cfg.cropFace(canonical(img))

	ctx, cancel := context.WithTimeout(ctx, cfg.timeout())
	defer cancel()

	entries, err := cfg.Backend.Classify(ctx, input)
	if err != nil {
		reason := reasonOf(err)
		slog.Debug("safeswipe: classifier unavailable",
			"backend", cfg.Backend.Name(), "reason", reason, "error", err.Error())
		return Unavailable(reason)
	}

	p := TopAIScore(entries, cfg.keywords())
	slog.Debug("safeswipe: classifier result", "backend", cfg.Backend.Name(), "entries", len(entries), "probability", p)
	return ClassificationResult{Probability: p, Available: true}
}

// TopAIScore returns the maximum score among entries whose label contains any
// keyword. Scores are clamped to [0,1]; NaN scores are ignored.
// Multiple overlapping labels never add up.
func TopAIScore(entries []LabelScore, keywords []string) float64 {
	best := 0.0
	for _, e := range entries {
		if math.IsNaN(e.Score) || !IsAILabel(e.Label, keywords) {
			continue
		}
		best = max(best, clamp01(e.Score))
	}
	return best
}

// IsAILabel reports whether label contains any of keywords, ignoring case.
func IsAILabel(label string, keywords []string) bool {
	lower := fold(label)
	for _, kw := range keywords {
		kw = fold(kw)
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// reasonOf maps a backend error onto a Reason. Deadline errors win over
// whatever the backend wrapped them in.
func reasonOf(err error) Reason {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var be *BackendError
	if errors.As(err, &be) && be.Reason != ReasonNone {
		return be.Reason
	}
	return ReasonTransport
}
