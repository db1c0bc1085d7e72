package safeswipe

import (
	"context"
	"errors"
	"image"
	"math"
	"sync/atomic"
	"testing"
	"time"
)

// mockBackend is a test double for the Backend interface.
type mockBackend struct {
	entries []LabelScore
	err     error
	delay   time.Duration
	panics  bool
	calls   atomic.Int32
}

func (m *mockBackend) Name() string { return "mock" }

func (m *mockBackend) Classify(ctx context.Context, _ image.Image) ([]LabelScore, error) {
	m.calls.Add(1)
	if m.panics {
		panic("model exploded")
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.entries, m.err
}

func TestTopAIScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		entries []LabelScore
		want    float64
	}{
		{name: "no entries", entries: nil, want: 0},
		{name: "ai_generated substring", entries: []LabelScore{{"ai_generated", 0.91}}, want: 0.91},
		{name: "human label ignored", entries: []LabelScore{{"human", 0.97}, {"artificial", 0.03}}, want: 0.03},
		{name: "max not sum", entries: []LabelScore{{"fake", 0.4}, {"synthetic", 0.5}, {"generated", 0.3}}, want: 0.5},
		{name: "case insensitive", entries: []LabelScore{{"FAKE", 0.7}}, want: 0.7},
		{name: "render and cgi", entries: []LabelScore{{"3D Render", 0.2}, {"CGI", 0.6}}, want: 0.6},
		{name: "clamped above one", entries: []LabelScore{{"ai", 1.7}}, want: 1},
		{name: "clamped below zero", entries: []LabelScore{{"ai", -0.2}}, want: 0},
		{name: "NaN ignored", entries: []LabelScore{{"ai", math.NaN()}, {"fake", 0.2}}, want: 0.2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := TopAIScore(tc.entries, DefaultKeywords)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("TopAIScore() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsAILabel_CustomKeywords(t *testing.T) {
	t.Parallel()

	if IsAILabel("artificial", []string{"deepfake"}) {
		t.Error("artificial should not match custom keyword set")
	}
	if !IsAILabel("Deepfake-v2", []string{"deepfake"}) {
		t.Error("Deepfake-v2 should match deepfake")
	}
	if IsAILabel("anything", []string{""}) {
		t.Error("empty keyword must not match every label")
	}
}

func TestClassifyImage_Available(t *testing.T) {
	t.Parallel()

	mb := &mockBackend{entries: []LabelScore{{"ai_generated", 0.91}, {"real", 0.09}}}
	cfg := &Config{Backend: mb}

	got := cfg.ClassifyImage(context.Background(), solidImage(16, 16))
	if !got.Available {
		t.Fatalf("ClassifyImage().Available = false, reason %q", got.Reason)
	}
	if math.Abs(got.Probability-0.91) > 1e-9 {
		t.Errorf("ClassifyImage().Probability = %v, want 0.91", got.Probability)
	}
	if mb.calls.Load() != 1 {
		t.Errorf("backend called %d times, want 1", mb.calls.Load())
	}
}

func TestClassifyImage_NoMatchingLabelIsZero(t *testing.T) {
	t.Parallel()

	cfg := &Config{Backend: &mockBackend{entries: []LabelScore{{"human", 0.99}}}}
	got := cfg.ClassifyImage(context.Background(), solidImage(8, 8))
	if !got.Available || got.Probability != 0 {
		t.Errorf("ClassifyImage() = %+v, want available with probability 0", got)
	}
}

func TestClassifyImage_Unavailable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		backend Backend
		timeout time.Duration
		want    Reason
	}{
		{name: "no backend", backend: nil, want: ReasonNotConfigured},
		{
			name:    "typed unauthorized",
			backend: &mockBackend{err: &BackendError{Reason: ReasonUnauthorized, Err: errors.New("401")}},
			want:    ReasonUnauthorized,
		},
		{name: "untyped error is transport", backend: &mockBackend{err: errors.New("boom")}, want: ReasonTransport},
		{name: "timeout", backend: &mockBackend{delay: time.Second}, timeout: 20 * time.Millisecond, want: ReasonTimeout},
		{name: "panic", backend: &mockBackend{panics: true}, want: ReasonPanic},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := &Config{Backend: tc.backend, Timeout: tc.timeout}
			got := cfg.ClassifyImage(context.Background(), solidImage(8, 8))
			if got.Available {
				t.Fatalf("ClassifyImage().Available = true, want false")
			}
			if got.Reason != tc.want {
				t.Errorf("ClassifyImage().Reason = %q, want %q", got.Reason, tc.want)
			}
			if got.Probability != 0 {
				t.Errorf("ClassifyImage().Probability = %v, want 0", got.Probability)
			}
		})
	}
}

func TestClassifyImage_NoRetry(t *testing.T) {
	t.Parallel()

	mb := &mockBackend{err: &BackendError{Reason: ReasonStatus, Err: errors.New("503")}}
	cfg := &Config{Backend: mb}
	cfg.ClassifyImage(context.Background(), solidImage(8, 8))
	if mb.calls.Load() != 1 {
		t.Errorf("backend called %d times after failure, want exactly 1", mb.calls.Load())
	}
}

func TestClassifyImage_BackendSeesCanonicalRGB(t *testing.T) {
	t.Parallel()

	var seen image.Image
	cfg := &Config{Backend: BackendFunc(func(_ context.Context, img image.Image) ([]LabelScore, error) {
		seen = img
		return nil, nil
	})}

	src := image.NewNRGBA(image.Rect(5, 5, 15, 15)) // transparent, offset origin
	cfg.ClassifyImage(context.Background(), src)

	rgb, ok := seen.(*image.RGBA)
	if !ok {
		t.Fatalf("backend received %T, want *image.RGBA", seen)
	}
	if rgb.Bounds().Min != (image.Point{}) || !rgb.Opaque() {
		t.Errorf("backend image bounds %v opaque %v, want origin-anchored opaque image", rgb.Bounds(), rgb.Opaque())
	}
}
