package safeswipe

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Signal messages. The duplicate and cliché wording is part of the output
// contract consumed by the delivery layer.
const (
	signalAIFormat        = "AI indicator present in an image (confidence %.1f%%)."
	signalGeneratorFormat = "Image metadata names an AI generator (%s)."
	signalDuplicates      = "Multiple uploaded photos are near-duplicates."
	signalClichePrefix    = "Bio uses common cliches: "
)

// NoticeClassifierUnavailable is surfaced when no backend can ever answer.
const NoticeClassifierUnavailable = "classifier unavailable"

// ImageReport describes how one image of the submission was processed.
type ImageReport struct {
	Name           string               `json:"name,omitempty"`
	Format         string               `json:"format,omitempty"`
	Fingerprint    string               `json:"fingerprint,omitempty"`
	Classification ClassificationResult `json:"classification"`
	Generator      string               `json:"generator,omitempty"`
	Error          string               `json:"error,omitempty"`
}

// Report is the result of one analysis.
type Report struct {
	RequestID     string        `json:"request_id"`
	Verdict       Verdict       `json:"verdict"`
	Signals       []string      `json:"signals"` // never nil
	Score         float64       `json:"score"`
	HeuristicRisk int           `json:"heuristic_risk"`
	TopAI         *float64      `json:"top_ai,omitempty"`
	Cliches       []string      `json:"cliches,omitempty"` // display-capped
	Images        []ImageReport `json:"images"`
	Ignored       int           `json:"ignored,omitempty"` // images beyond MaxImages
	Notice        string        `json:"notice,omitempty"`  // process-wide degraded mode
}

// Analyzer runs the scoring pipeline. It holds no per-request state and is
// safe for concurrent use.
type Analyzer struct {
	cfg    Config
	notice string
}

// New builds an Analyzer from a private copy of cfg. Invalid settings do not
// fail construction: they are replaced by defaults and the problem is kept
// as a notice attached to every Report.
func New(cfg Config) *Analyzer {
	var notices []string

	if err := cfg.Validate(); err != nil {
		slog.Warn("safeswipe: invalid configuration, using defaults", "error", err.Error())
		notices = append(notices, "configuration invalid, defaults in use: "+strings.ReplaceAll(err.Error(), "\n", "; "))
		cfg = sanitize(cfg)
	}
	cfg.defaults()

	switch b := cfg.Backend.(type) {
	case nil:
		notices = append(notices, NoticeClassifierUnavailable)
	case readiness:
		if err := b.Ready(); err != nil {
			slog.Warn("safeswipe: classifier not ready", "backend", cfg.Backend.Name(), "error", err.Error())
			notices = append(notices, NoticeClassifierUnavailable+": "+err.Error())
		}
	}

	return &Analyzer{cfg: cfg, notice: strings.Join(notices, "; ")}
}

// sanitize drops the settings Validate rejects.
func sanitize(cfg Config) Config {
	if cfg.Scoring != (Scoring{}) && cfg.Scoring.Validate() != nil {
		cfg.Scoring = DefaultScoring()
	}
	cfg.Keywords = nonEmpty(cfg.Keywords)
	cfg.Cliches = nonEmpty(cfg.Cliches)
	return cfg
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// Notice returns the process-wide degraded-mode marker, or "".
func (a *Analyzer) Notice() string { return a.notice }

// ModelID returns the configured model identifier.
func (a *Analyzer) ModelID() string { return a.cfg.ModelID }

// MaxImages returns the per-submission image cap.
func (a *Analyzer) MaxImages() int { return a.cfg.MaxImages }

// prepared is one image after decoding.
type prepared struct {
	report ImageReport
	img    image.Image // nil when undecodable
}

// Analyze scores a submission. Per-image failures are recorded in the
// report and never abort the analysis.
//
// Signals are ordered: per-image signals in image order (AI indicator, then
// metadata generator), then the duplicate signal, then the cliché signal.
func (a *Analyzer) Analyze(ctx context.Context, sub Submission) Report {
	requestID := uuid.NewString()
	log := slog.With("request_id", requestID)

	images := sub.Images
	ignored := 0
	if len(images) > a.cfg.MaxImages {
		ignored = len(images) - a.cfg.MaxImages
		images = images[:a.cfg.MaxImages]
		log.Warn("safeswipe: images beyond cap ignored", "ignored", ignored, "max", a.cfg.MaxImages)
	}

	items := make([]prepared, len(images))
	var fingerprints []Fingerprint
	provenanceHits := 0
	for i, in := range images {
		items[i] = a.prepare(in)
		if items[i].img == nil {
			log.Debug("safeswipe: image skipped", "index", i, "error", items[i].report.Error)
			continue
		}
		if fp, err := ComputeFingerprint(items[i].img); err == nil {
			fingerprints = append(fingerprints, fp)
			items[i].report.Fingerprint = fp.String()
		} else {
			log.Debug("safeswipe: fingerprint failed", "index", i, "error", err.Error())
		}
		if items[i].report.Generator != "" {
			provenanceHits++
		}
	}

	a.classifyAll(ctx, requestID, items)

	signals := make([]string, 0, len(items)+2)
	reports := make([]ImageReport, len(items))
	var topAI *float64
	for i, it := range items {
		reports[i] = it.report
		res := it.report.Classification
		if res.Available {
			if topAI == nil || res.Probability > *topAI {
				p := res.Probability
				topAI = &p
			}
			if res.Probability >= a.cfg.Scoring.SignalThreshold {
				signals = append(signals, fmt.Sprintf(signalAIFormat, res.Probability*100))
			}
		}
		if it.report.Generator != "" {
			signals = append(signals, fmt.Sprintf(signalGeneratorFormat, it.report.Generator))
		}
	}

	duplicates := HasDuplicates(fingerprints)
	if duplicates {
		signals = append(signals, signalDuplicates)
	}

	hits := MatchCliches(sub.Bio, a.cfg.Cliches)
	shown := hits[:min(len(hits), MaxClicheDisplay)]
	if len(hits) > 0 {
		signals = append(signals, signalClichePrefix+strings.Join(shown, ", "))
	}

	assessment := a.cfg.Scoring.Assess(Evidence{
		TopAI:          topAI,
		Duplicates:     duplicates,
		ClicheHits:     len(hits),
		ProvenanceHits: provenanceHits,
	})

	log.Info("safeswipe: analysis complete",
		"images", len(items),
		"verdict", assessment.Verdict.String(),
		"score", assessment.Score,
		"heuristic_risk", assessment.HeuristicRisk,
		"signals", len(signals),
	)

	return Report{
		RequestID:     requestID,
		Verdict:       assessment.Verdict,
		Signals:       signals,
		Score:         assessment.Score,
		HeuristicRisk: assessment.HeuristicRisk,
		TopAI:         topAI,
		Cliches:       shown,
		Images:        reports,
		Ignored:       ignored,
		Notice:        a.notice,
	}
}

// prepare decodes one image and reads its provenance metadata.
func (a *Analyzer) prepare(in ImageInput) prepared {
	p := prepared{report: ImageReport{Name: in.Name}}

	img, format, err := DecodeImage(in.Data, a.cfg.MaxImagePixels)
	if err != nil {
		p.report.Error = err.Error()
		p.report.Classification = Unavailable(ReasonUndecodable)
		return p
	}

	p.img = ToRGB(img)
	p.report.Format = format
	p.report.Generator = ExtractProvenance(in.Data, format).Generator()
	return p
}

// classifyAll classifies every decoded image concurrently. Results are
// written by index, so completion order does not matter.
func (a *Analyzer) classifyAll(ctx context.Context, requestID string, items []prepared) {
	var g errgroup.Group
	g.SetLimit(a.cfg.MaxImages)

	for i := range items {
		if items[i].img == nil {
			continue
		}
		g.Go(func() error {
			start := time.Now()
			res := a.cfg.ClassifyImage(ctx, items[i].img)
			items[i].report.Classification = res

			if a.cfg.OnClassification != nil {
				a.cfg.OnClassification(ClassificationEvent{
					RequestID:   requestID,
					Image:       i,
					Backend:     backendName(a.cfg.Backend),
					Probability: res.Probability,
					Available:   res.Available,
					Reason:      res.Reason,
					Elapsed:     time.Since(start),
				})
			}
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors
}

func backendName(b Backend) string {
	if b == nil {
		return ""
	}
	return b.Name()
}
