package safeswipe

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Verdict is the ordinal outcome of an analysis.
type Verdict int

const (
	VerdictNot         Verdict = iota // no meaningful evidence
	VerdictPotentially                // classifier or heuristic evidence
	VerdictDefinitely                 // strong classifier evidence only
)

func (v Verdict) String() string {
	switch v {
	case VerdictDefinitely:
		return "Definitely Made with AI"
	case VerdictPotentially:
		return "Potentially Made with AI"
	default:
		return "Not Made with AI"
	}
}

// MarshalText renders the verdict label in JSON and templates.
func (v Verdict) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

// Scoring holds the weights and cut points of the verdict engine.
// Heuristic weights are points on a 0–100 scale; cut points and
// probabilities are on [0,1].
type Scoring struct {
	DuplicateWeight  int `json:"duplicate_weight"`
	ClicheWeight     int `json:"cliche_weight"` // per hit
	ClicheCap        int `json:"cliche_cap"`
	ProvenanceWeight int `json:"provenance_weight"` // per image naming a generator
	ProvenanceCap    int `json:"provenance_cap"`

	// HeuristicShare is the largest part of the combined score heuristics
	// may contribute. It must stay below TopCut.
	HeuristicShare float64 `json:"heuristic_share"`
	// HeuristicFloor forces VerdictPotentially once heuristic risk reaches it.
	HeuristicFloor int `json:"heuristic_floor"`

	MiddleCut       float64 `json:"middle_cut"`
	TopCut          float64 `json:"top_cut"`
	SignalThreshold float64 `json:"signal_threshold"` // per-image AI signal
}

// DefaultScoring returns the built-in weights and thresholds.
func DefaultScoring() Scoring {
	return Scoring{
		DuplicateWeight:  12,
		ClicheWeight:     4,
		ClicheCap:        12,
		ProvenanceWeight: 10,
		ProvenanceCap:    10,
		HeuristicShare:   0.15,
		HeuristicFloor:   20,
		MiddleCut:        0.55,
		TopCut:           0.85,
		SignalThreshold:  0.55,
	}
}

// UnmarshalJSON decodes over DefaultScoring, so a partial object overrides
// only the fields it names.
func (s *Scoring) UnmarshalJSON(data []byte) error {
	type plain Scoring
	p := plain(DefaultScoring())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = Scoring(p)
	return nil
}

// Validate rejects scoring that breaks the tier ordering or lets heuristic
// evidence alone reach VerdictDefinitely.
func (s Scoring) Validate() error {
	var errs []error
	for _, w := range []struct {
		name  string
		value int
	}{
		{"duplicate weight", s.DuplicateWeight},
		{"cliche weight", s.ClicheWeight},
		{"cliche cap", s.ClicheCap},
		{"provenance weight", s.ProvenanceWeight},
		{"provenance cap", s.ProvenanceCap},
	} {
		if w.value < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %d", w.name, w.value))
		}
	}
	if s.HeuristicFloor <= 0 {
		errs = append(errs, fmt.Errorf("heuristic floor must be positive, got %d", s.HeuristicFloor))
	}
	if !inUnit(s.MiddleCut) || s.MiddleCut == 0 {
		errs = append(errs, fmt.Errorf("middle cut must be in (0,1], got %v", s.MiddleCut))
	}
	if !inUnit(s.TopCut) || s.TopCut == 0 {
		errs = append(errs, fmt.Errorf("top cut must be in (0,1], got %v", s.TopCut))
	}
	if s.MiddleCut >= s.TopCut {
		errs = append(errs, fmt.Errorf("middle cut %v must be below top cut %v", s.MiddleCut, s.TopCut))
	}
	if !inUnit(s.HeuristicShare) || s.HeuristicShare >= s.TopCut {
		errs = append(errs, fmt.Errorf("heuristic share %v must be in [0, top cut)", s.HeuristicShare))
	}
	if !inUnit(s.SignalThreshold) {
		errs = append(errs, fmt.Errorf("signal threshold must be in [0,1], got %v", s.SignalThreshold))
	}
	return errors.Join(errs...)
}

func inUnit(v float64) bool { return !math.IsNaN(v) && v >= 0 && v <= 1 }

// Evidence is everything the verdict engine looks at.
type Evidence struct {
	TopAI          *float64 // highest available AI probability; nil = none
	Duplicates     bool
	ClicheHits     int // uncapped
	ProvenanceHits int // images whose metadata names a generator
}

// Assessment is the verdict engine output.
type Assessment struct {
	Verdict       Verdict
	Score         float64 // combined score in [0,1]
	HeuristicRisk int     // 0–100
}

// HeuristicRisk sums the capped heuristic contributions on a 0–100 scale.
func (s Scoring) HeuristicRisk(e Evidence) int {
	risk := 0
	if e.Duplicates {
		risk += s.DuplicateWeight
	}
	if e.ClicheHits > 0 {
		risk += min(s.ClicheCap, s.ClicheWeight*e.ClicheHits)
	}
	if e.ProvenanceHits > 0 {
		risk += min(s.ProvenanceCap, s.ProvenanceWeight*e.ProvenanceHits)
	}
	return min(risk, 100)
}

// Assess combines classifier and heuristic evidence into a verdict.
// Heuristics add at most HeuristicShare to the score, so without classifier
// evidence the score cannot reach TopCut; HeuristicFloor can still lift the
// verdict to VerdictPotentially.
func (s Scoring) Assess(e Evidence) Assessment {
	risk := s.HeuristicRisk(e)

	base := 0.0
	if e.TopAI != nil && !math.IsNaN(*e.TopAI) {
		base = clamp01(*e.TopAI)
	}
	score := clamp01(base + min(s.HeuristicShare, float64(risk)/100))

	verdict := VerdictNot
	switch {
	case score >= s.TopCut:
		verdict = VerdictDefinitely
	case score >= s.MiddleCut || risk >= s.HeuristicFloor:
		verdict = VerdictPotentially
	}

	return Assessment{Verdict: verdict, Score: score, HeuristicRisk: risk}
}
