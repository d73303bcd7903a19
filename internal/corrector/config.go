package corrector

import (
	"fmt"
	"math"

	"ingredient-corrector/pkg/options"
)

// Stage names the pipeline step that produced a correction.
type Stage string

const (
	StageExact        Stage = "exact"
	StageSimilarity   Stage = "similarity"
	StageEditDistance Stage = "edit_distance"
	StageUnchanged    Stage = "unchanged"
	StageFailed       Stage = "failed"
	StageCached       Stage = "cached"
)

// Policy decides which candidates the pipeline accepts.
type Policy struct {
	options.CorrectorOptions
}

// NewPolicy resolves opts over the defaults and validates the result.
func NewPolicy(opts ...options.Options) (Policy, error) {
	p := Policy{options.Resolve(opts...)}
	return p, p.Validate()
}

func (p Policy) Validate() error {
	t := float64(p.SimilarityThreshold)
	if math.IsNaN(t) || t < -1 || t > 1 {
		return fmt.Errorf("similarity threshold %v outside [-1, 1]", p.SimilarityThreshold)
	}
	if p.TopN < 1 {
		return fmt.Errorf("topN must be at least 1, got %d", p.TopN)
	}
	if p.ShortTokenLength < 0 {
		return fmt.Errorf("short token length must not be negative, got %d", p.ShortTokenLength)
	}
	if p.ShortMaxDistance < 0 || p.LongMaxDistance < 0 {
		return fmt.Errorf("edit distance bounds must not be negative, got %d/%d", p.ShortMaxDistance, p.LongMaxDistance)
	}
	return nil
}

// Accept applies the length-adaptive edit distance bound. tokenLen is in
// jamo units.
func (p Policy) Accept(distance, tokenLen int) bool {
	if tokenLen <= p.ShortTokenLength {
		return distance <= p.ShortMaxDistance
	}
	return distance <= p.LongMaxDistance
}

// Fingerprint describes every setting that can change a correction.
func (p Policy) Fingerprint() string {
	return fmt.Sprintf("sim=%g;top=%d;fb=%t;short=%d/%d;long=%d;nfc=%t",
		p.SimilarityThreshold, p.TopN, p.EditFallback,
		p.ShortTokenLength, p.ShortMaxDistance, p.LongMaxDistance, p.Normalize)
}

// Correction is the outcome for a single token.
type Correction struct {
	Original  string  `json:"original"`
	Corrected string  `json:"corrected"`
	Stage     Stage   `json:"stage"`
	Candidate string  `json:"candidate,omitempty"` // jamo form of the accepted or closest entry
	Score     float32 `json:"score,omitempty"`
	Distance  int     `json:"distance,omitempty"`
	Err       error   `json:"-"`
}
