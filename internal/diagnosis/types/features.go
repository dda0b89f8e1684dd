package types

// ConfidenceFeatures holds the per-turn named scalar inputs to the
// confidence aggregator. Each value is expected in [0,1]; values cross
// an external-data boundary (skills, classifiers) and are clamped by
// the consumer, never trusted as pre-clamped. The zero value means the
// feature is missing and contributes nothing.
type ConfidenceFeatures struct {
	// RetrievalScore measures how well retrieved knowledge matched the case.
	RetrievalScore float64 `json:"retrieval_score"`

	// HypothesisTop is the strength of the leading hypothesis.
	HypothesisTop float64 `json:"hypothesis_top"`

	// ValidationScore reflects the outcome of validation checks.
	ValidationScore float64 `json:"validation_score"`

	// PatternBoost rewards matches against known failure patterns.
	PatternBoost float64 `json:"pattern_boost"`

	// EvidenceCountNorm is normalized evidence volume.
	EvidenceCountNorm float64 `json:"evidence_count_norm"`
}

// Clamped returns a copy with every feature clamped to [0,1].
func (f ConfidenceFeatures) Clamped() ConfidenceFeatures {
	return ConfidenceFeatures{
		RetrievalScore:    Clamp01(f.RetrievalScore),
		HypothesisTop:     Clamp01(f.HypothesisTop),
		ValidationScore:   Clamp01(f.ValidationScore),
		PatternBoost:      Clamp01(f.PatternBoost),
		EvidenceCountNorm: Clamp01(f.EvidenceCountNorm),
	}
}

// Merge combines two feature sets by taking the per-feature maximum.
// Confidence signal, like evidence completeness, is not additive across
// contributors.
func (f ConfidenceFeatures) Merge(other ConfidenceFeatures) ConfidenceFeatures {
	return ConfidenceFeatures{
		RetrievalScore:    max64(f.RetrievalScore, other.RetrievalScore),
		HypothesisTop:     max64(f.HypothesisTop, other.HypothesisTop),
		ValidationScore:   max64(f.ValidationScore, other.ValidationScore),
		PatternBoost:      max64(f.PatternBoost, other.PatternBoost),
		EvidenceCountNorm: max64(f.EvidenceCountNorm, other.EvidenceCountNorm),
	}
}

// Clamp01 clamps v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
