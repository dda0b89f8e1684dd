// Package confidence combines per-turn feature vectors into a single
// confidence score and a hysteresis-stabilized band.
package confidence

import "github.com/diagx/converge/internal/diagnosis/types"

// Factor weights (must sum to 1.0). These are a static policy, not
// learned online in this engine.
const (
	weightRetrieval     = 0.30
	weightHypothesisTop = 0.30
	weightValidation    = 0.20
	weightPattern       = 0.10
	weightEvidenceCount = 0.10
)

// Band thresholds.
const (
	// HighThreshold promotes the case to the high band.
	HighThreshold = 0.8

	// GrayThreshold separates gray from low.
	GrayThreshold = 0.5
)

// Band is the coarse confidence classification shown to the user.
type Band string

const (
	BandHigh Band = "high"
	BandGray Band = "gray"
	BandLow  Band = "low"
)

// Score computes the weighted confidence score for a feature vector.
// Feature values cross an external-data boundary and are clamped to
// [0,1] before weighting; missing features contribute 0. The result is
// clamped to [0,1].
func Score(features types.ConfidenceFeatures) float64 {
	f := features.Clamped()
	score := f.RetrievalScore*weightRetrieval +
		f.HypothesisTop*weightHypothesisTop +
		f.ValidationScore*weightValidation +
		f.PatternBoost*weightPattern +
		f.EvidenceCountNorm*weightEvidenceCount
	return types.Clamp01(score)
}

// BandFor classifies a score into a band, stabilized against single-turn
// noise: a sub-gray score only demotes the case to low when the two most
// recent prior history entries were both below the gray threshold.
// History is ordered oldest-first and does not include the new score.
func BandFor(score float64, history []float64) Band {
	switch {
	case score >= HighThreshold:
		return BandHigh
	case score >= GrayThreshold:
		return BandGray
	}

	// Hysteresis: one noisy low reading keeps the case in gray.
	if len(history) < 2 {
		return BandGray
	}
	prev := history[len(history)-1]
	prev2 := history[len(history)-2]
	if prev < GrayThreshold && prev2 < GrayThreshold {
		return BandLow
	}
	return BandGray
}
