// Package loopguard detects non-productive conversational loops:
// successive turns that are semantically near-identical while
// confidence fails to improve.
package loopguard

import (
	"context"

	"github.com/diagx/converge/internal/diagnosis/types"
	"github.com/diagx/converge/internal/embedding"
	"github.com/diagx/converge/internal/logging"
)

// Status is the loop guard's escalating stall signal.
type Status string

const (
	// StatusNone means no loop is suspected.
	StatusNone Status = "none"

	// StatusWarning means the current turn qualifies as a loop but
	// suspicion has not accumulated enough to demand intervention.
	StatusWarning Status = "warning"

	// StatusRecoveryNeeded means consecutive loop turns were observed
	// and the conversation needs a recovery action.
	StatusRecoveryNeeded Status = "recovery_needed"
)

// Detection thresholds.
const (
	// SimilarityThreshold is the minimum semantic similarity between the
	// oldest and newest turn of the window to qualify as repetition.
	SimilarityThreshold = 0.85

	// SlopeThreshold is the maximum confidence slope over the window for
	// the conversation to count as flat or declining.
	SlopeThreshold = 0.02

	// windowSize is the number of recent turns examined.
	windowSize = 3

	// debounceTrigger is the counter value at which a loop escalates
	// from warning to recovery needed.
	debounceTrigger = 2
)

// Encoder is the subset of the embedding capability the guard needs.
// Both embedding.Provider and *embedding.Cache satisfy it.
type Encoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
}

// Guard watches recent turns for semantic repetition with flat or
// declining confidence. The debounce counter lives on the case state,
// so the guard itself is stateless and shared across cases.
//
// A nil encoder disables loop detection (similarity is always 0) rather
// than failing.
type Guard struct {
	encoder Encoder
	logger  *logging.Logger
}

// NewGuard creates a loop guard over the given encoder. encoder may be nil.
func NewGuard(encoder Encoder) *Guard {
	return &Guard{
		encoder: encoder,
		logger:  logging.GetLogger("loopguard"),
	}
}

// Check evaluates the case's recent turns and updates the per-case
// debounce counter.
//
// With fewer than 3 turns of history the answer is always none.
// A loop turn increments the counter and yields recovery_needed once the
// counter reaches 2, warning before that. A non-loop turn decrements the
// counter (floored at 0) and yields none: accumulated suspicion erodes
// one step at a time rather than resetting.
func (g *Guard) Check(ctx context.Context, state *types.CaseDiagnosticState) Status {
	if state == nil || len(state.TurnRecords) < windowSize {
		return StatusNone
	}

	window := state.TurnRecords[len(state.TurnRecords)-windowSize:]
	oldest := window[0]
	newest := window[windowSize-1]

	similarity := g.similarity(ctx, oldest.QueryText, newest.QueryText)
	slope := newest.Confidence - oldest.Confidence

	isLoop := similarity >= SimilarityThreshold && slope <= SlopeThreshold
	if !isLoop {
		if state.LoopDebounce > 0 {
			state.LoopDebounce--
		}
		return StatusNone
	}

	state.LoopDebounce++
	g.logger.WarnWithFields("loop-qualifying turn detected",
		logging.Field("case_id", state.CaseID),
		logging.Field("similarity", similarity),
		logging.Field("slope", slope),
		logging.Field("debounce", state.LoopDebounce),
	)

	if state.LoopDebounce >= debounceTrigger {
		return StatusRecoveryNeeded
	}
	return StatusWarning
}

// similarity computes cosine similarity between two query texts.
// An absent or failing embedding capability degrades to 0, which
// effectively disables loop detection for the turn.
func (g *Guard) similarity(ctx context.Context, a, b string) float64 {
	if g.encoder == nil || a == "" || b == "" {
		return 0
	}
	vectors, err := g.encoder.Encode(ctx, []string{a, b})
	if err != nil {
		g.logger.DebugWithFields("embedding unavailable, similarity defaults to 0",
			logging.Field("error", err.Error()),
		)
		return 0
	}
	if len(vectors) != 2 {
		return 0
	}
	return embedding.Cosine(vectors[0], vectors[1])
}
