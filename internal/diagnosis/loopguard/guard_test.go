package loopguard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/diagx/converge/internal/diagnosis/types"
)

// stubEncoder maps each text to a fixed vector so tests control the
// cosine similarity between any two turns.
type stubEncoder struct {
	vectors map[string][]float32
	err     error
}

func (s *stubEncoder) Encode(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = s.vectors[t]
	}
	return out, nil
}

// identicalEncoder returns the same vector for every text, so any pair
// has similarity 1.
var identicalEncoder = &stubEncoder{vectors: map[string][]float32{}}

func init() {
	for _, t := range []string{"again", "again 2", "again 3", "again 4", "fresh angle"} {
		identicalEncoder.vectors[t] = []float32{1, 0, 0}
	}
	identicalEncoder.vectors["fresh angle"] = []float32{0, 1, 0}
}

func caseWithTurns(records ...types.TurnRecord) *types.CaseDiagnosticState {
	state := types.NewCaseState()
	state.TurnRecords = records
	return state
}

// TestCheckTooFewTurns verifies the guard stays silent before a full
// window exists.
func TestCheckTooFewTurns(t *testing.T) {
	g := NewGuard(identicalEncoder)
	state := caseWithTurns(
		types.TurnRecord{Turn: 1, QueryText: "again", Confidence: 0.4},
		types.TurnRecord{Turn: 2, QueryText: "again 2", Confidence: 0.4},
	)

	assert.Equal(t, StatusNone, g.Check(context.Background(), state))
	assert.Equal(t, 0, state.LoopDebounce)
}

// TestCheckEscalation verifies warning on the first loop turn and
// recovery_needed on the second consecutive one.
func TestCheckEscalation(t *testing.T) {
	g := NewGuard(identicalEncoder)
	state := caseWithTurns(
		types.TurnRecord{Turn: 1, QueryText: "again", Confidence: 0.40},
		types.TurnRecord{Turn: 2, QueryText: "again 2", Confidence: 0.41},
		types.TurnRecord{Turn: 3, QueryText: "again 3", Confidence: 0.41},
	)

	assert.Equal(t, StatusWarning, g.Check(context.Background(), state))
	assert.Equal(t, 1, state.LoopDebounce)

	state.TurnRecords = append(state.TurnRecords,
		types.TurnRecord{Turn: 4, QueryText: "again 4", Confidence: 0.41})

	assert.Equal(t, StatusRecoveryNeeded, g.Check(context.Background(), state))
	assert.Equal(t, 2, state.LoopDebounce)
}

// TestCheckDecrementNotReset verifies a non-loop turn erodes suspicion
// by one step instead of clearing it.
func TestCheckDecrementNotReset(t *testing.T) {
	g := NewGuard(identicalEncoder)
	state := caseWithTurns(
		types.TurnRecord{Turn: 1, QueryText: "again", Confidence: 0.4},
		types.TurnRecord{Turn: 2, QueryText: "again 2", Confidence: 0.4},
		types.TurnRecord{Turn: 3, QueryText: "again 3", Confidence: 0.4},
	)
	state.LoopDebounce = 2

	// Newest turn is dissimilar to the oldest in the window.
	state.TurnRecords = append(state.TurnRecords,
		types.TurnRecord{Turn: 4, QueryText: "fresh angle", Confidence: 0.6})

	assert.Equal(t, StatusNone, g.Check(context.Background(), state))
	assert.Equal(t, 1, state.LoopDebounce)
}

// TestCheckDecrementFloor verifies the counter never goes below zero.
func TestCheckDecrementFloor(t *testing.T) {
	g := NewGuard(identicalEncoder)
	state := caseWithTurns(
		types.TurnRecord{Turn: 1, QueryText: "again", Confidence: 0.4},
		types.TurnRecord{Turn: 2, QueryText: "again 2", Confidence: 0.5},
		types.TurnRecord{Turn: 3, QueryText: "fresh angle", Confidence: 0.6},
	)

	assert.Equal(t, StatusNone, g.Check(context.Background(), state))
	assert.Equal(t, 0, state.LoopDebounce)
}

// TestCheckRisingConfidenceNotALoop verifies that similar turns with
// improving confidence do not qualify as a loop.
func TestCheckRisingConfidenceNotALoop(t *testing.T) {
	g := NewGuard(identicalEncoder)
	state := caseWithTurns(
		types.TurnRecord{Turn: 1, QueryText: "again", Confidence: 0.40},
		types.TurnRecord{Turn: 2, QueryText: "again 2", Confidence: 0.45},
		types.TurnRecord{Turn: 3, QueryText: "again 3", Confidence: 0.50},
	)

	assert.Equal(t, StatusNone, g.Check(context.Background(), state))
}

// TestCheckNilEncoder verifies detection degrades to none rather than
// failing when no embedding capability exists.
func TestCheckNilEncoder(t *testing.T) {
	g := NewGuard(nil)
	state := caseWithTurns(
		types.TurnRecord{Turn: 1, QueryText: "again", Confidence: 0.4},
		types.TurnRecord{Turn: 2, QueryText: "again", Confidence: 0.4},
		types.TurnRecord{Turn: 3, QueryText: "again", Confidence: 0.4},
	)

	assert.Equal(t, StatusNone, g.Check(context.Background(), state))
}

// TestCheckEncoderError verifies an embedding failure degrades to none.
func TestCheckEncoderError(t *testing.T) {
	g := NewGuard(&stubEncoder{err: errors.New("connection refused")})
	state := caseWithTurns(
		types.TurnRecord{Turn: 1, QueryText: "again", Confidence: 0.4},
		types.TurnRecord{Turn: 2, QueryText: "again 2", Confidence: 0.4},
		types.TurnRecord{Turn: 3, QueryText: "again 3", Confidence: 0.4},
	)

	assert.Equal(t, StatusNone, g.Check(context.Background(), state))
}

func TestCheckNilState(t *testing.T) {
	g := NewGuard(identicalEncoder)
	assert.Equal(t, StatusNone, g.Check(context.Background(), nil))
}
