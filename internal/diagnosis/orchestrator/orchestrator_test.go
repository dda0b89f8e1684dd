package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagx/converge/internal/classifier"
	"github.com/diagx/converge/internal/diagnosis/loopguard"
	"github.com/diagx/converge/internal/diagnosis/router"
	"github.com/diagx/converge/internal/diagnosis/skill"
	"github.com/diagx/converge/internal/diagnosis/types"
)

// scriptedSkill is a configurable skill for turn tests.
type scriptedSkill struct {
	name    string
	score   float64
	outcome types.SkillOutcome
	err     error
	sleep   time.Duration
	panics  bool
}

func (s *scriptedSkill) Name() string { return s.name }

func (s *scriptedSkill) CanHandle(*types.CaseDiagnosticState, types.TurnInput) (bool, float64) {
	return true, s.score
}

func (s *scriptedSkill) EstimateCost(*types.CaseDiagnosticState, types.TurnInput) types.CostEstimate {
	return types.CostEstimate{TimeMs: 10}
}

func (s *scriptedSkill) Execute(ctx context.Context, _ *types.CaseDiagnosticState, _ types.TurnInput, _ types.Budget) (types.SkillOutcome, error) {
	if s.panics {
		panic("scripted panic")
	}
	if s.sleep > 0 {
		select {
		case <-time.After(s.sleep):
		case <-ctx.Done():
			return types.SkillOutcome{}, ctx.Err()
		}
	}
	return s.outcome, s.err
}

// matchAllClassifier matches every active request with a fixed score.
type matchAllClassifier struct {
	score  float64
	intent types.UserIntent
	err    error
}

func (c *matchAllClassifier) Classify(_ context.Context, _ string, active []*types.EvidenceRequest) (types.EvidenceClassification, error) {
	if c.err != nil {
		return types.EvidenceClassification{}, c.err
	}
	ids := make([]string, 0, len(active))
	for _, req := range active {
		ids = append(ids, req.ID)
	}
	intent := c.intent
	if intent == "" {
		intent = types.IntentProvidingEvidence
	}
	return types.EvidenceClassification{
		MatchedRequestIDs: ids,
		CompletenessScore: c.score,
		EvidenceType:      types.EvidenceTypeSupportive,
		UserIntent:        intent,
	}, nil
}

func newTestEngine(t *testing.T, cls classifier.Classifier, testSkills ...types.Skill) *Engine {
	t.Helper()
	reg := skill.NewRegistry()
	for _, s := range testSkills {
		reg.Register(s)
	}
	engine, err := New(cls, reg, loopguard.NewGuard(nil), router.New(router.WithEpsilon(0)), Options{})
	require.NoError(t, err)
	return engine
}

// TestNewValidation verifies required collaborators are enforced.
func TestNewValidation(t *testing.T) {
	_, err := New(nil, skill.NewRegistry(), nil, nil, Options{})
	assert.Error(t, err)

	_, err = New(&matchAllClassifier{}, nil, nil, nil, Options{})
	assert.Error(t, err)

	// Guard and router default when nil.
	engine, err := New(&matchAllClassifier{}, skill.NewRegistry(), nil, nil, Options{})
	require.NoError(t, err)
	assert.NotNil(t, engine)
}

// TestProcessTurnFullFlow drives one turn end to end: skill selection,
// execution, evidence application, confidence aggregation.
func TestProcessTurnFullFlow(t *testing.T) {
	opened := types.NewEvidenceRequest("share the pod restart count")
	contributing := &scriptedSkill{
		name:  "contributor",
		score: 0.9,
		outcome: types.SkillOutcome{
			Success:     true,
			Features:    types.ConfidenceFeatures{RetrievalScore: 0.6, HypothesisTop: 0.5},
			NewRequests: []*types.EvidenceRequest{opened},
			NextAction:  types.NextActionGather,
		},
	}

	engine := newTestEngine(t, &matchAllClassifier{score: 0.4}, contributing)
	state := types.NewCaseState()

	outcome, err := engine.ProcessTurn(context.Background(), state, types.TurnInput{Text: "pods keep restarting"})
	require.NoError(t, err)

	assert.Equal(t, 1, state.Turn)
	assert.Equal(t, []string{"contributor"}, outcome.SkillsRun)
	// 0.6*0.30 + 0.5*0.30
	assert.InDelta(t, 0.33, outcome.Score, 1e-9)
	assert.Equal(t, "gray", string(outcome.Band))
	assert.Equal(t, types.NextActionGather, outcome.NextAction)
	require.Len(t, state.ConfidenceHistory, 1)
	assert.InDelta(t, outcome.Score, state.ConfidenceHistory[0], 1e-9)
	require.Len(t, state.TurnRecords, 1)
	assert.Equal(t, "pods keep restarting", state.TurnRecords[0].QueryText)

	// The skill's request was opened and the user's text was logged.
	require.NotNil(t, state.FindRequest(opened.ID))
	assert.NotEmpty(t, state.Evidence)
}

// TestProcessTurnSkillFailureIsolated verifies one failing skill does
// not abort the turn or erase the other skill's contribution.
func TestProcessTurnSkillFailureIsolated(t *testing.T) {
	good := &scriptedSkill{
		name:  "good",
		score: 0.8,
		outcome: types.SkillOutcome{
			Success:  true,
			Features: types.ConfidenceFeatures{RetrievalScore: 1},
		},
	}
	bad := &scriptedSkill{name: "bad", score: 0.9, err: errors.New("backend down")}

	engine := newTestEngine(t, &matchAllClassifier{}, good, bad)
	outcome, err := engine.ProcessTurn(context.Background(), types.NewCaseState(), types.TurnInput{Text: "hi"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"good", "bad"}, outcome.SkillsRun)
	assert.InDelta(t, 0.30, outcome.Score, 1e-9)
}

// TestProcessTurnSkillPanicIsolated verifies a panicking skill degrades
// to a no-op contribution.
func TestProcessTurnSkillPanicIsolated(t *testing.T) {
	steady := &scriptedSkill{
		name:    "steady",
		score:   0.5,
		outcome: types.SkillOutcome{Success: true, Features: types.ConfidenceFeatures{ValidationScore: 1}},
	}
	unstable := &scriptedSkill{name: "unstable", score: 0.9, panics: true}

	engine := newTestEngine(t, &matchAllClassifier{}, steady, unstable)
	outcome, err := engine.ProcessTurn(context.Background(), types.NewCaseState(), types.TurnInput{Text: "hi"})
	require.NoError(t, err)

	assert.InDelta(t, 0.20, outcome.Score, 1e-9)
}

// TestProcessTurnSkillTimeout verifies a slow skill is cut off and
// contributes nothing.
func TestProcessTurnSkillTimeout(t *testing.T) {
	slow := &scriptedSkill{
		name:    "slow",
		score:   0.9,
		sleep:   200 * time.Millisecond,
		outcome: types.SkillOutcome{Success: true, Features: types.ConfidenceFeatures{RetrievalScore: 1}},
	}

	reg := skill.NewRegistry()
	reg.Register(slow)
	engine, err := New(&matchAllClassifier{}, reg, nil, router.New(router.WithEpsilon(0)), Options{
		SkillTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	outcome, err := engine.ProcessTurn(context.Background(), types.NewCaseState(), types.TurnInput{Text: "hi"})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, outcome.Score, 1e-9)
}

// TestProcessTurnNextActionPrecedence verifies the most conservative
// suggestion wins across skills.
func TestProcessTurnNextActionPrecedence(t *testing.T) {
	solver := &scriptedSkill{
		name:    "solver",
		score:   0.9,
		outcome: types.SkillOutcome{Success: true, NextAction: types.NextActionSolve},
	}
	digger := &scriptedSkill{
		name:    "digger",
		score:   0.8,
		outcome: types.SkillOutcome{Success: true, NextAction: types.NextActionInvestigate},
	}

	engine := newTestEngine(t, &matchAllClassifier{}, solver, digger)
	outcome, err := engine.ProcessTurn(context.Background(), types.NewCaseState(), types.TurnInput{Text: "hi"})
	require.NoError(t, err)

	assert.Equal(t, types.NextActionInvestigate, outcome.NextAction)
}

// TestProcessTurnFeatureMergeMax verifies overlapping skill features
// merge by per-feature maximum, not by sum.
func TestProcessTurnFeatureMergeMax(t *testing.T) {
	first := &scriptedSkill{
		name:    "first",
		score:   0.9,
		outcome: types.SkillOutcome{Success: true, Features: types.ConfidenceFeatures{RetrievalScore: 0.7}},
	}
	second := &scriptedSkill{
		name:    "second",
		score:   0.8,
		outcome: types.SkillOutcome{Success: true, Features: types.ConfidenceFeatures{RetrievalScore: 0.5}},
	}

	engine := newTestEngine(t, &matchAllClassifier{}, first, second)
	outcome, err := engine.ProcessTurn(context.Background(), types.NewCaseState(), types.TurnInput{Text: "hi"})
	require.NoError(t, err)

	// 0.7 * 0.30, not (0.7+0.5) * 0.30.
	assert.InDelta(t, 0.21, outcome.Score, 1e-9)
}

// TestProcessTurnClassifierFailure verifies classification errors
// degrade to unmatched evidence instead of failing the turn.
func TestProcessTurnClassifierFailure(t *testing.T) {
	engine := newTestEngine(t, &matchAllClassifier{err: errors.New("model unavailable")})
	state := types.NewCaseState()

	_, err := engine.ProcessTurn(context.Background(), state, types.TurnInput{Text: "some logs"})
	require.NoError(t, err)
	require.Len(t, state.Evidence, 1)
	assert.Empty(t, state.Evidence[0].AddressedRequestIDs)
}

// TestProcessTurnDocumentEvidence verifies document input produces a
// separate evidence record with the document form.
func TestProcessTurnDocumentEvidence(t *testing.T) {
	engine := newTestEngine(t, &matchAllClassifier{score: 0.5})
	state := types.NewCaseState()

	_, err := engine.ProcessTurn(context.Background(), state, types.TurnInput{
		Text:         "attached the logs",
		DocumentText: "OOMKilled: container exceeded memory limit",
	})
	require.NoError(t, err)

	require.Len(t, state.Evidence, 2)
	assert.Equal(t, types.EvidenceFormUserInput, state.Evidence[0].Form)
	assert.Equal(t, types.EvidenceFormDocument, state.Evidence[1].Form)
}

func TestProcessTurnNilState(t *testing.T) {
	engine := newTestEngine(t, &matchAllClassifier{})
	_, err := engine.ProcessTurn(context.Background(), nil, types.TurnInput{Text: "hi"})
	assert.Error(t, err)
}

// TestProcessTurnHistoryRetention verifies history and records are
// capped but always keep the recent window.
func TestProcessTurnHistoryRetention(t *testing.T) {
	engine := newTestEngine(t, &matchAllClassifier{})
	state := types.NewCaseState()

	for i := 0; i < 15; i++ {
		_, err := engine.ProcessTurn(context.Background(), state, types.TurnInput{Text: fmt.Sprintf("turn %d", i)})
		require.NoError(t, err)
	}

	assert.Equal(t, 15, state.Turn)
	assert.Len(t, state.ConfidenceHistory, historyRetention)
	assert.Len(t, state.TurnRecords, recordRetention)
	assert.Equal(t, 15, state.TurnRecords[len(state.TurnRecords)-1].Turn)
}

// TestMarkObsoleteThroughEngine verifies the engine exposes hypothesis
// retirement over the case lock.
func TestMarkObsoleteThroughEngine(t *testing.T) {
	engine := newTestEngine(t, &matchAllClassifier{})
	state := types.NewCaseState()
	state.AddRequest(types.NewHypothesisRequest("check swap usage", "hyp-mem"))

	count, err := engine.MarkObsolete(state, []string{"hyp-mem"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// TestCaseManager verifies open/get/process/close bookkeeping.
func TestCaseManager(t *testing.T) {
	engine := newTestEngine(t, &matchAllClassifier{})
	manager := NewCaseManager(engine)

	state := manager.Open()
	got, ok := manager.Get(state.CaseID)
	require.True(t, ok)
	assert.Same(t, state, got)

	outcome, err := manager.ProcessTurn(context.Background(), state.CaseID, types.TurnInput{Text: "hi"})
	require.NoError(t, err)
	assert.NotNil(t, outcome)

	manager.Close(state.CaseID)
	_, ok = manager.Get(state.CaseID)
	assert.False(t, ok)

	_, err = manager.ProcessTurn(context.Background(), state.CaseID, types.TurnInput{Text: "hi"})
	var unknown *UnknownCaseError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, state.CaseID, unknown.CaseID)
}

// TestCaseManagerAdopt verifies externally-restored cases are tracked.
func TestCaseManagerAdopt(t *testing.T) {
	engine := newTestEngine(t, &matchAllClassifier{})
	manager := NewCaseManager(engine)

	restored := types.NewCaseState()
	restored.Turn = 7
	manager.Adopt(restored)

	got, ok := manager.Get(restored.CaseID)
	require.True(t, ok)
	assert.Equal(t, 7, got.Turn)
}
