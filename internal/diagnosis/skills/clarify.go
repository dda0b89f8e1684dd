package skills

import (
	"context"
	"time"

	"github.com/diagx/converge/internal/diagnosis/types"
)

// ClarifySkill is a low-score fallback that keeps the conversation
// moving when no specialized skill fires: it asks for the basic facts
// every investigation needs.
type ClarifySkill struct{}

// NewClarifySkill creates the skill.
func NewClarifySkill() *ClarifySkill {
	return &ClarifySkill{}
}

// baselineRequests are the facts asked for on an empty case.
var baselineRequests = []string{
	"Describe what is failing, since when, and what changed around that time",
	"Share the exact error message or symptom as observed",
}

// Name implements types.Skill.
func (s *ClarifySkill) Name() string { return "clarify" }

// CanHandle always answers yes with a deliberately low score so the
// router only picks it when nothing better applies or as the second of
// two skills.
func (s *ClarifySkill) CanHandle(_ *types.CaseDiagnosticState, _ types.TurnInput) (bool, float64) {
	return true, 0.1
}

// EstimateCost implements types.Skill.
func (s *ClarifySkill) EstimateCost(_ *types.CaseDiagnosticState, _ types.TurnInput) types.CostEstimate {
	return types.CostEstimate{TimeMs: 1}
}

// Execute opens the baseline requests on a fresh case and suggests
// clarifying; on a case with open requests it just nudges toward them.
func (s *ClarifySkill) Execute(_ context.Context, state *types.CaseDiagnosticState, _ types.TurnInput, _ types.Budget) (types.SkillOutcome, error) {
	start := time.Now()
	outcome := types.SkillOutcome{
		Success:    true,
		NextAction: types.NextActionClarify,
	}

	hasActive := false
	for _, r := range state.Requests {
		if r.IsActive() {
			hasActive = true
			break
		}
	}
	if !hasActive {
		for _, desc := range baselineRequests {
			if !hasRequestFor(state, desc) {
				outcome.NewRequests = append(outcome.NewRequests, types.NewEvidenceRequest(desc))
			}
		}
		outcome.NextAction = types.NextActionGather
	}

	outcome.ActualCost = types.CostEstimate{TimeMs: time.Since(start).Milliseconds()}
	return outcome, nil
}
