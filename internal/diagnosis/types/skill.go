package types

import "context"

// NextAction is a skill's suggestion for what the conversation should do
// next. Actions have a conservative precedence: when multiple skills
// disagree, the orchestrator picks the most conservative suggestion, so
// "solve" only wins if no skill still wants to investigate.
type NextAction string

const (
	NextActionInvestigate NextAction = "investigate"
	NextActionGather      NextAction = "gather_evidence"
	NextActionClarify     NextAction = "clarify"
	NextActionSolve       NextAction = "solve"

	// NextActionNone means the skill has no suggestion.
	NextActionNone NextAction = ""
)

// actionPrecedence orders actions from most to least conservative.
var actionPrecedence = map[NextAction]int{
	NextActionInvestigate: 0,
	NextActionGather:      1,
	NextActionClarify:     2,
	NextActionSolve:       3,
}

// MoreConservative reports whether a takes precedence over b when
// merging skill suggestions. NextActionNone never wins.
func MoreConservative(a, b NextAction) bool {
	if a == NextActionNone {
		return false
	}
	if b == NextActionNone {
		return true
	}
	return actionPrecedence[a] < actionPrecedence[b]
}

// CostEstimate is a skill's self-reported estimate of what executing
// would cost.
type CostEstimate struct {
	// TimeMs is estimated wall-clock time in milliseconds.
	TimeMs int64 `json:"time_ms"`

	// Tokens is estimated LLM token usage.
	Tokens int `json:"tokens"`

	// Calls is the estimated number of external calls.
	Calls int `json:"calls"`
}

// Budget is the per-turn cost budget handed to skill execution.
// It informs execution; it does not currently gate router selection.
type Budget struct {
	// TimeMs is the remaining wall-clock budget in milliseconds.
	TimeMs int64 `json:"time_ms"`

	// Tokens is the remaining token budget.
	Tokens int `json:"tokens"`

	// Calls is the remaining external-call budget.
	Calls int `json:"calls"`
}

// SkillOutcome is the result of executing one skill for one turn.
type SkillOutcome struct {
	// Success indicates the skill ran to completion.
	Success bool `json:"success"`

	// Features are the confidence-feature deltas the skill contributes.
	Features ConfidenceFeatures `json:"features"`

	// Evidence holds raw evidence texts the skill produced; each is
	// classified and applied to the case by the orchestrator.
	Evidence []string `json:"evidence,omitempty"`

	// NewRequests are evidence requests the skill wants opened.
	NewRequests []*EvidenceRequest `json:"new_requests,omitempty"`

	// NextAction is the skill's suggestion for the next conversational step.
	NextAction NextAction `json:"next_action,omitempty"`

	// ActualCost is what execution actually consumed.
	ActualCost CostEstimate `json:"actual_cost"`
}

// NoOpOutcome is the contribution of a failed or timed-out skill:
// zero deltas, no evidence.
func NoOpOutcome() SkillOutcome {
	return SkillOutcome{Success: false}
}

// Skill is a pluggable capability unit (retrieval, hypothesis
// generation, pattern matching, ...) that can contribute evidence and
// confidence deltas for a turn.
//
// Skills are stateless with respect to the engine; any internal state is
// the skill's own concern. Implementations must be safe for concurrent
// use because the orchestrator executes selected skills in parallel.
type Skill interface {
	// Name returns the skill's unique identifier. Names break router
	// score ties, so they must be stable.
	Name() string

	// CanHandle reports whether the skill can contribute to this turn
	// and how well, as a [0,1] score. A false return removes the skill
	// from consideration regardless of score.
	CanHandle(state *CaseDiagnosticState, input TurnInput) (bool, float64)

	// EstimateCost returns the skill's self-reported cost estimate for
	// this turn.
	EstimateCost(state *CaseDiagnosticState, input TurnInput) CostEstimate

	// Execute runs the skill and reports its outcome. Errors and
	// timeouts are isolated by the orchestrator: the skill's
	// contribution becomes a no-op and the turn continues.
	Execute(ctx context.Context, state *CaseDiagnosticState, input TurnInput, budget Budget) (SkillOutcome, error)
}
