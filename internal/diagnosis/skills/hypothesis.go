package skills

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/diagx/converge/internal/diagnosis/types"
)

// symptomAreas maps symptom vocabulary to the evidence a hypothesis in
// that area needs.
var symptomAreas = []struct {
	name    string
	markers []string
	request string
}{
	{
		name:    "latency",
		markers: []string{"slow", "latency", "timeout", "timed out", "hanging"},
		request: "Share p50/p99 latency for the affected endpoint over the incident window",
	},
	{
		name:    "errors",
		markers: []string{"error", "failing", "500", "502", "503", "exception", "panic"},
		request: "Share the error rate over time and a sample of the full error messages",
	},
	{
		name:    "deploy",
		markers: []string{"deploy", "rollout", "release", "upgraded", "updated", "changed"},
		request: "Share what changed most recently (deploys, config, infrastructure) and when",
	},
	{
		name:    "capacity",
		markers: []string{"cpu", "memory", "load", "throttl", "saturat", "queue"},
		request: "Share CPU, memory, and saturation metrics for the affected components",
	},
	{
		name:    "network",
		markers: []string{"unreachable", "refused", "dns", "packet", "firewall", "route"},
		request: "Confirm network reachability between the components involved (and any recent network changes)",
	},
}

// HypothesisProbeSkill drafts evidence requests for the symptom areas a
// turn's text touches, and reports how focused the leading direction is.
type HypothesisProbeSkill struct{}

// NewHypothesisProbeSkill creates the skill.
func NewHypothesisProbeSkill() *HypothesisProbeSkill {
	return &HypothesisProbeSkill{}
}

// Name implements types.Skill.
func (s *HypothesisProbeSkill) Name() string { return "hypothesis_probe" }

// CanHandle answers yes whenever the turn carries text; the score grows
// with the number of symptom areas mentioned, peaking when the text is
// specific (one or two areas) rather than diffuse.
func (s *HypothesisProbeSkill) CanHandle(_ *types.CaseDiagnosticState, input types.TurnInput) (bool, float64) {
	areas := matchedAreas(input)
	if len(areas) == 0 {
		return false, 0
	}
	switch len(areas) {
	case 1:
		return true, 0.7
	case 2:
		return true, 0.6
	default:
		return true, 0.4
	}
}

// EstimateCost implements types.Skill.
func (s *HypothesisProbeSkill) EstimateCost(_ *types.CaseDiagnosticState, _ types.TurnInput) types.CostEstimate {
	return types.CostEstimate{TimeMs: 1}
}

// Execute opens one evidence request per matched symptom area that the
// case is not already asking about, each owned by a fresh hypothesis id.
func (s *HypothesisProbeSkill) Execute(_ context.Context, state *types.CaseDiagnosticState, input types.TurnInput, _ types.Budget) (types.SkillOutcome, error) {
	start := time.Now()
	areas := matchedAreas(input)

	outcome := types.SkillOutcome{Success: true}
	for _, area := range areas {
		if hasRequestFor(state, area.request) {
			continue
		}
		outcome.NewRequests = append(outcome.NewRequests,
			types.NewHypothesisRequest(area.request, "hyp-"+area.name+"-"+uuid.NewString()[:8]))
	}

	// A single clear direction is a stronger leading hypothesis than a
	// scatter of possibilities.
	switch len(areas) {
	case 1:
		outcome.Features.HypothesisTop = 0.6
	case 2:
		outcome.Features.HypothesisTop = 0.45
	default:
		outcome.Features.HypothesisTop = 0.3
	}
	outcome.NextAction = types.NextActionInvestigate
	outcome.ActualCost = types.CostEstimate{TimeMs: time.Since(start).Milliseconds()}
	return outcome, nil
}

func matchedAreas(input types.TurnInput) []struct {
	name    string
	markers []string
	request string
} {
	text := strings.ToLower(input.Text + "\n" + input.DocumentText)
	var matched []struct {
		name    string
		markers []string
		request string
	}
	for _, area := range symptomAreas {
		for _, m := range area.markers {
			if strings.Contains(text, m) {
				matched = append(matched, area)
				break
			}
		}
	}
	return matched
}
