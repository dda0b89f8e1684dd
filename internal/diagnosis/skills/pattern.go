// Package skills provides the engine's built-in capability units.
// They are deliberately self-contained (no network) so the engine is
// useful offline; LLM-backed skills plug in through the same interface.
package skills

import (
	"context"
	"strings"
	"time"

	"github.com/diagx/converge/internal/diagnosis/types"
)

// FailurePattern describes a known failure signature and the evidence
// that would confirm it.
type FailurePattern struct {
	// Name identifies the pattern.
	Name string

	// Markers are phrases whose presence in turn text suggests the pattern.
	Markers []string

	// Boost is the pattern_boost contribution when the pattern matches,
	// scaled by match strength.
	Boost float64

	// FollowUp is an evidence request to open when the pattern matches
	// and the case has no active requests yet mentioning it.
	FollowUp string
}

// defaultPatterns covers common infrastructure failure signatures.
var defaultPatterns = []FailurePattern{
	{
		Name:     "oom_kill",
		Markers:  []string{"oomkilled", "out of memory", "oom-killer", "exit code 137"},
		Boost:    0.9,
		FollowUp: "Share the container memory limit and recent memory usage for the affected workload",
	},
	{
		Name:     "crash_loop",
		Markers:  []string{"crashloopbackoff", "restarting", "back-off restarting"},
		Boost:    0.8,
		FollowUp: "Share the last 50 log lines from the crashing container before it restarts",
	},
	{
		Name:     "dns_failure",
		Markers:  []string{"no such host", "name resolution", "dns timeout", "servfail"},
		Boost:    0.8,
		FollowUp: "Share the output of a DNS lookup for the failing hostname from inside the affected environment",
	},
	{
		Name:     "disk_pressure",
		Markers:  []string{"no space left on device", "disk pressure", "read-only file system"},
		Boost:    0.85,
		FollowUp: "Share disk usage for the affected node or volume",
	},
	{
		Name:     "connection_refused",
		Markers:  []string{"connection refused", "connection reset", "broken pipe"},
		Boost:    0.7,
		FollowUp: "Confirm whether the target service is listening on the expected port",
	},
	{
		Name:     "certificate_expiry",
		Markers:  []string{"certificate has expired", "x509", "tls handshake"},
		Boost:    0.85,
		FollowUp: "Share the certificate expiry dates for the endpoints involved",
	},
}

// PatternSkill matches turn text against known failure signatures,
// contributing pattern_boost and opening follow-up evidence requests.
type PatternSkill struct {
	patterns []FailurePattern
}

// NewPatternSkill creates the skill with the default signature table.
func NewPatternSkill() *PatternSkill {
	return &PatternSkill{patterns: defaultPatterns}
}

// NewPatternSkillWith creates the skill with a custom signature table.
func NewPatternSkillWith(patterns []FailurePattern) *PatternSkill {
	return &PatternSkill{patterns: patterns}
}

// Name implements types.Skill.
func (s *PatternSkill) Name() string { return "pattern_match" }

// CanHandle reports a score proportional to how strongly any pattern
// matches the turn text.
func (s *PatternSkill) CanHandle(_ *types.CaseDiagnosticState, input types.TurnInput) (bool, float64) {
	_, strength := s.bestMatch(input)
	if strength == 0 {
		return false, 0
	}
	return true, strength
}

// EstimateCost implements types.Skill. Pattern matching is local and cheap.
func (s *PatternSkill) EstimateCost(_ *types.CaseDiagnosticState, _ types.TurnInput) types.CostEstimate {
	return types.CostEstimate{TimeMs: 1}
}

// Execute matches patterns and reports a pattern_boost plus follow-up
// evidence requests for matched signatures.
func (s *PatternSkill) Execute(_ context.Context, state *types.CaseDiagnosticState, input types.TurnInput, _ types.Budget) (types.SkillOutcome, error) {
	start := time.Now()

	matched, strength := s.bestMatch(input)
	outcome := types.SkillOutcome{Success: true}
	if matched == nil {
		outcome.ActualCost = types.CostEstimate{TimeMs: time.Since(start).Milliseconds()}
		return outcome, nil
	}

	outcome.Features.PatternBoost = strength
	outcome.NextAction = types.NextActionGather
	if matched.FollowUp != "" && !hasRequestFor(state, matched.FollowUp) {
		outcome.NewRequests = append(outcome.NewRequests, types.NewEvidenceRequest(matched.FollowUp))
	}
	outcome.ActualCost = types.CostEstimate{TimeMs: time.Since(start).Milliseconds()}
	return outcome, nil
}

// bestMatch returns the strongest matching pattern and its strength.
func (s *PatternSkill) bestMatch(input types.TurnInput) (*FailurePattern, float64) {
	text := strings.ToLower(input.Text + "\n" + input.DocumentText)

	var best *FailurePattern
	bestStrength := 0.0
	for i := range s.patterns {
		p := &s.patterns[i]
		hits := 0
		for _, m := range p.Markers {
			if strings.Contains(text, m) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		// One marker already names the failure; extra markers firm it up.
		strength := p.Boost
		if hits == 1 {
			strength *= 0.8
		}
		if strength > bestStrength {
			best = p
			bestStrength = strength
		}
	}
	return best, bestStrength
}

func hasRequestFor(state *types.CaseDiagnosticState, description string) bool {
	for _, r := range state.Requests {
		if r.Description == description {
			return true
		}
	}
	return false
}
