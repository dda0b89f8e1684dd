// Package router selects which skills run for a turn under an
// epsilon-greedy exploration policy.
package router

import (
	"math/rand"
	"sort"

	"github.com/diagx/converge/internal/diagnosis/types"
	"github.com/diagx/converge/internal/logging"
)

// Defaults for the selection policy.
const (
	// DefaultEpsilon is the probability of the exploration branch.
	DefaultEpsilon = 0.05

	// DefaultMaxSkills bounds how many skills run per turn.
	DefaultMaxSkills = 2
)

// Router picks a bounded, ordered subset of applicable skills each turn.
//
// The budget parameter is passed through to selected skills' execution;
// it does not gate selection. Budget-aware filtering is a documented
// extension point, deliberately not enabled.
type Router struct {
	epsilon   float64
	maxSkills int
	rng       *rand.Rand
	logger    *logging.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithEpsilon overrides the exploration probability.
func WithEpsilon(epsilon float64) Option {
	return func(r *Router) { r.epsilon = epsilon }
}

// WithMaxSkills overrides how many skills may run per turn.
func WithMaxSkills(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.maxSkills = n
		}
	}
}

// WithRand injects the randomness source so tests can force either
// branch deterministically.
func WithRand(rng *rand.Rand) Option {
	return func(r *Router) { r.rng = rng }
}

// New creates a router with the default policy.
func New(opts ...Option) *Router {
	r := &Router{
		epsilon:   DefaultEpsilon,
		maxSkills: DefaultMaxSkills,
		logger:    logging.GetLogger("router"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// scored pairs a skill with its applicability score for sorting.
type scored struct {
	skill types.Skill
	score float64
}

// Select returns the ordered skills to run for this turn.
//
// Skills answering no to CanHandle are discarded. With probability
// epsilon the applicable skills are shuffled and the first maxSkills
// returned, ignoring score (exploration). Otherwise skills are sorted
// by score descending, ties broken by name ascending, and the top
// maxSkills returned (exploitation).
//
// The budget is part of the selection contract but only flows through
// to execution; selection never filters on it.
func (r *Router) Select(state *types.CaseDiagnosticState, input types.TurnInput, skills []types.Skill, budget types.Budget) []types.Skill {
	_ = budget
	applicable := make([]scored, 0, len(skills))
	for _, s := range skills {
		ok, score := s.CanHandle(state, input)
		if !ok {
			continue
		}
		applicable = append(applicable, scored{skill: s, score: types.Clamp01(score)})
	}
	if len(applicable) == 0 {
		return nil
	}

	if r.roll() < r.epsilon {
		r.shuffle(applicable)
		r.logger.DebugWithFields("exploration branch taken",
			logging.Field("applicable", len(applicable)),
		)
	} else {
		sort.SliceStable(applicable, func(i, j int) bool {
			if applicable[i].score != applicable[j].score {
				return applicable[i].score > applicable[j].score
			}
			return applicable[i].skill.Name() < applicable[j].skill.Name()
		})
	}

	limit := r.maxSkills
	if limit > len(applicable) {
		limit = len(applicable)
	}
	selected := make([]types.Skill, 0, limit)
	for _, s := range applicable[:limit] {
		selected = append(selected, s.skill)
	}
	return selected
}

func (r *Router) roll() float64 {
	if r.rng != nil {
		return r.rng.Float64()
	}
	return rand.Float64()
}

func (r *Router) shuffle(skills []scored) {
	swap := func(i, j int) { skills[i], skills[j] = skills[j], skills[i] }
	if r.rng != nil {
		r.rng.Shuffle(len(skills), swap)
	} else {
		rand.Shuffle(len(skills), swap)
	}
}
