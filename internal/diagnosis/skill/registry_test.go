package skill

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagx/converge/internal/diagnosis/types"
)

type namedSkill struct{ name string }

func (s *namedSkill) Name() string { return s.name }

func (s *namedSkill) CanHandle(*types.CaseDiagnosticState, types.TurnInput) (bool, float64) {
	return true, 0.5
}

func (s *namedSkill) EstimateCost(*types.CaseDiagnosticState, types.TurnInput) types.CostEstimate {
	return types.CostEstimate{}
}

func (s *namedSkill) Execute(context.Context, *types.CaseDiagnosticState, types.TurnInput, types.Budget) (types.SkillOutcome, error) {
	return types.NoOpOutcome(), nil
}

// TestRegistry verifies registration, lookup, and sorted listing.
func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 0, r.Len())

	r.Register(&namedSkill{name: "zeta"})
	r.Register(&namedSkill{name: "alpha"})

	got, ok := r.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha", got.Name())

	_, ok = r.Get("missing")
	assert.False(t, ok)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name())
	assert.Equal(t, "zeta", list[1].Name())
}

// TestRegistryReplace verifies re-registering a name replaces the skill.
func TestRegistryReplace(t *testing.T) {
	r := NewRegistry()
	first := &namedSkill{name: "dup"}
	second := &namedSkill{name: "dup"}

	r.Register(first)
	r.Register(second)

	assert.Equal(t, 1, r.Len())
	got, _ := r.Get("dup")
	assert.Same(t, second, got)
}
