// Package skill provides registration and discovery for the engine's
// capability units.
package skill

import (
	"sort"
	"sync"

	"github.com/diagx/converge/internal/diagnosis/types"
	"github.com/diagx/converge/internal/logging"
)

// Registry manages skill registration and discovery. The router draws
// its candidate set from here each turn.
type Registry struct {
	skills map[string]types.Skill
	mu     sync.RWMutex
	logger *logging.Logger
}

// NewRegistry creates an empty skill registry.
func NewRegistry() *Registry {
	return &Registry{
		skills: make(map[string]types.Skill),
		logger: logging.GetLogger("skills"),
	}
}

// Register adds a skill to the registry. A skill with the same name
// replaces the previous registration.
func (r *Registry) Register(s types.Skill) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skills[s.Name()] = s
	r.logger.DebugWithFields("registered skill", logging.Field("name", s.Name()))
}

// Get returns a skill by name.
func (r *Registry) Get(name string) (types.Skill, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.skills[name]
	return s, ok
}

// List returns all registered skills in name order. The stable order
// keeps router tie-breaking deterministic regardless of map iteration.
func (r *Registry) List() []types.Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.skills))
	for name := range r.skills {
		names = append(names, name)
	}
	sort.Strings(names)

	skills := make([]types.Skill, 0, len(names))
	for _, name := range names {
		skills = append(skills, r.skills[name])
	}
	return skills
}

// Len returns the number of registered skills.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.skills)
}
