package orchestrator

import (
	"context"
	"sync"

	"github.com/diagx/converge/internal/diagnosis/types"
)

// CaseManager tracks open cases and routes turns to the engine.
// Cases are independent: turns for different cases run concurrently,
// while each case's own lock keeps its turns sequential.
//
// Persistence is the surrounding service's concern; the manager only
// holds in-memory working state for cases currently being processed.
type CaseManager struct {
	engine *Engine

	mu    sync.RWMutex
	cases map[string]*types.CaseDiagnosticState
}

// NewCaseManager creates a case manager over the given engine.
func NewCaseManager(engine *Engine) *CaseManager {
	return &CaseManager{
		engine: engine,
		cases:  make(map[string]*types.CaseDiagnosticState),
	}
}

// Open creates a new case and returns its state.
func (m *CaseManager) Open() *types.CaseDiagnosticState {
	state := types.NewCaseState()
	m.mu.Lock()
	m.cases[state.CaseID] = state
	m.mu.Unlock()
	return state
}

// Adopt registers an externally-loaded case (e.g. restored from the
// surrounding service's store) for turn processing.
func (m *CaseManager) Adopt(state *types.CaseDiagnosticState) {
	if state == nil {
		return
	}
	m.mu.Lock()
	m.cases[state.CaseID] = state
	m.mu.Unlock()
}

// Get returns a tracked case by id.
func (m *CaseManager) Get(caseID string) (*types.CaseDiagnosticState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.cases[caseID]
	return state, ok
}

// Close forgets a case. The caller is responsible for persisting it first.
func (m *CaseManager) Close(caseID string) {
	m.mu.Lock()
	delete(m.cases, caseID)
	m.mu.Unlock()
}

// ProcessTurn processes one turn for a tracked case.
func (m *CaseManager) ProcessTurn(ctx context.Context, caseID string, input types.TurnInput) (*TurnOutcome, error) {
	state, ok := m.Get(caseID)
	if !ok {
		return nil, &UnknownCaseError{CaseID: caseID}
	}
	return m.engine.ProcessTurn(ctx, state, input)
}

// UnknownCaseError reports a turn for a case the manager does not track.
type UnknownCaseError struct {
	CaseID string
}

func (e *UnknownCaseError) Error() string {
	return "unknown case: " + e.CaseID
}
