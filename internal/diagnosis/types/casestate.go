package types

import (
	"sync"

	"github.com/google/uuid"
)

// CaseDiagnosticState is the aggregate root for one troubleshooting case.
//
// All mutation goes through the lifecycle manager and the orchestrator;
// turn processing for a given case is strictly sequential. The embedded
// mutex serializes turns: the orchestrator holds it for the duration of
// ProcessTurn. Multiple cases are independent and may run concurrently.
type CaseDiagnosticState struct {
	// CaseID identifies the case.
	CaseID string `json:"case_id"`

	// Requests is the ordered list of evidence requests. Requests are
	// never deleted, only transitioned to a terminal status.
	Requests []*EvidenceRequest `json:"requests"`

	// Evidence is the append-only evidence log.
	Evidence []EvidenceProvided `json:"evidence"`

	// Turn is the number of turns processed so far.
	Turn int `json:"turn"`

	// ConfidenceHistory holds per-turn confidence scores, oldest first.
	// Used by banding hysteresis and the loop guard. Capped by the
	// orchestrator's retention policy; at least the last 3 are kept.
	ConfidenceHistory []float64 `json:"confidence_history"`

	// TurnRecords holds the recent turn records, oldest first.
	// At least the last 3 are kept.
	TurnRecords []TurnRecord `json:"turn_records"`

	// LoopDebounce is the loop guard's debounce counter. It persists
	// across turns so a single non-loop turn does not erase accumulated
	// suspicion.
	LoopDebounce int `json:"loop_debounce"`

	mu sync.Mutex
}

// NewCaseState creates an empty case with a generated id.
func NewCaseState() *CaseDiagnosticState {
	return &CaseDiagnosticState{CaseID: uuid.NewString()}
}

// Lock serializes turn processing for this case.
func (s *CaseDiagnosticState) Lock() { s.mu.Lock() }

// Unlock releases the per-case turn lock.
func (s *CaseDiagnosticState) Unlock() { s.mu.Unlock() }

// FindRequest returns the request with the given id, or nil.
func (s *CaseDiagnosticState) FindRequest(id string) *EvidenceRequest {
	for _, r := range s.Requests {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// AddRequest appends a request to the case in arrival order.
func (s *CaseDiagnosticState) AddRequest(r *EvidenceRequest) {
	s.Requests = append(s.Requests, r)
}

// TurnRecord is one entry per processed turn: the user's text, the
// resulting confidence score, and the similarity inputs the loop guard
// needs.
type TurnRecord struct {
	// Turn is the turn number.
	Turn int `json:"turn"`

	// QueryText is the user-facing text for the turn.
	QueryText string `json:"query_text"`

	// Confidence is the aggregated confidence score after the turn.
	Confidence float64 `json:"confidence"`
}

// TurnInput is the per-turn input handed to the orchestrator and router.
type TurnInput struct {
	// Text is the user's message for this turn.
	Text string `json:"text"`

	// DocumentText is optional extracted document content accompanying
	// the turn. Empty when the turn is conversation only.
	DocumentText string `json:"document_text,omitempty"`
}
