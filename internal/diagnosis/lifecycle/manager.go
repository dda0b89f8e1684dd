// Package lifecycle owns the state of evidence requests and the
// case evidence log. All request mutation flows through the Manager.
package lifecycle

import (
	"fmt"
	"strconv"

	"github.com/diagx/converge/internal/diagnosis/types"
	"github.com/diagx/converge/internal/logging"
)

// Status thresholds derived from completeness. Blocked is never derived
// from thresholds; it is an explicit override.
const (
	// CompleteThreshold promotes a request to complete.
	CompleteThreshold = 0.8

	// PartialThreshold promotes a request to partial.
	PartialThreshold = 0.3

	// maxBlockedSnippet bounds the evidence snippet recorded when a
	// request is blocked.
	maxBlockedSnippet = 200
)

// Manager applies classification results to a case's evidence requests
// and maintains the append-only evidence log.
type Manager struct {
	logger *logging.Logger
}

// NewManager creates a lifecycle manager.
func NewManager() *Manager {
	return &Manager{logger: logging.GetLogger("lifecycle")}
}

// ApplyEvidence appends the evidence to the case log and advances every
// matched request.
//
// For each matched request: completeness becomes the maximum of its
// current value and the classification score (never a sum), the status
// is derived from the new completeness, and the turn is stamped.
// Unknown request ids are logged and skipped; they never fail the turn.
//
// A reporting-unavailable intent forces every matched request to
// blocked regardless of completeness, recording a truncated snippet of
// the evidence content and the blocking turn in metadata.
func (m *Manager) ApplyEvidence(state *types.CaseDiagnosticState, evidence types.EvidenceProvided, classification types.EvidenceClassification, currentTurn int) error {
	if state == nil {
		return fmt.Errorf("lifecycle: nil case state")
	}

	state.Evidence = append(state.Evidence, evidence)

	score := types.Clamp01(classification.CompletenessScore)
	blocked := classification.UserIntent == types.IntentReportingUnavailable

	for _, id := range classification.MatchedRequestIDs {
		req := state.FindRequest(id)
		if req == nil {
			m.logger.WarnWithFields("classification matched unknown request id",
				logging.Field("case_id", state.CaseID),
				logging.Field("request_id", id),
				logging.Field("turn", currentTurn),
			)
			continue
		}

		if score > req.Completeness {
			req.Completeness = score
		}

		switch {
		case blocked:
			req.Status = types.RequestStatusBlocked
			req.SetMeta(types.MetaBlockedReason, truncate(evidence.Content, maxBlockedSnippet))
			req.SetMeta(types.MetaBlockedAtTurn, strconv.Itoa(currentTurn))
		case req.Completeness >= CompleteThreshold:
			req.Status = types.RequestStatusComplete
		case req.Completeness >= PartialThreshold:
			req.Status = types.RequestStatusPartial
		}
		// Below the partial threshold the status stays as it was.

		req.UpdatedAtTurn = currentTurn
	}

	return nil
}

// MarkObsolete transitions every request owned by a deprecated
// hypothesis to obsolete and returns how many were transitioned.
//
// Complete requests are never retroactively obsoleted: completed
// evidence remains valid even if the hypothesis that prompted it is
// later dropped. Already-obsolete requests are left alone.
func (m *Manager) MarkObsolete(state *types.CaseDiagnosticState, hypothesisIDs []string, currentTurn int) (int, error) {
	if state == nil {
		return 0, fmt.Errorf("lifecycle: nil case state")
	}

	deprecated := make(map[string]struct{}, len(hypothesisIDs))
	for _, id := range hypothesisIDs {
		deprecated[id] = struct{}{}
	}

	count := 0
	for _, req := range state.Requests {
		if req.Status == types.RequestStatusComplete || req.Status == types.RequestStatusObsolete {
			continue
		}
		hid := req.HypothesisID()
		if hid == "" {
			continue
		}
		if _, ok := deprecated[hid]; !ok {
			continue
		}

		req.Status = types.RequestStatusObsolete
		req.UpdatedAtTurn = currentTurn
		req.SetMeta(types.MetaObsoleteReason, fmt.Sprintf("hypothesis %s deprecated", hid))
		count++
	}

	if count > 0 {
		m.logger.InfoWithFields("obsoleted evidence requests",
			logging.Field("case_id", state.CaseID),
			logging.Field("count", count),
			logging.Field("turn", currentTurn),
		)
	}

	return count, nil
}

// ActiveRequests returns the pending and partial requests in their
// original order: the set still worth asking the user about.
func (m *Manager) ActiveRequests(state *types.CaseDiagnosticState) []*types.EvidenceRequest {
	if state == nil {
		return nil
	}
	active := make([]*types.EvidenceRequest, 0, len(state.Requests))
	for _, req := range state.Requests {
		if req.IsActive() {
			active = append(active, req)
		}
	}
	return active
}

// Summary reports aggregate counts for a case.
type Summary struct {
	// StatusCounts maps each status to the number of requests in it.
	StatusCounts map[types.RequestStatus]int `json:"status_counts"`

	// EvidenceCount is the size of the evidence log.
	EvidenceCount int `json:"evidence_count"`

	// CompletionRate is complete requests over total requests,
	// 0 when the case has no requests.
	CompletionRate float64 `json:"completion_rate"`
}

// Summarize computes status counts, evidence count, and completion rate.
// It does not mutate the case; calling it twice without intervening
// mutation returns identical results.
func (m *Manager) Summarize(state *types.CaseDiagnosticState) Summary {
	s := Summary{StatusCounts: make(map[types.RequestStatus]int)}
	if state == nil {
		return s
	}

	for _, req := range state.Requests {
		s.StatusCounts[req.Status]++
	}
	s.EvidenceCount = len(state.Evidence)
	if len(state.Requests) > 0 {
		s.CompletionRate = float64(s.StatusCounts[types.RequestStatusComplete]) / float64(len(state.Requests))
	}
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
