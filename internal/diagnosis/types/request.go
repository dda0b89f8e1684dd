// Package types defines the core data structures for the diagnostic
// decision and evidence orchestration engine.
package types

import "github.com/google/uuid"

// RequestStatus indicates the lifecycle state of an evidence request.
type RequestStatus string

const (
	// RequestStatusPending indicates no useful evidence has arrived yet.
	RequestStatusPending RequestStatus = "pending"

	// RequestStatusPartial indicates some evidence arrived but the
	// question is not fully answered.
	RequestStatusPartial RequestStatus = "partial"

	// RequestStatusComplete indicates the question is answered.
	// Complete requests are never reopened or retroactively obsoleted.
	RequestStatusComplete RequestStatus = "complete"

	// RequestStatusBlocked indicates the user reported the evidence
	// cannot be obtained. Set only by explicit override, never derived
	// from completeness thresholds.
	RequestStatusBlocked RequestStatus = "blocked"

	// RequestStatusObsolete indicates the owning hypothesis was
	// deprecated before the request completed.
	RequestStatusObsolete RequestStatus = "obsolete"
)

// Metadata keys used on EvidenceRequest.Metadata.
const (
	// MetaHypothesisID references the hypothesis that prompted the request.
	MetaHypothesisID = "hypothesis_id"

	// MetaBlockedReason holds a truncated snippet of the evidence that
	// reported unavailability.
	MetaBlockedReason = "blocked_reason"

	// MetaBlockedAtTurn holds the turn number at which the request was blocked.
	MetaBlockedAtTurn = "blocked_at_turn"

	// MetaObsoleteReason explains why the request was obsoleted.
	MetaObsoleteReason = "obsolete_reason"
)

// EvidenceRequest is an open question the engine wants the user or the
// surrounding system to resolve.
//
// Completeness is monotonically non-decreasing for the life of the case:
// it tracks the maximum of all individual classification scores ever
// applied to this request, never their sum. Two mediocre confirmations
// must not outrank one excellent one.
type EvidenceRequest struct {
	// ID is a stable unique identifier for this request.
	ID string `json:"id"`

	// Description is the free-text question to answer.
	Description string `json:"description"`

	// Status is the current lifecycle state.
	Status RequestStatus `json:"status"`

	// Completeness is a [0,1] measure of how fully this request has
	// been answered by the best single piece of evidence seen so far.
	Completeness float64 `json:"completeness"`

	// UpdatedAtTurn is the turn number of the last mutation.
	UpdatedAtTurn int `json:"updated_at_turn"`

	// Metadata holds auxiliary references such as the owning hypothesis
	// id, blocking reason, or obsolescence reason.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewEvidenceRequest creates a pending request with a generated id.
func NewEvidenceRequest(description string) *EvidenceRequest {
	return &EvidenceRequest{
		ID:          uuid.NewString(),
		Description: description,
		Status:      RequestStatusPending,
		Metadata:    make(map[string]string),
	}
}

// NewHypothesisRequest creates a pending request owned by a hypothesis.
func NewHypothesisRequest(description, hypothesisID string) *EvidenceRequest {
	r := NewEvidenceRequest(description)
	r.Metadata[MetaHypothesisID] = hypothesisID
	return r
}

// HypothesisID returns the owning hypothesis id, if any.
func (r *EvidenceRequest) HypothesisID() string {
	if r.Metadata == nil {
		return ""
	}
	return r.Metadata[MetaHypothesisID]
}

// IsActive reports whether the request is still worth asking about.
func (r *EvidenceRequest) IsActive() bool {
	return r.Status == RequestStatusPending || r.Status == RequestStatusPartial
}

// SetMeta records a metadata entry, allocating the map if needed.
func (r *EvidenceRequest) SetMeta(key, value string) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]string)
	}
	r.Metadata[key] = value
}
