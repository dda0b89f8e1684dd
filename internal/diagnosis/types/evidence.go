package types

// EvidenceForm distinguishes how a piece of evidence was supplied.
type EvidenceForm string

const (
	// EvidenceFormUserInput is pasted text, logs, or command output
	// provided directly in the conversation.
	EvidenceFormUserInput EvidenceForm = "user_input"

	// EvidenceFormDocument is evidence extracted from an attached document.
	EvidenceFormDocument EvidenceForm = "document"
)

// EvidenceType categorizes how evidence relates to the hypotheses under
// investigation.
type EvidenceType string

const (
	EvidenceTypeSupportive EvidenceType = "supportive"
	EvidenceTypeRefuting   EvidenceType = "refuting"
	EvidenceTypeNeutral    EvidenceType = "neutral"

	// EvidenceTypeAbsence records that expected evidence is missing,
	// which is itself diagnostic signal.
	EvidenceTypeAbsence EvidenceType = "absence"
)

// UserIntent is the classified intent behind a piece of evidence.
type UserIntent string

const (
	// IntentProvidingEvidence is the default: the user is answering a question.
	IntentProvidingEvidence UserIntent = "providing_evidence"

	// IntentReportingUnavailable means the user cannot obtain the
	// requested evidence. Matched requests transition to blocked.
	IntentReportingUnavailable UserIntent = "reporting_unavailable"

	// IntentAskingQuestion means the user is asking rather than answering.
	IntentAskingQuestion UserIntent = "asking_question"

	// IntentCorrecting means the user is correcting earlier information.
	IntentCorrecting UserIntent = "correcting"
)

// EvidenceProvided is an immutable record of one piece of evidence
// supplied in one turn. The case log is append-only.
type EvidenceProvided struct {
	// Turn is the turn number in which the evidence arrived.
	Turn int `json:"turn"`

	// Form distinguishes user input from document extraction.
	Form EvidenceForm `json:"form"`

	// Content is the raw evidence text (or a reference to it).
	Content string `json:"content"`

	// AddressedRequestIDs lists the evidence requests this item addresses.
	AddressedRequestIDs []string `json:"addressed_request_ids,omitempty"`

	// Completeness is the classifier's [0,1] score for this item.
	Completeness float64 `json:"completeness"`

	// Type categorizes the evidence relative to open hypotheses.
	Type EvidenceType `json:"type"`

	// Intent is the classified user intent behind the evidence.
	Intent UserIntent `json:"intent"`

	// Analysis holds lazily-populated downstream analysis, keyed by
	// analyzer name. Nil until an analyzer runs.
	Analysis map[string]string `json:"analysis,omitempty"`
}

// EvidenceClassification is the opaque classifier output consumed by the
// lifecycle manager. The engine never inspects how it was produced.
type EvidenceClassification struct {
	// MatchedRequestIDs lists evidence requests the classifier judged
	// this text to address. Unknown ids are logged and skipped.
	MatchedRequestIDs []string `json:"matched_request_ids"`

	// CompletenessScore is the classifier's [0,1] score for how fully
	// the text answers the matched requests.
	CompletenessScore float64 `json:"completeness_score"`

	// Form distinguishes user input from document extraction.
	Form EvidenceForm `json:"form"`

	// EvidenceType categorizes the evidence.
	EvidenceType EvidenceType `json:"evidence_type"`

	// UserIntent is the classified intent.
	UserIntent UserIntent `json:"user_intent"`
}
