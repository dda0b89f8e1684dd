package classifier

import (
	"context"
	"strings"

	"github.com/diagx/converge/internal/diagnosis/types"
)

// unavailableMarkers are phrases that indicate the user cannot obtain
// the requested evidence.
var unavailableMarkers = []string{
	"don't have access",
	"do not have access",
	"can't access",
	"cannot access",
	"not available",
	"unavailable",
	"no permission",
	"can't get",
	"cannot get",
	"can't retrieve",
}

// refutingMarkers suggest the evidence contradicts a hypothesis.
var refutingMarkers = []string{
	"no errors", "looks fine", "looks normal", "nothing in the logs",
	"did not find", "didn't find", "not the case", "rules out", "ruled out",
}

// absenceMarkers indicate expected evidence is missing.
var absenceMarkers = []string{
	"no output", "empty", "nothing returned", "missing",
}

// KeywordClassifier is a deterministic heuristic classifier. It matches
// evidence text against request descriptions by word overlap and infers
// intent and evidence type from marker phrases.
//
// It exists so the engine runs offline (scenario replay, tests) and as
// the degraded-mode fallback when no LLM classifier is configured. It
// is intentionally crude; production deployments use the LLM adapter.
type KeywordClassifier struct{}

// NewKeywordClassifier creates the heuristic classifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

// Classify matches text against active request descriptions.
func (c *KeywordClassifier) Classify(_ context.Context, text string, activeRequests []*types.EvidenceRequest) (types.EvidenceClassification, error) {
	lower := strings.ToLower(text)

	result := types.EvidenceClassification{
		Form:         types.EvidenceFormUserInput,
		EvidenceType: types.EvidenceTypeNeutral,
		UserIntent:   types.IntentProvidingEvidence,
	}

	if containsAny(lower, unavailableMarkers) {
		result.UserIntent = types.IntentReportingUnavailable
	}
	switch {
	case containsAny(lower, refutingMarkers):
		result.EvidenceType = types.EvidenceTypeRefuting
	case containsAny(lower, absenceMarkers):
		result.EvidenceType = types.EvidenceTypeAbsence
	case len(lower) > 0:
		result.EvidenceType = types.EvidenceTypeSupportive
	}

	best := 0.0
	textWords := wordSet(lower)
	for _, req := range activeRequests {
		overlap := overlapRatio(textWords, wordSet(strings.ToLower(req.Description)))
		if overlap >= minOverlap {
			result.MatchedRequestIDs = append(result.MatchedRequestIDs, req.ID)
			if overlap > best {
				best = overlap
			}
		}
	}
	result.CompletenessScore = best

	return result, nil
}

// minOverlap is the minimum description/text word overlap for a match.
const minOverlap = 0.25

// stopwords excluded from overlap computation.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"of": {}, "in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "and": {},
	"or": {}, "it": {}, "this": {}, "that": {}, "with": {}, "what": {},
	"which": {}, "do": {}, "does": {}, "did": {}, "have": {}, "has": {},
}

func wordSet(s string) map[string]struct{} {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := stopwords[w]; skip || len(w) < 2 {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

// overlapRatio is the fraction of request-description words present in
// the evidence text.
func overlapRatio(text, description map[string]struct{}) float64 {
	if len(description) == 0 {
		return 0
	}
	hits := 0
	for w := range description {
		if _, ok := text[w]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(description))
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
