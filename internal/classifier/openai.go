package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/diagx/converge/internal/diagnosis/types"
	"github.com/diagx/converge/internal/logging"
)

// LLMConfig configures the LLM classifier. BaseURL may point at any
// OpenAI-compatible chat endpoint.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// DefaultClassifierModel is used when no model is configured.
const DefaultClassifierModel = "gpt-4o-mini"

// LLMClassifier classifies evidence with an OpenAI-compatible chat
// model prompted to emit a JSON classification.
type LLMClassifier struct {
	client *openai.Client
	model  string
	logger *logging.Logger
}

// NewLLMClassifier creates the LLM classifier.
func NewLLMClassifier(cfg LLMConfig) *LLMClassifier {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultClassifierModel
	}
	return &LLMClassifier{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		logger: logging.GetLogger("classifier"),
	}
}

const systemPrompt = `You classify a piece of troubleshooting evidence against open evidence requests.
Respond with ONLY a JSON object:
{
  "matched_request_ids": ["..."],
  "completeness_score": 0.0,
  "evidence_type": "supportive|refuting|neutral|absence",
  "user_intent": "providing_evidence|reporting_unavailable|asking_question|correcting"
}
completeness_score is in [0,1] and measures how fully the text answers the matched requests.
Only use request ids from the provided list.`

// classificationPayload mirrors the JSON the model is asked to emit.
type classificationPayload struct {
	MatchedRequestIDs []string `json:"matched_request_ids"`
	CompletenessScore float64  `json:"completeness_score"`
	EvidenceType      string   `json:"evidence_type"`
	UserIntent        string   `json:"user_intent"`
}

// Classify prompts the model with the evidence text and the active
// request descriptions and parses the JSON reply.
func (c *LLMClassifier) Classify(ctx context.Context, text string, activeRequests []*types.EvidenceRequest) (types.EvidenceClassification, error) {
	var requests strings.Builder
	for _, req := range activeRequests {
		fmt.Fprintf(&requests, "- id=%s: %s\n", req.ID, req.Description)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Open evidence requests:\n%s\nEvidence text:\n%s",
					requests.String(), text),
			},
		},
		Temperature: 0,
	})
	if err != nil {
		return types.EvidenceClassification{}, fmt.Errorf("classification request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return types.EvidenceClassification{}, fmt.Errorf("classification response has no choices")
	}

	var payload classificationPayload
	content := extractJSON(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return types.EvidenceClassification{}, fmt.Errorf("failed to parse classification JSON: %w", err)
	}

	// Discard ids the model invented.
	known := make(map[string]struct{}, len(activeRequests))
	for _, req := range activeRequests {
		known[req.ID] = struct{}{}
	}
	matched := payload.MatchedRequestIDs[:0]
	for _, id := range payload.MatchedRequestIDs {
		if _, ok := known[id]; ok {
			matched = append(matched, id)
		} else {
			c.logger.WarnWithFields("model returned unknown request id",
				logging.Field("request_id", id),
			)
		}
	}

	return types.EvidenceClassification{
		MatchedRequestIDs: matched,
		CompletenessScore: types.Clamp01(payload.CompletenessScore),
		Form:              types.EvidenceFormUserInput,
		EvidenceType:      parseEvidenceType(payload.EvidenceType),
		UserIntent:        parseUserIntent(payload.UserIntent),
	}, nil
}

// extractJSON strips markdown code fences the model may wrap around the
// JSON object.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}
	return content
}

func parseEvidenceType(s string) types.EvidenceType {
	switch types.EvidenceType(s) {
	case types.EvidenceTypeSupportive, types.EvidenceTypeRefuting,
		types.EvidenceTypeNeutral, types.EvidenceTypeAbsence:
		return types.EvidenceType(s)
	default:
		return types.EvidenceTypeNeutral
	}
}

func parseUserIntent(s string) types.UserIntent {
	switch types.UserIntent(s) {
	case types.IntentProvidingEvidence, types.IntentReportingUnavailable,
		types.IntentAskingQuestion, types.IntentCorrecting:
		return types.UserIntent(s)
	default:
		return types.IntentProvidingEvidence
	}
}
