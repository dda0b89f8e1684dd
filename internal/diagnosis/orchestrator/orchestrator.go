// Package orchestrator composes the lifecycle manager, confidence
// aggregator, loop guard, and skill router into per-turn processing.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/diagx/converge/internal/classifier"
	"github.com/diagx/converge/internal/diagnosis/confidence"
	"github.com/diagx/converge/internal/diagnosis/lifecycle"
	"github.com/diagx/converge/internal/diagnosis/loopguard"
	"github.com/diagx/converge/internal/diagnosis/router"
	"github.com/diagx/converge/internal/diagnosis/skill"
	"github.com/diagx/converge/internal/diagnosis/types"
	"github.com/diagx/converge/internal/logging"
	"github.com/diagx/converge/internal/metrics"
)

// Retention policy for per-case history. The banding hysteresis and the
// loop guard need at least the last 3 entries; keeping a few more aids
// debugging without unbounded growth.
const (
	historyRetention = 10
	recordRetention  = 10
)

// DefaultSkillTimeout bounds a single skill execution within a turn.
const DefaultSkillTimeout = 30 * time.Second

// DefaultBudget is the per-turn cost budget handed to skills.
var DefaultBudget = types.Budget{
	TimeMs: 30_000,
	Tokens: 8_000,
	Calls:  4,
}

// TurnOutcome is the engine's answer for one processed turn.
type TurnOutcome struct {
	// Band is the hysteresis-stabilized confidence band.
	Band confidence.Band `json:"band"`

	// Score is the raw aggregated confidence score for the turn.
	Score float64 `json:"score"`

	// Stall is the loop guard's status for the turn.
	Stall loopguard.Status `json:"stall"`

	// ActiveRequests are the requests still worth asking about.
	ActiveRequests []*types.EvidenceRequest `json:"active_requests"`

	// NextAction is the merged next-action suggestion across skills.
	NextAction types.NextAction `json:"next_action"`

	// SkillsRun lists the skills executed this turn.
	SkillsRun []string `json:"skills_run"`
}

// Engine processes turns for troubleshooting cases. It owns no case
// state itself; cases are handed in by the caller and serialized via
// their own lock.
type Engine struct {
	lifecycle  *lifecycle.Manager
	guard      *loopguard.Guard
	router     *router.Router
	registry   *skill.Registry
	classifier classifier.Classifier

	budget       types.Budget
	skillTimeout time.Duration

	metrics *metrics.Metrics
	tracer  trace.Tracer
	logger  *logging.Logger
}

// Options configures an Engine beyond its required collaborators.
type Options struct {
	// Budget is the per-turn cost budget. Zero value uses DefaultBudget.
	Budget types.Budget

	// SkillTimeout bounds one skill execution. Zero uses DefaultSkillTimeout.
	SkillTimeout time.Duration

	// Metrics receives engine instrumentation. Nil disables metrics.
	Metrics *metrics.Metrics

	// Tracer receives per-turn spans. Nil disables tracing.
	Tracer trace.Tracer
}

// New creates an engine. classifier and registry are required; guard may
// wrap a nil encoder (loop detection disabled).
func New(cls classifier.Classifier, registry *skill.Registry, guard *loopguard.Guard, rt *router.Router, opts Options) (*Engine, error) {
	if cls == nil {
		return nil, fmt.Errorf("orchestrator: nil classifier")
	}
	if registry == nil {
		return nil, fmt.Errorf("orchestrator: nil skill registry")
	}
	if guard == nil {
		guard = loopguard.NewGuard(nil)
	}
	if rt == nil {
		rt = router.New()
	}

	budget := opts.Budget
	if budget == (types.Budget{}) {
		budget = DefaultBudget
	}
	timeout := opts.SkillTimeout
	if timeout <= 0 {
		timeout = DefaultSkillTimeout
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("orchestrator")
	}

	return &Engine{
		lifecycle:    lifecycle.NewManager(),
		guard:        guard,
		router:       rt,
		registry:     registry,
		classifier:   cls,
		budget:       budget,
		skillTimeout: timeout,
		metrics:      opts.Metrics,
		tracer:       tracer,
		logger:       logging.GetLogger("orchestrator"),
	}, nil
}

// ProcessTurn runs one conversational turn for a case: route skills,
// execute them in parallel, apply produced evidence, aggregate
// confidence, and check for stalls.
//
// Turn processing for one case is strictly sequential; the case's lock
// is held for the whole turn. A nil state is a programming-contract
// violation and returns an error.
func (e *Engine) ProcessTurn(ctx context.Context, state *types.CaseDiagnosticState, input types.TurnInput) (*TurnOutcome, error) {
	if state == nil {
		return nil, fmt.Errorf("orchestrator: nil case state")
	}

	state.Lock()
	defer state.Unlock()

	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "engine.turn",
		trace.WithAttributes(attribute.String("case_id", state.CaseID)),
	)
	defer span.End()

	state.Turn++
	turn := state.Turn
	turnLogger := e.logger.WithFields(
		logging.Field("case_id", state.CaseID),
		logging.Field("turn", turn),
	)

	// 1. Route.
	selected := e.router.Select(state, input, e.registry.List(), e.budget)
	names := make([]string, 0, len(selected))
	for _, s := range selected {
		names = append(names, s.Name())
	}
	turnLogger.DebugWithFields("skills selected", logging.Field("skills", names))

	// 2. Execute in parallel; failures degrade to no-op contributions.
	outcomes := e.executeSkills(ctx, state, input, selected)

	// 3. Classify and apply the user's own input as evidence, then any
	// evidence the skills produced.
	e.applyText(ctx, state, input.Text, types.EvidenceFormUserInput, turn, turnLogger)
	if input.DocumentText != "" {
		e.applyText(ctx, state, input.DocumentText, types.EvidenceFormDocument, turn, turnLogger)
	}

	var features types.ConfidenceFeatures
	nextAction := types.NextActionNone
	for _, outcome := range outcomes {
		features = features.Merge(outcome.Features)
		for _, req := range outcome.NewRequests {
			state.AddRequest(req)
		}
		for _, text := range outcome.Evidence {
			e.applyText(ctx, state, text, types.EvidenceFormUserInput, turn, turnLogger)
		}
		if types.MoreConservative(outcome.NextAction, nextAction) {
			nextAction = outcome.NextAction
		}
	}

	// 4. Aggregate confidence against history prior to this turn.
	score := confidence.Score(features)
	band := confidence.BandFor(score, state.ConfidenceHistory)
	state.ConfidenceHistory = appendCapped(state.ConfidenceHistory, score, historyRetention)

	// 5. Record the turn and check for stalls.
	state.TurnRecords = appendCappedRecords(state.TurnRecords, types.TurnRecord{
		Turn:       turn,
		QueryText:  input.Text,
		Confidence: score,
	}, recordRetention)
	stall := e.guard.Check(ctx, state)

	outcome := &TurnOutcome{
		Band:           band,
		Score:          score,
		Stall:          stall,
		ActiveRequests: e.lifecycle.ActiveRequests(state),
		NextAction:     nextAction,
		SkillsRun:      names,
	}

	e.observe(state.CaseID, outcome, time.Since(start))
	turnLogger.InfoWithFields("turn processed",
		logging.Field("score", fmt.Sprintf("%.3f", score)),
		logging.Field("band", band),
		logging.Field("stall", stall),
		logging.Field("active_requests", len(outcome.ActiveRequests)),
	)
	span.SetAttributes(
		attribute.Float64("score", score),
		attribute.String("band", string(band)),
		attribute.String("stall", string(stall)),
	)

	return outcome, nil
}

// executeSkills runs the selected skills concurrently and joins their
// outcomes. A failing, panicking, or timed-out skill contributes a
// no-op; the turn never aborts because one capability misbehaved.
func (e *Engine) executeSkills(ctx context.Context, state *types.CaseDiagnosticState, input types.TurnInput, selected []types.Skill) []types.SkillOutcome {
	outcomes := make([]types.SkillOutcome, len(selected))
	g := new(errgroup.Group)

	for i, s := range selected {
		g.Go(func() error {
			outcomes[i] = e.runSkill(ctx, state, input, s)
			return nil
		})
	}
	// Goroutines never return errors; failures become no-op outcomes.
	_ = g.Wait()
	return outcomes
}

func (e *Engine) runSkill(ctx context.Context, state *types.CaseDiagnosticState, input types.TurnInput, s types.Skill) (outcome types.SkillOutcome) {
	skillCtx, cancel := context.WithTimeout(ctx, e.skillTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorWithFields("skill panicked",
				logging.Field("skill", s.Name()),
				logging.Field("case_id", state.CaseID),
				logging.Field("panic", fmt.Sprintf("%v", r)),
			)
			e.countSkill(s.Name(), "error")
			outcome = types.NoOpOutcome()
		}
	}()

	result, err := s.Execute(skillCtx, state, input, e.budget)
	switch {
	case err == nil:
		e.countSkill(s.Name(), "ok")
		result.Features = result.Features.Clamped()
		return result
	case skillCtx.Err() != nil:
		e.logger.WarnWithFields("skill timed out",
			logging.Field("skill", s.Name()),
			logging.Field("case_id", state.CaseID),
		)
		e.countSkill(s.Name(), "timeout")
		return types.NoOpOutcome()
	default:
		e.logger.ErrorWithFields("skill failed",
			logging.Field("skill", s.Name()),
			logging.Field("case_id", state.CaseID),
			logging.Field("error", err.Error()),
		)
		e.countSkill(s.Name(), "error")
		return types.NoOpOutcome()
	}
}

// applyText classifies one evidence text and applies it to the case.
// Classification failure degrades the item to an unmatched neutral
// record so the log still captures it.
func (e *Engine) applyText(ctx context.Context, state *types.CaseDiagnosticState, text string, form types.EvidenceForm, turn int, logger *logging.Logger) {
	if text == "" {
		return
	}

	active := e.lifecycle.ActiveRequests(state)
	cls, err := e.classifier.Classify(ctx, text, active)
	if err != nil {
		logger.WarnWithFields("classification failed, recording unmatched evidence",
			logging.Field("error", err.Error()),
		)
		cls = types.EvidenceClassification{
			Form:         form,
			EvidenceType: types.EvidenceTypeNeutral,
			UserIntent:   types.IntentProvidingEvidence,
		}
	}
	cls.Form = form

	evidence := types.EvidenceProvided{
		Turn:                turn,
		Form:                form,
		Content:             text,
		AddressedRequestIDs: cls.MatchedRequestIDs,
		Completeness:        types.Clamp01(cls.CompletenessScore),
		Type:                cls.EvidenceType,
		Intent:              cls.UserIntent,
	}
	if err := e.lifecycle.ApplyEvidence(state, evidence, cls, turn); err != nil {
		logger.ErrorWithErr("failed to apply evidence", err)
	}
}

// LifecycleSummary reports aggregate request/evidence counts for a case.
func (e *Engine) LifecycleSummary(state *types.CaseDiagnosticState) lifecycle.Summary {
	return e.lifecycle.Summarize(state)
}

// ActiveRequests returns the case's pending and partial requests.
func (e *Engine) ActiveRequests(state *types.CaseDiagnosticState) []*types.EvidenceRequest {
	return e.lifecycle.ActiveRequests(state)
}

// MarkObsolete retires requests owned by deprecated hypotheses.
func (e *Engine) MarkObsolete(state *types.CaseDiagnosticState, hypothesisIDs []string) (int, error) {
	state.Lock()
	defer state.Unlock()
	return e.lifecycle.MarkObsolete(state, hypothesisIDs, state.Turn)
}

func (e *Engine) observe(caseID string, outcome *TurnOutcome, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.TurnsTotal.With(prometheus.Labels{"band": string(outcome.Band)}).Inc()
	e.metrics.TurnDuration.Observe(elapsed.Seconds())
	e.metrics.LoopSignals.With(prometheus.Labels{"status": string(outcome.Stall)}).Inc()
	e.metrics.ConfidenceScore.With(prometheus.Labels{"case_id": caseID}).Set(outcome.Score)
}

func (e *Engine) countSkill(name, status string) {
	if e.metrics == nil {
		return
	}
	e.metrics.SkillExecutions.With(prometheus.Labels{"skill": name, "status": status}).Inc()
}

func appendCapped(history []float64, v float64, limit int) []float64 {
	history = append(history, v)
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}

func appendCappedRecords(records []types.TurnRecord, r types.TurnRecord, limit int) []types.TurnRecord {
	records = append(records, r)
	if len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records
}
