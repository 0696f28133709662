package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"voicefeedback/internal/cache"
	"voicefeedback/internal/config"
	"voicefeedback/internal/engine"
	"voicefeedback/internal/model"
	"voicefeedback/internal/observability"
	"voicefeedback/internal/platform/logger"
	"voicefeedback/internal/repository"
)

var (
	// ErrDependencyUnavailable wraps repository and counter store failures.
	// No result, cached or otherwise, is returned with it.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrInvalidRequest        = errors.New("invalid request")
	ErrNotFound              = errors.New("not found")
)

// Evaluation phases, as reported in debug timings and spans
const (
	phaseLoad     = "load"
	phaseTriggers = "triggers"
	phaseScore    = "score"
	phaseHarmon   = "harmonize"
	phaseOptimize = "optimize"
	phaseCommit   = "commit"
	phaseLog      = "log"
)

// SelectionService runs the selection pipeline for one call
type SelectionService struct {
	questions   repository.QuestionRepo
	triggers    repository.TriggerRepo
	rules       repository.RuleRepo
	frequency   cache.FrequencyStore
	combos      cache.CombinationCache
	sequence    cache.SequenceCounter
	activations *ActivationLogger
	defaults    config.EngineConfig
	log         *logger.Logger
	now         func() time.Time
}

// NewSelectionService creates a new selection service
func NewSelectionService(
	questions repository.QuestionRepo,
	triggers repository.TriggerRepo,
	rules repository.RuleRepo,
	frequency cache.FrequencyStore,
	combos cache.CombinationCache,
	sequence cache.SequenceCounter,
	activations *ActivationLogger,
	defaults config.EngineConfig,
	log *logger.Logger,
) *SelectionService {
	return &SelectionService{
		questions:   questions,
		triggers:    triggers,
		rules:       rules,
		frequency:   frequency,
		combos:      combos,
		sequence:    sequence,
		activations: activations,
		defaults:    defaults,
		log:         log,
		now:         time.Now,
	}
}

// evaluation is the state threaded through the phases of one Evaluate call
type evaluation struct {
	businessID string
	ec         model.EvaluationContext
	opts       model.EvaluateOptions

	questions []model.Question
	triggers  []model.DynamicTrigger
	weights   []model.PriorityWeight
	rule      model.CombinationRule
	loc       *time.Location

	outcomes    []model.TriggerOutcome
	invalid     []engine.Invalid
	kept        []engine.Candidate
	harmSkipped []model.SkippedQuestion
	constraints engine.Constraints
	cacheKey    string
	plan        model.SelectionPlan
	cacheHit    bool
	refused     []model.SkippedQuestion

	timings map[string]int64
}

// Evaluate selects the questions to ask for one transaction. Unless
// opts.Preview is set, the selected questions' frequency counters are
// incremented and the outcome is written to the activation log.
func (s *SelectionService) Evaluate(ctx context.Context, businessID string, ec model.EvaluationContext, opts model.EvaluateOptions) (*model.SelectionResult, error) {
	if err := validateEvaluation(businessID, ec, opts); err != nil {
		return nil, err
	}
	if ec.TransactionTime.IsZero() {
		ec.TransactionTime = s.now().UTC()
	}

	ctx, span := observability.Tracer().Start(ctx, "selection.Evaluate")
	defer span.End()
	span.SetAttributes(
		attribute.String("business.id", businessID),
		attribute.Bool("evaluation.preview", opts.Preview),
	)

	ev := &evaluation{businessID: businessID, ec: ec, opts: opts, timings: make(map[string]int64)}
	started := s.now()

	steps := []struct {
		name string
		fn   func(context.Context, *evaluation) error
	}{
		{phaseLoad, s.load},
		{phaseTriggers, s.evaluateTriggers},
		{phaseScore, s.score},
		{phaseHarmon, s.harmonize},
		{phaseOptimize, s.optimize},
		{phaseCommit, s.commit},
	}
	for _, step := range steps {
		if err := s.runPhase(ctx, ev, step.name, step.fn); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	result := s.buildResult(ev)
	span.SetAttributes(
		attribute.String("evaluation.id", result.EvaluationID),
		attribute.Int("selection.count", len(result.Selected)),
		attribute.Bool("selection.cache_hit", result.Metadata.CacheHit),
	)

	if !opts.Preview && s.activations != nil {
		_ = s.runPhase(ctx, ev, phaseLog, func(ctx context.Context, ev *evaluation) error {
			if err := s.activations.Record(ctx, result, ev.ec.CustomerSequence); err != nil {
				// the selection stands even when the audit write fails
				s.log.Error("activation log write failed", "evaluationId", result.EvaluationID, "error", err)
			}
			return nil
		})
	}

	threshold := ev.rule.ThresholdMS
	slow := slowPhases(ev.timings, threshold)
	if total := s.now().Sub(started).Milliseconds(); threshold > 0 && total > int64(threshold) {
		s.log.Warn("evaluation exceeded latency threshold",
			"businessId", businessID, "evaluationId", result.EvaluationID,
			"elapsedMs", total, "thresholdMs", threshold, "slowPhases", slow)
	}

	if opts.IncludeDebugInfo {
		result.Debug = &model.DebugInfo{
			CustomerSequence: ev.ec.CustomerSequence,
			PhaseTimingsMS:   ev.timings,
			SlowPhases:       slow,
			ThresholdMS:      threshold,
			TriggerOutcomes:  ev.outcomes,
			CacheKey:         ev.cacheKey,
		}
	}
	return result, nil
}

func (s *SelectionService) runPhase(ctx context.Context, ev *evaluation, name string, fn func(context.Context, *evaluation) error) error {
	ctx, span := observability.Tracer().Start(ctx, "selection."+name)
	defer span.End()
	start := s.now()
	err := fn(ctx, ev)
	ev.timings[name] = s.now().Sub(start).Milliseconds()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func validateEvaluation(businessID string, ec model.EvaluationContext, opts model.EvaluateOptions) error {
	switch {
	case businessID == "":
		return fmt.Errorf("%w: business context id is required", ErrInvalidRequest)
	case ec.TransactionAmount != nil && *ec.TransactionAmount < 0:
		return fmt.Errorf("%w: transaction amount must not be negative", ErrInvalidRequest)
	case opts.MaxCallDurationSeconds < 0:
		return fmt.Errorf("%w: max call duration must not be negative", ErrInvalidRequest)
	case opts.TargetQuestionCount < 0:
		return fmt.Errorf("%w: target question count must not be negative", ErrInvalidRequest)
	}
	return nil
}

// load fetches the business configuration in parallel
func (s *SelectionService) load(ctx context.Context, ev *evaluation) error {
	var (
		questions []*model.Question
		triggers  []*model.DynamicTrigger
		weights   []*model.PriorityWeight
		rule      *model.CombinationRule
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		questions, err = s.questions.GetActiveByBusiness(gctx, ev.businessID, ev.ec.StoreID)
		return err
	})
	g.Go(func() error {
		var err error
		triggers, err = s.triggers.GetActiveByBusiness(gctx, ev.businessID)
		return err
	})
	g.Go(func() error {
		var err error
		rule, err = s.rules.GetActive(gctx, ev.businessID)
		return err
	})
	g.Go(func() error {
		var err error
		weights, err = s.rules.GetWeights(gctx, ev.businessID)
		return err
	})
	if err := g.Wait(); err != nil {
		s.log.Error("loading business configuration failed", "businessId", ev.businessID, "error", err)
		return fmt.Errorf("%w: load configuration: %v", ErrDependencyUnavailable, err)
	}

	for _, q := range questions {
		if q != nil {
			ev.questions = append(ev.questions, *q)
		}
	}
	for _, t := range triggers {
		if t != nil {
			ev.triggers = append(ev.triggers, *t)
		}
	}
	for _, w := range weights {
		if w != nil {
			ev.weights = append(ev.weights, *w)
		}
	}
	if rule != nil {
		ev.rule = *rule
	} else {
		ev.rule = s.defaultRule(ev.businessID)
	}
	if ev.rule.ThresholdMS == 0 {
		ev.rule.ThresholdMS = s.defaults.ThresholdMS
	}
	ev.loc = ev.rule.Location()

	ev.constraints = engine.Constraints{
		MaxDurationSec: ev.rule.MaxCallDurationSeconds,
		TargetCount:    ev.rule.TargetQuestionCount,
		Thresholds:     ev.rule.Thresholds.OrDefault(),
	}
	if ev.opts.MaxCallDurationSeconds > 0 {
		ev.constraints.MaxDurationSec = ev.opts.MaxCallDurationSeconds
	}
	if ev.opts.TargetQuestionCount > 0 {
		ev.constraints.TargetCount = ev.opts.TargetQuestionCount
	}
	return nil
}

// defaultRule is used by businesses that never configured a combination rule
func (s *SelectionService) defaultRule(businessID string) model.CombinationRule {
	return model.CombinationRule{
		BusinessContextID:      businessID,
		Version:                0,
		MaxCallDurationSeconds: s.defaults.MaxCallDurationSeconds,
		Thresholds:             model.DefaultThresholds(),
		TargetQuestionCount:    s.defaults.TargetQuestionCount,
		TriggerBoostFactor:     s.defaults.TriggerBoostFactor,
		ThresholdMS:            s.defaults.ThresholdMS,
		Active:                 true,
	}
}

func (s *SelectionService) evaluateTriggers(ctx context.Context, ev *evaluation) error {
	if ev.ec.CustomerSequence <= 0 && !ev.opts.Preview && s.sequence != nil {
		seq, err := s.sequence.Next(ctx, ev.businessID)
		if err != nil {
			// triggers with a sensitivity threshold stay gated for this customer
			s.log.Warn("customer sequence unavailable", "businessId", ev.businessID, "error", err)
		} else {
			ev.ec.CustomerSequence = seq
		}
	}

	ev.outcomes = engine.EvaluateTriggers(ev.triggers, ev.ec, ev.loc, ev.opts.ForceTriggers)
	for _, o := range ev.outcomes {
		if o.Disabled {
			s.log.Warn("trigger disabled by malformed config",
				"businessId", ev.businessID, "triggerId", o.TriggerID, "reason", o.Reason)
		}
	}
	return nil
}

func (s *SelectionService) score(ctx context.Context, ev *evaluation) error {
	var cands []engine.Candidate
	cands, ev.invalid = engine.Score(engine.ScoreInput{
		Questions:   ev.questions,
		Weights:     ev.weights,
		Outcomes:    ev.outcomes,
		BoostFactor: ev.rule.TriggerBoostFactor,
	})
	for _, inv := range ev.invalid {
		s.log.Warn("question dropped for invalid data",
			"businessId", ev.businessID, "questionId", inv.Skipped.QuestionID, "problem", inv.Problem)
	}
	ev.kept = cands
	return nil
}

func (s *SelectionService) harmonize(ctx context.Context, ev *evaluation) error {
	ids := make([]string, len(ev.kept))
	for i, c := range ev.kept {
		ids[i] = c.Question.ID
	}
	snapshot, err := s.frequency.Snapshot(ctx, ids)
	if err != nil {
		s.log.Error("frequency snapshot failed", "businessId", ev.businessID, "error", err)
		return fmt.Errorf("%w: frequency snapshot: %v", ErrDependencyUnavailable, err)
	}
	for i := range ev.kept {
		if state, ok := snapshot[ev.kept[i].Question.ID]; ok {
			ev.kept[i].Frequency = state
		}
	}

	ev.kept, ev.harmSkipped = engine.Harmonize(engine.HarmonizeInput{
		Candidates:           ev.kept,
		Now:                  s.now(),
		TransactionTime:      ev.ec.TransactionTime,
		Location:             ev.loc,
		AllowDuplicateTopics: ev.rule.AllowDuplicateTopics,
	})
	return nil
}

// optimize serves the plan from the combination cache when the entry still
// matches the current counters, otherwise runs the optimizer and stores it.
func (s *SelectionService) optimize(ctx context.Context, ev *evaluation) error {
	now := s.now()
	ev.cacheKey = engine.CacheKey(engine.KeyParts{
		BusinessContextID: ev.businessID,
		RuleVersion:       ev.rule.Version,
		Outcomes:          ev.outcomes,
		Candidates:        ev.kept,
		Constraints:       ev.constraints,
	})

	entry, err := s.combos.Get(ctx, ev.cacheKey)
	if err != nil {
		s.log.Warn("combination cache read failed", "key", ev.cacheKey, "error", err)
		entry = nil
	}
	if engine.StillValid(entry, ev.rule.Version, ev.kept, now) {
		ev.plan = entry.Plan
		ev.cacheHit = true
		return nil
	}

	ev.plan = engine.Optimize(ev.kept, ev.constraints)
	ttl := s.defaults.CacheTTL()
	if ttl <= 0 {
		return nil
	}
	newEntry := &model.CombinationEntry{
		BusinessContextID: ev.businessID,
		RuleVersion:       ev.rule.Version,
		ExpiresAt:         now.Add(ttl).UTC(),
		Plan:              ev.plan,
		Frequency:         engine.Stamps(ev.kept),
	}
	if err := s.combos.Set(ctx, ev.cacheKey, newEntry, ttl); err != nil {
		s.log.Warn("combination cache write failed", "key", ev.cacheKey, "error", err)
	}
	return nil
}

// commit increments the counter of every selected question. A question whose
// quota was taken by a concurrent evaluation moves to skipped; nothing is
// backfilled in its place.
func (s *SelectionService) commit(ctx context.Context, ev *evaluation) error {
	if ev.opts.Preview || len(ev.plan.Selected) == 0 {
		return nil
	}
	byID := make(map[string]model.Question, len(ev.kept))
	for _, c := range ev.kept {
		byID[c.Question.ID] = c.Question
	}

	now := s.now()
	selected := make([]model.SelectedQuestion, 0, len(ev.plan.Selected))
	total := 0
	for _, sel := range ev.plan.Selected {
		q := byID[sel.QuestionID]
		ok, _, err := s.frequency.TryIncrement(ctx, sel.QuestionID, q.FrequencyTarget, q.Window(), now)
		if err != nil {
			s.log.Error("frequency commit failed", "businessId", ev.businessID, "questionId", sel.QuestionID, "error", err)
			return fmt.Errorf("%w: frequency commit: %v", ErrDependencyUnavailable, err)
		}
		if !ok {
			s.log.Info("frequency quota taken concurrently", "businessId", ev.businessID, "questionId", sel.QuestionID)
			ev.refused = append(ev.refused, model.SkippedQuestion{
				QuestionID:        sel.QuestionID,
				TopicCategory:     sel.TopicCategory,
				EffectivePriority: sel.EffectivePriority,
				SkipReason:        model.SkipFrequencyLimit,
				TriggerID:         sel.TriggerID,
				TriggerConfidence: sel.TriggerConfidence,
			})
			continue
		}
		sel.Position = len(selected) + 1
		selected = append(selected, sel)
		total += sel.EstimatedDurationSec
	}
	ev.plan.Selected = selected
	ev.plan.TotalDurationSec = total
	return nil
}

func (s *SelectionService) buildResult(ev *evaluation) *model.SelectionResult {
	skipped := make([]model.SkippedQuestion, 0, len(ev.invalid)+len(ev.harmSkipped)+len(ev.plan.Skipped)+len(ev.refused))
	for _, inv := range ev.invalid {
		skipped = append(skipped, inv.Skipped)
	}
	skipped = append(skipped, ev.harmSkipped...)
	skipped = append(skipped, ev.plan.Skipped...)
	skipped = append(skipped, ev.refused...)

	activated := []string{}
	for _, o := range ev.outcomes {
		if o.Matched && !o.Disabled {
			activated = append(activated, o.TriggerID)
		}
	}

	selected := ev.plan.Selected
	if selected == nil {
		selected = []model.SelectedQuestion{}
	}
	return &model.SelectionResult{
		EvaluationID:         uuid.NewString(),
		BusinessContextID:    ev.businessID,
		Selected:             selected,
		Skipped:              skipped,
		TotalEstimatedDurSec: ev.plan.TotalDurationSec,
		Metadata: model.OptimizationMetadata{
			AlgorithmVersion:      engine.AlgorithmVersion,
			RuleVersion:           ev.rule.Version,
			TriggersActivated:     activated,
			CacheHit:              ev.cacheHit,
			TimeConstraintApplied: ev.plan.TimeConstraintApplied,
		},
	}
}

func slowPhases(timings map[string]int64, thresholdMS int) []string {
	if thresholdMS <= 0 {
		return nil
	}
	var slow []string
	for name, ms := range timings {
		if ms > int64(thresholdMS) {
			slow = append(slow, name)
		}
	}
	sort.Strings(slow)
	return slow
}
