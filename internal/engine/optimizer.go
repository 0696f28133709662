package engine

import "voicefeedback/internal/model"

// Constraints bound one call
type Constraints struct {
	MaxDurationSec int
	TargetCount    int // <= 0 means no count limit
	Thresholds     model.PriorityThresholds
}

// TierOf buckets an effective priority against the rule thresholds
func TierOf(p float64, t model.PriorityThresholds) model.PriorityTier {
	switch {
	case p >= t.Critical:
		return model.TierCritical
	case p >= t.High:
		return model.TierHigh
	case p >= t.Medium:
		return model.TierMedium
	case p >= t.Low:
		return model.TierLow
	}
	return model.TierNone
}

var tierOrder = []model.PriorityTier{model.TierCritical, model.TierHigh, model.TierMedium, model.TierLow}

// Optimize greedily fills the call tier by tier. It is not an exact knapsack:
// within a tier candidates are taken in scorer order whenever they still fit,
// which keeps the run linear and the result reproducible.
func Optimize(cands []Candidate, c Constraints) model.SelectionPlan {
	tiers := make(map[model.PriorityTier][]Candidate, len(tierOrder))
	var below []Candidate
	for _, cand := range cands {
		tier := TierOf(cand.EffectivePriority, c.Thresholds)
		if tier == model.TierNone {
			below = append(below, cand)
			continue
		}
		tiers[tier] = append(tiers[tier], cand)
	}

	plan := model.SelectionPlan{
		Selected: []model.SelectedQuestion{},
		Skipped:  []model.SkippedQuestion{},
	}
	remaining := c.MaxDurationSec
	if remaining < 0 {
		remaining = 0
	}
	countFull := func() bool { return c.TargetCount > 0 && len(plan.Selected) >= c.TargetCount }

	for _, tier := range tierOrder {
		members := tiers[tier]
		if remaining == 0 || countFull() {
			// never reached: a higher tier used up the call
			for _, cand := range members {
				plan.Skipped = append(plan.Skipped, cand.skipped(model.SkipPriorityCutoff))
			}
			if remaining == 0 && len(members) > 0 {
				plan.TimeConstraintApplied = true
			}
			continue
		}
		for _, cand := range members {
			cost := cand.Question.EstimatedDurationSec
			switch {
			case countFull():
				plan.Skipped = append(plan.Skipped, cand.skipped(model.SkipPriorityCutoff))
			case cost <= remaining:
				remaining -= cost
				plan.TotalDurationSec += cost
				plan.Selected = append(plan.Selected, model.SelectedQuestion{
					QuestionID:           cand.Question.ID,
					TopicCategory:        cand.Question.TopicCategory,
					EstimatedDurationSec: cost,
					EffectivePriority:    cand.EffectivePriority,
					Tier:                 tier,
					Position:             len(plan.Selected) + 1,
					TriggerID:            cand.TriggerID,
					TriggerConfidence:    cand.TriggerConfidence,
				})
			default:
				plan.Skipped = append(plan.Skipped, cand.skipped(model.SkipTimeConstraint))
				plan.TimeConstraintApplied = true
			}
		}
	}
	for _, cand := range below {
		plan.Skipped = append(plan.Skipped, cand.skipped(model.SkipPriorityCutoff))
	}
	return plan
}
