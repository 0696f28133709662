package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"voicefeedback/internal/model"
)

// ScoreInput is everything the priority scorer reads
type ScoreInput struct {
	Questions   []model.Question
	Weights     []model.PriorityWeight
	Outcomes    []model.TriggerOutcome
	BoostFactor float64
}

// Score computes effective priorities and returns the valid candidates in
// deterministic order. Corrupt questions come back separately.
func Score(in ScoreInput) ([]Candidate, []Invalid) {
	weights := make(map[string]model.PriorityWeight, len(in.Weights))
	for _, w := range in.Weights {
		weights[w.QuestionID] = w
	}
	best := bestContributions(in.Outcomes)

	cands := make([]Candidate, 0, len(in.Questions))
	var invalid []Invalid
	for _, q := range in.Questions {
		c := Candidate{Question: q}
		if contrib, ok := best[q.ID]; ok {
			c.TriggerID = contrib.TriggerID
			c.TriggerConfidence = contrib.Confidence
		}
		if problem := validateQuestion(q, weights[q.ID]); problem != "" {
			invalid = append(invalid, Invalid{Skipped: c.skipped(model.SkipInvalidData), Problem: problem})
			continue
		}
		c.EffectivePriority = EffectivePriority(q, weights[q.ID], c.TriggerConfidence, in.BoostFactor)
		cands = append(cands, c)
	}
	SortCandidates(cands)
	sort.Slice(invalid, func(i, j int) bool { return invalid[i].Skipped.QuestionID < invalid[j].Skipped.QuestionID })
	return cands, invalid
}

// EffectivePriority = level x multiplier, plus confidence x boost when a
// matched trigger contributed the question; clamped to the priority domain
// before and after the boost.
func EffectivePriority(q model.Question, w model.PriorityWeight, confidence, boost float64) float64 {
	level := q.BasePriorityLevel
	if w.PriorityLevel > 0 {
		level = w.PriorityLevel
	}
	multiplier := w.WeightMultiplier
	if multiplier == 0 {
		multiplier = 1.0
	}
	p := clampPriority(float64(level) * multiplier)
	if confidence > 0 && boost > 0 {
		p = clampPriority(p + confidence*boost)
	}
	return roundScore(p)
}

func clampPriority(p float64) float64 {
	return math.Max(model.MinPriorityLevel, math.Min(model.MaxPriorityLevel, p))
}

func validateQuestion(q model.Question, w model.PriorityWeight) string {
	switch {
	case q.ID == "":
		return "missing id"
	case q.EstimatedDurationSec <= 0:
		return fmt.Sprintf("non-positive duration cost %d", q.EstimatedDurationSec)
	case q.BasePriorityLevel < model.MinPriorityLevel || q.BasePriorityLevel > model.MaxPriorityLevel:
		return fmt.Sprintf("base priority %d outside %d-%d", q.BasePriorityLevel, model.MinPriorityLevel, model.MaxPriorityLevel)
	case w.PriorityLevel < 0 || w.PriorityLevel > model.MaxPriorityLevel:
		return fmt.Sprintf("weight priority %d outside 0-%d", w.PriorityLevel, model.MaxPriorityLevel)
	case w.WeightMultiplier < 0 || math.IsNaN(w.WeightMultiplier) || math.IsInf(w.WeightMultiplier, 0):
		return fmt.Sprintf("corrupt weight multiplier %v", w.WeightMultiplier)
	}
	return ""
}

// bestContributions picks, per question, the matched trigger with the highest
// confidence; ties go to the more effective trigger, then the lower id.
func bestContributions(outcomes []model.TriggerOutcome) map[string]model.TriggerOutcome {
	best := make(map[string]model.TriggerOutcome)
	for _, o := range outcomes {
		if !o.Matched || o.Disabled {
			continue
		}
		for _, qid := range o.QuestionIDs {
			cur, ok := best[qid]
			if !ok || betterContribution(o, cur) {
				best[qid] = o
			}
		}
	}
	return best
}

func betterContribution(a, b model.TriggerOutcome) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.EffectivenessScore != b.EffectivenessScore {
		return a.EffectivenessScore > b.EffectivenessScore
	}
	return a.TriggerID < b.TriggerID
}

// Less orders candidates: higher effective priority, then cheaper, then lower id
func Less(a, b Candidate) bool {
	if a.EffectivePriority != b.EffectivePriority {
		return a.EffectivePriority > b.EffectivePriority
	}
	if a.Question.EstimatedDurationSec != b.Question.EstimatedDurationSec {
		return a.Question.EstimatedDurationSec < b.Question.EstimatedDurationSec
	}
	return strings.Compare(a.Question.ID, b.Question.ID) < 0
}

// SortCandidates sorts in place in the scorer's order
func SortCandidates(c []Candidate) {
	sort.SliceStable(c, func(i, j int) bool { return Less(c[i], c[j]) })
}
