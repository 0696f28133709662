// Package engine holds the pure selection pipeline: trigger evaluation,
// priority scoring, frequency harmonization and time-constrained optimization.
// Nothing here performs I/O; callers feed it repository data and counter
// snapshots and persist whatever it decides.
package engine

import "voicefeedback/internal/model"

// AlgorithmVersion is reported in every result's metadata
const AlgorithmVersion = "greedy-tiered-v1"

// Candidate is a question flowing through the pipeline
type Candidate struct {
	Question          model.Question
	Frequency         model.FrequencyState
	EffectivePriority float64
	TriggerID         string
	TriggerConfidence float64
}

func (c Candidate) skipped(reason model.SkipReason) model.SkippedQuestion {
	return model.SkippedQuestion{
		QuestionID:        c.Question.ID,
		TopicCategory:     c.Question.TopicCategory,
		EffectivePriority: c.EffectivePriority,
		SkipReason:        reason,
		TriggerID:         c.TriggerID,
		TriggerConfidence: c.TriggerConfidence,
	}
}

// Invalid is a candidate dropped for corrupt data
type Invalid struct {
	Skipped model.SkippedQuestion
	Problem string
}
