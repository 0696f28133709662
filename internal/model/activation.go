package model

import "time"

// ActivationLogEntry records the decision taken for one candidate in one evaluation
type ActivationLogEntry struct {
	ID                string     `json:"id" bson:"_id,omitempty"`
	EvaluationID      string     `json:"evaluationId" bson:"evaluationId"`
	BusinessContextID string     `json:"businessContextId" bson:"businessContextId"`
	QuestionID        string     `json:"questionId" bson:"questionId"`
	TopicCategory     string     `json:"topicCategory" bson:"topicCategory"`
	TriggerID         string     `json:"triggerId,omitempty" bson:"triggerId,omitempty"`
	TriggerConfidence float64    `json:"triggerConfidence" bson:"triggerConfidence"`
	EffectivePriority float64    `json:"effectivePriority" bson:"effectivePriority"`
	CallPosition      int        `json:"callPosition" bson:"callPosition"` // 1-based; 0 when skipped
	WasSelected       bool       `json:"wasSelected" bson:"wasSelected"`
	WasAsked          bool       `json:"wasAsked" bson:"wasAsked"` // set later by the call orchestrator
	AskedAt           *time.Time `json:"askedAt,omitempty" bson:"askedAt,omitempty"`
	SkipReason        SkipReason `json:"skipReason,omitempty" bson:"skipReason,omitempty"`
	CustomerSequence  int64      `json:"customerSequence" bson:"customerSequence"`
	CacheHit          bool       `json:"cacheHit" bson:"cacheHit"`
	CreatedAt         time.Time  `json:"createdAt" bson:"createdAt"`
}

// MarkAskedRequest is sent by the call orchestrator once questions were actually asked
type MarkAskedRequest struct {
	QuestionIDs []string `json:"questionIds"`
}
