package model

import "time"

// EvaluationContext is built by the caller from the transaction being surveyed
type EvaluationContext struct {
	CustomerSequence   int64     `json:"customerSequence"` // <= 0 means assign from the business counter
	StoreID            string    `json:"storeId,omitempty"`
	TransactionTime    time.Time `json:"transactionTime"`
	TransactionAmount  *float64  `json:"transactionAmount,omitempty"`
	Currency           string    `json:"currency,omitempty"`
	PurchaseCategories []string  `json:"purchaseCategories,omitempty"`
	PurchaseItems      []string  `json:"purchaseItems,omitempty"`
}

// HasPurchaseData reports whether any category or item was supplied
func (c *EvaluationContext) HasPurchaseData() bool {
	return len(c.PurchaseCategories) > 0 || len(c.PurchaseItems) > 0
}

// EvaluateOptions tune a single evaluation
type EvaluateOptions struct {
	IncludeDebugInfo       bool     `json:"includeDebugInfo"`
	ForceTriggers          []string `json:"forceTriggers,omitempty"`
	MaxCallDurationSeconds int      `json:"maxCallDurationSeconds,omitempty"` // overrides the rule when > 0
	TargetQuestionCount    int      `json:"targetQuestionCount,omitempty"`    // overrides the rule when > 0
	Preview                bool     `json:"preview"`                          // no frequency commit, no activation log
}

// SkipReason explains why a candidate was not selected
type SkipReason string

const (
	SkipFrequencyLimit    SkipReason = "frequency_limit"
	SkipDuplicateTopic    SkipReason = "duplicate_topic"
	SkipInactiveSchedule  SkipReason = "inactive_schedule"
	SkipTriggerNotMatched SkipReason = "trigger_not_matched"
	SkipTimeConstraint    SkipReason = "time_constraint"
	SkipPriorityCutoff    SkipReason = "priority_cutoff"
	SkipInvalidData       SkipReason = "invalid_data"
)

// PriorityTier is the bucket a candidate falls into by effective priority
type PriorityTier string

const (
	TierCritical PriorityTier = "critical"
	TierHigh     PriorityTier = "high"
	TierMedium   PriorityTier = "medium"
	TierLow      PriorityTier = "low"
	TierNone     PriorityTier = "none" // below the low threshold
)

// SelectedQuestion is one question in the advisory call order
type SelectedQuestion struct {
	QuestionID           string       `json:"questionId"`
	TopicCategory        string       `json:"topicCategory"`
	EstimatedDurationSec int          `json:"estimatedDurationSeconds"`
	EffectivePriority    float64      `json:"effectivePriority"`
	Tier                 PriorityTier `json:"tier"`
	Position             int          `json:"position"`
	TriggerID            string       `json:"triggerId,omitempty"`
	TriggerConfidence    float64      `json:"triggerConfidence,omitempty"`
}

// SkippedQuestion is a considered candidate that will not be asked
type SkippedQuestion struct {
	QuestionID        string     `json:"questionId"`
	TopicCategory     string     `json:"topicCategory"`
	EffectivePriority float64    `json:"effectivePriority"`
	SkipReason        SkipReason `json:"skipReason"`
	TriggerID         string     `json:"triggerId,omitempty"`
	TriggerConfidence float64    `json:"triggerConfidence,omitempty"`
}

// OptimizationMetadata describes how a selection was produced
type OptimizationMetadata struct {
	AlgorithmVersion      string   `json:"algorithmVersion"`
	RuleVersion           int      `json:"ruleVersion"`
	TriggersActivated     []string `json:"triggersActivated"`
	CacheHit              bool     `json:"cacheHit"`
	TimeConstraintApplied bool     `json:"timeConstraintApplied"`
}

// SelectionResult is returned to the call orchestrator
type SelectionResult struct {
	EvaluationID         string               `json:"evaluationId"` // fresh per call
	BusinessContextID    string               `json:"businessContextId"`
	Selected             []SelectedQuestion   `json:"selected"`
	Skipped              []SkippedQuestion    `json:"skipped"`
	TotalEstimatedDurSec int                  `json:"totalEstimatedDurationSeconds"`
	Metadata             OptimizationMetadata `json:"metadata"`
	Debug                *DebugInfo           `json:"debug,omitempty"`
}

// DebugInfo is attached when the caller asks for it
type DebugInfo struct {
	CustomerSequence int64            `json:"customerSequence"`
	PhaseTimingsMS   map[string]int64 `json:"phaseTimingsMs"`
	SlowPhases       []string         `json:"slowPhases,omitempty"`
	ThresholdMS      int              `json:"thresholdMs"`
	TriggerOutcomes  []TriggerOutcome `json:"triggerOutcomes"`
	CacheKey         string           `json:"cacheKey"`
}

// EvaluateRequest is the body of POST /v1/businesses/{businessId}/evaluations
type EvaluateRequest struct {
	Context EvaluationContext `json:"context"`
	Options EvaluateOptions   `json:"options"`
}
