package model

import "time"

// SelectionPlan is the optimizer's output for one candidate set
type SelectionPlan struct {
	Selected              []SelectedQuestion `json:"selected"`
	Skipped               []SkippedQuestion  `json:"skipped"`
	TotalDurationSec      int                `json:"totalDurationSeconds"`
	TimeConstraintApplied bool               `json:"timeConstraintApplied"`
}

// CombinationEntry is a memoized plan plus what it must be re-validated against
type CombinationEntry struct {
	BusinessContextID string                    `json:"businessContextId"`
	RuleVersion       int                       `json:"ruleVersion"`
	ExpiresAt         time.Time                 `json:"expiresAt"`
	Plan              SelectionPlan             `json:"plan"`
	Frequency         map[string]FrequencyStamp `json:"frequency"`
}
