package model

import "time"

// PriorityThresholds are the minimum effective priorities of each tier
type PriorityThresholds struct {
	Critical float64 `json:"critical" bson:"critical"`
	High     float64 `json:"high" bson:"high"`
	Medium   float64 `json:"medium" bson:"medium"`
	Low      float64 `json:"low" bson:"low"`
}

// DefaultThresholds match the 1-5 priority scale
func DefaultThresholds() PriorityThresholds {
	return PriorityThresholds{Critical: 4.0, High: 3.0, Medium: 2.0, Low: 1.0}
}

// OrDefault falls back to DefaultThresholds when none were configured
func (t PriorityThresholds) OrDefault() PriorityThresholds {
	if t == (PriorityThresholds{}) {
		return DefaultThresholds()
	}
	return t
}

// CombinationRule configures how questions are combined into one call
type CombinationRule struct {
	ID                     string             `json:"id" bson:"_id,omitempty"`
	BusinessContextID      string             `json:"businessContextId" bson:"businessContextId"`
	Version                int                `json:"version" bson:"version"`
	MaxCallDurationSeconds int                `json:"maxCallDurationSeconds" bson:"maxCallDurationSeconds"`
	Thresholds             PriorityThresholds `json:"thresholds" bson:"thresholds"`
	TargetQuestionCount    int                `json:"targetQuestionCount" bson:"targetQuestionCount"`
	AllowDuplicateTopics   bool               `json:"allowDuplicateTopics" bson:"allowDuplicateTopics"` // false = strict topic diversity
	TriggerBoostFactor     float64            `json:"triggerBoostFactor" bson:"triggerBoostFactor"`
	Timezone               string             `json:"timezone,omitempty" bson:"timezone,omitempty"`
	ThresholdMS            int                `json:"thresholdMs,omitempty" bson:"thresholdMs,omitempty"`
	Active                 bool               `json:"active" bson:"active"`
	UpdatedAt              time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// Location resolves the rule timezone, defaulting to UTC
func (r *CombinationRule) Location() *time.Location {
	if r.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
