package model

import "time"

// TriggerType tags the shape of a trigger's config payload
type TriggerType string

const (
	TriggerPurchaseBased TriggerType = "purchase_based"
	TriggerTimeBased     TriggerType = "time_based"
	TriggerAmountBased   TriggerType = "amount_based"
)

// MatchMode decides how condition outcomes combine into a match
type MatchMode string

const (
	MatchAll MatchMode = "all"
	MatchAny MatchMode = "any"
)

// DynamicTrigger makes questions eligible when a customer's context matches.
// Config is stored loosely typed; the engine decodes it per Type.
type DynamicTrigger struct {
	ID                   string                 `json:"id" bson:"_id,omitempty"`
	BusinessContextID    string                 `json:"businessContextId" bson:"businessContextId"`
	Name                 string                 `json:"name" bson:"name"`
	Type                 TriggerType            `json:"type" bson:"type"`
	Config               map[string]interface{} `json:"config" bson:"config"`
	MatchMode            MatchMode              `json:"matchMode,omitempty" bson:"matchMode,omitempty"`
	SensitivityThreshold int                    `json:"sensitivityThreshold" bson:"sensitivityThreshold"` // fires every Nth customer
	EffectivenessScore   float64                `json:"effectivenessScore" bson:"effectivenessScore"`
	QuestionIDs          []string               `json:"questionIds" bson:"questionIds"`
	Conditions           []TriggerCondition     `json:"conditions,omitempty" bson:"conditions,omitempty"`
	Active               bool                   `json:"active" bson:"active"`
	UpdatedAt            time.Time              `json:"updatedAt" bson:"updatedAt"`
}

// TriggerCondition is an extra key/operator/value check attached to a trigger
type TriggerCondition struct {
	Key      string      `json:"key" bson:"key"`
	Operator string      `json:"operator" bson:"operator"`
	Value    interface{} `json:"value" bson:"value"`
	Weight   float64     `json:"weight,omitempty" bson:"weight,omitempty"` // 0 = 1
}

// TriggerOutcome is the evaluation result of a single trigger
type TriggerOutcome struct {
	TriggerID          string      `json:"triggerId"`
	Type               TriggerType `json:"type"`
	Matched            bool        `json:"matched"`
	Confidence         float64     `json:"confidence"`
	Gated              bool        `json:"gated,omitempty"`    // held back by sensitivity threshold
	Forced             bool        `json:"forced,omitempty"`   // fired through force_triggers
	Disabled           bool        `json:"disabled,omitempty"` // malformed config
	Reason             string      `json:"reason,omitempty"`
	EffectivenessScore float64     `json:"effectivenessScore"`
	QuestionIDs        []string    `json:"questionIds"`
}
