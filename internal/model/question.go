package model

import "time"

const (
	MinPriorityLevel = 1
	MaxPriorityLevel = 5
)

// FrequencyWindow names the rolling bucket a question's presentation quota applies to
type FrequencyWindow string

const (
	FrequencyDaily   FrequencyWindow = "daily"
	FrequencyWeekly  FrequencyWindow = "weekly"
	FrequencyMonthly FrequencyWindow = "monthly"
)

// Duration returns the window length. Unknown windows fall back to the
// question's custom window seconds, then to a day.
func (w FrequencyWindow) Duration(customSeconds int) time.Duration {
	switch w {
	case FrequencyDaily:
		return 24 * time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	case FrequencyMonthly:
		return 30 * 24 * time.Hour
	}
	if customSeconds > 0 {
		return time.Duration(customSeconds) * time.Second
	}
	return 24 * time.Hour
}

// ActiveSchedule restricts when a question may be asked.
// Minutes are minutes-of-day in the business timezone; EndMinute is exclusive
// and may be lower than StartMinute for windows that wrap midnight.
type ActiveSchedule struct {
	StartDate   *time.Time     `json:"startDate,omitempty" bson:"startDate,omitempty"`
	EndDate     *time.Time     `json:"endDate,omitempty" bson:"endDate,omitempty"`
	StartMinute *int           `json:"startMinute,omitempty" bson:"startMinute,omitempty"`
	EndMinute   *int           `json:"endMinute,omitempty" bson:"endMinute,omitempty"`
	DaysOfWeek  []time.Weekday `json:"daysOfWeek,omitempty" bson:"daysOfWeek,omitempty"`
}

// Question is a configured feedback question for a business context
type Question struct {
	ID                     string          `json:"id" bson:"_id,omitempty"`
	BusinessContextID      string          `json:"businessContextId" bson:"businessContextId"`
	StoreID                string          `json:"storeId,omitempty" bson:"storeId,omitempty"` // empty = all stores
	Text                   string          `json:"text" bson:"text"`
	TopicCategory          string          `json:"topicCategory" bson:"topicCategory"`
	EstimatedDurationSec   int             `json:"estimatedDurationSeconds" bson:"estimatedDurationSeconds"`
	BasePriorityLevel      int             `json:"basePriorityLevel" bson:"basePriorityLevel"` // 1-5
	FrequencyTarget        int             `json:"frequencyTarget" bson:"frequencyTarget"`     // <= 0 means uncapped
	FrequencyWindow        FrequencyWindow `json:"frequencyWindow" bson:"frequencyWindow"`
	FrequencyWindowSeconds int             `json:"frequencyWindowSeconds,omitempty" bson:"frequencyWindowSeconds,omitempty"`
	RequiresTrigger        bool            `json:"requiresTrigger" bson:"requiresTrigger"` // only eligible when a contributing trigger matched
	Active                 bool            `json:"active" bson:"active"`
	Schedule               ActiveSchedule  `json:"schedule" bson:"schedule"`
	CreatedAt              time.Time       `json:"createdAt" bson:"createdAt"`
	UpdatedAt              time.Time       `json:"updatedAt" bson:"updatedAt"`
}

// Window returns the question's frequency window length
func (q *Question) Window() time.Duration {
	return q.FrequencyWindow.Duration(q.FrequencyWindowSeconds)
}

// Capped reports whether the question has a presentation quota
func (q *Question) Capped() bool {
	return q.FrequencyTarget > 0
}

// PriorityWeight scales a question's priority for a business
type PriorityWeight struct {
	BusinessContextID string  `json:"businessContextId" bson:"businessContextId"`
	QuestionID        string  `json:"questionId" bson:"questionId"`
	PriorityLevel     int     `json:"priorityLevel" bson:"priorityLevel"` // 0 = use the question's base level
	WeightMultiplier  float64 `json:"weightMultiplier" bson:"weightMultiplier"`
}
