package model

import "time"

// FrequencyState is the presentation counter of one question
type FrequencyState struct {
	QuestionID string    `json:"questionId"`
	Count      int       `json:"count"`
	ResetAt    time.Time `json:"resetAt"` // zero = window not started yet
}

// Rolled returns the state as seen at now: when the window has expired the
// count is zeroed and ResetAt advances by whole windows until it lies after now.
func (s FrequencyState) Rolled(now time.Time, window time.Duration) FrequencyState {
	if s.ResetAt.IsZero() || window <= 0 || now.Before(s.ResetAt) {
		return s
	}
	out := s
	out.Count = 0
	elapsed := now.Sub(s.ResetAt)
	steps := int64(elapsed/window) + 1
	out.ResetAt = s.ResetAt.Add(time.Duration(steps) * window)
	return out
}

// FrequencyStamp pins the counter state a cached selection was derived from
type FrequencyStamp struct {
	Count   int   `json:"count"`
	ResetAt int64 `json:"resetAt"` // unix millis
}

// Stamp converts a state into its comparable form
func (s FrequencyState) Stamp() FrequencyStamp {
	var reset int64
	if !s.ResetAt.IsZero() {
		reset = s.ResetAt.UnixMilli()
	}
	return FrequencyStamp{Count: s.Count, ResetAt: reset}
}
