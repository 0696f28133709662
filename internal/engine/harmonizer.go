package engine

import (
	"time"

	"voicefeedback/internal/model"
)

// HarmonizeInput carries the scored candidates with their counter snapshots
type HarmonizeInput struct {
	Candidates           []Candidate // scorer order
	Now                  time.Time   // wall clock for frequency windows
	TransactionTime      time.Time   // for active schedules
	Location             *time.Location
	AllowDuplicateTopics bool
}

// Harmonize filters candidates by schedule, trigger gating, frequency quota
// and topic diversity. Kept candidates carry their rolled frequency state.
func Harmonize(in HarmonizeInput) ([]Candidate, []model.SkippedQuestion) {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	at := in.TransactionTime.In(loc)
	topics := make(map[string]bool)

	kept := make([]Candidate, 0, len(in.Candidates))
	var skipped []model.SkippedQuestion
	for _, c := range in.Candidates {
		c.Frequency = c.Frequency.Rolled(in.Now, c.Question.Window())

		switch {
		case !ScheduleActive(c.Question.Schedule, at):
			skipped = append(skipped, c.skipped(model.SkipInactiveSchedule))
		case c.Question.RequiresTrigger && c.TriggerID == "":
			skipped = append(skipped, c.skipped(model.SkipTriggerNotMatched))
		case c.Question.Capped() && c.Frequency.Count >= c.Question.FrequencyTarget:
			skipped = append(skipped, c.skipped(model.SkipFrequencyLimit))
		case !in.AllowDuplicateTopics && c.Question.TopicCategory != "" && topics[c.Question.TopicCategory]:
			skipped = append(skipped, c.skipped(model.SkipDuplicateTopic))
		default:
			topics[c.Question.TopicCategory] = true
			kept = append(kept, c)
		}
	}
	return kept, skipped
}

// ScheduleActive checks date range, time-of-day window and weekdays. at must
// already be in the business timezone.
func ScheduleActive(s model.ActiveSchedule, at time.Time) bool {
	if s.StartDate != nil && at.Before(*s.StartDate) {
		return false
	}
	if s.EndDate != nil && at.After(*s.EndDate) {
		return false
	}
	if s.StartMinute != nil && s.EndMinute != nil && *s.StartMinute != *s.EndMinute {
		if !inMinuteWindow(at.Hour()*60+at.Minute(), *s.StartMinute, *s.EndMinute) {
			return false
		}
	}
	if len(s.DaysOfWeek) > 0 && !containsWeekday(s.DaysOfWeek, at.Weekday()) {
		return false
	}
	return true
}
