package engine

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"voicefeedback/internal/model"
)

var errNoPurchaseData = errors.New("no purchase data")

// TriggerRule is the decoded form of a trigger config. Implementations are
// PurchaseTrigger, TimeTrigger and AmountTrigger.
type TriggerRule interface {
	Type() model.TriggerType
	conditions() []condition
}

// PurchaseTrigger fires on purchased categories or items
type PurchaseTrigger struct {
	Categories []string
	Items      []string
}

func (PurchaseTrigger) Type() model.TriggerType { return model.TriggerPurchaseBased }

func (p PurchaseTrigger) conditions() []condition {
	var out []condition
	if len(p.Categories) > 0 {
		match, _ := setMatcher(opIn, p.Categories)
		out = append(out, condition{name: "purchase:category", weight: 1, eval: func(ec *model.EvaluationContext, _ time.Time) bool {
			return match(ec.PurchaseCategories)
		}})
	}
	if len(p.Items) > 0 {
		match, _ := setMatcher(opIn, p.Items)
		out = append(out, condition{name: "purchase:item", weight: 1, eval: func(ec *model.EvaluationContext, _ time.Time) bool {
			return match(ec.PurchaseItems)
		}})
	}
	return out
}

// TimeTrigger fires inside a time-of-day window and/or on given weekdays.
// EndMinute is exclusive; a window with EndMinute <= StartMinute wraps midnight.
type TimeTrigger struct {
	StartMinute int
	EndMinute   int
	HasWindow   bool
	Days        []time.Weekday
}

func (TimeTrigger) Type() model.TriggerType { return model.TriggerTimeBased }

func (t TimeTrigger) conditions() []condition {
	var out []condition
	if t.HasWindow {
		out = append(out, condition{name: "time:window", weight: 1, eval: func(_ *model.EvaluationContext, at time.Time) bool {
			return inMinuteWindow(at.Hour()*60+at.Minute(), t.StartMinute, t.EndMinute)
		}})
	}
	if len(t.Days) > 0 {
		out = append(out, condition{name: "time:day", weight: 1, eval: func(_ *model.EvaluationContext, at time.Time) bool {
			return containsWeekday(t.Days, at.Weekday())
		}})
	}
	return out
}

// AmountTrigger fires when the transaction amount lies in [Min, Max]
type AmountTrigger struct {
	Min      *float64
	Max      *float64
	Currency string
}

func (AmountTrigger) Type() model.TriggerType { return model.TriggerAmountBased }

func (a AmountTrigger) conditions() []condition {
	out := []condition{{name: "amount:range", weight: 1, eval: func(ec *model.EvaluationContext, _ time.Time) bool {
		if ec.TransactionAmount == nil {
			return false
		}
		v := *ec.TransactionAmount
		if a.Min != nil && v < *a.Min {
			return false
		}
		if a.Max != nil && v > *a.Max {
			return false
		}
		return true
	}}}
	if a.Currency != "" {
		out = append(out, condition{name: "amount:currency", weight: 1, eval: func(ec *model.EvaluationContext, _ time.Time) bool {
			return strings.EqualFold(ec.Currency, a.Currency)
		}})
	}
	return out
}

// ParseTrigger decodes the loosely typed config of a trigger into its variant
func ParseTrigger(t model.DynamicTrigger) (TriggerRule, error) {
	cfg := t.Config
	switch t.Type {
	case model.TriggerPurchaseBased:
		p := PurchaseTrigger{}
		if v, ok := cfg["categories"]; ok {
			ss, ok := toStrings(v)
			if !ok {
				return nil, fmt.Errorf("categories must be a list of strings")
			}
			p.Categories = ss
		}
		if v, ok := cfg["items"]; ok {
			ss, ok := toStrings(v)
			if !ok {
				return nil, fmt.Errorf("items must be a list of strings")
			}
			p.Items = ss
		}
		if len(p.Categories) == 0 && len(p.Items) == 0 {
			return nil, fmt.Errorf("purchase trigger needs categories or items")
		}
		return p, nil

	case model.TriggerTimeBased:
		tt := TimeTrigger{}
		start, hasStart, err := minuteOfDay(cfg, "start", "start_hour")
		if err != nil {
			return nil, err
		}
		end, hasEnd, err := minuteOfDay(cfg, "end", "end_hour")
		if err != nil {
			return nil, err
		}
		if hasStart != hasEnd {
			return nil, fmt.Errorf("time window needs both start and end")
		}
		if hasStart {
			if start == end {
				return nil, fmt.Errorf("time window is empty")
			}
			tt.StartMinute, tt.EndMinute, tt.HasWindow = start, end, true
		}
		if v, ok := cfg["days"]; ok {
			days, err := toWeekdays(v)
			if err != nil {
				return nil, err
			}
			tt.Days = days
		}
		if !tt.HasWindow && len(tt.Days) == 0 {
			return nil, fmt.Errorf("time trigger needs a window or days")
		}
		return tt, nil

	case model.TriggerAmountBased:
		a := AmountTrigger{}
		for _, key := range []string{"min", "max"} {
			v, ok := cfg[key]
			if !ok || v == nil {
				continue
			}
			f, ok := toFloat(v)
			if !ok {
				return nil, fmt.Errorf("%s must be numeric", key)
			}
			if key == "min" {
				a.Min = &f
			} else {
				a.Max = &f
			}
		}
		if a.Min == nil && a.Max == nil {
			return nil, fmt.Errorf("amount trigger needs min or max")
		}
		if a.Min != nil && a.Max != nil && *a.Min > *a.Max {
			return nil, fmt.Errorf("amount min exceeds max")
		}
		if v, ok := cfg["currency"]; ok {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("currency must be a string")
			}
			a.Currency = strings.TrimSpace(s)
		}
		return a, nil
	}
	return nil, fmt.Errorf("unknown trigger type %q", t.Type)
}

// minuteOfDay reads "HH:MM" from key or a whole hour from hourKey
func minuteOfDay(cfg map[string]interface{}, key, hourKey string) (int, bool, error) {
	if v, ok := cfg[key]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return 0, false, fmt.Errorf("%s must be HH:MM", key)
		}
		parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
		if len(parts) != 2 {
			return 0, false, fmt.Errorf("%s must be HH:MM", key)
		}
		h, errH := strconv.Atoi(parts[0])
		m, errM := strconv.Atoi(parts[1])
		if errH != nil || errM != nil || h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
			return 0, false, fmt.Errorf("%s must be HH:MM", key)
		}
		return h*60 + m, true, nil
	}
	if v, ok := cfg[hourKey]; ok && v != nil {
		f, ok := toFloat(v)
		if !ok || f < 0 || f > 24 || f != math.Trunc(f) {
			return 0, false, fmt.Errorf("%s must be 0-24", hourKey)
		}
		return int(f) * 60, true, nil
	}
	return 0, false, nil
}

func inMinuteWindow(minute, start, end int) bool {
	if start < end {
		return minute >= start && minute < end
	}
	return minute >= start || minute < end
}

// SensitivityAllows reports whether the trigger may fire for this customer:
// only every Nth customer of the business is eligible.
func SensitivityAllows(threshold int, sequence int64) bool {
	if threshold <= 1 {
		return true
	}
	return sequence > 0 && sequence%int64(threshold) == 0
}

// EvaluateTriggers matches every trigger against the context. Outcomes come
// back ordered by trigger id; a malformed trigger is reported as disabled and
// never aborts the rest.
func EvaluateTriggers(triggers []model.DynamicTrigger, ec model.EvaluationContext, loc *time.Location, force []string) []model.TriggerOutcome {
	if loc == nil {
		loc = time.UTC
	}
	forced := make(map[string]bool, len(force))
	for _, id := range force {
		forced[id] = true
	}
	at := ec.TransactionTime.In(loc)

	outcomes := make([]model.TriggerOutcome, 0, len(triggers))
	for _, t := range triggers {
		outcomes = append(outcomes, evaluateTrigger(t, &ec, at, forced[t.ID]))
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].TriggerID < outcomes[j].TriggerID })
	return outcomes
}

func evaluateTrigger(t model.DynamicTrigger, ec *model.EvaluationContext, at time.Time, forced bool) model.TriggerOutcome {
	out := model.TriggerOutcome{
		TriggerID:          t.ID,
		Type:               t.Type,
		EffectivenessScore: t.EffectivenessScore,
		QuestionIDs:        t.QuestionIDs,
	}

	conds, err := compileTrigger(t)
	if err != nil {
		out.Disabled = true
		out.Reason = err.Error()
		return out
	}

	if forced {
		out.Matched, out.Forced, out.Confidence = true, true, 1
		return out
	}

	if !SensitivityAllows(t.SensitivityThreshold, ec.CustomerSequence) {
		out.Gated = true
		out.Reason = fmt.Sprintf("sensitivity: customer %d is not a multiple of %d", ec.CustomerSequence, t.SensitivityThreshold)
		return out
	}

	if t.Type == model.TriggerPurchaseBased && !ec.HasPurchaseData() {
		out.Reason = errNoPurchaseData.Error()
		return out
	}

	var total, matched float64
	hits := 0
	for _, c := range conds {
		total += c.weight
		if c.eval(ec, at) {
			matched += c.weight
			hits++
		}
	}
	if math.IsInf(total, 0) || math.IsNaN(total) {
		out.Disabled = true
		out.Reason = "condition weights overflow"
		return out
	}
	if total > 0 {
		out.Confidence = roundScore(matched / total)
	}
	if t.MatchMode == model.MatchAny {
		out.Matched = hits > 0
	} else {
		out.Matched = hits == len(conds)
	}
	return out
}

func compileTrigger(t model.DynamicTrigger) ([]condition, error) {
	if t.SensitivityThreshold < 0 {
		return nil, fmt.Errorf("negative sensitivity threshold")
	}
	switch t.MatchMode {
	case "", model.MatchAll, model.MatchAny:
	default:
		return nil, fmt.Errorf("unknown match mode %q", t.MatchMode)
	}
	rule, err := ParseTrigger(t)
	if err != nil {
		return nil, err
	}
	conds := rule.conditions()
	for _, tc := range t.Conditions {
		c, err := compileCondition(tc)
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}
	return conds, nil
}

func roundScore(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
