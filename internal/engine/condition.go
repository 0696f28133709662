package engine

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"voicefeedback/internal/model"
)

// condition is one compiled check of a trigger. at is the transaction time in
// the business timezone.
type condition struct {
	name   string
	weight float64
	eval   func(ec *model.EvaluationContext, at time.Time) bool
}

const (
	opEq       = "eq"
	opNeq      = "neq"
	opGt       = "gt"
	opGte      = "gte"
	opLt       = "lt"
	opLte      = "lte"
	opIn       = "in"
	opNotIn    = "not_in"
	opContains = "contains"
	opBetween  = "between"
)

func compileCondition(tc model.TriggerCondition) (condition, error) {
	weight := tc.Weight
	if weight == 0 {
		weight = 1
	}
	if weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return condition{}, fmt.Errorf("condition %q: weight must be a finite non-negative number", tc.Key)
	}
	op := strings.ToLower(strings.TrimSpace(tc.Operator))
	key := strings.ToLower(strings.TrimSpace(tc.Key))
	name := key + ":" + op

	switch key {
	case "category", "item":
		match, err := setMatcher(op, tc.Value)
		if err != nil {
			return condition{}, fmt.Errorf("condition %q: %w", key, err)
		}
		return condition{name: name, weight: weight, eval: func(ec *model.EvaluationContext, _ time.Time) bool {
			if key == "category" {
				return match(ec.PurchaseCategories)
			}
			return match(ec.PurchaseItems)
		}}, nil

	case "currency":
		match, err := setMatcher(op, tc.Value)
		if err != nil {
			return condition{}, fmt.Errorf("condition %q: %w", key, err)
		}
		return condition{name: name, weight: weight, eval: func(ec *model.EvaluationContext, _ time.Time) bool {
			if ec.Currency == "" {
				return false
			}
			return match([]string{ec.Currency})
		}}, nil

	case "amount", "hour", "item_count":
		cmp, err := numberMatcher(op, tc.Value)
		if err != nil {
			return condition{}, fmt.Errorf("condition %q: %w", key, err)
		}
		return condition{name: name, weight: weight, eval: func(ec *model.EvaluationContext, at time.Time) bool {
			switch key {
			case "amount":
				if ec.TransactionAmount == nil {
					return false
				}
				return cmp(*ec.TransactionAmount)
			case "hour":
				return cmp(float64(at.Hour()))
			default:
				return cmp(float64(len(ec.PurchaseItems)))
			}
		}}, nil

	case "day_of_week":
		days, err := toWeekdays(tc.Value)
		if err != nil {
			return condition{}, fmt.Errorf("condition %q: %w", key, err)
		}
		var negate bool
		switch op {
		case opEq, opIn:
		case opNeq, opNotIn:
			negate = true
		default:
			return condition{}, fmt.Errorf("condition %q: unsupported operator %q", key, op)
		}
		return condition{name: name, weight: weight, eval: func(_ *model.EvaluationContext, at time.Time) bool {
			return containsWeekday(days, at.Weekday()) != negate
		}}, nil
	}
	return condition{}, fmt.Errorf("unknown condition key %q", tc.Key)
}

// setMatcher matches when any supplied value satisfies op against the configured set
func setMatcher(op string, raw interface{}) (func([]string) bool, error) {
	want, ok := toStrings(raw)
	if !ok || len(want) == 0 {
		return nil, fmt.Errorf("value must be a string or list of strings")
	}
	set := make(map[string]struct{}, len(want))
	for _, w := range want {
		set[normalize(w)] = struct{}{}
	}
	anyIn := func(values []string) bool {
		for _, v := range values {
			if _, ok := set[normalize(v)]; ok {
				return true
			}
		}
		return false
	}
	switch op {
	case opEq, opIn:
		return anyIn, nil
	case opNeq, opNotIn:
		return func(values []string) bool { return len(values) > 0 && !anyIn(values) }, nil
	case opContains:
		return func(values []string) bool {
			for _, v := range values {
				for w := range set {
					if strings.Contains(normalize(v), w) {
						return true
					}
				}
			}
			return false
		}, nil
	}
	return nil, fmt.Errorf("unsupported operator %q", op)
}

func numberMatcher(op string, raw interface{}) (func(float64) bool, error) {
	if op == opBetween {
		bounds, ok := toFloats(raw)
		if !ok || len(bounds) != 2 || bounds[0] > bounds[1] {
			return nil, fmt.Errorf("between needs [min, max]")
		}
		return func(v float64) bool { return v >= bounds[0] && v <= bounds[1] }, nil
	}
	if op == opIn || op == opNotIn {
		values, ok := toFloats(raw)
		if !ok || len(values) == 0 {
			return nil, fmt.Errorf("%s needs a list of numbers", op)
		}
		return func(v float64) bool {
			found := false
			for _, x := range values {
				if x == v {
					found = true
					break
				}
			}
			return found == (op == opIn)
		}, nil
	}
	want, ok := toFloat(raw)
	if !ok {
		return nil, fmt.Errorf("value must be numeric")
	}
	switch op {
	case opEq:
		return func(v float64) bool { return v == want }, nil
	case opNeq:
		return func(v float64) bool { return v != want }, nil
	case opGt:
		return func(v float64) bool { return v > want }, nil
	case opGte:
		return func(v float64) bool { return v >= want }, nil
	case opLt:
		return func(v float64) bool { return v < want }, nil
	case opLte:
		return func(v float64) bool { return v <= want }, nil
	}
	return nil, fmt.Errorf("unsupported operator %q", op)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Payload values arrive from BSON or JSON, so numbers may be any of these.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		f := float64(n)
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return 0, false
}

func toFloats(v interface{}) ([]float64, bool) {
	items, ok := toList(v)
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, len(items))
	for _, it := range items {
		f, ok := toFloat(it)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

func toStrings(v interface{}) ([]string, bool) {
	if s, ok := v.(string); ok {
		return []string{s}, true
	}
	if ss, ok := v.([]string); ok {
		return ss, true
	}
	items, ok := toList(v)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// toList accepts any slice, including the driver's primitive.A.
func toList(v interface{}) ([]interface{}, bool) {
	if l, ok := v.([]interface{}); ok {
		return l, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

func toWeekdays(v interface{}) ([]time.Weekday, error) {
	items, ok := toList(v)
	if !ok {
		if s, isStr := v.(string); isStr {
			items = []interface{}{s}
		} else if f, isNum := toFloat(v); isNum {
			items = []interface{}{f}
		} else {
			return nil, fmt.Errorf("days must be names or 0-6")
		}
	}
	out := make([]time.Weekday, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			d, known := weekdayNames[normalize(s)]
			if !known {
				return nil, fmt.Errorf("unknown day %q", s)
			}
			out = append(out, d)
			continue
		}
		f, ok := toFloat(it)
		if !ok || f < 0 || f > 6 || f != math.Trunc(f) {
			return nil, fmt.Errorf("day must be 0-6")
		}
		out = append(out, time.Weekday(int(f)))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no days given")
	}
	return out, nil
}

func containsWeekday(days []time.Weekday, d time.Weekday) bool {
	for _, x := range days {
		if x == d {
			return true
		}
	}
	return false
}
