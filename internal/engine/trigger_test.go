package engine

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicefeedback/internal/model"
)

func amount(v float64) *float64 { return &v }

// Wednesday 2026-03-04 14:30 UTC
var wednesdayAfternoon = time.Date(2026, 3, 4, 14, 30, 0, 0, time.UTC)

func produceTrigger() model.DynamicTrigger {
	return model.DynamicTrigger{
		ID:                   "trg-produce",
		Type:                 model.TriggerPurchaseBased,
		Config:               map[string]interface{}{"categories": []interface{}{"produce", "bakery"}},
		SensitivityThreshold: 10,
		QuestionIDs:          []string{"q-fresh"},
	}
}

func TestEvaluateTriggers_SensitivityGate(t *testing.T) {
	ec := model.EvaluationContext{
		CustomerSequence:   7,
		TransactionTime:    wednesdayAfternoon,
		PurchaseCategories: []string{"Produce"},
	}

	out := EvaluateTriggers([]model.DynamicTrigger{produceTrigger()}, ec, time.UTC, nil)
	require.Len(t, out, 1)
	assert.False(t, out[0].Matched)
	assert.True(t, out[0].Gated)
	assert.Zero(t, out[0].Confidence)

	ec.CustomerSequence = 10
	out = EvaluateTriggers([]model.DynamicTrigger{produceTrigger()}, ec, time.UTC, nil)
	require.Len(t, out, 1)
	assert.True(t, out[0].Matched)
	assert.False(t, out[0].Gated)
	assert.Greater(t, out[0].Confidence, 0.0)
}

func TestSensitivityAllows(t *testing.T) {
	assert.True(t, SensitivityAllows(0, 0))
	assert.True(t, SensitivityAllows(1, 3))
	assert.False(t, SensitivityAllows(5, 0))
	assert.False(t, SensitivityAllows(5, 4))
	assert.True(t, SensitivityAllows(5, 15))
}

func TestEvaluateTriggers_MissingPurchaseDataIsNotMatched(t *testing.T) {
	trg := produceTrigger()
	trg.SensitivityThreshold = 1
	ec := model.EvaluationContext{CustomerSequence: 1, TransactionTime: wednesdayAfternoon}

	out := EvaluateTriggers([]model.DynamicTrigger{trg}, ec, time.UTC, nil)
	require.Len(t, out, 1)
	assert.False(t, out[0].Matched)
	assert.False(t, out[0].Disabled)
	assert.Equal(t, "no purchase data", out[0].Reason)
}

func TestEvaluateTriggers_MalformedConfigDisablesOnlyThatTrigger(t *testing.T) {
	broken := model.DynamicTrigger{
		ID:     "trg-broken",
		Type:   model.TriggerAmountBased,
		Config: map[string]interface{}{"min": "lots"},
	}
	unknown := model.DynamicTrigger{ID: "trg-unknown", Type: "weather_based"}
	infinite := model.DynamicTrigger{
		ID:         "trg-infinite",
		Type:       model.TriggerAmountBased,
		Config:     map[string]interface{}{"min": 10},
		Conditions: []model.TriggerCondition{{Key: "amount", Operator: "gt", Value: 0, Weight: math.Inf(1)}},
	}
	overflow := model.DynamicTrigger{
		ID:     "trg-overflow",
		Type:   model.TriggerAmountBased,
		Config: map[string]interface{}{"min": 10},
		Conditions: []model.TriggerCondition{
			{Key: "amount", Operator: "gt", Value: 0, Weight: math.MaxFloat64},
			{Key: "amount", Operator: "lt", Value: 1000, Weight: math.MaxFloat64},
		},
	}
	good := model.DynamicTrigger{
		ID:     "trg-big",
		Type:   model.TriggerAmountBased,
		Config: map[string]interface{}{"min": 100},
	}
	ec := model.EvaluationContext{CustomerSequence: 3, TransactionTime: wednesdayAfternoon, TransactionAmount: amount(250)}

	out := EvaluateTriggers([]model.DynamicTrigger{good, broken, unknown, infinite, overflow}, ec, time.UTC, nil)
	require.Len(t, out, 5)
	assert.Equal(t, "trg-big", out[0].TriggerID)
	assert.True(t, out[0].Matched)
	assert.Equal(t, 1.0, out[0].Confidence)
	assert.Equal(t, "trg-broken", out[1].TriggerID)
	assert.True(t, out[1].Disabled)
	assert.False(t, out[1].Matched)
	for _, o := range out[2:4] {
		assert.True(t, o.Disabled, o.TriggerID)
		assert.False(t, o.Matched, o.TriggerID)
		assert.False(t, math.IsNaN(o.Confidence), o.TriggerID)
	}
	assert.Equal(t, "trg-infinite", out[2].TriggerID)
	assert.Equal(t, "trg-overflow", out[3].TriggerID)
	assert.Equal(t, "trg-unknown", out[4].TriggerID)
	assert.True(t, out[4].Disabled)
	assert.Contains(t, out[4].Reason, "unknown trigger type")

	_, err := json.Marshal(out)
	assert.NoError(t, err)
}

func TestEvaluateTriggers_ConfidenceIsWeightedFraction(t *testing.T) {
	trg := model.DynamicTrigger{
		ID:        "trg-lunch",
		Type:      model.TriggerTimeBased,
		MatchMode: model.MatchAny,
		Config:    map[string]interface{}{"start": "11:00", "end": "15:00", "days": []interface{}{"sat", "sun"}},
		Conditions: []model.TriggerCondition{
			{Key: "amount", Operator: "gte", Value: 20.0, Weight: 2},
		},
	}
	ec := model.EvaluationContext{TransactionTime: wednesdayAfternoon, TransactionAmount: amount(35)}

	out := EvaluateTriggers([]model.DynamicTrigger{trg}, ec, time.UTC, nil)
	require.Len(t, out, 1)
	// window (1) + amount (2) matched out of window, days, amount = 4
	assert.Equal(t, 0.75, out[0].Confidence)
	assert.True(t, out[0].Matched)

	trg.MatchMode = model.MatchAll
	out = EvaluateTriggers([]model.DynamicTrigger{trg}, ec, time.UTC, nil)
	assert.False(t, out[0].Matched)
	assert.Equal(t, 0.75, out[0].Confidence)
}

func TestEvaluateTriggers_TimeWindowUsesBusinessTimezone(t *testing.T) {
	loc := time.FixedZone("EST", -5*60*60)
	trg := model.DynamicTrigger{
		ID:     "trg-morning",
		Type:   model.TriggerTimeBased,
		Config: map[string]interface{}{"start_hour": 9, "end_hour": 12},
	}
	// 14:30 UTC is 09:30 EST
	ec := model.EvaluationContext{TransactionTime: wednesdayAfternoon}

	assert.True(t, EvaluateTriggers([]model.DynamicTrigger{trg}, ec, loc, nil)[0].Matched)
	assert.False(t, EvaluateTriggers([]model.DynamicTrigger{trg}, ec, time.UTC, nil)[0].Matched)
}

func TestEvaluateTriggers_ForceBypassesGate(t *testing.T) {
	trg := produceTrigger()
	ec := model.EvaluationContext{CustomerSequence: 7, TransactionTime: wednesdayAfternoon}

	out := EvaluateTriggers([]model.DynamicTrigger{trg}, ec, time.UTC, []string{"trg-produce"})
	require.Len(t, out, 1)
	assert.True(t, out[0].Matched)
	assert.True(t, out[0].Forced)
	assert.Equal(t, 1.0, out[0].Confidence)
}

func TestParseTrigger_Variants(t *testing.T) {
	rule, err := ParseTrigger(model.DynamicTrigger{Type: model.TriggerTimeBased, Config: map[string]interface{}{"start": "22:00", "end": "02:00"}})
	require.NoError(t, err)
	tt, ok := rule.(TimeTrigger)
	require.True(t, ok)
	assert.Equal(t, 22*60, tt.StartMinute)
	assert.Equal(t, 2*60, tt.EndMinute)

	rule, err = ParseTrigger(model.DynamicTrigger{Type: model.TriggerAmountBased, Config: map[string]interface{}{"min": int32(10), "max": 50.5, "currency": "usd"}})
	require.NoError(t, err)
	at, ok := rule.(AmountTrigger)
	require.True(t, ok)
	assert.Equal(t, 10.0, *at.Min)
	assert.Equal(t, 50.5, *at.Max)

	_, err = ParseTrigger(model.DynamicTrigger{Type: model.TriggerAmountBased, Config: map[string]interface{}{"min": 60, "max": 50}})
	assert.Error(t, err)
	_, err = ParseTrigger(model.DynamicTrigger{Type: model.TriggerTimeBased, Config: map[string]interface{}{"start": "25:00", "end": "02:00"}})
	assert.Error(t, err)
	_, err = ParseTrigger(model.DynamicTrigger{Type: model.TriggerPurchaseBased, Config: map[string]interface{}{}})
	assert.Error(t, err)
}

func TestCompileCondition_Operators(t *testing.T) {
	ec := &model.EvaluationContext{
		Currency:           "EUR",
		TransactionAmount:  amount(42),
		PurchaseCategories: []string{"Dairy"},
		PurchaseItems:      []string{"oat milk 1l", "bread"},
	}
	cases := []struct {
		cond model.TriggerCondition
		want bool
	}{
		{model.TriggerCondition{Key: "category", Operator: "in", Value: []interface{}{"dairy"}}, true},
		{model.TriggerCondition{Key: "category", Operator: "not_in", Value: []interface{}{"dairy"}}, false},
		{model.TriggerCondition{Key: "item", Operator: "contains", Value: "milk"}, true},
		{model.TriggerCondition{Key: "amount", Operator: "between", Value: []interface{}{40, 50}}, true},
		{model.TriggerCondition{Key: "amount", Operator: "lt", Value: 10}, false},
		{model.TriggerCondition{Key: "currency", Operator: "eq", Value: "eur"}, true},
		{model.TriggerCondition{Key: "hour", Operator: "gte", Value: 14}, true},
		{model.TriggerCondition{Key: "item_count", Operator: "eq", Value: 2}, true},
		{model.TriggerCondition{Key: "day_of_week", Operator: "in", Value: []interface{}{3}}, true},
		{model.TriggerCondition{Key: "day_of_week", Operator: "neq", Value: "wed"}, false},
	}
	for _, tc := range cases {
		c, err := compileCondition(tc.cond)
		require.NoError(t, err, tc.cond.Key)
		assert.Equal(t, tc.want, c.eval(ec, wednesdayAfternoon), "%s %s", tc.cond.Key, tc.cond.Operator)
	}

	_, err := compileCondition(model.TriggerCondition{Key: "loyalty", Operator: "eq", Value: 1})
	assert.Error(t, err)
	_, err = compileCondition(model.TriggerCondition{Key: "amount", Operator: "gt", Value: 0, Weight: math.Inf(1)})
	assert.Error(t, err)
	_, err = compileCondition(model.TriggerCondition{Key: "amount", Operator: "gt", Value: float32(math.Inf(1))})
	assert.Error(t, err)
	_, err = compileCondition(model.TriggerCondition{Key: "amount", Operator: "gt", Value: "NaN"})
	assert.Error(t, err)
	_, err = compileCondition(model.TriggerCondition{Key: "amount", Operator: "like", Value: 1})
	assert.Error(t, err)
}
