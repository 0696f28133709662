package service

import (
	"context"
	"sync"
	"time"

	"voicefeedback/internal/cache"
	"voicefeedback/internal/model"
)

type fakeQuestionRepo struct {
	questions []*model.Question
	err       error
}

func (r *fakeQuestionRepo) Create(_ context.Context, q *model.Question) error {
	r.questions = append(r.questions, q)
	return nil
}

func (r *fakeQuestionRepo) GetByID(_ context.Context, id string) (*model.Question, error) {
	for _, q := range r.questions {
		if q.ID == id {
			return q, nil
		}
	}
	return nil, nil
}

func (r *fakeQuestionRepo) Update(context.Context, *model.Question) error { return nil }
func (r *fakeQuestionRepo) Delete(context.Context, string) error          { return nil }

func (r *fakeQuestionRepo) GetActiveByBusiness(_ context.Context, businessID, _ string) ([]*model.Question, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []*model.Question
	for _, q := range r.questions {
		if q.BusinessContextID == businessID && q.Active {
			out = append(out, q)
		}
	}
	return out, nil
}

type fakeTriggerRepo struct {
	triggers []*model.DynamicTrigger
	err      error
}

func (r *fakeTriggerRepo) Create(_ context.Context, t *model.DynamicTrigger) error {
	r.triggers = append(r.triggers, t)
	return nil
}

func (r *fakeTriggerRepo) Update(context.Context, *model.DynamicTrigger) error { return nil }

func (r *fakeTriggerRepo) GetActiveByBusiness(context.Context, string) ([]*model.DynamicTrigger, error) {
	return r.triggers, r.err
}

type fakeRuleRepo struct {
	rule    *model.CombinationRule
	weights []*model.PriorityWeight
	err     error
}

func (r *fakeRuleRepo) GetActive(context.Context, string) (*model.CombinationRule, error) {
	return r.rule, r.err
}

func (r *fakeRuleRepo) Upsert(_ context.Context, rule *model.CombinationRule) error {
	r.rule = rule
	return nil
}

func (r *fakeRuleRepo) GetWeights(context.Context, string) ([]*model.PriorityWeight, error) {
	return r.weights, r.err
}

func (r *fakeRuleRepo) SaveWeight(_ context.Context, w *model.PriorityWeight) error {
	r.weights = append(r.weights, w)
	return nil
}

type fakeActivationRepo struct {
	mu      sync.Mutex
	entries []*model.ActivationLogEntry
	err     error
	cutoff  time.Time
}

func (r *fakeActivationRepo) InsertMany(_ context.Context, entries []*model.ActivationLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, entries...)
	return nil
}

func (r *fakeActivationRepo) MarkAsked(_ context.Context, evaluationID string, questionIDs []string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	want := make(map[string]bool, len(questionIDs))
	for _, id := range questionIDs {
		want[id] = true
	}
	var n int64
	for _, e := range r.entries {
		if e.EvaluationID == evaluationID && e.WasSelected && want[e.QuestionID] && !e.WasAsked {
			e.WasAsked = true
			asked := at
			e.AskedAt = &asked
			n++
		}
	}
	return n, nil
}

func (r *fakeActivationRepo) GetByEvaluation(_ context.Context, evaluationID string) ([]*model.ActivationLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []*model.ActivationLogEntry
	for _, e := range r.entries {
		if e.EvaluationID == evaluationID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeActivationRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	r.cutoff = cutoff
	kept := r.entries[:0]
	var n int64
	for _, e := range r.entries {
		if e.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return n, nil
}

func (r *fakeActivationRepo) EnsureIndexes(context.Context) error { return nil }

func (r *fakeActivationRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// refusingStore declines increments for the listed questions, as if another
// evaluation had taken their last slot.
type refusingStore struct {
	cache.FrequencyStore
	refuse map[string]bool
}

func (s *refusingStore) TryIncrement(ctx context.Context, id string, target int, window time.Duration, now time.Time) (bool, model.FrequencyState, error) {
	if s.refuse[id] {
		return false, model.FrequencyState{QuestionID: id, Count: target}, nil
	}
	return s.FrequencyStore.TryIncrement(ctx, id, target, window, now)
}

type failingStore struct {
	cache.FrequencyStore
	err error
}

func (s *failingStore) Snapshot(context.Context, []string) (map[string]model.FrequencyState, error) {
	return nil, s.err
}

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []string
}

func (b *recordingBroadcaster) BroadcastToBusiness(businessID, msgType string, _ interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, businessID+":"+msgType)
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages)
}
