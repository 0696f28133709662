package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"voicefeedback/internal/model"
)

// FrequencyStore holds per-question presentation counters shared by every
// engine instance.
type FrequencyStore interface {
	// Snapshot returns the stored state of each question, zero when absent
	Snapshot(ctx context.Context, questionIDs []string) (map[string]model.FrequencyState, error)
	// TryIncrement rolls the window if needed and adds one presentation unless
	// target (> 0) is already reached. The check and the write are atomic.
	TryIncrement(ctx context.Context, questionID string, target int, window time.Duration, now time.Time) (bool, model.FrequencyState, error)
}

// incrementScript: KEYS[1] counter hash, ARGV now ms, window ms, target.
// Fields c (count) and r (window reset, unix ms).
var incrementScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local target = tonumber(ARGV[3])
local c = tonumber(redis.call('HGET', KEYS[1], 'c') or '0')
local r = tonumber(redis.call('HGET', KEYS[1], 'r') or '0')
if r == 0 then
  c = 0
  r = now + window
elseif now >= r then
  c = 0
  r = r + (math.floor((now - r) / window) + 1) * window
end
if target > 0 and c >= target then
  redis.call('HSET', KEYS[1], 'c', string.format('%d', c), 'r', string.format('%d', r))
  return {0, c, r}
end
c = c + 1
redis.call('HSET', KEYS[1], 'c', string.format('%d', c), 'r', string.format('%d', r))
redis.call('PEXPIREAT', KEYS[1], string.format('%d', r + window))
return {1, c, r}
`)

type frequencyStore struct {
	client *redis.Client
}

// NewFrequencyStore creates a Redis backed frequency store
func NewFrequencyStore(client *redis.Client) FrequencyStore {
	return &frequencyStore{client: client}
}

func (s *frequencyStore) key(questionID string) string {
	return fmt.Sprintf("freq:%s", questionID)
}

func (s *frequencyStore) Snapshot(ctx context.Context, questionIDs []string) (map[string]model.FrequencyState, error) {
	out := make(map[string]model.FrequencyState, len(questionIDs))
	if len(questionIDs) == 0 {
		return out, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.SliceCmd, len(questionIDs))
	for i, id := range questionIDs {
		cmds[i] = pipe.HMGet(ctx, s.key(id), "c", "r")
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	for i, id := range questionIDs {
		vals, err := cmds[i].Result()
		if err != nil && err != redis.Nil {
			return nil, err
		}
		state := model.FrequencyState{QuestionID: id}
		if len(vals) == 2 {
			if c, ok := parseInt(vals[0]); ok {
				state.Count = int(c)
			}
			if r, ok := parseInt(vals[1]); ok && r > 0 {
				state.ResetAt = time.UnixMilli(r).UTC()
			}
		}
		out[id] = state
	}
	return out, nil
}

func (s *frequencyStore) TryIncrement(ctx context.Context, questionID string, target int, window time.Duration, now time.Time) (bool, model.FrequencyState, error) {
	if window <= 0 {
		return false, model.FrequencyState{}, fmt.Errorf("frequency window must be positive")
	}
	res, err := incrementScript.Run(ctx, s.client, []string{s.key(questionID)},
		now.UnixMilli(), window.Milliseconds(), target).Int64Slice()
	if err != nil {
		return false, model.FrequencyState{}, err
	}
	if len(res) != 3 {
		return false, model.FrequencyState{}, fmt.Errorf("unexpected increment reply %v", res)
	}
	state := model.FrequencyState{
		QuestionID: questionID,
		Count:      int(res[1]),
		ResetAt:    time.UnixMilli(res[2]).UTC(),
	}
	return res[0] == 1, state, nil
}

func parseInt(v interface{}) (int64, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

type memoryFrequencyStore struct {
	mu     sync.Mutex
	states map[string]model.FrequencyState
}

// NewMemoryFrequencyStore keeps counters in process. Only valid for a
// single engine instance.
func NewMemoryFrequencyStore() FrequencyStore {
	return &memoryFrequencyStore{states: make(map[string]model.FrequencyState)}
}

func (s *memoryFrequencyStore) Snapshot(_ context.Context, questionIDs []string) (map[string]model.FrequencyState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]model.FrequencyState, len(questionIDs))
	for _, id := range questionIDs {
		state, ok := s.states[id]
		if !ok {
			state = model.FrequencyState{QuestionID: id}
		}
		out[id] = state
	}
	return out, nil
}

func (s *memoryFrequencyStore) TryIncrement(_ context.Context, questionID string, target int, window time.Duration, now time.Time) (bool, model.FrequencyState, error) {
	if window <= 0 {
		return false, model.FrequencyState{}, fmt.Errorf("frequency window must be positive")
	}
	now = time.UnixMilli(now.UnixMilli()).UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[questionID]
	if !ok || state.ResetAt.IsZero() {
		state = model.FrequencyState{QuestionID: questionID, ResetAt: now.Add(window)}
	} else {
		state = state.Rolled(now, window)
	}
	if target > 0 && state.Count >= target {
		s.states[questionID] = state
		return false, state, nil
	}
	state.Count++
	s.states[questionID] = state
	return true, state, nil
}
