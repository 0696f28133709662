package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func frequencyStores(t *testing.T) map[string]FrequencyStore {
	_, client := newTestRedis(t)
	return map[string]FrequencyStore{
		"redis":  NewFrequencyStore(client),
		"memory": NewMemoryFrequencyStore(),
	}
}

// ahead of the wall clock so PEXPIREAT never lands in the past
var t0 = time.Now().UTC().Truncate(time.Hour).Add(24 * time.Hour)

func TestFrequencyStore_IncrementUpToTarget(t *testing.T) {
	for name, store := range frequencyStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			day := 24 * time.Hour

			for i := 1; i <= 3; i++ {
				ok, state, err := store.TryIncrement(ctx, "q1", 3, day, t0.Add(time.Duration(i)*time.Minute))
				require.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, i, state.Count)
				assert.Equal(t, t0.Add(time.Minute+day), state.ResetAt)
			}

			ok, state, err := store.TryIncrement(ctx, "q1", 3, day, t0.Add(time.Hour))
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Equal(t, 3, state.Count)

			snap, err := store.Snapshot(ctx, []string{"q1", "q-unseen"})
			require.NoError(t, err)
			assert.Equal(t, 3, snap["q1"].Count)
			assert.Equal(t, t0.Add(time.Minute+day), snap["q1"].ResetAt)
			assert.Equal(t, 0, snap["q-unseen"].Count)
			assert.True(t, snap["q-unseen"].ResetAt.IsZero())
		})
	}
}

func TestFrequencyStore_WindowRollover(t *testing.T) {
	for name, store := range frequencyStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			hour := time.Hour

			_, _, err := store.TryIncrement(ctx, "q1", 1, hour, t0)
			require.NoError(t, err)
			ok, _, err := store.TryIncrement(ctx, "q1", 1, hour, t0.Add(30*time.Minute))
			require.NoError(t, err)
			assert.False(t, ok)

			ok, state, err := store.TryIncrement(ctx, "q1", 1, hour, t0.Add(150*time.Minute))
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, 1, state.Count)
			assert.Equal(t, t0.Add(3*hour), state.ResetAt)
		})
	}
}

func TestFrequencyStore_UncappedAlwaysCounts(t *testing.T) {
	for name, store := range frequencyStores(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 5; i++ {
				ok, _, err := store.TryIncrement(context.Background(), "q1", 0, time.Hour, t0)
				require.NoError(t, err)
				assert.True(t, ok)
			}
			snap, err := store.Snapshot(context.Background(), []string{"q1"})
			require.NoError(t, err)
			assert.Equal(t, 5, snap["q1"].Count)
		})
	}
}

func TestFrequencyStore_ConcurrentIncrementsNeverExceedTarget(t *testing.T) {
	for name, store := range frequencyStores(t) {
		t.Run(name, func(t *testing.T) {
			const target = 4
			var granted int32
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, _, err := store.TryIncrement(context.Background(), "q-hot", target, time.Hour, t0)
					if err == nil && ok {
						atomic.AddInt32(&granted, 1)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(target), granted)

			snap, err := store.Snapshot(context.Background(), []string{"q-hot"})
			require.NoError(t, err)
			assert.Equal(t, target, snap["q-hot"].Count)
		})
	}
}

func TestFrequencyStore_RejectsEmptyWindow(t *testing.T) {
	for name, store := range frequencyStores(t) {
		t.Run(name, func(t *testing.T) {
			_, _, err := store.TryIncrement(context.Background(), "q1", 1, 0, t0)
			assert.Error(t, err)
		})
	}
}

func TestFrequencyStore_RedisUnavailable(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewFrequencyStore(client)
	mr.Close()

	_, err := store.Snapshot(context.Background(), []string{"q1"})
	assert.Error(t, err)
	_, _, err = store.TryIncrement(context.Background(), "q1", 1, time.Hour, t0)
	assert.Error(t, err)
}
