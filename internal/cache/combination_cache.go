package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"voicefeedback/internal/model"
)

// CombinationCache memoizes optimizer plans by input fingerprint
type CombinationCache interface {
	Get(ctx context.Context, key string) (*model.CombinationEntry, error)
	Set(ctx context.Context, key string, entry *model.CombinationEntry, ttl time.Duration) error
}

type combinationCache struct {
	client *redis.Client
}

// NewCombinationCache creates a Redis backed combination cache
func NewCombinationCache(client *redis.Client) CombinationCache {
	return &combinationCache{client: client}
}

func (c *combinationCache) key(key string) string {
	return fmt.Sprintf("combo:%s", key)
}

func (c *combinationCache) Set(ctx context.Context, key string, entry *model.CombinationEntry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(key), data, ttl).Err()
}

func (c *combinationCache) Get(ctx context.Context, key string) (*model.CombinationEntry, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entry model.CombinationEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

type memoryCombinationCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryCombinationCache keeps entries in process
func NewMemoryCombinationCache() CombinationCache {
	return &memoryCombinationCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *memoryCombinationCache) Set(_ context.Context, key string, entry *model.CombinationEntry, ttl time.Duration) error {
	// stored encoded so callers never share the cached plan's slices
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	e := memoryEntry{data: data}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

func (c *memoryCombinationCache) Get(_ context.Context, key string) (*model.CombinationEntry, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, nil
	}
	var entry model.CombinationEntry
	if err := json.Unmarshal(e.data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
