package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// SequenceCounter hands out per-business customer sequence numbers, starting at 1
type SequenceCounter interface {
	Next(ctx context.Context, businessID string) (int64, error)
}

type sequenceCounter struct {
	client *redis.Client
}

// NewSequenceCounter creates a Redis backed sequence counter
func NewSequenceCounter(client *redis.Client) SequenceCounter {
	return &sequenceCounter{client: client}
}

func (c *sequenceCounter) Next(ctx context.Context, businessID string) (int64, error) {
	return c.client.Incr(ctx, fmt.Sprintf("seq:%s", businessID)).Result()
}

type memorySequenceCounter struct {
	mu   sync.Mutex
	next map[string]int64
}

// NewMemorySequenceCounter counts in process
func NewMemorySequenceCounter() SequenceCounter {
	return &memorySequenceCounter{next: make(map[string]int64)}
}

func (c *memorySequenceCounter) Next(_ context.Context, businessID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next[businessID]++
	return c.next[businessID], nil
}
