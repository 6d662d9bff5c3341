package loans

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const boardKey = "loans:due-board"

// BoardCache keeps the rendered due board in Redis for a short TTL. Cache
// failures degrade to a repository read, never to an error.
type BoardCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBoardCache constructs a BoardCache.
func NewBoardCache(client *redis.Client, ttl time.Duration) *BoardCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &BoardCache{client: client, ttl: ttl}
}

// Get returns the cached board, if fresh.
func (c *BoardCache) Get(ctx context.Context) ([]LoanView, bool) {
	payload, err := c.client.Get(ctx, boardKey).Bytes()
	if err != nil {
		return nil, false
	}
	var views []LoanView
	if err := json.Unmarshal(payload, &views); err != nil {
		return nil, false
	}
	return views, true
}

// Set stores the board.
func (c *BoardCache) Set(ctx context.Context, views []LoanView) {
	payload, err := json.Marshal(views)
	if err != nil {
		return
	}
	c.client.Set(ctx, boardKey, payload, c.ttl)
}

// Invalidate drops the cached board after a mutation.
func (c *BoardCache) Invalidate(ctx context.Context) {
	c.client.Del(ctx, boardKey)
}
