package clients

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"loanbook/internal/ledger"
)

// profitCacheTTL keeps chain profit reads cheap without letting stale
// figures linger; mutations invalidate eagerly on top of this.
const profitCacheTTL = 30 * time.Second

// RedisProfitCache caches consolidated chain profit keyed by chain root.
// Misses and redis failures fall through to a full recompute, so the cache
// is purely an accelerator.
type RedisProfitCache struct {
	redis *RedisClient
}

func NewRedisProfitCache(redis *RedisClient) *RedisProfitCache {
	return &RedisProfitCache{redis: redis}
}

func (c *RedisProfitCache) key(rootID string) string {
	return "chain_profit:" + rootID
}

func (c *RedisProfitCache) GetProfit(ctx context.Context, rootID string) (*ledger.ChainProfit, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, c.key(rootID))
	if err != nil {
		return nil, false
	}
	var p ledger.ChainProfit
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, false
	}
	return &p, true
}

func (c *RedisProfitCache) SetProfit(ctx context.Context, rootID string, p ledger.ChainProfit) {
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, c.key(rootID), string(data), profitCacheTTL); err != nil {
		log.Printf("[CACHE] set chain profit %s: %v", rootID, err)
	}
}

func (c *RedisProfitCache) InvalidateProfit(ctx context.Context, rootID string) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, c.key(rootID)); err != nil {
		log.Printf("[CACHE] invalidate chain profit %s: %v", rootID, err)
	}
}
