package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/outcomefi/clob/internal/domain"
)

// DepthCache implements domain.DepthCache, caching serialized depth
// snapshots per (market, outcome) pair.
//
// Key schema:
//
//	depth:{marketKey}:{outcomeIndex} - JSON DepthSnapshot
type DepthCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewDepthCache creates a DepthCache backed by the given Client. A zero ttl
// disables expiry.
func NewDepthCache(c *Client, ttl time.Duration) *DepthCache {
	return &DepthCache{rdb: c.Underlying(), ttl: ttl}
}

func depthKey(key domain.MarketKey, outcome int) string {
	return "depth:" + string(key) + ":" + strconv.Itoa(outcome)
}

// SetDepth stores a depth snapshot.
func (dc *DepthCache) SetDepth(ctx context.Context, snap domain.DepthSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal depth snapshot: %w", err)
	}
	k := depthKey(snap.MarketKey, snap.OutcomeIndex)
	if err := dc.rdb.Set(ctx, k, payload, dc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", k, err)
	}
	return nil
}

// GetDepth returns the cached snapshot, or domain.ErrNotFound.
func (dc *DepthCache) GetDepth(ctx context.Context, key domain.MarketKey, outcome int) (domain.DepthSnapshot, error) {
	k := depthKey(key, outcome)
	payload, err := dc.rdb.Get(ctx, k).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.DepthSnapshot{}, domain.ErrNotFound
		}
		return domain.DepthSnapshot{}, fmt.Errorf("redis: get %s: %w", k, err)
	}

	var snap domain.DepthSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return domain.DepthSnapshot{}, fmt.Errorf("redis: unmarshal depth snapshot: %w", err)
	}
	return snap, nil
}
