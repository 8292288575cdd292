package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// PredictionCache keeps ranked owner predictions in redis so the unresolved
// dashboard can poll without re-running inference.
type PredictionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPredictionCache creates a cache with the given entry TTL.
func NewPredictionCache(client *redis.Client, ttl time.Duration) *PredictionCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &PredictionCache{client: client, ttl: ttl}
}

func (c *PredictionCache) key(cardID string) string {
	return "ethos:predictions:" + cardID
}

// Set stores the ranked predictions for a card.
func (c *PredictionCache) Set(ctx context.Context, cardID string, predictions any) error {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := json.Marshal(predictions)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(cardID), payload, c.ttl).Err()
}

// Get returns the cached predictions payload for a card, or false on miss.
func (c *PredictionCache) Get(ctx context.Context, cardID string) (json.RawMessage, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	payload, err := c.client.Get(ctx, c.key(cardID)).Bytes()
	if err != nil {
		return nil, false
	}
	return payload, true
}

// Invalidate drops the cached predictions for a card.
func (c *PredictionCache) Invalidate(ctx context.Context, cardID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, c.key(cardID)).Err()
}
