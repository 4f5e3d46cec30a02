// Package cache holds the Redis read cache for document state. The cache is
// best-effort: every miss or Redis failure falls back to the relational
// database, so callers never treat a cache error as fatal.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"formvault/internal/config"
	"formvault/internal/model"
)

const keyPrefix = "document:state:"

// ErrMiss is returned by GetState when the key is absent.
var ErrMiss = errors.New("cache: miss")

// DocumentCache caches the live document state keyed by document ID.
type DocumentCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewClient builds a go-redis client from configuration.
func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewDocumentCache creates a DocumentCache with the configured TTL.
func NewDocumentCache(client *redis.Client, cfg config.RedisConfig) *DocumentCache {
	return &DocumentCache{
		client: client,
		ttl:    time.Duration(cfg.TTLSec) * time.Second,
	}
}

// GetState returns the cached state for a document, or ErrMiss.
func (c *DocumentCache) GetState(ctx context.Context, documentID string) (model.FieldMap, error) {
	raw, err := c.client.Get(ctx, keyPrefix+documentID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var state model.FieldMap
	if err := json.Unmarshal(raw, &state); err != nil {
		// A corrupt entry behaves like a miss; the next SetState repairs it.
		return nil, ErrMiss
	}
	return state, nil
}

// SetState stores the state under the document's key with the cache TTL.
func (c *DocumentCache) SetState(ctx context.Context, documentID string, state model.FieldMap) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+documentID, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate drops the cached state for a document. Absent keys are fine.
func (c *DocumentCache) Invalidate(ctx context.Context, documentID string) error {
	if err := c.client.Del(ctx, keyPrefix+documentID).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}
