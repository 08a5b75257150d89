package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/feedback-service/internal/domain"
)

const (
	featuredKey    = "reviews:featured"
	featuredGenKey = "reviews:featured:gen"
)

// FeaturedCache keeps the serialized featured list in Redis. A nil
// *FeaturedCache is valid and behaves as a permanent miss.
//
// Every Invalidate bumps a generation counter. A fill only lands if the
// generation it read before querying the store is still current.
type FeaturedCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewFeaturedCache returns nil when client is nil so callers can skip caching.
func NewFeaturedCache(client *redis.Client, ttl time.Duration) *FeaturedCache {
	if client == nil {
		return nil
	}
	return &FeaturedCache{client: client, ttl: ttl}
}

// Get returns the cached list and whether it was present.
func (c *FeaturedCache) Get(ctx context.Context) ([]domain.Review, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	raw, err := c.client.Get(ctx, featuredKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var reviews []domain.Review
	if err := json.Unmarshal(raw, &reviews); err != nil {
		// Corrupt entry: drop it and report a miss.
		_ = c.client.Del(ctx, featuredKey).Err()
		return nil, false, nil
	}
	return reviews, true, nil
}

// Generation returns the current invalidation generation. Read it before
// loading the list that will be passed to Set.
func (c *FeaturedCache) Generation(ctx context.Context) (int64, error) {
	if c == nil {
		return 0, nil
	}
	return readGeneration(ctx, c.client)
}

// Set stores the featured list with the configured TTL, provided no
// Invalidate ran since gen was read. It reports whether the list was stored.
func (c *FeaturedCache) Set(ctx context.Context, gen int64, reviews []domain.Review) (bool, error) {
	if c == nil {
		return false, nil
	}
	payload, err := json.Marshal(reviews)
	if err != nil {
		return false, err
	}

	stored := false
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readGeneration(ctx, tx)
		if err != nil {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, featuredKey, payload, c.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		stored = true
		return nil
	}, featuredGenKey)
	if errors.Is(err, redis.TxFailedErr) {
		// The generation moved between WATCH and EXEC.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stored, nil
}

// Invalidate drops the cached list and starts a new generation.
func (c *FeaturedCache) Invalidate(ctx context.Context) error {
	if c == nil {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, featuredGenKey)
		pipe.Del(ctx, featuredKey)
		return nil
	})
	return err
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readGeneration(ctx context.Context, cmd getter) (int64, error) {
	gen, err := cmd.Get(ctx, featuredGenKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}
