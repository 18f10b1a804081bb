package idemcache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client *redis.Client
}

type redisEntry struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// NewRedisStore backs the cache with redis so replicas share replay
// state. Expiry is redis TTL; no sweep is needed.
func NewRedisStore(addr, password string, db int) (Store, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &redisStore{client: client}, nil
}

func (r *redisStore) Get(ctx context.Context, key string) (*CachedResponse, bool, error) {
	raw, err := r.client.Get(ctx, "idem:"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var entry redisEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, err
	}
	return &CachedResponse{Status: entry.Status, Body: entry.Body}, true, nil
}

func (r *redisStore) Set(ctx context.Context, key string, resp CachedResponse, ttl time.Duration) error {
	raw, err := json.Marshal(redisEntry{Status: resp.Status, Body: resp.Body})
	if err != nil {
		return err
	}
	return r.client.Set(ctx, "idem:"+key, raw, ttl).Err()
}
