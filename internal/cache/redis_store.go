package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "campaigns:cache"

// Connect initializes a Redis client from URL or host:port input.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisStore keeps the snapshot under one key. Expiry is zero by default:
// staleness is decided by CachedAt, not by Redis.
type RedisStore struct {
	client redis.Cmdable
	Key    string
	Expiry time.Duration
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client, Key: DefaultRedisKey}
}

func (s *RedisStore) Load(ctx context.Context) (Snapshot, error) {
	raw, err := s.client.Get(ctx, s.Key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Snapshot{}, ErrMiss
		}
		return Snapshot{}, fmt.Errorf("redis get %s: %w", s.Key, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode redis snapshot: %w", err)
	}
	return snap, nil
}

func (s *RedisStore) Save(ctx context.Context, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.Key, raw, s.Expiry).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.Key, err)
	}
	return nil
}
