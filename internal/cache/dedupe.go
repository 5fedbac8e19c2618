// Package cache holds short-lived Redis state shared across service instances.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const inboundKeyPrefix = "inbound:sid:"

// RedisDeduper remembers provider message ids so redelivered webhooks are processed once.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

// Connect opens a client and verifies it answers PING.
func Connect(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// FirstSeen reports true the first time sid is observed within the TTL.
func (d *RedisDeduper) FirstSeen(ctx context.Context, sid string) (bool, error) {
	ok, err := d.client.SetNX(ctx, inboundKeyPrefix+sid, time.Now().UTC().Format(time.RFC3339), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

// Forget drops sid so a later delivery of it is processed again.
func (d *RedisDeduper) Forget(ctx context.Context, sid string) error {
	if err := d.client.Del(ctx, inboundKeyPrefix+sid).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
