package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "atlas:"

// RedisBackend stores values as plain string keys under a namespace prefix.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// OpenRedis connects using a redis:// URL and pings the server.
func OpenRedis(ctx context.Context, url, prefix string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	return NewRedisBackend(client, prefix), nil
}

func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisBackend{client: client, prefix: prefix}
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to GET %s: %w", key, err)
	}
	return v, nil
}

func (r *RedisBackend) Put(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to SET %s: %w", key, err)
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to DEL %s: %w", key, err)
	}
	return nil
}

func (r *RedisBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	seen := make(map[string]bool)
	out := make([]string, 0)
	iter := r.client.Scan(ctx, 0, globEscape(r.prefix+prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		k := strings.TrimPrefix(iter.Val(), r.prefix)
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to SCAN: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}

func globEscape(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)
	return replacer.Replace(s)
}
