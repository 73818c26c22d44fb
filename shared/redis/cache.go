package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ViewCache stores JSON projections of type T under string keys with a fixed TTL
// (0 means no expiry). Redis failures are logged and treated as misses; the cache
// never fails a read that the store can answer.
//
// Every key has a generation counter under key+":gen" that Delete increments. A
// fill from GetOrLoad is written only if the generation is still the one read
// before loading, so a load that raced with a committed write and its
// invalidation is dropped instead of cached.
//
// A nil *ViewCache always misses, which is how the service runs without Redis.
type ViewCache[T any] struct {
	client *redis.Client
	ttl    time.Duration
}

// fillIfCurrent sets KEYS[1] to ARGV[1] only while the generation in KEYS[2]
// equals ARGV[2]. ARGV[3] is the TTL in milliseconds, 0 for none.
var fillIfCurrent = redis.NewScript(`
if (redis.call('GET', KEYS[2]) or '0') ~= ARGV[2] then
  return 0
end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
else
  redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

func generationKey(key string) string {
	return key + ":gen"
}

// NewViewCache returns nil for a nil client.
func NewViewCache[T any](client *redis.Client, ttl time.Duration) *ViewCache[T] {
	if client == nil {
		return nil
	}
	return &ViewCache[T]{client: client, ttl: ttl}
}

func (c *ViewCache[T]) Get(ctx context.Context, key string) (*T, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false
	case err != nil:
		slog.Warn("view cache read failed", "key", key, "error", err)
		return nil, false
	}

	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		slog.Warn("dropping undecodable view cache entry", "key", key, "error", err)
		c.Delete(ctx, key)
		return nil, false
	}
	return v, true
}

func (c *ViewCache[T]) Set(ctx context.Context, key string, value *T) {
	if c == nil || value == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		slog.Error("view cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		slog.Warn("view cache write failed", "key", key, "error", err)
	}
}

// Delete drops keys and bumps their generations in one MULTI/EXEC, so readers never
// see some of them invalidated and others not.
func (c *ViewCache[T]) Delete(ctx context.Context, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Incr(ctx, generationKey(key))
			pipe.Del(ctx, key)
		}
		return nil
	})
	if err != nil {
		slog.Warn("view cache delete failed", "keys", keys, "error", err)
	}
}

// GetOrLoad returns the cached value for key, or calls load and caches its result
// unless key was deleted while load ran. Errors from load are returned as is and
// nothing is cached.
func (c *ViewCache[T]) GetOrLoad(ctx context.Context, key string, load func(context.Context) (*T, error)) (*T, error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, nil
	}
	gen, ok := c.generation(ctx, key)
	v, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		c.fill(ctx, key, gen, v)
	}
	return v, nil
}

func (c *ViewCache[T]) generation(ctx context.Context, key string) (string, bool) {
	if c == nil {
		return "", false
	}
	gen, err := c.client.Get(ctx, generationKey(key)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "0", true
	case err != nil:
		slog.Warn("view cache generation read failed", "key", key, "error", err)
		return "", false
	}
	return gen, true
}

func (c *ViewCache[T]) fill(ctx context.Context, key, gen string, value *T) {
	if value == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		slog.Error("view cache encode failed", "key", key, "error", err)
		return
	}
	keys := []string{key, generationKey(key)}
	if err := fillIfCurrent.Run(ctx, c.client, keys, raw, gen, c.ttl.Milliseconds()).Err(); err != nil {
		slog.Warn("view cache write failed", "key", key, "error", err)
	}
}
