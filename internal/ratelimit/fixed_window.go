package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Limiter reports whether key may proceed in the current window.
type Limiter interface {
	Allow(key string) bool
}

// RedisFixedWindow counts requests per key in Redis so every replica shares
// the same quota. Redis failures fail closed.
type RedisFixedWindow struct {
	limit  int
	window time.Duration
	client *redis.Client
	prefix string
}

// NewRedisFixedWindow dials addr and returns a shared limiter.
func NewRedisFixedWindow(addr, password, prefix string, limit int, window time.Duration) (*RedisFixedWindow, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("rate limiter redis addr is required")
	}
	return NewRedisFixedWindowWithClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	}), prefix, limit, window)
}

// NewRedisFixedWindowWithClient reuses an existing client.
func NewRedisFixedWindowWithClient(client *redis.Client, prefix string, limit int, window time.Duration) (*RedisFixedWindow, error) {
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	if client == nil {
		return nil, errors.New("rate limiter redis client is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "blog:ratelimit"
	}
	return &RedisFixedWindow{limit: limit, window: window, client: client, prefix: prefix}, nil
}

func (l *RedisFixedWindow) Allow(key string) bool {
	if l == nil {
		return false
	}
	windowMs := l.window.Milliseconds()
	if windowMs <= 0 {
		return true
	}
	slot := time.Now().UTC().UnixMilli() / windowMs
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, normalizeKey(key), slot)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	count, err := fixedWindowScript.Run(ctx, l.client, []string{redisKey}, windowMs).Int64()
	if err != nil {
		return false
	}
	return count <= int64(l.limit)
}

// Close releases the Redis client.
func (l *RedisFixedWindow) Close() error {
	return l.client.Close()
}

// MemoryFixedWindow is a process-local limiter for single instance deployments.
type MemoryFixedWindow struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu     sync.Mutex
	slot   int64
	counts map[string]int
}

func NewMemoryFixedWindow(limit int, window time.Duration) (*MemoryFixedWindow, error) {
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	return &MemoryFixedWindow{
		limit:  limit,
		window: window,
		now:    time.Now,
		counts: make(map[string]int),
	}, nil
}

func (l *MemoryFixedWindow) Allow(key string) bool {
	if l == nil {
		return false
	}
	slot := l.now().UTC().UnixMilli() / l.window.Milliseconds()
	l.mu.Lock()
	defer l.mu.Unlock()
	// counts only ever hold the current window
	if slot != l.slot {
		l.slot = slot
		clear(l.counts)
	}
	key = normalizeKey(key)
	l.counts[key]++
	return l.counts[key] <= l.limit
}

func normalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "unknown"
	}
	return key
}
