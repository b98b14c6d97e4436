package otp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "blog:otp"

// consumeScript deletes the key only when the stored hash matches.
var consumeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("DEL", KEYS[1])
	return 1
end
return 0
`)

// RedisLedger stores a SHA-256 of each code under a TTL key per email.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLedger connects a ledger to addr.
func NewRedisLedger(addr, password string, ttl time.Duration) (*RedisLedger, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("otp redis addr is required")
	}
	return NewRedisLedgerWithClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	}), ttl), nil
}

// NewRedisLedgerWithClient wraps an existing client; ttl <= 0 uses DefaultTTL.
func NewRedisLedgerWithClient(client *redis.Client, ttl time.Duration) *RedisLedger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLedger{client: client, ttl: ttl}
}

func (l *RedisLedger) Put(email, code string) error {
	key, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.client.Set(ctx, l.key(key), hashCode(code), l.ttl).Err(); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	return nil
}

func (l *RedisLedger) Consume(email, code string) (bool, error) {
	key, err := normalizeEmail(email)
	if err != nil {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	n, err := consumeScript.Run(ctx, l.client, []string{l.key(key)}, hashCode(code)).Int()
	if err != nil {
		return false, fmt.Errorf("consume otp: %w", err)
	}
	return n == 1, nil
}

// Close releases the Redis connection pool.
func (l *RedisLedger) Close() error {
	return l.client.Close()
}

func (l *RedisLedger) key(email string) string {
	return fmt.Sprintf("%s:%s", redisKeyPrefix, email)
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
