package limiter

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCmdable is the subset of redis commands used by the limiter.
// It is implemented by *redis.Client and *redis.ClusterClient.
type redisCmdable interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	PExpire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	PTTL(ctx context.Context, key string) *redis.DurationCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Redis is a limiter keeping failure counters and blocks as expiring keys.
type Redis struct {
	rdb      redisCmdable
	prefix   string
	window   time.Duration
	maxFails int
	blockFor time.Duration
}

// NewRedis constructs a Redis-backed limiter. Keys are namespaced with prefix.
func NewRedis(rdb redisCmdable, prefix string, window time.Duration, maxFails int, blockFor time.Duration) *Redis {
	if prefix == "" {
		prefix = "nanocloud:login"
	}
	return &Redis{rdb: rdb, prefix: prefix, window: window, maxFails: maxFails, blockFor: blockFor}
}

func (l *Redis) keys(email string, ipHash []byte) (fails, block string) {
	id := email + ":" + hex.EncodeToString(ipHash)
	return l.prefix + ":fails:" + id, l.prefix + ":block:" + id
}

// Allow reports whether a login attempt may proceed and a retry-after duration.
func (l *Redis) Allow(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	_, blockKey := l.keys(email, ipHash)
	ttl, err := l.rdb.PTTL(ctx, blockKey).Result()
	if err != nil {
		return false, 0, err
	}
	// PTTL reports -2 for a missing key and -1 for a key without expiry.
	if ttl > 0 {
		return false, ttl, nil
	}
	return true, 0, nil
}

// Success drops counters and any block for (email, ip).
func (l *Redis) Success(ctx context.Context, email string, ipHash []byte) error {
	failKey, blockKey := l.keys(email, ipHash)
	return l.rdb.Del(ctx, failKey, blockKey).Err()
}

// Failure increments the windowed counter and blocks when it reaches maxFails.
func (l *Redis) Failure(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	failKey, blockKey := l.keys(email, ipHash)

	fails, err := l.rdb.Incr(ctx, failKey).Result()
	if err != nil {
		return false, 0, err
	}
	if fails == 1 {
		if err := l.rdb.PExpire(ctx, failKey, l.window).Err(); err != nil {
			return false, 0, err
		}
	}
	if fails < int64(l.maxFails) {
		return false, 0, nil
	}

	if err := l.rdb.Set(ctx, blockKey, 1, l.blockFor).Err(); err != nil {
		return false, 0, err
	}
	if err := l.rdb.Del(ctx, failKey).Err(); err != nil {
		return false, 0, err
	}
	return true, l.blockFor, nil
}
