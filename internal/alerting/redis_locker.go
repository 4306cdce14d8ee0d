package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apiarylabs/hivewatch/internal/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisLockPrefix     = "hivewatch:lock:"
	redisLockRetry      = 25 * time.Millisecond
	redisReleaseTimeout = 2 * time.Second
)

// releaseScript deletes the key only while it still holds our token, so a
// holder whose TTL lapsed cannot release a lock someone else now owns.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serializes holders of a key across processes with
// SET NX PX. A crashed holder's lock expires after ttl.
type RedisLocker struct {
	client redis.Cmdable
	ttl    time.Duration
	retry  time.Duration
	log    logger.Logger
}

// NewRedisLocker creates a RedisLocker on client.
func NewRedisLocker(client redis.Cmdable, ttl time.Duration, log logger.Logger) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, retry: redisLockRetry, log: log}
}

// Lock polls until the key is acquired or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := redisLockPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), redisReleaseTimeout)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
				l.log.Warn("failed to release lock, it will expire on its own",
					logger.String("key", key),
					logger.Duration("ttl", l.ttl),
					logger.Error(err))
			}
		})
	}, nil
}
