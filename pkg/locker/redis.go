package locker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix = "datapilot:target-lock:"
	lockTTL       = 60 * time.Second
	lockRetry     = 100 * time.Millisecond
)

// ErrLockNotHeld indicates a release raced with lease expiry.
var ErrLockNotHeld = errors.New("target lock not held")

// releaseScript deletes the lock key only if it still holds our token, so an
// expired lease taken over by another process is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker is a TargetLocker for multi-process deployments. Each lock is a
// SET NX lease with a TTL; acquisition polls until the lease is granted or
// ctx is done.
type RedisLocker struct {
	client redis.UniversalClient
}

func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Lock(ctx context.Context, target string) (func(), error) {
	key := lockKeyPrefix + target
	token := uuid.New().String()

	for {
		ok, err := l.client.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			return nil, err
		}

		if ok {
			release := func() {
				_, _ = releaseScript.Run(context.Background(), l.client, []string{key}, token).Result()
			}

			return release, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetry):
		}
	}
}
