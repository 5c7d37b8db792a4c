package cmd

import (
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/datapilot/datapilot/pkg/locker"
)

// NewTargetLocker returns a redis-backed locker when a redis URL is given,
// so concurrent processes serialize writes to the same target; otherwise the
// in-process locker is used.
func NewTargetLocker(redisURL string) (locker.TargetLocker, error) {
	if redisURL == "" {
		return locker.NewMemoryLocker(), nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	return locker.NewRedisLocker(redis.NewClient(opts)), nil
}
