// internal/app/system/workers/scheduler.go
package workers

import (
	"context"
	"time"

	"github.com/dalemusser/waffle/pantry/jobs"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LockPrefix namespaces the Redis keys that keep two instances from running
// the same job at once.
const LockPrefix = "lock:tenanthub:"

// NewScheduler registers list with a waffle scheduler. Jobs with a
// non-positive interval are disabled and left out. When rdb is non-nil each
// run first takes a Redis lock, so only one instance does the work.
func NewScheduler(logger *zap.Logger, rdb redis.UniversalClient, list ...*jobs.ScheduledJob) (*jobs.Scheduler, error) {
	var opts []jobs.SchedulerOption
	if rdb != nil {
		opts = append(opts, jobs.WithLocker(jobs.NewRedisLocker(jobs.RedisLockerConfig{
			Client: redisLockClient{rdb},
			Prefix: LockPrefix,
		})))
	}
	s := jobs.NewScheduler(logger, opts...)
	for _, j := range list {
		if j == nil || j.Interval <= 0 || j.Handler == nil {
			if j != nil {
				logger.Warn("worker job disabled", zap.String("job", j.Name))
			}
			continue
		}
		if err := s.Add(j); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// redisLockClient adapts a go-redis client to jobs.RedisClient.
type redisLockClient struct {
	c redis.UniversalClient
}

func (r redisLockClient) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return r.c.SetNX(ctx, key, value, ttl).Result()
}

func (r redisLockClient) Get(ctx context.Context, key string) (string, error) {
	return r.c.Get(ctx, key).Result()
}

func (r redisLockClient) Del(ctx context.Context, key string) error {
	return r.c.Del(ctx, key).Err()
}

func (r redisLockClient) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.c.Expire(ctx, key, ttl).Err()
}

func (r redisLockClient) Eval(ctx context.Context, script string, keys []string, args ...any) (any, error) {
	return r.c.Eval(ctx, script, keys, args...).Result()
}
