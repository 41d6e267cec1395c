package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps timestamps in Redis sorted sets, one per key, scored by
// unix nanoseconds. It is the shared-store option for multi-instance
// deployments. Expired entries are trimmed on read and the whole set
// carries a TTL, so Sweep is a no-op.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a store over the given client. All keys are
// namespaced under prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string, cutoff time.Time) ([]time.Time, error) {
	rkey := s.prefix + key

	if err := s.client.ZRemRangeByScore(ctx, rkey, "0", strconv.FormatInt(cutoff.UnixNano(), 10)).Err(); err != nil {
		return nil, err
	}

	members, err := s.client.ZRangeWithScores(ctx, rkey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	times := make([]time.Time, 0, len(members))
	for _, m := range members {
		times = append(times, time.Unix(0, int64(m.Score)))
	}
	return times, nil
}

func (s *RedisStore) Add(ctx context.Context, key string, ts time.Time, bound time.Duration) error {
	rkey := s.prefix + key

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, rkey, redis.Z{
		Score:  float64(ts.UnixNano()),
		Member: strconv.FormatInt(ts.UnixNano(), 10),
	})
	pipe.Expire(ctx, rkey, bound)

	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Sweep(_ context.Context, _ time.Time) error {
	// Redis TTLs set in Add already bound memory growth.
	return nil
}
