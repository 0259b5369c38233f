package guard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrStoreUnavailable = errors.New("attempt store unavailable")

// RedisStore shares failure records between instances. Each address owns a
// hash and a set of tenant keys; both expire one window after the first
// failure.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	window time.Duration
}

func NewRedisStore(client redis.UniversalClient, prefix string, window time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "chefenplace:attempts"
	}
	return &RedisStore{client: client, prefix: prefix, window: window}
}

func (s *RedisStore) hashKey(key string) string   { return s.prefix + ":" + key }
func (s *RedisStore) tenantKey(key string) string { return s.prefix + ":" + key + ":tenants" }

func (s *RedisStore) Get(ctx context.Context, key string, _ time.Time) (Record, error) {
	values, err := s.client.HGetAll(ctx, s.hashKey(key)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(values) == 0 {
		return Record{}, nil
	}

	count, err := s.client.SCard(ctx, s.tenantKey(key)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	rec := parseRecord(values)
	rec.TenantCount = int(count)
	return rec, nil
}

func (s *RedisStore) Increment(ctx context.Context, key, tenant string, now time.Time) (Record, error) {
	hk, tk := s.hashKey(key), s.tenantKey(key)
	stamp := strconv.FormatInt(now.UnixNano(), 10)

	var (
		failures *redis.IntCmd
		previous *redis.StringCmd
		tenants  *redis.IntCmd
		first    *redis.StringCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		failures = pipe.HIncrBy(ctx, hk, "failures", 1)
		pipe.HSetNX(ctx, hk, "first", stamp)
		previous = pipe.HGet(ctx, hk, "last")
		pipe.HSet(ctx, hk, "last", stamp)
		if tenant != "" {
			pipe.SAdd(ctx, tk, tenant)
		}
		tenants = pipe.SCard(ctx, tk)
		first = pipe.HGet(ctx, hk, "first")
		return nil
	})
	// HGet of "last" on a fresh key answers redis.Nil; the rest still ran.
	if err != nil && !errors.Is(err, redis.Nil) {
		return Record{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Fixed window: the TTL is set once, on the first failure.
	if failures.Val() == 1 {
		pipe := s.client.Pipeline()
		pipe.Expire(ctx, hk, s.window)
		pipe.Expire(ctx, tk, s.window)
		if _, err := pipe.Exec(ctx); err != nil {
			return Record{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	rec := Record{
		Failures:    int(failures.Val()),
		FirstAt:     parseStamp(first.Val()),
		LastAt:      now,
		TenantCount: int(tenants.Val()),
	}
	if prev := previous.Val(); prev != "" {
		rec.PreviousAt = parseStamp(prev)
	}
	return rec, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.hashKey(key), s.tenantKey(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Sweep is a no-op: Redis expires the keys.
func (s *RedisStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

func parseRecord(values map[string]string) Record {
	failures, _ := strconv.Atoi(values["failures"])
	return Record{
		Failures: failures,
		FirstAt:  parseStamp(values["first"]),
		LastAt:   parseStamp(values["last"]),
	}
}

func parseStamp(v string) time.Time {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
