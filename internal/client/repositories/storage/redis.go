package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one area in Redis under "<prefix>:<area>:<key>".
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
	area   Area
}

func NewRedisStore(rdb redis.Cmdable, prefix string, area Area) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix, area: area}
}

func (r *RedisStore) Area() Area { return r.area }

func (r *RedisStore) redisKey(key string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, r.area, key)
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.rdb.Get(ctx, r.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s[%s]: %w", r.area, key, err)
	}
	return v, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := r.rdb.Set(ctx, r.redisKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s[%s]: %w", r.area, key, err)
	}
	return nil
}

func (r *RedisStore) Remove(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, r.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to remove %s[%s]: %w", r.area, key, err)
	}
	return nil
}

// Apply writes the batch inside MULTI/EXEC.
func (r *RedisStore) Apply(ctx context.Context, b Batch) error {
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, k := range b.sortedKeys() {
			if v := b[k]; v == nil {
				p.Del(ctx, r.redisKey(k))
			} else {
				p.Set(ctx, r.redisKey(k), v, 0)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to apply %s batch: %w", r.area, err)
	}
	return nil
}

func (r *RedisStore) scan(ctx context.Context) ([]string, error) {
	var (
		cursor uint64
		found  []string
	)
	match := r.redisKey("*")
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return nil, err
		}
		found = append(found, keys...)
		cursor = next
		if cursor == 0 {
			return found, nil
		}
	}
}

func (r *RedisStore) Keys(ctx context.Context) ([]string, error) {
	raw, err := r.scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s keys: %w", r.area, err)
	}
	trim := r.redisKey("")
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		keys = append(keys, strings.TrimPrefix(k, trim))
	}
	sort.Strings(keys)
	return keys, nil
}

func (r *RedisStore) Clear(ctx context.Context) error {
	raw, err := r.scan(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", r.area, err)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := r.rdb.Del(ctx, raw...).Err(); err != nil {
		return fmt.Errorf("failed to clear %s: %w", r.area, err)
	}
	return nil
}
