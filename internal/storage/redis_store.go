package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// setIfNewer writes the hash only when ARGV[1] is greater than the stored rev
var setIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'rev')
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'rev', ARGV[1], 'data', ARGV[2])
return 1
`)

// RedisStore persists records as Redis hashes
type RedisStore struct {
	cache  *RedisCache
	prefix string
}

// NewRedisStore creates a store whose keys are prefixed with prefix
func NewRedisStore(cache *RedisCache, prefix string) *RedisStore {
	return &RedisStore{cache: cache, prefix: prefix}
}

func (s *RedisStore) redisKey(key Key) string {
	return s.prefix + key.String()
}

// Get returns the record for key
func (s *RedisStore) Get(ctx context.Context, key Key) (Record, bool, error) {
	vals, err := s.cache.Client().HMGet(ctx, s.redisKey(key), "rev", "data").Result()
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to get record %s: %w", key, err)
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return Record{}, false, nil
	}

	revStr, ok1 := vals[0].(string)
	data, ok2 := vals[1].(string)
	if !ok1 || !ok2 {
		return Record{}, false, errors.New("unexpected record encoding")
	}
	rev, err := strconv.ParseUint(revStr, 10, 64)
	if err != nil {
		return Record{}, false, fmt.Errorf("invalid revision for %s: %w", key, err)
	}
	return Record{Data: []byte(data), Revision: rev}, true, nil
}

// Set stores rec when it is newer than the stored record
func (s *RedisStore) Set(ctx context.Context, key Key, rec Record) error {
	err := setIfNewer.Run(ctx, s.cache.Client(), []string{s.redisKey(key)},
		strconv.FormatUint(rec.Revision, 10), rec.Data).Err()
	if err != nil {
		return fmt.Errorf("failed to set record %s: %w", key, err)
	}
	return nil
}

// Delete removes the record for key
func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	if err := s.cache.Client().Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete record %s: %w", key, err)
	}
	return nil
}
