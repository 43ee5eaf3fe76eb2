package deferred

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKey = "deferred:tasks"

// RedisStorage stores tasks in a sorted set keyed by run-at time, so due
// tasks can be claimed with a single range query.
type RedisStorage struct {
	client *redis.Client
	key    string
}

// RedisStorageOption configures the storage.
type RedisStorageOption func(*RedisStorage)

// WithRedisKey overrides the sorted set key.
func WithRedisKey(key string) RedisStorageOption {
	return func(s *RedisStorage) { s.key = key }
}

// NewRedisStorage creates a storage over the given client.
func NewRedisStorage(client *redis.Client, opts ...RedisStorageOption) *RedisStorage {
	if client == nil {
		panic("deferred: redis client is required")
	}
	s := &RedisStorage{
		client: client,
		key:    defaultRedisKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStorage) Add(ctx context.Context, task Task) error {
	member, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := s.client.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(task.RunAt.UnixMilli()),
		Member: member,
	}).Err(); err != nil {
		return fmt.Errorf("store task: %w", err)
	}
	return nil
}

func (s *RedisStorage) ClaimDue(ctx context.Context, now time.Time, limit int) ([]Task, error) {
	rangeBy := &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}
	if limit > 0 {
		rangeBy.Count = int64(limit)
	}
	members, err := s.client.ZRangeByScore(ctx, s.key, rangeBy).Result()
	if err != nil {
		return nil, fmt.Errorf("list due tasks: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	tasks := make([]Task, 0, len(members))
	for _, member := range members {
		// Remove before dispatching so two pollers cannot both run the
		// task. ZRem returning zero means another poller claimed it.
		removed, err := s.client.ZRem(ctx, s.key, member).Result()
		if err != nil {
			return tasks, fmt.Errorf("claim task: %w", err)
		}
		if removed == 0 {
			continue
		}
		var task Task
		if err := json.Unmarshal([]byte(member), &task); err != nil {
			return tasks, fmt.Errorf("decode task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}
