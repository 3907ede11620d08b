package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultScheduleKey = "tasks:scheduled"

// RedisScheduler keeps delayed tasks in a sorted set scored by due time.
type RedisScheduler struct {
	client redis.UniversalClient
	key    string
	logger *slog.Logger
}

func NewRedisScheduler(client redis.UniversalClient, key string, logger *slog.Logger) *RedisScheduler {
	if key == "" {
		key = defaultScheduleKey
	}
	return &RedisScheduler{client: client, key: key, logger: logger}
}

func (s *RedisScheduler) Schedule(ctx context.Context, task Task) error {
	due := task.Due(time.Now())
	task.NotBefore = due
	task.Delay = 0

	member, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal scheduled task: %w", err)
	}

	if err := s.client.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(due.UnixMilli()),
		Member: member,
	}).Err(); err != nil {
		return fmt.Errorf("failed to schedule task: %w", err)
	}
	return nil
}

// Run moves due tasks to publish every interval until ctx is done.
func (s *RedisScheduler) Run(ctx context.Context, interval time.Duration, publish func(context.Context, Task) error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.flush(ctx, publish); err != nil {
				s.logger.Error("failed to flush scheduled tasks", "error", err)
			}
		}
	}
}

func (s *RedisScheduler) flush(ctx context.Context, publish func(context.Context, Task) error) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	members, err := s.client.ZRangeByScore(ctx, s.key, &redis.ZRangeBy{Min: "-inf", Max: now, Count: 100}).Result()
	if err != nil {
		return err
	}

	for _, member := range members {
		// ZRem is the claim: only the instance that removes the member publishes it.
		removed, err := s.client.ZRem(ctx, s.key, member).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue
		}

		var task Task
		if err := json.Unmarshal([]byte(member), &task); err != nil {
			s.logger.Error("dropping undecodable scheduled task", "error", err)
			continue
		}
		task.NotBefore = time.Time{}

		if err := publish(ctx, task); err != nil {
			s.logger.Error("failed to publish scheduled task, rescheduling", "task_id", task.ID, "error", err)
			task.Delay = 0
			task.NotBefore = time.Now().Add(5 * time.Second)
			if err := s.Schedule(ctx, task); err != nil {
				return err
			}
		}
	}
	return nil
}
