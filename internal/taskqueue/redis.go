package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xxxsen/ragkb/internal/config"
	appErr "github.com/xxxsen/ragkb/internal/pkg/errors"
)

const redisPollTimeout = 5 * time.Second

// redisQueue is a list used as a FIFO: LPUSH on enqueue, BRPOP on dequeue.
type redisQueue struct {
	client *redis.Client
	key    string
}

func NewRedis(cfg config.RedisConfig) Queue {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 2 * time.Second,
	})
	key := cfg.Key
	if key == "" {
		key = "ragkb:ingest"
	}
	return &redisQueue{client: client, key: key}
}

func (q *redisQueue) Enqueue(ctx context.Context, msg *Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("redis enqueue: %w: %v", appErr.ErrTransientStore, err)
	}
	return nil
}

func (q *redisQueue) Dequeue(ctx context.Context) (*Message, error) {
	for {
		res, err := q.client.BRPop(ctx, redisPollTimeout, q.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, redis.ErrClosed) {
				return nil, ErrClosed
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if len(res) != 2 {
			continue
		}
		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			return nil, fmt.Errorf("decode queued message: %w", err)
		}
		return &msg, nil
	}
}

func (q *redisQueue) Depth(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (q *redisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *redisQueue) Close() error {
	return q.client.Close()
}

func New(cfg config.TaskQueueConfig) (Queue, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemory(0), nil
	case "redis":
		return NewRedis(cfg.Redis), nil
	}
	return nil, fmt.Errorf("unsupported task queue type: %s", cfg.Type)
}
