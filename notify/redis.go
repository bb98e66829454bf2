package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	academy "github.com/goliatone/go-academy"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueKey is the list credential notifications are pushed to
const DefaultQueueKey = "academy:notifications"

// RedisQueue hands notifications to an out of process mailer through a
// redis list. Producers LPUSH, consumers BRPOP.
type RedisQueue struct {
	client *redis.Client
	key    string
}

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Notify(ctx context.Context, n academy.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("redis queue: %w", err)
	}
	return nil
}

// Pop waits up to timeout for the oldest notification. It returns false
// when the queue stayed empty.
func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (academy.Notification, bool, error) {
	var n academy.Notification

	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return n, false, nil
	}
	if err != nil {
		return n, false, fmt.Errorf("redis queue: %w", err)
	}

	// BRPOP answers [key, value]
	if len(res) != 2 {
		return n, false, fmt.Errorf("redis queue: unexpected reply of %d elements", len(res))
	}
	if err := json.Unmarshal([]byte(res[1]), &n); err != nil {
		return n, false, fmt.Errorf("redis queue: decode: %w", err)
	}
	return n, true, nil
}

// Len returns the number of queued notifications
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// Drain forwards queued notifications to out until ctx is done.
func (q *RedisQueue) Drain(ctx context.Context, out academy.Notifier, logger academy.Logger) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		n, ok, err := q.Pop(ctx, time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if !ok {
			continue
		}

		if err := out.Notify(ctx, n); err != nil && logger != nil {
			logger.Warn("notification %s to %s failed: %v", n.Kind, n.Email, err)
		}
	}
}
