package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	readyKey      = "delivery:ready"
	processingKey = "delivery:processing"
	deadlineKey   = "delivery:deadlines"

	dequeueBlock = 5 * time.Second
)

// envelope wraps a job with an id so duplicate job contents remain
// distinguishable in the processing bookkeeping.
type envelope struct {
	ID         string    `json:"id"`
	Job        Job       `json:"job"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// RedisQueue is a durable at-least-once queue over a Redis list pair:
// producers LPUSH onto the ready list, consumers BLMOVE the oldest entry
// onto a processing list and record an ack deadline in a sorted set. Acked
// entries are removed; entries whose deadline lapses (worker crashed
// mid-job) are swept back onto the ready list by ReclaimExpired.
type RedisQueue struct {
	client     *redis.Client
	visibility time.Duration
}

func NewRedisQueue(client *redis.Client, visibility time.Duration) *RedisQueue {
	if visibility <= 0 {
		visibility = time.Minute
	}
	return &RedisQueue{client: client, visibility: visibility}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	raw, err := json.Marshal(envelope{
		ID:         uuid.New().String(),
		Job:        job,
		EnqueuedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, readyKey, raw).Err(); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	for {
		raw, err := q.client.BLMove(ctx, readyKey, processingKey, "RIGHT", "LEFT", dequeueBlock).Result()
		if errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("dequeue job: %w", err)
		}

		deadline := float64(time.Now().Add(q.visibility).UnixMilli())
		if err := q.client.ZAdd(ctx, deadlineKey, redis.Z{Score: deadline, Member: raw}).Err(); err != nil {
			// The entry stays on the processing list; a later reclaim of
			// the deadline set cannot see it, so put it straight back.
			q.requeue(ctx, raw)
			return nil, fmt.Errorf("track job deadline: %w", err)
		}

		var env envelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			// Malformed entry: drop it rather than poison the queue.
			q.forget(ctx, raw)
			return nil, fmt.Errorf("unmarshal job: %w", err)
		}

		return &Delivery{
			Job: env.Job,
			Ack: func(ctx context.Context) error {
				return q.forget(ctx, raw)
			},
			Nack: func(ctx context.Context) error {
				return q.requeue(ctx, raw)
			},
		}, nil
	}
}

func (q *RedisQueue) ReclaimExpired(ctx context.Context) (int, error) {
	now := fmt.Sprintf("%d", time.Now().UnixMilli())
	expired, err := q.client.ZRangeByScore(ctx, deadlineKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("scan expired jobs: %w", err)
	}

	requeued := 0
	for _, raw := range expired {
		if err := q.requeue(ctx, raw); err != nil {
			return requeued, err
		}
		requeued++
	}
	return requeued, nil
}

// forget removes an entry from the processing bookkeeping.
func (q *RedisQueue) forget(ctx context.Context, raw string) error {
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, processingKey, 1, raw)
	pipe.ZRem(ctx, deadlineKey, raw)
	_, err := pipe.Exec(ctx)
	return err
}

// requeue moves an entry from processing back to the head of the ready
// list so it is redelivered next.
func (q *RedisQueue) requeue(ctx context.Context, raw string) error {
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, processingKey, 1, raw)
	pipe.ZRem(ctx, deadlineKey, raw)
	pipe.RPush(ctx, readyKey, raw)
	_, err := pipe.Exec(ctx)
	return err
}
