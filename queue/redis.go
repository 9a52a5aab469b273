package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/atomic"
)

// DefaultRedisKey is the list runs are stored in
const DefaultRedisKey = "replayer:runs"

// popWait bounds each blocking pop so canceled contexts and Close are noticed
const popWait = time.Second

type redisQueue struct {
	client *redis.Client
	key    string
	closed *atomic.Bool
}

// NewRedis returns a Queue stored in a redis list, shared by every process using the same key
func NewRedis(client *redis.Client, key string) Queue {
	if key == "" {
		key = DefaultRedisKey
	}
	return &redisQueue{client: client, key: key, closed: atomic.NewBool(false)}
}

func (r *redisQueue) Push(ctx context.Context, run Run) error {
	if r.closed.Load() {
		return ErrClosed
	}
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	return errors.Wrap(r.client.RPush(ctx, r.key, data).Err(), "Failed to enqueue run")
}

func (r *redisQueue) Pop(ctx context.Context) (Run, error) {
	for {
		if r.closed.Load() {
			return Run{}, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return Run{}, err
		}
		result, err := r.client.BLPop(ctx, popWait, r.key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Run{}, ctxErr
			}
			return Run{}, errors.Wrap(err, "Failed to dequeue run")
		}
		// BLPOP replies with the key, then the value
		return decodeRun(result[1])
	}
}

func decodeRun(data string) (Run, error) {
	var run Run
	err := json.Unmarshal([]byte(data), &run)
	return run, errors.Wrap(err, "Failed to decode queued run")
}

func (r *redisQueue) Len(ctx context.Context) (int, error) {
	n, err := r.client.LLen(ctx, r.key).Result()
	return int(n), err
}

func (r *redisQueue) Items(ctx context.Context) ([]Run, error) {
	values, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	runs := make([]Run, 0, len(values))
	for _, value := range values {
		run, err := decodeRun(value)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// Close stops Pop. The redis client is owned by the caller.
func (r *redisQueue) Close() error {
	r.closed.Store(true)
	return nil
}
