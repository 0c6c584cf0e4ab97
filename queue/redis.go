package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Shubbu03/illustrations/domain"
)

const (
	// jobListKey is the Redis list the broker pushes jobs onto and the
	// worker pops from.
	jobListKey = "canvas:chat-jobs"
	// echoChannel carries committed-shape frames from the worker back
	// to every broker instance for rebroadcast.
	echoChannel = "canvas:chat-echo"
)

// Redis is the durable persistence queue shared between the broker and a
// separate worker process.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (q *Redis) Enqueue(ctx context.Context, job domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, jobListKey, data).Err(); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Dequeue blocks until a job is available or the context is cancelled.
func (q *Redis) Dequeue(ctx context.Context) (domain.Job, error) {
	res, err := q.client.BRPop(ctx, 0, jobListKey).Result()
	if err != nil {
		return domain.Job{}, fmt.Errorf("pop job: %w", err)
	}
	// BRPOP returns [key, value].
	var job domain.Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return domain.Job{}, fmt.Errorf("unmarshal job: %w", err)
	}
	return job, nil
}

// Publish sends a frame on the echo channel.
func (q *Redis) Publish(ctx context.Context, frame domain.Frame) error {
	data, err := frame.Encode()
	if err != nil {
		return fmt.Errorf("marshal echo frame: %w", err)
	}
	if err := q.client.Publish(ctx, echoChannel, data).Err(); err != nil {
		return fmt.Errorf("publish echo: %w", err)
	}
	return nil
}

// SubscribeEchoes delivers worker echo frames to fn until the context is
// cancelled. Frames that fail to decode are dropped.
func (q *Redis) SubscribeEchoes(ctx context.Context, fn func(domain.Frame)) error {
	sub := q.client.Subscribe(ctx, echoChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var frame domain.Frame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				continue
			}
			fn(frame)
		}
	}
}
