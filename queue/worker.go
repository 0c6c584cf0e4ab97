package queue

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/Shubbu03/illustrations/domain"
	"github.com/Shubbu03/illustrations/shape"
)

// Worker drains persistence jobs into durable storage. After a create
// commits, it republishes the shape with its durable id so subscribers
// (the author included) can correlate their local copies.
type Worker struct {
	store domain.Store
	pub   domain.Publisher
}

func NewWorker(store domain.Store, pub domain.Publisher) *Worker {
	return &Worker{store: store, pub: pub}
}

// Run consumes from a channel-backed queue until it closes or the
// context is cancelled. Job failures are logged and skipped; the worker
// never stops over one bad job.
func (w *Worker) Run(ctx context.Context, jobs <-chan domain.Job) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.Process(ctx, job); err != nil {
				slog.Error("job failed", "kind", job.Kind, "room", job.RoomID, "error", err)
			}
		}
	}
}

// RunRedis consumes from the shared Redis queue until the context is
// cancelled.
func (w *Worker) RunRedis(ctx context.Context, q *Redis) {
	for {
		job, err := q.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("dequeue failed", "error", err)
			continue
		}
		if err := w.Process(ctx, job); err != nil {
			slog.Error("job failed", "kind", job.Kind, "room", job.RoomID, "error", err)
		}
	}
}

func (w *Worker) Process(ctx context.Context, job domain.Job) error {
	switch job.Kind {
	case domain.JobCreate:
		return w.create(ctx, job)
	case domain.JobErase:
		// Deleting an already-absent row is success: at-least-once
		// delivery makes duplicate erase jobs routine.
		return w.store.DeleteChat(ctx, job.ChatID)
	default:
		slog.Warn("unknown job kind", "kind", job.Kind)
		return nil
	}
}

func (w *Worker) create(ctx context.Context, job domain.Job) error {
	chatID, err := w.store.CreateChat(ctx, job.RoomID, job.UserID, job.Message)
	if err != nil {
		return err
	}
	slog.Info("chat persisted", "room", job.RoomID, "chatId", chatID)

	if w.pub == nil {
		return nil
	}

	// Rebroadcast the shape carrying its durable id. The payload keeps
	// the author's local id so their engine merges in place instead of
	// drawing a second copy.
	s, err := shape.Decode(job.Message)
	if err != nil {
		slog.Warn("persisted payload is not a shape, skipping echo", "chatId", chatID, "error", err)
		return nil
	}
	s.DBID = chatID
	message, err := shape.Encode(s)
	if err != nil {
		return err
	}
	return w.pub.Publish(ctx, domain.Frame{
		Type:    domain.FrameChat,
		RoomID:  strconv.FormatInt(job.RoomID, 10),
		Message: message,
		UserID:  job.UserID,
	})
}
