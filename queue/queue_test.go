package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shubbu03/illustrations/domain"
	"github.com/Shubbu03/illustrations/shape"
)

type mockStore struct {
	mu      sync.Mutex
	nextID  int64
	chats   map[int64]string
	deletes []int64
}

func newMockStore() *mockStore {
	return &mockStore{chats: map[int64]string{}}
}

func (m *mockStore) CreateChat(_ context.Context, roomID int64, userID, message string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.chats[m.nextID] = message
	return m.nextID, nil
}

func (m *mockStore) DeleteChat(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Absent rows are fine; only record the attempt.
	delete(m.chats, chatID)
	m.deletes = append(m.deletes, chatID)
	return nil
}

type mockPublisher struct {
	mu     sync.Mutex
	frames []domain.Frame
}

func (m *mockPublisher) Publish(_ context.Context, frame domain.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, frame)
	return nil
}

func (m *mockPublisher) getFrames() []domain.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

func TestMemory_EnqueueNeverBlocks(t *testing.T) {
	q := NewMemory(2)

	require.NoError(t, q.Enqueue(context.Background(), domain.Job{Kind: domain.JobCreate}))
	require.NoError(t, q.Enqueue(context.Background(), domain.Job{Kind: domain.JobCreate}))

	// Full queue fails fast instead of stalling the broadcast path.
	err := q.Enqueue(context.Background(), domain.Job{Kind: domain.JobCreate})
	assert.ErrorIs(t, err, domain.ErrQueueFull)
}

func TestMemory_EnqueueAfterClose(t *testing.T) {
	q := NewMemory(2)
	q.Close()
	q.Close() // second close is a no-op

	err := q.Enqueue(context.Background(), domain.Job{Kind: domain.JobCreate})
	assert.ErrorIs(t, err, domain.ErrQueueClosed)
}

func TestWorker_CreatePersistsAndEchoes(t *testing.T) {
	store := newMockStore()
	pub := &mockPublisher{}
	worker := NewWorker(store, pub)

	message, err := shape.Encode(shape.Shape{
		Geometry: shape.Rectangle{X: 10, Y: 10, Width: 50, Height: 30},
		LocalID:  "local_a_1",
	})
	require.NoError(t, err)

	err = worker.Process(context.Background(), domain.Job{
		Kind:    domain.JobCreate,
		RoomID:  42,
		UserID:  "alice",
		Message: message,
	})
	require.NoError(t, err)

	frames := pub.getFrames()
	require.Len(t, frames, 1)
	assert.Equal(t, domain.FrameChat, frames[0].Type)
	assert.Equal(t, "42", frames[0].RoomID)
	assert.Equal(t, "alice", frames[0].UserID)

	echoed, err := shape.Decode(frames[0].Message)
	require.NoError(t, err)
	assert.Equal(t, int64(1), echoed.DBID, "echo carries the durable id")
	assert.Equal(t, "local_a_1", echoed.LocalID, "echo keeps the author's local id")
}

func TestWorker_DuplicateEraseIsSuccess(t *testing.T) {
	store := newMockStore()
	worker := NewWorker(store, nil)

	job := domain.Job{Kind: domain.JobErase, RoomID: 42, ChatID: 99}
	require.NoError(t, worker.Process(context.Background(), job))
	require.NoError(t, worker.Process(context.Background(), job), "re-delivered erase must not fail")
	assert.Equal(t, []int64{99, 99}, store.deletes)
}

func TestWorker_NonShapePayloadSkipsEcho(t *testing.T) {
	store := newMockStore()
	pub := &mockPublisher{}
	worker := NewWorker(store, pub)

	err := worker.Process(context.Background(), domain.Job{
		Kind:    domain.JobCreate,
		RoomID:  42,
		Message: "not a shape",
	})
	require.NoError(t, err, "the row is still persisted")
	assert.Empty(t, pub.getFrames())
}

func TestWorker_RunDrainsChannel(t *testing.T) {
	store := newMockStore()
	pub := &mockPublisher{}
	worker := NewWorker(store, pub)
	q := NewMemory(16)

	message, err := shape.Encode(shape.Shape{Geometry: shape.Circle{CenterX: 1, CenterY: 1, Radius: 1}})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(context.Background(), domain.Job{
			Kind:    domain.JobCreate,
			RoomID:  42,
			Message: message,
		}))
	}
	q.Close()

	done := make(chan struct{})
	go func() {
		worker.Run(context.Background(), q.Jobs())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not drain the queue")
	}
	assert.Len(t, pub.getFrames(), 3)
}
