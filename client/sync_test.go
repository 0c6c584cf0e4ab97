package client

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shubbu03/illustrations/domain"
	"github.com/Shubbu03/illustrations/queue"
	"github.com/Shubbu03/illustrations/shape"
)

// relay stands in for the broker plus persistence pipeline: chat and
// erase frames fan out to every other engine immediately, while the
// matching jobs accumulate in a real memory queue until the test drains
// them through a real worker.
type relay struct {
	mu      sync.Mutex
	engines map[string]*Engine
	queue   *queue.Memory
}

func newRelay() *relay {
	return &relay{
		engines: map[string]*Engine{},
		queue:   queue.NewMemory(64),
	}
}

type relayClient struct {
	relay *relay
	id    string
}

func (c *relayClient) Send(frame domain.Frame) error {
	r := c.relay
	switch frame.Type {
	case domain.FrameChat:
		r.queue.Enqueue(context.Background(), domain.Job{
			Kind:    domain.JobCreate,
			RoomID:  42,
			UserID:  c.id,
			Message: frame.Message,
		})
	case domain.FrameEraseChat:
		r.queue.Enqueue(context.Background(), domain.Job{
			Kind:   domain.JobErase,
			RoomID: 42,
			ChatID: frame.ChatID,
		})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, engine := range r.engines {
		if id == c.id {
			continue
		}
		engine.OnFrame(frame)
	}
	return nil
}

// Publish delivers worker echoes to every engine, the author included.
func (r *relay) Publish(_ context.Context, frame domain.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, engine := range r.engines {
		engine.OnFrame(frame)
	}
	return nil
}

func (r *relay) addClient(id string) *Engine {
	engine := NewEngine(42, nil, &relayClient{relay: r, id: id})
	r.mu.Lock()
	r.engines[id] = engine
	r.mu.Unlock()
	return engine
}

type fakeStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]string
}

func (s *fakeStore) CreateChat(_ context.Context, roomID int64, userID, message string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.rows[s.nextID] = message
	return s.nextID, nil
}

func (s *fakeStore) DeleteChat(_ context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, chatID)
	return nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// drain runs the worker over everything queued so far.
func drain(t *testing.T, r *relay, store *fakeStore) {
	t.Helper()
	worker := queue.NewWorker(store, r)
	for {
		select {
		case job := <-r.queue.Jobs():
			require.NoError(t, worker.Process(context.Background(), job))
		default:
			return
		}
	}
}

func TestSync_DrawPersistEraseAcrossTwoClients(t *testing.T) {
	r := newRelay()
	store := &fakeStore{rows: map[int64]string{}}

	c1 := r.addClient("c1")
	c2 := r.addClient("c2")

	// C1 draws a rectangle; both clients see exactly one, C2's via the
	// live broadcast before anything is durable.
	c1.SetTool(ToolRectangle)
	c1.PointerDown(10, 10)
	c1.PointerUp(60, 40)

	wantGeometry := shape.Rectangle{X: 10, Y: 10, Width: 50, Height: 30}
	require.Len(t, c1.Shapes(), 1)
	require.Len(t, c2.Shapes(), 1)
	assert.Equal(t, wantGeometry, c1.Shapes()[0].Geometry)
	assert.Equal(t, wantGeometry, c2.Shapes()[0].Geometry)
	assert.Zero(t, c1.Shapes()[0].DBID, "nothing durable yet")

	// The worker commits the create job and echoes the durable id; both
	// lists stay at one entry, now correlated.
	drain(t, r, store)

	require.Len(t, c1.Shapes(), 1, "echo must not duplicate on the author")
	require.Len(t, c2.Shapes(), 1, "echo must not duplicate on the peer")
	dbID := c1.Shapes()[0].DBID
	require.NotZero(t, dbID)
	assert.Equal(t, dbID, c2.Shapes()[0].DBID)
	assert.Equal(t, 1, store.count())

	// C1 erases through the rectangle's edge: it disappears locally at
	// once, propagates to C2, and the worker deletes the row.
	c1.SetTool(ToolEraser)
	c1.PointerDown(10, 12)
	c1.PointerUp(10, 12)

	assert.Empty(t, c1.Shapes())
	assert.Empty(t, c2.Shapes())

	drain(t, r, store)
	assert.Equal(t, 0, store.count())

	// A replayed erase for the same id is a no-op everywhere.
	c2.ApplyErase(dbID)
	drain(t, r, store)
	assert.Empty(t, c2.Shapes())
	assert.Equal(t, 0, store.count())
}

func TestSync_RoomBaselineAfterReconnect(t *testing.T) {
	r := newRelay()
	store := &fakeStore{rows: map[int64]string{}}

	c1 := r.addClient("c1")
	c1.SetTool(ToolCircle)
	c1.PointerDown(0, 0)
	c1.PointerUp(40, 40)
	drain(t, r, store)

	// A late joiner rebuilds the canvas from durable rows and then
	// absorbs a replay of the same shape without duplicating it.
	late := r.addClient("late")
	var baseline []shape.Shape
	store.mu.Lock()
	for id, message := range store.rows {
		s, err := shape.Decode(message)
		require.NoError(t, err)
		s.DBID = id
		baseline = append(baseline, s)
	}
	store.mu.Unlock()
	late.LoadBaseline(baseline)

	require.Len(t, late.Shapes(), 1)
	replay := late.Shapes()[0]
	late.ApplyRemote(replay)
	assert.Len(t, late.Shapes(), 1)
}
