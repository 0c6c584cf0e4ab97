package client

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shubbu03/illustrations/domain"
	"github.com/Shubbu03/illustrations/shape"
)

type mockSender struct {
	mu     sync.Mutex
	frames []domain.Frame
}

func (m *mockSender) Send(frame domain.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, frame)
	return nil
}

func (m *mockSender) getFrames() []domain.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

type countingCanvas struct {
	clears int
	draws  int
}

func (c *countingCanvas) Clear()                    { c.clears++ }
func (c *countingCanvas) DrawShape(shape.Geometry) { c.draws++ }

func newTestEngine() (*Engine, *mockSender, *countingCanvas) {
	sender := &mockSender{}
	canvas := &countingCanvas{}
	return NewEngine(42, canvas, sender), sender, canvas
}

func TestEngine_RectangleGesture(t *testing.T) {
	engine, sender, _ := newTestEngine()
	engine.SetTool(ToolRectangle)

	engine.PointerDown(10, 10)
	engine.PointerMove(35, 25)
	engine.PointerUp(60, 40)

	shapes := engine.Shapes()
	require.Len(t, shapes, 1)
	assert.Equal(t, shape.Rectangle{X: 10, Y: 10, Width: 50, Height: 30}, shapes[0].Geometry)
	assert.NotEmpty(t, shapes[0].LocalID, "optimistic apply assigns a local id")
	assert.Zero(t, shapes[0].DBID)

	frames := sender.getFrames()
	require.Len(t, frames, 1)
	assert.Equal(t, domain.FrameChat, frames[0].Type)
	assert.Equal(t, "42", frames[0].RoomID)

	sent, err := shape.Decode(frames[0].Message)
	require.NoError(t, err)
	assert.Equal(t, shapes[0].LocalID, sent.LocalID)
	assert.Equal(t, shapes[0].Geometry, sent.Geometry)
}

func TestEngine_LocalIDsAreMonotonic(t *testing.T) {
	engine, _, _ := newTestEngine()
	engine.SetTool(ToolLine)

	engine.PointerDown(0, 0)
	engine.PointerUp(10, 10)
	engine.PointerDown(0, 0)
	engine.PointerUp(20, 20)

	shapes := engine.Shapes()
	require.Len(t, shapes, 2)
	assert.NotEqual(t, shapes[0].LocalID, shapes[1].LocalID)
}

func TestEngine_OwnEchoMergesInPlace(t *testing.T) {
	engine, _, _ := newTestEngine()
	engine.SetTool(ToolRectangle)

	engine.PointerDown(10, 10)
	engine.PointerUp(60, 40)
	local := engine.Shapes()[0]

	echo := local
	echo.DBID = 7
	engine.ApplyRemote(echo)

	shapes := engine.Shapes()
	require.Len(t, shapes, 1, "echo must not duplicate the shape")
	assert.Equal(t, int64(7), shapes[0].DBID)
	assert.Equal(t, local.LocalID, shapes[0].LocalID)
}

func TestEngine_DuplicateDurableDeliveryIsIdempotent(t *testing.T) {
	engine, _, _ := newTestEngine()

	s := shape.Shape{Geometry: shape.Circle{CenterX: 5, CenterY: 5, Radius: 3}, DBID: 9}
	engine.ApplyRemote(s)
	engine.ApplyRemote(s)
	engine.ApplyRemote(s)

	assert.Len(t, engine.Shapes(), 1)
}

func TestEngine_StructuralFallbackAbsorbsReplay(t *testing.T) {
	engine, _, _ := newTestEngine()

	// Neither copy carries a correlation id, as for a peer that sees the
	// same frame twice across a reconnect.
	s := shape.Shape{Geometry: shape.Line{StartX: 0, StartY: 0, EndX: 10, EndY: 10}}
	engine.ApplyRemote(s)
	engine.ApplyRemote(s)

	assert.Len(t, engine.Shapes(), 1)
}

func TestEngine_DistinctShapesAccumulate(t *testing.T) {
	engine, _, _ := newTestEngine()

	engine.ApplyRemote(shape.Shape{Geometry: shape.Circle{CenterX: 1, CenterY: 1, Radius: 1}, DBID: 1})
	engine.ApplyRemote(shape.Shape{Geometry: shape.Circle{CenterX: 2, CenterY: 2, Radius: 2}, DBID: 2})
	engine.ApplyRemote(shape.Shape{Geometry: shape.Circle{CenterX: 3, CenterY: 3, Radius: 3}})

	assert.Len(t, engine.Shapes(), 3)
}

func TestEngine_ForeignLocalIDDoesNotMatch(t *testing.T) {
	engine, _, _ := newTestEngine()

	// A peer's shape arrives carrying the peer's local id; with no local
	// match it lands as a new shape, once.
	s := shape.Shape{Geometry: shape.Rectangle{X: 1, Y: 1, Width: 2, Height: 2}, LocalID: "local_peer_1"}
	engine.ApplyRemote(s)
	engine.ApplyRemote(s)

	assert.Len(t, engine.Shapes(), 1)
}

func TestEngine_ApplyErase(t *testing.T) {
	engine, _, _ := newTestEngine()

	engine.ApplyRemote(shape.Shape{Geometry: shape.Circle{CenterX: 1, CenterY: 1, Radius: 1}, DBID: 1})
	engine.ApplyRemote(shape.Shape{Geometry: shape.Circle{CenterX: 2, CenterY: 2, Radius: 2}, DBID: 2})

	engine.ApplyErase(1)
	shapes := engine.Shapes()
	require.Len(t, shapes, 1)
	assert.Equal(t, int64(2), shapes[0].DBID)

	// Second erase for the same id is a no-op.
	engine.ApplyErase(1)
	assert.Len(t, engine.Shapes(), 1)

	// An erase must never match unpersisted shapes.
	engine.ApplyRemote(shape.Shape{Geometry: shape.Circle{CenterX: 3, CenterY: 3, Radius: 3}})
	engine.ApplyErase(0)
	assert.Len(t, engine.Shapes(), 2)
}

func TestEngine_EraserGesture(t *testing.T) {
	engine, sender, _ := newTestEngine()

	persisted := shape.Shape{Geometry: shape.Rectangle{X: 10, Y: 10, Width: 50, Height: 30}, DBID: 7}
	unpersisted := shape.Shape{Geometry: shape.Rectangle{X: 200, Y: 200, Width: 20, Height: 20}, LocalID: "local_me_1"}
	far := shape.Shape{Geometry: shape.Circle{CenterX: 500, CenterY: 500, Radius: 5}, DBID: 8}
	engine.LoadBaseline([]shape.Shape{persisted, far})
	engine.ApplyRemote(unpersisted)

	engine.SetTool(ToolEraser)

	// Drag through the persisted rectangle's edge.
	engine.PointerDown(8, 12)
	engine.PointerMove(12, 14)
	engine.PointerUp(12, 14)

	shapes := engine.Shapes()
	require.Len(t, shapes, 2, "only the hit shape is removed")

	frames := sender.getFrames()
	require.Len(t, frames, 1, "only the persisted hit propagates an erase")
	erase := frames[0]
	assert.Equal(t, domain.FrameEraseChat, erase.Type)
	assert.Equal(t, int64(7), erase.ChatID)
	assert.Equal(t, "42", erase.RoomID)
}

func TestEngine_EraserDropsUnpersistedSilently(t *testing.T) {
	engine, sender, _ := newTestEngine()

	unpersisted := shape.Shape{Geometry: shape.Rectangle{X: 10, Y: 10, Width: 50, Height: 30}, LocalID: "local_me_1"}
	engine.LoadBaseline([]shape.Shape{unpersisted})

	engine.SetTool(ToolEraser)
	engine.PointerDown(30, 20)
	engine.PointerUp(30, 20)

	assert.Empty(t, engine.Shapes())
	assert.Empty(t, sender.getFrames(), "no erase frame without a durable id")
}

func TestEngine_PencilGesture(t *testing.T) {
	engine, sender, _ := newTestEngine()
	engine.SetTool(ToolPencil)

	engine.PointerDown(0, 0)
	engine.PointerMove(5, 5)
	engine.PointerMove(10, 10)
	engine.PointerUp(15, 15)

	shapes := engine.Shapes()
	require.Len(t, shapes, 1)
	p, ok := shapes[0].Geometry.(shape.Pencil)
	require.True(t, ok)
	assert.Equal(t, []shape.Point{{X: 0, Y: 0}, {X: 5, Y: 5}, {X: 10, Y: 10}, {X: 15, Y: 15}}, p.Points)
	assert.Len(t, sender.getFrames(), 1)
}

func TestEngine_ProvisionalShapeNotCommitted(t *testing.T) {
	engine, sender, canvas := newTestEngine()
	engine.SetTool(ToolRectangle)

	engine.PointerDown(0, 0)
	engine.PointerMove(10, 10)
	engine.PointerMove(20, 20)

	assert.Empty(t, engine.Shapes(), "in-progress gesture stays out of the committed list")
	assert.Empty(t, sender.getFrames())
	assert.Greater(t, canvas.draws, 0, "provisional shape is painted")
}

func TestEngine_RemoteFrameDispatch(t *testing.T) {
	engine, _, _ := newTestEngine()

	message, err := shape.Encode(shape.Shape{Geometry: shape.Circle{CenterX: 1, CenterY: 2, Radius: 3}, DBID: 5})
	require.NoError(t, err)

	engine.OnFrame(domain.Frame{Type: domain.FrameChat, RoomID: "42", Message: message})
	require.Len(t, engine.Shapes(), 1)

	engine.OnFrame(domain.Frame{Type: domain.FrameEraseChat, RoomID: "42", ChatID: 5})
	assert.Empty(t, engine.Shapes())

	// Garbage payloads are dropped without affecting state.
	engine.OnFrame(domain.Frame{Type: domain.FrameChat, RoomID: "42", Message: "not a shape"})
	assert.Empty(t, engine.Shapes())
}

func TestEngine_LoadBaselineReplacesList(t *testing.T) {
	engine, _, canvas := newTestEngine()

	engine.LoadBaseline([]shape.Shape{
		{Geometry: shape.Circle{CenterX: 1, CenterY: 1, Radius: 1}, DBID: 1},
		{Geometry: shape.Circle{CenterX: 2, CenterY: 2, Radius: 2}, DBID: 2},
	})

	assert.Len(t, engine.Shapes(), 2)
	assert.Equal(t, 1, canvas.clears)
	assert.Equal(t, 2, canvas.draws)
}
