package client

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/Shubbu03/illustrations/domain"
	"github.com/Shubbu03/illustrations/shape"
)

// Tool selects the geometry rule applied to a pointer gesture.
type Tool string

const (
	ToolRectangle Tool = "rectangle"
	ToolCircle    Tool = "circle"
	ToolPencil    Tool = "pencil"
	ToolLine      Tool = "line"
	ToolDiamond   Tool = "diamond"
	ToolEraser    Tool = "eraser"
)

// DefaultEraserRadius is the hit-test tolerance around the eraser point.
const DefaultEraserRadius = 10.0

// Canvas is the render primitive the engine drives. Clear wipes the
// surface; DrawShape strokes one geometry onto it.
type Canvas interface {
	Clear()
	DrawShape(g shape.Geometry)
}

// Sender transmits outbound protocol frames. The websocket Socket
// implements it; tests substitute a recorder.
type Sender interface {
	Send(frame domain.Frame) error
}

// Engine owns one client's view of one room: the committed shape list,
// the selected tool, and the in-progress gesture. It reconciles locally
// drawn, remotely broadcast, and durably persisted copies of each shape
// into a single duplicate-free list.
type Engine struct {
	mu     sync.Mutex
	roomID int64
	canvas Canvas
	sender Sender

	shapes []shape.Shape
	tool   Tool

	drawing        bool
	startX, startY float64
	pencilPath     []shape.Point

	eraserTrail  []shape.Point
	eraserRadius float64

	// session qualifies local ids across reconnects; seq makes them
	// monotonic within the session.
	session string
	seq     int
}

func NewEngine(roomID int64, canvas Canvas, sender Sender) *Engine {
	return &Engine{
		roomID:       roomID,
		canvas:       canvas,
		sender:       sender,
		tool:         ToolCircle,
		eraserRadius: DefaultEraserRadius,
		session:      uuid.NewString()[:8],
	}
}

// LoadBaseline replaces the committed list with the durable shapes
// fetched for the room and repaints.
func (e *Engine) LoadBaseline(shapes []shape.Shape) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shapes = append([]shape.Shape(nil), shapes...)
	e.render()
}

func (e *Engine) SetTool(tool Tool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tool = tool
	if tool == ToolPencil {
		e.pencilPath = nil
	}
	if tool != ToolEraser {
		e.eraserTrail = nil
	}
}

// Shapes returns a copy of the committed list.
func (e *Engine) Shapes() []shape.Shape {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]shape.Shape(nil), e.shapes...)
}

// PointerDown anchors a new gesture at (x, y).
func (e *Engine) PointerDown(x, y float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.drawing = true
	e.startX, e.startY = x, y

	switch e.tool {
	case ToolEraser:
		e.eraserTrail = []shape.Point{{X: x, Y: y}}
		e.eraseAt(x, y)
	case ToolPencil:
		e.pencilPath = []shape.Point{{X: x, Y: y}}
	}
}

// PointerMove extends the in-progress gesture and repaints the committed
// list plus the provisional shape.
func (e *Engine) PointerMove(x, y float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.drawing {
		return
	}

	switch e.tool {
	case ToolEraser:
		e.eraserTrail = append(e.eraserTrail, shape.Point{X: x, Y: y})
		e.eraseAt(x, y)
		e.render()
		e.renderEraserTrail()
	case ToolPencil:
		e.pencilPath = append(e.pencilPath, shape.Point{X: x, Y: y})
		e.render()
		e.renderPencilPath()
	default:
		e.render()
		if g := e.provisional(x, y); g != nil && e.canvas != nil {
			e.canvas.DrawShape(g)
		}
	}
}

// PointerUp completes the gesture: the shape is built per the active
// tool, appended locally with a fresh local id, and transmitted. The
// local apply never waits on the network.
func (e *Engine) PointerUp(x, y float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.drawing {
		return
	}
	e.drawing = false

	if e.tool == ToolEraser {
		e.eraserTrail = nil
		e.render()
		return
	}

	g := e.completed(x, y)
	e.pencilPath = nil
	if g == nil {
		return
	}

	e.seq++
	s := shape.Shape{
		Geometry: g,
		LocalID:  fmt.Sprintf("local_%s_%d", e.session, e.seq),
	}
	e.shapes = append(e.shapes, s)
	e.render()
	e.sendChat(s)
}

func (e *Engine) completed(x, y float64) shape.Geometry {
	switch e.tool {
	case ToolRectangle:
		return shape.RectangleFrom(e.startX, e.startY, x, y)
	case ToolCircle:
		return shape.CircleFrom(e.startX, e.startY, x, y)
	case ToolLine:
		return shape.LineFrom(e.startX, e.startY, x, y)
	case ToolDiamond:
		return shape.DiamondFrom(e.startX, e.startY, x, y)
	case ToolPencil:
		path := e.pencilPath
		if last := len(path) - 1; last < 0 || path[last].X != x || path[last].Y != y {
			path = append(path, shape.Point{X: x, Y: y})
		}
		if p := shape.PencilFrom(path); p != nil {
			return *p
		}
	}
	return nil
}

func (e *Engine) provisional(x, y float64) shape.Geometry {
	switch e.tool {
	case ToolRectangle:
		return shape.RectangleFrom(e.startX, e.startY, x, y)
	case ToolCircle:
		return shape.CircleFrom(e.startX, e.startY, x, y)
	case ToolLine:
		return shape.LineFrom(e.startX, e.startY, x, y)
	case ToolDiamond:
		return shape.DiamondFrom(e.startX, e.startY, x, y)
	}
	return nil
}

// ApplyRemote reconciles one incoming shape against the committed list.
// The three checks run in priority order; reordering them changes the
// dedup behavior.
func (e *Engine) ApplyRemote(incoming shape.Shape) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// 1. Our own echo: a local id match means the shape is already on
	// the list; adopt the durable id in place.
	if incoming.LocalID != "" {
		for i := range e.shapes {
			if e.shapes[i].LocalID == incoming.LocalID {
				if incoming.DBID != 0 && e.shapes[i].DBID == 0 {
					e.shapes[i].DBID = incoming.DBID
				}
				e.render()
				return
			}
		}
	}

	// 2. Already known durably.
	if incoming.DBID != 0 {
		for i := range e.shapes {
			if e.shapes[i].DBID == incoming.DBID {
				return
			}
		}
	}

	// 3. No correlation id matched: fall back to structural equality to
	// absorb duplicate delivery (reconnect replays and the like).
	for i := range e.shapes {
		if e.shapes[i].Geometry.Equal(incoming.Geometry) {
			return
		}
	}

	e.shapes = append(e.shapes, incoming)
	e.render()
}

// ApplyErase removes every shape carrying the durable id. A second
// erase for the same id is a no-op.
func (e *Engine) ApplyErase(dbID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if dbID == 0 {
		return
	}
	kept := e.shapes[:0]
	for _, s := range e.shapes {
		if s.DBID != dbID {
			kept = append(kept, s)
		}
	}
	if len(kept) == len(e.shapes) {
		return
	}
	e.shapes = kept
	e.render()
}

// OnFrame dispatches one server frame into the engine.
func (e *Engine) OnFrame(frame domain.Frame) {
	switch frame.Type {
	case domain.FrameChat:
		s, err := shape.Decode(frame.Message)
		if err != nil {
			slog.Warn("unparseable chat payload", "error", err)
			return
		}
		e.ApplyRemote(s)
	case domain.FrameEraseChat:
		e.ApplyErase(frame.ChatID)
	case domain.FrameError:
		slog.Warn("server error", "message", frame.Message)
	}
}

// eraseAt removes every committed shape within the eraser's tolerance of
// (x, y). Persisted hits propagate an erase frame; shapes without a
// durable id yet just vanish locally. Caller holds e.mu.
func (e *Engine) eraseAt(x, y float64) {
	var hits []shape.Shape
	kept := e.shapes[:0]
	for _, s := range e.shapes {
		if s.Geometry.HitBy(x, y, e.eraserRadius) {
			hits = append(hits, s)
		} else {
			kept = append(kept, s)
		}
	}
	if len(hits) == 0 {
		return
	}
	e.shapes = kept
	e.render()

	for _, s := range hits {
		if s.DBID == 0 {
			continue
		}
		e.send(domain.Frame{
			Type:   domain.FrameEraseChat,
			RoomID: strconv.FormatInt(e.roomID, 10),
			ChatID: s.DBID,
		})
	}
}

func (e *Engine) sendChat(s shape.Shape) {
	message, err := shape.Encode(s)
	if err != nil {
		slog.Error("encode shape", "error", err)
		return
	}
	e.send(domain.Frame{
		Type:    domain.FrameChat,
		RoomID:  strconv.FormatInt(e.roomID, 10),
		Message: message,
	})
}

func (e *Engine) send(frame domain.Frame) {
	if e.sender == nil {
		return
	}
	if err := e.sender.Send(frame); err != nil {
		slog.Warn("send failed", "type", frame.Type, "error", err)
	}
}

// render repaints the committed list. Caller holds e.mu.
func (e *Engine) render() {
	if e.canvas == nil {
		return
	}
	e.canvas.Clear()
	for _, s := range e.shapes {
		e.canvas.DrawShape(s.Geometry)
	}
}

func (e *Engine) renderPencilPath() {
	if e.canvas == nil || len(e.pencilPath) == 0 {
		return
	}
	e.canvas.DrawShape(shape.Pencil{Points: e.pencilPath})
}

func (e *Engine) renderEraserTrail() {
	if e.canvas == nil || len(e.eraserTrail) < 2 {
		return
	}
	e.canvas.DrawShape(shape.Pencil{Points: e.eraserTrail})
}
