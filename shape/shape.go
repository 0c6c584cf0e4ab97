package shape

import (
	"encoding/json"
	"fmt"
	"math"
)

// Kind tags the shape variants carried on the wire.
type Kind string

const (
	KindRectangle Kind = "rectangle"
	KindCircle    Kind = "circle"
	KindPencil    Kind = "pencil"
	KindLine      Kind = "line"
	KindDiamond   Kind = "diamond"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Geometry is the variant payload of a shape. Implementations are
// immutable value types; all routines switch exhaustively over them.
type Geometry interface {
	Kind() Kind
	// Equal reports exact structural equality with another geometry.
	Equal(other Geometry) bool
	// HitBy reports whether the point lies within tolerance of the
	// geometry, per the eraser's per-variant rules.
	HitBy(x, y, tolerance float64) bool
}

// Shape is one drawable primitive plus its correlation identifiers.
// DBID is zero until storage commits the create job; LocalID is set only
// on shapes the local client originated.
type Shape struct {
	Geometry Geometry
	DBID     int64
	LocalID  string
}

type Rectangle struct {
	X, Y          float64
	Width, Height float64
}

func (Rectangle) Kind() Kind { return KindRectangle }

func (r Rectangle) Equal(other Geometry) bool {
	o, ok := other.(Rectangle)
	return ok && r == o
}

func (r Rectangle) HitBy(x, y, tol float64) bool {
	minX, maxX := ordered(r.X, r.X+r.Width)
	minY, maxY := ordered(r.Y, r.Y+r.Height)
	return x >= minX-tol && x <= maxX+tol && y >= minY-tol && y <= maxY+tol
}

type Circle struct {
	CenterX, CenterY float64
	Radius           float64
}

func (Circle) Kind() Kind { return KindCircle }

func (c Circle) Equal(other Geometry) bool {
	o, ok := other.(Circle)
	return ok && c == o
}

func (c Circle) HitBy(x, y, tol float64) bool {
	return math.Hypot(x-c.CenterX, y-c.CenterY) <= math.Abs(c.Radius)+tol
}

type Pencil struct {
	Points []Point
}

func (Pencil) Kind() Kind { return KindPencil }

func (p Pencil) Equal(other Geometry) bool {
	o, ok := other.(Pencil)
	if !ok || len(p.Points) != len(o.Points) {
		return false
	}
	for i, pt := range p.Points {
		if pt != o.Points[i] {
			return false
		}
	}
	return true
}

func (p Pencil) HitBy(x, y, tol float64) bool {
	for _, pt := range p.Points {
		if math.Hypot(x-pt.X, y-pt.Y) <= tol {
			return true
		}
	}
	return false
}

type Line struct {
	StartX, StartY float64
	EndX, EndY     float64
}

func (Line) Kind() Kind { return KindLine }

func (l Line) Equal(other Geometry) bool {
	o, ok := other.(Line)
	return ok && l == o
}

func (l Line) HitBy(x, y, tol float64) bool {
	return distanceToSegment(x, y, l.StartX, l.StartY, l.EndX, l.EndY) <= tol
}

type Diamond struct {
	CenterX, CenterY float64
	Width, Height    float64
}

func (Diamond) Kind() Kind { return KindDiamond }

func (d Diamond) Equal(other Geometry) bool {
	o, ok := other.(Diamond)
	return ok && d == o
}

// HitBy uses the diamond's bounding box rather than the rhombus itself;
// the observed erase behavior depends on this approximation.
func (d Diamond) HitBy(x, y, tol float64) bool {
	halfW, halfH := d.Width/2, d.Height/2
	return x >= d.CenterX-halfW-tol && x <= d.CenterX+halfW+tol &&
		y >= d.CenterY-halfH-tol && y <= d.CenterY+halfH+tol
}

func ordered(a, b float64) (float64, float64) {
	if a <= b {
		return a, b
	}
	return b, a
}

func distanceToSegment(px, py, x1, y1, x2, y2 float64) float64 {
	dx, dy := x2-x1, y2-y1
	lenSq := dx*dx + dy*dy
	t := -1.0
	if lenSq != 0 {
		t = ((px-x1)*dx + (py-y1)*dy) / lenSq
	}
	var cx, cy float64
	switch {
	case t < 0:
		cx, cy = x1, y1
	case t > 1:
		cx, cy = x2, y2
	default:
		cx, cy = x1+t*dx, y1+t*dy
	}
	return math.Hypot(px-cx, py-cy)
}

// wireShape is the flattened JSON form shared by all variants.
type wireShape struct {
	Type    Kind     `json:"type"`
	X       *float64 `json:"x,omitempty"`
	Y       *float64 `json:"y,omitempty"`
	Width   *float64 `json:"width,omitempty"`
	Height  *float64 `json:"height,omitempty"`
	CenterX *float64 `json:"centerX,omitempty"`
	CenterY *float64 `json:"centerY,omitempty"`
	Radius  *float64 `json:"radius,omitempty"`
	Points  []Point  `json:"points,omitempty"`
	StartX  *float64 `json:"startX,omitempty"`
	StartY  *float64 `json:"startY,omitempty"`
	EndX    *float64 `json:"endX,omitempty"`
	EndY    *float64 `json:"endY,omitempty"`
	DBID    int64    `json:"dbId,omitempty"`
	LocalID string   `json:"localId,omitempty"`
}

func f(v float64) *float64 { return &v }

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func (s Shape) MarshalJSON() ([]byte, error) {
	w := wireShape{DBID: s.DBID, LocalID: s.LocalID}
	switch g := s.Geometry.(type) {
	case Rectangle:
		w.Type = KindRectangle
		w.X, w.Y, w.Width, w.Height = f(g.X), f(g.Y), f(g.Width), f(g.Height)
	case Circle:
		w.Type = KindCircle
		w.CenterX, w.CenterY, w.Radius = f(g.CenterX), f(g.CenterY), f(g.Radius)
	case Pencil:
		w.Type = KindPencil
		w.Points = g.Points
	case Line:
		w.Type = KindLine
		w.StartX, w.StartY, w.EndX, w.EndY = f(g.StartX), f(g.StartY), f(g.EndX), f(g.EndY)
	case Diamond:
		w.Type = KindDiamond
		w.CenterX, w.CenterY, w.Width, w.Height = f(g.CenterX), f(g.CenterY), f(g.Width), f(g.Height)
	default:
		return nil, fmt.Errorf("unknown shape geometry %T", s.Geometry)
	}
	return json.Marshal(w)
}

func (s *Shape) UnmarshalJSON(data []byte) error {
	var w wireShape
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Type {
	case KindRectangle:
		s.Geometry = Rectangle{X: deref(w.X), Y: deref(w.Y), Width: deref(w.Width), Height: deref(w.Height)}
	case KindCircle:
		s.Geometry = Circle{CenterX: deref(w.CenterX), CenterY: deref(w.CenterY), Radius: deref(w.Radius)}
	case KindPencil:
		s.Geometry = Pencil{Points: w.Points}
	case KindLine:
		s.Geometry = Line{StartX: deref(w.StartX), StartY: deref(w.StartY), EndX: deref(w.EndX), EndY: deref(w.EndY)}
	case KindDiamond:
		s.Geometry = Diamond{CenterX: deref(w.CenterX), CenterY: deref(w.CenterY), Width: deref(w.Width), Height: deref(w.Height)}
	default:
		return fmt.Errorf("unknown shape type %q", w.Type)
	}
	s.DBID = w.DBID
	s.LocalID = w.LocalID
	return nil
}

// envelope matches the chat message payload: {"shape": {...}}.
type envelope struct {
	Shape Shape `json:"shape"`
}

// Encode serializes a shape into the chat frame's message payload.
func Encode(s Shape) (string, error) {
	b, err := json.Marshal(envelope{Shape: s})
	if err != nil {
		return "", fmt.Errorf("encode shape: %w", err)
	}
	return string(b), nil
}

// Decode parses a chat frame's message payload back into a shape.
func Decode(message string) (Shape, error) {
	var e envelope
	if err := json.Unmarshal([]byte(message), &e); err != nil {
		return Shape{}, fmt.Errorf("decode shape: %w", err)
	}
	if e.Shape.Geometry == nil {
		return Shape{}, fmt.Errorf("decode shape: missing shape payload")
	}
	return e.Shape, nil
}
