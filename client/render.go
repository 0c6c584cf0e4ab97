package client

import (
	"math"

	"github.com/fogleman/gg"

	"github.com/Shubbu03/illustrations/shape"
)

const (
	backgroundColor = "#f8f9fa"
	strokeColor     = "#1e1e1e"
	strokeWidth     = 2.0
	arrowheadAngle  = math.Pi / 6
	arrowheadLength = 10.0
)

// GGCanvas renders shapes onto an in-memory raster surface.
type GGCanvas struct {
	dc *gg.Context
}

func NewGGCanvas(width, height int) *GGCanvas {
	c := &GGCanvas{dc: gg.NewContext(width, height)}
	c.Clear()
	return c
}

func (c *GGCanvas) Clear() {
	c.dc.SetHexColor(backgroundColor)
	c.dc.Clear()
	c.dc.SetHexColor(strokeColor)
	c.dc.SetLineWidth(strokeWidth)
	c.dc.SetLineCap(gg.LineCapRound)
	c.dc.SetLineJoin(gg.LineJoinRound)
}

// DrawShape strokes one geometry. The switch is exhaustive over the
// shape variants; an unknown geometry draws nothing.
func (c *GGCanvas) DrawShape(g shape.Geometry) {
	dc := c.dc
	switch s := g.(type) {
	case shape.Rectangle:
		x, w := normalize(s.X, s.Width)
		y, h := normalize(s.Y, s.Height)
		dc.DrawRectangle(x, y, w, h)
		dc.Stroke()
	case shape.Circle:
		dc.DrawCircle(s.CenterX, s.CenterY, math.Abs(s.Radius))
		dc.Stroke()
	case shape.Pencil:
		if len(s.Points) == 0 {
			return
		}
		dc.MoveTo(s.Points[0].X, s.Points[0].Y)
		for _, p := range s.Points[1:] {
			dc.LineTo(p.X, p.Y)
		}
		dc.Stroke()
	case shape.Line:
		dc.DrawLine(s.StartX, s.StartY, s.EndX, s.EndY)
		dc.Stroke()
		c.drawArrowhead(s.StartX, s.StartY, s.EndX, s.EndY)
	case shape.Diamond:
		halfW, halfH := math.Abs(s.Width)/2, math.Abs(s.Height)/2
		dc.MoveTo(s.CenterX, s.CenterY-halfH)
		dc.LineTo(s.CenterX+halfW, s.CenterY)
		dc.LineTo(s.CenterX, s.CenterY+halfH)
		dc.LineTo(s.CenterX-halfW, s.CenterY)
		dc.ClosePath()
		dc.Stroke()
	}
}

func (c *GGCanvas) drawArrowhead(fromX, fromY, toX, toY float64) {
	angle := math.Atan2(toY-fromY, toX-fromX)
	c.dc.DrawLine(toX, toY,
		toX-arrowheadLength*math.Cos(angle-arrowheadAngle),
		toY-arrowheadLength*math.Sin(angle-arrowheadAngle))
	c.dc.Stroke()
	c.dc.DrawLine(toX, toY,
		toX-arrowheadLength*math.Cos(angle+arrowheadAngle),
		toY-arrowheadLength*math.Sin(angle+arrowheadAngle))
	c.dc.Stroke()
}

// SavePNG writes the current surface to path.
func (c *GGCanvas) SavePNG(path string) error {
	return c.dc.SavePNG(path)
}

func normalize(origin, extent float64) (float64, float64) {
	if extent < 0 {
		return origin + extent, -extent
	}
	return origin, extent
}
