package shape

import "math"

// Builders turning a completed pointer gesture into a geometry. Each
// takes the gesture's anchor point and release point.

func RectangleFrom(startX, startY, endX, endY float64) Rectangle {
	return Rectangle{X: startX, Y: startY, Width: endX - startX, Height: endY - startY}
}

// CircleFrom inscribes a circle in the drag: the radius is half the
// larger drag extent, and the center is offset toward the drag direction.
func CircleFrom(startX, startY, endX, endY float64) Circle {
	width := endX - startX
	height := endY - startY
	radius := math.Max(math.Abs(width), math.Abs(height)) / 2
	cx := startX - radius
	if width > 0 {
		cx = startX + radius
	}
	cy := startY - radius
	if height > 0 {
		cy = startY + radius
	}
	return Circle{CenterX: cx, CenterY: cy, Radius: radius}
}

func LineFrom(startX, startY, endX, endY float64) Line {
	return Line{StartX: startX, StartY: startY, EndX: endX, EndY: endY}
}

// DiamondFrom inscribes a diamond in the drag's bounding box.
func DiamondFrom(startX, startY, endX, endY float64) Diamond {
	width := endX - startX
	height := endY - startY
	return Diamond{
		CenterX: startX + width/2,
		CenterY: startY + height/2,
		Width:   math.Abs(width),
		Height:  math.Abs(height),
	}
}

// PencilFrom copies the sampled free-form path. A path needs at least
// one point to form a shape; nil is returned otherwise.
func PencilFrom(points []Point) *Pencil {
	if len(points) == 0 {
		return nil
	}
	copied := make([]Point, len(points))
	copy(copied, points)
	return &Pencil{Points: copied}
}
