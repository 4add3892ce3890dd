package state

import "math"

// Bounds is an axis-aligned rectangle on the canvas.
type Bounds struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

func (b Bounds) Empty() bool { return b.Width <= 0 && b.Height <= 0 }

// Union returns the smallest rectangle containing both b and o.
func (b Bounds) Union(o Bounds) Bounds {
	if b.Empty() {
		return o
	}
	if o.Empty() {
		return b
	}
	minX := math.Min(b.X, o.X)
	minY := math.Min(b.Y, o.Y)
	maxX := math.Max(b.X+b.Width, o.X+o.Width)
	maxY := math.Max(b.Y+b.Height, o.Y+o.Height)
	return Bounds{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// OperationBounds is the bounding box of op's points, padded by half the
// stroke width so discs and thick lines fit.
func OperationBounds(op Operation) Bounds {
	if len(op.Points) == 0 {
		return Bounds{}
	}
	minX, minY := op.Points[0].X, op.Points[0].Y
	maxX, maxY := minX, minY
	for _, p := range op.Points[1:] {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	pad := op.Width / 2
	if pad < 0.5 {
		pad = 0.5
	}
	return Bounds{
		X:      minX - pad,
		Y:      minY - pad,
		Width:  maxX - minX + 2*pad,
		Height: maxY - minY + 2*pad,
	}
}

// LogBounds covers every operation in ops.
func LogBounds(ops []Operation) Bounds {
	var b Bounds
	for _, op := range ops {
		b = b.Union(OperationBounds(op))
	}
	return b
}
