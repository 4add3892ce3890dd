// Package stroke holds the geometry applied to freehand input: the
// single-pass point reducer run before a stroke is sent, and the midpoint
// smoothing renderers use to draw it.
package stroke

import (
	"math"

	"MyLocalBoard/internal/state"
)

// DefaultTolerance is the simplification distance used by clients.
const DefaultTolerance = 2.0

// Simplify drops interior points that are within tolerance of both the
// previously kept point and the next raw point. The first and last points
// are always kept and inputs of two points or fewer are returned as is.
//
// This is a single forward pass, not recursive Douglas-Peucker; output
// must match that rule exactly.
func Simplify(points []state.Point, tolerance float64) []state.Point {
	if len(points) <= 2 {
		return append([]state.Point(nil), points...)
	}
	out := make([]state.Point, 0, len(points))
	out = append(out, points[0])
	last := points[0]
	for i := 1; i < len(points)-1; i++ {
		p := points[i]
		if Distance(p, last) > tolerance || Distance(p, points[i+1]) > tolerance {
			out = append(out, p)
			last = p
		}
	}
	return append(out, points[len(points)-1])
}

// Distance is the Euclidean distance between a and b.
func Distance(a, b state.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
