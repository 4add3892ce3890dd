package stroke

import "MyLocalBoard/internal/state"

// Segment is one piece of a rendered stroke. Quadratic segments bend
// toward Control; straight ones ignore it.
type Segment struct {
	From      state.Point
	Control   state.Point
	To        state.Point
	Quadratic bool
}

// Shape is how a stroke is drawn: a filled disc for a single point,
// otherwise a connected run of segments.
type Shape struct {
	Disc     bool
	Center   state.Point
	Radius   float64
	Segments []Segment
}

// Smooth converts a point sequence into quadratic curves through
// successive midpoints, each raw interior point acting as a control
// point, closed by a straight run to the last point.
func Smooth(points []state.Point, width float64) Shape {
	switch len(points) {
	case 0:
		return Shape{}
	case 1:
		return Shape{Disc: true, Center: points[0], Radius: width / 2}
	case 2:
		return Shape{Segments: []Segment{{From: points[0], To: points[1]}}}
	}
	segs := make([]Segment, 0, len(points)-1)
	from := points[0]
	for i := 1; i < len(points)-1; i++ {
		mid := Midpoint(points[i], points[i+1])
		segs = append(segs, Segment{From: from, Control: points[i], To: mid, Quadratic: true})
		from = mid
	}
	segs = append(segs, Segment{From: from, To: points[len(points)-1]})
	return Shape{Segments: segs}
}

func Midpoint(a, b state.Point) state.Point {
	return state.Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}
