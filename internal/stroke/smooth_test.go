package stroke

import (
	"testing"

	"github.com/stretchr/testify/require"

	"MyLocalBoard/internal/state"
)

func TestSmooth_SinglePointIsDisc(t *testing.T) {
	t.Parallel()
	s := Smooth(pts(3, 4), 6)

	require.True(t, s.Disc)
	require.Equal(t, state.Point{X: 3, Y: 4}, s.Center)
	require.Equal(t, 3.0, s.Radius)
	require.Empty(t, s.Segments)
}

func TestSmooth_TwoPointsIsLine(t *testing.T) {
	t.Parallel()
	s := Smooth(pts(0, 0, 10, 0), 2)

	require.False(t, s.Disc)
	require.Equal(t, []Segment{{From: state.Point{}, To: state.Point{X: 10}}}, s.Segments)
}

func TestSmooth_CurvesThroughMidpoints(t *testing.T) {
	t.Parallel()
	s := Smooth(pts(0, 0, 10, 0, 10, 10, 0, 10), 2)

	require.Equal(t, []Segment{
		{From: state.Point{X: 0, Y: 0}, Control: state.Point{X: 10, Y: 0}, To: state.Point{X: 10, Y: 5}, Quadratic: true},
		{From: state.Point{X: 10, Y: 5}, Control: state.Point{X: 10, Y: 10}, To: state.Point{X: 5, Y: 10}, Quadratic: true},
		{From: state.Point{X: 5, Y: 10}, To: state.Point{X: 0, Y: 10}},
	}, s.Segments)
}

func TestSmooth_Empty(t *testing.T) {
	t.Parallel()
	require.Equal(t, Shape{}, Smooth(nil, 3))
}
