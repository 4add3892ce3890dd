package state

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOperationBounds_PadsByHalfWidth(t *testing.T) {
	t.Parallel()
	b := OperationBounds(Operation{Width: 4, Points: []Point{{X: 10, Y: 20}, {X: 30, Y: 5}}})

	require.Equal(t, Bounds{X: 8, Y: 3, Width: 24, Height: 19}, b)
}

func TestLogBounds_Union(t *testing.T) {
	t.Parallel()
	ops := []Operation{
		{Width: 2, Points: []Point{{X: 0, Y: 0}}},
		{Width: 2, Points: []Point{{X: 100, Y: 50}}},
	}

	b := LogBounds(ops)
	require.Equal(t, Bounds{X: -1, Y: -1, Width: 102, Height: 52}, b)
	require.True(t, LogBounds(nil).Empty())
}

func TestNewOperationID(t *testing.T) {
	orig := now
	now = func() time.Time { return time.UnixMilli(1700000000123) }
	defer func() { now = orig }()

	a := NewOperationID("user1")
	b := NewOperationID("user1")

	require.True(t, strings.HasPrefix(a, "user1-1700000000123-"))
	require.Len(t, strings.TrimPrefix(a, "user1-1700000000123-"), 8)
	require.NotEqual(t, a, b)
}
