package net

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShareLinkRoundTrip(t *testing.T) {
	t.Parallel()
	link := ShareLink("192.168.1.4", 8888, "team board")
	require.Equal(t, "localboard://192.168.1.4:8888/team%20board", link)

	ws, room, err := ParseLink(link)
	require.NoError(t, err)
	require.Equal(t, "ws://192.168.1.4:8888/ws", ws)
	require.Equal(t, "team board", room)
}

func TestParseLink(t *testing.T) {
	t.Parallel()
	_, room, err := ParseLink("localboard://host:1/")
	require.NoError(t, err)
	require.Equal(t, "default", room)

	_, _, err = ParseLink("http://host:1/r")
	require.Error(t, err)
	_, _, err = ParseLink("localboard:///r")
	require.Error(t, err)
}
