package blockfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCoordHashStable(t *testing.T) {
	c := Coord{GX: 1, GY: 2, GZ: 3}
	require.Equal(t, c.hash(), c.hash())
	other := Coord{GX: 1, GY: 2, GZ: 4}
	require.NotEqual(t, c.hash(), other.hash())
}

func TestCoordWorkerInRange(t *testing.T) {
	for gx := uint32(0); gx < 50; gx++ {
		c := Coord{GX: gx, GY: gx * 3, GZ: gx * 7}
		w := c.worker(6)
		require.GreaterOrEqual(t, w, 0)
		require.Less(t, w, 6)
	}
}

func TestCoordLinearIndexZMajor(t *testing.T) {
	nx, ny := uint32(4), uint32(5)
	require.Equal(t, uint64(0), Coord{0, 0, 0}.linearIndex(nx, ny))
	require.Equal(t, uint64(1), Coord{1, 0, 0}.linearIndex(nx, ny))
	require.Equal(t, uint64(nx), Coord{0, 1, 0}.linearIndex(nx, ny))
	require.Equal(t, uint64(nx)*uint64(ny), Coord{0, 0, 1}.linearIndex(nx, ny))
}

func TestCoordInBounds(t *testing.T) {
	require.True(t, Coord{1, 1, 1}.inBounds(2, 2, 2))
	require.False(t, Coord{2, 1, 1}.inBounds(2, 2, 2))
	require.False(t, Coord{1, 2, 1}.inBounds(2, 2, 2))
	require.False(t, Coord{1, 1, 2}.inBounds(2, 2, 2))
}
