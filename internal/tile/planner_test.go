package tile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCount(t *testing.T) {
	cases := []struct {
		total, tileSize, count int
	}{
		{0, 16, 0},
		{1, 16, 1},
		{15, 16, 1},
		{16, 16, 1},
		{17, 16, 2},
		{32, 16, 2},
		{33, 16, 3},
		{5*16 + 3, 16, 6},
	}

	for _, c := range cases {
		assert.Equal(t, c.count, Count(c.total, c.tileSize), "total %d", c.total)
	}
}

func TestBounds_PartialLastTile(t *testing.T) {
	const ts = 1000
	total := 5*ts + 3

	require.Equal(t, 6, Count(total, ts))

	for i := 0; i < 5; i++ {
		off, n, err := Bounds(i, total, ts)
		require.NoError(t, err)
		assert.Equal(t, i*ts, off)
		assert.Equal(t, ts, n)
	}

	off, n, err := Bounds(5, total, ts)
	require.NoError(t, err)
	assert.Equal(t, 5*ts, off)
	assert.Equal(t, 3, n)
}

func TestBounds_ExactMultiple(t *testing.T) {
	const ts = 512

	off, n, err := Bounds(3, 4*ts, ts)
	require.NoError(t, err)
	assert.Equal(t, 3*ts, off)
	assert.Equal(t, ts, n)

	// The header agrees: reserved zero, full last tile.
	h := NewHeader(4*ts, ts)
	assert.Equal(t, 0, h.LastTileSize())
	assert.Equal(t, n, h.LastTileLen())
}

func TestBounds_OutOfRange(t *testing.T) {
	_, _, err := Bounds(2, 2*64, 64)
	require.ErrorIs(t, err, ErrIndexOutOfRange)

	_, _, err = Bounds(0, 0, 64)
	require.ErrorIs(t, err, ErrIndexOutOfRange)

	_, _, err = Bounds(-1, 100, 64)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestBounds_CoverInput(t *testing.T) {
	for _, total := range []int{1, 63, 64, 65, 128, 129, 1000} {
		covered := 0
		for i := 0; i < Count(total, 64); i++ {
			off, n, err := Bounds(i, total, 64)
			require.NoError(t, err)
			require.Equal(t, covered, off)
			require.True(t, n >= 1 && n <= 64)
			covered += n
		}
		assert.Equal(t, total, covered)
	}
}

func TestSpan(t *testing.T) {
	first, last, err := Span(10, 100, 1000, 64)
	require.NoError(t, err)
	assert.Equal(t, 0, first)
	assert.Equal(t, 1, last)

	first, last, err = Span(128, 64, 1000, 64)
	require.NoError(t, err)
	assert.Equal(t, 2, first)
	assert.Equal(t, 2, last)

	_, _, err = Span(990, 20, 1000, 64)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestValidateTileSize(t *testing.T) {
	require.NoError(t, ValidateTileSize(1))
	require.NoError(t, ValidateTileSize(DefaultTileSize))
	require.NoError(t, ValidateTileSize(MaxTileSize))
	require.ErrorIs(t, ValidateTileSize(0), ErrInvalidTileSize)
	require.ErrorIs(t, ValidateTileSize(MaxTileSize+1), ErrInvalidTileSize)
}
