package tile

import "github.com/pkg/errors"

var (
	// ErrTruncatedHeader is returned when fewer than HeaderSize bytes are available.
	ErrTruncatedHeader = errors.New("truncated header")

	// ErrIndexOutOfRange is returned when a tile index lies outside the planned range.
	ErrIndexOutOfRange = errors.New("tile index out of range")

	// ErrInvalidTileSize is returned for tile sizes the header cannot describe.
	ErrInvalidTileSize = errors.New("invalid tile size")
)
