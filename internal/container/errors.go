package container

import "github.com/pkg/errors"

// Format errors. A stream that fails with one of these is rejected whole.
var (
	// ErrInvalidHeader is returned when the id/magic pair or the packed
	// header fields do not describe a valid container.
	ErrInvalidHeader = errors.New("invalid container header")

	// ErrTruncatedSizeTable is returned when the stream ends inside the size table.
	ErrTruncatedSizeTable = errors.New("truncated size table")

	// ErrTruncatedPayload is returned when a tile payload runs past the end of the stream.
	ErrTruncatedPayload = errors.New("truncated tile payload")

	// ErrTrailingData is returned when bytes follow the last tile payload.
	ErrTrailingData = errors.New("trailing data after last tile")
)

var (
	// ErrCorruptTile is returned when a tile decodes to a different length than declared.
	ErrCorruptTile = errors.New("corrupt tile")

	// ErrBoundExceeded is returned when an engine writes more than its
	// reported compress bound. It indicates a broken engine.
	ErrBoundExceeded = errors.New("engine exceeded compress bound")

	// ErrInputTooLarge is returned when the input needs more tiles than the header can count.
	ErrInputTooLarge = errors.New("input too large for container")
)
