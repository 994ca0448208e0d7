package compress

import "github.com/pkg/errors"

// Status errors reported by engines. They are kept distinct so callers can
// tell corrupt input apart from a buffer that is too small.
var (
	// ErrBadData is returned when the compressed input is malformed.
	ErrBadData = errors.New("bad compressed data")

	// ErrInsufficientSpace is returned when the output buffer is too small.
	ErrInsufficientSpace = errors.New("insufficient output space")

	// ErrShortInput is returned when the compressed input ends early.
	ErrShortInput = errors.New("compressed input ended early")
)

var (
	// ErrUnknownEngine is returned by New for an unregistered engine name.
	ErrUnknownEngine = errors.New("unknown compression engine")

	// ErrEngineCreate is returned when an engine workspace cannot be allocated.
	ErrEngineCreate = errors.New("failed to create compression engine")
)
