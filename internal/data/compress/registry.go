package compress

import (
	"github.com/pkg/errors"
)

// Registered engine names.
const (
	EngineLZ4     = "lz4"
	EngineDeflate = "deflate"
	EngineZstd    = "zstd"
	EngineS2      = "s2"
	EngineSnappy  = "snappy"
	EngineStore   = "store"
)

// DefaultEngine is used when no engine is configured.
const DefaultEngine = EngineDeflate

var engineNames = []string{EngineDeflate, EngineLZ4, EngineS2, EngineSnappy, EngineStore, EngineZstd}

// Option configures engine construction.
type Option func(*options)

type options struct {
	pageSize int
}

// WithPageSize sets the output page size of engines that split tiles.
func WithPageSize(pageSize int) Option {
	return func(o *options) {
		o.pageSize = pageSize
	}
}

// Names returns the registered engine names in sorted order.
func Names() []string {
	return append([]string(nil), engineNames...)
}

// New creates the named engine at the given level.
func New(name string, level Level, opts ...Option) (Engine, error) {
	o := options{pageSize: DefaultPageSize}
	for _, opt := range opts {
		opt(&o)
	}

	switch name {
	case EngineLZ4:
		return NewLZ4(level), nil
	case EngineDeflate:
		return NewDeflate(level)
	case EngineZstd:
		return NewZstd(level)
	case EngineS2:
		return NewS2(level), nil
	case EngineSnappy:
		return NewSnappy(level), nil
	case EngineStore:
		return NewStore(level, o.pageSize), nil
	default:
		return nil, errors.Wrapf(ErrUnknownEngine, "%q", name)
	}
}
