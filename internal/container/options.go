package container

import (
	"github.com/sirupsen/logrus"

	"github.com/0xReLogic/tilepack/internal/data/compress"
	"github.com/0xReLogic/tilepack/internal/tile"
)

// Options configures a Compressor or Decompressor.
type Options struct {
	// Engine is the registered name of the block codec.
	Engine string

	// Level is passed through to the engine.
	Level compress.Level

	// TileSize is the uncompressed size of every tile but the last.
	// Producer and consumer must agree on it; it is not stored in the stream.
	TileSize int

	// PageSize is the output page size for engines that split tiles.
	PageSize int

	// Logger receives debug output. Nil uses the standard logger.
	Logger *logrus.Entry
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Engine:   compress.DefaultEngine,
		Level:    compress.DefaultLevel,
		TileSize: tile.DefaultTileSize,
		PageSize: compress.DefaultPageSize,
	}
}

// withDefaults fills unset fields. Level zero is a valid level and is kept.
func (o Options) withDefaults() Options {
	if o.Engine == "" {
		o.Engine = compress.DefaultEngine
	}
	if o.TileSize == 0 {
		o.TileSize = tile.DefaultTileSize
	}
	if o.PageSize == 0 {
		o.PageSize = compress.DefaultPageSize
	}
	if o.Logger == nil {
		o.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return o
}

func (o Options) newEngine() (compress.Engine, error) {
	if err := tile.ValidateTileSize(o.TileSize); err != nil {
		return nil, err
	}
	return compress.New(o.Engine, o.Level, compress.WithPageSize(o.PageSize))
}
