package container

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/0xReLogic/tilepack/internal/data/compress"
	"github.com/0xReLogic/tilepack/internal/data/encoding"
	"github.com/0xReLogic/tilepack/internal/tile"
)

// Result is a complete container stream and the layout of its tiles.
type Result struct {
	// Bytes is the header, size table and payloads.
	Bytes []byte

	// Tiles describes every payload in Bytes.
	Tiles []Tile

	// TileSize is the tile size the stream was built with.
	TileSize int
}

// Header decodes the header at the front of Bytes.
func (r *Result) Header() tile.Header {
	h, _ := tile.DecodeHeader(r.Bytes, r.TileSize)
	return h
}

// Compressor splits input into tiles and compresses each one with its engine.
//
// A Compressor is not safe for concurrent use.
type Compressor struct {
	engine   compress.Engine
	tileSize int
	log      *logrus.Entry
}

// NewCompressor creates a Compressor that owns a new engine built from opts.
func NewCompressor(opts Options) (*Compressor, error) {
	opts = opts.withDefaults()

	engine, err := opts.newEngine()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create compressor")
	}

	return &Compressor{
		engine:   engine,
		tileSize: opts.TileSize,
		log:      opts.Logger.WithField("engine", engine.Name()),
	}, nil
}

// TileSize returns the configured tile size.
func (c *Compressor) TileSize() int {
	return c.tileSize
}

// Compress builds a container stream for src. Tiles are compressed in order
// into a scratch area sized from the engine bound; nothing is kept between calls.
func (c *Compressor) Compress(src []byte) (*Result, error) {
	count, err := checkInput(len(src), c.tileSize)
	if err != nil {
		return nil, err
	}

	s := newScratch(c.engine, c.tileSize)
	out := newStream(len(src), c.tileSize, count, len(src)/2)

	for i := 0; i < count; i++ {
		offset, length, err := tile.Bounds(i, len(src), c.tileSize)
		if err != nil {
			return nil, err
		}

		before := len(out)
		out, err = s.compressTile(out, i, src[offset:offset+length])
		if err != nil {
			return nil, err
		}
		encoding.PutUint32At(out[tile.HeaderSize:], i, uint32(len(out)-before))
	}

	res, err := newResult(out, c.tileSize)
	if err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"tiles": count,
		"in":    len(src),
		"out":   len(res.Bytes),
	}).Debug("compressed container")

	return res, nil
}

// Close releases the engine.
func (c *Compressor) Close() error {
	return c.engine.Close()
}

func checkInput(size, tileSize int) (int, error) {
	if err := tile.ValidateTileSize(tileSize); err != nil {
		return 0, err
	}
	count := tile.Count(size, tileSize)
	if count > tile.MaxTiles {
		return 0, errors.Wrapf(ErrInputTooLarge, "%d bytes need %d tiles of %d, limit %d",
			size, count, tileSize, tile.MaxTiles)
	}
	return count, nil
}

// scratch is the per-call output area for one engine.
type scratch struct {
	engine compress.Engine
	bound  compress.Bound
	pages  []compress.Page
}

func newScratch(engine compress.Engine, tileSize int) *scratch {
	bound := engine.CompressBound(tileSize)
	buf := make([]byte, bound.Total())

	pages := make([]compress.Page, bound.Pages)
	for i := range pages {
		start := i * bound.PageSize
		pages[i].Data = buf[start : start+bound.PageSize : start+bound.PageSize]
	}

	return &scratch{engine: engine, bound: bound, pages: pages}
}

// compressTile compresses one tile and appends its pages, in order, to dst.
func (s *scratch) compressTile(dst []byte, index int, src []byte) ([]byte, error) {
	n, err := s.engine.Compress(src, s.pages)
	if err != nil {
		if errors.Is(err, compress.ErrInsufficientSpace) {
			return nil, errors.Wrapf(ErrBoundExceeded, "tile %d: %v", index, err)
		}
		return nil, errors.Wrapf(err, "failed to compress tile %d", index)
	}
	if n < 0 || n > s.bound.Total() {
		return nil, errors.Wrapf(ErrBoundExceeded, "tile %d: wrote %d bytes, bound %d", index, n, s.bound.Total())
	}

	written := 0
	for _, p := range s.pages {
		if p.Len < 0 || p.Len > s.bound.PageSize {
			return nil, errors.Wrapf(ErrBoundExceeded, "tile %d: page of %d bytes, bound %d", index, p.Len, s.bound.PageSize)
		}
		dst = append(dst, p.Data[:p.Len]...)
		written += p.Len
	}
	if written != n {
		return nil, errors.Wrapf(ErrBoundExceeded, "tile %d: engine reported %d bytes, pages hold %d", index, n, written)
	}

	return dst, nil
}

// newStream returns the header for size bytes followed by a zeroed size
// table of count entries, with room for hint payload bytes.
func newStream(size, tileSize, count, hint int) []byte {
	table := encoding.Uint32Size * count
	out := make([]byte, 0, tile.HeaderSize+table+hint)
	out = tile.NewHeader(size, tileSize).AppendTo(out)
	return append(out, make([]byte, table)...)
}

// newResult indexes a freshly built stream.
func newResult(stream []byte, tileSize int) (*Result, error) {
	idx, err := ParseIndex(stream, tileSize)
	if err != nil {
		return nil, errors.Wrap(err, "built an unreadable container")
	}
	return &Result{Bytes: stream, Tiles: idx.Tiles, TileSize: tileSize}, nil
}
