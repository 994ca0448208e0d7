package container

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/0xReLogic/tilepack/internal/data/bitmap"
	"github.com/0xReLogic/tilepack/internal/data/compress"
	"github.com/0xReLogic/tilepack/internal/tile"
)

// Decompressor rebuilds the original input from a container stream.
//
// A Decompressor is not safe for concurrent use.
type Decompressor struct {
	engine   compress.Engine
	tileSize int
	log      *logrus.Entry
}

// NewDecompressor creates a Decompressor that owns a new engine built from opts.
func NewDecompressor(opts Options) (*Decompressor, error) {
	opts = opts.withDefaults()

	engine, err := opts.newEngine()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create decompressor")
	}

	return &Decompressor{
		engine:   engine,
		tileSize: opts.TileSize,
		log:      opts.Logger.WithField("engine", engine.Name()),
	}, nil
}

// TileSize returns the configured tile size.
func (d *Decompressor) TileSize() int {
	return d.tileSize
}

// Decompress returns the original input of stream. Either every tile decodes
// and the full output is returned, or nothing is.
func (d *Decompressor) Decompress(stream []byte) ([]byte, error) {
	idx, err := ParseIndex(stream, d.tileSize)
	if err != nil {
		return nil, err
	}

	out := make([]byte, idx.UncompressedSize())
	for _, t := range idx.Tiles {
		dst := out[t.UncompressedOffset : t.UncompressedOffset+t.UncompressedSize]
		if err := d.decodeTile(stream, t, dst); err != nil {
			return nil, err
		}
	}

	d.log.WithFields(logrus.Fields{
		"tiles": idx.TileCount(),
		"in":    len(stream),
		"out":   len(out),
	}).Debug("decompressed container")

	return out, nil
}

// DecompressTile decodes tile i of stream into dst and returns its length.
// idx must come from ParseIndex on the same stream.
func (d *Decompressor) DecompressTile(idx *Index, stream []byte, i int, dst []byte) (int, error) {
	if i < 0 || i >= idx.TileCount() {
		return 0, errors.Wrapf(tile.ErrIndexOutOfRange, "tile %d of %d", i, idx.TileCount())
	}

	t := idx.Tiles[i]
	if len(dst) < t.UncompressedSize {
		return 0, errors.Wrapf(compress.ErrInsufficientSpace, "tile %d needs %d bytes, have %d", i, t.UncompressedSize, len(dst))
	}
	if err := d.decodeTile(stream, t, dst[:t.UncompressedSize]); err != nil {
		return 0, err
	}
	return t.UncompressedSize, nil
}

func (d *Decompressor) decodeTile(stream []byte, t Tile, dst []byte) error {
	payload := stream[t.Offset : t.Offset+t.CompressedSize]

	n, err := d.engine.Decompress([][]byte{payload}, dst)
	if err != nil {
		return errors.Wrapf(err, "failed to decompress tile %d", t.Index)
	}
	if n != t.UncompressedSize {
		return errors.Wrapf(ErrCorruptTile, "tile %d: decoded %d bytes, expected %d", t.Index, n, t.UncompressedSize)
	}
	return nil
}

// Report is the outcome of Verify.
type Report struct {
	// TileCount is the number of tiles checked.
	TileCount int

	// UncompressedSize is the length declared by the header.
	UncompressedSize int

	// Damaged holds the indices of tiles that failed to decode.
	Damaged *bitmap.Tiles
}

// OK reports whether every tile decoded.
func (r *Report) OK() bool {
	return r.Damaged.IsEmpty()
}

// Verify decodes every tile of stream without keeping the output. Damaged
// tiles are collected in the report; only structural errors are returned.
func (d *Decompressor) Verify(stream []byte) (*Report, error) {
	idx, err := ParseIndex(stream, d.tileSize)
	if err != nil {
		return nil, err
	}

	report := &Report{
		TileCount:        idx.TileCount(),
		UncompressedSize: idx.UncompressedSize(),
		Damaged:          bitmap.New(),
	}

	buf := make([]byte, d.tileSize)
	for _, t := range idx.Tiles {
		if err := d.decodeTile(stream, t, buf[:t.UncompressedSize]); err != nil {
			d.log.WithError(err).WithField("tile", t.Index).Debug("damaged tile")
			report.Damaged.Add(uint32(t.Index))
		}
	}

	return report, nil
}

// Close releases the engine.
func (d *Decompressor) Close() error {
	return d.engine.Close()
}
