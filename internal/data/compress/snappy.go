package compress

import (
	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// Snappy implements the Engine interface using the snappy block format.
// Snappy has a single setting; the level is recorded but not used.
type Snappy struct {
	level Level
}

// NewSnappy creates a new snappy engine.
func NewSnappy(level Level) *Snappy {
	return &Snappy{level: level.Clamp()}
}

func (c *Snappy) Name() string { return EngineSnappy }

func (c *Snappy) Level() Level { return c.level }

func (c *Snappy) CompressBound(tileSize int) Bound {
	return Bound{PageSize: snappy.MaxEncodedLen(tileSize), Pages: 1}
}

func (c *Snappy) Compress(src []byte, pages []Page) (int, error) {
	page, err := singlePage(EngineSnappy, pages)
	if err != nil {
		return 0, err
	}

	out := snappy.Encode(page.Data, src)
	if !sameBuffer(out, page.Data) {
		return 0, errors.Wrapf(ErrInsufficientSpace, "snappy: %d bytes do not fit page of %d", len(out), len(page.Data))
	}

	page.Len = len(out)
	return page.Len, nil
}

func (c *Snappy) Decompress(src [][]byte, dst []byte) (int, error) {
	in := joinPages(src)

	n, err := snappy.DecodedLen(in)
	if err != nil {
		return 0, errors.Wrapf(ErrBadData, "snappy: %v", err)
	}
	if n > len(dst) {
		return 0, errors.Wrapf(ErrInsufficientSpace, "snappy: output of %d bytes exceeds %d", n, len(dst))
	}

	out, err := snappy.Decode(dst, in)
	if err != nil {
		return 0, errors.Wrapf(ErrBadData, "snappy: %v", err)
	}
	return len(out), nil
}

func (c *Snappy) Close() error { return nil }
