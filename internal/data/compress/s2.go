package compress

import (
	"github.com/klauspost/compress/s2"
	"github.com/pkg/errors"
)

// S2 implements the Engine interface using the S2 block format.
type S2 struct {
	level Level
}

// NewS2 creates a new S2 engine.
// Levels up to 3 use Encode, up to 8 EncodeBetter, above that EncodeBest.
func NewS2(level Level) *S2 {
	return &S2{level: level.Clamp()}
}

func (c *S2) Name() string { return EngineS2 }

func (c *S2) Level() Level { return c.level }

func (c *S2) CompressBound(tileSize int) Bound {
	return Bound{PageSize: s2.MaxEncodedLen(tileSize), Pages: 1}
}

func (c *S2) Compress(src []byte, pages []Page) (int, error) {
	page, err := singlePage(EngineS2, pages)
	if err != nil {
		return 0, err
	}

	var out []byte
	switch {
	case c.level <= Level3:
		out = s2.Encode(page.Data, src)
	case c.level <= Level8:
		out = s2.EncodeBetter(page.Data, src)
	default:
		out = s2.EncodeBest(page.Data, src)
	}

	// S2 allocates a new slice when dst is too small.
	if !sameBuffer(out, page.Data) {
		return 0, errors.Wrapf(ErrInsufficientSpace, "s2: %d bytes do not fit page of %d", len(out), len(page.Data))
	}

	page.Len = len(out)
	return page.Len, nil
}

func (c *S2) Decompress(src [][]byte, dst []byte) (int, error) {
	in := joinPages(src)

	n, err := s2.DecodedLen(in)
	if err != nil {
		return 0, errors.Wrapf(ErrBadData, "s2: %v", err)
	}
	if n > len(dst) {
		return 0, errors.Wrapf(ErrInsufficientSpace, "s2: output of %d bytes exceeds %d", n, len(dst))
	}

	out, err := s2.Decode(dst, in)
	if err != nil {
		return 0, errors.Wrapf(ErrBadData, "s2: %v", err)
	}
	return len(out), nil
}

func (c *S2) Close() error { return nil }
