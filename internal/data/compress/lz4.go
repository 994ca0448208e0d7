package compress

import (
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// hcLevels maps levels 3..12 onto the LZ4 high compression levels.
var hcLevels = [...]lz4.CompressionLevel{
	lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4, lz4.Level5,
	lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
}

// LZ4 implements the Engine interface using the LZ4 block format.
// Levels 0-2 use the fast compressor, 3-12 the high compression one.
type LZ4 struct {
	level Level
	fast  lz4.Compressor
	hc    lz4.CompressorHC
}

// NewLZ4 creates a new LZ4 engine.
func NewLZ4(level Level) *LZ4 {
	level = level.Clamp()
	c := &LZ4{level: level}
	if level >= Level3 {
		c.hc.Level = hcLevels[min(int(level-Level3), len(hcLevels)-1)]
	}
	return c
}

func (c *LZ4) Name() string { return EngineLZ4 }

func (c *LZ4) Level() Level { return c.level }

// CompressBound returns the LZ4 worst case for one tile in a single page.
func (c *LZ4) CompressBound(tileSize int) Bound {
	return Bound{PageSize: lz4.CompressBlockBound(tileSize), Pages: 1}
}

// Compress compresses src using LZ4.
func (c *LZ4) Compress(src []byte, pages []Page) (int, error) {
	page, err := singlePage(EngineLZ4, pages)
	if err != nil {
		return 0, err
	}

	var n int
	if c.level >= Level3 {
		n, err = c.hc.CompressBlock(src, page.Data)
	} else {
		n, err = c.fast.CompressBlock(src, page.Data)
	}
	if err != nil {
		return 0, errors.Wrapf(ErrInsufficientSpace, "lz4: %v", err)
	}
	if n == 0 && len(src) > 0 {
		// Only happens when the page is smaller than the bound.
		return 0, errors.Wrap(ErrInsufficientSpace, "lz4: block does not fit page")
	}

	page.Len = n
	return n, nil
}

// Decompress decompresses an LZ4 block into dst.
// The block format cannot tell a short destination from a corrupt block,
// so both surface as ErrBadData.
func (c *LZ4) Decompress(src [][]byte, dst []byte) (int, error) {
	n, err := lz4.UncompressBlock(joinPages(src), dst)
	if err != nil {
		return 0, errors.Wrapf(ErrBadData, "lz4: %v", err)
	}
	return n, nil
}

func (c *LZ4) Close() error { return nil }
