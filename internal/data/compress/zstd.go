package compress

import (
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Zstd implements the Engine interface using single-frame zstd blocks.
// The encoder and decoder run single-threaded; the engine owns both.
type Zstd struct {
	level Level
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

// NewZstd creates a new zstd engine.
func NewZstd(level Level) (*Zstd, error) {
	level = level.Clamp()

	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(int(level))),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, errors.Wrapf(ErrEngineCreate, "zstd encoder: %v", err)
	}

	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecodeAllCapLimit(true),
	)
	if err != nil {
		enc.Close()
		return nil, errors.Wrapf(ErrEngineCreate, "zstd decoder: %v", err)
	}

	return &Zstd{level: level, enc: enc, dec: dec}, nil
}

func (z *Zstd) Name() string { return EngineZstd }

func (z *Zstd) Level() Level { return z.level }

// CompressBound follows ZSTD_COMPRESSBOUND plus room for frame header and checksum.
func (z *Zstd) CompressBound(tileSize int) Bound {
	bound := tileSize + tileSize>>8
	if tileSize < 128<<10 {
		bound += (128<<10 - tileSize) >> 11
	}
	return Bound{PageSize: bound + 32, Pages: 1}
}

// Compress encodes src as one zstd frame directly into the page.
func (z *Zstd) Compress(src []byte, pages []Page) (int, error) {
	page, err := singlePage(EngineZstd, pages)
	if err != nil {
		return 0, err
	}

	out := z.enc.EncodeAll(src, page.Data[:0])
	if len(out) > len(page.Data) || !sameBuffer(out, page.Data) {
		return 0, errors.Wrapf(ErrInsufficientSpace, "zstd: %d bytes do not fit page of %d", len(out), len(page.Data))
	}

	page.Len = len(out)
	return page.Len, nil
}

// Decompress decodes one zstd frame into dst. The decoder is capped at
// len(dst), so a frame declaring more output fails before allocating it.
func (z *Zstd) Decompress(src [][]byte, dst []byte) (int, error) {
	out, err := z.dec.DecodeAll(joinPages(src), dst[:0:len(dst)])
	if err != nil {
		switch {
		case errors.Is(err, io.ErrUnexpectedEOF):
			return 0, errors.Wrap(ErrShortInput, "zstd")
		case errors.Is(err, zstd.ErrDecoderSizeExceeded):
			return 0, errors.Wrapf(ErrInsufficientSpace, "zstd: %v", err)
		default:
			return 0, errors.Wrapf(ErrBadData, "zstd: %v", err)
		}
	}

	if len(out) > len(dst) {
		return 0, errors.Wrapf(ErrInsufficientSpace, "zstd: output of %d bytes exceeds %d", len(out), len(dst))
	}
	if !sameBuffer(out, dst) {
		copy(dst, out)
	}
	return len(out), nil
}

func (z *Zstd) Close() error {
	z.dec.Close()
	return z.enc.Close()
}
