package compress

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"
)

// Deflate implements the Engine interface using raw DEFLATE blocks.
// The writer and reader are reset and reused for every tile.
type Deflate struct {
	level Level
	buf   bytes.Buffer
	w     *flate.Writer
	in    bytes.Reader
	r     io.ReadCloser
}

// NewDeflate creates a new DEFLATE engine.
func NewDeflate(level Level) (*Deflate, error) {
	level = level.Clamp()

	w, err := flate.NewWriter(nil, flateLevel(level))
	if err != nil {
		return nil, errors.Wrapf(ErrEngineCreate, "deflate: %v", err)
	}

	d := &Deflate{level: level, w: w}
	d.r = flate.NewReader(&d.in)
	return d, nil
}

// flateLevel maps a level onto flate's 0..9 range; 0 stores.
func flateLevel(l Level) int {
	return min(int(l), flate.BestCompression)
}

func (d *Deflate) Name() string { return EngineDeflate }

func (d *Deflate) Level() Level { return d.level }

// CompressBound returns a bound covering stored-block fallback plus framing.
func (d *Deflate) CompressBound(tileSize int) Bound {
	blocks := tileSize/16383 + 2
	return Bound{PageSize: tileSize + tileSize>>3 + 5*blocks + 64, Pages: 1}
}

// Compress compresses src as one complete raw DEFLATE stream.
func (d *Deflate) Compress(src []byte, pages []Page) (int, error) {
	page, err := singlePage(EngineDeflate, pages)
	if err != nil {
		return 0, err
	}

	d.buf.Reset()
	d.w.Reset(&d.buf)
	if _, err := d.w.Write(src); err != nil {
		return 0, errors.Wrap(err, "deflate: failed to write tile")
	}
	if err := d.w.Close(); err != nil {
		return 0, errors.Wrap(err, "deflate: failed to finish tile")
	}

	if d.buf.Len() > len(page.Data) {
		return 0, errors.Wrapf(ErrInsufficientSpace, "deflate: %d bytes do not fit page of %d", d.buf.Len(), len(page.Data))
	}

	page.Len = copy(page.Data, d.buf.Bytes())
	return page.Len, nil
}

// Decompress inflates one raw DEFLATE stream into dst.
func (d *Deflate) Decompress(src [][]byte, dst []byte) (int, error) {
	d.in.Reset(joinPages(src))
	if err := d.r.(flate.Resetter).Reset(&d.in, nil); err != nil {
		return 0, errors.Wrapf(ErrBadData, "deflate: %v", err)
	}

	n := 0
	for n < len(dst) {
		m, err := d.r.Read(dst[n:])
		n += m
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, inflateError(err)
		}
	}

	// dst is full; the stream must end here.
	var probe [1]byte
	for {
		m, err := d.r.Read(probe[:])
		if m > 0 {
			return n, errors.Wrapf(ErrInsufficientSpace, "deflate: output exceeds %d bytes", len(dst))
		}
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, inflateError(err)
		}
	}
}

func inflateError(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.Wrap(ErrShortInput, "deflate")
	}
	// flate.CorruptInputError and anything else.
	return errors.Wrapf(ErrBadData, "deflate: %v", err)
}

// Close releases the engine. The reader keeps the last decode error and
// holds nothing else, so it is dropped rather than closed.
func (d *Deflate) Close() error {
	return nil
}
