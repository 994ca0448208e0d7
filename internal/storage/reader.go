package storage

import (
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/0xReLogic/tilepack/internal/container"
	"github.com/0xReLogic/tilepack/internal/data/bitmap"
	"github.com/0xReLogic/tilepack/internal/tile"
)

// Reader gives random access to the uncompressed contents of a container
// file. Only the tiles a read touches are decoded.
type Reader struct {
	// The memory-mapped container
	file *MmapFile

	// Mapped container bytes
	stream []byte

	// Parsed header and size table
	idx *container.Index

	// Owned decompressor; guarded by mu
	dec *container.Decompressor

	// Last decoded tile, or -1
	cached int
	buf    []byte

	// Tiles decoded so far
	decoded *bitmap.Tiles

	closed bool
	mu     sync.Mutex
	log    *logrus.Entry
}

var _ io.ReaderAt = (*Reader)(nil)

// OpenReader maps the container at path and parses its index once.
func OpenReader(path string, opts container.Options) (*Reader, error) {
	file, err := NewMmapFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to memory-map container")
	}

	stream, err := file.Data()
	if err != nil {
		file.Close()
		return nil, err
	}

	dec, err := container.NewDecompressor(opts)
	if err != nil {
		file.Close()
		return nil, err
	}

	idx, err := container.ParseIndex(stream, dec.TileSize())
	if err != nil {
		dec.Close()
		file.Close()
		return nil, errors.Wrapf(err, "failed to load container index from %s", path)
	}

	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Reader{
		file:    file,
		stream:  stream,
		idx:     idx,
		dec:     dec,
		cached:  -1,
		buf:     make([]byte, dec.TileSize()),
		decoded: bitmap.New(),
		log:     log.WithField("path", path),
	}, nil
}

// Index returns the parsed container index.
func (r *Reader) Index() *container.Index {
	return r.idx
}

// Size returns the uncompressed size of the container.
func (r *Reader) Size() int64 {
	return int64(r.idx.UncompressedSize())
}

// ReadTile returns a copy of tile i.
func (r *Reader) ReadTile(i int) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.loadTile(i)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), data...), nil
}

// ReadAt reads len(p) uncompressed bytes starting at off.
func (r *Reader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.Errorf("negative offset %d", off)
	}
	size := r.Size()
	if off >= size {
		return 0, io.EOF
	}

	length := int(min(int64(len(p)), size-off))
	if length == 0 {
		return 0, nil
	}

	first, last, err := tile.Span(int(off), length, int(size), r.dec.TileSize())
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for i := first; i <= last; i++ {
		data, err := r.loadTile(i)
		if err != nil {
			return n, err
		}

		start := 0
		if i == first {
			start = int(off) - r.idx.Tiles[i].UncompressedOffset
		}
		n += copy(p[n:length], data[start:])
	}

	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Decoded returns the set of tiles decoded so far.
func (r *Reader) Decoded() *bitmap.Tiles {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.decoded.Clone()
}

// Verify decodes every tile and reports the damaged ones.
func (r *Reader) Verify() (*container.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	return r.dec.Verify(r.stream)
}

// loadTile decodes tile i into the cache. Callers hold mu.
func (r *Reader) loadTile(i int) ([]byte, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if i < 0 || i >= r.idx.TileCount() {
		return nil, errors.Wrapf(tile.ErrIndexOutOfRange, "tile %d of %d", i, r.idx.TileCount())
	}

	if r.cached != i {
		// Invalidate first so a failed decode never serves stale data.
		r.cached = -1
		if _, err := r.dec.DecompressTile(r.idx, r.stream, i, r.buf); err != nil {
			return nil, err
		}
		r.cached = i
		r.decoded.Add(uint32(i))
		r.log.WithField("tile", i).Debug("decoded tile")
	}

	return r.buf[:r.idx.Tiles[i].UncompressedSize], nil
}

// Close releases the decompressor and the mapping.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	err := r.dec.Close()
	if ferr := r.file.Close(); err == nil {
		err = ferr
	}
	return err
}
