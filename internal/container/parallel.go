package container

import (
	"bytes"
	"context"
	"runtime"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/0xReLogic/tilepack/internal/data/encoding"
	"github.com/0xReLogic/tilepack/internal/tile"
)

// CompressParallel builds the same stream as Compressor.Compress using up to
// workers goroutines, each with its own engine. Zero workers means GOMAXPROCS;
// a single worker runs a plain Compressor.
// If ctx is cancelled or any tile fails, all output is discarded.
func CompressParallel(ctx context.Context, opts Options, workers int, src []byte) (*Result, error) {
	opts = opts.withDefaults()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	count, err := checkInput(len(src), opts.TileSize)
	if err != nil {
		return nil, err
	}

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = max(min(workers, count), 1)

	if workers == 1 {
		c, err := NewCompressor(opts)
		if err != nil {
			return nil, err
		}
		defer c.Close()
		return c.Compress(src)
	}

	payloads := make([][]byte, count)
	indices := make(chan int)

	g, ctx := errgroup.WithContext(ctx)

	// Producer
	g.Go(func() error {
		defer close(indices)
		for i := 0; i < count; i++ {
			select {
			case indices <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	// Workers
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			engine, err := opts.newEngine()
			if err != nil {
				return errors.Wrap(err, "failed to create compressor")
			}
			defer engine.Close()

			s := newScratch(engine, opts.TileSize)
			for i := range indices {
				if err := ctx.Err(); err != nil {
					return err
				}

				offset, length, err := tile.Bounds(i, len(src), opts.TileSize)
				if err != nil {
					return err
				}

				// Tile i always lands in slot i, whatever order workers finish in.
				payloads[i], err = s.compressTile(nil, i, src[offset:offset+length])
				if err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sizes := make([]uint32, count)
	total := 0
	for i, p := range payloads {
		sizes[i] = uint32(len(p))
		total += len(p)
	}

	var buf bytes.Buffer
	buf.Grow(tile.HeaderSize + encoding.Uint32Size*count + total)
	buf.Write(tile.NewHeader(len(src), opts.TileSize).Bytes())

	var enc encoding.Encoder = encoding.NewFixed()
	if err := enc.Encode(&buf, sizes); err != nil {
		return nil, errors.Wrap(err, "failed to write size table")
	}
	for _, p := range payloads {
		buf.Write(p)
	}

	res, err := newResult(buf.Bytes(), opts.TileSize)
	if err != nil {
		return nil, err
	}

	opts.Logger.WithFields(logrus.Fields{
		"engine":  opts.Engine,
		"workers": workers,
		"tiles":   count,
		"in":      len(src),
		"out":     len(res.Bytes),
	}).Debug("compressed container in parallel")

	return res, nil
}
