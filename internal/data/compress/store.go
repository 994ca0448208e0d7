package compress

import "github.com/pkg/errors"

// DefaultPageSize is the page size of the store engine.
const DefaultPageSize = 64 * 1024

// Store implements the Engine interface without compression. A tile is
// copied into as many pages of pageSize bytes as it needs, so it is the
// engine that exercises multi-page output.
type Store struct {
	level    Level
	pageSize int
}

// NewStore creates a new store engine with the given page size.
func NewStore(level Level, pageSize int) *Store {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Store{level: level.Clamp(), pageSize: pageSize}
}

func (c *Store) Name() string { return EngineStore }

func (c *Store) Level() Level { return c.level }

func (c *Store) CompressBound(tileSize int) Bound {
	pageSize := min(c.pageSize, tileSize)
	if pageSize <= 0 {
		return Bound{PageSize: 0, Pages: 1}
	}
	return Bound{PageSize: pageSize, Pages: (tileSize + pageSize - 1) / pageSize}
}

func (c *Store) Compress(src []byte, pages []Page) (int, error) {
	for i := range pages {
		pages[i].Len = 0
	}

	total := 0
	for i := 0; total < len(src); i++ {
		if i >= len(pages) || len(pages[i].Data) == 0 {
			return 0, errors.Wrapf(ErrInsufficientSpace, "store: %d bytes left after %d pages", len(src)-total, i)
		}
		chunk := min(c.pageSize, len(pages[i].Data), len(src)-total)
		pages[i].Len = copy(pages[i].Data, src[total:total+chunk])
		total += chunk
	}
	return total, nil
}

func (c *Store) Decompress(src [][]byte, dst []byte) (int, error) {
	total := 0
	for _, p := range src {
		total += len(p)
	}
	if total > len(dst) {
		return 0, errors.Wrapf(ErrInsufficientSpace, "store: %d bytes exceed %d", total, len(dst))
	}

	n := 0
	for _, p := range src {
		n += copy(dst[n:], p)
	}
	return n, nil
}

func (c *Store) Close() error { return nil }
