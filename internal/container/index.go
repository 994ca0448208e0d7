package container

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/0xReLogic/tilepack/internal/data/encoding"
	"github.com/0xReLogic/tilepack/internal/tile"
)

// Tile locates one tile in both the compressed and uncompressed space.
type Tile struct {
	// Index is the position of the tile in the size table.
	Index int `json:"index"`

	// Offset is the start of the payload, counted from the start of the stream.
	Offset int `json:"offset"`

	// CompressedSize is the payload length recorded in the size table.
	CompressedSize int `json:"compressed_size"`

	// UncompressedOffset is the start of the tile in the original input.
	UncompressedOffset int `json:"uncompressed_offset"`

	// UncompressedSize is TileSize for all but the last tile.
	UncompressedSize int `json:"uncompressed_size"`
}

func (t Tile) String() string {
	return fmt.Sprintf("tile %d: payload [%d, %d) data [%d, %d)", t.Index,
		t.Offset, t.Offset+t.CompressedSize,
		t.UncompressedOffset, t.UncompressedOffset+t.UncompressedSize)
}

// Index is the parsed header and size table of a container stream.
type Index struct {
	Header tile.Header
	Tiles  []Tile
}

// TileCount returns the number of tiles in the stream.
func (idx *Index) TileCount() int {
	return len(idx.Tiles)
}

// UncompressedSize returns the length of the original input.
func (idx *Index) UncompressedSize() int {
	return idx.Header.UncompressedSize()
}

// PayloadOffset returns the offset of the first tile payload.
func (idx *Index) PayloadOffset() int {
	return tile.HeaderSize + encoding.Uint32Size*len(idx.Tiles)
}

// StreamSize returns the total length of the container stream.
func (idx *Index) StreamSize() int {
	size := idx.PayloadOffset()
	for _, t := range idx.Tiles {
		size += t.CompressedSize
	}
	return size
}

// Summary is the printable description of an Index.
type Summary struct {
	Valid            bool   `json:"valid"`
	Version          bool   `json:"version"`
	TileSize         int    `json:"tile_size"`
	TileCount        int    `json:"tile_count"`
	FullTiles        int    `json:"full_tiles"`
	LastTileSize     int    `json:"last_tile_size"`
	UncompressedSize int    `json:"uncompressed_size"`
	CompressedSize   int    `json:"compressed_size"`
	Tiles            []Tile `json:"tiles"`
}

// Summary describes idx without decoding any tile.
func (idx *Index) Summary() Summary {
	h := idx.Header
	return Summary{
		Valid:            h.Valid(),
		Version:          h.Version(),
		TileSize:         h.TileSize(),
		TileCount:        idx.TileCount(),
		FullTiles:        h.FullTiles(),
		LastTileSize:     h.LastTileSize(),
		UncompressedSize: idx.UncompressedSize(),
		CompressedSize:   idx.StreamSize(),
		Tiles:            idx.Tiles,
	}
}

// ParseIndex decodes the header and size table of stream and checks that the
// payloads exactly fill the rest of it.
func ParseIndex(stream []byte, tileSize int) (*Index, error) {
	h, err := decodeHeader(stream, tileSize)
	if err != nil {
		return nil, err
	}

	count := h.TileCount()
	tableEnd := tile.HeaderSize + encoding.Uint32Size*count
	if len(stream) < tableEnd {
		return nil, errors.Wrapf(ErrTruncatedSizeTable, "%d tiles need %d bytes, have %d", count, tableEnd, len(stream))
	}

	sizes, err := encoding.Uint32s(stream[tile.HeaderSize:tableEnd], count)
	if err != nil {
		return nil, errors.Wrapf(ErrTruncatedSizeTable, "%v", err)
	}

	idx, err := buildIndex(h, sizes)
	if err != nil {
		return nil, err
	}

	offset := tableEnd
	for _, t := range idx.Tiles {
		if t.CompressedSize > len(stream)-offset {
			return nil, errors.Wrapf(ErrTruncatedPayload, "tile %d needs %d bytes at %d, stream is %d bytes",
				t.Index, t.CompressedSize, offset, len(stream))
		}
		offset += t.CompressedSize
	}
	if offset != len(stream) {
		return nil, errors.Wrapf(ErrTrailingData, "%d bytes after offset %d", len(stream)-offset, offset)
	}

	return idx, nil
}

// ReadIndex reads the header and size table from the front of r. Payloads are
// not read, so their bounds are not checked.
func ReadIndex(r io.Reader, tileSize int) (*Index, error) {
	buf := make([]byte, tile.HeaderSize)
	if n, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.Wrapf(tile.ErrTruncatedHeader, "read %d bytes: %v", n, err)
	}

	h, err := decodeHeader(buf, tileSize)
	if err != nil {
		return nil, err
	}

	var sizes []uint32
	var dec encoding.Decoder = encoding.NewFixed()
	if err := dec.Decode(r, &sizes, h.TileCount()); err != nil {
		return nil, errors.Wrapf(ErrTruncatedSizeTable, "%v", err)
	}

	return buildIndex(h, sizes)
}

func decodeHeader(b []byte, tileSize int) (tile.Header, error) {
	if err := tile.ValidateTileSize(tileSize); err != nil {
		return tile.Header{}, err
	}

	h, err := tile.DecodeHeader(b, tileSize)
	if err != nil {
		return tile.Header{}, err
	}
	if !h.Valid() {
		return tile.Header{}, errors.Wrapf(ErrInvalidHeader, "%s", h)
	}
	// A last tile field of tileSize or more, or one without tiles, would
	// describe a length the tiles cannot hold.
	if h.LastTileSize() >= tileSize || (h.TileCount() == 0 && h.LastTileSize() != 0) {
		return tile.Header{}, errors.Wrapf(ErrInvalidHeader, "last tile size %d with %d tiles of %d",
			h.LastTileSize(), h.TileCount(), tileSize)
	}
	return h, nil
}

func buildIndex(h tile.Header, sizes []uint32) (*Index, error) {
	total := h.UncompressedSize()
	tiles := make([]Tile, len(sizes))

	offset := tile.HeaderSize + encoding.Uint32Size*len(sizes)
	for i, size := range sizes {
		uoff, ulen, err := tile.Bounds(i, total, h.TileSize())
		if err != nil {
			return nil, errors.Wrap(ErrInvalidHeader, err.Error())
		}
		tiles[i] = Tile{
			Index:              i,
			Offset:             offset,
			CompressedSize:     int(size),
			UncompressedOffset: uoff,
			UncompressedSize:   ulen,
		}
		offset += int(size)
	}

	return &Index{Header: h, Tiles: tiles}, nil
}
