package tile

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

const (
	// FormatID is the container tag stored in the first header byte.
	FormatID uint8 = 4

	// HeaderSize is the encoded size of a Header in bytes.
	HeaderSize = 8

	// DefaultTileSize is the tile size used when none is configured.
	DefaultTileSize = 64 * 1024

	// MaxTileSize is the largest tile size whose remainder fits the 18-bit field.
	MaxTileSize = 1 << lastTileBits

	// MaxTiles is the largest tile count the 16-bit field can hold.
	MaxTiles = 1<<16 - 1
)

// Packed value layout: bit 30 is the version marker, bits 12..29 hold the
// size of the last tile.
const (
	versionBit    = 1 << 30
	lastTileShift = 12
	lastTileBits  = 18
	lastTileMask  = 1<<lastTileBits - 1
)

// Header is the fixed 8-byte record at the start of every container stream.
//
// Layout (little-endian):
// [id u8] [magic u8] [tile_count u16] [value u32]
//
// The tile size is not part of the encoding; it is fixed for the header
// instance by the code that builds or decodes it.
type Header struct {
	id        uint8
	magic     uint8
	tileCount uint16
	value     uint32

	tileSize int
}

// NewHeader builds the header describing uncompressedSize bytes split into
// tiles of tileSize bytes. A remainder makes one extra, short tile; an exact
// multiple stores a last tile size of zero.
func NewHeader(uncompressedSize, tileSize int) Header {
	fullTiles := uncompressedSize / tileSize
	lastTileSize := uncompressedSize - fullTiles*tileSize

	tileCount := fullTiles
	if lastTileSize != 0 {
		tileCount++
	}

	return Header{
		id:        FormatID,
		magic:     ^FormatID,
		tileCount: uint16(tileCount),
		value:     versionBit | (uint32(lastTileSize)&lastTileMask)<<lastTileShift,
		tileSize:  tileSize,
	}
}

// DecodeHeader parses a header from the first HeaderSize bytes of b.
// It does not check validity; callers must call Valid before trusting any
// derived field.
func DecodeHeader(b []byte, tileSize int) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, errors.Wrapf(ErrTruncatedHeader, "have %d bytes, need %d", len(b), HeaderSize)
	}

	return Header{
		id:        b[0],
		magic:     b[1],
		tileCount: binary.LittleEndian.Uint16(b[2:4]),
		value:     binary.LittleEndian.Uint32(b[4:8]),
		tileSize:  tileSize,
	}, nil
}

// AppendTo appends the encoded header to dst.
func (h Header) AppendTo(dst []byte) []byte {
	dst = append(dst, h.id, h.magic)
	dst = binary.LittleEndian.AppendUint16(dst, h.tileCount)
	return binary.LittleEndian.AppendUint32(dst, h.value)
}

// Bytes returns the encoded header.
func (h Header) Bytes() []byte {
	return h.AppendTo(make([]byte, 0, HeaderSize))
}

// Valid reports whether the id/magic pair identifies this container format.
func (h Header) Valid() bool {
	return h.id == ^h.magic && h.id == FormatID
}

// TileCount returns the number of tiles, including a short last tile.
func (h Header) TileCount() int {
	return int(h.tileCount)
}

// FullTiles returns the number of tiles that are exactly TileSize bytes long.
func (h Header) FullTiles() int {
	if h.tileCount > 0 && h.LastTileSize() != 0 {
		return int(h.tileCount) - 1
	}
	return int(h.tileCount)
}

// LastTileSize returns the raw last tile field. Zero means the last tile is
// a full tile.
func (h Header) LastTileSize() int {
	return int((h.value >> lastTileShift) & lastTileMask)
}

// LastTileLen returns the uncompressed length of the last tile.
func (h Header) LastTileLen() int {
	if h.tileCount == 0 {
		return 0
	}
	if last := h.LastTileSize(); last != 0 {
		return last
	}
	return h.tileSize
}

// Version reports whether the version marker bit is set.
func (h Header) Version() bool {
	return h.value&versionBit != 0
}

// TileSize returns the tile size this header was built or decoded with.
func (h Header) TileSize() int {
	return h.tileSize
}

// UncompressedSize returns the total uncompressed length described by h.
func (h Header) UncompressedSize() int {
	total := int(h.tileCount) * h.tileSize
	if last := h.LastTileSize(); last != 0 {
		total -= h.tileSize - last
	}
	return total
}

func (h Header) String() string {
	return fmt.Sprintf("id=%d magic=%#02x tiles=%d last=%d tile_size=%d size=%d",
		h.id, h.magic, h.tileCount, h.LastTileSize(), h.tileSize, h.UncompressedSize())
}
