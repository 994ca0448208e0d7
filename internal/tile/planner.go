package tile

import "github.com/pkg/errors"

// ValidateTileSize checks that tileSize can be described by a Header.
func ValidateTileSize(tileSize int) error {
	if tileSize <= 0 || tileSize > MaxTileSize {
		return errors.Wrapf(ErrInvalidTileSize, "%d not in [1, %d]", tileSize, MaxTileSize)
	}
	return nil
}

// Count returns the number of tiles needed to cover totalLen bytes.
func Count(totalLen, tileSize int) int {
	if totalLen <= 0 {
		return 0
	}
	return (totalLen + tileSize - 1) / tileSize
}

// Bounds returns the uncompressed offset and length of tile index.
// Every tile but the last is tileSize bytes long.
func Bounds(index, totalLen, tileSize int) (offset, length int, err error) {
	if index < 0 {
		return 0, 0, errors.Wrapf(ErrIndexOutOfRange, "tile %d", index)
	}

	offset = index * tileSize
	if offset >= totalLen {
		return 0, 0, errors.Wrapf(ErrIndexOutOfRange, "tile %d starts at %d, total length %d", index, offset, totalLen)
	}

	return offset, min(tileSize, totalLen-offset), nil
}

// Span returns the range of tile indexes [first, last] touched by the
// uncompressed byte range [offset, offset+length).
func Span(offset, length, totalLen, tileSize int) (first, last int, err error) {
	if offset < 0 || length <= 0 || offset+length > totalLen {
		return 0, 0, errors.Wrapf(ErrIndexOutOfRange, "range [%d, %d) outside [0, %d)", offset, offset+length, totalLen)
	}
	return offset / tileSize, (offset + length - 1) / tileSize, nil
}
