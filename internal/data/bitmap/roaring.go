package bitmap

import (
	"bytes"

	"github.com/RoaringBitmap/roaring"
	"github.com/pkg/errors"
)

// Tiles is a set of tile indices.
type Tiles = roaring.Bitmap

// New returns an empty tile set.
func New() *Tiles {
	return roaring.New()
}

// Indices returns the tile indices of bm in ascending order.
func Indices(bm *Tiles) []int {
	out := make([]int, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

// ToBytes serializes a roaring bitmap to a byte slice.
func ToBytes(bm *Tiles) ([]byte, error) {
	buf := new(bytes.Buffer)
	if _, err := bm.WriteTo(buf); err != nil {
		return nil, errors.Wrap(err, "failed to serialize tile set")
	}
	return buf.Bytes(), nil
}

// FromBytes deserializes a roaring bitmap from a byte slice.
func FromBytes(b []byte) (*Tiles, error) {
	bm := roaring.New()
	if _, err := bm.ReadFrom(bytes.NewReader(b)); err != nil {
		return nil, errors.Wrap(err, "failed to deserialize tile set")
	}
	return bm, nil
}
