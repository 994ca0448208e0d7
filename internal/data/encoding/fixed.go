package encoding

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Uint32Size is the width of one size table entry.
const Uint32Size = 4

// ErrShortBuffer is returned when a buffer holds fewer values than requested.
var ErrShortBuffer = errors.New("buffer too short for fixed-width values")

// Fixed is an encoder/decoder for little-endian u32 size tables.
type Fixed struct{}

// NewFixed creates a new Fixed encoder/decoder.
func NewFixed() *Fixed {
	return &Fixed{}
}

// Encode writes a []uint32 to the writer.
func (e *Fixed) Encode(w io.Writer, src interface{}) error {
	v, ok := src.([]uint32)
	if !ok {
		return errors.Errorf("unsupported type for fixed encoding: %T", src)
	}
	_, err := w.Write(AppendUint32s(nil, v))
	return err
}

// Decode reads numValues uint32 values from the reader into a *[]uint32.
func (e *Fixed) Decode(r io.Reader, dst interface{}, numValues int) error {
	v, ok := dst.(*[]uint32)
	if !ok {
		return errors.Errorf("unsupported type for fixed decoding: %T", dst)
	}

	buf := make([]byte, numValues*Uint32Size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return errors.Wrapf(ErrShortBuffer, "%d uint32 values: %v", numValues, err)
	}
	values, err := Uint32s(buf, numValues)
	*v = values
	return err
}

// AppendUint32s appends values to b in little-endian order.
func AppendUint32s(b []byte, values []uint32) []byte {
	for _, v := range values {
		b = binary.LittleEndian.AppendUint32(b, v)
	}
	return b
}

// PutUint32At stores v as entry i of a size table held in b.
func PutUint32At(b []byte, i int, v uint32) {
	binary.LittleEndian.PutUint32(b[i*Uint32Size:], v)
}

// Uint32s decodes n little-endian values from the front of b.
func Uint32s(b []byte, n int) ([]uint32, error) {
	if n < 0 || len(b) < n*Uint32Size {
		return nil, errors.Wrapf(ErrShortBuffer, "need %d bytes, have %d", n*Uint32Size, len(b))
	}

	values := make([]uint32, n)
	for i := range values {
		values[i] = binary.LittleEndian.Uint32(b[i*Uint32Size:])
	}
	return values, nil
}
