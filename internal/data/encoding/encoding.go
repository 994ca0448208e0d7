package encoding

import "io"

// Encoder writes a slice of values to w.
type Encoder interface {
	Encode(w io.Writer, src interface{}) error
}

// Decoder reads numValues values from r into the slice pointed to by dst.
type Decoder interface {
	Decode(r io.Reader, dst interface{}, numValues int) error
}

var (
	_ Encoder = (*Fixed)(nil)
	_ Decoder = (*Fixed)(nil)
)
