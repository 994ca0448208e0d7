package encoding

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const numValues = 65535

func TestFixedEncodeDecodeUint32(t *testing.T) {
	encoder := NewFixed()
	values := make([]uint32, 100)
	for i := range values {
		values[i] = uint32(i * 1000)
	}

	buf := new(bytes.Buffer)
	require.NoError(t, encoder.Encode(buf, values))
	assert.Equal(t, 100*Uint32Size, buf.Len())

	var decoded []uint32
	require.NoError(t, encoder.Decode(bytes.NewReader(buf.Bytes()), &decoded, 100))
	assert.Equal(t, values, decoded)
}

func TestFixedUnsupported(t *testing.T) {
	encoder := NewFixed()
	assert.Error(t, encoder.Encode(new(bytes.Buffer), []string{"a"}))
	assert.Error(t, encoder.Encode(new(bytes.Buffer), []int64{1}))

	var dst []int64
	assert.Error(t, encoder.Decode(new(bytes.Buffer), &dst, 1))
}

func TestFixedDecodeShort(t *testing.T) {
	var decoded []uint32
	err := NewFixed().Decode(bytes.NewReader([]byte{1, 2, 3, 4, 5}), &decoded, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShortBuffer))
}

func TestUint32sLittleEndian(t *testing.T) {
	b := AppendUint32s([]byte{0xaa}, []uint32{1, 0x01020304})
	assert.Equal(t, []byte{0xaa, 1, 0, 0, 0, 4, 3, 2, 1}, b)

	values, err := Uint32s(b[1:], 2)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 0x01020304}, values)

	PutUint32At(b[1:], 1, 7)
	assert.Equal(t, []byte{7, 0, 0, 0}, b[5:])

	_, err = Uint32s(b[1:], 3)
	assert.True(t, errors.Is(err, ErrShortBuffer))
}

func BenchmarkFixedEncode_Uint32(b *testing.B) {
	encoder := NewFixed()
	values := make([]uint32, numValues)
	for i := range values {
		values[i] = uint32(i)
	}

	buf := new(bytes.Buffer)
	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		buf.Reset()
		if err := encoder.Encode(buf, values); err != nil {
			b.Fatal(err)
		}
	}

	// A full size table is 65535 * 4 bytes.
	b.SetBytes(int64(buf.Len()))
}

func BenchmarkFixedDecode_Uint32(b *testing.B) {
	encoded := AppendUint32s(nil, make([]uint32, numValues))

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := Uint32s(encoded, numValues); err != nil {
			b.Fatal(err)
		}
	}
}
