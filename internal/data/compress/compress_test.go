package compress

import (
	"bytes"
	"math/rand"
	"runtime"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTileSize = 64 * 1024

func testInputs() map[string][]byte {
	rng := rand.New(rand.NewSource(7))
	random := make([]byte, testTileSize)
	rng.Read(random)

	text := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), testTileSize/45)

	return map[string][]byte{
		"single":  {0x42},
		"zeros":   make([]byte, testTileSize),
		"random":  random,
		"text":    text,
		"partial": text[:1000],
	}
}

func newEngine(t *testing.T, name string, level Level, opts ...Option) Engine {
	t.Helper()
	e, err := New(name, level, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, e.Close()) })
	return e
}

func compressTile(t *testing.T, e Engine, src []byte) [][]byte {
	t.Helper()
	bound := e.CompressBound(testTileSize)
	require.Positive(t, bound.Pages)

	pages := make([]Page, bound.Pages)
	for i := range pages {
		pages[i].Data = make([]byte, bound.PageSize)
	}

	n, err := e.Compress(src, pages)
	require.NoError(t, err)
	require.LessOrEqual(t, n, bound.Total())

	var out [][]byte
	total := 0
	for _, p := range pages {
		require.LessOrEqual(t, p.Len, bound.PageSize)
		total += p.Len
		if p.Len > 0 {
			out = append(out, p.Data[:p.Len])
		}
	}
	require.Equal(t, n, total)
	return out
}

func TestEnginesRoundTrip(t *testing.T) {
	for _, name := range Names() {
		for _, level := range []Level{LevelNone, Level1, DefaultLevel, Level12} {
			e := newEngine(t, name, level)
			for input, src := range testInputs() {
				pages := compressTile(t, e, src)

				dst := make([]byte, testTileSize)
				n, err := e.Decompress(pages, dst)
				require.NoError(t, err, "%s/%d/%s", name, level, input)
				require.Equal(t, len(src), n, "%s/%d/%s", name, level, input)
				assert.True(t, bytes.Equal(src, dst[:n]), "%s/%d/%s", name, level, input)
			}
		}
	}
}

func TestEngineReuseIsIdempotent(t *testing.T) {
	inputs := testInputs()
	for _, name := range Names() {
		e := newEngine(t, name, DefaultLevel)

		first := bytes.Join(compressTile(t, e, inputs["text"]), nil)
		compressTile(t, e, inputs["random"])
		second := bytes.Join(compressTile(t, e, inputs["text"]), nil)

		assert.Equal(t, first, second, name)
	}
}

func TestEngineMetadata(t *testing.T) {
	for _, name := range Names() {
		e := newEngine(t, name, Level(99))
		assert.Equal(t, name, e.Name())
		assert.Equal(t, Level12, e.Level())
	}

	e := newEngine(t, EngineLZ4, Level(-3))
	assert.Equal(t, LevelNone, e.Level())
}

func TestNewUnknownEngine(t *testing.T) {
	_, err := New("gdeflate-gpu", DefaultLevel)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownEngine))
}

func TestNames(t *testing.T) {
	names := Names()
	assert.Equal(t, []string{"deflate", "lz4", "s2", "snappy", "store", "zstd"}, names)

	names[0] = "changed"
	assert.Equal(t, EngineDeflate, Names()[0])
}

func TestCompressInsufficientSpace(t *testing.T) {
	src := testInputs()["random"]
	for _, name := range []string{EngineDeflate, EngineZstd, EngineS2, EngineSnappy, EngineStore} {
		e := newEngine(t, name, DefaultLevel)

		pages := []Page{{Data: make([]byte, 16)}}
		_, err := e.Compress(src, pages)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, ErrInsufficientSpace), "%s: %v", name, err)
	}
}

func TestCompressNoPages(t *testing.T) {
	for _, name := range []string{EngineLZ4, EngineDeflate, EngineZstd, EngineS2, EngineSnappy} {
		e := newEngine(t, name, DefaultLevel)
		_, err := e.Compress([]byte("abc"), nil)
		assert.True(t, errors.Is(err, ErrInsufficientSpace), name)
	}
}

func TestDecompressInsufficientSpace(t *testing.T) {
	src := testInputs()["text"]
	for _, name := range []string{EngineDeflate, EngineZstd, EngineS2, EngineSnappy, EngineStore} {
		e := newEngine(t, name, DefaultLevel)
		pages := compressTile(t, e, src)

		dst := make([]byte, len(src)/2)
		_, err := e.Decompress(pages, dst)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, ErrInsufficientSpace), "%s: %v", name, err)
	}
}

func TestDecompressBadData(t *testing.T) {
	garbage := [][]byte{{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}}
	for _, name := range []string{EngineDeflate, EngineZstd, EngineS2, EngineSnappy} {
		e := newEngine(t, name, DefaultLevel)
		_, err := e.Decompress(garbage, make([]byte, testTileSize))
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, ErrBadData), "%s: %v", name, err)
	}
}

func TestDeflateShortInput(t *testing.T) {
	e := newEngine(t, EngineDeflate, DefaultLevel)
	payload := bytes.Join(compressTile(t, e, testInputs()["text"]), nil)

	_, err := e.Decompress([][]byte{payload[:len(payload)/2]}, make([]byte, testTileSize))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShortInput), "%v", err)
}

func TestCloseAfterFailedDecode(t *testing.T) {
	for _, name := range Names() {
		e, err := New(name, DefaultLevel)
		require.NoError(t, err)

		payload := bytes.Join(compressTile(t, e, testInputs()["text"]), nil)
		corrupt := append([]byte{0xff}, payload[1:]...)
		_, _ = e.Decompress([][]byte{corrupt}, make([]byte, testTileSize))
		_, _ = e.Decompress([][]byte{payload[:len(payload)/2]}, make([]byte, testTileSize))

		assert.NoError(t, e.Close(), name)
	}
}

func TestZstdOversizedFrame(t *testing.T) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	require.NoError(t, err)
	frame := enc.EncodeAll(make([]byte, 64<<20), nil)
	require.NoError(t, enc.Close())

	e := newEngine(t, EngineZstd, DefaultLevel)
	dst := make([]byte, testTileSize)

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, err = e.Decompress([][]byte{frame}, dst)
	runtime.ReadMemStats(&after)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientSpace), "%v", err)
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(16<<20))
}

func TestStorePages(t *testing.T) {
	e := newEngine(t, EngineStore, LevelNone, WithPageSize(4096))

	bound := e.CompressBound(testTileSize)
	assert.Equal(t, Bound{PageSize: 4096, Pages: 16}, bound)
	assert.Equal(t, testTileSize, bound.Total())

	src := testInputs()["text"][:10000]
	pages := compressTile(t, e, src)
	require.Len(t, pages, 3)
	assert.Len(t, pages[2], 10000-2*4096)

	// Pages decode the same whether split or joined.
	dst := make([]byte, testTileSize)
	n, err := e.Decompress([][]byte{bytes.Join(pages, nil)}, dst)
	require.NoError(t, err)
	assert.Equal(t, src, dst[:n])
}

func TestStoreBoundSmallTile(t *testing.T) {
	e := NewStore(LevelNone, 0)
	assert.Equal(t, Bound{PageSize: 100, Pages: 1}, e.CompressBound(100))
}

func TestLevelClamp(t *testing.T) {
	assert.Equal(t, LevelNone, Level(-1).Clamp())
	assert.Equal(t, Level7, Level7.Clamp())
	assert.Equal(t, Level12, Level(13).Clamp())
	assert.Equal(t, 30, Bound{PageSize: 10, Pages: 3}.Total())
}

func TestJoinPages(t *testing.T) {
	assert.Nil(t, joinPages(nil))
	assert.Equal(t, []byte("ab"), joinPages([][]byte{[]byte("ab")}))
	assert.Equal(t, []byte("abcd"), joinPages([][]byte{[]byte("ab"), []byte("c"), []byte("d")}))
}
