package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xReLogic/tilepack/internal/config"
	"github.com/0xReLogic/tilepack/internal/container"
	"github.com/0xReLogic/tilepack/internal/data/bitmap"
	"github.com/0xReLogic/tilepack/internal/data/compress"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.Default()
	cfg.TileSize = 4096
	cfg.Workers = 2
	cfg.Server.MaxBodyBytes = 1 << 20

	s := New(cfg, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func post(t *testing.T, url string, body []byte) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/octet-stream", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func testBody() []byte {
	return bytes.Repeat([]byte("tiles over http "), 2000)
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCompressDecompress(t *testing.T) {
	s, ts := newTestServer(t)
	body := testBody()

	for _, engine := range compress.Names() {
		resp, packed := post(t, ts.URL+"/compress?engine="+engine+"&level=9", body)
		require.Equal(t, http.StatusOK, resp.StatusCode, engine)
		assert.Equal(t, "8", resp.Header.Get(HeaderTiles))
		assert.Equal(t, "32000", resp.Header.Get(HeaderUncompressedSize))

		resp, out := post(t, ts.URL+"/decompress?engine="+engine, packed)
		require.Equal(t, http.StatusOK, resp.StatusCode, engine)
		assert.Equal(t, body, out, engine)
	}

	stats := s.Stats()
	assert.Equal(t, int64(2*len(compress.Names())), stats.Requests)
	assert.Equal(t, int64(len(compress.Names())), stats.Compressed)
	assert.Equal(t, int64(len(compress.Names())), stats.Decompressed)
	assert.Zero(t, stats.Errors)
}

func TestInspect(t *testing.T) {
	_, ts := newTestServer(t)

	_, packed := post(t, ts.URL+"/compress", testBody())
	resp, data := post(t, ts.URL+"/inspect", packed)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got InspectResponse
	require.NoError(t, json.Unmarshal(data, &got))
	assert.True(t, got.Valid)
	assert.Equal(t, 8, got.TileCount)
	assert.Equal(t, 7, got.FullTiles)
	assert.Equal(t, 32000-7*4096, got.LastTileSize)
	assert.Equal(t, 32000, got.UncompressedSize)
	assert.Equal(t, len(packed), got.CompressedSize)
	require.Len(t, got.Tiles, 8)
	assert.Equal(t, 7*4096, got.Tiles[7].UncompressedOffset)
}

func TestVerify(t *testing.T) {
	s, ts := newTestServer(t)

	_, packed := post(t, ts.URL+"/compress?engine=snappy", testBody())

	idx, err := container.ParseIndex(packed, 4096)
	require.NoError(t, err)
	packed[idx.Tiles[3].Offset] = 0x00

	resp, data := post(t, ts.URL+"/verify?engine=snappy", packed)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got VerifyResponse
	require.NoError(t, json.Unmarshal(data, &got))
	assert.False(t, got.OK)
	assert.Equal(t, []int{3}, got.Damaged)
	assert.Equal(t, int64(1), s.Stats().DamagedTiles)

	set, err := bitmap.FromBytes(got.DamagedSet)
	require.NoError(t, err)
	assert.Equal(t, got.Damaged, bitmap.Indices(set))

	resp, _ = post(t, ts.URL+"/decompress?engine=snappy", packed)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestErrors(t *testing.T) {
	s, ts := newTestServer(t)
	_, packed := post(t, ts.URL+"/compress", testBody())

	tests := []struct {
		name string
		path string
		body []byte
		code int
	}{
		{"unknown engine", "/compress?engine=brotli", testBody(), http.StatusBadRequest},
		{"bad level", "/compress?level=high", testBody(), http.StatusBadRequest},
		{"bad tile size", "/compress?tile_size=0x10", testBody(), http.StatusBadRequest},
		{"invalid tile size", "/compress?tile_size=1000000", testBody(), http.StatusBadRequest},
		{"too large", "/compress", make([]byte, 1<<20+1), http.StatusRequestEntityTooLarge},
		{"truncated header", "/decompress", packed[:4], http.StatusBadRequest},
		{"truncated payload", "/decompress", packed[:len(packed)-1], http.StatusBadRequest},
		{"trailing", "/inspect", append(append([]byte(nil), packed...), 1), http.StatusBadRequest},
		{"invalid header", "/verify", []byte{1, 2, 3, 4, 5, 6, 7, 8}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := post(t, ts.URL+tt.path, tt.body)
			assert.Equal(t, tt.code, resp.StatusCode)
		})
	}
	assert.Equal(t, int64(len(tests)), s.Stats().Errors)
}

func TestMethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/compress")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, _ = post(t, ts.URL+"/stats", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStatsAndMetrics(t *testing.T) {
	_, ts := newTestServer(t)
	post(t, ts.URL+"/compress?engine=lz4", testBody())

	resp, err := http.Get(ts.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, int64(1), stats.Compressed)
	assert.Equal(t, int64(32000), stats.BytesIn)

	mresp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer mresp.Body.Close()
	data, err := io.ReadAll(mresp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), `tilepack_tiles_total{engine="lz4",operation="compress"}`)
}
