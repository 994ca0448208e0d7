package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xReLogic/tilepack/internal/container"
	"github.com/0xReLogic/tilepack/internal/data/compress"
	"github.com/0xReLogic/tilepack/internal/tile"
)

func TestKind(t *testing.T) {
	assert.Equal(t, "truncated_payload", Kind(errors.Wrap(container.ErrTruncatedPayload, "x")))
	assert.Equal(t, "bad_data", Kind(errors.Wrapf(compress.ErrBadData, "tile %d", 3)))
	assert.Equal(t, "other", Kind(tile.ErrTruncatedHeader))
	assert.Equal(t, "other", Kind(errors.New("boom")))
}

func TestObserve(t *testing.T) {
	Register()
	Register()

	Observe("lz4", OpCompress, 3, 1000, 400, time.Millisecond)
	assert.Equal(t, float64(3), testutil.ToFloat64(Tiles.WithLabelValues("lz4", OpCompress)))
	assert.Equal(t, float64(400), testutil.ToFloat64(BytesOut.WithLabelValues("lz4", OpCompress)))

	ObserveError(OpDecompress, container.ErrCorruptTile)
	assert.Equal(t, float64(1), testutil.ToFloat64(Errors.WithLabelValues(OpDecompress, "corrupt_tile")))
}

func TestHandler(t *testing.T) {
	Observe("zstd", OpVerify, 1, 10, 10, time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `tilepack_tiles_total{engine="zstd",operation="verify"} 1`)
}
