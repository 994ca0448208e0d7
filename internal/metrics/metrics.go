package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/0xReLogic/tilepack/internal/container"
	"github.com/0xReLogic/tilepack/internal/data/compress"
)

const (
	engineLabel    = "engine"
	operationLabel = "operation"
	kindLabel      = "kind"
)

// Operations
const (
	OpCompress   = "compress"
	OpDecompress = "decompress"
	OpVerify     = "verify"
	OpInspect    = "inspect"
)

var (
	Registry = prometheus.NewRegistry()

	registerOnce sync.Once
)

var (
	Tiles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tilepack_tiles_total",
			Help: "Number of tiles processed.",
		},
		[]string{engineLabel, operationLabel},
	)

	BytesIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tilepack_bytes_in_total",
			Help: "Bytes read by operations, in Byte.",
		},
		[]string{engineLabel, operationLabel},
	)

	BytesOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tilepack_bytes_out_total",
			Help: "Bytes produced by operations, in Byte.",
		},
		[]string{engineLabel, operationLabel},
	)

	Errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tilepack_errors_total",
			Help: "Failed operations by error kind.",
		},
		[]string{operationLabel, kindLabel},
	)

	DamagedTiles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tilepack_damaged_tiles_total",
			Help: "Tiles that failed verification.",
		},
		[]string{engineLabel},
	)

	Duration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tilepack_operation_duration_seconds",
			Help:    "Operation latency.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{engineLabel, operationLabel},
	)
)

// Register adds all collectors to Registry. It is safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		Registry.MustRegister(Tiles, BytesIn, BytesOut, Errors, DamagedTiles, Duration)
	})
}

// Handler serves Registry in the Prometheus text format.
func Handler() http.Handler {
	Register()
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// Observe records one successful operation.
func Observe(engine, op string, tiles, in, out int, elapsed time.Duration) {
	Tiles.WithLabelValues(engine, op).Add(float64(tiles))
	BytesIn.WithLabelValues(engine, op).Add(float64(in))
	BytesOut.WithLabelValues(engine, op).Add(float64(out))
	Duration.WithLabelValues(engine, op).Observe(elapsed.Seconds())
}

// ObserveError records one failed operation under the kind of err.
func ObserveError(op string, err error) {
	Errors.WithLabelValues(op, Kind(err)).Inc()
}

// Kind classifies err by its sentinel.
func Kind(err error) string {
	kinds := []struct {
		err  error
		kind string
	}{
		{container.ErrInvalidHeader, "invalid_header"},
		{container.ErrTruncatedSizeTable, "truncated_size_table"},
		{container.ErrTruncatedPayload, "truncated_payload"},
		{container.ErrTrailingData, "trailing_data"},
		{container.ErrCorruptTile, "corrupt_tile"},
		{container.ErrBoundExceeded, "bound_exceeded"},
		{container.ErrInputTooLarge, "input_too_large"},
		{compress.ErrBadData, "bad_data"},
		{compress.ErrInsufficientSpace, "insufficient_space"},
		{compress.ErrShortInput, "short_input"},
		{compress.ErrUnknownEngine, "unknown_engine"},
		{compress.ErrEngineCreate, "engine_create"},
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "other"
}
