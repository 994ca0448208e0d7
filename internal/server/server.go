package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/0xReLogic/tilepack/internal/config"
	"github.com/0xReLogic/tilepack/internal/container"
	"github.com/0xReLogic/tilepack/internal/data/bitmap"
	"github.com/0xReLogic/tilepack/internal/data/compress"
	"github.com/0xReLogic/tilepack/internal/metrics"
	"github.com/0xReLogic/tilepack/internal/tile"
)

// Response headers set by /compress.
const (
	HeaderTiles            = "X-Tilepack-Tiles"
	HeaderUncompressedSize = "X-Tilepack-Uncompressed-Size"
)

// Stats are the running totals reported by /stats.
type Stats struct {
	Requests      int64 `json:"requests"`
	Compressed    int64 `json:"compressed"`
	Decompressed  int64 `json:"decompressed"`
	Verified      int64 `json:"verified"`
	BytesIn       int64 `json:"bytes_in"`
	BytesOut      int64 `json:"bytes_out"`
	Errors        int64 `json:"errors"`
	DamagedTiles  int64 `json:"damaged_tiles"`
	UptimeSeconds int64 `json:"uptime_seconds"`
}

// Server serves container operations over HTTP. Every request builds its own
// compressor or decompressor.
type Server struct {
	cfg   config.Config
	log   *logrus.Entry
	start time.Time

	requests     atomic.Int64
	compressed   atomic.Int64
	decompressed atomic.Int64
	verified     atomic.Int64
	bytesIn      atomic.Int64
	bytesOut     atomic.Int64
	failures     atomic.Int64
	damaged      atomic.Int64
}

// New creates a Server with cfg as the default options.
func New(cfg config.Config, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	metrics.Register()
	return &Server{cfg: cfg, log: log, start: time.Now()}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("/compress", s.post(s.handleCompress))
	mux.HandleFunc("/decompress", s.post(s.handleDecompress))
	mux.HandleFunc("/inspect", s.post(s.handleInspect))
	mux.HandleFunc("/verify", s.post(s.handleVerify))

	// Stats endpoint
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, s.Stats())
	})

	mux.Handle("/metrics", metrics.Handler())

	return mux
}

// Stats returns a snapshot of the running totals.
func (s *Server) Stats() Stats {
	return Stats{
		Requests:      s.requests.Load(),
		Compressed:    s.compressed.Load(),
		Decompressed:  s.decompressed.Load(),
		Verified:      s.verified.Load(),
		BytesIn:       s.bytesIn.Load(),
		BytesOut:      s.bytesOut.Load(),
		Errors:        s.failures.Load(),
		DamagedTiles:  s.damaged.Load(),
		UptimeSeconds: int64(time.Since(s.start).Seconds()),
	}
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, opts container.Options, body []byte) error

// post checks the method, reads the body within the configured limit and
// resolves the container options before calling h.
func (s *Server) post(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.requests.Add(1)

		opts, err := s.options(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.bytesIn.Add(int64(len(body)))

		if err := h(w, r, opts, body); err != nil {
			s.fail(w, r, err)
		}
	}
}

// errBadParam marks an unparsable query parameter.
var errBadParam = errors.New("bad query parameter")

// options applies the engine, level and tile_size query parameters over the defaults.
func (s *Server) options(r *http.Request) (container.Options, error) {
	opts := s.cfg.Options()
	opts.Logger = s.log
	q := r.URL.Query()

	if engine := q.Get("engine"); engine != "" {
		opts.Engine = engine
	}
	if v := q.Get("level"); v != "" {
		level, err := strconv.Atoi(v)
		if err != nil {
			return opts, errors.Wrapf(errBadParam, "level %q", v)
		}
		opts.Level = compress.Level(level)
	}
	if v := q.Get("tile_size"); v != "" {
		ts, err := strconv.Atoi(v)
		if err != nil {
			return opts, errors.Wrapf(errBadParam, "tile_size %q", v)
		}
		opts.TileSize = ts
	}
	return opts, nil
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request, opts container.Options, body []byte) error {
	start := time.Now()
	res, err := container.CompressParallel(r.Context(), opts, s.cfg.Workers, body)
	if err != nil {
		metrics.ObserveError(metrics.OpCompress, err)
		return err
	}
	metrics.Observe(opts.Engine, metrics.OpCompress, len(res.Tiles), len(body), len(res.Bytes), time.Since(start))
	s.compressed.Add(1)

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set(HeaderTiles, strconv.Itoa(len(res.Tiles)))
	w.Header().Set(HeaderUncompressedSize, strconv.Itoa(len(body)))
	s.write(w, res.Bytes)
	return nil
}

func (s *Server) handleDecompress(w http.ResponseWriter, r *http.Request, opts container.Options, body []byte) error {
	d, err := container.NewDecompressor(opts)
	if err != nil {
		return err
	}
	defer d.Close()

	start := time.Now()
	out, err := d.Decompress(body)
	if err != nil {
		metrics.ObserveError(metrics.OpDecompress, err)
		return err
	}
	metrics.Observe(opts.Engine, metrics.OpDecompress, tile.Count(len(out), opts.TileSize), len(body), len(out), time.Since(start))
	s.decompressed.Add(1)

	w.Header().Set("Content-Type", "application/octet-stream")
	s.write(w, out)
	return nil
}

// InspectResponse describes a container without decoding it.
type InspectResponse = container.Summary

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request, opts container.Options, body []byte) error {
	idx, err := container.ParseIndex(body, opts.TileSize)
	if err != nil {
		metrics.ObserveError(metrics.OpInspect, err)
		return err
	}

	writeJSON(w, idx.Summary())
	return nil
}

// VerifyResponse lists the tiles that failed to decode.
type VerifyResponse struct {
	OK               bool  `json:"ok"`
	TileCount        int   `json:"tile_count"`
	UncompressedSize int   `json:"uncompressed_size"`
	Damaged          []int `json:"damaged"`

	// DamagedSet is Damaged as a portable roaring bitmap.
	DamagedSet []byte `json:"damaged_set"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request, opts container.Options, body []byte) error {
	d, err := container.NewDecompressor(opts)
	if err != nil {
		return err
	}
	defer d.Close()

	start := time.Now()
	report, err := d.Verify(body)
	if err != nil {
		metrics.ObserveError(metrics.OpVerify, err)
		return err
	}
	metrics.Observe(opts.Engine, metrics.OpVerify, report.TileCount, len(body), 0, time.Since(start))
	metrics.DamagedTiles.WithLabelValues(opts.Engine).Add(float64(report.Damaged.GetCardinality()))
	s.verified.Add(1)
	s.damaged.Add(int64(report.Damaged.GetCardinality()))

	set, err := bitmap.ToBytes(report.Damaged)
	if err != nil {
		return err
	}

	writeJSON(w, VerifyResponse{
		OK:               report.OK(),
		TileCount:        report.TileCount,
		UncompressedSize: report.UncompressedSize,
		Damaged:          bitmap.Indices(report.Damaged),
		DamagedSet:       set,
	})
	return nil
}

func (s *Server) write(w http.ResponseWriter, b []byte) {
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(http.StatusOK)
	n, _ := w.Write(b)
	s.bytesOut.Add(int64(n))
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.failures.Add(1)
	code := statusCode(err)
	s.log.WithError(err).WithFields(logrus.Fields{
		"path":   r.URL.Path,
		"status": code,
	}).Info("request failed")
	http.Error(w, fmt.Sprintf("Error: %v", err), code)
}

// statusCode maps error sentinels onto HTTP status codes.
func statusCode(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes), errors.Is(err, container.ErrInputTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadParam),
		errors.Is(err, compress.ErrUnknownEngine),
		errors.Is(err, tile.ErrInvalidTileSize),
		errors.Is(err, tile.ErrTruncatedHeader),
		errors.Is(err, container.ErrInvalidHeader),
		errors.Is(err, container.ErrTruncatedSizeTable),
		errors.Is(err, container.ErrTruncatedPayload),
		errors.Is(err, container.ErrTrailingData):
		return http.StatusBadRequest
	case errors.Is(err, compress.ErrBadData),
		errors.Is(err, compress.ErrShortInput),
		errors.Is(err, compress.ErrInsufficientSpace),
		errors.Is(err, container.ErrCorruptTile):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("Error: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
