package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/0xReLogic/tilepack/internal/data/bitmap"
)

// Stats tracks latency for one kind of request
type Stats struct {
	operations     int64
	bytes          int64
	totalLatencyNs int64
	minLatencyNs   int64
	maxLatencyNs   int64
	errorCount     int64
	startTime      time.Time
	latencies      []time.Duration
	latenciesMutex sync.Mutex
}

func newStats() *Stats {
	return &Stats{
		minLatencyNs: int64(^uint64(0) >> 1), // Max int64
		startTime:    time.Now(),
		latencies:    make([]time.Duration, 0, 1000),
	}
}

func (s *Stats) recordLatency(d time.Duration, n int) {
	atomic.AddInt64(&s.operations, 1)
	atomic.AddInt64(&s.bytes, int64(n))
	atomic.AddInt64(&s.totalLatencyNs, int64(d))

	// Update min/max latency
	for {
		cur := atomic.LoadInt64(&s.minLatencyNs)
		if int64(d) >= cur || atomic.CompareAndSwapInt64(&s.minLatencyNs, cur, int64(d)) {
			break
		}
	}
	for {
		cur := atomic.LoadInt64(&s.maxLatencyNs)
		if int64(d) <= cur || atomic.CompareAndSwapInt64(&s.maxLatencyNs, cur, int64(d)) {
			break
		}
	}

	s.latenciesMutex.Lock()
	s.latencies = append(s.latencies, d)
	s.latenciesMutex.Unlock()
}

func (s *Stats) recordError() {
	atomic.AddInt64(&s.errorCount, 1)
}

// percentile returns the latency at fraction p of the sorted samples.
func (s *Stats) percentile(p float64) time.Duration {
	s.latenciesMutex.Lock()
	defer s.latenciesMutex.Unlock()

	if len(s.latencies) == 0 {
		return 0
	}
	sort.Slice(s.latencies, func(i, j int) bool {
		return s.latencies[i] < s.latencies[j]
	})
	return s.latencies[min(int(float64(len(s.latencies))*p), len(s.latencies)-1)]
}

func (s *Stats) printStats(operation string) {
	ops := atomic.LoadInt64(&s.operations)
	if ops == 0 {
		fmt.Printf("%s: No operations performed\n", operation)
		return
	}

	duration := time.Since(s.startTime)
	mbps := float64(atomic.LoadInt64(&s.bytes)) / duration.Seconds() / (1 << 20)

	fmt.Printf("\n%s Statistics:\n", operation)
	fmt.Printf("  Operations:    %d\n", ops)
	fmt.Printf("  Runtime:       %v\n", duration.Round(time.Millisecond))
	fmt.Printf("  Throughput:    %.2f ops/sec, %.2f MiB/sec\n", float64(ops)/duration.Seconds(), mbps)
	fmt.Printf("  Avg Latency:   %v\n", time.Duration(atomic.LoadInt64(&s.totalLatencyNs)/ops))
	fmt.Printf("  Min Latency:   %v\n", time.Duration(atomic.LoadInt64(&s.minLatencyNs)))
	fmt.Printf("  Max Latency:   %v\n", time.Duration(atomic.LoadInt64(&s.maxLatencyNs)))
	fmt.Printf("  P95 Latency:   %v\n", s.percentile(0.95))
	fmt.Printf("  P99 Latency:   %v\n", s.percentile(0.99))
	fmt.Printf("  Error Count:   %d\n", atomic.LoadInt64(&s.errorCount))
}

type benchmark struct {
	client  *http.Client
	server  string
	engine  string
	level   int
	threads int
	log     *logrus.Entry
}

func main() {
	app := &cli.App{
		Name:  "tilepack-benchmark",
		Usage: "Load test a tilepack server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Value: "http://localhost:8080", Usage: "Server address"},
			&cli.StringFlag{Name: "engine", Value: "deflate", Usage: "Compression engine"},
			&cli.IntFlag{Name: "level", Value: 6, Usage: "Compression level"},
			&cli.IntFlag{Name: "requests", Value: 1000, Usage: "Number of round trips to perform"},
			&cli.IntFlag{Name: "threads", Value: 4, Usage: "Number of threads"},
			&cli.IntFlag{Name: "payload-size", Value: 1 << 20, Usage: "Size of request payloads in bytes"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("benchmark failed")
	}
}

func run(c *cli.Context) error {
	b := &benchmark{
		client:  &http.Client{Timeout: 30 * time.Second},
		server:  c.String("server"),
		engine:  c.String("engine"),
		level:   c.Int("level"),
		threads: max(c.Int("threads"), 1),
		log:     logrus.WithField("component", "benchmark"),
	}

	// Half random, half repetitive so every engine has something to compress
	payload := make([]byte, c.Int("payload-size"))
	rand.Read(payload[:len(payload)/2])
	copy(payload[len(payload)/2:], bytes.Repeat([]byte("tilepack "), len(payload)/18+1))

	packed, err := b.compress(payload)
	if err != nil {
		return errors.Wrap(err, "warm-up request failed")
	}
	fmt.Printf("Payload: %d bytes -> %d bytes (%.1f%%)\n", len(payload), len(packed),
		100*float64(len(packed))/float64(max(len(payload), 1)))

	requests := c.Int("requests")

	fmt.Printf("Running compress benchmark with %d threads...\n", b.threads)
	b.parallel(requests, "Compress", func() (int, error) {
		_, err := b.compress(payload)
		return len(payload), err
	}).printStats("Compress")

	fmt.Printf("\nRunning decompress benchmark with %d threads...\n", b.threads)
	b.parallel(requests, "Decompress", func() (int, error) {
		out, err := b.decompress(packed)
		if err == nil && !bytes.Equal(out, payload) {
			err = errors.New("round trip mismatch")
		}
		return len(out), err
	}).printStats("Decompress")

	fmt.Printf("\nRunning verify benchmark with %d threads...\n", b.threads)
	b.parallel(requests, "Verify", func() (int, error) {
		return len(packed), b.verify(packed)
	}).printStats("Verify")

	return nil
}

// parallel runs op requests times spread over the worker threads.
func (b *benchmark) parallel(requests int, name string, op func() (int, error)) *Stats {
	stats := newStats()
	var wg sync.WaitGroup
	opsPerThread := (requests + b.threads - 1) / b.threads

	for t := 0; t < b.threads; t++ {
		wg.Add(1)
		go func(threadID int) {
			defer wg.Done()

			start := threadID * opsPerThread
			end := min((threadID+1)*opsPerThread, requests)
			for i := start; i < end; i++ {
				startTime := time.Now()
				n, err := op()
				if err != nil {
					stats.recordError()
					b.log.WithError(err).Warnf("%s request failed", name)
					continue
				}
				stats.recordLatency(time.Since(startTime), n)
			}
		}(t)
	}

	wg.Wait()
	return stats
}

func (b *benchmark) compress(payload []byte) ([]byte, error) {
	return b.post(fmt.Sprintf("%s/compress?engine=%s&level=%d", b.server, b.engine, b.level), payload)
}

func (b *benchmark) decompress(packed []byte) ([]byte, error) {
	return b.post(fmt.Sprintf("%s/decompress?engine=%s", b.server, b.engine), packed)
}

// verifyResponse mirrors the server's /verify reply.
type verifyResponse struct {
	TileCount  int    `json:"tile_count"`
	DamagedSet []byte `json:"damaged_set"`
}

func (b *benchmark) verify(packed []byte) error {
	data, err := b.post(fmt.Sprintf("%s/verify?engine=%s", b.server, b.engine), packed)
	if err != nil {
		return err
	}

	var resp verifyResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return errors.Wrap(err, "failed to decode verify response")
	}
	damaged, err := bitmap.FromBytes(resp.DamagedSet)
	if err != nil {
		return err
	}
	if !damaged.IsEmpty() {
		return errors.Errorf("%d of %d tiles damaged", damaged.GetCardinality(), resp.TileCount)
	}
	return nil
}

func (b *benchmark) post(url string, body []byte) ([]byte, error) {
	resp, err := b.client.Post(url, "application/octet-stream", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status code %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	return data, nil
}
