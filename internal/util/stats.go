package util

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide link/lockstep counter.
var Stats = &stats{}

type stats struct {
	BytesSent    atomic.Int64 // bytes handed to the physical link
	BytesRecv    atomic.Int64 // bytes accepted into the receive queue
	BytesDropped atomic.Int64 // bytes discarded because the receive queue was full
	Ticks        atomic.Int64 // completed lockstep rounds
	Stalls       atomic.Int64 // lockstep polls that did not advance
	Collisions   atomic.Int64 // handshake token collisions
}

func (s *stats) AddSent(n int)    { s.BytesSent.Add(int64(n)) }
func (s *stats) AddRecv(n int)    { s.BytesRecv.Add(int64(n)) }
func (s *stats) AddDropped(n int) { s.BytesDropped.Add(int64(n)) }
func (s *stats) AddTick()         { s.Ticks.Add(1) }
func (s *stats) AddStall()        { s.Stalls.Add(1) }
func (s *stats) AddCollision()    { s.Collisions.Add(1) }

// ──────────────────────────────────────────────────────────────────────────────
// Prometheus export
// ──────────────────────────────────────────────────────────────────────────────

var (
	descBytes = prometheus.NewDesc("duel_link_bytes_total",
		"Bytes moved over the peer link.", []string{"direction"}, nil)
	descTicks = prometheus.NewDesc("duel_lockstep_ticks_total",
		"Completed lockstep rounds.", nil, nil)
	descStalls = prometheus.NewDesc("duel_lockstep_stalls_total",
		"Lockstep polls that returned without advancing.", nil, nil)
	descCollisions = prometheus.NewDesc("duel_handshake_collisions_total",
		"Handshake token collisions resolved by re-randomizing.", nil, nil)
)

// Describe implements prometheus.Collector.
func (s *stats) Describe(ch chan<- *prometheus.Desc) {
	ch <- descBytes
	ch <- descTicks
	ch <- descStalls
	ch <- descCollisions
}

// Collect implements prometheus.Collector.
func (s *stats) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(descBytes, prometheus.CounterValue, float64(s.BytesSent.Load()), "sent")
	ch <- prometheus.MustNewConstMetric(descBytes, prometheus.CounterValue, float64(s.BytesRecv.Load()), "received")
	ch <- prometheus.MustNewConstMetric(descBytes, prometheus.CounterValue, float64(s.BytesDropped.Load()), "dropped")
	ch <- prometheus.MustNewConstMetric(descTicks, prometheus.CounterValue, float64(s.Ticks.Load()))
	ch <- prometheus.MustNewConstMetric(descStalls, prometheus.CounterValue, float64(s.Stalls.Load()))
	ch <- prometheus.MustNewConstMetric(descCollisions, prometheus.CounterValue, float64(s.Collisions.Load()))
}

// ServeMetrics exposes Stats on addr under /metrics until ctx is cancelled.
func ServeMetrics(ctx context.Context, addr string) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(Stats); err != nil {
		return fmt.Errorf("failed to register stats collector: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	LogInfo("metrics available at http://%s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs link statistics
// every 10 seconds. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		var prevSent, prevRecv, prevTicks, prevStalls int64
		for {
			select {
			case <-ticker.C:
				sent := Stats.BytesSent.Load()
				recv := Stats.BytesRecv.Load()
				ticks := Stats.Ticks.Load()
				stalls := Stats.Stalls.Load()

				outS := float64(sent-prevSent) / 10.0
				inS := float64(recv-prevRecv) / 10.0
				tickS := float64(ticks-prevTicks) / 10.0

				if ticks != prevTicks || stalls != prevStalls {
					logger.Debug(formatStats(inS, outS, tickS, stalls-prevStalls, Stats.BytesDropped.Load()))
				}

				prevSent = sent
				prevRecv = recv
				prevTicks = ticks
				prevStalls = stalls

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats returns a formatted string of the current stats for display in the logger.
func formatStats(inS, outS, tickS float64, stalls, dropped int64) string {
	return fmt.Sprintf("In: %s/s | Out: %s/s | Ticks: %5.1f/s | Stalls: %4d | Dropped: %d",
		formatBytes(inS),
		formatBytes(outS),
		tickS,
		stalls,
		dropped,
	)
}
