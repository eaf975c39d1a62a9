package lcp

import (
	"math"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Histogram range in milliseconds: 1ms to 10 minutes, 3 significant figures.
const (
	statsMinMs   = 1
	statsMaxMs   = int64(10 * time.Minute / time.Millisecond)
	statsSigFigs = 3
)

// Distribution summarizes recorded values, in milliseconds.
type Distribution struct {
	Count int64   `json:"count"`
	Min   int64   `json:"min"`
	Max   int64   `json:"max"`
	Mean  float64 `json:"mean"`
	P50   int64   `json:"p50"`
	P90   int64   `json:"p90"`
	P99   int64   `json:"p99"`
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Succeeded     int64        `json:"succeeded"`
	Failed        int64        `json:"failed"`
	Rejected      int64        `json:"rejected"`
	LCP           Distribution `json:"lcpMs"`
	AuditDuration Distribution `json:"auditDurationMs"`
}

// Stats keeps LCP and audit duration distributions for the life of the
// process. A nil *Stats discards everything.
type Stats struct {
	mu        sync.Mutex
	lcp       *hdrhistogram.Histogram
	duration  *hdrhistogram.Histogram
	succeeded int64
	failed    int64
	rejected  int64
}

// NewStats creates empty stats.
func NewStats() *Stats {
	return &Stats{
		lcp:      hdrhistogram.New(statsMinMs, statsMaxMs, statsSigFigs),
		duration: hdrhistogram.New(statsMinMs, statsMaxMs, statsSigFigs),
	}
}

// RecordSuccess records a completed audit. lcp is in seconds.
func (s *Stats) RecordSuccess(lcp float64, took time.Duration) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.succeeded++
	record(s.lcp, int64(math.Round(lcp*1000)))
	record(s.duration, took.Milliseconds())
}

// RecordFailure records an audit that was admitted but failed.
func (s *Stats) RecordFailure(took time.Duration) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failed++
	record(s.duration, took.Milliseconds())
}

// RecordRejected records a request turned away by the gate.
func (s *Stats) RecordRejected() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.rejected++
	s.mu.Unlock()
}

// Snapshot returns the current counters and distributions.
func (s *Stats) Snapshot() StatsSnapshot {
	if s == nil {
		return StatsSnapshot{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return StatsSnapshot{
		Succeeded:     s.succeeded,
		Failed:        s.failed,
		Rejected:      s.rejected,
		LCP:           distribution(s.lcp),
		AuditDuration: distribution(s.duration),
	}
}

// record clamps v into the histogram range; out of range values would be
// dropped by RecordValue.
func record(h *hdrhistogram.Histogram, v int64) {
	if v < statsMinMs {
		v = statsMinMs
	}
	if v > statsMaxMs {
		v = statsMaxMs
	}
	_ = h.RecordValue(v)
}

func distribution(h *hdrhistogram.Histogram) Distribution {
	if h.TotalCount() == 0 {
		return Distribution{}
	}
	return Distribution{
		Count: h.TotalCount(),
		Min:   h.Min(),
		Max:   h.Max(),
		Mean:  h.Mean(),
		P50:   h.ValueAtQuantile(50),
		P90:   h.ValueAtQuantile(90),
		P99:   h.ValueAtQuantile(99),
	}
}
