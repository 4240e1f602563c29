package stats

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// recordsTotal exposes every stage's cumulative counters to Prometheus,
// labeled by stage and counter name — the same CounterVec-per-concern shape
// the teacher's metrics package uses throughout.
var recordsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "wp_motor_stage_records_total",
		Help: "Cumulative per-stage counter values flushed from collectors",
	},
	[]string{"stage", "counter"},
)

func init() {
	prometheus.MustRegister(recordsTotal)
}

// Monitor is the single task that receives Snapshot messages from every
// stage's collector, aggregates them, and exposes the totals to Prometheus.
// Flush cadence on the sending side is rate-limited by the caller (§5); the
// monitor itself simply drains whatever arrives.
type Monitor struct {
	in     chan Snapshot
	log    *logrus.Logger
	totals map[Stage]map[string]int64
}

// NewMonitor builds a monitor with a bounded inbound channel.
func NewMonitor(log *logrus.Logger, bufSize int) *Monitor {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &Monitor{
		in:     make(chan Snapshot, bufSize),
		log:    log,
		totals: make(map[Stage]map[string]int64),
	}
}

// Inbound returns the channel collectors should send Snapshots on.
func (m *Monitor) Inbound() chan<- Snapshot { return m.in }

// Run drains snapshots until ctx is cancelled or the channel is closed,
// which is this actor's drain/shutdown signal (§5: "a closed cmd channel is
// treated as Stop").
func (m *Monitor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.log.Info("stats monitor entering draining")
			m.drainRemaining()
			return
		case snap, ok := <-m.in:
			if !ok {
				m.log.Info("stats monitor entering draining")
				return
			}
			m.apply(snap)
		}
	}
}

func (m *Monitor) drainRemaining() {
	for {
		select {
		case snap, ok := <-m.in:
			if !ok {
				return
			}
			m.apply(snap)
		default:
			return
		}
	}
}

func (m *Monitor) apply(snap Snapshot) {
	byStage := m.totals[snap.Stage]
	if byStage == nil {
		byStage = make(map[string]int64)
		m.totals[snap.Stage] = byStage
	}
	for name, n := range snap.Counts {
		byStage[name] += n
		recordsTotal.WithLabelValues(string(snap.Stage), name).Add(float64(n))
	}
}

// Totals returns a copy of the aggregated per-stage counters (test/debug
// surface; the live surface is Prometheus).
func (m *Monitor) Totals() map[Stage]map[string]int64 {
	out := make(map[Stage]map[string]int64, len(m.totals))
	for stage, counts := range m.totals {
		cp := make(map[string]int64, len(counts))
		for k, v := range counts {
			cp[k] = v
		}
		out[stage] = cp
	}
	return out
}

// FlushLoop periodically calls snapshot and forwards the result to the
// monitor's inbound channel, until ctx is cancelled. This is the "periodic
// flush" side of §4.8, run by each stage's owning task.
func FlushLoop(ctx context.Context, c *Collector, out chan<- Snapshot, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			select {
			case out <- c.Snapshot():
			default:
			}
			return
		case <-ticker.C:
			select {
			case out <- c.Snapshot():
			default:
				// Monitor channel is saturated; drop this flush rather than
				// block the owning stage's hot path.
			}
		}
	}
}
