// Package stats implements per-stage counter collectors and the periodic
// flush to a monitor task described in §4.8.
package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stage names the pipeline stage a Collector tracks counters for.
type Stage string

const (
	StageParse     Stage = "parse"
	StageTransform Stage = "transform"
	StageSink      Stage = "sink"
	StageSource    Stage = "source"
)

// Snapshot is one immutable counter rollup handed to the monitor task.
type Snapshot struct {
	Stage   Stage
	Counts  map[string]int64
	Takenat time.Time
}

// Collector accumulates named counters for one stage. A collector belongs to
// exactly one task; aggregation across collectors happens only through
// Snapshot messages, never shared atomics across goroutines (§5).
type Collector struct {
	stage   Stage
	mu      sync.Mutex
	counts  map[string]int64
	pending int64 // count of in-flight record_begin/record_end pairs
}

// NewCollector builds an empty collector for stage.
func NewCollector(stage Stage) *Collector {
	return &Collector{stage: stage, counts: make(map[string]int64)}
}

// RecordBegin marks the start of processing one unit (a record or batch).
func (c *Collector) RecordBegin() {
	atomic.AddInt64(&c.pending, 1)
}

// RecordEnd marks the end of processing one unit and increments name by n.
func (c *Collector) RecordEnd(name string, n int64) {
	atomic.AddInt64(&c.pending, -1)
	c.mu.Lock()
	c.counts[name] += n
	c.mu.Unlock()
}

// RecordTask increments a named counter without a matching begin/end pair —
// used for one-shot events like "miss" or "rescue_swap".
func (c *Collector) RecordTask(name string, n int64) {
	c.mu.Lock()
	c.counts[name] += n
	c.mu.Unlock()
}

// Snapshot swaps the current counters out for a fresh map and returns the
// prior values, ready to forward over the monitor channel.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	cur := c.counts
	c.counts = make(map[string]int64, len(cur))
	c.mu.Unlock()
	return Snapshot{Stage: c.stage, Counts: cur, Takenat: time.Now()}
}

// Pending returns the number of record_begin calls with no matching
// record_end yet.
func (c *Collector) Pending() int64 {
	return atomic.LoadInt64(&c.pending)
}
