package sink

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/wp-labs/wp-motor/internal/metrics"
	"github.com/wp-labs/wp-motor/internal/stats"
	"github.com/wp-labs/wp-motor/internal/value"
	"github.com/wp-labs/wp-motor/internal/xerrors"
)

// BadSink is the handle a runtime reports on its "bad sinks" channel when it
// swaps to a rescue backend after a failure, so a recovery task can diagnose
// and eventually reconnect the original backend (§4.5.2, §9).
type BadSink struct {
	Name    string
	Backend Backend
	Err     error
}

// Runtime wraps one Backend and implements the per-sink policy of §4.5.2: a
// capacity-bounded pending buffer, the robustness-mode error policy, tag
// injection, and begin/end statistics.
type Runtime struct {
	mu         sync.Mutex
	name       string
	backend    Backend
	batchSize  int
	mode       xerrors.RobustMode
	tags       map[string]string
	rescueRoot string
	format     value.Format

	pending []*value.Record

	badSinks chan<- BadSink
	stat     *stats.Collector
	log      *logrus.Logger

	rescueSeq int
}

// Config bundles the construction-time parameters of one Runtime.
type Config struct {
	Name       string
	BatchSize  int // default 1024
	Mode       xerrors.RobustMode
	Tags       map[string]string
	RescueRoot string
	Format     value.Format
	BadSinks   chan<- BadSink
	Stat       *stats.Collector
	Log        *logrus.Logger
}

// NewRuntime wraps backend under the given policy.
func NewRuntime(backend Backend, cfg Config) *Runtime {
	bs := cfg.BatchSize
	if bs <= 0 {
		bs = 1024
	}
	return &Runtime{
		name:       cfg.Name,
		backend:    backend,
		batchSize:  bs,
		mode:       cfg.Mode,
		tags:       cfg.Tags,
		rescueRoot: cfg.RescueRoot,
		format:     cfg.Format,
		badSinks:   cfg.BadSinks,
		stat:       cfg.Stat,
		log:        cfg.Log,
	}
}

// injectTags writes every configured tag into rec, last-write-wins, in
// deterministic sorted-key order (§4.5.2 "Tagging").
func (r *Runtime) injectTags(rec *value.Record) {
	if len(r.tags) == 0 {
		return
	}
	keys := make([]string, 0, len(r.tags))
	for k := range r.tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rec.Append(value.NewField(k, value.NewChars(r.tags[k])))
	}
}

// SendPackageToSink is send_package_to_sink (§4.5.2): records are appended
// to the pending buffer; once it reaches batchSize it is flushed. A package
// whose size >= batchSize arriving while the pending buffer is empty is
// submitted directly, bypassing the buffer.
func (r *Runtime) SendPackageToSink(recs []*value.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range recs {
		r.injectTags(rec)
	}

	if len(r.pending) == 0 && len(recs) >= r.batchSize {
		return r.dispatchBatch(recs)
	}

	r.pending = append(r.pending, recs...)
	for len(r.pending) >= r.batchSize {
		batch := r.pending[:r.batchSize]
		if err := r.dispatchBatch(batch); err != nil {
			return err
		}
		r.pending = r.pending[r.batchSize:]
	}
	metrics.SinkQueueDepth.WithLabelValues(r.name).Set(float64(len(r.pending)))
	return nil
}

// Flush drains whatever remains in the pending buffer as one final batch.
func (r *Runtime) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) == 0 {
		return nil
	}
	batch := r.pending
	r.pending = nil
	metrics.SinkQueueDepth.WithLabelValues(r.name).Set(0)
	return r.dispatchBatch(batch)
}

// dispatchBatch sends one batch through the current backend, applying the
// robustness policy on failure. Caller holds r.mu.
func (r *Runtime) dispatchBatch(batch []*value.Record) error {
	if r.stat != nil {
		r.stat.RecordBegin()
	}
	err := r.backend.SinkRecords(batch)
	if err == nil {
		if r.stat != nil {
			r.stat.RecordEnd("records", int64(len(batch)))
		}
		metrics.SinkRecordsTotal.WithLabelValues(r.name, "ok").Add(float64(len(batch)))
		return nil
	}
	if r.stat != nil {
		r.stat.RecordEnd("errors", 1)
	}
	metrics.SinkRecordsTotal.WithLabelValues(r.name, "error").Add(float64(len(batch)))
	return r.handleError(err, batch)
}

func (r *Runtime) handleError(err error, batch []*value.Record) error {
	strategy := xerrors.Classify(err, r.mode)
	switch strategy {
	case xerrors.Ignore:
		return nil
	case xerrors.Tolerant:
		if r.stat != nil {
			r.stat.RecordTask("dropped", int64(len(batch)))
		}
		return nil
	case xerrors.Throw, xerrors.Terminate:
		return err
	default: // FixRetry
		return r.fixRetry(err, batch)
	}
}

// fixRetry implements the rescue-swap dance of §4.5.2: swap the backend for
// a fresh rescue file sink, report the old backend on the bad-sinks
// channel, and retry the batch against the rescue sink.
func (r *Runtime) fixRetry(origErr error, batch []*value.Record) error {
	old := r.backend
	rb, err := NewRescueBackend(r.rescueRoot, r.name, r.format)
	if err != nil {
		return err
	}
	r.backend = rb
	r.rescueSeq++

	if r.badSinks != nil {
		select {
		case r.badSinks <- BadSink{Name: r.name, Backend: old, Err: origErr}:
		default:
			// Recovery task isn't listening; the old backend is simply
			// abandoned rather than blocking the hot path.
		}
	}
	if r.log != nil {
		r.log.WithError(origErr).WithField("sink", r.name).Warn("sink send failed, swapped to rescue backend")
	}
	return r.backend.SinkRecords(batch)
}

// Reconnect hands a freshly reconnected backend back to the runtime,
// dropping whatever rescue sink is currently installed (its file is renamed
// `.dat` by Stop) and resuming on the live backend.
func (r *Runtime) Reconnect(fresh Backend) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.backend
	r.backend = fresh
	return old.Stop()
}

// Backend exposes the runtime's current backend (tests, diagnostics).
func (r *Runtime) Backend() Backend {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend
}

// PendingLen reports the current pending-buffer depth (tests, S4).
func (r *Runtime) PendingLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Stop flushes the pending buffer and stops the backend (renaming a rescue
// `.lock` file to `.dat`, closing a file handle, etc).
func (r *Runtime) Stop() error {
	if err := r.Flush(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.Stop()
}
