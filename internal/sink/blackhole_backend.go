package sink

import (
	"sync/atomic"

	"github.com/wp-labs/wp-motor/internal/value"
)

// BlackholeBackend counts what it receives and discards it — the test/stats
// backend named in §4.5.1 and exercised directly by scenario S1.
type BlackholeBackend struct {
	records int64
	lines   int64
	bytes   int64
}

func NewBlackholeBackend() *BlackholeBackend { return &BlackholeBackend{} }

func (b *BlackholeBackend) SinkRecord(rec *value.Record) error {
	atomic.AddInt64(&b.records, 1)
	return nil
}

func (b *BlackholeBackend) SinkRecords(recs []*value.Record) error {
	atomic.AddInt64(&b.records, int64(len(recs)))
	return nil
}

func (b *BlackholeBackend) SinkStr(line string) error {
	atomic.AddInt64(&b.lines, 1)
	return nil
}

func (b *BlackholeBackend) SinkBytes(raw []byte) error {
	atomic.AddInt64(&b.bytes, int64(len(raw)))
	return nil
}

func (b *BlackholeBackend) SinkStrBatch(lines []string) error {
	atomic.AddInt64(&b.lines, int64(len(lines)))
	return nil
}

func (b *BlackholeBackend) SinkBytesBatch(bs [][]byte) error {
	for _, raw := range bs {
		atomic.AddInt64(&b.bytes, int64(len(raw)))
	}
	return nil
}

func (b *BlackholeBackend) Stop() error      { return nil }
func (b *BlackholeBackend) Reconnect() error { return nil }

// Records returns the cumulative record count observed — the scenario S1
// assertion surface.
func (b *BlackholeBackend) Records() int64 { return atomic.LoadInt64(&b.records) }
