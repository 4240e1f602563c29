// Package sink implements the C5 sink runtime: backends, the per-sink
// pending-buffer/robustness-policy runtime, and the dispatcher that groups
// replicas under routing rules (§4.5).
package sink

import (
	"github.com/wp-labs/wp-motor/internal/value"
)

// Backend is the async interface every concrete sink implementation
// satisfies (§4.5.1). SinkRecord/SinkRecords take already-parsed records;
// SinkStr/SinkBytes let a proxy backend adapt any record-sink over raw text
// (Dispatcher.BroadcastRaw sends through SinkStr; the infra channels wrap
// their lines in a Record and use the record path).
type Backend interface {
	SinkRecord(rec *value.Record) error
	SinkRecords(recs []*value.Record) error
	SinkStr(line string) error
	SinkBytes(b []byte) error
	SinkStrBatch(lines []string) error
	SinkBytesBatch(bs [][]byte) error
	Stop() error
	Reconnect() error
}

// Format is the text format a backend renders records in (§6.2 `fmt` key).
type Format = value.Format
