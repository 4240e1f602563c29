// Package source implements the C4 source runtime: UDP/TCP syslog, file
// tail, and in-process channel sources, each producing SourceBatch values
// for the orchestrator's dispatch actor.
package source

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/wp-labs/wp-motor/internal/value"
)

// HeaderMode selects the UDP/TCP syslog preprocessing hook (§4.4).
type HeaderMode string

const (
	HeaderRaw  HeaderMode = "raw"
	HeaderSkip HeaderMode = "skip"
	HeaderTag  HeaderMode = "tag"
)

// Event is the envelope carried from a source instance into the parser
// (§3.2 `SourceEvent`).
type Event struct {
	ID      uint64
	Key     string
	Payload []byte
	Tags    map[string]string
	UpsIP   string
	Preproc PreprocFunc
}

// PreprocFunc runs before the parser sees an event's payload — header
// stripping and tag extraction on syslog sources (§3.2 `preproc`).
type PreprocFunc func(ev *Event) error

// Batch is an ordered vector of events (§3.2 `SourceBatch`).
type Batch []Event

// ErrBufferFull is returned by try_receive/try_send style non-blocking APIs
// when a bounded queue is saturated (§4.4, §6.1).
type ErrBufferFull struct{ Source string }

func (e *ErrBufferFull) Error() string { return "source " + e.Source + ": buffer full" }

// ErrClosed is returned when a source's channel has been closed (§6.1).
type ErrClosed struct{ Source string }

func (e *ErrClosed) Error() string { return "source " + e.Source + ": channel closed" }

// Source is the interface every C4 implementation satisfies.
type Source interface {
	// Receive blocks (bounded backoff) until a batch is available or the
	// source is shut down.
	Receive(ctx context.Context) (Batch, error)
	// TryReceive returns immediately: a batch, or (nil, nil) if nothing is
	// ready yet.
	TryReceive() (Batch, error)
	CanTryReceive() bool
	Identifier() string
	Stop() error
}

var nextID uint64

// NextEventID hands out the process-wide monotonic per-event counter used
// as SourceEvent.id (§3.2: "the unit of traceability across stages").
func NextEventID() uint64 { return atomic.AddUint64(&nextID, 1) }

// ToRecord lifts a raw payload into a single-field Record so the parser
// always starts from the same shape regardless of source kind.
func ToRecord(payload []byte) *value.Record {
	return value.NewRecord(value.NewField("raw", value.NewChars(string(payload))))
}

func newEvent(key string, payload []byte, preproc PreprocFunc) Event {
	return Event{
		ID:      NextEventID(),
		Key:     key,
		Payload: payload,
		Tags:    make(map[string]string),
		Preproc: preproc,
	}
}

// backoff is the bounded exponential backoff used by Receive implementations
// while waiting for data (§4.4 "may block up to a bounded backoff").
type backoff struct {
	cur time.Duration
	max time.Duration
}

func newBackoff(max time.Duration) *backoff {
	return &backoff{cur: time.Millisecond, max: max}
}

func (b *backoff) sleep(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(b.cur):
	}
	b.cur *= 2
	if b.cur > b.max {
		b.cur = b.max
	}
	return nil
}

func (b *backoff) reset() { b.cur = time.Millisecond }
