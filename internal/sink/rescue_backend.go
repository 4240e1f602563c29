package sink

import (
	"github.com/wp-labs/wp-motor/internal/rescue"
	"github.com/wp-labs/wp-motor/internal/value"
)

// RescueBackend is identical to FileBackend in text-format semantics but
// writes through a rescue.Writer, so its filename carries the `.lock`
// suffix until Stop renames it to `.dat` (§4.5.2, §4.7).
type RescueBackend struct {
	w      *rescue.Writer
	format value.Format
}

// NewRescueBackend creates `<root>/<sinkName>/<sinkName>-<ts>-<seq>.dat.lock`
// and opens it for append.
func NewRescueBackend(root, sinkName string, format value.Format) (*RescueBackend, error) {
	w, err := rescue.NewWriter(root, sinkName)
	if err != nil {
		return nil, err
	}
	return &RescueBackend{w: w, format: format}, nil
}

// Path returns the rescue writer's current on-disk path.
func (b *RescueBackend) Path() string { return b.w.Path() }

func (b *RescueBackend) SinkRecord(rec *value.Record) error {
	return b.w.WriteLine(value.RenderLine(rec, b.format))
}

func (b *RescueBackend) SinkRecords(recs []*value.Record) error {
	for _, r := range recs {
		if err := b.w.WriteLine(value.RenderLine(r, b.format)); err != nil {
			return err
		}
	}
	return nil
}

func (b *RescueBackend) SinkStr(line string) error { return b.w.WriteLine(line) }
func (b *RescueBackend) SinkBytes(raw []byte) error { return b.w.WriteLine(string(raw)) }

func (b *RescueBackend) SinkStrBatch(lines []string) error {
	for _, l := range lines {
		if err := b.w.WriteLine(l); err != nil {
			return err
		}
	}
	return nil
}

func (b *RescueBackend) SinkBytesBatch(bs [][]byte) error {
	for _, raw := range bs {
		if err := b.w.WriteLine(string(raw)); err != nil {
			return err
		}
	}
	return nil
}

// Stop performs the idempotent `.lock` -> `.dat` rename (§4.7).
func (b *RescueBackend) Stop() error { return b.w.Stop() }

// Reconnect is a no-op: a rescue backend is swapped out by the runtime, not
// reconnected in place.
func (b *RescueBackend) Reconnect() error { return nil }
