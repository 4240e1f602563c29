// Package rescue implements the append-only rescue file writer and scanner
// used when a sink backend fails: §4.7.
package rescue

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// seq is the process-wide rescue-file sequence counter (§9 "global state").
var seq int64

// NextSeq returns the next rescue-file sequence number.
func NextSeq() int64 { return atomic.AddInt64(&seq, 1) }

// Writer is an append-only `.lock` file for one sink's rescued records. It is
// owned by exactly one SinkRuntime and is never shared across goroutines.
type Writer struct {
	mu       sync.Mutex
	path     string // current path, ending in .lock until Stop
	file     *os.File
	lineCnt  int64
	byteCnt  int64
	stopped  bool
}

// NewWriter creates `<root>/<sinkName>/<sinkName>-<YYYY-MM-DD_HH:MM:SS>-<seq>.dat.lock`
// and opens it for append.
func NewWriter(root, sinkName string) (*Writer, error) {
	dir := filepath.Join(root, sinkName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("rescue: mkdir %s: %w", dir, err)
	}
	name := fmt.Sprintf("%s-%s-%d.dat.lock", sinkName, time.Now().Format("2006-01-02_15:04:05"), NextSeq())
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("rescue: open %s: %w", path, err)
	}
	return &Writer{path: path, file: f}, nil
}

// Path returns the writer's current on-disk path.
func (w *Writer) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

// WriteLine appends one formatted record line, adding the trailing newline.
func (w *Writer) WriteLine(line string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return fmt.Errorf("rescue: writer for %s already stopped", w.path)
	}
	n, err := w.file.WriteString(line + "\n")
	if err != nil {
		return err
	}
	w.lineCnt++
	w.byteCnt += int64(n)
	return nil
}

// Stop performs the idempotent `.lock` -> `.dat` rename. Calling Stop twice,
// or from both an explicit stop() and a destructor/finalizer path, is safe:
// the second call sees the writer already marked stopped and is a no-op. Stop never renames a path that does not end in `.lock`, which
// would otherwise risk clobbering an unrelated file (§4.7).
func (w *Writer) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	if err := w.file.Close(); err != nil {
		return err
	}
	if filepath.Ext(w.path) != ".lock" {
		return nil
	}
	final := w.path[:len(w.path)-len(".lock")]
	if err := os.Rename(w.path, final); err != nil {
		return fmt.Errorf("rescue: rename %s -> %s: %w", w.path, final, err)
	}
	w.path = final
	return nil
}

// Close releases the writer's handle without renaming — used only when a
// runtime is discarding an in-progress rescue writer that another owner will
// finish (a reconnect handoff never needs this; kept for symmetry with the
// backend Stop() contract other sinks share).
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	return w.file.Close()
}
