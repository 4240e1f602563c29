package source

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/nxadm/tail"
	"github.com/sirupsen/logrus"
)

// SeekStrategy selects where a FileSource starts reading an existing file
// (grounded on the teacher's `determineSeekPosition`).
type SeekStrategy string

const (
	SeekBeginning SeekStrategy = "beginning"
	SeekEnd       SeekStrategy = "end"
	SeekRecent    SeekStrategy = "recent"
)

// FileConfig configures one file source instance (§4.4 "reads lines from a
// path or tail mode").
type FileConfig struct {
	Path            string
	Seek            SeekStrategy
	SeekRecentBytes int64
	Log             *logrus.Logger
}

func seekInfo(cfg FileConfig) *tail.SeekInfo {
	switch cfg.Seek {
	case SeekEnd:
		return &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
	case SeekRecent:
		offset := cfg.SeekRecentBytes
		if offset == 0 {
			offset = 1048576
		}
		return &tail.SeekInfo{Offset: -offset, Whence: io.SeekEnd}
	case SeekBeginning:
		fallthrough
	default:
		return &tail.SeekInfo{Offset: 0, Whence: io.SeekStart}
	}
}

// FileSource tails one file with follow+reopen semantics, handling
// truncation and rotation the way the teacher's `logTailer` does.
type FileSource struct {
	t    *tail.Tail
	path string
	log  *logrus.Logger
}

// NewFileSource opens path in follow mode.
func NewFileSource(cfg FileConfig) (*FileSource, error) {
	t, err := tail.TailFile(cfg.Path, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Location: seekInfo(cfg),
		Poll:     false,
	})
	if err != nil {
		return nil, fmt.Errorf("file source: tail %q: %w", cfg.Path, err)
	}
	return &FileSource{t: t, path: cfg.Path, log: cfg.Log}, nil
}

func (s *FileSource) Identifier() string { return "file:" + s.path }

func (s *FileSource) CanTryReceive() bool { return true }

func (s *FileSource) Receive(ctx context.Context) (Batch, error) {
	select {
	case line, ok := <-s.t.Lines:
		if !ok {
			return nil, &ErrClosed{Source: s.Identifier()}
		}
		if line.Err != nil {
			if s.log != nil {
				s.log.WithError(line.Err).WithField("source", s.Identifier()).Warn("tail read error")
			}
			return nil, nil
		}
		ev := newEvent(s.Identifier(), []byte(line.Text), nil)
		return Batch{ev}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(200 * time.Millisecond):
		return nil, nil
	}
}

func (s *FileSource) TryReceive() (Batch, error) {
	select {
	case line, ok := <-s.t.Lines:
		if !ok {
			return nil, &ErrClosed{Source: s.Identifier()}
		}
		if line.Err != nil {
			return nil, nil
		}
		return Batch{newEvent(s.Identifier(), []byte(line.Text), nil)}, nil
	default:
		return nil, nil
	}
}

func (s *FileSource) Stop() error {
	return s.t.Stop()
}
