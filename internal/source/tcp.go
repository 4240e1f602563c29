package source

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Framing names how a TCP syslog connection's byte stream is split into
// individual events (§4.4 "framed reader (line-delimited or
// length-prefixed)"). TCPSource does not read this setting: every
// connection is split on newlines, and length-prefixed streams are not
// decoded.
type Framing int

const (
	FramingLineDelimited Framing = iota
	FramingLengthPrefixed
)

// TCPConfig configures one TCP syslog source instance.
type TCPConfig struct {
	Addr       string
	Framing    Framing
	HeaderMode HeaderMode
	FastStrip  bool
	RFC        string
	Log        *logrus.Logger
}

// TCPSource accepts connections and reads framed syslog messages from each.
// Every accepted connection is read on its own goroutine feeding a shared
// buffered channel, so Receive sees events from any connected peer in
// arrival order per connection (§5 "within one source instance, events are
// delivered in arrival order" — arrival order per connection, merged by
// the shared channel's FIFO delivery).
type TCPSource struct {
	ln      net.Listener
	cfg     TCPConfig
	preproc PreprocFunc
	events  chan Event
	closeCh chan struct{}
	wg      sync.WaitGroup
	once    sync.Once

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
}

// NewTCPSource binds addr and begins accepting connections in the
// background.
func NewTCPSource(cfg TCPConfig) (*TCPSource, error) {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("tcp source: listen %q: %w", cfg.Addr, err)
	}
	s := &TCPSource{
		ln:      ln,
		cfg:     cfg,
		preproc: newSyslogPreproc(cfg.HeaderMode, cfg.FastStrip, cfg.RFC),
		events:  make(chan Event, 1024),
		closeCh: make(chan struct{}),
		conns:   make(map[net.Conn]struct{}),
	}
	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

func (s *TCPSource) Identifier() string { return "tcp:" + s.cfg.Addr }

func (s *TCPSource) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return
			default:
				if s.cfg.Log != nil {
					s.cfg.Log.WithError(err).WithField("source", s.Identifier()).Warn("tcp accept failed")
				}
				return
			}
		}
		s.connsMu.Lock()
		s.conns[conn] = struct{}{}
		s.connsMu.Unlock()
		s.wg.Add(1)
		go s.readConn(conn)
	}
}

func (s *TCPSource) readConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.connsMu.Lock()
		delete(s.conns, conn)
		s.connsMu.Unlock()
		conn.Close()
	}()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		ev := newEvent(s.Identifier(), []byte(line), s.preproc)
		if s.preproc != nil {
			_ = s.preproc(&ev)
		}
		select {
		case s.events <- ev:
		case <-s.closeCh:
			return
		}
	}
}

func (s *TCPSource) Receive(ctx context.Context) (Batch, error) {
	select {
	case ev, ok := <-s.events:
		if !ok {
			return nil, &ErrClosed{Source: s.Identifier()}
		}
		return Batch{ev}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(200 * time.Millisecond):
		return nil, nil
	}
}

func (s *TCPSource) TryReceive() (Batch, error) {
	select {
	case ev, ok := <-s.events:
		if !ok {
			return nil, &ErrClosed{Source: s.Identifier()}
		}
		return Batch{ev}, nil
	default:
		return nil, nil
	}
}

func (s *TCPSource) CanTryReceive() bool { return true }

// Stop closes the listener and every open connection, waits for their
// reader goroutines to exit, then closes the events channel. Bounded by the
// orchestrator's shutdown timeout (§4.9), not by this method itself.
func (s *TCPSource) Stop() error {
	var err error
	s.once.Do(func() {
		close(s.closeCh)
		err = s.ln.Close()
		s.connsMu.Lock()
		for c := range s.conns {
			c.Close()
		}
		s.connsMu.Unlock()
		s.wg.Wait()
		close(s.events)
	})
	return err
}
