package source

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	udpBufCap        = 64 * 1024 // any datagram exactly this size is assumed truncated
	udpOpportunistic = 127       // additional packets read opportunistically per call
)

// UDPConfig configures one UDP syslog source instance (§4.4).
type UDPConfig struct {
	Addr       string
	RecvBuf    int // SO_RCVBUF size, 0 = OS default
	HeaderMode HeaderMode
	FastStrip  bool
	RFC        string // "5424" (default) or "3164"
	MaxBackoff time.Duration
	Log        *logrus.Logger
}

// UDPSource binds a UDP socket and reads datagrams as SourceEvents. Go's
// net package has no recvmmsg binding, so the "batch syscalls" requirement
// of §4.4 is approximated at the application level: one blocking ReadFrom
// followed by up to udpOpportunistic non-blocking reads, draining the
// socket's backlog in one Receive call the same way a true recvmmsg batch
// would (see DESIGN.md C4 entry for the syscall-boundary justification).
type UDPSource struct {
	conn    *net.UDPConn
	cfg     UDPConfig
	preproc PreprocFunc
	backoff *backoff
	mu      sync.Mutex
	closed  bool
}

// NewUDPSource binds addr and returns a ready-to-Receive source.
func NewUDPSource(cfg UDPConfig) (*UDPSource, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("udp source: resolve %q: %w", cfg.Addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("udp source: listen %q: %w", cfg.Addr, err)
	}
	if cfg.RecvBuf > 0 {
		_ = conn.SetReadBuffer(cfg.RecvBuf)
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 500 * time.Millisecond
	}
	cfg.MaxBackoff = maxBackoff
	return &UDPSource{
		conn:    conn,
		cfg:     cfg,
		preproc: newSyslogPreproc(cfg.HeaderMode, cfg.FastStrip, cfg.RFC),
		backoff: newBackoff(maxBackoff),
	}, nil
}

func (s *UDPSource) Identifier() string { return "udp:" + s.cfg.Addr }

func (s *UDPSource) CanTryReceive() bool { return true }

// Receive blocks for the first datagram, then opportunistically drains up
// to udpOpportunistic more without blocking (§4.4 "one packet blocking,
// then up to 127 additional packets opportunistically").
func (s *UDPSource) Receive(ctx context.Context) (Batch, error) {
	for {
		buf := make([]byte, udpBufCap)
		if dl, ok := ctx.Deadline(); ok {
			_ = s.conn.SetReadDeadline(dl)
		} else {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.MaxBackoff))
		}
		n, _, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				default:
					continue
				}
			}
			if s.closed {
				return nil, &ErrClosed{Source: s.Identifier()}
			}
			return nil, err
		}
		s.backoff.reset()
		batch := s.drainDatagram(buf, n)
		batch = append(batch, s.opportunisticDrain()...)
		if len(batch) > 0 {
			return batch, nil
		}
	}
}

func (s *UDPSource) drainDatagram(buf []byte, n int) Batch {
	if n == udpBufCap {
		if s.cfg.Log != nil {
			s.cfg.Log.WithField("source", s.Identifier()).Warn("udp datagram at buffer capacity, assumed truncated, dropped")
		}
		return nil
	}
	ev := newEvent(s.Identifier(), buf[:n], s.preproc)
	if s.preproc != nil {
		_ = s.preproc(&ev)
	}
	return Batch{ev}
}

// opportunisticDrain reads up to udpOpportunistic more datagrams without
// blocking, approximating the recvmmsg batch-of-64 amortization at the
// application level.
func (s *UDPSource) opportunisticDrain() Batch {
	var out Batch
	for i := 0; i < udpOpportunistic; i++ {
		_ = s.conn.SetReadDeadline(time.Now())
		buf := make([]byte, udpBufCap)
		n, _, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			break
		}
		out = append(out, s.drainDatagram(buf, n)...)
	}
	return out
}

func (s *UDPSource) TryReceive() (Batch, error) {
	_ = s.conn.SetReadDeadline(time.Now())
	buf := make([]byte, udpBufCap)
	n, _, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		if s.closed {
			return nil, &ErrClosed{Source: s.Identifier()}
		}
		return nil, err
	}
	return s.drainDatagram(buf, n), nil
}

func (s *UDPSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}
