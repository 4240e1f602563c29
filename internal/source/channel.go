package source

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ChannelSource is the in-process bounded-queue source (§4.4 "In-process
// channel"). Pipe functions re-inject generated payloads as new source
// events through a registered FieldProcessor, enabling recursive
// transforms (a pipeline whose output feeds back in as new input).
type ChannelSource struct {
	name string
	in   chan []byte
	done chan struct{}
	once sync.Once
}

// NewChannelSource creates a channel source with the given bounded capacity.
func NewChannelSource(name string, capacity int) *ChannelSource {
	return &ChannelSource{
		name: name,
		in:   make(chan []byte, capacity),
		done: make(chan struct{}),
	}
}

func (s *ChannelSource) Identifier() string { return "channel:" + s.name }

func (s *ChannelSource) CanTryReceive() bool { return true }

// TrySend is the non-blocking write side a FieldProcessor calls. It
// distinguishes "full" (buffer saturated) from "closed" (source stopped),
// matching §6.1's `try_send` contract — both surface as rule failure to the
// caller, never a panic.
func (s *ChannelSource) TrySend(payload []byte) error {
	select {
	case <-s.done:
		return &ErrClosed{Source: s.Identifier()}
	default:
	}
	select {
	case s.in <- payload:
		return nil
	default:
		return &ErrBufferFull{Source: s.Identifier()}
	}
}

func (s *ChannelSource) Receive(ctx context.Context) (Batch, error) {
	select {
	case payload, ok := <-s.in:
		if !ok {
			return nil, &ErrClosed{Source: s.Identifier()}
		}
		return Batch{newEvent(s.Identifier(), payload, nil)}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, &ErrClosed{Source: s.Identifier()}
	case <-time.After(200 * time.Millisecond):
		return nil, nil
	}
}

func (s *ChannelSource) TryReceive() (Batch, error) {
	select {
	case payload, ok := <-s.in:
		if !ok {
			return nil, &ErrClosed{Source: s.Identifier()}
		}
		return Batch{newEvent(s.Identifier(), payload, nil)}, nil
	default:
		return nil, nil
	}
}

func (s *ChannelSource) Stop() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// FieldExtendType distinguishes the two places a FieldProcessor can hook in
// (§6.1 `FiledExtendType::{InnerSource, MemChannel}`).
type FieldExtendType int

const (
	ExtendInnerSource FieldExtendType = iota
	ExtendMemChannel
)

// FieldProcessor looks a registered channel source up by name and forwards
// a payload into it — the mechanism pipe functions `vec_to_src`/
// `split_to_src` use to re-inject generated output as new source events.
type FieldProcessor struct {
	Kind     FieldExtendType
	registry *ChannelRegistry
}

// NewFieldProcessor binds a processor to a shared registry.
func NewFieldProcessor(kind FieldExtendType, reg *ChannelRegistry) *FieldProcessor {
	return &FieldProcessor{Kind: kind, registry: reg}
}

// Forward looks up name in the registry and forwards payload to it.
func (p *FieldProcessor) Forward(name string, payload []byte) error {
	ch, ok := p.registry.Lookup(name)
	if !ok {
		return fmt.Errorf("field processor: no channel source registered under %q", name)
	}
	return ch.TrySend(payload)
}

// ChannelRegistry is the process-wide registry `register_channel_factory`
// inserts into (§6.1).
type ChannelRegistry struct {
	mu    sync.RWMutex
	chans map[string]*ChannelSource
}

// NewChannelRegistry builds an empty registry.
func NewChannelRegistry() *ChannelRegistry {
	return &ChannelRegistry{chans: make(map[string]*ChannelSource)}
}

// Register inserts src under name (`register_channel_factory`).
func (r *ChannelRegistry) Register(name string, src *ChannelSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chans[name] = src
}

// Lookup finds a previously registered channel source by name.
func (r *ChannelRegistry) Lookup(name string) (*ChannelSource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.chans[name]
	return ch, ok
}
