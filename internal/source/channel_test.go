package source

import (
	"context"
	"testing"
	"time"
)

func TestChannelSourceTrySendFullAndClosed(t *testing.T) {
	s := NewChannelSource("test", 1)
	if err := s.TrySend([]byte("a")); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := s.TrySend([]byte("b")); err == nil {
		t.Fatalf("expected buffer-full error on second send")
	} else if _, ok := err.(*ErrBufferFull); !ok {
		t.Fatalf("expected *ErrBufferFull, got %T", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	batch, err := s.Receive(ctx)
	if err != nil || len(batch) != 1 {
		t.Fatalf("receive: batch=%v err=%v", batch, err)
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := s.TrySend([]byte("c")); err == nil {
		t.Fatalf("expected closed error after Stop")
	} else if _, ok := err.(*ErrClosed); !ok {
		t.Fatalf("expected *ErrClosed, got %T", err)
	}
}

func TestFieldProcessorForwardsThroughRegistry(t *testing.T) {
	reg := NewChannelRegistry()
	s := NewChannelSource("reinject", 4)
	reg.Register("reinject", s)

	p := NewFieldProcessor(ExtendMemChannel, reg)
	if err := p.Forward("reinject", []byte("hello")); err != nil {
		t.Fatalf("forward: %v", err)
	}

	batch, err := s.TryReceive()
	if err != nil || len(batch) != 1 || string(batch[0].Payload) != "hello" {
		t.Fatalf("unexpected batch=%v err=%v", batch, err)
	}
}

func TestFieldProcessorForwardUnknownChannel(t *testing.T) {
	reg := NewChannelRegistry()
	p := NewFieldProcessor(ExtendMemChannel, reg)
	if err := p.Forward("missing", []byte("x")); err == nil {
		t.Fatalf("expected an error forwarding to an unregistered channel")
	}
}
