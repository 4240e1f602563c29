package sink

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/wp-labs/wp-motor/internal/value"
)

// InfraChannel names the five fixed infra groups present in every pipeline
// (§3.6 "Infra groups").
type InfraChannel int

const (
	InfraDefault InfraChannel = iota // catch-all
	InfraMiss                        // no routing rule matched
	InfraResidue                     // transform produced no fields
	InfraMonitor                     // periodic stats records
	InfraError                       // pipeline errors as records
	infraChannelCount
)

func (c InfraChannel) String() string {
	switch c {
	case InfraDefault:
		return "default"
	case InfraMiss:
		return "miss"
	case InfraResidue:
		return "residue"
	case InfraMonitor:
		return "monitor"
	case InfraError:
		return "error"
	default:
		return "unknown"
	}
}

// InfraActor owns the five fixed infra sinks (§3.6, §9(c)) and dispatches to
// each via consistent hashing across that sink's ready replicas — the same
// discipline Dispatcher.Dispatch applies for KindFixed groups, kept as a
// distinct actor because infra channels are always present, unlike the
// configurable Flexi groups.
type InfraActor struct {
	mu       sync.Mutex
	channels [infraChannelCount]*Dispatcher
	inbound  [infraChannelCount]chan RecUnit
	log      *logrus.Logger
	wg       sync.WaitGroup
}

// NewInfraActor wires one Dispatcher per fixed channel. A nil entry for a
// channel means that infra sink has zero ready replicas; Dispatch is then a
// no-op for it, per §8.
func NewInfraActor(log *logrus.Logger, bufSize int, disp [5]*Dispatcher) *InfraActor {
	a := &InfraActor{log: log}
	for i := 0; i < int(infraChannelCount); i++ {
		a.channels[i] = disp[i]
		a.inbound[i] = make(chan RecUnit, bufSize)
	}
	return a
}

// Route enqueues unit onto the named fixed channel. Never blocks the
// caller's hot path beyond the channel's buffer; a full channel applies
// natural backpressure to the submitting actor, matching the "suspension
// points include channel send" rule of §5.
func (a *InfraActor) Route(ch InfraChannel, unit RecUnit) {
	a.inbound[ch] <- unit
}

// Run starts one drain goroutine per fixed channel and blocks until all have
// exited. Each goroutine implements the two-phase drain of §4.9/§5: on
// context cancellation it stops accepting new sends implicitly (the
// producer side must itself stop, the orchestrator's responsibility), drains
// whatever remains in its channel, calls Stop on its dispatcher's replicas,
// then exits.
func (a *InfraActor) Run(ctx context.Context) {
	for i := 0; i < int(infraChannelCount); i++ {
		i := i
		a.wg.Add(1)
		go a.runChannel(ctx, InfraChannel(i))
	}
	a.wg.Wait()
}

func (a *InfraActor) runChannel(ctx context.Context, ch InfraChannel) {
	defer a.wg.Done()
	in := a.inbound[ch]
	if a.log != nil {
		a.log.WithField("infra_sink", ch.String())
	}
	for {
		select {
		case <-ctx.Done():
			a.drain(ch)
			a.stopChannel(ch)
			return
		case unit, ok := <-in:
			if !ok {
				a.drain(ch)
				a.stopChannel(ch)
				return
			}
			a.dispatch(ch, unit)
		}
	}
}

// drain processes whatever remains buffered in the channel without blocking
// further (a closed or cancelled channel is treated as Stop, per §5).
func (a *InfraActor) drain(ch InfraChannel) {
	in := a.inbound[ch]
	for {
		select {
		case unit, ok := <-in:
			if !ok {
				return
			}
			a.dispatch(ch, unit)
		default:
			return
		}
	}
}

func (a *InfraActor) dispatch(ch InfraChannel, unit RecUnit) {
	a.mu.Lock()
	d := a.channels[ch]
	a.mu.Unlock()
	if d == nil {
		return
	}
	if err := d.Dispatch(unit); err != nil && a.log != nil {
		a.log.WithError(err).WithField("infra_sink", ch.String()).Warn("infra sink dispatch failed")
	}
}

func (a *InfraActor) stopChannel(ch InfraChannel) {
	a.mu.Lock()
	d := a.channels[ch]
	a.mu.Unlock()
	if d == nil {
		return
	}
	if a.log != nil {
		a.log.WithField("infra_sink", ch.String()).Info("entering draining")
	}
	for _, r := range d.Replicas {
		_ = r.Runtime.Stop()
	}
}

// RecordResidue wraps a record with no output fields for the residue sink
// (§7, transform produced no fields).
func RecordResidue(id uint64, meta ProcMeta, rec *value.Record) RecUnit {
	return RecUnit{ID: id, Meta: meta, Data: rec}
}
