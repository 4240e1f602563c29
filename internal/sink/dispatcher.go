package sink

import (
	"hash/fnv"

	"github.com/wp-labs/wp-motor/internal/value"
)

// ProcMeta identifies the rule/model that produced a SinkRecUnit, used for
// routing decisions (§3.3).
type ProcMeta struct {
	Rule string
	OML  string
}

// RecUnit carries one transformed record to the sink layer (§3.3
// `SinkRecUnit`).
type RecUnit struct {
	ID   uint64
	Meta ProcMeta
	Data *value.Record
}

// Package is an ordered batch of units (§3.3 `SinkPackage`). The dispatcher
// preserves intra-package order only per destination replica.
type Package []RecUnit

// GroupKind distinguishes the two SinkGroup routing disciplines of §3.6.
type GroupKind int

const (
	// KindFlexi groups route by rule/oml glob match and broadcast to every
	// distinct ready sink name whose filter accepts the record, one replica
	// per name.
	KindFlexi GroupKind = iota
	// KindFixed groups are the built-in infra sinks: a record with a single
	// destination hint lands on exactly one replica via consistent hash.
	KindFixed
)

// Replica is one SinkRuntime plus the per-sink filter deciding whether it
// accepts a given record (§3.6 per-sink `filter`).
type Replica struct {
	Name    string
	Runtime *Runtime
	Filter  Filter
	Ready   bool
}

// Dispatcher groups one or more Runtime replicas under one group
// configuration (§4.5.3).
type Dispatcher struct {
	Name     string
	Kind     GroupKind
	Filter   Filter // group-level filter, applied before per-sink filters
	Replicas []*Replica
}

// NewDispatcher builds a Dispatcher over replicas sharing name and kind.
func NewDispatcher(name string, kind GroupKind, filter Filter, replicas []*Replica) *Dispatcher {
	return &Dispatcher{Name: name, Kind: kind, Filter: filter, Replicas: replicas}
}

func (d *Dispatcher) readyReplicas() []*Replica {
	out := make([]*Replica, 0, len(d.Replicas))
	for _, r := range d.Replicas {
		if r.Ready {
			out = append(out, r)
		}
	}
	return out
}

// replicasByName groups ready replicas by sink name, preserving first-seen order.
// A `parallel`-configured sink (§3.6/§6.5) contributes more than one
// Replica under the same name; §5 requires a given event id to always land
// on the same replica within that group, so grouping by name lets Dispatch
// consistent-hash within it instead of broadcasting to every copy.
func replicasByName(ready []*Replica) ([]string, map[string][]*Replica) {
	order := make([]string, 0, len(ready))
	groups := make(map[string][]*Replica, len(ready))
	for _, r := range ready {
		if _, ok := groups[r.Name]; !ok {
			order = append(order, r.Name)
		}
		groups[r.Name] = append(groups[r.Name], r)
	}
	return order, groups
}

// hashID consistent-hashes an event id to an index in [0, n).
func hashID(id uint64, n int) int {
	if n <= 0 {
		return -1
	}
	h := fnv.New64a()
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(id >> (8 * i))
	}
	h.Write(buf[:])
	return int(h.Sum64() % uint64(n))
}

// Dispatch routes a single unit per §4.5.3. Fixed/infra groups send to
// exactly one replica chosen by a consistent hash of the event id; Flexi
// groups broadcast to every distinct sink name whose filter accepts the
// record, sending to one of that name's replicas chosen by the same hash.
// Zero ready replicas is a silent no-op (§8: "dispatch calls are no-ops, not
// errors").
func (d *Dispatcher) Dispatch(unit RecUnit) error {
	ready := d.readyReplicas()
	if len(ready) == 0 {
		return nil
	}
	if d.Filter != nil && !d.Filter(unit.Data) {
		return nil
	}

	if d.Kind == KindFixed {
		idx := hashID(unit.ID, len(ready))
		repl := ready[idx]
		return repl.Runtime.SendPackageToSink([]*value.Record{unit.Data})
	}

	// Flexi: broadcast to every distinct sink name whose filter accepts,
	// picking exactly one of that name's (possibly `parallel`-many)
	// replicas via consistent hash of the event id.
	order, groups := replicasByName(ready)
	var accepting [][]*Replica
	for _, name := range order {
		set := groups[name]
		if set[0].Filter == nil || set[0].Filter(unit.Data) {
			accepting = append(accepting, set)
		}
	}
	if len(accepting) == 0 {
		return nil
	}
	if len(accepting) == 1 && len(accepting[0]) == 1 {
		// Fast path: avoid cloning when exactly one single-replica sink
		// accepts the record.
		return accepting[0][0].Runtime.SendPackageToSink([]*value.Record{unit.Data})
	}
	for _, set := range accepting {
		repl := set[hashID(unit.ID, len(set))]
		clone := unit.Data.Clone()
		if err := repl.Runtime.SendPackageToSink([]*value.Record{clone}); err != nil {
			return err
		}
	}
	return nil
}

// DispatchPackage routes a whole package, grouping units by destination
// replica before flushing so each replica receives one batch and the
// backend's `*_batch` APIs amortize syscalls (§4.5.3 "Batch path").
func (d *Dispatcher) DispatchPackage(pkg Package) error {
	ready := d.readyReplicas()
	if len(ready) == 0 {
		return nil
	}

	if d.Kind == KindFixed {
		buckets := make(map[int][]*value.Record)
		order := make([]int, 0, len(ready))
		seen := make(map[int]bool)
		for _, unit := range pkg {
			if d.Filter != nil && !d.Filter(unit.Data) {
				continue
			}
			idx := hashID(unit.ID, len(ready))
			buckets[idx] = append(buckets[idx], unit.Data)
			if !seen[idx] {
				seen[idx] = true
				order = append(order, idx)
			}
		}
		for _, idx := range order {
			if err := ready[idx].Runtime.SendPackageToSink(buckets[idx]); err != nil {
				return err
			}
		}
		return nil
	}

	for _, unit := range pkg {
		if err := d.Dispatch(unit); err != nil {
			return err
		}
	}
	return nil
}

// BroadcastRaw sends a raw rendered line to every ready replica, cloning the
// string is unnecessary (strings are immutable) but the fan-out itself
// mirrors the record broadcast path (§4.5.3 "Raw string broadcasts").
func (d *Dispatcher) BroadcastRaw(line string) error {
	ready := d.readyReplicas()
	for _, r := range ready {
		if err := r.Runtime.Backend().SinkStr(line); err != nil {
			return err
		}
	}
	return nil
}
