package value

// Cell is a copy-on-write slot: it holds either an owned, mutable Field or a
// pointer to a Field shared (and immutable) across many records — the Go
// analogue of the Rust Arc<Field> used for OML static symbols. Sharing is by
// pointer, so two cells built from the same *Field are pointer-identical:
// that identity is what the OML static-symbol test harness checks (§8,
// invariant 3).
type Cell struct {
	shared *Field
	owned  *Field
}

// OwnedCell wraps a Field that this record slot owns outright.
func OwnedCell(f Field) Cell {
	cp := f
	return Cell{owned: &cp}
}

// SharedCell wraps a pre-existing *Field without copying it. Every Cell
// built from the same pointer aliases the identical Field.
func SharedCell(f *Field) Cell {
	return Cell{shared: f}
}

// Get returns the current Field without triggering a copy.
func (c *Cell) Get() *Field {
	if c.shared != nil {
		return c.shared
	}
	return c.owned
}

// IsShared reports whether this cell currently aliases a shared constant.
func (c *Cell) IsShared() bool { return c.shared != nil }

// SharedPtr returns the underlying shared pointer, or nil if this cell is
// owned. Used by tests asserting zero-copy identity.
func (c *Cell) SharedPtr() *Field { return c.shared }

// MakeMut returns a mutable *Field for this cell, cloning the shared
// constant on first write (Arc::make_mut in spirit) and leaving subsequent
// calls as no-op clones.
func (c *Cell) MakeMut() *Field {
	if c.owned != nil {
		return c.owned
	}
	cp := c.shared.Clone()
	c.owned = &cp
	c.shared = nil
	return c.owned
}

// Record is an ordered sequence of Cells. A side index (name -> position)
// is built lazily and only when a caller asks for indexed lookups, since
// most records are short enough that linear scan wins.
type Record struct {
	cells []Cell
	index map[string]int
}

// NewRecord builds a Record from owned Fields.
func NewRecord(fields ...Field) *Record {
	r := &Record{cells: make([]Cell, len(fields))}
	for i, f := range fields {
		r.cells[i] = OwnedCell(f)
	}
	return r
}

// Len returns the number of fields (including Ignore-marked ones).
func (r *Record) Len() int { return len(r.cells) }

// At returns the field at position i.
func (r *Record) At(i int) *Field { return r.cells[i].Get() }

// Cells exposes the underlying cell slice for callers that need to inspect
// sharing (e.g. the OML static-symbol test harness).
func (r *Record) Cells() []Cell { return r.cells }

// Append adds an owned field to the end of the record, invalidating any
// built side index.
func (r *Record) Append(f Field) {
	r.cells = append(r.cells, OwnedCell(f))
	r.index = nil
}

// AppendShared appends a field by shared pointer without copying.
func (r *Record) AppendShared(f *Field) {
	r.cells = append(r.cells, SharedCell(f))
	r.index = nil
}

// EnsureIndex builds (or rebuilds) the name->position side index. Call only
// when a transform declares it needs indexed access; naive lookup is O(n)
// otherwise and that is the default.
func (r *Record) EnsureIndex() {
	idx := make(map[string]int, len(r.cells))
	for i, c := range r.cells {
		idx[c.Get().Name] = i
	}
	r.index = idx
}

// Find returns the field named name, or nil if absent. Uses the side index
// when built, otherwise a linear scan.
func (r *Record) Find(name string) *Field {
	if r.index != nil {
		if i, ok := r.index[name]; ok {
			return r.cells[i].Get()
		}
		return nil
	}
	for i := range r.cells {
		if f := r.cells[i].Get(); f.Name == name {
			return f
		}
	}
	return nil
}

// FindWithFallback tries name, then each entry in fallbacks in order,
// returning the first match (used by OML's Tdc accessor fallback list).
func (r *Record) FindWithFallback(name string, fallbacks ...string) *Field {
	if f := r.Find(name); f != nil {
		return f
	}
	for _, fb := range fallbacks {
		if f := r.Find(fb); f != nil {
			return f
		}
	}
	return nil
}

// Clone deep-copies the record. Shared cells remain shared in the copy
// (the pointer is duplicated, not the Field it targets) so zero-copy
// identity survives cloning.
func (r *Record) Clone() *Record {
	out := &Record{cells: make([]Cell, len(r.cells))}
	for i, c := range r.cells {
		if c.shared != nil {
			out.cells[i] = Cell{shared: c.shared}
		} else {
			cp := c.owned.Clone()
			out.cells[i] = Cell{owned: &cp}
		}
	}
	return out
}

// DropIgnored returns a new Record with all Ignore-kind fields removed —
// applied before a sink serializes a record (temp fields coerced to Ignore
// by OML never reach the wire).
func (r *Record) DropIgnored() *Record {
	out := &Record{cells: make([]Cell, 0, len(r.cells))}
	for _, c := range r.cells {
		if c.Get().Val.Kind != Ignore {
			out.cells = append(out.cells, c)
		}
	}
	return out
}

// Fields materializes the record as a plain []Field slice, resolving every
// cell (shared cells are not copied, their Field pointer is dereferenced).
func (r *Record) Fields() []Field {
	out := make([]Field, len(r.cells))
	for i, c := range r.cells {
		out[i] = *c.Get()
	}
	return out
}
