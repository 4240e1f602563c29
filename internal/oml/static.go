package oml

import (
	"fmt"

	"github.com/wp-labs/wp-motor/internal/value"
)

// StaticTable holds a model's `static { ... }` block: a name -> constant
// mapping whose Values are interned once at parse time and never copied
// again. Every SymbolExpr built against this table shares the identical
// *value.Value pointer, which is what makes §8 invariant 3 (zero-copy
// identity of static-symbol results) hold.
type StaticTable struct {
	order []string
	vals  map[string]*value.Value
}

// NewStaticTable builds an empty table ready for Define calls.
func NewStaticTable() *StaticTable {
	return &StaticTable{vals: make(map[string]*value.Value)}
}

// Define interns name -> v. Redefining an existing name is a compile error:
// static blocks are a flat, immutable namespace (§3.5).
func (t *StaticTable) Define(name string, v value.Value) error {
	if _, exists := t.vals[name]; exists {
		return fmt.Errorf("static symbol %q redefined", name)
	}
	cp := v
	t.vals[name] = &cp
	t.order = append(t.order, name)
	return nil
}

// Lookup returns the interned pointer for name, or nil if undefined.
func (t *StaticTable) Lookup(name string) *value.Value {
	return t.vals[name]
}

// Names returns defined symbol names in declaration order.
func (t *StaticTable) Names() []string {
	return append([]string(nil), t.order...)
}

// ResolveSymbols walks an AST built with bare UnresolvedSymbolExpr leaves
// (the parser's raw output before interning) and rewrites every one it can
// resolve against table into a SymbolExpr holding the shared pointer. It
// returns the rewritten Evaluator and adds every name that remained
// unresolved to the caller's unresolved set, so the parser can turn them
// into a single compile error naming every offender at once (§7 "compile
// errors are reported exhaustively, not fail-fast one-at-a-time" for the
// static-symbol pass specifically).
func ResolveSymbols(e Evaluator, table *StaticTable, unresolved map[string]bool) Evaluator {
	switch n := e.(type) {
	case UnresolvedSymbolExpr:
		if ptr := table.Lookup(n.Name); ptr != nil {
			return SymbolExpr{Name: n.Name, Ptr: ptr}
		}
		unresolved[n.Name] = true
		return n
	case PipeExpr:
		n.Start = ResolveSymbols(n.Start, table, unresolved)
		return n
	case MatchExpr:
		for i, s := range n.Sources {
			n.Sources[i] = ResolveSymbols(s, table, unresolved)
		}
		for ai, arm := range n.Arms {
			for ci, c := range arm.Conds {
				if c.Val != nil {
					c.Val = ResolveSymbols(c.Val, table, unresolved)
				}
				if c.Lo != nil {
					c.Lo = ResolveSymbols(c.Lo, table, unresolved)
				}
				if c.Hi != nil {
					c.Hi = ResolveSymbols(c.Hi, table, unresolved)
				}
				arm.Conds[ci] = c
			}
			arm.Result = ResolveSymbols(arm.Result, table, unresolved)
			n.Arms[ai] = arm
		}
		return n
	default:
		// ConstExpr, SymbolExpr (already resolved), AccessorExpr, CollectExpr
		// carry no nested Evaluator and need no rewrite.
		return e
	}
}
