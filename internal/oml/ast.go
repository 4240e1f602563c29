// Package oml implements the OML rewrite DSL: model parsing, the
// PreciseEvaluator expression AST, match-condition semantics, static-symbol
// interning, and record-to-record evaluation.
package oml

import (
	"github.com/wp-labs/wp-motor/internal/value"
)

// EvalContext is threaded through every Evaluator.Eval call: the input
// record being rewritten and a sink for programmer-error warnings (§7
// "programmer errors... logged as warnings in runtime paths").
type EvalContext struct {
	Rec  *value.Record
	Warn func(string)
	// Forward re-injects a payload as a new source event through a
	// registered channel source (§6.1), backing the `vec_to_src`/
	// `split_to_src` pipe functions. Nil in contexts with no source
	// registry wired (e.g. unit tests exercising pure rewrite logic).
	Forward func(channel string, payload []byte) error
}

func (c *EvalContext) warn(msg string) {
	if c.Warn != nil {
		c.Warn(msg)
	}
}

// Evaluator is one PreciseEvaluator AST node. Eval returns ok == false when
// the expression produced no value (unresolved accessor, failed pipe step,
// non-matching Match with no default arm) — the caller leaves the target
// field unset in that case (§4.3.2).
type Evaluator interface {
	Eval(ctx *EvalContext) (value.Value, bool)
}

// ConstExpr is the `Obj(DataField literal)` variant: a constant field
// value, inlined at parse time.
type ConstExpr struct{ Val value.Value }

func (e ConstExpr) Eval(ctx *EvalContext) (value.Value, bool) { return e.Val, true }

// SymbolExpr is a reference to a static-block constant, already rewritten
// to its arc-shared pointer at parse time (§3.5, §9 "shared immutable
// data"). Eval returns the constant tagged with its origin pointer so
// downstream identity checks (§8 invariant 3) can verify zero-copy sharing.
type SymbolExpr struct {
	Name string
	Ptr  *value.Value
}

func (e SymbolExpr) Eval(ctx *EvalContext) (value.Value, bool) {
	return (*e.Ptr).WithOrigin(e.Ptr), true
}

// UnresolvedSymbolExpr is what an AST built without going through the
// parser's rewrite pass looks like: a name that was never resolved against
// a static block. The parser itself rejects these at compile time; at
// execution time (only reachable via programmatically-built ASTs) it is a
// logged warning and a non-match, never a panic (§3.5, §4.3.2).
type UnresolvedSymbolExpr struct{ Name string }

func (e UnresolvedSymbolExpr) Eval(ctx *EvalContext) (value.Value, bool) {
	ctx.warn("unresolved static symbol at execution time: " + e.Name)
	return value.Value{}, false
}

// AccessorExpr is the `Tdc(DirectAccessor)` variant: `take(name)`/
// `read(name)` with an optional ordered fallback list.
type AccessorExpr struct {
	Primary    string
	Fallbacks  []string
	Wildcard   bool
	WildcardOf string // glob pattern when Wildcard is set; first match wins
}

func (e AccessorExpr) Eval(ctx *EvalContext) (value.Value, bool) {
	if e.Wildcard {
		for i := 0; i < ctx.Rec.Len(); i++ {
			f := ctx.Rec.At(i)
			if globMatch(e.WildcardOf, f.Name) {
				return f.Val, true
			}
		}
		return value.Value{}, false
	}
	f := ctx.Rec.FindWithFallback(e.Primary, e.Fallbacks...)
	if f == nil {
		return value.Value{}, false
	}
	return f.Val, true
}

// CollectExpr is the `Collect(spec)` variant: gather every field whose name
// matches any of Globs into an Array, in record order.
type CollectExpr struct{ Globs []string }

func (e CollectExpr) Eval(ctx *EvalContext) (value.Value, bool) {
	var items []value.Field
	for i := 0; i < ctx.Rec.Len(); i++ {
		f := ctx.Rec.At(i)
		for _, g := range e.Globs {
			if globMatch(g, f.Name) {
				items = append(items, *f)
				break
			}
		}
	}
	return value.NewArray(items), true
}

// PipeExpr is the `Pipe(PiPeOperation)` variant: an initial accessor
// followed by an ordered chain of PipeFuns.
type PipeExpr struct {
	Start Evaluator
	Fns   []PipeStep
}

// PipeStep is one named pipe function plus its literal arguments.
type PipeStep struct {
	Fn   PipeFun
	Args []string
}

func (e PipeExpr) Eval(ctx *EvalContext) (value.Value, bool) {
	cur, ok := e.Start.Eval(ctx)
	if !ok {
		return value.Value{}, false
	}
	for _, step := range e.Fns {
		cur, ok = step.Fn(cur, step.Args, ctx)
		if !ok {
			// A pipe producing no value (skip_empty, unresolved get) stops
			// the chain and leaves the target unset — not an error.
			return value.Value{}, false
		}
	}
	return cur, true
}

// MatchExpr is the `Match(MatchOperation)` variant: a tagged switch over a
// 1-4 tuple of source accessors.
type MatchExpr struct {
	Sources []Evaluator
	Arms    []MatchArm
}

// MatchArm is one arm of a match: an arity-matched tuple of MatchConds (or
// Default == true for the wildcard `_` arm) and a result expression.
type MatchArm struct {
	Conds   []MatchCond
	Default bool
	Result  Evaluator
}

func (e MatchExpr) Eval(ctx *EvalContext) (value.Value, bool) {
	srcVals := make([]value.Value, len(e.Sources))
	for i, s := range e.Sources {
		v, ok := s.Eval(ctx)
		if !ok {
			v = value.NewIgnore()
		}
		srcVals[i] = v
	}
	for _, arm := range e.Arms {
		if arm.Default {
			return arm.Result.Eval(ctx)
		}
		if len(arm.Conds) != len(srcVals) {
			ctx.warn("match arm arity does not match source tuple arity")
			continue
		}
		allHold := true
		for i, c := range arm.Conds {
			if !c.Holds(srcVals[i], ctx) {
				allHold = false
				break
			}
		}
		if allHold {
			return arm.Result.Eval(ctx)
		}
	}
	return value.Value{}, false
}
