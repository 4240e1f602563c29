package oml

import (
	"strings"

	"github.com/wp-labs/wp-motor/internal/value"
)

// ObjModel is a parsed, ready-to-run rewrite model plus the warning sink its
// evaluations should report through.
type ObjModel struct {
	Model *Model
	Warn  func(string)
	// Forward, when set, backs the `vec_to_src`/`split_to_src` pipe
	// functions (§6.1 recursive transforms).
	Forward func(channel string, payload []byte) error
}

// NewObjModel wraps a parsed Model for evaluation.
func NewObjModel(m *Model, warn func(string)) *ObjModel {
	return &ObjModel{Model: m, Warn: warn}
}

// EvalExp evaluates every target assignment against in, building a fresh
// output record in declaration order. Assignments whose expression produces
// no value (AccessorExpr miss, failed pipe, non-matching Match with no
// default) leave that target absent from the output rather than writing an
// Ignore placeholder — the target simply never existed this round (§4.3.2).
//
// Targets named with a leading "__" are scratch fields: they are visible to
// later assignments in the same model (so one target's result can feed
// another's accessor) but are coerced to Ignore before the record is
// returned, so they never reach a sink formatter.
func (m *ObjModel) EvalExp(in *value.Record) *value.Record {
	out := value.NewRecord()
	ctx := &EvalContext{Rec: in, Warn: m.Warn, Forward: m.Forward}
	for _, a := range m.Model.Targets {
		v, ok := a.Expr.Eval(ctx)
		if !ok {
			continue
		}
		out.Append(value.NewField(a.Target, v))
		// Later assignments may reference earlier outputs by name, so fold
		// the growing output into the evaluation context's visible record.
		ctx.Rec = mergeRecords(in, out)
	}
	return stripScratchFields(out)
}

// EvalBatch runs EvalExp over every record in ins, in order.
func (m *ObjModel) EvalBatch(ins []*value.Record) []*value.Record {
	outs := make([]*value.Record, len(ins))
	for i, in := range ins {
		outs[i] = m.EvalExp(in)
	}
	return outs
}

// mergeRecords builds a lookup record that favors fields already produced in
// this evaluation pass (out) over the original input (in), so assignments
// can chain off each other's results without a second full model pass.
func mergeRecords(in, out *value.Record) *value.Record {
	merged := value.NewRecord()
	seen := make(map[string]bool, out.Len())
	for i := 0; i < out.Len(); i++ {
		f := out.At(i)
		merged.Append(*f)
		seen[f.Name] = true
	}
	for i := 0; i < in.Len(); i++ {
		f := in.At(i)
		if !seen[f.Name] {
			merged.Append(*f)
		}
	}
	return merged
}

// stripScratchFields coerces every "__"-prefixed field to Ignore in place,
// preserving its position and declared type but discarding its payload.
func stripScratchFields(r *value.Record) *value.Record {
	out := value.NewRecord()
	for i := 0; i < r.Len(); i++ {
		f := *r.At(i)
		if strings.HasPrefix(value.BaseName(f.Name), "__") {
			f.Val = value.NewIgnore()
		}
		out.Append(f)
	}
	return out
}
