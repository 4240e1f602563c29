package oml

import (
	"math"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/wp-labs/wp-motor/internal/value"
)

// CondKind discriminates a MatchCond's comparison family.
type CondKind uint8

const (
	CondEq CondKind = iota
	CondNeq
	CondIn
	CondFun
)

// MatchCond is one condition within a match arm's tuple. Eq/Neq compare
// against an evaluator (usually a ConstExpr or a resolved SymbolExpr — the
// "arc-shared" variant from §3.5); In holds a closed [Lo, Hi] range; Fun
// invokes a named predicate (starts_with, ends_with, contains, regex_match,
// is_empty, iequals, gt, lt, eq, in_range).
type MatchCond struct {
	Kind    CondKind
	Val     Evaluator
	Lo, Hi  Evaluator
	FunName string
	FunArg  string
}

// Holds evaluates the condition against a match source value v.
func (c MatchCond) Holds(v value.Value, ctx *EvalContext) bool {
	switch c.Kind {
	case CondEq:
		cv, ok := c.Val.Eval(ctx)
		if !ok {
			return false
		}
		eq, wellTyped := value.Compare(v, cv, value.Eq)
		if !wellTyped {
			ctx.warn("match condition: type mismatch")
			return false
		}
		return eq
	case CondNeq:
		cv, ok := c.Val.Eval(ctx)
		if !ok {
			return false
		}
		ne, wellTyped := value.Compare(v, cv, value.Ne)
		if !wellTyped {
			ctx.warn("match condition: type mismatch")
			return false
		}
		return ne
	case CondIn:
		lo, ok1 := c.Lo.Eval(ctx)
		hi, ok2 := c.Hi.Eval(ctx)
		if !ok1 || !ok2 {
			return false
		}
		inRange, wellTyped := value.InRange(v, lo, hi)
		if !wellTyped {
			ctx.warn("match condition: type mismatch")
			return false
		}
		return inRange
	case CondFun:
		return evalMatchFun(c.FunName, c.FunArg, v, ctx)
	default:
		return false
	}
}

// evalMatchFun implements the numeric/string match-function semantics of
// §4.3.3 exactly: gt/lt/eq coerce both sides to f64 (eq uses a 1e-10
// epsilon, so the boundary at exactly 1e-10 does not match); in_range is
// closed; starts_with/ends_with/contains/iequals act on Chars only and
// never match otherwise; regex_match on an invalid pattern never matches
// and emits a warning rather than aborting.
func evalMatchFun(name, arg string, v value.Value, ctx *EvalContext) bool {
	switch name {
	case "starts_with":
		return v.Kind == value.Chars && strings.HasPrefix(v.Str(), arg)
	case "ends_with":
		return v.Kind == value.Chars && strings.HasSuffix(v.Str(), arg)
	case "contains":
		return v.Kind == value.Chars && strings.Contains(v.Str(), arg)
	case "iequals":
		return v.Kind == value.Chars && strings.EqualFold(v.Str(), arg)
	case "is_empty":
		return v.Kind == value.Chars && v.Str() == ""
	case "gt", "lt", "eq":
		vf, ok := v.AsFloat64()
		if !ok {
			return false
		}
		xf, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return false
		}
		switch name {
		case "gt":
			return vf > xf
		case "lt":
			return vf < xf
		default: // eq
			return math.Abs(vf-xf) < 1e-10
		}
	case "in_range":
		parts := strings.SplitN(arg, ",", 2)
		if len(parts) != 2 {
			return false
		}
		lo, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		hi, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		vf, ok := v.AsFloat64()
		if err1 != nil || err2 != nil || !ok {
			return false
		}
		return vf >= lo && vf <= hi
	case "regex_match":
		re, err := regexp.Compile(arg)
		if err != nil {
			ctx.warn("match function regex_match: invalid pattern " + arg)
			return false
		}
		return v.Kind == value.Chars && re.MatchString(v.Str())
	default:
		ctx.warn("match function: unknown function " + name)
		return false
	}
}

// globMatch matches name against a glob pattern, supporting both plain
// path.Match wildcards and an implicit trailing "/*" suffix match used for
// WPL/OML field-path collection (parent/child wildcarding).
func globMatch(glob, name string) bool {
	if glob == name {
		return true
	}
	if ok, err := path.Match(glob, name); err == nil && ok {
		return true
	}
	if strings.HasSuffix(glob, "/*") {
		prefix := strings.TrimSuffix(glob, "*")
		return strings.HasPrefix(name, prefix)
	}
	return false
}
