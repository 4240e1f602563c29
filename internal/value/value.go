// Package value implements the engine's event value model: the tagged-union
// Value type, the Field/Record containers built from it, and the operations
// (construct, coerce, compare, format, clone) every other package in the
// pipeline builds on.
package value

import (
	"net"
	"time"
)

// Kind discriminates the variant held by a Value. It doubles as the
// DataType tag carried alongside a Field's name.
type Kind uint8

const (
	// Ignore marks a field logically absent; the name is preserved but no
	// payload survives to the sink formatters.
	Ignore Kind = iota
	Chars
	Digit
	Float
	Bool
	IPAddr
	Time
	Array
	Obj
)

func (k Kind) String() string {
	switch k {
	case Ignore:
		return "ignore"
	case Chars:
		return "chars"
	case Digit:
		return "digit"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case IPAddr:
		return "ip"
	case Time:
		return "time"
	case Array:
		return "array"
	case Obj:
		return "obj"
	default:
		return "unknown"
	}
}

// Value is a tagged union over the variants the engine understands. Only the
// field matching Kind is meaningful; the others are left at their zero
// value. A single struct (rather than an interface) keeps Values cheap to
// copy and avoids a heap escape on every scalar field.
type Value struct {
	Kind Kind

	chars string
	digit int64
	float float64
	bool_ bool
	ip    net.IP
	time  time.Time
	tz    *time.Location

	array []Field
	obj   []Field

	// origin, when non-nil, points at the canonical *Value this Value was
	// copied from untouched (set by OML static-symbol references). It lets
	// a test harness verify zero-copy identity (§8 invariant 3) by pointer
	// comparison instead of deep equality, without requiring every Field
	// slot in a Record to be Cell-shared.
	origin *Value
}

// NewIgnore returns the Ignore sentinel value.
func NewIgnore() Value { return Value{Kind: Ignore} }

// NewChars constructs a Chars value.
func NewChars(s string) Value { return Value{Kind: Chars, chars: s} }

// NewDigit constructs a Digit (int64) value.
func NewDigit(n int64) Value { return Value{Kind: Digit, digit: n} }

// NewFloat constructs a Float value.
func NewFloat(f float64) Value { return Value{Kind: Float, float: f} }

// NewBool constructs a Bool value.
func NewBool(b bool) Value { return Value{Kind: Bool, bool_: b} }

// NewIPAddr constructs an IPAddr value. Accepts both v4 and v6.
func NewIPAddr(ip net.IP) Value { return Value{Kind: IPAddr, ip: ip} }

// NewTime constructs a Time value; loc may be nil when no timezone was
// recorded on the source text.
func NewTime(t time.Time, loc *time.Location) Value {
	return Value{Kind: Time, time: t, tz: loc}
}

// NewArray constructs an Array value from an ordered sequence of fields.
func NewArray(fields []Field) Value { return Value{Kind: Array, array: fields} }

// NewObj constructs an Obj value from an ordered name->Field mapping.
// Insertion order is significant for formatters and is preserved verbatim.
func NewObj(fields []Field) Value { return Value{Kind: Obj, obj: fields} }

func (v Value) Str() string          { return v.chars }
func (v Value) Int() int64           { return v.digit }
func (v Value) Flt() float64         { return v.float }
func (v Value) Bln() bool            { return v.bool_ }
func (v Value) IP() net.IP           { return v.ip }
func (v Value) Tm() time.Time        { return v.time }
func (v Value) Loc() *time.Location  { return v.tz }
func (v Value) Items() []Field       { return v.array }
func (v Value) Fields() []Field      { return v.obj }

// AsFloat64 coerces Digit/Float to f64, per the numeric comparison rules in
// §4.1: equality/ordering between Digit and Float always goes through f64.
func (v Value) AsFloat64() (float64, bool) {
	switch v.Kind {
	case Digit:
		return float64(v.digit), true
	case Float:
		return v.float, true
	default:
		return 0, false
	}
}

// WithOrigin tags v as having come verbatim from the canonical pointer ptr,
// for static-symbol zero-copy identity tracking.
func (v Value) WithOrigin(ptr *Value) Value {
	v.origin = ptr
	return v
}

// Origin returns the canonical pointer this value was tagged with, or nil.
func (v Value) Origin() *Value { return v.origin }

// SameOrigin reports whether a and b were both produced untouched from the
// same canonical static-symbol Value.
func SameOrigin(a, b Value) bool {
	return a.origin != nil && a.origin == b.origin
}

// Clone deep-copies a Value, recursing into Array/Obj so the copy shares no
// backing slice with the original.
func (v Value) Clone() Value {
	out := v
	if v.array != nil {
		out.array = make([]Field, len(v.array))
		for i, f := range v.array {
			out.array[i] = f.Clone()
		}
	}
	if v.obj != nil {
		out.obj = make([]Field, len(v.obj))
		for i, f := range v.obj {
			out.obj[i] = f.Clone()
		}
	}
	if v.ip != nil {
		out.ip = append(net.IP(nil), v.ip...)
	}
	return out
}
