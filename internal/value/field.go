package value

import "strings"

// Field pairs a path-like name with its DataType tag and Value. The tag
// matches the Value's Kind except that Ignore may coexist with any
// declared discriminator (a field can be "logically absent" while still
// remembering what type it would have been).
type Field struct {
	Name string
	Type Kind
	Val  Value
}

// NewField builds a Field, defaulting Type to the value's own Kind.
func NewField(name string, v Value) Field {
	return Field{Name: name, Type: v.Kind, Val: v}
}

// Clone deep-copies a Field.
func (f Field) Clone() Field {
	return Field{Name: f.Name, Type: f.Type, Val: f.Val.Clone()}
}

// WithPathPrefix returns a copy of f renamed under prefix, recursing into
// Array/Obj sub-fields so every nested name is re-composed
// (parent/child, parent/[index]) for round-tripping through formatters.
func (f Field) WithPathPrefix(prefix string) Field {
	out := f
	out.Name = joinPath(prefix, f.Name)
	switch f.Val.Kind {
	case Array:
		items := make([]Field, len(f.Val.array))
		for i, sub := range f.Val.array {
			items[i] = sub.withIndexPrefix(out.Name, i)
		}
		out.Val = Value{Kind: Array, array: items}
	case Obj:
		fields := make([]Field, len(f.Val.obj))
		for i, sub := range f.Val.obj {
			fields[i] = sub.WithPathPrefix(out.Name)
		}
		out.Val = Value{Kind: Obj, obj: fields}
	}
	return out
}

func (f Field) withIndexPrefix(parent string, idx int) Field {
	out := f
	out.Name = joinIndex(parent, idx)
	return out
}

func joinPath(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "/" + child
}

func joinIndex(parent string, idx int) string {
	return parent + "/[" + itoa(idx) + "]"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// BaseName returns the last path segment of a composed field name, i.e.
// strips every "parent/" prefix.
func BaseName(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}
