package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Format names the output text format a sink backend or formatter emits.
type Format uint8

const (
	FormatJSON Format = iota
	FormatRaw
	FormatKV
	FormatShow
	FormatProtoText
	FormatCSV
)

// ParseFormat resolves a config string ("json", "csv", "show", "kv", "raw",
// "proto"/"proto-text") to a Format, per §6.2's backend `fmt` keys.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "raw":
		return FormatRaw, nil
	case "kv":
		return FormatKV, nil
	case "show":
		return FormatShow, nil
	case "proto", "proto-text":
		return FormatProtoText, nil
	case "csv":
		return FormatCSV, nil
	default:
		return 0, fmt.Errorf("unknown output format %q", s)
	}
}

// RenderLine serializes one record's live (non-Ignore) fields to a single
// text line in the requested format, without a trailing newline.
func RenderLine(r *Record, f Format) string {
	fields := r.DropIgnored().Fields()
	switch f {
	case FormatJSON:
		return renderJSON(fields)
	case FormatKV:
		return renderKV(fields)
	case FormatShow:
		return renderShow(fields)
	case FormatCSV:
		return renderCSV(fields)
	case FormatProtoText:
		return renderProtoText(fields)
	case FormatRaw:
		return renderRaw(fields)
	default:
		return renderJSON(fields)
	}
}

func renderJSON(fields []Field) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(f.Name))
		b.WriteByte(':')
		writeJSONValue(&b, f.Val)
	}
	b.WriteByte('}')
	return b.String()
}

func writeJSONValue(b *strings.Builder, v Value) {
	switch v.Kind {
	case Chars:
		b.WriteString(strconv.Quote(v.chars))
	case Digit:
		b.WriteString(strconv.FormatInt(v.digit, 10))
	case Float:
		b.WriteString(strconv.FormatFloat(v.float, 'g', -1, 64))
	case Bool:
		b.WriteString(strconv.FormatBool(v.bool_))
	case IPAddr:
		b.WriteString(strconv.Quote(v.ip.String()))
	case Time:
		b.WriteString(strconv.Quote(FormatValue(v)))
	case Array:
		b.WriteByte('[')
		for i, sub := range v.array {
			if i > 0 {
				b.WriteByte(',')
			}
			writeJSONValue(b, sub.Val)
		}
		b.WriteByte(']')
	case Obj:
		b.WriteByte('{')
		for i, sub := range v.obj {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(BaseName(sub.Name)))
			b.WriteByte(':')
			writeJSONValue(b, sub.Val)
		}
		b.WriteByte('}')
	default:
		b.WriteString("null")
	}
}

func renderKV(fields []Field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Name+"="+kvScalar(f.Val))
	}
	return strings.Join(parts, " ")
}

func kvScalar(v Value) string {
	s := FormatValue(v)
	if v.Kind == Chars && strings.ContainsAny(s, " \t\"") {
		return strconv.Quote(s)
	}
	return s
}

func renderShow(fields []Field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s(%s)=%s", f.Name, f.Type, FormatValue(f.Val)))
	}
	return strings.Join(parts, ", ")
}

func renderCSV(fields []Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		s := FormatValue(f.Val)
		if strings.ContainsAny(s, ",\"\n") {
			s = `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
		}
		parts[i] = s
	}
	return strings.Join(parts, ",")
}

func renderProtoText(fields []Field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		name := strings.ReplaceAll(f.Name, "/", "_")
		parts = append(parts, fmt.Sprintf("%s: %s", name, protoScalar(f.Val)))
	}
	return strings.Join(parts, " ")
}

func protoScalar(v Value) string {
	if v.Kind == Chars || v.Kind == IPAddr || v.Kind == Time {
		return strconv.Quote(FormatValue(v))
	}
	return FormatValue(v)
}

func renderRaw(fields []Field) string {
	if len(fields) == 0 {
		return ""
	}
	// raw format writes the first chars-typed field verbatim; this mirrors
	// a "pass the message through untouched" sink use case.
	for _, f := range fields {
		if f.Val.Kind == Chars {
			return f.Val.chars
		}
	}
	return FormatValue(fields[0].Val)
}
