package wpl

import (
	"fmt"

	"github.com/wp-labs/wp-motor/internal/value"
)

// Protocol names a wire-format parser a WplField's format descriptor can
// select (§4.2.3).
type Protocol uint8

const (
	ProtoNone Protocol = iota
	ProtoKvarr
	ProtoJSON
	ProtoKeyValue
	ProtoRaw
)

// FieldSpec is one declared output of a rule: a target name, its metatype,
// and (for composite formats) its sub-field declarations.
type FieldSpec struct {
	Name     string
	Type     value.Kind
	Proto    Protocol
	Subs     []KvarrFieldSpec // used when Proto == ProtoKvarr
	KVSep    string           // `sep` string of a kvarr/keyvalue clause; recorded, not used by the parsers
	PipeFns  []PipeFunc
}

// WplField is one compiled node of a rule's pattern tree: a separator
// descriptor followed by a typed/formatted extraction and pipe chain.
type WplField struct {
	Sep   *SepPattern
	Spec  FieldSpec
}

// Rule is a compiled WPL pattern: an ordered sequence of WplFields. The
// content before the first field's separator (if any) and the content
// between separators form the field values; the final field's content runs
// to end-of-line unless it has its own trailing separator.
type Rule struct {
	Name   string
	Fields []WplField
}

// Compile builds a Rule from field declarations in source order. Each decl
// pairs a raw separator pattern string (compiled via CompileSepPattern,
// empty string meaning "no separator, field runs to end of input") with its
// FieldSpec.
func Compile(name string, decls []RuleFieldDecl) (*Rule, error) {
	r := &Rule{Name: name}
	for _, d := range decls {
		var sp *SepPattern
		if d.SepRaw != "" {
			compiled, err := CompileSepPattern(d.SepRaw)
			if err != nil {
				return nil, fmt.Errorf("rule %s field %s: %w", name, d.Spec.Name, err)
			}
			sp = compiled
		}
		r.Fields = append(r.Fields, WplField{Sep: sp, Spec: d.Spec})
	}
	return r, nil
}

// RuleFieldDecl is the uncompiled form of one WplField.
type RuleFieldDecl struct {
	SepRaw string
	Spec   FieldSpec
}

// Evaluate runs the compiled rule against one input line, producing the
// declared output fields. A predicate pipe failure or an unmatched
// separator aborts the whole rule (returns ok == false) — §4.2.2, §7
// "runtime rule failure".
func (r *Rule) Evaluate(line string) (*value.Record, bool) {
	rec := value.NewRecord()
	rest := line
	for _, wf := range r.Fields {
		var content string
		if wf.Sep != nil {
			offset, m, ok := wf.Sep.Find(rest)
			if !ok {
				return nil, false
			}
			content = rest[:offset]
			rest = rest[offset+m.Consumed:]
		} else {
			content = rest
			rest = ""
		}

		fields, ok := extractField(content, wf.Spec)
		if !ok {
			return nil, false
		}
		for _, f := range fields {
			rec.Append(f)
		}
	}
	// §8 invariant 2: every field named in the rule's declared schema must
	// exist in the output record, even when extraction yielded no value —
	// fill in declared-but-absent names as Ignore so schema presence holds.
	ensureSchemaPresence(rec, r.Fields)
	return rec, true
}

func ensureSchemaPresence(rec *value.Record, fields []WplField) {
	have := map[string]bool{}
	for i := 0; i < rec.Len(); i++ {
		have[rec.At(i).Name] = true
	}
	for _, wf := range fields {
		if wf.Spec.Name != "" && !have[wf.Spec.Name] {
			rec.Append(value.NewField(wf.Spec.Name, value.NewIgnore()))
		}
	}
}

func extractField(content string, spec FieldSpec) ([]value.Field, bool) {
	var fields []value.Field
	switch spec.Proto {
	case ProtoKvarr:
		kv, err := ParseKvarr(content, spec.Subs)
		if err != nil {
			return nil, false
		}
		fields = kv
	case ProtoJSON:
		f, err := ParseJSONField(spec.Name, content)
		if err != nil {
			return nil, false
		}
		fields = []value.Field{f}
	case ProtoKeyValue:
		kv, err := ParseKeyValue(content, spec.KVSep, spec.Subs)
		if err != nil {
			return nil, false
		}
		fields = kv
	case ProtoRaw, ProtoNone:
		fv, err := value.CoerceString(content, spec.Type)
		if err != nil {
			return nil, false
		}
		fields = []value.Field{value.NewField(spec.Name, fv)}
	default:
		return nil, false
	}

	if len(spec.PipeFns) > 0 && len(fields) > 0 {
		last := fields[len(fields)-1]
		out, ok := RunChain(last, spec.PipeFns)
		if !ok {
			return nil, false
		}
		fields[len(fields)-1] = out
	}
	return fields, true
}
