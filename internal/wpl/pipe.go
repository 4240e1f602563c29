package wpl

import (
	"encoding/base64"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/wp-labs/wp-motor/internal/value"
)

// PipeState carries the "current field" a chain of WplFun operates on.
// Selectors change the selection; predicate pipes fail the rule (Ok==false)
// without mutating it; transform pipes mutate Val in place.
type PipeState struct {
	Field value.Field
	Ok    bool
}

// PipeFunc is one step of a WplFun chain.
type PipeFunc func(*PipeState)

// Take selects a named field from a candidate set as the new current field
// (the `take(name)` selector).
func Take(candidates []value.Field, name string) PipeFunc {
	return func(s *PipeState) {
		for _, f := range candidates {
			if f.Name == name {
				s.Field = f
				s.Ok = true
				return
			}
		}
		s.Ok = false
	}
}

// SelectLast selects the last field of candidates (the `last()` selector).
func SelectLast(candidates []value.Field) PipeFunc {
	return func(s *PipeState) {
		if len(candidates) == 0 {
			s.Ok = false
			return
		}
		s.Field = candidates[len(candidates)-1]
		s.Ok = true
	}
}

// CharsHas is a predicate pipe: fails the rule unless the current chars
// field contains substr.
func CharsHas(substr string) PipeFunc {
	return func(s *PipeState) {
		if !s.Ok || s.Field.Val.Kind != value.Chars {
			s.Ok = false
			return
		}
		s.Ok = strings.Contains(s.Field.Val.Str(), substr)
	}
}

// CharsNotHas is CharsHas negated.
func CharsNotHas(substr string) PipeFunc {
	inner := CharsHas(substr)
	return func(s *PipeState) {
		wasOk := s.Ok
		inner(s)
		matched := s.Ok
		s.Ok = wasOk && !matched
	}
}

// DigitIn is a predicate pipe: fails unless the current digit field falls
// within [lo, hi] (closed range).
func DigitIn(lo, hi int64) PipeFunc {
	return func(s *PipeState) {
		if !s.Ok || s.Field.Val.Kind != value.Digit {
			s.Ok = false
			return
		}
		v := s.Field.Val.Int()
		s.Ok = v >= lo && v <= hi
	}
}

// RegexMatch is a predicate pipe. An invalid pattern never matches and is
// reported through the warn callback each time the pipe runs, per §4.2.2.
func RegexMatch(pattern string, warn func(string)) PipeFunc {
	re, err := regexp.Compile(pattern)
	return func(s *PipeState) {
		if err != nil {
			if warn != nil {
				warn("invalid regex pattern: " + pattern)
			}
			s.Ok = false
			return
		}
		if !s.Ok || s.Field.Val.Kind != value.Chars {
			s.Ok = false
			return
		}
		s.Ok = re.MatchString(s.Field.Val.Str())
	}
}

// JSONUnescape transforms the current chars field in place: if it contains
// a backslash, parse it via JSON string-literal rules; otherwise it is a
// no-op (§4.2.2).
func JSONUnescape() PipeFunc {
	return func(s *PipeState) {
		if !s.Ok || s.Field.Val.Kind != value.Chars {
			return
		}
		raw := s.Field.Val.Str()
		if !strings.ContainsRune(raw, '\\') {
			return
		}
		var out string
		if err := json.Unmarshal([]byte(`"`+raw+`"`), &out); err != nil {
			s.Ok = false
			return
		}
		s.Field.Val = value.NewChars(out)
	}
}

// Base64Decode decodes the current chars field as standard base64, then
// validates the result is UTF-8. Failure aborts the rule.
func Base64Decode() PipeFunc {
	return func(s *PipeState) {
		if !s.Ok || s.Field.Val.Kind != value.Chars {
			s.Ok = false
			return
		}
		decoded, err := base64.StdEncoding.DecodeString(s.Field.Val.Str())
		if err != nil || !isValidUTF8(decoded) {
			s.Ok = false
			return
		}
		s.Field.Val = value.NewChars(string(decoded))
	}
}

func isValidUTF8(b []byte) bool {
	return strings.ToValidUTF8(string(b), "�") == string(b)
}

// CharsReplace is a literal substring replace transform.
func CharsReplace(pattern, repl string) PipeFunc {
	return func(s *PipeState) {
		if !s.Ok || s.Field.Val.Kind != value.Chars {
			return
		}
		s.Field.Val = value.NewChars(strings.ReplaceAll(s.Field.Val.Str(), pattern, repl))
	}
}

// FieldProcessorLookup resolves a registered field processor by category
// and name (§6.1's FiledExtendType registry).
type FieldProcessorLookup func(category, name string) (FieldProcessor, bool)

// FieldProcessor is the pluggable hook `vec_to_src`/`split_to_src`/
// `ext_pass` invoke to re-route a field's payload (e.g. into an in-process
// channel source for recursive transforms).
type FieldProcessor interface {
	Process(payload []byte) error
}

// ExtPass invokes a registered field processor by name under category
// "ext"; on success the field is marked Ignore, on failure the rule aborts.
func ExtPass(lookup FieldProcessorLookup, name string) PipeFunc {
	return func(s *PipeState) {
		if !s.Ok {
			return
		}
		proc, ok := lookup("ext", name)
		if !ok {
			s.Ok = false
			return
		}
		payload := []byte(value.FormatValue(s.Field.Val))
		if err := proc.Process(payload); err != nil {
			s.Ok = false
			return
		}
		s.Field.Val = value.NewIgnore()
	}
}

// VecToSrc and SplitToSrc both re-inject generated payloads through the
// channel/field-processor registry described in §6.1.
func VecToSrc(lookup FieldProcessorLookup, channelName string) PipeFunc {
	return ExtPass(lookup, channelName)
}

func SplitToSrc(lookup FieldProcessorLookup, channelName, sep string) PipeFunc {
	return func(s *PipeState) {
		if !s.Ok || s.Field.Val.Kind != value.Chars {
			s.Ok = false
			return
		}
		proc, ok := lookup("mem_channel", channelName)
		if !ok {
			s.Ok = false
			return
		}
		for _, part := range strings.Split(s.Field.Val.Str(), sep) {
			if err := proc.Process([]byte(part)); err != nil {
				s.Ok = false
				return
			}
		}
		s.Field.Val = value.NewIgnore()
	}
}

// RunChain applies a pipe chain in order, short-circuiting on the first
// failed predicate (mirrors the "predicate pipes fail the rule" contract
// of §4.2.2).
func RunChain(start value.Field, chain []PipeFunc) (value.Field, bool) {
	s := &PipeState{Field: start, Ok: true}
	for _, fn := range chain {
		if !s.Ok {
			return s.Field, false
		}
		fn(s)
	}
	return s.Field, s.Ok
}
