package wpl

import (
	"fmt"
	"strings"

	"github.com/wp-labs/wp-motor/internal/value"
)

// KvarrFieldSpec declares a subfield kvarr should extract: its key and an
// optional declared type (overriding inference). It carries no sub-path;
// extracted fields are named by their key alone.
type KvarrFieldSpec struct {
	Key      string
	Declared value.Kind
	HasType  bool
}

// ParseKvarr parses `key=value`/`key:value` pairs from line, separated by
// whitespace or ','; the separator set is fixed and not configurable
// (FieldSpec.KVSep is not consulted). Values may be bare tokens, single- or
// double-quoted strings (with backslash escapes), or bracketed arrays
// `[...]`. Declared types in specs override type inference; duplicate keys
// are renamed key[0], key[1], ... Fields not named in specs are dropped
// (the WPL rule schema is exhaustive by declaration, §8 invariant 2).
func ParseKvarr(line string, specs []KvarrFieldSpec) ([]value.Field, error) {
	declared := make(map[string]KvarrFieldSpec, len(specs))
	order := make([]string, 0, len(specs))
	for _, s := range specs {
		declared[s.Key] = s
		order = append(order, s.Key)
	}

	pairs, err := tokenizeKvarr(line)
	if err != nil {
		return nil, err
	}

	seen := map[string]int{}
	byKey := map[string][]value.Field{}
	for _, p := range pairs {
		spec, wantIt := declared[p.key]
		if !wantIt {
			continue
		}
		var fv value.Value
		if spec.HasType {
			fv, err = value.CoerceString(p.val, spec.Declared)
			if err != nil {
				return nil, fmt.Errorf("kvarr field %q: %w", p.key, err)
			}
		} else {
			fv = value.InferScalar(p.val)
		}
		name := p.key
		if idx, dup := seen[p.key]; dup {
			name = fmt.Sprintf("%s[%d]", p.key, idx)
			if idx == 1 {
				byKey[p.key][0].Name = p.key + "[0]"
			}
		}
		seen[p.key]++
		byKey[p.key] = append(byKey[p.key], value.NewField(name, fv))
	}

	out := make([]value.Field, 0, len(pairs))
	for _, key := range order {
		out = append(out, byKey[key]...)
	}
	return out, nil
}

type kvPair struct{ key, val string }

// tokenizeKvarr splits a kvarr-format line into raw key/value pairs,
// respecting quotes and bracketed arrays so separators inside them are not
// mistaken for pair boundaries.
func tokenizeKvarr(line string) ([]kvPair, error) {
	var pairs []kvPair
	i := 0
	n := len(line)
	for i < n {
		for i < n && isKvarrSep(line[i]) {
			i++
		}
		if i >= n {
			break
		}
		keyStart := i
		for i < n && line[i] != '=' && line[i] != ':' && !isKvarrSep(line[i]) {
			i++
		}
		key := line[keyStart:i]
		if i >= n || (line[i] != '=' && line[i] != ':') {
			// token with no value assignment: skip it, it declares
			// nothing kvarr can type.
			continue
		}
		i++ // skip '=' or ':'
		val, consumed, err := readKvarrValue(line[i:])
		if err != nil {
			return nil, fmt.Errorf("kvarr: %w", err)
		}
		i += consumed
		if key != "" {
			pairs = append(pairs, kvPair{key: key, val: val})
		}
	}
	return pairs, nil
}

func isKvarrSep(b byte) bool {
	return b == ' ' || b == '\t' || b == ',' || b == '\r' || b == '\n'
}

func readKvarrValue(s string) (string, int, error) {
	if s == "" {
		return "", 0, nil
	}
	switch s[0] {
	case '"', '\'':
		return readQuoted(s, s[0])
	case '[':
		return readBracketed(s)
	default:
		end := 0
		for end < len(s) && !isKvarrSep(s[end]) {
			end++
		}
		return s[:end], end, nil
	}
}

func readQuoted(s string, quote byte) (string, int, error) {
	var b strings.Builder
	i := 1
	for i < len(s) {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			b.WriteByte(unescapeKvarr(s[i+1]))
			i += 2
			continue
		}
		if c == quote {
			return b.String(), i + 1, nil
		}
		b.WriteByte(c)
		i++
	}
	return "", 0, fmt.Errorf("unterminated quoted value")
}

func unescapeKvarr(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return c
	}
}

func readBracketed(s string) (string, int, error) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[1:i], i + 1, nil
			}
		}
	}
	return "", 0, fmt.Errorf("unterminated bracketed value")
}
