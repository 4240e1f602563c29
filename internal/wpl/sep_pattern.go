// Package wpl implements the WPL pattern/parse DSL: separator pattern
// compilation and matching, the wire-format protocol parsers (kvarr, json,
// key-value, raw), the pipe-function chain, and rule evaluation.
package wpl

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// tokenKind enumerates the atoms a separator pattern's body compiles to.
type tokenKind uint8

const (
	tokLiteral tokenKind = iota
	tokStar              // '*', non-greedy, at most one per pattern
	tokQuestion          // '?', exactly one rune
	tokWhitespace        // \s, one-or-more of " \t\r\n"
	tokHSpace            // \h, one-or-more of " \t"
)

type token struct {
	kind tokenKind
	lit  string // only meaningful for tokLiteral
}

// SepMatch describes one match of a compiled separator against a haystack.
type SepMatch struct {
	// Consumed is the byte length of the separator occurrence itself
	// (excludes any trailing preserve group, which is checked but not
	// consumed).
	Consumed int
	// Matched is Consumed plus the length of a matching preserve group,
	// when one is declared.
	Matched int
}

// SepPattern is a compiled separator, either a pure-literal fast path or a
// general glob of literal/star/question/whitespace tokens with an optional
// trailing literal preserve group.
type SepPattern struct {
	raw      string
	isGlob   bool
	literal  string  // fast path when isGlob == false
	main     []token // glob token sequence
	preserve []token // optional trailing "(...)" group, literal-only
	hasStar  bool
}

// Raw returns the original pattern text (post-unescape-decision), useful
// for diagnostics.
func (p *SepPattern) Raw() string { return p.raw }

// CompileSepPattern parses a separator pattern string (the text of a rule
// field's `sep "..."` clause) into a compiled matcher. The rule-file parser
// has no `{...}` form for writing a separator.
func CompileSepPattern(raw string) (*SepPattern, error) {
	runes := []rune(raw)
	n := len(runes)

	var main []token
	var preserve []token
	starCount := 0
	inPreserve := false
	sawPreserveClose := false

	appendLit := func(bucket *[]token, s string) {
		if len(*bucket) > 0 && (*bucket)[len(*bucket)-1].kind == tokLiteral {
			(*bucket)[len(*bucket)-1].lit += s
			return
		}
		*bucket = append(*bucket, token{kind: tokLiteral, lit: s})
	}

	i := 0
	for i < n {
		c := runes[i]
		bucket := &main
		if inPreserve {
			bucket = &preserve
		}

		switch {
		case c == '\\':
			if i+1 >= n {
				appendLit(bucket, "\\")
				i++
				continue
			}
			next := runes[i+1]
			switch next {
			case 's':
				*bucket = append(*bucket, token{kind: tokWhitespace})
			case 'h':
				*bucket = append(*bucket, token{kind: tokHSpace})
			case '\\':
				appendLit(bucket, "\\")
			default:
				// Unknown escape sequences fall back to their literal
				// character, for backward compatibility.
				appendLit(bucket, string(next))
			}
			i += 2

		case c == '*':
			if inPreserve {
				return nil, compileErr(raw, i, "'*' is not allowed inside a preserve group")
			}
			starCount++
			if starCount > 1 {
				return nil, compileErr(raw, i, "at most one '*' is allowed in a separator pattern")
			}
			main = append(main, token{kind: tokStar})
			i++

		case c == '?':
			*bucket = append(*bucket, token{kind: tokQuestion})
			i++

		case c == '(':
			if inPreserve {
				return nil, compileErr(raw, i, "nested '(' inside a preserve group")
			}
			if i != 0 && sawPreserveClose {
				return nil, compileErr(raw, i, "preserve group may only appear once, at the end")
			}
			if strings.IndexByte(string(runes[i:]), ')') == -1 {
				return nil, compileErr(raw, i, "unterminated preserve group")
			}
			if runes[n-1] != ')' {
				return nil, compileErr(raw, i, "'(' starts a preserve group that must end the pattern")
			}
			inPreserve = true
			i++

		case c == ')':
			if !inPreserve {
				return nil, compileErr(raw, i, "unmatched ')'")
			}
			if i != n-1 {
				return nil, compileErr(raw, i, "')' must be the last character of the pattern")
			}
			inPreserve = false
			sawPreserveClose = true
			i++

		default:
			appendLit(bucket, string(c))
			i++
		}
	}
	if inPreserve {
		return nil, compileErr(raw, n, "unterminated preserve group")
	}

	p := &SepPattern{raw: raw, main: main, preserve: preserve, hasStar: starCount == 1}
	if starCount == 0 && len(preserve) == 0 && len(main) <= 1 {
		if len(main) == 0 {
			p.isGlob = false
			p.literal = ""
			return p, nil
		}
		if main[0].kind == tokLiteral {
			p.isGlob = false
			p.literal = main[0].lit
			return p, nil
		}
	}
	p.isGlob = true
	return p, nil
}

// compileErr renders a visual-caret compile error pointing at rune index
// pos within raw.
func compileErr(raw string, runePos int, msg string) error {
	runes := []rune(raw)
	if runePos > len(runes) {
		runePos = len(runes)
	}
	caret := strings.Repeat(" ", runePos) + "^"
	return fmt.Errorf("sep pattern error: %s\n  %s\n  %s", msg, raw, caret)
}

// Find locates the earliest occurrence of the separator in hay, returning
// the byte offset of the field content preceding it and the match extent.
// A returned ok==false means the separator never occurs in hay.
func (p *SepPattern) Find(hay string) (offset int, m SepMatch, ok bool) {
	if !p.isGlob {
		return p.findLiteral(hay)
	}
	return p.findGlob(hay)
}

func (p *SepPattern) findLiteral(hay string) (int, SepMatch, bool) {
	if p.literal == "" {
		// Empty separator always matches at the start, consuming nothing.
		preserveLen, ok := p.checkPreserve(hay, 0)
		if !ok {
			return 0, SepMatch{}, false
		}
		return 0, SepMatch{Consumed: 0, Matched: preserveLen}, true
	}
	search := hay
	base := 0
	for {
		idx := strings.Index(search, p.literal)
		if idx < 0 {
			return 0, SepMatch{}, false
		}
		pos := base + idx
		consumed := len(p.literal)
		if preserveLen, ok := p.checkPreserve(hay, pos+consumed); ok {
			return pos, SepMatch{Consumed: consumed, Matched: consumed + preserveLen}, true
		}
		// Preserve check failed: advance by one rune (UTF-8 safe) and
		// keep scanning, rather than by one byte, to avoid splitting a
		// multi-byte rune and to bound the scan to O(n) restarts.
		_, sz := utf8.DecodeRuneInString(search[idx:])
		if sz == 0 {
			sz = 1
		}
		base = pos + sz
		if base > len(hay) {
			return 0, SepMatch{}, false
		}
		search = hay[base:]
	}
}

// checkPreserve verifies the optional trailing preserve group matches at
// byte position pos in hay (without consuming it) and returns the byte
// length of that match (0 when no preserve group is declared).
func (p *SepPattern) checkPreserve(hay string, pos int) (int, bool) {
	if len(p.preserve) == 0 {
		return 0, true
	}
	end, ok := matchTokens(hay, pos, p.preserve)
	if !ok {
		return 0, false
	}
	return end - pos, true
}

// findGlob scans hay left to right for the earliest position where the
// glob's token sequence matches, honoring the single non-greedy star.
func (p *SepPattern) findGlob(hay string) (int, SepMatch, bool) {
	pre, post := splitAtStar(p.main, p.hasStar)

	// Literal-first fast path: if the pattern begins with a literal run,
	// jump directly to candidate occurrences via substring search instead
	// of probing every byte offset.
	if len(pre) > 0 && pre[0].kind == tokLiteral {
		return p.findGlobLiteralFirst(hay, pre, post)
	}
	return p.findGlobGeneral(hay, pre, post)
}

func (p *SepPattern) findGlobLiteralFirst(hay string, pre, post []token) (int, SepMatch, bool) {
	lit := pre[0].lit
	search := hay
	base := 0
	for {
		idx := strings.Index(search, lit)
		if idx < 0 {
			return 0, SepMatch{}, false
		}
		pos := base + idx
		if consumed, ok := p.tryFullMatch(hay, pos, pre, post); ok {
			if preserveLen, pok := p.checkPreserve(hay, pos+consumed); pok {
				return pos, SepMatch{Consumed: consumed, Matched: consumed + preserveLen}, true
			}
		}
		_, sz := utf8.DecodeRuneInString(search[idx:])
		if sz == 0 {
			sz = 1
		}
		base = pos + sz
		if base > len(hay) {
			return 0, SepMatch{}, false
		}
		search = hay[base:]
	}
}

func (p *SepPattern) findGlobGeneral(hay string, pre, post []token) (int, SepMatch, bool) {
	pos := 0
	for pos <= len(hay) {
		if consumed, ok := p.tryFullMatch(hay, pos, pre, post); ok {
			if preserveLen, pok := p.checkPreserve(hay, pos+consumed); pok {
				return pos, SepMatch{Consumed: consumed, Matched: consumed + preserveLen}, true
			}
		}
		if pos == len(hay) {
			break
		}
		_, sz := utf8.DecodeRuneInString(hay[pos:])
		if sz == 0 {
			sz = 1
		}
		pos += sz
	}
	return 0, SepMatch{}, false
}

// tryFullMatch attempts to match pre, then a non-greedy star expansion
// (when p.hasStar), then post, all anchored at byte offset pos. Returns
// the total consumed byte length on success.
func (p *SepPattern) tryFullMatch(hay string, pos int, pre, post []token) (int, bool) {
	preEnd, ok := matchTokens(hay, pos, pre)
	if !ok {
		return 0, false
	}
	if !p.hasStar {
		return preEnd - pos, true
	}
	starPos := preEnd
	for starPos <= len(hay) {
		if postEnd, ok := matchTokens(hay, starPos, post); ok {
			return postEnd - pos, true
		}
		if starPos == len(hay) {
			break
		}
		_, sz := utf8.DecodeRuneInString(hay[starPos:])
		if sz == 0 {
			sz = 1
		}
		starPos += sz
	}
	return 0, false
}

// splitAtStar partitions tokens into the run before and after the single
// star, if present.
func splitAtStar(tokens []token, hasStar bool) (pre, post []token) {
	if !hasStar {
		return tokens, nil
	}
	for i, t := range tokens {
		if t.kind == tokStar {
			return tokens[:i], tokens[i+1:]
		}
	}
	return tokens, nil
}

// matchTokens matches a literal/question/whitespace/hspace token sequence
// (no star — stars are handled by the caller) starting at byte offset pos,
// returning the byte offset just past the match.
func matchTokens(hay string, pos int, tokens []token) (int, bool) {
	for _, t := range tokens {
		switch t.kind {
		case tokLiteral:
			if !strings.HasPrefix(hay[pos:], t.lit) {
				return 0, false
			}
			pos += len(t.lit)
		case tokQuestion:
			r, sz := utf8.DecodeRuneInString(hay[pos:])
			if sz == 0 || r == utf8.RuneError && sz == 1 {
				return 0, false
			}
			pos += sz
		case tokWhitespace:
			consumed := consumeClass(hay[pos:], isSpaceByte)
			if consumed == 0 {
				return 0, false
			}
			pos += consumed
		case tokHSpace:
			consumed := consumeClass(hay[pos:], isHSpaceByte)
			if consumed == 0 {
				return 0, false
			}
			pos += consumed
		default:
			return 0, false
		}
	}
	return pos, true
}

func isSpaceByte(b byte) bool { return b == ' ' || b == '\t' || b == '\r' || b == '\n' }
func isHSpaceByte(b byte) bool { return b == ' ' || b == '\t' }

func consumeClass(s string, pred func(byte) bool) int {
	i := 0
	for i < len(s) && pred(s[i]) {
		i++
	}
	return i
}
