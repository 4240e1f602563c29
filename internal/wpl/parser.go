package wpl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wp-labs/wp-motor/internal/value"
)

// RuleSource is one parsed, uncompiled rule declaration: a name plus its
// ordered field decls, ready for Compile.
type RuleSource struct {
	Name  string
	Decls []RuleFieldDecl
}

// ParseFile parses a `models.wpl` rule file (§6.4) into its named rule
// declarations. Multiple rules are separated by a line containing only
// `===`; each rule's own body is an optional `name: <ident>` header
// followed by `---` and then its `field ...;` declarations. A file with
// exactly one rule may omit both the header and its `---`.
//
// Grammar, per field:
//
//	field <name> type <chars|digit|float|bool|ip|time|array|obj>
//	    [sep "<sep-pattern>"]
//	    [proto kvarr sep "<kv-sep>" subs(<key>:<type>, ...)]
//	    [-> pipe1(args), pipe2(args), ...];
func ParseFile(src string, warn func(string), lookup FieldProcessorLookup) ([]RuleSource, error) {
	chunks := splitRuleChunks(src)
	out := make([]RuleSource, 0, len(chunks))
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		rs, err := parseOneRule(chunk, warn, lookup)
		if err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, nil
}

// splitRuleChunks splits on a line containing exactly "===", the top-level
// multi-rule delimiter (distinct from "---", which separates one rule's own
// name header from its field declarations).
func splitRuleChunks(src string) []string {
	lines := strings.Split(src, "\n")
	var chunks []string
	var cur []string
	for _, line := range lines {
		if strings.TrimSpace(line) == "===" {
			chunks = append(chunks, strings.Join(cur, "\n"))
			cur = nil
			continue
		}
		cur = append(cur, line)
	}
	chunks = append(chunks, strings.Join(cur, "\n"))
	return chunks
}

type ruleParser struct {
	toks   []token
	pos    int
	warn   func(string)
	lookup FieldProcessorLookup
}

func parseOneRule(src string, warn func(string), lookup FieldProcessorLookup) (RuleSource, error) {
	toks, err := lex(src)
	if err != nil {
		return RuleSource{}, err
	}
	p := &ruleParser{toks: toks, warn: warn, lookup: lookup}
	return p.parseRule()
}

func (p *ruleParser) cur() token { return p.toks[p.pos] }
func (p *ruleParser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *ruleParser) expect(k tokKind, what string) (token, error) {
	if p.cur().kind != k {
		return token{}, fmt.Errorf("wpl parse error at byte %d: expected %s, got %q", p.cur().pos, what, p.cur().text)
	}
	return p.advance(), nil
}

func (p *ruleParser) expectKeyword(text string) error {
	if p.cur().kind != wtkIdent || p.cur().text != text {
		return fmt.Errorf("wpl parse error at byte %d: expected %q, got %q", p.cur().pos, text, p.cur().text)
	}
	p.advance()
	return nil
}

func (p *ruleParser) parseRule() (RuleSource, error) {
	rs := RuleSource{}
	if p.cur().kind == wtkIdent && p.cur().text == "name" {
		p.advance()
		if _, err := p.expect(wtkColon, "':'"); err != nil {
			return rs, err
		}
		name, err := p.expect(wtkIdent, "rule name")
		if err != nil {
			return rs, err
		}
		rs.Name = name.text
		if _, err := p.expect(wtkDashes, "'---'"); err != nil {
			return rs, err
		}
	}
	for p.cur().kind != wtkEOF {
		if err := p.expectKeyword("field"); err != nil {
			return rs, err
		}
		decl, err := p.parseFieldDecl()
		if err != nil {
			return rs, err
		}
		rs.Decls = append(rs.Decls, decl)
	}
	return rs, nil
}

func (p *ruleParser) parseFieldDecl() (RuleFieldDecl, error) {
	var decl RuleFieldDecl
	name, err := p.expect(wtkIdent, "field name")
	if err != nil {
		return decl, err
	}
	decl.Spec.Name = name.text

	if err := p.expectKeyword("type"); err != nil {
		return decl, err
	}
	typeTok, err := p.expect(wtkIdent, "field type")
	if err != nil {
		return decl, err
	}
	kind, err := kindFromName(typeTok.text)
	if err != nil {
		return decl, err
	}
	decl.Spec.Type = kind

	if p.cur().kind == wtkIdent && p.cur().text == "sep" {
		p.advance()
		sepTok, err := p.expect(wtkString, "separator pattern string")
		if err != nil {
			return decl, err
		}
		decl.SepRaw = sepTok.text
	}

	if p.cur().kind == wtkIdent && p.cur().text == "proto" {
		p.advance()
		protoTok, err := p.expect(wtkIdent, "protocol name")
		if err != nil {
			return decl, err
		}
		switch protoTok.text {
		case "kvarr":
			decl.Spec.Proto = ProtoKvarr
		case "json":
			decl.Spec.Proto = ProtoJSON
		case "keyvalue":
			decl.Spec.Proto = ProtoKeyValue
		case "raw":
			decl.Spec.Proto = ProtoRaw
		default:
			return decl, fmt.Errorf("wpl parse error at byte %d: unknown protocol %q", protoTok.pos, protoTok.text)
		}
		if decl.Spec.Proto == ProtoKvarr || decl.Spec.Proto == ProtoKeyValue {
			if err := p.expectKeyword("sep"); err != nil {
				return decl, err
			}
			kvsep, err := p.expect(wtkString, "kv-pair separator string")
			if err != nil {
				return decl, err
			}
			decl.Spec.KVSep = kvsep.text
			if err := p.expectKeyword("subs"); err != nil {
				return decl, err
			}
			subs, err := p.parseSubs()
			if err != nil {
				return decl, err
			}
			decl.Spec.Subs = subs
		}
	}

	if p.cur().kind == wtkArrow {
		p.advance()
		chain, err := p.parsePipeChain()
		if err != nil {
			return decl, err
		}
		decl.Spec.PipeFns = chain
	}

	if _, err := p.expect(wtkSemi, "';'"); err != nil {
		return decl, err
	}
	return decl, nil
}

func (p *ruleParser) parseSubs() ([]KvarrFieldSpec, error) {
	if _, err := p.expect(wtkLParen, "'('"); err != nil {
		return nil, err
	}
	var out []KvarrFieldSpec
	for p.cur().kind != wtkRParen {
		key, err := p.expect(wtkIdent, "subfield key")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(wtkColon, "':'"); err != nil {
			return nil, err
		}
		typeTok, err := p.expect(wtkIdent, "subfield type")
		if err != nil {
			return nil, err
		}
		kind, err := kindFromName(typeTok.text)
		if err != nil {
			return nil, err
		}
		out = append(out, KvarrFieldSpec{Key: key.text, Declared: kind, HasType: true})
		if p.cur().kind == wtkComma {
			p.advance()
		}
	}
	p.advance() // ')'
	return out, nil
}

func (p *ruleParser) parsePipeChain() ([]PipeFunc, error) {
	var chain []PipeFunc
	for {
		fn, err := p.parsePipeCall()
		if err != nil {
			return nil, err
		}
		chain = append(chain, fn)
		if p.cur().kind == wtkComma {
			p.advance()
			continue
		}
		break
	}
	return chain, nil
}

func (p *ruleParser) parsePipeCall() (PipeFunc, error) {
	nameTok, err := p.expect(wtkIdent, "pipe function name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(wtkLParen, "'('"); err != nil {
		return nil, err
	}
	var args []string
	for p.cur().kind != wtkRParen {
		switch p.cur().kind {
		case wtkString, wtkNumber, wtkIdent:
			args = append(args, p.advance().text)
		default:
			return nil, fmt.Errorf("wpl parse error at byte %d: expected pipe argument, got %q", p.cur().pos, p.cur().text)
		}
		if p.cur().kind == wtkComma {
			p.advance()
		}
	}
	p.advance() // ')'
	return buildPipeCall(nameTok.text, args, p.warn, p.lookup)
}

// buildPipeCall dispatches to the concrete pipe constructors for every pipe
// usable without a compile-time candidate-field list — `take`/`last` need
// such a list and are not available from this text format; they exist only
// as the Go constructors Take and SelectLast.
func buildPipeCall(name string, args []string, warn func(string), lookup FieldProcessorLookup) (PipeFunc, error) {
	switch name {
	case "chars_has":
		if len(args) != 1 {
			return nil, fmt.Errorf("chars_has takes exactly one argument")
		}
		return CharsHas(args[0]), nil
	case "chars_not_has":
		if len(args) != 1 {
			return nil, fmt.Errorf("chars_not_has takes exactly one argument")
		}
		return CharsNotHas(args[0]), nil
	case "digit_in":
		if len(args) != 2 {
			return nil, fmt.Errorf("digit_in takes exactly two arguments")
		}
		lo, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("digit_in: %w", err)
		}
		hi, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("digit_in: %w", err)
		}
		return DigitIn(lo, hi), nil
	case "regex_match":
		if len(args) != 1 {
			return nil, fmt.Errorf("regex_match takes exactly one argument")
		}
		return RegexMatch(args[0], warn), nil
	case "json_unescape":
		return JSONUnescape(), nil
	case "base64_decode":
		return Base64Decode(), nil
	case "chars_replace":
		if len(args) != 2 {
			return nil, fmt.Errorf("chars_replace takes exactly two arguments")
		}
		return CharsReplace(args[0], args[1]), nil
	case "ext_pass":
		if len(args) != 1 {
			return nil, fmt.Errorf("ext_pass takes exactly one argument")
		}
		return ExtPass(lookup, args[0]), nil
	case "vec_to_src":
		if len(args) != 1 {
			return nil, fmt.Errorf("vec_to_src takes exactly one argument")
		}
		return VecToSrc(lookup, args[0]), nil
	case "split_to_src":
		if len(args) != 2 {
			return nil, fmt.Errorf("split_to_src takes exactly two arguments")
		}
		return SplitToSrc(lookup, args[0], args[1]), nil
	default:
		return nil, fmt.Errorf("unknown pipe function %q", name)
	}
}

func kindFromName(name string) (value.Kind, error) {
	switch name {
	case "chars":
		return value.Chars, nil
	case "digit":
		return value.Digit, nil
	case "float":
		return value.Float, nil
	case "bool":
		return value.Bool, nil
	case "ip":
		return value.IPAddr, nil
	case "time":
		return value.Time, nil
	case "array":
		return value.Array, nil
	case "obj":
		return value.Obj, nil
	default:
		return value.Ignore, fmt.Errorf("unknown field type %q", name)
	}
}
