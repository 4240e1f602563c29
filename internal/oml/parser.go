package oml

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wp-labs/wp-motor/internal/value"
)

// Model is one parsed OML rewrite model: its header, its interned static
// symbols, and its ordered list of target assignments.
type Model struct {
	Name    string
	Rule    string
	Enabled bool
	Static  *StaticTable
	Targets []Assignment
}

// Assignment is one `target = expr;` statement.
type Assignment struct {
	Target string
	Expr   Evaluator
}

type parser struct {
	toks []token
	pos  int
}

// Parse compiles OML model source text into a Model. Every static-symbol
// reference left unresolved after the static block rewrite pass is reported
// together in a single error, per the static-symbol resolution contract in
// static.go.
func Parse(src string) (*Model, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	m, err := p.parseModel()
	if err != nil {
		return nil, err
	}
	unresolved := make(map[string]bool)
	for i, a := range m.Targets {
		a.Expr = ResolveSymbols(a.Expr, m.Static, unresolved)
		m.Targets[i] = a
	}
	if len(unresolved) > 0 {
		names := make([]string, 0, len(unresolved))
		for n := range unresolved {
			names = append(names, n)
		}
		return nil, fmt.Errorf("oml compile error: unresolved static symbol(s): %s", strings.Join(names, ", "))
	}
	return m, nil
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(k tokKind, what string) (token, error) {
	if p.cur().kind != k {
		return token{}, fmt.Errorf("oml parse error at byte %d: expected %s, got %q", p.cur().pos, what, p.cur().text)
	}
	return p.advance(), nil
}

func (p *parser) expectIdentText(text string) error {
	if p.cur().kind != tkIdent || p.cur().text != text {
		return fmt.Errorf("oml parse error at byte %d: expected %q, got %q", p.cur().pos, text, p.cur().text)
	}
	p.advance()
	return nil
}

func (p *parser) parseModel() (*Model, error) {
	m := &Model{Enabled: true, Static: NewStaticTable()}
	// Header: zero or more `key: value` lines, ending at `---`.
	for p.cur().kind == tkIdent {
		key := p.advance().text
		if _, err := p.expect(tkColon, "':'"); err != nil {
			return nil, err
		}
		val, err := p.parseHeaderValue()
		if err != nil {
			return nil, err
		}
		switch key {
		case "name":
			m.Name = val
		case "rule":
			m.Rule = val
		case "enable":
			m.Enabled = val == "true"
		default:
			return nil, fmt.Errorf("oml parse error: unknown header key %q", key)
		}
	}
	if p.cur().kind == tkDashes {
		p.advance()
	}
	if p.cur().kind == tkIdent && p.cur().text == "static" {
		p.advance()
		if _, err := p.expect(tkLBrace, "'{'"); err != nil {
			return nil, err
		}
		for p.cur().kind != tkRBrace {
			name, err := p.expect(tkIdent, "static symbol name")
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tkEq, "'='"); err != nil {
				return nil, err
			}
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tkSemi, "';'"); err != nil {
				return nil, err
			}
			constVal, ok := expr.(ConstExpr)
			if !ok {
				return nil, fmt.Errorf("oml parse error: static symbol %q must be a constant expression", name.text)
			}
			if err := m.Static.Define(name.text, constVal.Val); err != nil {
				return nil, err
			}
		}
		p.advance() // '}'
	}
	for p.cur().kind == tkIdent {
		target := p.advance().text
		if _, err := p.expect(tkEq, "'='"); err != nil {
			return nil, err
		}
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tkSemi, "';'"); err != nil {
			return nil, err
		}
		m.Targets = append(m.Targets, Assignment{Target: target, Expr: expr})
	}
	if p.cur().kind != tkEOF {
		return nil, fmt.Errorf("oml parse error at byte %d: unexpected trailing token %q", p.cur().pos, p.cur().text)
	}
	return m, nil
}

func (p *parser) parseHeaderValue() (string, error) {
	t := p.cur()
	switch t.kind {
	case tkIdent, tkString:
		p.advance()
		return t.text, nil
	default:
		return "", fmt.Errorf("oml parse error at byte %d: expected header value", t.pos)
	}
}

func (p *parser) parseExpr() (Evaluator, error) {
	start, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tkArrow {
		return start, nil
	}
	pe := PipeExpr{Start: start}
	for p.cur().kind == tkArrow {
		p.advance()
		step, err := p.parsePipeStep()
		if err != nil {
			return nil, err
		}
		pe.Fns = append(pe.Fns, step)
	}
	return pe, nil
}

func (p *parser) parsePipeStep() (PipeStep, error) {
	name, err := p.expect(tkIdent, "pipe function name")
	if err != nil {
		return PipeStep{}, err
	}
	fn, ok := PipeRegistry[name.text]
	if !ok {
		return PipeStep{}, fmt.Errorf("oml compile error: unknown pipe function %q", name.text)
	}
	args, err := p.parseCallArgs()
	if err != nil {
		return PipeStep{}, err
	}
	return PipeStep{Fn: fn, Args: args}, nil
}

// parseCallArgs parses a parenthesized, comma-separated string/number
// argument list, e.g. ("a", "b") or (5) or ().
func (p *parser) parseCallArgs() ([]string, error) {
	if _, err := p.expect(tkLParen, "'('"); err != nil {
		return nil, err
	}
	var args []string
	for p.cur().kind != tkRParen {
		switch p.cur().kind {
		case tkString, tkNumber, tkIdent:
			args = append(args, p.advance().text)
		default:
			return nil, fmt.Errorf("oml parse error at byte %d: expected argument", p.cur().pos)
		}
		if p.cur().kind == tkComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(tkRParen, "')'"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *parser) parsePrimary() (Evaluator, error) {
	t := p.cur()
	if t.kind != tkIdent {
		return nil, fmt.Errorf("oml parse error at byte %d: expected expression, got %q", t.pos, t.text)
	}
	switch t.text {
	case "digit":
		p.advance()
		args, err := p.parseCallArgs()
		if err != nil || len(args) != 1 {
			return nil, fmt.Errorf("oml parse error: digit(N) takes exactly one argument")
		}
		n, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("oml parse error: invalid digit literal %q", args[0])
		}
		return ConstExpr{Val: value.NewDigit(n)}, nil
	case "float":
		p.advance()
		args, err := p.parseCallArgs()
		if err != nil || len(args) != 1 {
			return nil, fmt.Errorf("oml parse error: float(N) takes exactly one argument")
		}
		f, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return nil, fmt.Errorf("oml parse error: invalid float literal %q", args[0])
		}
		return ConstExpr{Val: value.NewFloat(f)}, nil
	case "chars":
		p.advance()
		args, err := p.parseCallArgs()
		if err != nil || len(args) != 1 {
			return nil, fmt.Errorf("oml parse error: chars(\"...\") takes exactly one argument")
		}
		return ConstExpr{Val: value.NewChars(args[0])}, nil
	case "bool":
		p.advance()
		args, err := p.parseCallArgs()
		if err != nil || len(args) != 1 {
			return nil, fmt.Errorf("oml parse error: bool(true|false) takes exactly one argument")
		}
		return ConstExpr{Val: value.NewBool(args[0] == "true")}, nil
	case "take", "read":
		p.advance()
		args, err := p.parseCallArgs()
		if err != nil || len(args) == 0 {
			return nil, fmt.Errorf("oml parse error: %s(name, ...) needs at least a field name", t.text)
		}
		if strings.Contains(args[0], "*") {
			return AccessorExpr{Wildcard: true, WildcardOf: args[0]}, nil
		}
		return AccessorExpr{Primary: args[0], Fallbacks: args[1:]}, nil
	case "collect":
		p.advance()
		args, err := p.parseCallArgs()
		if err != nil || len(args) == 0 {
			return nil, fmt.Errorf("oml parse error: collect(glob, ...) needs at least one glob")
		}
		return CollectExpr{Globs: args}, nil
	case "match":
		return p.parseMatch()
	default:
		p.advance()
		return UnresolvedSymbolExpr{Name: t.text}, nil
	}
}

func (p *parser) parseMatch() (Evaluator, error) {
	p.advance() // 'match'
	var sources []Evaluator
	for {
		src, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
		if p.cur().kind == tkComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(tkLBrace, "'{'"); err != nil {
		return nil, err
	}
	me := MatchExpr{Sources: sources}
	for p.cur().kind != tkRBrace {
		arm, err := p.parseMatchArm(len(sources))
		if err != nil {
			return nil, err
		}
		me.Arms = append(me.Arms, arm)
	}
	p.advance() // '}'
	return me, nil
}

func (p *parser) parseMatchArm(arity int) (MatchArm, error) {
	var arm MatchArm
	if p.cur().kind == tkUnderscore {
		p.advance()
		arm.Default = true
	} else {
		for {
			cond, err := p.parseMatchCond()
			if err != nil {
				return MatchArm{}, err
			}
			arm.Conds = append(arm.Conds, cond)
			if p.cur().kind == tkComma {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(tkFatArrow, "'=>'"); err != nil {
		return MatchArm{}, err
	}
	result, err := p.parseExpr()
	if err != nil {
		return MatchArm{}, err
	}
	if _, err := p.expect(tkSemi, "';'"); err != nil {
		return MatchArm{}, err
	}
	arm.Result = result
	return arm, nil
}

// matchFunNames are the identifiers that, in cond position, name a
// MatchCond predicate function rather than a value to compare for equality
// (§4.3.3).
var matchFunNames = map[string]bool{
	"starts_with": true, "ends_with": true, "contains": true, "iequals": true,
	"is_empty": true, "gt": true, "lt": true, "eq": true, "in_range": true,
	"regex_match": true,
}

func (p *parser) parseMatchCond() (MatchCond, error) {
	switch p.cur().kind {
	case tkEqEq:
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return MatchCond{}, err
		}
		return MatchCond{Kind: CondEq, Val: expr}, nil
	case tkNe:
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return MatchCond{}, err
		}
		return MatchCond{Kind: CondNeq, Val: expr}, nil
	case tkIdent:
		if matchFunNames[p.cur().text] {
			name := p.advance().text
			args, err := p.parseCallArgs()
			if err != nil {
				return MatchCond{}, err
			}
			arg := ""
			if len(args) > 0 {
				arg = args[0]
			}
			return MatchCond{Kind: CondFun, FunName: name, FunArg: arg}, nil
		}
		// A bare value expression in cond position is shorthand for an
		// equality test against it, e.g. `digit(200) => OK;` (§4.3.3 S3).
		expr, err := p.parseExpr()
		if err != nil {
			return MatchCond{}, err
		}
		return MatchCond{Kind: CondEq, Val: expr}, nil
	default:
		return MatchCond{}, fmt.Errorf("oml parse error at byte %d: expected match condition", p.cur().pos)
	}
}
