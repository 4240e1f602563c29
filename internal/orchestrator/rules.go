package orchestrator

import (
	"fmt"
	"os"

	"github.com/wp-labs/wp-motor/internal/value"
	"github.com/wp-labs/wp-motor/internal/wpl"
)

// compiledRule pairs a compiled Rule with its declaration order, since
// "first rule to accept the line wins" (§7 "runtime rule failure") depends
// on source order, not name.
type compiledRule struct {
	name string
	rule *wpl.Rule
}

// RuleSet is the engine's loaded, ordered collection of WPL rules, keyed by
// name for model selection and tried in declaration order for parsing.
type RuleSet struct {
	ordered []compiledRule
	byName  map[string]*wpl.Rule
}

// LoadRuleSet reads and compiles every rule declared in the `models.wpl`
// file (§6.4).
func LoadRuleSet(path string, warn func(string), lookup wpl.FieldProcessorLookup) (*RuleSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load rule set %s: %w", path, err)
	}
	sources, err := wpl.ParseFile(string(raw), warn, lookup)
	if err != nil {
		return nil, fmt.Errorf("parse rule set %s: %w", path, err)
	}
	rs := &RuleSet{byName: make(map[string]*wpl.Rule, len(sources))}
	for i, src := range sources {
		name := src.Name
		if name == "" {
			name = fmt.Sprintf("rule_%d", i)
		}
		compiled, err := wpl.Compile(name, src.Decls)
		if err != nil {
			return nil, fmt.Errorf("compile rule %s: %w", name, err)
		}
		rs.ordered = append(rs.ordered, compiledRule{name: name, rule: compiled})
		rs.byName[name] = compiled
	}
	return rs, nil
}

// MatchFirst tries every compiled rule in declaration order, returning the
// first one that accepts line. §7: a runtime rule failure is per-record —
// the caller routes to the `miss` infra sink when ok is false.
func (rs *RuleSet) MatchFirst(line string) (rec *value.Record, ruleName string, ok bool) {
	if rs == nil {
		return nil, "", false
	}
	for _, cr := range rs.ordered {
		if r, matched := cr.rule.Evaluate(line); matched {
			return r, cr.name, true
		}
	}
	return nil, "", false
}
