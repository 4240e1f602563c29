package wpl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wp-labs/wp-motor/internal/value"
)

func TestParseFileSingleRuleNoHeader(t *testing.T) {
	src := `field msg type chars;`
	rules, err := ParseFile(src, nil, nil)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Len(t, rules[0].Decls, 1)
	assert.Equal(t, "msg", rules[0].Decls[0].Spec.Name)
	assert.Equal(t, value.Chars, rules[0].Decls[0].Spec.Type)
}

func TestParseFileWithHeaderAndSeparators(t *testing.T) {
	src := `name: access_log
---
field ts type chars sep " ";
field status type digit sep " " -> digit_in(100, 599);
field msg type chars;`
	rules, err := ParseFile(src, nil, nil)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	rs := rules[0]
	assert.Equal(t, "access_log", rs.Name)
	require.Len(t, rs.Decls, 3)
	assert.Equal(t, " ", rs.Decls[0].SepRaw)
	assert.Len(t, rs.Decls[1].Spec.PipeFns, 1)

	rule, err := Compile(rs.Name, rs.Decls)
	require.NoError(t, err)
	rec, ok := rule.Evaluate("2024 200 all good")
	require.True(t, ok)
	assert.Equal(t, "2024", rec.Find("ts").Val.Str())
	assert.Equal(t, int64(200), rec.Find("status").Val.Int())
	assert.Equal(t, "all good", rec.Find("msg").Val.Str())
}

func TestParseFileKvarrFieldWithSubs(t *testing.T) {
	src := `field kv type chars proto kvarr sep "=" subs(src:ip, cnt:digit);`
	rules, err := ParseFile(src, nil, nil)
	require.NoError(t, err)
	decl := rules[0].Decls[0]
	assert.Equal(t, ProtoKvarr, decl.Spec.Proto)
	require.Len(t, decl.Spec.Subs, 2)
	assert.Equal(t, "src", decl.Spec.Subs[0].Key)
	assert.Equal(t, value.IPAddr, decl.Spec.Subs[0].Declared)

	rule, err := Compile("kv_rule", rules[0].Decls)
	require.NoError(t, err)
	rec, ok := rule.Evaluate(`src=10.0.0.1 cnt=5`)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1", rec.Find("src").Val.IP().String())
	assert.Equal(t, int64(5), rec.Find("cnt").Val.Int())
}

func TestParseFileMultipleRulesSeparatedByEquals(t *testing.T) {
	src := `name: r1
---
field a type chars;
===
name: r2
---
field b type digit;`
	rules, err := ParseFile(src, nil, nil)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "r1", rules[0].Name)
	assert.Equal(t, "r2", rules[1].Name)
}

func TestParseFileRejectsUnknownPipeFunction(t *testing.T) {
	src := `field msg type chars -> not_a_real_pipe();`
	_, err := ParseFile(src, nil, nil)
	require.Error(t, err)
}

func TestParseFileRejectsUnknownFieldType(t *testing.T) {
	src := `field msg type nonsense;`
	_, err := ParseFile(src, nil, nil)
	require.Error(t, err)
}

func TestParseFileExtPassRoutesThroughLookup(t *testing.T) {
	var called string
	lookup := func(category, name string) (FieldProcessor, bool) {
		called = category + ":" + name
		return fakeProcessor{}, true
	}
	src := `field msg type chars -> ext_pass("reinject");`
	rules, err := ParseFile(src, nil, lookup)
	require.NoError(t, err)
	rule, err := Compile("r", rules[0].Decls)
	require.NoError(t, err)
	_, ok := rule.Evaluate("hello")
	require.True(t, ok)
	assert.Equal(t, "ext:reinject", called)
}

type fakeProcessor struct{}

func (fakeProcessor) Process(payload []byte) error { return nil }
