package wpl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wp-labs/wp-motor/internal/value"
)

// TestScenarioS2KvarrTypeInference mirrors spec scenario S2: declared
// sub-field types override inference, undeclared keys are dropped.
func TestScenarioS2KvarrTypeInference(t *testing.T) {
	specs := []KvarrFieldSpec{
		{Key: "src", Declared: value.IPAddr, HasType: true},
		{Key: "cnt", Declared: value.Digit, HasType: true},
		{Key: "tag", Declared: value.Chars, HasType: true},
	}
	rule, err := Compile("kvarr_rule", []RuleFieldDecl{
		{SepRaw: "", Spec: FieldSpec{Name: "kv", Proto: ProtoKvarr, Subs: specs}},
	})
	require.NoError(t, err)

	rec, ok := rule.Evaluate(`src="10.0.0.1" cnt=42 tag=foo extra=skipped`)
	require.True(t, ok)

	src := rec.Find("src")
	require.NotNil(t, src)
	assert.Equal(t, value.IPAddr, src.Val.Kind)
	assert.Equal(t, "10.0.0.1", src.Val.IP().String())

	cnt := rec.Find("cnt")
	require.NotNil(t, cnt)
	assert.Equal(t, int64(42), cnt.Val.Int())

	tag := rec.Find("tag")
	require.NotNil(t, tag)
	assert.Equal(t, "foo", tag.Val.Str())

	assert.Nil(t, rec.Find("extra"), "undeclared keys must not appear in the output record")
}

// TestScenarioS1RawLineFullPayload mirrors spec scenario S1's parse stage:
// a rule that selects the whole payload as a single chars field.
func TestScenarioS1RawLineFullPayload(t *testing.T) {
	rule, err := Compile("raw_line", []RuleFieldDecl{
		{SepRaw: "", Spec: FieldSpec{Name: "msg", Type: value.Chars}},
	})
	require.NoError(t, err)

	rec, ok := rule.Evaluate("hello-1")
	require.True(t, ok)
	msg := rec.Find("msg")
	require.NotNil(t, msg)
	assert.Equal(t, "hello-1", msg.Val.Str())
}

func TestUnmatchedSeparatorFailsWholeRule(t *testing.T) {
	rule, err := Compile("r", []RuleFieldDecl{
		{SepRaw: ": ", Spec: FieldSpec{Name: "a", Type: value.Chars}},
		{SepRaw: "", Spec: FieldSpec{Name: "b", Type: value.Digit}},
	})
	require.NoError(t, err)

	// the ": " separator that ends "a" never occurs, so the rule fails
	// entirely — Evaluate must report ok == false, not a partial record.
	_, ok := rule.Evaluate("onlyfield")
	assert.False(t, ok)
}

func TestPipeChainAbortsRuleOnFailedPredicate(t *testing.T) {
	rule, err := Compile("r", []RuleFieldDecl{
		{SepRaw: "", Spec: FieldSpec{
			Name: "msg", Type: value.Chars,
			PipeFns: []PipeFunc{CharsHas("ERROR")},
		}},
	})
	require.NoError(t, err)

	_, ok := rule.Evaluate("all good here")
	assert.False(t, ok)

	rec, ok := rule.Evaluate("an ERROR occurred")
	require.True(t, ok)
	assert.Equal(t, "an ERROR occurred", rec.Find("msg").Val.Str())
}
