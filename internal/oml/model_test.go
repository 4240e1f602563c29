package oml

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wp-labs/wp-motor/internal/value"
)

func TestScenarioS3MatchStaticSymbolIdentity(t *testing.T) {
	src := `
name: t
---
static { OK = digit(200); ERR = digit(500); }
result = match read(code) {
    digit(200) => OK;
    digit(500) => ERR;
    _ => digit(0);
};
`
	m, err := Parse(src)
	require.NoError(t, err)
	om := NewObjModel(m, nil)

	in := value.NewRecord(value.NewField("code", value.NewDigit(500)))
	out := om.EvalExp(in)
	result := out.Find("result")
	require.NotNil(t, result)
	assert.Equal(t, int64(500), result.Val.Int())

	errPtr := m.Static.Lookup("ERR")
	require.NotNil(t, errPtr)
	assert.True(t, value.SameOrigin(result.Val, (*errPtr).WithOrigin(errPtr)),
		"result must share identity with the ERR static symbol")

	in404 := value.NewRecord(value.NewField("code", value.NewDigit(404)))
	out404 := om.EvalExp(in404)
	result404 := out404.Find("result")
	require.NotNil(t, result404)
	assert.Equal(t, int64(0), result404.Val.Int())
}

func TestAccessorFallbackChain(t *testing.T) {
	src := `
name: t
---
dest = take(primary, fallback);
`
	m, err := Parse(src)
	require.NoError(t, err)
	om := NewObjModel(m, nil)

	in := value.NewRecord(value.NewField("fallback", value.NewChars("from-fallback")))
	out := om.EvalExp(in)
	f := out.Find("dest")
	require.NotNil(t, f)
	assert.Equal(t, "from-fallback", f.Val.Str())
}

func TestPipeChainBase64AndSkipEmpty(t *testing.T) {
	src := `
name: t
---
encoded = take(msg) -> base64_encode();
dropped = take(empty) -> skip_empty();
`
	m, err := Parse(src)
	require.NoError(t, err)
	om := NewObjModel(m, nil)

	in := value.NewRecord(
		value.NewField("msg", value.NewChars("hi")),
		value.NewField("empty", value.NewChars("")),
	)
	out := om.EvalExp(in)
	enc := out.Find("encoded")
	require.NotNil(t, enc)
	assert.Equal(t, "aGk=", enc.Val.Str())
	assert.Nil(t, out.Find("dropped"), "skip_empty on an empty string must leave the target unset")
}

func TestScratchFieldsCoercedToIgnoreButUsableDuringEval(t *testing.T) {
	src := `
name: t
---
__stage1 = take(raw) -> to_str();
final = take(__stage1);
`
	m, err := Parse(src)
	require.NoError(t, err)
	om := NewObjModel(m, nil)

	in := value.NewRecord(value.NewField("raw", value.NewDigit(42)))
	out := om.EvalExp(in)

	scratch := out.Find("__stage1")
	require.NotNil(t, scratch)
	assert.Equal(t, value.Ignore, scratch.Val.Kind)

	final := out.Find("final")
	require.NotNil(t, final)
	assert.Equal(t, "42", final.Val.Str())
}

func TestCollectGatherGlobbedFields(t *testing.T) {
	src := `
name: t
---
tags = collect(tag/*);
`
	m, err := Parse(src)
	require.NoError(t, err)
	om := NewObjModel(m, nil)

	in := value.NewRecord(
		value.NewField("tag/a", value.NewChars("x")),
		value.NewField("tag/b", value.NewChars("y")),
		value.NewField("other", value.NewChars("z")),
	)
	out := om.EvalExp(in)
	tags := out.Find("tags")
	require.NotNil(t, tags)
	require.Equal(t, value.Array, tags.Val.Kind)
	assert.Len(t, tags.Val.Items(), 2)
}

func TestMatchFunGtLtEqAndInRange(t *testing.T) {
	src := `
name: t
---
level = match read(code) {
    gt(499) => chars("error");
    in_range("400,499") => chars("client_error");
    _ => chars("ok");
};
`
	m, err := Parse(src)
	require.NoError(t, err)
	om := NewObjModel(m, nil)

	cases := []struct {
		code int64
		want string
	}{
		{500, "error"},
		{404, "client_error"},
		{200, "ok"},
	}
	for _, c := range cases {
		in := value.NewRecord(value.NewField("code", value.NewDigit(c.code)))
		out := om.EvalExp(in)
		lvl := out.Find("level")
		require.NotNil(t, lvl)
		assert.Equal(t, c.want, lvl.Val.Str())
	}
}

func TestUnresolvedStaticSymbolIsCompileError(t *testing.T) {
	src := `
name: t
---
result = UNDECLARED;
`
	_, err := Parse(src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNDECLARED")
}

func TestIp4ToIntPipe(t *testing.T) {
	src := `
name: t
---
ipnum = take(addr) -> ip4_to_int();
`
	m, err := Parse(src)
	require.NoError(t, err)
	om := NewObjModel(m, nil)

	in := value.NewRecord(value.NewField("addr", value.NewIPAddr(net.ParseIP("10.0.0.1"))))
	out := om.EvalExp(in)
	f := out.Find("ipnum")
	require.NotNil(t, f)
	assert.Equal(t, int64(10<<24|0<<16|0<<8|1), f.Val.Int())
}
