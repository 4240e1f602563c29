package value

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareNumericCoercion(t *testing.T) {
	ok, wellTyped := Compare(NewDigit(42), NewFloat(42.0), Eq)
	assert.True(t, wellTyped)
	assert.True(t, ok)
}

func TestCompareTypeMismatchIsWarningNotError(t *testing.T) {
	_, wellTyped := Compare(NewChars("42"), NewDigit(42), Eq)
	assert.False(t, wellTyped, "cross-discriminator compare must report not-well-typed, not error")
}

func TestInRangeClosedBoundaryEqualEndpoints(t *testing.T) {
	ok, wt := InRange(NewDigit(5), NewDigit(5), NewDigit(5))
	require.True(t, wt)
	assert.True(t, ok)

	ok, wt = InRange(NewDigit(4), NewDigit(5), NewDigit(5))
	require.True(t, wt)
	assert.False(t, ok)
}

func TestCoerceStringSubFieldTypeOverride(t *testing.T) {
	v, err := CoerceString("10.0.0.1", IPAddr)
	require.NoError(t, err)
	assert.Equal(t, IPAddr, v.Kind)
	assert.True(t, v.IP().Equal(net.ParseIP("10.0.0.1")))
}

func TestInferScalarBoolIntFloatChars(t *testing.T) {
	assert.Equal(t, Bool, InferScalar("true").Kind)
	assert.Equal(t, Digit, InferScalar("42").Kind)
	assert.Equal(t, Float, InferScalar("4.2").Kind)
	assert.Equal(t, Chars, InferScalar("foo").Kind)
}

func TestRecordSharedCellIdentity(t *testing.T) {
	constant := NewField("ERR", NewDigit(500))
	r := NewRecord()
	r.AppendShared(&constant)

	got := r.At(0)
	assert.Same(t, &constant, got, "shared cell must preserve pointer identity")
}

func TestRecordCloneKeepsSharingButIsolatesOwned(t *testing.T) {
	constant := NewField("OK", NewDigit(200))
	r := NewRecord(NewField("msg", NewChars("hi")))
	r.AppendShared(&constant)

	clone := r.Clone()
	assert.Same(t, &constant, clone.At(1))

	clone.Cells()[0].MakeMut().Val = NewChars("changed")
	assert.Equal(t, "hi", r.At(0).Val.Str(), "cloning an owned cell must not alias the source")
}

func TestDropIgnoredStripsTempFields(t *testing.T) {
	r := NewRecord(
		NewField("__scratch", NewIgnore()),
		NewField("msg", NewChars("hi")),
	)
	out := r.DropIgnored()
	assert.Equal(t, 1, out.Len())
	assert.Equal(t, "msg", out.At(0).Name)
}

func TestWithPathPrefixComposesNestedNames(t *testing.T) {
	arr := NewField("tags", NewArray([]Field{
		NewField("0", NewChars("a")),
		NewField("1", NewChars("b")),
	}))
	out := arr.WithPathPrefix("parent")
	assert.Equal(t, "parent/tags", out.Name)
	assert.Equal(t, "parent/tags/[0]", out.Val.Items()[0].Name)
}

func TestRenderLineFormats(t *testing.T) {
	r := NewRecord(
		NewField("src", NewIPAddr(net.ParseIP("10.0.0.1"))),
		NewField("cnt", NewDigit(42)),
		NewField("tag", NewChars("foo")),
	)
	assert.Equal(t, `{"src":"10.0.0.1","cnt":42,"tag":"foo"}`, RenderLine(r, FormatJSON))
	assert.Equal(t, `src=10.0.0.1 cnt=42 tag=foo`, RenderLine(r, FormatKV))
}
