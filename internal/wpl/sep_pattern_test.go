package wpl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileLiteralFastPath(t *testing.T) {
	p, err := CompileSepPattern(": ")
	require.NoError(t, err)
	assert.False(t, p.isGlob)
	assert.Equal(t, ": ", p.literal)
}

func TestCompileRejectsMultipleStars(t *testing.T) {
	_, err := CompileSepPattern("*foo*")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at most one '*'")
	assert.Contains(t, err.Error(), "^")
}

func TestCompileRejectsInternalParen(t *testing.T) {
	_, err := CompileSepPattern("(foo)bar")
	require.Error(t, err)
}

func TestCompileUnknownEscapeFallsBackToLiteral(t *testing.T) {
	p, err := CompileSepPattern(`\q`)
	require.NoError(t, err)
	assert.False(t, p.isGlob)
	assert.Equal(t, "q", p.literal)
}

func TestFindLiteralIdempotence(t *testing.T) {
	p, err := CompileSepPattern(": ")
	require.NoError(t, err)
	hay := "app: hello"
	offset, m, ok := p.Find(hay)
	require.True(t, ok)
	assert.Equal(t, 3, offset)
	// the matched separator slice must itself re-match as a separator
	// occurrence at offset 0 of the sliced haystack (idempotence, §8.1).
	again := hay[offset : offset+m.Consumed]
	offset2, _, ok2 := p.Find(again)
	require.True(t, ok2)
	assert.Equal(t, 0, offset2)
}

func TestStarAtStartMatchesZeroChars(t *testing.T) {
	p, err := CompileSepPattern("*")
	require.NoError(t, err)
	offset, m, ok := p.Find("anything")
	require.True(t, ok)
	assert.Equal(t, 0, offset)
	assert.Equal(t, 0, m.Consumed)
}

func TestStarIsNonGreedy(t *testing.T) {
	p, err := CompileSepPattern("*,")
	require.NoError(t, err)
	offset, m, ok := p.Find("a,b,c")
	require.True(t, ok)
	// non-greedy: the first comma terminates the separator, not the last.
	// The earliest match starts at offset 0, so the separator is "a,".
	assert.Equal(t, 0, offset)
	assert.Equal(t, 2, m.Consumed)
}

func TestWhitespaceClassConsumesOneOrMore(t *testing.T) {
	p, err := CompileSepPattern(`\s`)
	require.NoError(t, err)
	offset, m, ok := p.Find("word   next")
	require.True(t, ok)
	assert.Equal(t, 4, offset)
	assert.Equal(t, 3, m.Consumed)
}

func TestPreserveGroupNotConsumed(t *testing.T) {
	p, err := CompileSepPattern(": (ok)")
	require.NoError(t, err)
	offset, m, ok := p.Find("status: ok")
	require.True(t, ok)
	assert.Equal(t, 6, offset)
	assert.Equal(t, 2, m.Consumed, "preserve group must not be consumed")
	assert.Greater(t, m.Matched, m.Consumed)
}

func TestPreserveGroupMustMatchOrSeparatorRejected(t *testing.T) {
	p, err := CompileSepPattern(": (ok)")
	require.NoError(t, err)
	_, _, ok := p.Find("status: bad")
	assert.False(t, ok)
}

func TestLiteralFirstFastPathDoesNotRegressOnRepeatedPrefix(t *testing.T) {
	p, err := CompileSepPattern("ab*cd")
	require.NoError(t, err)
	hay := strings.Repeat("ab", 50) + "cd"
	offset, _, ok := p.Find(hay)
	require.True(t, ok)
	assert.Equal(t, 0, offset)
}

func TestUTF8SafeGlobScan(t *testing.T) {
	p, err := CompileSepPattern("é*€")
	require.NoError(t, err)
	hay := "café€"
	offset, m, ok := p.Find(hay)
	require.True(t, ok)
	assert.Equal(t, len("caf"), offset)
	assert.Equal(t, len("é€"), m.Consumed)
}
