package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadRuleSetMatchesFirstDeclaredRule(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "models.wpl", `name: access
---
field ts type chars sep " ";
field msg type chars;
===
name: fallback
---
field raw type chars;`)

	rs, err := LoadRuleSet(path, nil, nil)
	require.NoError(t, err)

	rec, name, ok := rs.MatchFirst("2024 hello world")
	require.True(t, ok)
	assert.Equal(t, "access", name)
	assert.Equal(t, "2024", rec.Find("ts").Val.Str())
}

func TestRuleSetMatchFirstNoRuleAccepts(t *testing.T) {
	rs := &RuleSet{}
	_, _, ok := rs.MatchFirst("anything")
	assert.False(t, ok)
}

func TestNilRuleSetMatchFirstIsSafe(t *testing.T) {
	var rs *RuleSet
	_, _, ok := rs.MatchFirst("anything")
	assert.False(t, ok)
}
