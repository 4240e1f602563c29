package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wp-labs/wp-motor/internal/value"
)

func TestLoadModelSetSingleFileSplitOnTripleEquals(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "models.oml", `name: first
rule: access
---
out = take(msg);
===
name: second
rule: *
---
out = take(msg);`)

	ms, err := LoadModelSet(path, nil, nil)
	require.NoError(t, err)
	require.Len(t, ms.models, 2)
	assert.Equal(t, "first", ms.models[0].model.Name)
	assert.Equal(t, "second", ms.models[1].model.Name)
}

func TestSelectForRuleExactThenGlobThenWildcard(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "models.oml", `name: exact
rule: access_log
---
out = take(msg);
===
name: glob
rule: http_*
---
out = take(msg);
===
name: catchall
rule: *
---
out = take(msg);`)

	ms, err := LoadModelSet(path, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "exact", ms.SelectForRule("access_log").model.Name)
	assert.Equal(t, "glob", ms.SelectForRule("http_200").model.Name)
	assert.Equal(t, "catchall", ms.SelectForRule("nothing_else").model.Name)
}

func TestSelectForRuleSkipsDisabledModels(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "models.oml", `name: off
rule: access_log
enable: false
---
out = take(msg);`)

	ms, err := LoadModelSet(path, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, ms.SelectForRule("access_log"))
}

func TestNilModelSetSelectForRuleIsSafe(t *testing.T) {
	var ms *ModelSet
	assert.Nil(t, ms.SelectForRule("anything"))
}

func TestLoadModelSetDirectoryOneFilePerModel(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.oml", "name: a\nrule: a\n---\nout = take(msg);\n")
	writeFile(t, dir, "b.oml", "name: b\nrule: b\n---\nout = take(msg);\n")

	ms, err := LoadModelSet(dir, nil, nil)
	require.NoError(t, err)
	require.Len(t, ms.models, 2)
	assert.Equal(t, "a", ms.models[0].model.Name)
	assert.Equal(t, "b", ms.models[1].model.Name)
}

func TestLoadModelSetForwardHookWired(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "models.oml", `name: reinjects
rule: *
---
out = take(msg) -> split_to_src("reinject", ",");`)

	var forwarded []string
	forward := func(channel string, payload []byte) error {
		forwarded = append(forwarded, channel+":"+string(payload))
		return nil
	}
	ms, err := LoadModelSet(path, nil, forward)
	require.NoError(t, err)

	in := value.NewRecord(value.NewField("msg", value.NewChars("a,b")))
	ms.models[0].obj.EvalExp(in)
	assert.Equal(t, []string{"reinject:a", "reinject:b"}, forwarded)
}
