package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wp-labs/wp-motor/internal/config"
	"github.com/wp-labs/wp-motor/internal/sink"
	"github.com/wp-labs/wp-motor/internal/value"
	"github.com/wp-labs/wp-motor/internal/xerrors"
)

func TestBuildGroupRouteBlackholeDispatchesAndMatches(t *testing.T) {
	g := config.GroupConfig{
		Name:  "g1",
		Rule:  []string{"access_*"},
		OML:   []string{"*"},
		Sinks: []config.SinkConfig{{Name: "bh", Kind: "blackhole"}},
	}
	route, err := buildGroupRoute(g, sink.KindFlexi, xerrors.RobustNormal, t.TempDir(), nil, nil, nil)
	require.NoError(t, err)

	assert.True(t, route.matches("access_log", "anything"))
	assert.False(t, route.matches("other_rule", "anything"))

	rec := value.NewRecord(value.NewField("msg", value.NewChars("hi")))
	unit := sink.RecUnit{ID: 1, Meta: sink.ProcMeta{Rule: "access_log", OML: "m"}, Data: rec}
	require.NoError(t, route.dispatcher.Dispatch(unit))
}

func TestBuildGroupRouteParallelFansOutReplicasPerSink(t *testing.T) {
	g := config.GroupConfig{
		Name:     "g1",
		Parallel: 3,
		Sinks: []config.SinkConfig{
			{Name: "bh1", Kind: "blackhole"},
			{Name: "bh2", Kind: "blackhole"},
		},
	}
	route, err := buildGroupRoute(g, sink.KindFlexi, xerrors.RobustNormal, t.TempDir(), nil, nil, nil)
	require.NoError(t, err)
	require.Len(t, route.dispatcher.Replicas, 6)

	counts := map[string]int{}
	for _, r := range route.dispatcher.Replicas {
		counts[r.Name]++
	}
	assert.Equal(t, 3, counts["bh1"])
	assert.Equal(t, 3, counts["bh2"])
}

func TestBuildGroupRouteRejectsUnknownSinkKind(t *testing.T) {
	g := config.GroupConfig{
		Name:  "g1",
		Sinks: []config.SinkConfig{{Name: "s", Kind: "nonsense"}},
	}
	_, err := buildGroupRoute(g, sink.KindFlexi, xerrors.RobustNormal, t.TempDir(), nil, nil, nil)
	require.Error(t, err)
}

func TestGlobListMatchEmptyMeansMatchAll(t *testing.T) {
	assert.True(t, globListMatch(nil, "anything"))
	assert.True(t, globListMatch([]string{"a_*"}, "a_1"))
	assert.False(t, globListMatch([]string{"a_*"}, "b_1"))
}
