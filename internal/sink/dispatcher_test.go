package sink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wp-labs/wp-motor/internal/xerrors"
)

func replicaOn(name string, bh *BlackholeBackend) *Replica {
	rt := NewRuntime(bh, Config{Name: name, BatchSize: 1, Mode: xerrors.RobustNormal})
	return &Replica{Name: name, Runtime: rt, Ready: true}
}

func TestFixedDispatchConsistentHashSameIDSameReplica(t *testing.T) {
	a, b := NewBlackholeBackend(), NewBlackholeBackend()
	d := NewDispatcher("infra", KindFixed, nil, []*Replica{replicaOn("a", a), replicaOn("b", b)})

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Dispatch(RecUnit{ID: 42, Data: rec("x")}))
	}
	// All five sends with the same id must land on the same replica.
	total := a.Records() + b.Records()
	assert.Equal(t, int64(5), total)
	assert.True(t, a.Records() == 5 || b.Records() == 5)
}

func TestFlexiDispatchBroadcastsToAllAcceptingReplicas(t *testing.T) {
	a, b := NewBlackholeBackend(), NewBlackholeBackend()
	d := NewDispatcher("flexi", KindFlexi, nil, []*Replica{replicaOn("a", a), replicaOn("b", b)})

	require.NoError(t, d.Dispatch(RecUnit{ID: 1, Data: rec("x")}))
	assert.Equal(t, int64(1), a.Records())
	assert.Equal(t, int64(1), b.Records())
}

func TestFlexiDispatchZeroReadyReplicasIsNoop(t *testing.T) {
	d := NewDispatcher("flexi", KindFlexi, nil, nil)
	err := d.Dispatch(RecUnit{ID: 1, Data: rec("x")})
	assert.NoError(t, err)
}

func TestFlexiDispatchPerSinkFilterExcludesReplica(t *testing.T) {
	a, b := NewBlackholeBackend(), NewBlackholeBackend()
	ra := replicaOn("a", a)
	filt, err := ParseFilter(`msg == "keep"`)
	require.NoError(t, err)
	ra.Filter = filt
	rb := replicaOn("b", b)

	d := NewDispatcher("flexi", KindFlexi, nil, []*Replica{ra, rb})
	require.NoError(t, d.Dispatch(RecUnit{ID: 1, Data: rec("drop")}))
	assert.Equal(t, int64(0), a.Records())
	assert.Equal(t, int64(1), b.Records())
}

func TestFlexiDispatchHashesWithinSameNameInsteadOfBroadcasting(t *testing.T) {
	a0, a1 := NewBlackholeBackend(), NewBlackholeBackend()
	b := NewBlackholeBackend()
	d := NewDispatcher("flexi", KindFlexi, nil, []*Replica{replicaOn("a", a0), replicaOn("a", a1), replicaOn("b", b)})

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Dispatch(RecUnit{ID: 42, Data: rec("x")}))
	}
	// "a" has two parallel replicas sharing one name: all five sends with
	// the same id must land on exactly one of them, not both.
	assert.True(t, a0.Records() == 5 || a1.Records() == 5)
	assert.Equal(t, int64(0), a0.Records()+a1.Records()-5)
	// "b" is a distinct sink name and still receives every send.
	assert.Equal(t, int64(5), b.Records())
}

func TestDispatchPackageGroupsByReplicaForFixedGroup(t *testing.T) {
	a, b := NewBlackholeBackend(), NewBlackholeBackend()
	d := NewDispatcher("infra", KindFixed, nil, []*Replica{replicaOn("a", a), replicaOn("b", b)})

	pkg := Package{
		{ID: 1, Data: rec("x")},
		{ID: 1, Data: rec("y")},
		{ID: 2, Data: rec("z")},
	}
	require.NoError(t, d.DispatchPackage(pkg))
	assert.Equal(t, int64(3), a.Records()+b.Records())
}
