package sink

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wp-labs/wp-motor/internal/value"
	"github.com/wp-labs/wp-motor/internal/xerrors"
)

func rec(msg string) *value.Record {
	return value.NewRecord(value.NewField("msg", value.NewChars(msg)))
}

// failingBackend errors on every SinkRecords call — used to exercise the
// robustness-policy / rescue-swap path.
type failingBackend struct{ *BlackholeBackend }

func (f failingBackend) SinkRecords(recs []*value.Record) error {
	return fmt.Errorf("boom")
}

func TestRuntimeFlushesAtBatchSizeThreshold(t *testing.T) {
	bh := NewBlackholeBackend()
	rt := NewRuntime(bh, Config{Name: "t", BatchSize: 4, Mode: xerrors.RobustNormal})

	require.NoError(t, rt.SendPackageToSink([]*value.Record{rec("a"), rec("b")}))
	assert.Equal(t, int64(0), bh.Records())
	assert.Equal(t, 2, rt.PendingLen())

	require.NoError(t, rt.SendPackageToSink([]*value.Record{rec("c"), rec("d")}))
	assert.Equal(t, int64(4), bh.Records())
	assert.Equal(t, 0, rt.PendingLen())
}

func TestRuntimeBypassesPendingBufferForLargePackage(t *testing.T) {
	bh := NewBlackholeBackend()
	rt := NewRuntime(bh, Config{Name: "t", BatchSize: 4, Mode: xerrors.RobustNormal})

	big := []*value.Record{rec("a"), rec("b"), rec("c"), rec("d"), rec("e")}
	require.NoError(t, rt.SendPackageToSink(big))
	assert.Equal(t, int64(5), bh.Records())
	assert.Equal(t, 0, rt.PendingLen())
}

func TestRuntimeRescueSwapOnFailureThenReconnect(t *testing.T) {
	root := t.TempDir()
	failing := failingBackend{NewBlackholeBackend()}
	badSinks := make(chan BadSink, 1)

	rt := NewRuntime(failing, Config{
		Name:       "primary",
		BatchSize:  2,
		Mode:       xerrors.RobustNormal,
		RescueRoot: root,
		BadSinks:   badSinks,
	})

	require.NoError(t, rt.SendPackageToSink([]*value.Record{rec("a"), rec("b")}))

	select {
	case bad := <-badSinks:
		assert.Equal(t, "primary", bad.Name)
		assert.Error(t, bad.Err)
	default:
		t.Fatal("expected a bad-sink report after the failed send")
	}

	if _, ok := rt.Backend().(*RescueBackend); !ok {
		t.Fatalf("expected backend to have swapped to a RescueBackend, got %T", rt.Backend())
	}

	fresh := NewBlackholeBackend()
	require.NoError(t, rt.Reconnect(fresh))
	assert.Same(t, fresh, rt.Backend())
}

func TestRuntimeTolerantModeDropsSilently(t *testing.T) {
	failing := failingBackend{NewBlackholeBackend()}
	rt := NewRuntime(failing, Config{Name: "t", BatchSize: 1, Mode: xerrors.RobustTolerant})
	require.NoError(t, rt.SendPackageToSink([]*value.Record{rec("a")}))
}

func TestRuntimeThrowModePropagatesError(t *testing.T) {
	failing := failingBackend{NewBlackholeBackend()}
	rt := NewRuntime(failing, Config{Name: "t", BatchSize: 1, Mode: xerrors.RobustThrow})
	err := rt.SendPackageToSink([]*value.Record{rec("a")})
	assert.Error(t, err)
}
