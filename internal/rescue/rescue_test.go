package rescue

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterLockToDatRenameIsIdempotent(t *testing.T) {
	root := t.TempDir()
	w, err := NewWriter(root, "primary")
	require.NoError(t, err)
	require.NoError(t, w.WriteLine(`{"msg":"hello"}`))

	lockPath := w.Path()
	assert.True(t, filepath.Ext(lockPath) == ".lock")

	require.NoError(t, w.Stop())
	datPath := w.Path()
	assert.Equal(t, ".dat", filepath.Ext(datPath))
	_, err = os.Stat(datPath)
	assert.NoError(t, err)

	// Calling Stop again (simulating a destructor path racing the explicit
	// stop) must be a no-op, not an error or a second rename attempt.
	require.NoError(t, w.Stop())
}

func TestStopNeverRenamesNonLockPath(t *testing.T) {
	root := t.TempDir()
	w, err := NewWriter(root, "primary")
	require.NoError(t, err)
	require.NoError(t, w.Stop())
	before := w.Path()
	require.NoError(t, w.Stop())
	assert.Equal(t, before, w.Path())
}

func TestScanSummarizesBySinkAndSkipsLockFiles(t *testing.T) {
	root := t.TempDir()

	w1, err := NewWriter(root, "primary")
	require.NoError(t, err)
	require.NoError(t, w1.WriteLine("a"))
	require.NoError(t, w1.WriteLine("b"))
	require.NoError(t, w1.Stop())

	w2, err := NewWriter(root, "primary")
	require.NoError(t, err)
	require.NoError(t, w2.WriteLine("c"))
	// left as .lock deliberately — scanner must ignore it.

	sum, err := Scan(root)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.TotalFiles)
	assert.Equal(t, int64(2), sum.TotalLines)

	primary := sum.BySink["primary/primary"]
	require.NotNil(t, primary)
	assert.Equal(t, int64(1), primary.Count)
	assert.Equal(t, int64(2), primary.Lines)
}
