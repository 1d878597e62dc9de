package telemetry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestSnapshotSaveLoad(t *testing.T) {
	st := sampleStore()
	snap := NewSnapshot(st, 1000, 0.1)
	snap.Seed = 42
	snap.Dimension = 3
	snap.BoxHi = r3.Vec{X: 1, Y: 1, Z: 1}

	st.C[0][0] = 99
	assert.Equal(t, 0.5, snap.Particles[0].C[0], "species are copied")

	path, err := SaveSnapshot(snap, filepath.Join(t.TempDir(), "snaps"))
	require.NoError(t, err)
	assert.Equal(t, "snapshot_1000.json", filepath.Base(path))

	back, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, snap, back)
}

func TestSnapshotSkipsGhosts(t *testing.T) {
	st := sampleStore()
	st.NLocal = 1
	snap := NewSnapshot(st, 0, 0)
	require.Len(t, snap.Particles, 1)
	assert.Equal(t, r3.Vec{X: 2}, snap.Particles[0].V)
}

func TestLoadSnapshotErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadSnapshot(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0644))
	_, err = LoadSnapshot(bad)
	assert.Error(t, err)

	old := filepath.Join(dir, "old.json")
	require.NoError(t, os.WriteFile(old, []byte(`{"version": 0}`), 0644))
	_, err = LoadSnapshot(old)
	assert.Error(t, err)
}
