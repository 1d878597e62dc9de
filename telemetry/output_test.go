package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/tsdpd/config"
	"github.com/pthm-cable/tsdpd/pair"
)

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	require.NoError(t, err)
	assert.Nil(t, om)

	assert.NoError(t, om.WriteStep(StepStats{}))
	assert.NoError(t, om.WritePerf(PerfStats{}, 1))
	assert.NoError(t, om.WriteConfig(nil))
	path, err := om.WriteSnapshot(&Snapshot{})
	assert.NoError(t, err)
	assert.Empty(t, path)
	assert.Empty(t, om.Dir())
	assert.NoError(t, om.Close())
}

func TestOutputManagerWritesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	om, err := NewOutputManager(dir)
	require.NoError(t, err)

	cfg, err := config.Load("")
	require.NoError(t, err)
	require.NoError(t, om.WriteConfig(cfg))

	st := sampleStore()
	for step := uint64(1); step <= 3; step++ {
		require.NoError(t, om.WriteStep(ComputeStepStats(st, step, float64(step)*0.1, pair.Result{})))
	}
	require.NoError(t, om.WritePerf(NewPerfCollector(4).Stats(), 3))
	_, err = om.WriteSnapshot(NewSnapshot(st, 3, 0.3))
	require.NoError(t, err)
	require.NoError(t, om.Close())

	data, err := os.ReadFile(filepath.Join(dir, "steps.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4, "one header and three rows")
	assert.True(t, strings.HasPrefix(lines[0], "step,time,"))
	assert.True(t, strings.HasPrefix(lines[3], "3,"))

	data, err = os.ReadFile(filepath.Join(dir, "perf.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "pair_pct")

	assert.FileExists(t, filepath.Join(dir, "config.yaml"))
	assert.FileExists(t, filepath.Join(dir, "snapshot_3.json"))
}
