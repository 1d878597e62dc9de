package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/tsdpd/config"
)

// OutputManager writes the run directory: steps.csv, perf.csv, the resolved
// configuration and particle snapshots.
type OutputManager struct {
	dir       string
	stepsFile *os.File
	perfFile  *os.File

	stepsHeaderWritten bool
	perfHeaderWritten  bool
}

// NewOutputManager creates dir and opens the CSV files.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	f, err := os.Create(filepath.Join(dir, "steps.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating steps.csv: %w", err)
	}
	om.stepsFile = f

	f, err = os.Create(filepath.Join(dir, "perf.csv"))
	if err != nil {
		om.stepsFile.Close()
		return nil, fmt.Errorf("creating perf.csv: %w", err)
	}
	om.perfFile = f

	return om, nil
}

// WriteConfig saves the resolved configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteStep appends a row to steps.csv.
func (om *OutputManager) WriteStep(stats StepStats) error {
	if om == nil {
		return nil
	}
	if err := writeRow(om.stepsFile, []StepStats{stats}, &om.stepsHeaderWritten); err != nil {
		return fmt.Errorf("writing steps: %w", err)
	}
	return nil
}

// WritePerf appends a row to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd uint64) error {
	if om == nil {
		return nil
	}
	if err := writeRow(om.perfFile, []PerfStatsCSV{stats.ToCSV(windowEnd)}, &om.perfHeaderWritten); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// WriteSnapshot saves a particle snapshot into the output directory.
func (om *OutputManager) WriteSnapshot(s *Snapshot) (string, error) {
	if om == nil {
		return "", nil
	}
	return SaveSnapshot(s, om.dir)
}

// writeRow marshals records, with the header on the first write only.
func writeRow(f *os.File, records any, headerWritten *bool) error {
	if *headerWritten {
		return gocsv.MarshalWithoutHeaders(records, f)
	}
	if err := gocsv.Marshal(records, f); err != nil {
		return err
	}
	*headerWritten = true
	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}
	var firstErr error
	for _, f := range []*os.File{om.stepsFile, om.perfFile} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
