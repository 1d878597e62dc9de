package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/tsdpd/state"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the complete particle state of a run, enough to restart it.
type Snapshot struct {
	Version   int    `json:"version"`
	Seed      uint64 `json:"seed"`
	Dimension int    `json:"dimension"`

	BoxLo r3.Vec `json:"box_lo"`
	BoxHi r3.Vec `json:"box_hi"`

	Step uint64  `json:"step"`
	Time float64 `json:"time"`

	Particles []ParticleState `json:"particles"`
}

// ParticleState holds one particle.
type ParticleState struct {
	Type int       `json:"type"`
	X    r3.Vec    `json:"x"`
	V    r3.Vec    `json:"v"`
	Rho  float64   `json:"rho"`
	E    float64   `json:"e"`
	C    []float64 `json:"c,omitempty"`
	Cd   []int     `json:"cd,omitempty"`
}

// NewSnapshot captures the local particles of st. Species slices are copied.
func NewSnapshot(st *state.Store, step uint64, time float64) *Snapshot {
	s := &Snapshot{
		Version:   SnapshotVersion,
		Step:      step,
		Time:      time,
		Particles: make([]ParticleState, st.NLocal),
	}
	for i := range s.Particles {
		s.Particles[i] = ParticleState{
			Type: st.Type[i],
			X:    st.X[i],
			V:    st.V[i],
			Rho:  st.Rho[i],
			E:    st.E[i],
			C:    append([]float64(nil), st.C[i]...),
			Cd:   append([]int(nil), st.Cd[i]...),
		}
	}
	return s
}

// SaveSnapshot writes a snapshot to dir and returns the file path.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("snapshot_%d.json", snapshot.Step))

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, SnapshotVersion)
	}
	return &snapshot, nil
}
