package cost

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Artifact filenames written per folder. Later modes read them back, so the
// names are part of the on-disk contract.
const (
	BaselineArtifact = "infracost-base.json"
	NewArtifact      = "infracost-new.json"
	DeltaArtifact    = "cost-delta.json"
	RollupArtifact   = "cost-rollup.json"
)

// ReadSnapshot reads a snapshot artifact from disk.
func ReadSnapshot(path string) (Snapshot, error) {
	var snap Snapshot
	data, err := os.ReadFile(path)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("malformed snapshot %s: %w", path, err)
	}
	return snap, nil
}

// WriteSnapshot writes a snapshot artifact.
func WriteSnapshot(path string, snap Snapshot) error {
	return writeJSON(path, snap)
}

// ReadDelta reads a delta artifact from disk.
func ReadDelta(path string) (Delta, error) {
	var delta Delta
	data, err := os.ReadFile(path)
	if err != nil {
		return delta, err
	}
	if err := json.Unmarshal(data, &delta); err != nil {
		return delta, fmt.Errorf("malformed delta %s: %w", path, err)
	}
	return delta, nil
}

// WriteDelta writes a delta artifact.
func WriteDelta(path string, delta Delta) error {
	return writeJSON(path, delta)
}

// WriteRollup writes the aggregated rollup artifact.
func WriteRollup(path string, rollup Rollup) error {
	return writeJSON(path, rollup)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	return nil
}
