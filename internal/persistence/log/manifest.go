package log

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"corridor.ai/internal/sim/path"
	"corridor.ai/internal/sim/tuning"
)

const ManifestName = "run.json"

// Manifest records what a replay needs besides the tick log: the effective
// tuning and the start cursor.
type Manifest struct {
	RunID           string        `json:"run_id"`
	ProtocolVersion string        `json:"protocol_version"`
	StartedAt       time.Time     `json:"started_at"`
	Start           path.Cursor   `json:"start"`
	Tuning          tuning.Tuning `json:"tuning"`
}

// WriteManifest writes <runDir>/run.json atomically.
func WriteManifest(runDir string, m Manifest) error {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	dst := filepath.Join(runDir, ManifestName)
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}

func ReadManifest(runDir string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(filepath.Join(runDir, ManifestName))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("%s: %w", ManifestName, err)
	}
	return m, nil
}
