package export

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ManifestName is the file written next to the final embeddings
const ManifestName = "manifest.yaml"

// WriteManifest writes run as YAML to path
func WriteManifest(path string, run *Run) error {
	data, err := yaml.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a manifest written by WriteManifest
func ReadManifest(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var run Run
	if err := yaml.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &run, nil
}
