package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadManifest reads a pipeline definition from a YAML file.
func LoadManifest(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var pipeline Pipeline
	if err := yaml.Unmarshal(data, &pipeline); err != nil {
		return nil, fmt.Errorf("parse pipeline manifest %s: %w", path, err)
	}

	if err := pipeline.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline manifest %s: %w", path, err)
	}
	return &pipeline, nil
}
