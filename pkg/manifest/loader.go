package manifest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// profileFile is the on-disk shape of a manifest profile.
type profileFile struct {
	Capabilities []Manifest `yaml:"capabilities"`
}

// ParseYAML decodes a manifest profile from YAML bytes.
func ParseYAML(data []byte) ([]Manifest, error) {
	var pf profileFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("manifest: profile decode failed: %w", err)
	}
	return pf.Capabilities, nil
}

// LoadYAML reads a manifest profile file and builds a registry from it.
// The registry loads even when the consistency gate reports errors.
func LoadYAML(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read profile %s: %w", path, err)
	}
	manifests, err := ParseYAML(data)
	if err != nil {
		return nil, err
	}
	return NewRegistry(manifests), nil
}
