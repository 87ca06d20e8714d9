package bridge

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Manifest represents the optional bridge.yaml configuration: the import
// URI and version, plus per-type name and default-property overrides keyed
// by the host struct type's name.
type Manifest struct {
	URI     string                  `yaml:"uri,omitempty"`
	Version string                  `yaml:"version,omitempty"`
	Types   map[string]TypeManifest `yaml:"types,omitempty"`
}

// TypeManifest overrides registration settings for one host type.
type TypeManifest struct {
	Name            string `yaml:"name,omitempty"`
	DefaultProperty string `yaml:"default_property,omitempty"`
}

// LoadManifest reads bridge.yaml from dir if present. An absent file yields
// a zero manifest, not an error.
func LoadManifest(dir string) (Manifest, error) {
	path := filepath.Join(dir, "bridge.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Manifest{}, nil
		}
		return Manifest{}, fmt.Errorf("failed to read bridge.yaml: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse bridge.yaml: %w", err)
	}
	return m, nil
}
