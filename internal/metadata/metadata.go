// Package metadata reads the optional sidecar file the test generator
// leaves next to each spec file.
package metadata

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Suffix is appended to a test file path to locate its sidecar.
const Suffix = ".meta.yaml"

// Sidecar is the generator's per-file metadata. Only the granularity is
// consumed here; generators are free to add provenance fields, which are
// ignored.
type Sidecar struct {
	Granularity string `yaml:"granularity"`
}

// PathFor returns the sidecar path for a test file.
func PathFor(testPath string) string {
	return testPath + Suffix
}

// Load reads the sidecar for a test file. A missing sidecar is the normal
// case and returns (nil, nil). A malformed sidecar returns an error so the
// caller can note it without aborting the run.
func Load(testPath string) (*Sidecar, error) {
	data, err := os.ReadFile(PathFor(testPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sidecar: %w", err)
	}

	var sc Sidecar
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse sidecar %s: %w", PathFor(testPath), err)
	}
	return &sc, nil
}
