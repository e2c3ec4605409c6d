package detect

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"go.yaml.in/yaml/v3"
)

// Rules extends the built-in detector vocabulary from a project YAML file.
// Entries are additive; the defaults always stay in force.
type Rules struct {
	// Accessors adds member names treated as persisted-state reads.
	Accessors []string `yaml:"accessors"`
	// AssociationMutators adds association methods treated as persisting.
	AssociationMutators []string `yaml:"association_mutators"`
	// QueryMethods adds storage lookup/filter method names.
	QueryMethods []string `yaml:"query_methods"`
	// ConsumerSuffixes adds class-name suffixes treated as external consumers.
	ConsumerSuffixes []string `yaml:"consumer_suffixes"`
}

// LoadRules reads a detector rules file. Decoding is strict so a typo in a
// key fails loudly instead of silently dropping vocabulary.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading detector rules: %w", err)
	}

	var rules Rules
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rules); err != nil {
		if errors.Is(err, io.EOF) {
			return &Rules{}, nil
		}
		return nil, fmt.Errorf("parsing detector rules %s: %w", path, err)
	}
	return &rules, nil
}
