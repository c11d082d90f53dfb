package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// FlagSeed maps conference id to feature name to enabled.
type FlagSeed map[string]map[string]bool

type flagSeedYAML struct {
	Conferences FlagSeed `yaml:"conferences"`
}

// LoadFlagSeed reads a feature-flag seed file:
//
//	conferences:
//	  conf-2026:
//	    grammar_check: true
//	    email_draft: false
func LoadFlagSeed(path string) (FlagSeed, error) {
	// #nosec G304 -- operator supplied seed file
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("op=config.LoadFlagSeed: %w", err)
	}
	return ParseFlagSeed(content)
}

// ParseFlagSeed decodes seed YAML. Feature names are validated by the caller.
func ParseFlagSeed(content []byte) (FlagSeed, error) {
	var doc flagSeedYAML
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("op=config.ParseFlagSeed: failed to parse YAML: %w", err)
	}
	if len(doc.Conferences) == 0 {
		return nil, fmt.Errorf("op=config.ParseFlagSeed: no conferences found")
	}
	return doc.Conferences, nil
}

// Conferences returns conference ids in sorted order.
func (s FlagSeed) Conferences() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
