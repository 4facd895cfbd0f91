package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PatternEntry is one YAML-configured template pattern, the file-based
// alternative to repeating --pattern on the command line.
type PatternEntry struct {
	Tag  uint8  `yaml:"tag"`
	Name string `yaml:"name"`
	Expr string `yaml:"pattern"`
}

// PatternSet is the top-level shape of a pattern-set YAML file.
type PatternSet struct {
	Patterns []PatternEntry `yaml:"patterns"`
}

// LoadPatternSet reads and parses a YAML pattern-set file.
func LoadPatternSet(path string) (*PatternSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pattern set %s: %w", path, err)
	}
	var set PatternSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parsing pattern set %s: %w", path, err)
	}
	return &set, nil
}

// Strings renders every entry back into the "T:name:item,..." form
// pkg/pattern.Compile accepts, so a loaded pattern set can be merged
// with --pattern values from the command line.
func (s *PatternSet) Strings() []string {
	out := make([]string, len(s.Patterns))
	for i, p := range s.Patterns {
		if p.Name != "" {
			out[i] = fmt.Sprintf("%d:%s:%s", p.Tag, p.Name, p.Expr)
		} else {
			out[i] = fmt.Sprintf("%d:%s", p.Tag, p.Expr)
		}
	}
	return out
}
