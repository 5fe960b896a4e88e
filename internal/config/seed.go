package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Seed is the provisioning file applied once at startup
type Seed struct {
	Signals   []SignalSeed   `yaml:"signals"`
	Incidents []IncidentSeed `yaml:"incidents"`
}

// SignalSeed provisions one signal. Phase and Duration are applied after
// creation when set; Confined and Online default to the new-signal state.
type SignalSeed struct {
	ID       string  `yaml:"id"`
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	Phase    string  `yaml:"phase"`
	Duration int     `yaml:"duration"`
	Confined bool    `yaml:"confined"`
	Online   *bool   `yaml:"online"`
}

// IncidentSeed reports one incident
type IncidentSeed struct {
	Type     string  `yaml:"type"`
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	Severity int     `yaml:"severity"`
}

// LoadSeed reads a seed file; unknown keys are rejected
func LoadSeed(path string) (*Seed, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: seed file load err: %w", err)
	}
	return ParseSeed(file)
}

// ParseSeed decodes seed YAML
func ParseSeed(data []byte) (*Seed, error) {
	var s Seed
	if err := yaml.UnmarshalStrict(data, &s); err != nil {
		return nil, fmt.Errorf("config: seed parse err: %w", err)
	}
	return &s, nil
}
