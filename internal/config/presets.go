// Package config loads sensitivity presets, experiment settings and
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPresetsPath    = "configs/sensitivity_presets.yml"
	DefaultExperimentPath = "configs/experiment.yml"
)

var ErrUnknownPreset = errors.New("unknown preset")

// Preset holds default sensitivity parameters. Zero values and nil pointers
// mean the field was not set.
type Preset struct {
	Description string    `yaml:"description"`
	Days        int       `yaml:"days"`
	UsersPerDay []int     `yaml:"users_per_day"`
	Uplifts     []float64 `yaml:"uplifts"`
	Repeats     int       `yaml:"repeats"`
	Seed        *int64    `yaml:"seed"`
	Alpha       float64   `yaml:"alpha"`
	PowerTarget *float64  `yaml:"power_target"`
}

type Presets struct {
	Presets map[string]Preset `yaml:"presets"`
}

func LoadPresets(path string) (*Presets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read presets: %w", err)
	}
	return ParsePresets(data)
}

func ParsePresets(data []byte) (*Presets, error) {
	var p Presets
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse presets: %w", err)
	}
	if p.Presets == nil {
		return nil, fmt.Errorf("invalid preset file: missing 'presets' key")
	}
	return &p, nil
}

// Names returns the preset names in sorted order.
func (p *Presets) Names() []string {
	names := make([]string, 0, len(p.Presets))
	for name := range p.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Presets) Preset(name string) (Preset, error) {
	preset, ok := p.Presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w '%s'. Available presets: %s",
			ErrUnknownPreset, name, strings.Join(p.Names(), ", "))
	}
	return preset, nil
}
