package ragdoll

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed presets/*.yaml
var presetFS embed.FS

// BoneProportion is a bone of a preset, sized relative to the ragdoll.
type BoneProportion struct {
	Name      string     `yaml:"name"`
	Parent    string     `yaml:"parent"`
	Attach    float64    `yaml:"attach"`
	Length    float64    `yaml:"length"`
	Width     float64    `yaml:"width"`
	Mass      float64    `yaml:"mass"`
	Angle     float64    `yaml:"angle"`
	Limits    [2]float64 `yaml:"limits"`
	Stiffness float64    `yaml:"stiffness"`
	Damping   float64    `yaml:"damping"`
}

type Preset struct {
	Name  string           `yaml:"name"`
	Bones []BoneProportion `yaml:"bones"`
}

// LoadPreset reads a named humanoid preset (adult, child, cartoon).
func LoadPreset(name string) (Preset, error) {
	data, err := presetFS.ReadFile("presets/" + name + ".yaml")
	if err != nil {
		return Preset{}, fmt.Errorf("ragdoll: unknown preset %q", name)
	}
	var p Preset
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Preset{}, fmt.Errorf("ragdoll: preset %s: %w", name, err)
	}
	return p, nil
}

// PresetNames lists the embedded presets.
func PresetNames() []string {
	entries, err := presetFS.ReadDir("presets")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Expand sizes the preset for a ragdoll of the given height and total mass.
// Masses are normalized so the bones add up to mass exactly.
func (p Preset) Expand(height, mass float64) []Bone {
	sum := 0.0
	for _, b := range p.Bones {
		sum += b.Mass
	}
	if sum <= 0 {
		sum = 1
	}
	bones := make([]Bone, len(p.Bones))
	for i, b := range p.Bones {
		bones[i] = Bone{
			Name:       b.Name,
			Parent:     b.Parent,
			Attach:     b.Attach,
			Length:     b.Length * height,
			Width:      b.Width * height,
			Mass:       b.Mass / sum * mass,
			Angle:      b.Angle,
			LowerLimit: b.Limits[0],
			UpperLimit: b.Limits[1],
			Stiffness:  b.Stiffness,
			Damping:    b.Damping,
		}
	}
	return bones
}
