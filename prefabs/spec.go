package prefabs

import (
	"fmt"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/motionsim/collision"
	"github.com/milk9111/motionsim/force"
	"github.com/milk9111/motionsim/physics"
	"github.com/milk9111/motionsim/ragdoll"
	"github.com/milk9111/motionsim/softbody"
	"gopkg.in/yaml.v3"
)

func LoadSpec[T any](filename string) (T, error) {
	var zero T
	data, err := Load(filename)
	if err != nil {
		return zero, fmt.Errorf("prefabs: load %s: %w", filename, err)
	}

	var spec T
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return zero, fmt.Errorf("prefabs: unmarshal %s: %w", filename, err)
	}

	return spec, nil
}

// CompositionData is the simulation setup of one composition.
type CompositionData struct {
	ID     string              `yaml:"id"`
	Frames int                 `yaml:"frames"`
	Space  physics.SpaceConfig `yaml:"space"`
	Fields []force.Field       `yaml:"fields"`
	// StrengthScripts maps a field id to a tengo script file that becomes
	// the field's strength expression.
	StrengthScripts map[string]string `yaml:"strength_scripts"`
	// Groups are named collision filters layers can refer to.
	Groups map[string]collision.Filter `yaml:"groups"`
}

// UnmarshalYAML starts from the default space so a scene only lists what
// it changes.
func (c *CompositionData) UnmarshalYAML(value *yaml.Node) error {
	type plain CompositionData
	p := plain{Space: physics.DefaultSpaceConfig()}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*c = CompositionData(p)
	return nil
}

// SpaceOverride replaces composition space settings for one layer.
type SpaceOverride struct {
	Gravity *cp.Vector `yaml:"gravity"`
}

// LayerData is one simulated layer. Exactly one of the body payloads must
// be set; the entity it creates takes the layer id.
type LayerData struct {
	ID    string         `yaml:"id"`
	Group string         `yaml:"group"`
	Space *SpaceOverride `yaml:"space"`

	RigidBody *physics.RigidBodyConfig `yaml:"rigid_body"`
	SoftBody  *softbody.Config         `yaml:"soft_body"`
	Cloth     *softbody.ClothConfig    `yaml:"cloth"`
	Ring      *softbody.RingConfig     `yaml:"ring"`
	Rope      *softbody.RopeConfig     `yaml:"rope"`
	Ragdoll   *ragdoll.Config          `yaml:"ragdoll"`
}

func (l LayerData) payloads() int {
	n := 0
	for _, set := range []bool{l.RigidBody != nil, l.SoftBody != nil, l.Cloth != nil, l.Ring != nil, l.Rope != nil, l.Ragdoll != nil} {
		if set {
			n++
		}
	}
	return n
}

// Scene is a scene file: a composition, its layers and the joints between
// them.
type Scene struct {
	Composition CompositionData       `yaml:"composition"`
	Layers      []LayerData           `yaml:"layers"`
	Joints      []physics.JointConfig `yaml:"joints"`
}

func LoadScene(filename string) (*Scene, error) {
	scene, err := LoadSpec[Scene](filename)
	if err != nil {
		return nil, err
	}
	return &scene, nil
}
