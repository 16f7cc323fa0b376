// Package ragdoll lays out bone hierarchies for physics. It does not create
// bodies itself: Build returns a plan of capsule bones and pivot links that
// the world turns into rigid bodies and joints.
package ragdoll

import (
	"fmt"
	"math"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/motionsim/collision"
	"github.com/milk9111/motionsim/common"
	"github.com/milk9111/motionsim/shape"
)

const (
	DefaultHeight = 180.0
	DefaultMass   = 70.0
	// maxJointHz is the angular spring frequency of a joint with stiffness 1.
	maxJointHz = 4.0
)

// Bone is one segment of a ragdoll. Angle is in degrees, relative to the
// parent bone (or, for the root, to the ragdoll rotation). LowerLimit and
// UpperLimit bound the swing away from that rest angle, also in degrees.
// Attach is where along the parent the bone starts: 0 at the parent's
// start, 1 at its end. Stiffness and Damping are fractions in [0, 1].
type Bone struct {
	Name       string  `json:"name" yaml:"name"`
	Parent     string  `json:"parent,omitempty" yaml:"parent"`
	Attach     float64 `json:"attach" yaml:"attach"`
	Length     float64 `json:"length" yaml:"length"`
	Width      float64 `json:"width" yaml:"width"`
	Mass       float64 `json:"mass" yaml:"mass"`
	Angle      float64 `json:"angle" yaml:"angle"`
	LowerLimit float64 `json:"lower_limit" yaml:"lower_limit"`
	UpperLimit float64 `json:"upper_limit" yaml:"upper_limit"`
	Stiffness  float64 `json:"stiffness" yaml:"stiffness"`
	Damping    float64 `json:"damping" yaml:"damping"`
}

// Config describes a ragdoll. Either Preset or Bones is used; Bones wins
// when both are set.
type Config struct {
	ID            string    `json:"id" yaml:"id"`
	Preset        string    `json:"preset,omitempty" yaml:"preset"`
	Bones         []Bone    `json:"bones,omitempty" yaml:"bones"`
	Height        float64   `json:"height" yaml:"height"`
	Mass          float64   `json:"mass" yaml:"mass"`
	Position      cp.Vector `json:"position" yaml:"position"`
	Rotation      float64   `json:"rotation" yaml:"rotation"`
	SelfCollision bool      `json:"self_collision" yaml:"self_collision"`
	// Material applies to every bone; nil uses shape.DefaultMaterial.
	Material *shape.Material `json:"material,omitempty" yaml:"material"`
	// Filter applies to every bone. Without SelfCollision the group is
	// replaced by one unique to the ragdoll.
	Filter collision.Filter `json:"filter" yaml:"filter"`
}

// BonePlan is a bone placed in the world. The capsule runs from Start to
// End with radius Width/2.
type BonePlan struct {
	Name   string
	Index  int
	Parent int
	Start  cp.Vector
	End    cp.Vector
	Center cp.Vector
	Angle  float64
	Length float64
	Width  float64
	Mass   float64
}

// LinkPlan joins a child bone to its parent at Anchor. Limits are radians
// relative to the rest pose. SpringStiffness and SpringDamping are absolute
// angular spring coefficients.
type LinkPlan struct {
	Parent          int
	Child           int
	Anchor          cp.Vector
	LowerLimit      float64
	UpperLimit      float64
	SpringStiffness float64
	SpringDamping   float64
}

type Plan struct {
	ID            string
	Bones         []BonePlan
	Links         []LinkPlan
	SelfCollision bool
}

// Resolve returns the bone list of cfg, expanding a preset if needed.
func (c Config) Resolve() ([]Bone, error) {
	if len(c.Bones) > 0 {
		return c.Bones, nil
	}
	name := c.Preset
	if name == "" {
		name = "adult"
	}
	p, err := LoadPreset(name)
	if err != nil {
		return nil, err
	}
	height, mass := c.Height, c.Mass
	if height == 0 {
		height = DefaultHeight
	}
	if mass == 0 {
		mass = DefaultMass
	}
	return p.Expand(height, mass), nil
}

// Build validates the bones and places them. Parents must come before their
// children and exactly one bone has no parent.
func Build(cfg Config) (Plan, error) {
	if cfg.ID == "" {
		return Plan{}, common.Invalid("ragdoll.id", cfg.ID, "must not be empty")
	}
	if cfg.Height < 0 || cfg.Mass < 0 {
		return Plan{}, common.Invalid("ragdoll.height", cfg.Height, "height and mass must be >= 0")
	}
	if cfg.Material != nil {
		if err := cfg.Material.Validate(); err != nil {
			return Plan{}, err
		}
	}
	bones, err := cfg.Resolve()
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{ID: cfg.ID, SelfCollision: cfg.SelfCollision}
	index := make(map[string]int, len(bones))
	for i, b := range bones {
		field := fmt.Sprintf("ragdoll.bones[%d]", i)
		if b.Name == "" {
			return Plan{}, common.Invalid(field+".name", b.Name, "must not be empty")
		}
		if _, dup := index[b.Name]; dup {
			return Plan{}, common.Invalid(field+".name", b.Name, "duplicate bone name")
		}
		if !(b.Length > 0) || !(b.Width > 0) {
			return Plan{}, common.Invalid(field+".length", b.Length, "length and width must be > 0")
		}
		if !(b.Mass > 0) {
			return Plan{}, common.Invalid(field+".mass", b.Mass, "must be > 0")
		}
		if b.LowerLimit > b.UpperLimit {
			return Plan{}, common.Invalid(field+".lower_limit", b.LowerLimit, "must not exceed upper_limit")
		}

		bp := BonePlan{Name: b.Name, Index: i, Parent: -1, Length: b.Length, Width: b.Width, Mass: b.Mass}
		if b.Parent == "" {
			if i != 0 {
				return Plan{}, common.Invalid(field+".parent", b.Parent, "only the first bone may be the root")
			}
			bp.Start = cfg.Position
			bp.Angle = cfg.Rotation + common.Radians(b.Angle)
		} else {
			pi, ok := index[b.Parent]
			if !ok {
				return Plan{}, common.Invalid(field+".parent", b.Parent, "parent must be listed before the bone")
			}
			parent := plan.Bones[pi]
			bp.Parent = pi
			bp.Start = parent.Start.Lerp(parent.End, common.Clamp(b.Attach, 0, 1))
			bp.Angle = parent.Angle + common.Radians(b.Angle)

			plan.Links = append(plan.Links, link(pi, i, bp.Start, b))
		}
		bp.End = bp.Start.Add(cp.ForAngle(bp.Angle).Mult(b.Length))
		bp.Center = bp.Start.Lerp(bp.End, 0.5)
		index[b.Name] = i
		plan.Bones = append(plan.Bones, bp)
	}
	if len(plan.Bones) == 0 {
		return Plan{}, common.Invalid("ragdoll.bones", 0, "at least one bone required")
	}
	return plan, nil
}

// link maps the bone's stiffness and damping fractions onto an angular
// spring sized for the child bone's moment of inertia.
func link(parent, child int, anchor cp.Vector, b Bone) LinkPlan {
	inertia := b.Mass * (b.Length*b.Length + b.Width*b.Width) / 12
	omega := 2 * math.Pi * maxJointHz
	return LinkPlan{
		Parent:          parent,
		Child:           child,
		Anchor:          anchor,
		LowerLimit:      common.Radians(b.LowerLimit),
		UpperLimit:      common.Radians(b.UpperLimit),
		SpringStiffness: common.Clamp(b.Stiffness, 0, 1) * inertia * omega * omega,
		SpringDamping:   common.Clamp(b.Damping, 0, 1) * 2 * inertia * omega,
	}
}

// Adjacent reports whether bones i and j are linked directly.
func (p Plan) Adjacent(i, j int) bool {
	return p.Bones[i].Parent == j || p.Bones[j].Parent == i
}
