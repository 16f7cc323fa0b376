// Package softbody integrates particle systems (blobs, ropes, cloth) with
// Verlet integration and iterative distance-constraint relaxation.
package softbody

import (
	"fmt"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/motionsim/collision"
	"github.com/milk9111/motionsim/common"
	"github.com/milk9111/motionsim/shape"
)

const (
	DefaultIterations     = 8
	DefaultParticleRadius = 2.0
)

// Class groups cloth constraints. Free-form soft bodies use Generic.
type Class int

const (
	Generic Class = iota
	Structural
	Shear
	Bend
)

var classNames = [...]string{"generic", "structural", "shear", "bend"}

func (c Class) String() string {
	if c < 0 || int(c) >= len(classNames) {
		return fmt.Sprintf("Class(%d)", int(c))
	}
	return classNames[c]
}

func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Class) UnmarshalText(b []byte) error {
	for i, n := range classNames {
		if n == string(b) {
			*c = Class(i)
			return nil
		}
	}
	return fmt.Errorf("softbody: unknown constraint class %q", string(b))
}

type Particle struct {
	Position     cp.Vector `json:"position" yaml:"position"`
	Previous     cp.Vector `json:"previous" yaml:"-"`
	Acceleration cp.Vector `json:"-" yaml:"-"`
	Mass         float64   `json:"mass" yaml:"mass"`
	Pinned       bool      `json:"pinned" yaml:"pinned"`
	Radius       float64   `json:"radius" yaml:"radius"`
}

// Constraint keeps two particles RestLength apart. BreakThreshold is the
// allowed stretch relative to RestLength; zero never breaks. Row and Col
// locate cloth constraints on the grid (the lower-index particle).
type Constraint struct {
	A              int     `json:"a" yaml:"a"`
	B              int     `json:"b" yaml:"b"`
	RestLength     float64 `json:"rest_length" yaml:"rest_length"`
	Stiffness      float64 `json:"stiffness" yaml:"stiffness"`
	BreakThreshold float64 `json:"break_threshold" yaml:"break_threshold"`
	Class          Class   `json:"class" yaml:"class"`
	Row            int     `json:"row" yaml:"row"`
	Col            int     `json:"col" yaml:"col"`
}

// Torn is a constraint that broke, with the frame it broke on.
type Torn struct {
	Constraint
	Frame int `json:"frame"`
}

// Config describes a soft body. A zero RestLength is measured from the
// initial particle positions; zero Stiffness means 1.
type Config struct {
	ID            string             `json:"id" yaml:"id"`
	Particles     []Particle         `json:"particles" yaml:"particles"`
	Constraints   []Constraint       `json:"constraints" yaml:"constraints"`
	Iterations    int                `json:"iterations" yaml:"iterations"`
	Damping       float64            `json:"damping" yaml:"damping"`
	SelfCollision bool               `json:"self_collision" yaml:"self_collision"`
	CollideRigid  bool               `json:"collide_rigid" yaml:"collide_rigid"`
	Material      shape.Material     `json:"material" yaml:"material"`
	Filter        collision.Filter   `json:"filter" yaml:"filter"`
	Response      collision.Response `json:"response" yaml:"response"`

	grid *Grid
}

// Grid is the lattice a cloth was generated from.
type Grid struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (c Config) Validate() error {
	if c.ID == "" {
		return common.Invalid("softbody.id", c.ID, "must not be empty")
	}
	if len(c.Particles) == 0 {
		return common.Invalid("softbody.particles", 0, "at least one particle required")
	}
	if c.Iterations < 0 {
		return common.Invalid("softbody.iterations", c.Iterations, "must be >= 0")
	}
	if c.Damping < 0 || c.Damping >= 1 {
		return common.Invalid("softbody.damping", c.Damping, "must be in [0, 1)")
	}
	if err := c.Material.Validate(); err != nil {
		return err
	}
	for i, p := range c.Particles {
		if !p.Pinned && p.Mass <= 0 {
			return common.Invalid(fmt.Sprintf("softbody.particles[%d].mass", i), p.Mass, "must be > 0")
		}
		if p.Radius < 0 {
			return common.Invalid(fmt.Sprintf("softbody.particles[%d].radius", i), p.Radius, "must be >= 0")
		}
		if !common.VecFinite(p.Position) {
			return common.Invalid(fmt.Sprintf("softbody.particles[%d].position", i), p.Position, "must be finite")
		}
	}
	n := len(c.Particles)
	for i, k := range c.Constraints {
		field := fmt.Sprintf("softbody.constraints[%d]", i)
		if k.A < 0 || k.A >= n || k.B < 0 || k.B >= n {
			return common.Invalid(field, [2]int{k.A, k.B}, "particle index out of range")
		}
		if k.A == k.B {
			return common.Invalid(field, k.A, "constraint must join two particles")
		}
		if k.RestLength < 0 {
			return common.Invalid(field+".rest_length", k.RestLength, "must be >= 0")
		}
		if k.Stiffness < 0 || k.Stiffness > 1 {
			return common.Invalid(field+".stiffness", k.Stiffness, "must be in [0, 1]")
		}
		if k.BreakThreshold < 0 {
			return common.Invalid(field+".break_threshold", k.BreakThreshold, "must be >= 0")
		}
	}
	return nil
}
