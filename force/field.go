// Package force evaluates force fields (gravity, wind, attraction, explosion,
// buoyancy, vortex and drag) into per-body forces and impulses.
package force

import (
	"fmt"
	"math"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/motionsim/common"
	"gopkg.in/yaml.v3"
)

// Unbounded is the EndFrame value of a field that never expires.
const Unbounded = -1

type Kind int

const (
	Gravity Kind = iota
	Wind
	Attraction
	Explosion
	Buoyancy
	Vortex
	Drag
)

var kindNames = [...]string{"gravity", "wind", "attraction", "explosion", "buoyancy", "vortex", "drag"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

func (k Kind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(kindNames) {
		return nil, fmt.Errorf("force: unknown kind %d", int(k))
	}
	return []byte(kindNames[k]), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for i, n := range kindNames {
		if n == string(b) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("force: unknown kind %q", string(b))
}

// Falloff shapes attraction strength over distance.
type Falloff string

const (
	FalloffNone          Falloff = "none"
	FalloffLinear        Falloff = "linear"
	FalloffInverseSquare Falloff = "inverse_square"
)

// GravityParams is a uniform acceleration.
type GravityParams struct {
	Acceleration cp.Vector `json:"acceleration" yaml:"acceleration"`
}

// WindParams pushes with a constant force along Direction. Turbulence is a
// fraction of Strength added as seeded noise on both axes.
type WindParams struct {
	Direction  cp.Vector `json:"direction" yaml:"direction"`
	Strength   float64   `json:"strength" yaml:"strength"`
	Turbulence float64   `json:"turbulence" yaml:"turbulence"`
}

// AttractionParams accelerates bodies toward Center (away when Strength is
// negative). Radius 0 means unlimited range.
type AttractionParams struct {
	Center   cp.Vector `json:"center" yaml:"center"`
	Strength float64   `json:"strength" yaml:"strength"`
	Radius   float64   `json:"radius" yaml:"radius"`
	Falloff  Falloff   `json:"falloff" yaml:"falloff"`
}

// ExplosionParams applies a one-off outward impulse that fades linearly to
// zero at Radius. Jitter rotates the impulse direction by up to that many
// radians, drawn from the world generator.
type ExplosionParams struct {
	Center       cp.Vector `json:"center" yaml:"center"`
	Strength     float64   `json:"strength" yaml:"strength"`
	Radius       float64   `json:"radius" yaml:"radius"`
	TriggerFrame int       `json:"trigger_frame" yaml:"trigger_frame"`
	Duration     int       `json:"duration" yaml:"duration"`
	Jitter       float64   `json:"jitter" yaml:"jitter"`
}

// BuoyancyParams models a fluid filling everything below Level (y grows
// downward).
type BuoyancyParams struct {
	Level       float64 `json:"level" yaml:"level"`
	Density     float64 `json:"density" yaml:"density"`
	LinearDrag  float64 `json:"linear_drag" yaml:"linear_drag"`
	AngularDrag float64 `json:"angular_drag" yaml:"angular_drag"`
}

// VortexParams swirls bodies around Center. Positive Strength turns
// clockwise on screen. Inward adds a pull toward the center as a fraction of
// the swirl.
type VortexParams struct {
	Center   cp.Vector `json:"center" yaml:"center"`
	Strength float64   `json:"strength" yaml:"strength"`
	Radius   float64   `json:"radius" yaml:"radius"`
	Inward   float64   `json:"inward" yaml:"inward"`
}

// DragParams resists motion with linear and quadratic terms.
type DragParams struct {
	Linear    float64 `json:"linear" yaml:"linear"`
	Quadratic float64 `json:"quadratic" yaml:"quadratic"`
	Angular   float64 `json:"angular" yaml:"angular"`
}

// Field is a force field. Exactly the payload matching Kind must be set.
type Field struct {
	ID             string   `json:"id" yaml:"id"`
	Kind           Kind     `json:"kind" yaml:"kind"`
	Enabled        bool     `json:"enabled" yaml:"enabled"`
	AffectedBodies []string `json:"affected_bodies,omitempty" yaml:"affected_bodies"`
	StartFrame     int      `json:"start_frame" yaml:"start_frame"`
	EndFrame       int      `json:"end_frame" yaml:"end_frame"`
	// StrengthExpr is a tengo script assigning scale, a multiplier on the
	// field's strength. It sees frame and seconds.
	StrengthExpr string `json:"strength_expr,omitempty" yaml:"strength_expr"`

	Gravity    *GravityParams    `json:"gravity,omitempty" yaml:"gravity"`
	Wind       *WindParams       `json:"wind,omitempty" yaml:"wind"`
	Attraction *AttractionParams `json:"attraction,omitempty" yaml:"attraction"`
	Explosion  *ExplosionParams  `json:"explosion,omitempty" yaml:"explosion"`
	Buoyancy   *BuoyancyParams   `json:"buoyancy,omitempty" yaml:"buoyancy"`
	Vortex     *VortexParams     `json:"vortex,omitempty" yaml:"vortex"`
	Drag       *DragParams       `json:"drag,omitempty" yaml:"drag"`
}

// UnmarshalYAML defaults omitted fields to an enabled, unbounded field.
func (f *Field) UnmarshalYAML(value *yaml.Node) error {
	type plain Field
	p := plain{Enabled: true, EndFrame: Unbounded}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*f = Field(p)
	return nil
}

func base(id string, kind Kind) Field {
	return Field{ID: id, Kind: kind, Enabled: true, EndFrame: Unbounded}
}

func NewGravity(id string, acceleration cp.Vector) Field {
	f := base(id, Gravity)
	f.Gravity = &GravityParams{Acceleration: acceleration}
	return f
}

func NewWind(id string, p WindParams) Field {
	f := base(id, Wind)
	f.Wind = &p
	return f
}

func NewAttraction(id string, p AttractionParams) Field {
	f := base(id, Attraction)
	f.Attraction = &p
	return f
}

func NewExplosion(id string, p ExplosionParams) Field {
	f := base(id, Explosion)
	f.Explosion = &p
	return f
}

func NewBuoyancy(id string, p BuoyancyParams) Field {
	f := base(id, Buoyancy)
	f.Buoyancy = &p
	return f
}

func NewVortex(id string, p VortexParams) Field {
	f := base(id, Vortex)
	f.Vortex = &p
	return f
}

func NewDrag(id string, p DragParams) Field {
	f := base(id, Drag)
	f.Drag = &p
	return f
}

// Clone returns a deep copy.
func (f Field) Clone() Field {
	out := f
	out.AffectedBodies = append([]string(nil), f.AffectedBodies...)
	if f.Gravity != nil {
		p := *f.Gravity
		out.Gravity = &p
	}
	if f.Wind != nil {
		p := *f.Wind
		out.Wind = &p
	}
	if f.Attraction != nil {
		p := *f.Attraction
		out.Attraction = &p
	}
	if f.Explosion != nil {
		p := *f.Explosion
		out.Explosion = &p
	}
	if f.Buoyancy != nil {
		p := *f.Buoyancy
		out.Buoyancy = &p
	}
	if f.Vortex != nil {
		p := *f.Vortex
		out.Vortex = &p
	}
	if f.Drag != nil {
		p := *f.Drag
		out.Drag = &p
	}
	return out
}

func (f Field) payloadCount() int {
	n := 0
	for _, set := range []bool{
		f.Gravity != nil, f.Wind != nil, f.Attraction != nil, f.Explosion != nil,
		f.Buoyancy != nil, f.Vortex != nil, f.Drag != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// Validate checks the frame window and the payload for Kind. Strength
// expressions are checked when the field is added to an Evaluator.
func (f Field) Validate() error {
	if f.ID == "" {
		return common.Invalid("force.id", f.ID, "must not be empty")
	}
	if f.StartFrame < 0 {
		return common.Invalid("force.start_frame", f.StartFrame, "must be >= 0")
	}
	if f.EndFrame != Unbounded && f.EndFrame < f.StartFrame {
		return common.Invalid("force.end_frame", f.EndFrame, "must be -1 or >= start_frame")
	}
	if f.payloadCount() != 1 {
		return common.Invalid("force.kind", f.Kind.String(), "exactly one payload must be set")
	}

	switch f.Kind {
	case Gravity:
		if f.Gravity == nil {
			return missingPayload(f.Kind)
		}
		if !common.VecFinite(f.Gravity.Acceleration) {
			return common.Invalid("force.gravity.acceleration", f.Gravity.Acceleration, "must be finite")
		}
	case Wind:
		if f.Wind == nil {
			return missingPayload(f.Kind)
		}
		if f.Wind.Direction.LengthSq() == 0 {
			return common.Invalid("force.wind.direction", f.Wind.Direction, "must be non-zero")
		}
		if f.Wind.Turbulence < 0 {
			return common.Invalid("force.wind.turbulence", f.Wind.Turbulence, "must be >= 0")
		}
	case Attraction:
		if f.Attraction == nil {
			return missingPayload(f.Kind)
		}
		if f.Attraction.Radius < 0 {
			return common.Invalid("force.attraction.radius", f.Attraction.Radius, "must be >= 0")
		}
		switch f.Attraction.Falloff {
		case "", FalloffNone, FalloffLinear, FalloffInverseSquare:
		default:
			return common.Invalid("force.attraction.falloff", f.Attraction.Falloff, "unknown falloff")
		}
	case Explosion:
		if f.Explosion == nil {
			return missingPayload(f.Kind)
		}
		if f.Explosion.Radius <= 0 {
			return common.Invalid("force.explosion.radius", f.Explosion.Radius, "must be > 0")
		}
		if f.Explosion.TriggerFrame < 0 {
			return common.Invalid("force.explosion.trigger_frame", f.Explosion.TriggerFrame, "must be >= 0")
		}
		if f.Explosion.Duration < 0 {
			return common.Invalid("force.explosion.duration", f.Explosion.Duration, "must be >= 0")
		}
	case Buoyancy:
		if f.Buoyancy == nil {
			return missingPayload(f.Kind)
		}
		if f.Buoyancy.Density < 0 {
			return common.Invalid("force.buoyancy.density", f.Buoyancy.Density, "must be >= 0")
		}
	case Vortex:
		if f.Vortex == nil {
			return missingPayload(f.Kind)
		}
		if f.Vortex.Radius <= 0 {
			return common.Invalid("force.vortex.radius", f.Vortex.Radius, "must be > 0")
		}
	case Drag:
		if f.Drag == nil {
			return missingPayload(f.Kind)
		}
		if f.Drag.Linear < 0 || f.Drag.Quadratic < 0 || f.Drag.Angular < 0 {
			return common.Invalid("force.drag", *f.Drag, "coefficients must be >= 0")
		}
	default:
		return common.Invalid("force.kind", int(f.Kind), "unknown kind")
	}
	return nil
}

func missingPayload(k Kind) error {
	return common.Invalid("force."+k.String(), nil, "payload required for kind")
}

// Active reports whether the field acts on the given frame.
func (f *Field) Active(frame int) bool {
	if !f.Enabled || frame < f.StartFrame {
		return false
	}
	if f.EndFrame != Unbounded && frame > f.EndFrame {
		return false
	}
	if f.Kind == Explosion && f.Explosion != nil {
		d := max(f.Explosion.Duration, 1)
		return frame >= f.Explosion.TriggerFrame && frame < f.Explosion.TriggerFrame+d
	}
	return true
}

// Affects reports whether the field applies to the body with the given id.
func (f *Field) Affects(id string) bool {
	if len(f.AffectedBodies) == 0 {
		return true
	}
	for _, b := range f.AffectedBodies {
		if b == id {
			return true
		}
	}
	return false
}

// explosionDirection is used for bodies sitting exactly on the center: up
// on screen.
var explosionDirection = cp.Vector{X: 0, Y: -1}

func finiteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
