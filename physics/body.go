package physics

import (
	"fmt"
	"sort"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/motionsim/collision"
	"github.com/milk9111/motionsim/common"
	"github.com/milk9111/motionsim/shape"
)

// BodyType is the simulation mode of a rigid body.
type BodyType int

const (
	Static BodyType = iota
	Dynamic
	Kinematic
	// Dormant is a sleeping dynamic body. It stays collidable.
	Dormant
	// AEmatic bodies follow their keyframe track on frames that have a key
	// and are simulated as dynamic otherwise.
	AEmatic
	// Dead bodies are out of the simulation and removed at the end of the
	// step.
	Dead
)

var bodyTypeNames = [...]string{"static", "dynamic", "kinematic", "dormant", "aematic", "dead"}

func (t BodyType) String() string {
	if t < 0 || int(t) >= len(bodyTypeNames) {
		return fmt.Sprintf("BodyType(%d)", int(t))
	}
	return bodyTypeNames[t]
}

func (t BodyType) MarshalText() ([]byte, error) {
	if t < 0 || int(t) >= len(bodyTypeNames) {
		return nil, fmt.Errorf("physics: unknown body type %d", int(t))
	}
	return []byte(bodyTypeNames[t]), nil
}

func (t *BodyType) UnmarshalText(b []byte) error {
	for i, n := range bodyTypeNames {
		if n == string(b) {
			*t = BodyType(i)
			return nil
		}
	}
	return fmt.Errorf("physics: unknown body type %q", string(b))
}

// Keyframe pins an AEmatic body to a pose on one frame. Angle is radians.
type Keyframe struct {
	Frame    int       `json:"frame" yaml:"frame"`
	Position cp.Vector `json:"position" yaml:"position"`
	Angle    float64   `json:"angle" yaml:"angle"`
}

// RigidBodyConfig describes a rigid body. Mass 0 derives the mass from the
// material density and shape area; Moment 0 derives it from the shape.
type RigidBodyConfig struct {
	ID              string             `json:"id" yaml:"id"`
	Type            BodyType           `json:"type" yaml:"type"`
	Mass            float64            `json:"mass" yaml:"mass"`
	Moment          float64            `json:"moment" yaml:"moment"`
	Position        cp.Vector          `json:"position" yaml:"position"`
	Angle           float64            `json:"angle" yaml:"angle"`
	Velocity        cp.Vector          `json:"velocity" yaml:"velocity"`
	AngularVelocity float64            `json:"angular_velocity" yaml:"angular_velocity"`
	Shape           shape.Shape        `json:"shape" yaml:"shape"`
	Material        shape.Material     `json:"material" yaml:"material"`
	Filter          collision.Filter   `json:"filter" yaml:"filter"`
	Response        collision.Response `json:"response" yaml:"response"`
	LinearDamping   float64            `json:"linear_damping" yaml:"linear_damping"`
	AngularDamping  float64            `json:"angular_damping" yaml:"angular_damping"`
	// CannotSleep keeps the body awake regardless of its speed.
	CannotSleep   bool       `json:"cannot_sleep" yaml:"cannot_sleep"`
	FixedRotation bool       `json:"fixed_rotation" yaml:"fixed_rotation"`
	Bullet        bool       `json:"bullet" yaml:"bullet"`
	Gravity       *cp.Vector `json:"gravity,omitempty" yaml:"gravity"`
	Keyframes     []Keyframe `json:"keyframes,omitempty" yaml:"keyframes"`
}

func (c RigidBodyConfig) Validate() error {
	if c.ID == "" {
		return common.Invalid("body.id", c.ID, "must not be empty")
	}
	switch c.Type {
	case Static, Dynamic, Kinematic, AEmatic:
	default:
		return common.Invalid("body.type", c.Type.String(), "must be static, dynamic, kinematic or aematic")
	}
	if err := c.Shape.Validate(); err != nil {
		return err
	}
	if err := c.Material.Validate(); err != nil {
		return err
	}
	if !common.VecFinite(c.Position) || !common.IsFinite(c.Angle) {
		return common.Invalid("body.position", c.Position, "must be finite")
	}
	if !common.VecFinite(c.Velocity) || !common.IsFinite(c.AngularVelocity) {
		return common.Invalid("body.velocity", c.Velocity, "must be finite")
	}
	if c.Mass < 0 || !common.IsFinite(c.Mass) {
		return common.Invalid("body.mass", c.Mass, "must be >= 0")
	}
	if c.Moment < 0 || !common.IsFinite(c.Moment) {
		return common.Invalid("body.moment", c.Moment, "must be >= 0")
	}
	if c.simulated() && !(c.resolvedMass() > 0) {
		return common.Invalid("body.mass", c.Mass, "dynamic body needs a positive mass or density")
	}
	if c.LinearDamping < 0 || c.LinearDamping >= 1 {
		return common.Invalid("body.linear_damping", c.LinearDamping, "must be in [0, 1)")
	}
	if c.AngularDamping < 0 || c.AngularDamping >= 1 {
		return common.Invalid("body.angular_damping", c.AngularDamping, "must be in [0, 1)")
	}
	if c.Gravity != nil && !common.VecFinite(*c.Gravity) {
		return common.Invalid("body.gravity", *c.Gravity, "must be finite")
	}
	if len(c.Keyframes) > 0 && c.Type != AEmatic {
		return common.Invalid("body.keyframes", len(c.Keyframes), "only aematic bodies take keyframes")
	}
	seen := map[int]bool{}
	for _, k := range c.Keyframes {
		if k.Frame < 0 || seen[k.Frame] {
			return common.Invalid("body.keyframes", k.Frame, "frames must be unique and >= 0")
		}
		seen[k.Frame] = true
	}
	return nil
}

func (c RigidBodyConfig) simulated() bool {
	return c.Type == Dynamic || c.Type == AEmatic
}

func (c RigidBodyConfig) resolvedMass() float64 {
	if c.Mass > 0 {
		return c.Mass
	}
	return c.Material.Density * c.Shape.Area()
}

// RigidBody is the runtime state of a body. Position is the body origin,
// which is also its center of rotation.
type RigidBody struct {
	ID              string
	Type            BodyType
	Mass            float64
	Moment          float64
	Position        cp.Vector
	Angle           float64
	Velocity        cp.Vector
	AngularVelocity float64
	Shape           shape.Shape
	Material        shape.Material
	Filter          collision.Filter
	Response        collision.Response
	LinearDamping   float64
	AngularDamping  float64
	CanSleep        bool
	FixedRotation   bool
	Bullet          bool
	Gravity         *cp.Vector
	Keyframes       []Keyframe

	force          cp.Vector
	torque         float64
	impulse        cp.Vector
	angularImpulse float64

	// fieldForce and fieldTorque are what force fields applied on the last
	// awake step. A dormant body wakes when the fields disturb that.
	fieldForce  cp.Vector
	fieldTorque float64

	// awakeType is the type to return to when a dormant body wakes.
	awakeType BodyType
	sleepTime float64
	// keyed is set while an AEmatic body follows a keyframe this step.
	keyed bool
	// im and iI are the inverse mass and moment seen by the solver.
	im, iI float64

	// autoMass and autoMoment are set when the value derives from the
	// shape, so SetShape recomputes it.
	autoMass   bool
	autoMoment bool
	area       float64
	prims      []shape.Primitive
	bounds     cp.BB

	lastValid *kinematics
}

type kinematics struct {
	position        cp.Vector
	angle           float64
	velocity        cp.Vector
	angularVelocity float64
}

func newRigidBody(c RigidBodyConfig) *RigidBody {
	b := &RigidBody{
		ID:              c.ID,
		Type:            c.Type,
		Position:        c.Position,
		Angle:           c.Angle,
		Velocity:        c.Velocity,
		AngularVelocity: c.AngularVelocity,
		Shape:           c.Shape.Clone(),
		Material:        c.Material,
		Filter:          c.Filter.Normalized(),
		Response:        c.Response,
		LinearDamping:   c.LinearDamping,
		AngularDamping:  c.AngularDamping,
		CanSleep:        !c.CannotSleep,
		FixedRotation:   c.FixedRotation,
		Bullet:          c.Bullet,
		awakeType:       c.Type,
		autoMass:        c.Mass == 0,
		autoMoment:      c.Moment == 0,
	}
	if c.Gravity != nil {
		g := *c.Gravity
		b.Gravity = &g
	}
	if len(c.Keyframes) > 0 {
		b.Keyframes = append([]Keyframe(nil), c.Keyframes...)
		sort.Slice(b.Keyframes, func(i, j int) bool { return b.Keyframes[i].Frame < b.Keyframes[j].Frame })
	}
	b.setMassProperties(c.resolvedMass(), c.Moment)
	if c.Type == Static {
		b.Velocity, b.AngularVelocity = cp.Vector{}, 0
	}
	b.updateGeometry()
	b.saveValid()
	return b
}

func (b *RigidBody) setMassProperties(mass, moment float64) {
	b.area = b.Shape.Area()
	b.Mass = mass
	b.Moment = moment
	if moment <= 0 {
		b.Moment = b.Shape.Moment(mass)
	}
}

// setShape swaps the shape and refreshes derived mass properties.
func (b *RigidBody) setShape(s shape.Shape) {
	b.Shape = s.Clone()
	mass, moment := b.Mass, b.Moment
	if b.autoMass {
		mass = b.Material.Density * b.Shape.Area()
	}
	if b.autoMoment {
		moment = 0
	}
	b.setMassProperties(mass, moment)
	b.updateGeometry()
}

// simulated reports whether the body responds to forces and impulses right
// now.
func (b *RigidBody) simulated() bool {
	return (b.Type == Dynamic || b.Type == AEmatic) && !b.keyed
}

// Awake reports whether the body takes part in integration.
func (b *RigidBody) Awake() bool {
	return b.Type == Dynamic || b.Type == AEmatic || b.Type == Kinematic
}

func (b *RigidBody) updateSolverMass() {
	b.im, b.iI = 0, 0
	if !b.simulated() {
		return
	}
	if b.Mass > 0 {
		b.im = 1 / b.Mass
	}
	if !b.FixedRotation && b.Moment > 0 {
		b.iI = 1 / b.Moment
	}
}

func (b *RigidBody) updateGeometry() {
	b.prims = b.Shape.Primitives(b.Position, b.Angle)
	b.bounds = b.Shape.Bounds(b.Position, b.Angle)
}

// WorldPoint converts a body-local point to world space.
func (b *RigidBody) WorldPoint(local cp.Vector) cp.Vector {
	return common.Transform(local, b.Position, b.Angle)
}

// LocalPoint converts a world point to body-local space.
func (b *RigidBody) LocalPoint(world cp.Vector) cp.Vector {
	return common.Unrotate(world.Sub(b.Position), b.Angle)
}

// velocityAt is the velocity of the body point at world offset r from the
// origin.
func (b *RigidBody) velocityAt(r cp.Vector) cp.Vector {
	return b.Velocity.Add(common.CrossSV(b.AngularVelocity, r))
}

func (b *RigidBody) Bounds() cp.BB {
	return b.bounds
}

func (b *RigidBody) keyframeAt(frame int) (Keyframe, bool) {
	i := sort.Search(len(b.Keyframes), func(i int) bool { return b.Keyframes[i].Frame >= frame })
	if i < len(b.Keyframes) && b.Keyframes[i].Frame == frame {
		return b.Keyframes[i], true
	}
	return Keyframe{}, false
}

func (b *RigidBody) applyImpulseAt(j, r cp.Vector) {
	b.Velocity = b.Velocity.Add(j.Mult(b.im))
	b.AngularVelocity += b.iI * r.Cross(j)
}

func (b *RigidBody) sleep() {
	if b.Type == Dormant {
		return
	}
	b.awakeType = b.Type
	b.Type = Dormant
	b.Velocity = cp.Vector{}
	b.AngularVelocity = 0
	b.sleepTime = 0
}

// wake returns a dormant body to its previous type. It reports whether the
// body was asleep.
func (b *RigidBody) wake() bool {
	b.sleepTime = 0
	if b.Type != Dormant {
		return false
	}
	b.Type = b.awakeType
	return true
}

func (b *RigidBody) finite() bool {
	return common.VecFinite(b.Position) && common.IsFinite(b.Angle) &&
		common.VecFinite(b.Velocity) && common.IsFinite(b.AngularVelocity)
}

func (b *RigidBody) saveValid() {
	if b.lastValid == nil {
		b.lastValid = &kinematics{}
	}
	*b.lastValid = kinematics{b.Position, b.Angle, b.Velocity, b.AngularVelocity}
}

func (b *RigidBody) clone() *RigidBody {
	out := *b
	out.Shape = b.Shape.Clone()
	out.Keyframes = append([]Keyframe(nil), b.Keyframes...)
	out.prims = append([]shape.Primitive(nil), b.prims...)
	if b.Gravity != nil {
		g := *b.Gravity
		out.Gravity = &g
	}
	if b.lastValid != nil {
		lv := *b.lastValid
		out.lastValid = &lv
	}
	return &out
}
