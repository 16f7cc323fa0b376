package physics

import (
	"fmt"
	"math"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/motionsim/common"
)

// JointKind selects the payload of a JointConfig.
type JointKind int

const (
	PivotJoint JointKind = iota
	SpringJoint
	DistanceJoint
	PistonJoint
	WheelJoint
	WeldJoint
	BlobJoint
	RopeJoint
)

var jointKindNames = [...]string{"pivot", "spring", "distance", "piston", "wheel", "weld", "blob", "rope"}

func (k JointKind) String() string {
	if k < 0 || int(k) >= len(jointKindNames) {
		return fmt.Sprintf("JointKind(%d)", int(k))
	}
	return jointKindNames[k]
}

func (k JointKind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(jointKindNames) {
		return nil, fmt.Errorf("physics: unknown joint kind %d", int(k))
	}
	return []byte(jointKindNames[k]), nil
}

func (k *JointKind) UnmarshalText(b []byte) error {
	for i, n := range jointKindNames {
		if n == string(b) {
			*k = JointKind(i)
			return nil
		}
	}
	return fmt.Errorf("physics: unknown joint kind %q", string(b))
}

// PivotParams configure a revolute joint. Angles are radians, measured as
// the angle of B relative to A minus the angle at creation.
type PivotParams struct {
	EnableLimit bool    `json:"enable_limit" yaml:"enable_limit"`
	LowerAngle  float64 `json:"lower_angle" yaml:"lower_angle"`
	UpperAngle  float64 `json:"upper_angle" yaml:"upper_angle"`
	EnableMotor bool    `json:"enable_motor" yaml:"enable_motor"`
	MotorSpeed  float64 `json:"motor_speed" yaml:"motor_speed"`
	// TargetAngle turns the motor into a servo that drives toward the angle.
	TargetAngle *float64 `json:"target_angle,omitempty" yaml:"target_angle"`
	MaxTorque   float64  `json:"max_torque" yaml:"max_torque"`
	// Stiffness and Damping add an angular spring toward the rest angle.
	Stiffness float64 `json:"stiffness" yaml:"stiffness"`
	Damping   float64 `json:"damping" yaml:"damping"`
}

type SpringParams struct {
	// RestLength nil takes the anchor distance at creation.
	RestLength *float64 `json:"rest_length,omitempty" yaml:"rest_length"`
	Stiffness  float64  `json:"stiffness" yaml:"stiffness"`
	Damping    float64  `json:"damping" yaml:"damping"`
}

type DistanceParams struct {
	// Length nil takes the anchor distance at creation.
	Length *float64 `json:"length,omitempty" yaml:"length"`
}

// PistonParams configure a prismatic joint. Axis is in body A's frame.
type PistonParams struct {
	Axis          cp.Vector `json:"axis" yaml:"axis"`
	EnableLimit   bool      `json:"enable_limit" yaml:"enable_limit"`
	Lower         float64   `json:"lower" yaml:"lower"`
	Upper         float64   `json:"upper" yaml:"upper"`
	EnableMotor   bool      `json:"enable_motor" yaml:"enable_motor"`
	MotorSpeed    float64   `json:"motor_speed" yaml:"motor_speed"`
	MaxMotorForce float64   `json:"max_motor_force" yaml:"max_motor_force"`
}

// WheelParams configure a wheel: B slides along Axis (in A's frame) on a
// suspension spring and spins freely.
type WheelParams struct {
	Axis           cp.Vector `json:"axis" yaml:"axis"`
	Stiffness      float64   `json:"stiffness" yaml:"stiffness"`
	Damping        float64   `json:"damping" yaml:"damping"`
	EnableMotor    bool      `json:"enable_motor" yaml:"enable_motor"`
	MotorSpeed     float64   `json:"motor_speed" yaml:"motor_speed"`
	MaxMotorTorque float64   `json:"max_motor_torque" yaml:"max_motor_torque"`
}

// BlobParams soften a weld. Frequency 0 makes it rigid.
type BlobParams struct {
	Frequency    float64 `json:"frequency" yaml:"frequency"`
	DampingRatio float64 `json:"damping_ratio" yaml:"damping_ratio"`
}

type RopeParams struct {
	// MaxLength nil takes the anchor distance at creation.
	MaxLength *float64 `json:"max_length,omitempty" yaml:"max_length"`
}

// JointConfig describes a joint between two bodies. An empty BodyB (or
// BodyA) attaches to the world, whose local frame is world space. MaxForce
// 0 means unbreakable.
type JointConfig struct {
	ID               string    `json:"id" yaml:"id"`
	Kind             JointKind `json:"kind" yaml:"kind"`
	BodyA            string    `json:"body_a" yaml:"body_a"`
	BodyB            string    `json:"body_b" yaml:"body_b"`
	LocalAnchorA     cp.Vector `json:"local_anchor_a" yaml:"local_anchor_a"`
	LocalAnchorB     cp.Vector `json:"local_anchor_b" yaml:"local_anchor_b"`
	CollideConnected bool      `json:"collide_connected" yaml:"collide_connected"`
	MaxForce         float64   `json:"max_force" yaml:"max_force"`

	Pivot    *PivotParams    `json:"pivot,omitempty" yaml:"pivot"`
	Spring   *SpringParams   `json:"spring,omitempty" yaml:"spring"`
	Distance *DistanceParams `json:"distance,omitempty" yaml:"distance"`
	Piston   *PistonParams   `json:"piston,omitempty" yaml:"piston"`
	Wheel    *WheelParams    `json:"wheel,omitempty" yaml:"wheel"`
	Blob     *BlobParams     `json:"blob,omitempty" yaml:"blob"`
	Rope     *RopeParams     `json:"rope,omitempty" yaml:"rope"`
}

func (c JointConfig) Validate() error {
	if c.ID == "" {
		return common.Invalid("joint.id", c.ID, "must not be empty")
	}
	if c.BodyA == "" && c.BodyB == "" {
		return common.Invalid("joint.body_a", c.BodyA, "at least one body is required")
	}
	if c.BodyA == c.BodyB {
		return common.Invalid("joint.body_b", c.BodyB, "must differ from body_a")
	}
	if !common.VecFinite(c.LocalAnchorA) || !common.VecFinite(c.LocalAnchorB) {
		return common.Invalid("joint.local_anchor_a", c.LocalAnchorA, "anchors must be finite")
	}
	if c.MaxForce < 0 || !common.IsFinite(c.MaxForce) {
		return common.Invalid("joint.max_force", c.MaxForce, "must be >= 0")
	}
	switch c.Kind {
	case PivotJoint:
		if p := c.Pivot; p != nil {
			if p.EnableLimit && p.LowerAngle > p.UpperAngle {
				return common.Invalid("joint.pivot.lower_angle", p.LowerAngle, "must not exceed upper_angle")
			}
			if p.MaxTorque < 0 || p.Stiffness < 0 || p.Damping < 0 {
				return common.Invalid("joint.pivot", c.ID, "max_torque, stiffness and damping must be >= 0")
			}
		}
	case SpringJoint:
		p := c.Spring
		if p == nil || !(p.Stiffness > 0) {
			return common.Invalid("joint.spring.stiffness", c.Spring, "must be > 0")
		}
		if p.Damping < 0 || (p.RestLength != nil && *p.RestLength < 0) {
			return common.Invalid("joint.spring", c.ID, "damping and rest_length must be >= 0")
		}
	case DistanceJoint:
		if p := c.Distance; p != nil && p.Length != nil && !(*p.Length > 0) {
			return common.Invalid("joint.distance.length", *p.Length, "must be > 0")
		}
	case PistonJoint:
		p := c.Piston
		if p == nil || p.Axis.LengthSq() == 0 {
			return common.Invalid("joint.piston.axis", c.Piston, "axis must be non-zero")
		}
		if p.EnableLimit && p.Lower > p.Upper {
			return common.Invalid("joint.piston.lower", p.Lower, "must not exceed upper")
		}
		if p.MaxMotorForce < 0 {
			return common.Invalid("joint.piston.max_motor_force", p.MaxMotorForce, "must be >= 0")
		}
	case WheelJoint:
		p := c.Wheel
		if p == nil || p.Axis.LengthSq() == 0 {
			return common.Invalid("joint.wheel.axis", c.Wheel, "axis must be non-zero")
		}
		if p.Stiffness < 0 || p.Damping < 0 || p.MaxMotorTorque < 0 {
			return common.Invalid("joint.wheel", c.ID, "stiffness, damping and max_motor_torque must be >= 0")
		}
	case WeldJoint:
	case BlobJoint:
		if p := c.Blob; p != nil && (p.Frequency < 0 || p.DampingRatio < 0) {
			return common.Invalid("joint.blob", c.ID, "frequency and damping_ratio must be >= 0")
		}
	case RopeJoint:
		if p := c.Rope; p != nil && p.MaxLength != nil && !(*p.MaxLength > 0) {
			return common.Invalid("joint.rope.max_length", *p.MaxLength, "must be > 0")
		}
	default:
		return common.Invalid("joint.kind", c.Kind.String(), "unknown joint kind")
	}
	return nil
}

// clone deep-copies the optional payload pointers.
func (c JointConfig) clone() JointConfig {
	out := c
	if c.Pivot != nil {
		p := *c.Pivot
		if c.Pivot.TargetAngle != nil {
			t := *c.Pivot.TargetAngle
			p.TargetAngle = &t
		}
		out.Pivot = &p
	}
	if c.Spring != nil {
		p := *c.Spring
		p.RestLength = clonePtr(c.Spring.RestLength)
		out.Spring = &p
	}
	if c.Distance != nil {
		p := *c.Distance
		p.Length = clonePtr(c.Distance.Length)
		out.Distance = &p
	}
	if c.Piston != nil {
		p := *c.Piston
		out.Piston = &p
	}
	if c.Wheel != nil {
		p := *c.Wheel
		out.Wheel = &p
	}
	if c.Blob != nil {
		p := *c.Blob
		out.Blob = &p
	}
	if c.Rope != nil {
		p := *c.Rope
		p.MaxLength = clonePtr(c.Rope.MaxLength)
		out.Rope = &p
	}
	return out
}

func clonePtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// jointSolver is the per-variant constraint. Bodies are passed in because
// joints hold them by id and are rebound every step.
type jointSolver interface {
	initVelocity(a, b *RigidBody, dt float64, warm bool)
	solveVelocity(a, b *RigidBody, dt float64)
	// solvePosition returns true when the position error is within slop.
	solvePosition(a, b *RigidBody, slop, maxCorrection float64) bool
	// appliedImpulse is the constraint impulse accumulated this step.
	appliedImpulse() float64
	clone() jointSolver
}

type joint struct {
	cfg    JointConfig
	a, b   *RigidBody
	solver jointSolver
}

func (j *joint) clone() *joint {
	return &joint{cfg: j.cfg.clone(), solver: j.solver.clone()}
}

// newJointSolver builds the runtime constraint for cfg with both bodies in
// their creation pose. Auto lengths are resolved here.
func newJointSolver(cfg JointConfig, a, b *RigidBody) (jointSolver, error) {
	pA := a.WorldPoint(cfg.LocalAnchorA)
	pB := b.WorldPoint(cfg.LocalAnchorB)
	dist := pA.Distance(pB)
	ref := b.Angle - a.Angle
	switch cfg.Kind {
	case PivotJoint:
		p := PivotParams{}
		if cfg.Pivot != nil {
			p = *cfg.Pivot
		}
		return &pivotSolver{anchors: anchorsOf(cfg), params: p, referenceAngle: ref}, nil
	case SpringJoint:
		rest := dist
		if cfg.Spring.RestLength != nil {
			rest = *cfg.Spring.RestLength
		}
		return &springSolver{anchors: anchorsOf(cfg), restLength: rest, stiffness: cfg.Spring.Stiffness, damping: cfg.Spring.Damping}, nil
	case DistanceJoint:
		length := dist
		if cfg.Distance != nil && cfg.Distance.Length != nil {
			length = *cfg.Distance.Length
		}
		if !(length > 0) {
			return nil, common.Invalid("joint.distance.length", length, "anchors coincide, set an explicit length")
		}
		return &distanceSolver{anchors: anchorsOf(cfg), length: length}, nil
	case RopeJoint:
		maxLength := dist
		if cfg.Rope != nil && cfg.Rope.MaxLength != nil {
			maxLength = *cfg.Rope.MaxLength
		}
		if !(maxLength > 0) {
			return nil, common.Invalid("joint.rope.max_length", maxLength, "anchors coincide, set an explicit max_length")
		}
		return &distanceSolver{anchors: anchorsOf(cfg), length: maxLength, rope: true}, nil
	case PistonJoint:
		return &pistonSolver{anchors: anchorsOf(cfg), params: *cfg.Piston, localAxis: cfg.Piston.Axis.Normalize(), referenceAngle: ref}, nil
	case WheelJoint:
		return &wheelSolver{anchors: anchorsOf(cfg), wheel: *cfg.Wheel, localAxis: cfg.Wheel.Axis.Normalize()}, nil
	case WeldJoint:
		return &weldSolver{anchors: anchorsOf(cfg), referenceAngle: ref}, nil
	case BlobJoint:
		s := &weldSolver{anchors: anchorsOf(cfg), referenceAngle: ref}
		if cfg.Blob != nil {
			s.frequency, s.dampingRatio = cfg.Blob.Frequency, cfg.Blob.DampingRatio
		}
		return s, nil
	}
	return nil, common.Invalid("joint.kind", cfg.Kind.String(), "unknown joint kind")
}

// anchors holds the local anchors and the per-step lever arms.
type anchors struct {
	localA, localB cp.Vector
	rA, rB         cp.Vector
}

func anchorsOf(cfg JointConfig) anchors {
	return anchors{localA: cfg.LocalAnchorA, localB: cfg.LocalAnchorB}
}

func (an *anchors) update(a, b *RigidBody) {
	an.rA = common.Rotate(an.localA, a.Angle)
	an.rB = common.Rotate(an.localB, b.Angle)
}

// separation is the world distance between the two anchors.
func (an *anchors) separation(a, b *RigidBody) float64 {
	return a.WorldPoint(an.localA).Distance(b.WorldPoint(an.localB))
}

// mat22 is a column-major 2x2 matrix.
type mat22 struct {
	ex, ey cp.Vector
}

func (m mat22) solve(v cp.Vector) cp.Vector {
	a11, a12, a21, a22 := m.ex.X, m.ey.X, m.ex.Y, m.ey.Y
	det := a11*a22 - a12*a21
	if det != 0 {
		det = 1 / det
	}
	return cp.Vector{X: det * (a22*v.X - a12*v.Y), Y: det * (a11*v.Y - a21*v.X)}
}

// pointMass is the effective mass matrix of a point-to-point constraint.
func pointMass(a, b *RigidBody, rA, rB cp.Vector) mat22 {
	mA, mB, iA, iB := a.im, b.im, a.iI, b.iI
	return mat22{
		ex: cp.Vector{X: mA + mB + rA.Y*rA.Y*iA + rB.Y*rB.Y*iB, Y: -rA.Y*rA.X*iA - rB.Y*rB.X*iB},
		ey: cp.Vector{X: -rA.Y*rA.X*iA - rB.Y*rB.X*iB, Y: mA + mB + rA.X*rA.X*iA + rB.X*rB.X*iB},
	}
}

// softness converts a spring (stiffness k, damping c) into the soft
// constraint gamma and bias factor for a step of h. Both are 0 for a rigid
// constraint.
func softness(k, c, h float64) (gamma, biasRate float64) {
	d := h * (c + h*k)
	if d <= 0 {
		return 0, 0
	}
	gamma = 1 / d
	return gamma, h * k * gamma
}

func invOrZero(v float64) float64 {
	if v > 0 {
		return 1 / v
	}
	return 0
}

// applyVelocity applies impulse p at the lever arms, negative to A.
func applyVelocity(a, b *RigidBody, p, rA, rB cp.Vector) {
	a.Velocity = a.Velocity.Sub(p.Mult(a.im))
	a.AngularVelocity -= a.iI * rA.Cross(p)
	b.Velocity = b.Velocity.Add(p.Mult(b.im))
	b.AngularVelocity += b.iI * rB.Cross(p)
}

// applyPosition is the position-level counterpart of applyVelocity.
func applyPosition(a, b *RigidBody, p, rA, rB cp.Vector) {
	a.Position = a.Position.Sub(p.Mult(a.im))
	a.Angle -= a.iI * rA.Cross(p)
	b.Position = b.Position.Add(p.Mult(b.im))
	b.Angle += b.iI * rB.Cross(p)
}

func relativeVelocity(a, b *RigidBody, rA, rB cp.Vector) cp.Vector {
	return b.velocityAt(rB).Sub(a.velocityAt(rA))
}

// angularSlop is the angle error treated as solved. maxAngularCorrection
// caps one position pass.
const (
	angularSlop          = 2.0 / 180 * math.Pi
	maxAngularCorrection = 8.0 / 180 * math.Pi
)
