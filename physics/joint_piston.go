package physics

import (
	"math"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/motionsim/common"
)

// slideFrame is the geometry of a joint that slides B along an axis fixed
// in A.
type slideFrame struct {
	axis, perp   cp.Vector
	a1, a2       float64
	s1, s2       float64
	translation  float64
	axialInvMass float64
}

func (s *anchors) slide(a, b *RigidBody, localAxis cp.Vector) slideFrame {
	s.update(a, b)
	d := b.Position.Add(s.rB).Sub(a.Position).Sub(s.rA)
	f := slideFrame{
		axis: common.Rotate(localAxis, a.Angle),
	}
	f.perp = f.axis.Perp()
	f.a1 = d.Add(s.rA).Cross(f.axis)
	f.a2 = s.rB.Cross(f.axis)
	f.s1 = d.Add(s.rA).Cross(f.perp)
	f.s2 = s.rB.Cross(f.perp)
	f.translation = f.axis.Dot(d)
	f.axialInvMass = a.im + b.im + a.iI*f.a1*f.a1 + b.iI*f.a2*f.a2
	return f
}

// axialCdot is the relative velocity along the axis.
func (f slideFrame) axialCdot(a, b *RigidBody) float64 {
	return f.axis.Dot(b.Velocity.Sub(a.Velocity)) + f.a2*b.AngularVelocity - f.a1*a.AngularVelocity
}

// applyAxial applies impulse along the axis, positive pushing B forward.
func (f slideFrame) applyAxial(a, b *RigidBody, impulse float64) {
	p := f.axis.Mult(impulse)
	a.Velocity = a.Velocity.Sub(p.Mult(a.im))
	a.AngularVelocity -= a.iI * impulse * f.a1
	b.Velocity = b.Velocity.Add(p.Mult(b.im))
	b.AngularVelocity += b.iI * impulse * f.a2
}

// pistonSolver is a prismatic joint: B slides along the axis, relative
// rotation is locked.
type pistonSolver struct {
	anchors
	params         PistonParams
	localAxis      cp.Vector
	referenceAngle float64

	impulse      cp.Vector
	motorImpulse float64
	lowerImpulse float64
	upperImpulse float64

	frame     slideFrame
	axialMass float64
}

func (s *pistonSolver) k(a, b *RigidBody, f slideFrame) mat22 {
	k11 := a.im + b.im + a.iI*f.s1*f.s1 + b.iI*f.s2*f.s2
	k12 := a.iI*f.s1 + b.iI*f.s2
	k22 := a.iI + b.iI
	if k22 == 0 {
		k22 = 1
	}
	return mat22{ex: cp.Vector{X: k11, Y: k12}, ey: cp.Vector{X: k12, Y: k22}}
}

func (s *pistonSolver) initVelocity(a, b *RigidBody, dt float64, warm bool) {
	s.frame = s.slide(a, b, s.localAxis)
	s.axialMass = invOrZero(s.frame.axialInvMass)
	if !s.params.EnableMotor {
		s.motorImpulse = 0
	}
	if !s.params.EnableLimit {
		s.lowerImpulse, s.upperImpulse = 0, 0
	}
	if !warm {
		s.impulse = cp.Vector{}
		s.motorImpulse, s.lowerImpulse, s.upperImpulse = 0, 0, 0
		return
	}
	f := s.frame
	axial := s.motorImpulse + s.lowerImpulse - s.upperImpulse
	p := f.perp.Mult(s.impulse.X).Add(f.axis.Mult(axial))
	lA := s.impulse.X*f.s1 + s.impulse.Y + axial*f.a1
	lB := s.impulse.X*f.s2 + s.impulse.Y + axial*f.a2
	a.Velocity = a.Velocity.Sub(p.Mult(a.im))
	a.AngularVelocity -= a.iI * lA
	b.Velocity = b.Velocity.Add(p.Mult(b.im))
	b.AngularVelocity += b.iI * lB
}

func (s *pistonSolver) solveVelocity(a, b *RigidBody, dt float64) {
	f := s.frame
	if s.params.EnableMotor && s.axialMass > 0 {
		cdot := f.axialCdot(a, b)
		impulse := s.axialMass * (s.params.MotorSpeed - cdot)
		old := s.motorImpulse
		limit := s.params.MaxMotorForce * dt
		s.motorImpulse = common.Clamp(old+impulse, -limit, limit)
		f.applyAxial(a, b, s.motorImpulse-old)
	}
	if s.params.EnableLimit && s.axialMass > 0 {
		{
			c := f.translation - s.params.Lower
			impulse := -s.axialMass * (f.axialCdot(a, b) + math.Max(c, 0)/dt)
			old := s.lowerImpulse
			s.lowerImpulse = math.Max(old+impulse, 0)
			f.applyAxial(a, b, s.lowerImpulse-old)
		}
		{
			c := s.params.Upper - f.translation
			impulse := -s.axialMass * (-f.axialCdot(a, b) + math.Max(c, 0)/dt)
			old := s.upperImpulse
			s.upperImpulse = math.Max(old+impulse, 0)
			f.applyAxial(a, b, -(s.upperImpulse - old))
		}
	}

	cdot := cp.Vector{
		X: f.perp.Dot(b.Velocity.Sub(a.Velocity)) + f.s2*b.AngularVelocity - f.s1*a.AngularVelocity,
		Y: b.AngularVelocity - a.AngularVelocity,
	}
	df := s.k(a, b, f).solve(cdot.Neg())
	s.impulse = s.impulse.Add(df)
	p := f.perp.Mult(df.X)
	a.Velocity = a.Velocity.Sub(p.Mult(a.im))
	a.AngularVelocity -= a.iI * (df.X*f.s1 + df.Y)
	b.Velocity = b.Velocity.Add(p.Mult(b.im))
	b.AngularVelocity += b.iI * (df.X*f.s2 + df.Y)
}

func (s *pistonSolver) solvePosition(a, b *RigidBody, slop, maxCorrection float64) bool {
	f := s.slide(a, b, s.localAxis)
	d := b.Position.Add(s.rB).Sub(a.Position).Sub(s.rA)
	c := cp.Vector{X: f.perp.Dot(d), Y: b.Angle - a.Angle - s.referenceAngle}
	linearError := math.Abs(c.X)
	angularError := math.Abs(c.Y)
	c.X = common.Clamp(c.X, -maxCorrection, maxCorrection)
	impulse := s.k(a, b, f).solve(c.Neg())
	p := f.perp.Mult(impulse.X)
	a.Position = a.Position.Sub(p.Mult(a.im))
	a.Angle -= a.iI * (impulse.X*f.s1 + impulse.Y)
	b.Position = b.Position.Add(p.Mult(b.im))
	b.Angle += b.iI * (impulse.X*f.s2 + impulse.Y)

	if s.params.EnableLimit {
		f = s.slide(a, b, s.localAxis)
		limitError := 0.0
		switch {
		case f.translation < s.params.Lower:
			limitError = common.Clamp(f.translation-s.params.Lower, -maxCorrection, 0)
		case f.translation > s.params.Upper:
			limitError = common.Clamp(f.translation-s.params.Upper, 0, maxCorrection)
		}
		if limitError != 0 {
			impulse := -limitError * invOrZero(f.axialInvMass)
			p := f.axis.Mult(impulse)
			a.Position = a.Position.Sub(p.Mult(a.im))
			a.Angle -= a.iI * impulse * f.a1
			b.Position = b.Position.Add(p.Mult(b.im))
			b.Angle += b.iI * impulse * f.a2
		}
		linearError = math.Max(linearError, math.Abs(limitError))
	}
	return linearError <= slop && angularError <= angularSlop
}

func (s *pistonSolver) appliedImpulse() float64 {
	return math.Hypot(s.impulse.X, s.motorImpulse+s.lowerImpulse-s.upperImpulse)
}

func (s *pistonSolver) clone() jointSolver {
	out := *s
	return &out
}

// wheelSolver keeps B's anchor on the axis line through A's anchor with a
// suspension spring along the axis, and lets B spin under an optional
// motor.
type wheelSolver struct {
	anchors
	wheel     WheelParams
	localAxis cp.Vector

	lineImpulse   float64
	springImpulse float64
	motorImpulse  float64

	frame      slideFrame
	lineMass   float64
	springMass float64
	motorMass  float64
	gamma      float64
	bias       float64
}

func (s *wheelSolver) initVelocity(a, b *RigidBody, dt float64, warm bool) {
	f := s.slide(a, b, s.localAxis)
	s.frame = f
	s.lineMass = invOrZero(a.im + b.im + a.iI*f.s1*f.s1 + b.iI*f.s2*f.s2)
	s.motorMass = invOrZero(a.iI + b.iI)

	s.springMass, s.gamma, s.bias = 0, 0, 0
	if s.wheel.Stiffness > 0 && f.axialInvMass > 0 {
		var rate float64
		s.gamma, rate = softness(s.wheel.Stiffness, s.wheel.Damping, dt)
		s.bias = f.translation * rate
		s.springMass = invOrZero(f.axialInvMass + s.gamma)
	} else {
		s.springImpulse = 0
	}
	if !s.wheel.EnableMotor {
		s.motorImpulse = 0
	}
	if !warm {
		s.lineImpulse, s.springImpulse, s.motorImpulse = 0, 0, 0
		return
	}
	p := f.perp.Mult(s.lineImpulse).Add(f.axis.Mult(s.springImpulse))
	lA := s.lineImpulse*f.s1 + s.springImpulse*f.a1 + s.motorImpulse
	lB := s.lineImpulse*f.s2 + s.springImpulse*f.a2 + s.motorImpulse
	a.Velocity = a.Velocity.Sub(p.Mult(a.im))
	a.AngularVelocity -= a.iI * lA
	b.Velocity = b.Velocity.Add(p.Mult(b.im))
	b.AngularVelocity += b.iI * lB
}

func (s *wheelSolver) solveVelocity(a, b *RigidBody, dt float64) {
	f := s.frame
	if s.springMass > 0 {
		cdot := f.axialCdot(a, b)
		impulse := -s.springMass * (cdot + s.bias + s.gamma*s.springImpulse)
		s.springImpulse += impulse
		f.applyAxial(a, b, impulse)
	}
	if s.wheel.EnableMotor && s.motorMass > 0 {
		cdot := b.AngularVelocity - a.AngularVelocity - s.wheel.MotorSpeed
		impulse := -s.motorMass * cdot
		old := s.motorImpulse
		limit := s.wheel.MaxMotorTorque * dt
		s.motorImpulse = common.Clamp(old+impulse, -limit, limit)
		impulse = s.motorImpulse - old
		a.AngularVelocity -= a.iI * impulse
		b.AngularVelocity += b.iI * impulse
	}
	if s.lineMass > 0 {
		cdot := f.perp.Dot(b.Velocity.Sub(a.Velocity)) + f.s2*b.AngularVelocity - f.s1*a.AngularVelocity
		impulse := -s.lineMass * cdot
		s.lineImpulse += impulse
		p := f.perp.Mult(impulse)
		a.Velocity = a.Velocity.Sub(p.Mult(a.im))
		a.AngularVelocity -= a.iI * impulse * f.s1
		b.Velocity = b.Velocity.Add(p.Mult(b.im))
		b.AngularVelocity += b.iI * impulse * f.s2
	}
}

func (s *wheelSolver) solvePosition(a, b *RigidBody, slop, maxCorrection float64) bool {
	f := s.slide(a, b, s.localAxis)
	d := b.Position.Add(s.rB).Sub(a.Position).Sub(s.rA)
	c := f.perp.Dot(d)
	k := a.im + b.im + a.iI*f.s1*f.s1 + b.iI*f.s2*f.s2
	if k > 0 {
		impulse := -common.Clamp(c, -maxCorrection, maxCorrection) / k
		p := f.perp.Mult(impulse)
		a.Position = a.Position.Sub(p.Mult(a.im))
		a.Angle -= a.iI * impulse * f.s1
		b.Position = b.Position.Add(p.Mult(b.im))
		b.Angle += b.iI * impulse * f.s2
	}
	return math.Abs(c) <= slop
}

func (s *wheelSolver) appliedImpulse() float64 {
	return math.Hypot(s.lineImpulse, s.springImpulse)
}

func (s *wheelSolver) clone() jointSolver {
	out := *s
	return &out
}
