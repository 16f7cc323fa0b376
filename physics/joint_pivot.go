package physics

import (
	"math"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/motionsim/common"
)

// pivotSolver is a revolute joint with optional limits, motor and angular
// spring.
type pivotSolver struct {
	anchors
	params         PivotParams
	referenceAngle float64

	linearImpulse cp.Vector
	motorImpulse  float64
	springImpulse float64
	lowerImpulse  float64
	upperImpulse  float64

	k          mat22
	axialMass  float64
	gamma      float64
	springBias float64
}

func (s *pivotSolver) angle(a, b *RigidBody) float64 {
	return b.Angle - a.Angle - s.referenceAngle
}

func (s *pivotSolver) initVelocity(a, b *RigidBody, dt float64, warm bool) {
	s.update(a, b)
	s.k = pointMass(a, b, s.rA, s.rB)
	s.axialMass = invOrZero(a.iI + b.iI)

	s.gamma, s.springBias = 0, 0
	if s.params.Stiffness > 0 && s.axialMass > 0 {
		var rate float64
		s.gamma, rate = softness(s.params.Stiffness, s.params.Damping, dt)
		s.springBias = s.angle(a, b) * rate
	} else {
		s.springImpulse = 0
	}
	if !s.params.EnableMotor {
		s.motorImpulse = 0
	}
	if !s.params.EnableLimit {
		s.lowerImpulse, s.upperImpulse = 0, 0
	}

	if !warm {
		s.linearImpulse = cp.Vector{}
		s.motorImpulse, s.springImpulse, s.lowerImpulse, s.upperImpulse = 0, 0, 0, 0
		return
	}
	axial := s.motorImpulse + s.springImpulse + s.lowerImpulse - s.upperImpulse
	applyVelocity(a, b, s.linearImpulse, s.rA, s.rB)
	a.AngularVelocity -= a.iI * axial
	b.AngularVelocity += b.iI * axial
}

func (s *pivotSolver) applyAxial(a, b *RigidBody, impulse float64) {
	a.AngularVelocity -= a.iI * impulse
	b.AngularVelocity += b.iI * impulse
}

func (s *pivotSolver) solveVelocity(a, b *RigidBody, dt float64) {
	if s.gamma > 0 {
		cdot := b.AngularVelocity - a.AngularVelocity
		mass := invOrZero(a.iI + b.iI + s.gamma)
		impulse := -mass * (cdot + s.springBias + s.gamma*s.springImpulse)
		s.springImpulse += impulse
		s.applyAxial(a, b, impulse)
	}

	if s.params.EnableMotor && s.axialMass > 0 {
		speed := s.params.MotorSpeed
		if s.params.TargetAngle != nil {
			speed = (*s.params.TargetAngle - s.angle(a, b)) / dt
		}
		cdot := b.AngularVelocity - a.AngularVelocity - speed
		impulse := -s.axialMass * cdot
		old := s.motorImpulse
		limit := s.params.MaxTorque * dt
		s.motorImpulse = common.Clamp(old+impulse, -limit, limit)
		s.applyAxial(a, b, s.motorImpulse-old)
	}

	if s.params.EnableLimit && s.axialMass > 0 {
		angle := s.angle(a, b)
		{
			c := angle - s.params.LowerAngle
			cdot := b.AngularVelocity - a.AngularVelocity
			impulse := -s.axialMass * (cdot + math.Max(c, 0)/dt)
			old := s.lowerImpulse
			s.lowerImpulse = math.Max(old+impulse, 0)
			s.applyAxial(a, b, s.lowerImpulse-old)
		}
		{
			c := s.params.UpperAngle - angle
			cdot := a.AngularVelocity - b.AngularVelocity
			impulse := -s.axialMass * (cdot + math.Max(c, 0)/dt)
			old := s.upperImpulse
			s.upperImpulse = math.Max(old+impulse, 0)
			s.applyAxial(a, b, -(s.upperImpulse - old))
		}
	}

	cdot := relativeVelocity(a, b, s.rA, s.rB)
	impulse := s.k.solve(cdot.Neg())
	s.linearImpulse = s.linearImpulse.Add(impulse)
	applyVelocity(a, b, impulse, s.rA, s.rB)
}

func (s *pivotSolver) solvePosition(a, b *RigidBody, slop, maxCorrection float64) bool {
	angularError := 0.0
	if s.params.EnableLimit && a.iI+b.iI > 0 {
		angle := s.angle(a, b)
		c := 0.0
		switch {
		case math.Abs(s.params.UpperAngle-s.params.LowerAngle) < 2*angularSlop:
			c = common.Clamp(angle-s.params.LowerAngle, -maxAngularCorrection, maxAngularCorrection)
		case angle <= s.params.LowerAngle:
			c = common.Clamp(angle-s.params.LowerAngle+angularSlop, -maxAngularCorrection, 0)
		case angle >= s.params.UpperAngle:
			c = common.Clamp(angle-s.params.UpperAngle-angularSlop, 0, maxAngularCorrection)
		}
		impulse := -c / (a.iI + b.iI)
		a.Angle -= a.iI * impulse
		b.Angle += b.iI * impulse
		angularError = math.Abs(c)
	}

	s.update(a, b)
	c := b.Position.Add(s.rB).Sub(a.Position).Sub(s.rA)
	positionError := c.Length()
	if positionError > maxCorrection {
		c = c.Mult(maxCorrection / positionError)
	}
	impulse := pointMass(a, b, s.rA, s.rB).solve(c.Neg())
	applyPosition(a, b, impulse, s.rA, s.rB)
	return positionError <= slop && angularError <= angularSlop
}

func (s *pivotSolver) appliedImpulse() float64 {
	return s.linearImpulse.Length()
}

func (s *pivotSolver) clone() jointSolver {
	out := *s
	if s.params.TargetAngle != nil {
		t := *s.params.TargetAngle
		out.params.TargetAngle = &t
	}
	return &out
}
