package physics

import (
	"math"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/motionsim/common"
)

// weldSolver glues B to A. With a frequency it becomes a blob joint: both
// the point and the angle are held by springs.
type weldSolver struct {
	anchors
	referenceAngle float64
	frequency      float64
	dampingRatio   float64

	linearImpulse  cp.Vector
	angularImpulse float64

	k            mat22
	angularMass  float64
	linearGamma  float64
	linearBias   cp.Vector
	angularGamma float64
	angularBias  float64
}

func (s *weldSolver) soft() bool {
	return s.frequency > 0
}

func (s *weldSolver) initVelocity(a, b *RigidBody, dt float64, warm bool) {
	s.update(a, b)
	s.k = pointMass(a, b, s.rA, s.rB)
	invI := a.iI + b.iI
	s.angularMass = invOrZero(invI)
	s.linearGamma, s.linearBias, s.angularGamma, s.angularBias = 0, cp.Vector{}, 0, 0

	if s.soft() {
		omega := 2 * math.Pi * s.frequency
		if m := invOrZero(a.im + b.im); m > 0 {
			gamma, rate := softness(m*omega*omega, 2*m*s.dampingRatio*omega, dt)
			c := b.Position.Add(s.rB).Sub(a.Position).Sub(s.rA)
			s.linearGamma, s.linearBias = gamma, c.Mult(rate)
		}
		if s.angularMass > 0 {
			gamma, rate := softness(s.angularMass*omega*omega, 2*s.angularMass*s.dampingRatio*omega, dt)
			s.angularGamma = gamma
			s.angularBias = (b.Angle - a.Angle - s.referenceAngle) * rate
			s.angularMass = invOrZero(invI + gamma)
		}
	}

	if !warm {
		s.linearImpulse, s.angularImpulse = cp.Vector{}, 0
		return
	}
	applyVelocity(a, b, s.linearImpulse, s.rA, s.rB)
	a.AngularVelocity -= a.iI * s.angularImpulse
	b.AngularVelocity += b.iI * s.angularImpulse
}

func (s *weldSolver) solveVelocity(a, b *RigidBody, dt float64) {
	if s.angularMass > 0 {
		cdot := b.AngularVelocity - a.AngularVelocity
		impulse := -s.angularMass * (cdot + s.angularBias + s.angularGamma*s.angularImpulse)
		s.angularImpulse += impulse
		a.AngularVelocity -= a.iI * impulse
		b.AngularVelocity += b.iI * impulse
	}

	cdot := relativeVelocity(a, b, s.rA, s.rB)
	k := s.k
	if s.linearGamma > 0 {
		k.ex.X += s.linearGamma
		k.ey.Y += s.linearGamma
		cdot = cdot.Add(s.linearBias).Add(s.linearImpulse.Mult(s.linearGamma))
	}
	impulse := k.solve(cdot.Neg())
	s.linearImpulse = s.linearImpulse.Add(impulse)
	applyVelocity(a, b, impulse, s.rA, s.rB)
}

func (s *weldSolver) solvePosition(a, b *RigidBody, slop, maxCorrection float64) bool {
	if s.soft() {
		return true
	}
	angularError := 0.0
	if invI := a.iI + b.iI; invI > 0 {
		c := b.Angle - a.Angle - s.referenceAngle
		angularError = math.Abs(c)
		c = common.Clamp(c, -maxAngularCorrection, maxAngularCorrection)
		a.Angle += a.iI * c / invI
		b.Angle -= b.iI * c / invI
	}
	s.update(a, b)
	c := b.Position.Add(s.rB).Sub(a.Position).Sub(s.rA)
	linearError := c.Length()
	if linearError > maxCorrection {
		c = c.Mult(maxCorrection / linearError)
	}
	impulse := pointMass(a, b, s.rA, s.rB).solve(c.Neg())
	applyPosition(a, b, impulse, s.rA, s.rB)
	return linearError <= slop && angularError <= angularSlop
}

func (s *weldSolver) appliedImpulse() float64 {
	return s.linearImpulse.Length()
}

func (s *weldSolver) clone() jointSolver {
	out := *s
	return &out
}
