package physics

import (
	"math"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/motionsim/common"
)

// axisFrame is the shared geometry of constraints along the anchor axis.
type axisFrame struct {
	u        cp.Vector
	length   float64
	crA, crB float64
}

func (s *anchors) axis(a, b *RigidBody) axisFrame {
	s.update(a, b)
	d := b.Position.Add(s.rB).Sub(a.Position).Sub(s.rA)
	f := axisFrame{length: d.Length()}
	if f.length > 1e-9 {
		f.u = d.Mult(1 / f.length)
	}
	f.crA = s.rA.Cross(f.u)
	f.crB = s.rB.Cross(f.u)
	return f
}

func (f axisFrame) invMass(a, b *RigidBody) float64 {
	return a.im + a.iI*f.crA*f.crA + b.im + b.iI*f.crB*f.crB
}

// springSolver is a damped spring between the anchors.
type springSolver struct {
	anchors
	restLength float64
	stiffness  float64
	damping    float64

	impulse float64
	frame   axisFrame
	mass    float64
	gamma   float64
	bias    float64
}

func (s *springSolver) initVelocity(a, b *RigidBody, dt float64, warm bool) {
	s.frame = s.axis(a, b)
	s.mass, s.gamma, s.bias = 0, 0, 0
	invMass := s.frame.invMass(a, b)
	if invMass > 0 && s.frame.u != (cp.Vector{}) {
		var rate float64
		s.gamma, rate = softness(s.stiffness, s.damping, dt)
		s.bias = (s.frame.length - s.restLength) * rate
		s.mass = invOrZero(invMass + s.gamma)
	}
	if !warm || s.mass == 0 {
		s.impulse = 0
		return
	}
	applyVelocity(a, b, s.frame.u.Mult(s.impulse), s.rA, s.rB)
}

func (s *springSolver) solveVelocity(a, b *RigidBody, dt float64) {
	if s.mass == 0 {
		return
	}
	cdot := relativeVelocity(a, b, s.rA, s.rB).Dot(s.frame.u)
	impulse := -s.mass * (cdot + s.bias + s.gamma*s.impulse)
	s.impulse += impulse
	applyVelocity(a, b, s.frame.u.Mult(impulse), s.rA, s.rB)
}

func (s *springSolver) solvePosition(a, b *RigidBody, slop, maxCorrection float64) bool {
	return true
}

func (s *springSolver) appliedImpulse() float64 {
	return math.Abs(s.impulse)
}

func (s *springSolver) clone() jointSolver {
	out := *s
	return &out
}

// distanceSolver holds the anchors at a fixed distance. As a rope it only
// stops them from moving further apart than length.
type distanceSolver struct {
	anchors
	length float64
	rope   bool

	impulse float64
	frame   axisFrame
	mass    float64
}

func (s *distanceSolver) initVelocity(a, b *RigidBody, dt float64, warm bool) {
	s.frame = s.axis(a, b)
	s.mass = invOrZero(s.frame.invMass(a, b))
	if s.frame.u == (cp.Vector{}) {
		s.mass = 0
	}
	if !warm || s.mass == 0 {
		s.impulse = 0
		return
	}
	applyVelocity(a, b, s.frame.u.Mult(s.impulse), s.rA, s.rB)
}

func (s *distanceSolver) solveVelocity(a, b *RigidBody, dt float64) {
	if s.mass == 0 {
		return
	}
	cdot := relativeVelocity(a, b, s.rA, s.rB).Dot(s.frame.u)
	if !s.rope {
		impulse := -s.mass * cdot
		s.impulse += impulse
		applyVelocity(a, b, s.frame.u.Mult(impulse), s.rA, s.rB)
		return
	}
	// Slack is spent as speculative room before the rope goes taut.
	c := s.length - s.frame.length
	impulse := -s.mass * (cdot - math.Max(c, 0)/dt)
	old := s.impulse
	s.impulse = math.Min(old+impulse, 0)
	applyVelocity(a, b, s.frame.u.Mult(s.impulse-old), s.rA, s.rB)
}

func (s *distanceSolver) solvePosition(a, b *RigidBody, slop, maxCorrection float64) bool {
	f := s.axis(a, b)
	if f.u == (cp.Vector{}) {
		return true
	}
	c := f.length - s.length
	if s.rope {
		c = math.Max(c, 0)
	}
	c = common.Clamp(c, -maxCorrection, maxCorrection)
	impulse := -invOrZero(f.invMass(a, b)) * c
	applyPosition(a, b, f.u.Mult(impulse), s.rA, s.rB)
	return math.Abs(c) <= slop
}

func (s *distanceSolver) appliedImpulse() float64 {
	return math.Abs(s.impulse)
}

func (s *distanceSolver) clone() jointSolver {
	out := *s
	return &out
}
