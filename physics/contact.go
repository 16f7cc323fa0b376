package physics

import (
	"math"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/motionsim/collision"
	"github.com/milk9111/motionsim/common"
	"github.com/milk9111/motionsim/shape"
)

// ContactInfo is one contact point reported in a State. Normal points from
// BodyA into BodyB.
type ContactInfo struct {
	BodyA          string    `json:"body_a"`
	BodyB          string    `json:"body_b"`
	Point          cp.Vector `json:"point"`
	Normal         cp.Vector `json:"normal"`
	Depth          float64   `json:"depth"`
	NormalImpulse  float64   `json:"normal_impulse"`
	TangentImpulse float64   `json:"tangent_impulse"`
	Sensor         bool      `json:"sensor,omitempty"`
}

type contactKey struct {
	a, b string
	id   uint32
}

type cachedImpulse struct {
	normal, tangent float64
}

type contactPoint struct {
	id     uint32
	point  cp.Vector
	depth  float64
	localA cp.Vector
	localB cp.Vector

	rA, rB         cp.Vector
	normalMass     float64
	tangentMass    float64
	velocityBias   float64
	normalImpulse  float64
	tangentImpulse float64
}

type contact struct {
	a, b        *RigidBody
	normal      cp.Vector
	points      []contactPoint
	friction    float64
	restitution float64
	sensor      bool
}

func newContact(a, b *RigidBody, m collision.Manifold, sensor bool) *contact {
	c := &contact{
		a:           a,
		b:           b,
		normal:      m.Normal,
		friction:    shape.MixFriction(a.Material.Friction, b.Material.Friction),
		restitution: shape.MixRestitution(a.Material.Restitution, b.Material.Restitution),
		sensor:      sensor,
		points:      make([]contactPoint, len(m.Points)),
	}
	for i, p := range m.Points {
		half := m.Normal.Mult(p.Depth / 2)
		c.points[i] = contactPoint{
			id:     p.ID,
			point:  p.Position,
			depth:  p.Depth,
			localA: a.LocalPoint(p.Position.Add(half)),
			localB: b.LocalPoint(p.Position.Sub(half)),
		}
	}
	return c
}

func (c *contact) tangent() cp.Vector {
	return cp.Vector{X: c.normal.Y, Y: -c.normal.X}
}

// initVelocity computes effective masses and restitution targets, then
// warm starts from the cache.
func (c *contact) initVelocity(cache map[contactKey]cachedImpulse, restitutionThreshold float64) {
	a, b := c.a, c.b
	n, t := c.normal, c.tangent()
	for i := range c.points {
		p := &c.points[i]
		p.rA = p.point.Sub(a.Position)
		p.rB = p.point.Sub(b.Position)

		rnA, rnB := p.rA.Cross(n), p.rB.Cross(n)
		p.normalMass = invOrZero(a.im + b.im + a.iI*rnA*rnA + b.iI*rnB*rnB)
		rtA, rtB := p.rA.Cross(t), p.rB.Cross(t)
		p.tangentMass = invOrZero(a.im + b.im + a.iI*rtA*rtA + b.iI*rtB*rtB)

		p.velocityBias = 0
		vn := relativeVelocity(a, b, p.rA, p.rB).Dot(n)
		if vn < -restitutionThreshold {
			p.velocityBias = -c.restitution * vn
		}

		p.normalImpulse, p.tangentImpulse = 0, 0
		if cached, ok := cache[contactKey{a.ID, b.ID, p.id}]; ok {
			p.normalImpulse, p.tangentImpulse = cached.normal, cached.tangent
			applyVelocity(a, b, n.Mult(p.normalImpulse).Add(t.Mult(p.tangentImpulse)), p.rA, p.rB)
		}
	}
}

func (c *contact) solveVelocity() {
	a, b := c.a, c.b
	n, t := c.normal, c.tangent()
	for i := range c.points {
		p := &c.points[i]
		vt := relativeVelocity(a, b, p.rA, p.rB).Dot(t)
		maxFriction := c.friction * p.normalImpulse
		old := p.tangentImpulse
		p.tangentImpulse = common.Clamp(old-p.tangentMass*vt, -maxFriction, maxFriction)
		applyVelocity(a, b, t.Mult(p.tangentImpulse-old), p.rA, p.rB)
	}
	for i := range c.points {
		p := &c.points[i]
		vn := relativeVelocity(a, b, p.rA, p.rB).Dot(n)
		old := p.normalImpulse
		p.normalImpulse = math.Max(old-p.normalMass*(vn-p.velocityBias), 0)
		applyVelocity(a, b, n.Mult(p.normalImpulse-old), p.rA, p.rB)
	}
}

// solvePosition pushes the bodies apart along the normal and returns the
// smallest separation seen (negative when penetrating).
func (c *contact) solvePosition(bias, slop, maxCorrection float64) float64 {
	a, b := c.a, c.b
	n := c.normal
	minSeparation := math.Inf(1)
	for i := range c.points {
		p := &c.points[i]
		pA := a.WorldPoint(p.localA)
		pB := b.WorldPoint(p.localB)
		separation := pB.Sub(pA).Dot(n)
		minSeparation = math.Min(minSeparation, separation)

		point := pA.Lerp(pB, 0.5)
		rA, rB := point.Sub(a.Position), point.Sub(b.Position)
		rnA, rnB := rA.Cross(n), rB.Cross(n)
		k := a.im + b.im + a.iI*rnA*rnA + b.iI*rnB*rnB
		if k <= 0 {
			continue
		}
		corr := common.Clamp(bias*(separation+slop), -maxCorrection, 0)
		applyPosition(a, b, n.Mult(-corr/k), rA, rB)
	}
	return minSeparation
}

// separation is the current smallest separation without correcting.
func (c *contact) separation() float64 {
	s := math.Inf(1)
	for i := range c.points {
		p := &c.points[i]
		s = math.Min(s, c.b.WorldPoint(p.localB).Sub(c.a.WorldPoint(p.localA)).Dot(c.normal))
	}
	return s
}

func (c *contact) store(cache map[contactKey]cachedImpulse) {
	for _, p := range c.points {
		cache[contactKey{c.a.ID, c.b.ID, p.id}] = cachedImpulse{p.normalImpulse, p.tangentImpulse}
	}
}

func (c *contact) info() []ContactInfo {
	out := make([]ContactInfo, len(c.points))
	for i, p := range c.points {
		out[i] = ContactInfo{
			BodyA:          c.a.ID,
			BodyB:          c.b.ID,
			Point:          p.point,
			Normal:         c.normal,
			Depth:          p.depth,
			NormalImpulse:  p.normalImpulse,
			TangentImpulse: p.tangentImpulse,
			Sensor:         c.sensor,
		}
	}
	return out
}
