package collision

import (
	"math"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/motionsim/shape"
)

const (
	degenerateLength = 1e-9
	// referenceFaceTolerance keeps the reference face from flip-flopping
	// between two nearly equal separating axes from one step to the next.
	referenceFaceTolerance = 1e-3
)

// Point is one contact point of a manifold.
type Point struct {
	// Position lies midway between the two surfaces.
	Position cp.Vector
	// Depth is the penetration along the manifold normal (positive when
	// overlapping).
	Depth float64
	// ID identifies the feature pair so impulses can be warm started.
	ID uint32
}

// Manifold describes how two primitives touch. Normal points from A to B.
type Manifold struct {
	Normal cp.Vector
	Points []Point
	PrimA  int
	PrimB  int
}

// Collide runs the narrow phase for every primitive pair of two shapes
// (compounds contribute one primitive per child).
func Collide(a, b []shape.Primitive) []Manifold {
	var out []Manifold
	for i := range a {
		bbA := a[i].Bounds()
		for j := range b {
			if !bbA.Intersects(b[j].Bounds()) {
				continue
			}
			m, ok := collidePrimitives(&a[i], &b[j])
			if !ok {
				continue
			}
			m.PrimA, m.PrimB = a[i].Index, b[j].Index
			for k := range m.Points {
				m.Points[k].ID |= uint32(a[i].Index&0xff)<<24 | uint32(b[j].Index&0xff)<<16
			}
			out = append(out, m)
		}
	}
	return out
}

// CollideCircle tests a free circle against a shape and returns the deepest
// contact, with the normal pointing from the circle into the shape.
func CollideCircle(center cp.Vector, radius float64, prims []shape.Primitive) (cp.Vector, float64, bool) {
	query := shape.Primitive{Kind: shape.PrimCircle, Center: center, Radius: radius}
	bb := query.Bounds()
	var (
		bestNormal cp.Vector
		bestDepth  float64
		found      bool
	)
	for i := range prims {
		if !bb.Intersects(prims[i].Bounds()) {
			continue
		}
		m, ok := collidePrimitives(&query, &prims[i])
		if !ok {
			continue
		}
		for _, p := range m.Points {
			if !found || p.Depth > bestDepth {
				bestNormal, bestDepth, found = m.Normal, p.Depth, true
			}
		}
	}
	return bestNormal, bestDepth, found
}

// Overlaps reports whether any primitive of a touches any primitive of b.
func Overlaps(a, b []shape.Primitive) bool {
	for i := range a {
		for j := range b {
			if !a[i].Bounds().Intersects(b[j].Bounds()) {
				continue
			}
			if m, ok := collidePrimitives(&a[i], &b[j]); ok && len(m.Points) > 0 {
				return true
			}
		}
	}
	return false
}

func collidePrimitives(a, b *shape.Primitive) (Manifold, bool) {
	ka, kb := effectiveKind(a), effectiveKind(b)
	if ka > kb {
		m, ok := collidePrimitives(b, a)
		if ok {
			m.Normal = m.Normal.Neg()
		}
		return m, ok
	}
	switch {
	case ka == shape.PrimCircle && kb == shape.PrimCircle:
		return circleCircle(circleCenter(a), a.Radius, circleCenter(b), b.Radius)
	case ka == shape.PrimCircle && kb == shape.PrimSegment:
		q := closestOnSegment(circleCenter(a), b.A, b.B)
		return circleCircle(circleCenter(a), a.Radius, q, b.Radius)
	case ka == shape.PrimCircle && kb == shape.PrimPolygon:
		m, ok := polygonCircle(b, circleCenter(a), a.Radius)
		if ok {
			m.Normal = m.Normal.Neg()
		}
		return m, ok
	case ka == shape.PrimSegment && kb == shape.PrimSegment:
		p, q := closestBetweenSegments(a.A, a.B, b.A, b.B)
		return circleCircle(p, a.Radius, q, b.Radius)
	default:
		return collideHulls(hullOf(a), hullOf(b))
	}
}

// effectiveKind demotes zero-length capsules to circles.
func effectiveKind(p *shape.Primitive) shape.PrimitiveKind {
	if p.Kind == shape.PrimSegment && p.A.DistanceSq(p.B) < degenerateLength {
		return shape.PrimCircle
	}
	return p.Kind
}

func circleCenter(p *shape.Primitive) cp.Vector {
	if p.Kind == shape.PrimSegment {
		return p.A
	}
	return p.Center
}

func circleCircle(ca cp.Vector, ra float64, cb cp.Vector, rb float64) (Manifold, bool) {
	d := cb.Sub(ca)
	r := ra + rb
	dist2 := d.LengthSq()
	if dist2 > r*r {
		return Manifold{}, false
	}
	dist := math.Sqrt(dist2)
	n := cp.Vector{X: 0, Y: 1}
	if dist > degenerateLength {
		n = d.Mult(1 / dist)
	}
	depth := r - dist
	return Manifold{
		Normal: n,
		Points: []Point{{Position: ca.Add(n.Mult(ra - depth/2)), Depth: depth}},
	}, true
}

// polygonCircle returns a manifold with the normal pointing from the polygon
// to the circle.
func polygonCircle(poly *shape.Primitive, c cp.Vector, r float64) (Manifold, bool) {
	verts, normals := poly.Vertices, poly.Normals
	n := len(verts)
	separation := math.Inf(-1)
	face := 0
	for i := 0; i < n; i++ {
		s := normals[i].Dot(c.Sub(verts[i]))
		if s > r {
			return Manifold{}, false
		}
		if s > separation {
			separation = s
			face = i
		}
	}

	v1, v2 := verts[face], verts[(face+1)%n]
	normal := normals[face]
	closest := c.Sub(normal.Mult(separation))
	if separation > 0 {
		switch {
		case c.Sub(v1).Dot(v2.Sub(v1)) <= 0:
			closest = v1
		case c.Sub(v2).Dot(v1.Sub(v2)) <= 0:
			closest = v2
		}
		d := c.Sub(closest)
		dist2 := d.LengthSq()
		if dist2 > r*r {
			return Manifold{}, false
		}
		if dist2 > degenerateLength {
			dist := math.Sqrt(dist2)
			normal = d.Mult(1 / dist)
			separation = dist
		}
	}
	depth := r - separation
	deepest := c.Sub(normal.Mult(r))
	surface := c.Sub(normal.Mult(separation))
	return Manifold{
		Normal: normal,
		Points: []Point{{Position: deepest.Lerp(surface, 0.5), Depth: depth, ID: uint32(face)}},
	}, true
}

func closestOnSegment(p, a, b cp.Vector) cp.Vector {
	ab := b.Sub(a)
	l2 := ab.LengthSq()
	if l2 < degenerateLength {
		return a
	}
	t := p.Sub(a).Dot(ab) / l2
	t = math.Max(0, math.Min(1, t))
	return a.Add(ab.Mult(t))
}

// closestBetweenSegments returns the closest points on segments p1q1 and
// p2q2.
func closestBetweenSegments(p1, q1, p2, q2 cp.Vector) (cp.Vector, cp.Vector) {
	d1, d2 := q1.Sub(p1), q2.Sub(p2)
	r := p1.Sub(p2)
	a, e := d1.LengthSq(), d2.LengthSq()
	f := d2.Dot(r)

	var s, t float64
	switch {
	case a < degenerateLength && e < degenerateLength:
		return p1, p2
	case a < degenerateLength:
		t = clamp01(f / e)
	default:
		c := d1.Dot(r)
		if e < degenerateLength {
			s = clamp01(-c / a)
		} else {
			b := d1.Dot(d2)
			denom := a*e - b*b
			if denom > degenerateLength {
				s = clamp01((b*f - c*e) / denom)
			}
			t = (b*s + f) / e
			if t < 0 {
				t = 0
				s = clamp01(-c / a)
			} else if t > 1 {
				t = 1
				s = clamp01((b - c) / a)
			}
		}
	}
	return p1.Add(d1.Mult(s)), p2.Add(d2.Mult(t))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
