package collision

import (
	"math"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/motionsim/shape"
)

// hull is a convex polygon with a rounding radius. Capsules are two-vertex
// hulls.
type hull struct {
	verts   []cp.Vector
	normals []cp.Vector
	radius  float64
}

func hullOf(p *shape.Primitive) hull {
	if p.Kind == shape.PrimPolygon {
		return hull{verts: p.Vertices, normals: p.Normals}
	}
	e := p.B.Sub(p.A).Normalize()
	n := cp.Vector{X: e.Y, Y: -e.X}
	return hull{
		verts:   []cp.Vector{p.A, p.B},
		normals: []cp.Vector{n, n.Neg()},
		radius:  p.Radius,
	}
}

// findMaxSeparation returns the face of a whose plane separates b the most.
func findMaxSeparation(a, b hull) (int, float64) {
	best := 0
	bestSep := math.Inf(-1)
	for i, n := range a.normals {
		v := a.verts[i]
		minDot := math.Inf(1)
		for _, w := range b.verts {
			if d := n.Dot(w.Sub(v)); d < minDot {
				minDot = d
			}
		}
		if minDot > bestSep {
			bestSep = minDot
			best = i
		}
	}
	return best, bestSep
}

type clipVertex struct {
	v  cp.Vector
	id uint32
}

func clipSegment(in [2]clipVertex, normal cp.Vector, offset float64, vertexIndex int) ([]clipVertex, bool) {
	out := make([]clipVertex, 0, 2)
	d0 := normal.Dot(in[0].v) - offset
	d1 := normal.Dot(in[1].v) - offset
	if d0 <= 0 {
		out = append(out, in[0])
	}
	if d1 <= 0 {
		out = append(out, in[1])
	}
	if d0*d1 < 0 {
		t := d0 / (d0 - d1)
		out = append(out, clipVertex{
			v:  in[0].v.Lerp(in[1].v, t),
			id: uint32(vertexIndex)<<8 | in[0].id&0xff,
		})
	}
	return out, len(out) == 2
}

// collideHulls implements SAT with reference/incident face clipping for
// rounded convex hulls. The returned normal points from a to b.
func collideHulls(a, b hull) (Manifold, bool) {
	total := a.radius + b.radius

	edgeA, sepA := findMaxSeparation(a, b)
	if sepA > total {
		return Manifold{}, false
	}
	edgeB, sepB := findMaxSeparation(b, a)
	if sepB > total {
		return Manifold{}, false
	}

	if total > 0 && math.Max(sepA, sepB) > 0 {
		if m, ok, done := roundedCoreContact(a, b, sepA, sepB, edgeA, edgeB); done {
			return m, ok
		}
	}

	ref, inc := a, b
	edge := edgeA
	flip := false
	if sepB > sepA+referenceFaceTolerance {
		ref, inc = b, a
		edge = edgeB
		flip = true
	}

	refNormal := ref.normals[edge]

	// The incident edge is the one most anti-parallel to the reference normal.
	incEdge := 0
	minDot := math.Inf(1)
	for i, n := range inc.normals {
		if d := refNormal.Dot(n); d < minDot {
			minDot = d
			incEdge = i
		}
	}
	incident := [2]clipVertex{
		{v: inc.verts[incEdge], id: uint32(edge)<<8 | uint32(incEdge)},
		{v: inc.verts[(incEdge+1)%len(inc.verts)], id: uint32(edge)<<8 | uint32((incEdge+1)%len(inc.verts))},
	}

	v11 := ref.verts[edge]
	v12 := ref.verts[(edge+1)%len(ref.verts)]
	tangent := v12.Sub(v11).Normalize()

	clipped, ok := clipSegment(incident, tangent.Neg(), -tangent.Dot(v11), edge)
	if !ok {
		return Manifold{}, false
	}
	clipped, ok = clipSegment([2]clipVertex{clipped[0], clipped[1]}, tangent, tangent.Dot(v12), (edge+1)%len(ref.verts))
	if !ok {
		return Manifold{}, false
	}

	normal := refNormal
	frontOffset := normal.Dot(v11)
	m := Manifold{Normal: normal}
	for _, cv := range clipped {
		s := normal.Dot(cv.v) - frontOffset
		if s > total {
			continue
		}
		refSurface := cv.v.Sub(normal.Mult(s)).Add(normal.Mult(ref.radius))
		incSurface := cv.v.Sub(normal.Mult(inc.radius))
		m.Points = append(m.Points, Point{
			Position: refSurface.Lerp(incSurface, 0.5),
			Depth:    total - s,
			ID:       cv.id,
		})
	}
	if len(m.Points) == 0 {
		return Manifold{}, false
	}
	if flip {
		m.Normal = m.Normal.Neg()
	}
	return m, true
}

// faceAlignment is how close the core-to-core direction must be to a face
// normal for the pair to be treated as resting face to face.
const faceAlignment = 0.995

// roundedCoreContact handles rounded hulls whose cores do not overlap. Face
// normals alone overestimate contact near rounded ends, so the true closest
// features decide. done is false when the pair should fall through to face
// clipping.
func roundedCoreContact(a, b hull, sepA, sepB float64, edgeA, edgeB int) (m Manifold, ok, done bool) {
	total := a.radius + b.radius
	p, q, dist := closestBetweenHulls(a, b)
	if dist > total {
		return Manifold{}, false, true
	}
	if dist < degenerateLength {
		return Manifold{}, false, false
	}
	n := q.Sub(p).Mult(1 / dist)
	faceNormal := a.normals[edgeA]
	if sepB > sepA+referenceFaceTolerance {
		faceNormal = b.normals[edgeB].Neg()
	}
	if n.Dot(faceNormal) >= faceAlignment {
		return Manifold{}, false, false
	}
	surfaceA := p.Add(n.Mult(a.radius))
	surfaceB := q.Sub(n.Mult(b.radius))
	return Manifold{
		Normal: n,
		Points: []Point{{Position: surfaceA.Lerp(surfaceB, 0.5), Depth: total - dist, ID: 0xffff}},
	}, true, true
}

func closestBetweenHulls(a, b hull) (cp.Vector, cp.Vector, float64) {
	best := math.Inf(1)
	var bp, bq cp.Vector
	na, nb := edgeCount(a), edgeCount(b)
	for i := 0; i < na; i++ {
		a1, a2 := a.verts[i], a.verts[(i+1)%len(a.verts)]
		for j := 0; j < nb; j++ {
			b1, b2 := b.verts[j], b.verts[(j+1)%len(b.verts)]
			p, q := closestBetweenSegments(a1, a2, b1, b2)
			if d := p.DistanceSq(q); d < best {
				best, bp, bq = d, p, q
			}
		}
	}
	return bp, bq, math.Sqrt(best)
}

// edgeCount is 1 for a two-vertex hull, whose two faces share one edge.
func edgeCount(h hull) int {
	if len(h.verts) == 2 {
		return 1
	}
	return len(h.verts)
}
