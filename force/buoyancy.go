package force

import (
	"math"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/motionsim/shape"
)

// capSteps is how many points sample each rounded end of a segment when it
// is clipped as a polygon.
const capSteps = 8

// submerged clips prims against the surface at level, where the fluid is
// everything with y >= level, and returns the displaced area and its
// centroid.
func submerged(prims []shape.Primitive, level float64) (area float64, centroid cp.Vector) {
	var moment cp.Vector
	for _, p := range prims {
		var a float64
		var c cp.Vector
		switch p.Kind {
		case shape.PrimCircle:
			a, c = submergedCircle(p.Center, p.Radius, level)
		case shape.PrimSegment:
			a, c = submergedPoly(capsule(p.A, p.B, p.Radius), level)
		default:
			a, c = submergedPoly(p.Vertices, level)
		}
		if a <= 0 {
			continue
		}
		area += a
		moment = moment.Add(c.Mult(a))
	}
	if area <= 0 {
		return 0, cp.Vector{}
	}
	return area, moment.Mult(1 / area)
}

// submergedPoly keeps the part of a convex polygon below the surface.
func submergedPoly(verts []cp.Vector, level float64) (float64, cp.Vector) {
	n := len(verts)
	if n < 3 {
		return 0, cp.Vector{}
	}
	clipped := make([]cp.Vector, 0, n+1)
	j := n - 1
	for i := 0; i < n; i++ {
		a, b := verts[j], verts[i]
		if a.Y >= level {
			clipped = append(clipped, a)
		}
		aLevel, bLevel := a.Y-level, b.Y-level
		if aLevel*bLevel < 0 {
			t := math.Abs(aLevel) / (math.Abs(aLevel) + math.Abs(bLevel))
			clipped = append(clipped, a.Lerp(b, t))
		}
		j = i
	}
	if len(clipped) < 3 {
		return 0, cp.Vector{}
	}
	area := math.Abs(cp.AreaForPoly(len(clipped), clipped, 0))
	if area <= 0 {
		return 0, cp.Vector{}
	}
	return area, cp.CentroidForPoly(len(clipped), clipped)
}

// submergedCircle is the circular segment below the surface.
func submergedCircle(center cp.Vector, r, level float64) (float64, cp.Vector) {
	d := level - center.Y
	switch {
	case d >= r || r <= 0:
		return 0, cp.Vector{}
	case d <= -r:
		return math.Pi * r * r, center
	}
	h := math.Sqrt(r*r - d*d)
	area := r*r*math.Acos(d/r) - d*h
	offset := 2 * h * h * h / (3 * area)
	return area, center.Add(cp.Vector{Y: offset})
}

// capsule outlines a rounded segment, counter-clockwise.
func capsule(a, b cp.Vector, r float64) []cp.Vector {
	dir := b.Sub(a)
	if dir.LengthSq() < 1e-18 {
		dir = cp.Vector{X: 1}
	}
	start := math.Atan2(dir.Y, dir.X)
	out := make([]cp.Vector, 0, 2*(capSteps+1))
	for i := 0; i <= capSteps; i++ {
		th := start - math.Pi/2 + math.Pi*float64(i)/capSteps
		out = append(out, b.Add(cp.ForAngle(th).Mult(r)))
	}
	for i := 0; i <= capSteps; i++ {
		th := start + math.Pi/2 + math.Pi*float64(i)/capSteps
		out = append(out, a.Add(cp.ForAngle(th).Mult(r)))
	}
	return out
}
