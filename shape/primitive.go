package shape

import (
	"math"
	"sort"

	"github.com/jakecoffman/cp"
)

const areaEpsilon = 1e-9

// PrimitiveKind is the narrow-phase representation of a shape piece.
type PrimitiveKind int

const (
	PrimCircle PrimitiveKind = iota
	PrimSegment
	PrimPolygon
)

// Primitive is a convex piece of a shape in world space. Polygons are wound
// counter-clockwise with outward normals; segments are rounded by Radius.
type Primitive struct {
	Kind     PrimitiveKind
	Center   cp.Vector
	A, B     cp.Vector
	Radius   float64
	Vertices []cp.Vector
	Normals  []cp.Vector
	Index    int
}

func newPolygonPrimitive(local []cp.Vector, toWorld func(cp.Vector) cp.Vector, index int) Primitive {
	n := len(local)
	verts := make([]cp.Vector, n)
	for i, v := range local {
		verts[i] = toWorld(v)
	}
	return Primitive{
		Kind:     PrimPolygon,
		Vertices: verts,
		Normals:  edgeNormals(verts),
		Center:   centroid(verts),
		Index:    index,
	}
}

func edgeNormals(verts []cp.Vector) []cp.Vector {
	n := len(verts)
	normals := make([]cp.Vector, n)
	for i := 0; i < n; i++ {
		e := verts[(i+1)%n].Sub(verts[i])
		normals[i] = cp.Vector{X: e.Y, Y: -e.X}.Normalize()
	}
	return normals
}

func centroid(verts []cp.Vector) cp.Vector {
	if len(verts) < 3 {
		sum := cp.Vector{}
		for _, v := range verts {
			sum = sum.Add(v)
		}
		if len(verts) == 0 {
			return sum
		}
		return sum.Mult(1 / float64(len(verts)))
	}
	return cp.CentroidForPoly(len(verts), verts)
}

// Bounds returns the AABB of the primitive.
func (p Primitive) Bounds() cp.BB {
	switch p.Kind {
	case PrimCircle:
		return cp.NewBBForCircle(p.Center, p.Radius)
	case PrimSegment:
		return cp.BB{
			L: math.Min(p.A.X, p.B.X) - p.Radius,
			B: math.Min(p.A.Y, p.B.Y) - p.Radius,
			R: math.Max(p.A.X, p.B.X) + p.Radius,
			T: math.Max(p.A.Y, p.B.Y) + p.Radius,
		}
	default:
		bb := cp.BB{L: math.Inf(1), B: math.Inf(1), R: math.Inf(-1), T: math.Inf(-1)}
		for _, v := range p.Vertices {
			bb.L = math.Min(bb.L, v.X)
			bb.B = math.Min(bb.B, v.Y)
			bb.R = math.Max(bb.R, v.X)
			bb.T = math.Max(bb.T, v.Y)
		}
		return bb
	}
}

// Area of the primitive.
func (p Primitive) Area() float64 {
	switch p.Kind {
	case PrimCircle:
		return math.Pi * p.Radius * p.Radius
	case PrimSegment:
		return p.A.Distance(p.B)*2*p.Radius + math.Pi*p.Radius*p.Radius
	default:
		return math.Abs(cp.AreaForPoly(len(p.Vertices), p.Vertices, 0))
	}
}

// Centroid of the primitive.
func (p Primitive) Centroid() cp.Vector {
	switch p.Kind {
	case PrimCircle:
		return p.Center
	case PrimSegment:
		return p.A.Lerp(p.B, 0.5)
	default:
		return p.Center
	}
}

// signedArea is positive for counter-clockwise winding.
func signedArea(verts []cp.Vector) float64 {
	sum := 0.0
	n := len(verts)
	for i := 0; i < n; i++ {
		sum += verts[i].Cross(verts[(i+1)%n])
	}
	return sum / 2
}

func orientCCW(verts []cp.Vector) []cp.Vector {
	out := append([]cp.Vector(nil), verts...)
	if signedArea(out) < 0 {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

func isConvex(ccw []cp.Vector) bool {
	n := len(ccw)
	for i := 0; i < n; i++ {
		a, b, c := ccw[i], ccw[(i+1)%n], ccw[(i+2)%n]
		if b.Sub(a).Cross(c.Sub(b)) < -areaEpsilon {
			return false
		}
	}
	return true
}

// ConvexHull returns the counter-clockwise convex hull of points using the
// monotone chain algorithm. Collinear points are dropped.
func ConvexHull(points []cp.Vector) []cp.Vector {
	pts := append([]cp.Vector(nil), points...)
	if len(pts) < 3 {
		return pts
	}
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})
	turn := func(o, a, b cp.Vector) float64 { return a.Sub(o).Cross(b.Sub(o)) }

	hull := make([]cp.Vector, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && turn(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && turn(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}
