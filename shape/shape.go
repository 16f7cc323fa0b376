// Package shape holds the collision shape variants and surface materials
// attached to rigid bodies, plus the geometric queries the collision and
// mass computations need.
package shape

import (
	"fmt"
	"math"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/motionsim/common"
)

// Kind selects the active payload of a Shape.
type Kind int

const (
	Circle Kind = iota
	Box
	Polygon
	Capsule
	Convex
	Compound
)

var kindNames = [...]string{"circle", "box", "polygon", "capsule", "convex", "compound"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

func (k Kind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(kindNames) {
		return nil, fmt.Errorf("shape: unknown kind %d", int(k))
	}
	return []byte(kindNames[k]), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for i, n := range kindNames {
		if n == string(b) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("shape: unknown kind %q", string(b))
}

// Shape is a closed tagged variant. Kind decides which fields are read:
//
//	circle:   Radius
//	box:      Width, Height
//	polygon:  Vertices (convex, any winding)
//	capsule:  Length (distance between cap centres, along local X), Radius
//	convex:   Vertices (any point cloud, hull is taken)
//	compound: Children
//
// Offset and Rotation place the shape relative to its body (or its parent
// compound).
type Shape struct {
	Kind     Kind        `json:"kind" yaml:"kind"`
	Radius   float64     `json:"radius,omitempty" yaml:"radius"`
	Width    float64     `json:"width,omitempty" yaml:"width"`
	Height   float64     `json:"height,omitempty" yaml:"height"`
	Length   float64     `json:"length,omitempty" yaml:"length"`
	Vertices []cp.Vector `json:"vertices,omitempty" yaml:"vertices"`
	Children []Shape     `json:"children,omitempty" yaml:"children"`
	Offset   cp.Vector   `json:"offset" yaml:"offset"`
	Rotation float64     `json:"rotation,omitempty" yaml:"rotation"`
}

func NewCircle(radius float64) Shape {
	return Shape{Kind: Circle, Radius: radius}
}

func NewBox(width, height float64) Shape {
	return Shape{Kind: Box, Width: width, Height: height}
}

func NewPolygon(verts ...cp.Vector) Shape {
	return Shape{Kind: Polygon, Vertices: append([]cp.Vector(nil), verts...)}
}

func NewCapsule(length, radius float64) Shape {
	return Shape{Kind: Capsule, Length: length, Radius: radius}
}

func NewConvexHull(points ...cp.Vector) Shape {
	return Shape{Kind: Convex, Vertices: append([]cp.Vector(nil), points...)}
}

func NewCompound(children ...Shape) Shape {
	return Shape{Kind: Compound, Children: append([]Shape(nil), children...)}
}

// WithOffset returns a copy of s placed at offset/rotation.
func (s Shape) WithOffset(offset cp.Vector, rotation float64) Shape {
	s.Offset = offset
	s.Rotation = rotation
	return s
}

// Clone deep-copies the vertex and child slices.
func (s Shape) Clone() Shape {
	out := s
	out.Vertices = append([]cp.Vector(nil), s.Vertices...)
	if s.Children != nil {
		out.Children = make([]Shape, len(s.Children))
		for i, c := range s.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// Validate rejects shapes that cannot produce a usable collision geometry.
func (s Shape) Validate() error {
	if !common.VecFinite(s.Offset) || !common.IsFinite(s.Rotation) {
		return common.Invalid("shape.offset", s.Offset, "must be finite")
	}
	switch s.Kind {
	case Circle:
		if !(s.Radius > 0) {
			return common.Invalid("shape.radius", s.Radius, "must be positive")
		}
	case Box:
		if !(s.Width > 0) {
			return common.Invalid("shape.width", s.Width, "must be positive")
		}
		if !(s.Height > 0) {
			return common.Invalid("shape.height", s.Height, "must be positive")
		}
	case Polygon:
		if len(s.Vertices) < 3 {
			return common.Invalid("shape.vertices", len(s.Vertices), "polygon needs at least 3 vertices")
		}
		verts := orientCCW(s.Vertices)
		if math.Abs(signedArea(verts)) < areaEpsilon {
			return common.Invalid("shape.vertices", nil, "polygon is degenerate")
		}
		if !isConvex(verts) {
			return common.Invalid("shape.vertices", nil, "polygon must be convex")
		}
	case Capsule:
		if !(s.Radius > 0) {
			return common.Invalid("shape.radius", s.Radius, "must be positive")
		}
		if s.Length < 0 || !common.IsFinite(s.Length) {
			return common.Invalid("shape.length", s.Length, "must be non-negative")
		}
	case Convex:
		if len(s.Vertices) < 3 {
			return common.Invalid("shape.vertices", len(s.Vertices), "hull needs at least 3 points")
		}
		if math.Abs(signedArea(ConvexHull(s.Vertices))) < areaEpsilon {
			return common.Invalid("shape.vertices", nil, "hull is degenerate")
		}
	case Compound:
		if len(s.Children) == 0 {
			return common.Invalid("shape.children", 0, "compound needs at least one child")
		}
		for i, c := range s.Children {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("child %d: %w", i, err)
			}
		}
	default:
		return common.Invalid("shape.kind", int(s.Kind), "unknown shape kind")
	}
	return nil
}

// Area of the shape in world units squared.
func (s Shape) Area() float64 {
	total := 0.0
	for _, p := range s.Primitives(cp.Vector{}, 0) {
		total += p.Area()
	}
	return total
}

// Moment returns the moment of inertia about the body origin for a body of
// the given mass, spreading mass over compound children by area.
func (s Shape) Moment(mass float64) float64 {
	if mass <= 0 {
		return 0
	}
	prims := s.Primitives(cp.Vector{}, 0)
	total := 0.0
	for _, p := range prims {
		total += p.Area()
	}
	if total <= 0 {
		return 0
	}
	moment := 0.0
	for _, p := range prims {
		m := mass * p.Area() / total
		switch p.Kind {
		case PrimCircle:
			moment += cp.MomentForCircle(m, 0, p.Radius, p.Center)
		case PrimSegment:
			moment += cp.MomentForSegment(m, p.A, p.B, p.Radius)
		case PrimPolygon:
			moment += cp.MomentForPoly(m, len(p.Vertices), p.Vertices, cp.Vector{}, 0)
		}
	}
	return moment
}

// Bounds returns the world AABB of the shape on a body at pos/angle.
func (s Shape) Bounds(pos cp.Vector, angle float64) cp.BB {
	prims := s.Primitives(pos, angle)
	if len(prims) == 0 {
		return cp.BB{L: pos.X, B: pos.Y, R: pos.X, T: pos.Y}
	}
	bb := prims[0].Bounds()
	for _, p := range prims[1:] {
		bb = bb.Merge(p.Bounds())
	}
	return bb
}

// MinExtent is a conservative radius of the thinnest part of the shape, used
// to size continuous-collision sub-steps.
func (s Shape) MinExtent() float64 {
	extent := math.Inf(1)
	for _, p := range s.Primitives(cp.Vector{}, 0) {
		var e float64
		switch p.Kind {
		case PrimCircle, PrimSegment:
			e = p.Radius
		case PrimPolygon:
			bb := p.Bounds()
			e = math.Min(bb.R-bb.L, bb.T-bb.B) / 2
		}
		extent = math.Min(extent, e)
	}
	if math.IsInf(extent, 1) {
		return 0
	}
	return extent
}

// Primitives flattens the shape into world-space convex pieces for a body at
// pos/angle. Compound children are emitted in declaration order, so the
// index of a primitive is stable and usable as a feature id.
func (s Shape) Primitives(pos cp.Vector, angle float64) []Primitive {
	out := make([]Primitive, 0, 1)
	return s.appendPrimitives(out, pos, angle)
}

func (s Shape) appendPrimitives(out []Primitive, pos cp.Vector, angle float64) []Primitive {
	origin := common.Transform(s.Offset, pos, angle)
	rot := angle + s.Rotation
	toWorld := func(v cp.Vector) cp.Vector { return common.Transform(v, origin, rot) }

	switch s.Kind {
	case Circle:
		out = append(out, Primitive{Kind: PrimCircle, Center: origin, Radius: s.Radius, Index: len(out)})
	case Capsule:
		half := cp.Vector{X: s.Length / 2}
		out = append(out, Primitive{
			Kind:   PrimSegment,
			A:      toWorld(half.Neg()),
			B:      toWorld(half),
			Radius: s.Radius,
			Index:  len(out),
		})
	case Box:
		hw, hh := s.Width/2, s.Height/2
		local := []cp.Vector{{X: -hw, Y: -hh}, {X: hw, Y: -hh}, {X: hw, Y: hh}, {X: -hw, Y: hh}}
		out = append(out, newPolygonPrimitive(local, toWorld, len(out)))
	case Polygon:
		out = append(out, newPolygonPrimitive(orientCCW(s.Vertices), toWorld, len(out)))
	case Convex:
		out = append(out, newPolygonPrimitive(ConvexHull(s.Vertices), toWorld, len(out)))
	case Compound:
		for _, c := range s.Children {
			out = c.appendPrimitives(out, origin, rot)
		}
	}
	return out
}
