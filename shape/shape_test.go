package shape

import (
	"errors"
	"math"
	"testing"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/motionsim/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name  string
		shape Shape
		field string
	}{
		{"circle_ok", NewCircle(5), ""},
		{"circle_zero_radius", NewCircle(0), "shape.radius"},
		{"box_negative_width", NewBox(-1, 2), "shape.width"},
		{"polygon_two_points", NewPolygon(cp.Vector{}, cp.Vector{X: 1}), "shape.vertices"},
		{"polygon_concave", NewPolygon(
			cp.Vector{X: 0, Y: 0}, cp.Vector{X: 4, Y: 0}, cp.Vector{X: 1, Y: 1}, cp.Vector{X: 4, Y: 4}, cp.Vector{X: 0, Y: 4},
		), "shape.vertices"},
		{"polygon_clockwise_ok", NewPolygon(
			cp.Vector{X: 0, Y: 0}, cp.Vector{X: 0, Y: 4}, cp.Vector{X: 4, Y: 4}, cp.Vector{X: 4, Y: 0},
		), ""},
		{"capsule_ok", NewCapsule(10, 2), ""},
		{"compound_empty", NewCompound(), "shape.children"},
		{"compound_bad_child", NewCompound(NewCircle(1), NewBox(0, 1)), "shape.width"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.shape.Validate()
			if c.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *common.ValidationError
			require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
			assert.Equal(t, c.field, verr.Field)
		})
	}
}

func TestAreaAndMoment(t *testing.T) {
	box := NewBox(2, 4)
	assert.InDelta(t, 8, box.Area(), 1e-9)
	assert.InDelta(t, 3*(4+16)/12.0, box.Moment(3), 1e-9)

	circle := NewCircle(2)
	assert.InDelta(t, 4*math.Pi, circle.Area(), 1e-9)
	assert.InDelta(t, 0.5*2*4, circle.Moment(2), 1e-9)

	assert.Zero(t, box.Moment(0))
}

func TestBoundsRotatedBox(t *testing.T) {
	bb := NewBox(2, 2).Bounds(cp.Vector{X: 10, Y: 10}, math.Pi/4)
	half := math.Sqrt2
	assert.InDelta(t, 10-half, bb.L, 1e-9)
	assert.InDelta(t, 10+half, bb.R, 1e-9)
	assert.InDelta(t, 10-half, bb.B, 1e-9)
	assert.InDelta(t, 10+half, bb.T, 1e-9)
}

func TestCompoundPrimitives(t *testing.T) {
	s := NewCompound(
		NewCircle(1).WithOffset(cp.Vector{X: -5}, 0),
		NewCapsule(4, 1).WithOffset(cp.Vector{X: 5}, math.Pi/2),
	)
	prims := s.Primitives(cp.Vector{X: 100}, 0)
	require.Len(t, prims, 2)
	assert.Equal(t, PrimCircle, prims[0].Kind)
	assert.InDelta(t, 95, prims[0].Center.X, 1e-9)
	assert.Equal(t, PrimSegment, prims[1].Kind)
	assert.InDelta(t, 105, prims[1].A.X, 1e-9)
	assert.InDelta(t, -2, prims[1].A.Y, 1e-9)
	assert.Equal(t, 1, prims[1].Index)
}

func TestPolygonNormalsPointOutward(t *testing.T) {
	p := NewBox(2, 2).Primitives(cp.Vector{}, 0)[0]
	for i, n := range p.Normals {
		mid := p.Vertices[i].Lerp(p.Vertices[(i+1)%len(p.Vertices)], 0.5)
		assert.Greater(t, n.Dot(mid.Sub(p.Center)), 0.0, "normal %d", i)
	}
}

func TestConvexHull(t *testing.T) {
	pts := []cp.Vector{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 0, Y: 2}, {X: 1, Y: 0}}
	hull := ConvexHull(pts)
	assert.Len(t, hull, 4)
	assert.Greater(t, signedArea(hull), 0.0)
}

func TestKindYAML(t *testing.T) {
	var s Shape
	require.NoError(t, yaml.Unmarshal([]byte("kind: capsule\nlength: 10\nradius: 2\noffset: {x: 1, y: 2}\n"), &s))
	assert.Equal(t, Capsule, s.Kind)
	assert.Equal(t, cp.Vector{X: 1, Y: 2}, s.Offset)

	assert.Error(t, yaml.Unmarshal([]byte("kind: blob\n"), &s))
}

func TestMaterial(t *testing.T) {
	assert.NoError(t, DefaultMaterial().Validate())
	assert.Error(t, Material{Restitution: 1.5}.Validate())
	assert.Error(t, Material{Friction: -1}.Validate())
	assert.InDelta(t, 0.5, MixFriction(0.25, 1), 1e-12)
	assert.Equal(t, 0.7, MixRestitution(0.7, 0.1))
}
