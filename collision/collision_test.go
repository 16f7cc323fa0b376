package collision

import (
	"math"
	"testing"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/motionsim/shape"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterCanCollide(t *testing.T) {
	cases := []struct {
		name string
		a, b Filter
		want bool
	}{
		{"defaults", DefaultFilter(), DefaultFilter(), true},
		{"mask_excludes", Filter{Category: 1, Mask: 2}, Filter{Category: 1, Mask: AllCategories}, false},
		{"mask_one_way", Filter{Category: 2, Mask: 1}, Filter{Category: 1, Mask: 1}, false},
		{"negative_group", Filter{Category: 1, Mask: AllCategories, Group: -3}, Filter{Category: 1, Mask: AllCategories, Group: -3}, false},
		{"positive_group_overrides_mask", Filter{Category: 1, Mask: 0x2, Group: 4}, Filter{Category: 1, Mask: 0x2, Group: 4}, true},
		{"different_groups_use_mask", Filter{Category: 1, Mask: AllCategories, Group: -1}, Filter{Category: 1, Mask: AllCategories, Group: -2}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.a.Normalized().CanCollide(c.b.Normalized()))
		})
	}
}

func TestPairResponse(t *testing.T) {
	r, ok := PairResponse(ResponseCollide, ResponseSensor)
	assert.True(t, ok)
	assert.Equal(t, ResponseSensor, r)

	_, ok = PairResponse(ResponseNone, ResponseCollide)
	assert.False(t, ok)

	var parsed Response
	require.NoError(t, parsed.UnmarshalText([]byte("sensor")))
	assert.Equal(t, ResponseSensor, parsed)
	assert.Error(t, parsed.UnmarshalText([]byte("bogus")))
}

func TestGridPairs(t *testing.T) {
	bounds := []cp.BB{
		{L: 0, B: 0, R: 10, T: 10},
		{L: 5, B: 5, R: 15, T: 15},
		{L: 100, B: 100, R: 110, T: 110},
		{L: -1000, B: -1000, R: 1000, T: 1000},
	}
	g := &Grid{CellSize: 8, MaxCellsPerProxy: 64}
	pairs := g.Pairs(bounds)
	assert.Equal(t, []Pair{{0, 1}, {0, 3}, {1, 3}, {2, 3}}, pairs)

	// Same input, same order.
	for i := 0; i < 10; i++ {
		assert.Equal(t, pairs, g.Pairs(bounds))
	}
}

func TestGridAutoCellSize(t *testing.T) {
	bounds := make([]cp.BB, 0, 50)
	for i := 0; i < 50; i++ {
		x := float64(i) * 9
		bounds = append(bounds, cp.BB{L: x, B: 0, R: x + 10, T: 10})
	}
	pairs := (&Grid{}).Pairs(bounds)
	require.Len(t, pairs, 49)
	for i, p := range pairs {
		assert.Equal(t, Pair{i, i + 1}, p)
	}
}

func TestInflate(t *testing.T) {
	bb := Inflate(cp.BB{L: 0, B: 0, R: 1, T: 1}, cp.Vector{X: -5, Y: 3})
	assert.Equal(t, cp.BB{L: -5, B: 0, R: 1, T: 4}, bb)
}

func prims(s shape.Shape, x, y, angle float64) []shape.Primitive {
	return s.Primitives(cp.Vector{X: x, Y: y}, angle)
}

func TestCircleCircle(t *testing.T) {
	ms := Collide(prims(shape.NewCircle(5), 0, 0, 0), prims(shape.NewCircle(5), 8, 0, 0))
	require.Len(t, ms, 1)
	m := ms[0]
	assert.InDelta(t, 1, m.Normal.X, 1e-9)
	require.Len(t, m.Points, 1)
	assert.InDelta(t, 2, m.Points[0].Depth, 1e-9)
	assert.InDelta(t, 4, m.Points[0].Position.X, 1e-9)

	assert.Empty(t, Collide(prims(shape.NewCircle(5), 0, 0, 0), prims(shape.NewCircle(5), 11, 0, 0)))
}

func TestBoxOnBoxTwoPoints(t *testing.T) {
	ground := prims(shape.NewBox(100, 10), 0, 0, 0)
	box := prims(shape.NewBox(10, 10), 0, 9, 0)
	ms := Collide(ground, box)
	require.Len(t, ms, 1)
	m := ms[0]
	assert.InDelta(t, 0, m.Normal.X, 1e-9)
	assert.InDelta(t, 1, m.Normal.Y, 1e-9)
	require.Len(t, m.Points, 2)
	for _, p := range m.Points {
		assert.InDelta(t, 1, p.Depth, 1e-9)
		assert.InDelta(t, 4.5, p.Position.Y, 1e-9)
	}
	assert.NotEqual(t, m.Points[0].ID, m.Points[1].ID)

	// Swapping the arguments flips the normal.
	ms = Collide(box, ground)
	require.Len(t, ms, 1)
	assert.InDelta(t, -1, ms[0].Normal.Y, 1e-9)
}

func TestCircleAgainstBox(t *testing.T) {
	box := prims(shape.NewBox(10, 10), 0, 0, 0)

	t.Run("face", func(t *testing.T) {
		ms := Collide(prims(shape.NewCircle(2), 0, 6, 0), box)
		require.Len(t, ms, 1)
		assert.InDelta(t, -1, ms[0].Normal.Y, 1e-9)
		assert.InDelta(t, 1, ms[0].Points[0].Depth, 1e-9)
	})
	t.Run("corner", func(t *testing.T) {
		ms := Collide(prims(shape.NewCircle(2), 6, 6, 0), box)
		require.Len(t, ms, 1)
		n := ms[0].Normal
		assert.InDelta(t, -math.Sqrt2/2, n.X, 1e-9)
		assert.InDelta(t, -math.Sqrt2/2, n.Y, 1e-9)
		assert.InDelta(t, 2-math.Sqrt2, ms[0].Points[0].Depth, 1e-9)
	})
	t.Run("corner_miss", func(t *testing.T) {
		assert.Empty(t, Collide(prims(shape.NewCircle(1), 6, 6, 0), box))
	})
	t.Run("center_inside", func(t *testing.T) {
		ms := Collide(prims(shape.NewCircle(1), 0, 4, 0), box)
		require.Len(t, ms, 1)
		assert.InDelta(t, -1, ms[0].Normal.Y, 1e-9)
		assert.InDelta(t, 2, ms[0].Points[0].Depth, 1e-9)
	})
}

func TestCapsuleCases(t *testing.T) {
	t.Run("capsule_on_box", func(t *testing.T) {
		ground := prims(shape.NewBox(100, 10), 0, 0, 0)
		capsule := prims(shape.NewCapsule(20, 3), 0, 7, 0)
		ms := Collide(ground, capsule)
		require.Len(t, ms, 1)
		assert.InDelta(t, 1, ms[0].Normal.Y, 1e-9)
		require.Len(t, ms[0].Points, 2)
		for _, p := range ms[0].Points {
			assert.InDelta(t, 1, p.Depth, 1e-9)
		}
	})
	t.Run("crossed_capsules", func(t *testing.T) {
		a := prims(shape.NewCapsule(20, 1), 0, 0, 0)
		b := prims(shape.NewCapsule(20, 1), 0, 1.5, math.Pi/2)
		ms := Collide(a, b)
		require.Len(t, ms, 1)
		assert.Greater(t, ms[0].Points[0].Depth, 0.0)
	})
	t.Run("circle_near_capsule_end", func(t *testing.T) {
		ms := Collide(prims(shape.NewCircle(1), 12.5, 0, 0), prims(shape.NewCapsule(20, 2), 0, 0, 0))
		require.Len(t, ms, 1)
		assert.InDelta(t, -1, ms[0].Normal.X, 1e-9)
		assert.InDelta(t, 0.5, ms[0].Points[0].Depth, 1e-9)
	})
}

func TestCompoundManifoldsPerChild(t *testing.T) {
	dumbbell := shape.NewCompound(
		shape.NewCircle(2).WithOffset(cp.Vector{X: -5}, 0),
		shape.NewCircle(2).WithOffset(cp.Vector{X: 5}, 0),
	)
	ground := prims(shape.NewBox(100, 10), 0, 0, 0)
	ms := Collide(prims(dumbbell, 0, 6.5, 0), ground)
	require.Len(t, ms, 2)
	assert.Equal(t, 0, ms[0].PrimA)
	assert.Equal(t, 1, ms[1].PrimA)
	assert.NotEqual(t, ms[0].Points[0].ID, ms[1].Points[0].ID)
}

func TestCollideCircle(t *testing.T) {
	box := prims(shape.NewBox(10, 10), 0, 0, 0)
	n, depth, ok := CollideCircle(cp.Vector{X: 0, Y: -5.5}, 1, box)
	require.True(t, ok)
	assert.InDelta(t, 1, n.Y, 1e-9)
	assert.InDelta(t, 0.5, depth, 1e-9)

	_, _, ok = CollideCircle(cp.Vector{X: 0, Y: -7}, 1, box)
	assert.False(t, ok)

	assert.True(t, Overlaps(prims(shape.NewCircle(1), 0, 5.5, 0), box))
}

func TestBoxNearCapsuleEnd(t *testing.T) {
	capsule := prims(shape.NewCapsule(20, 3), 0, 0, 0)

	t.Run("clear_of_rounded_end", func(t *testing.T) {
		box := prims(shape.NewBox(7.5, 7.5), 16.25, 6.25, 0)
		assert.Empty(t, Collide(capsule, box))
	})
	t.Run("corner_in_rounded_end", func(t *testing.T) {
		box := prims(shape.NewBox(8, 8), 15, 5.5, 0)
		ms := Collide(capsule, box)
		require.Len(t, ms, 1)
		require.Len(t, ms[0].Points, 1)
		want := cp.Vector{X: 1, Y: 1.5}.Normalize()
		assert.InDelta(t, want.X, ms[0].Normal.X, 1e-9)
		assert.InDelta(t, want.Y, ms[0].Normal.Y, 1e-9)
		assert.InDelta(t, 3-math.Sqrt(3.25), ms[0].Points[0].Depth, 1e-9)
	})
}
