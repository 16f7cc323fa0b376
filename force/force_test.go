package force

import (
	"errors"
	"math"
	"testing"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/motionsim/common"
	"github.com/milk9111/motionsim/shape"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func target(id string, x, y float64) Target {
	return Target{
		ID:       id,
		Position: cp.Vector{X: x, Y: y},
		Mass:     1,
		Bounds:   cp.BB{L: x - 1, B: y - 1, R: x + 1, T: y + 1},
		Area:     4,
	}
}

func TestExplosionLocality(t *testing.T) {
	ev := NewEvaluator()
	require.NoError(t, ev.Add(NewExplosion("boom", ExplosionParams{
		Strength:     1000,
		Radius:       200,
		TriggerFrame: 10,
		Duration:     1,
	})))

	near := target("near", 100, 0)
	far := target("far", 300, 0)

	for _, frame := range []int{9, 10, 11} {
		ctx := Context{Frame: frame, Dt: 1.0 / 60}
		require.Empty(t, ev.Prepare(ctx))

		nearFx := ev.Apply(ctx, near)
		farFx := ev.Apply(ctx, far)
		assert.True(t, farFx.IsZero(), "frame %d: far body must not be affected", frame)
		if frame == 10 {
			assert.Greater(t, nearFx.Impulse.X, 0.0)
			assert.InDelta(t, 500, nearFx.Impulse.X, 1e-9)
			assert.InDelta(t, 0, nearFx.Impulse.Y, 1e-9)
		} else {
			assert.True(t, nearFx.IsZero(), "frame %d: explosion must be inactive", frame)
		}
	}
}

func TestGravityScalesWithMass(t *testing.T) {
	f := NewGravity("g", cp.Vector{Y: 980})
	tg := target("a", 0, 0)
	tg.Mass = 2
	fx := f.Apply(Context{}, tg, 1)
	assert.Equal(t, cp.Vector{Y: 1960}, fx.Force)
}

func TestFrameWindowAndAffectedBodies(t *testing.T) {
	f := NewDrag("d", DragParams{Linear: 1})
	f.StartFrame = 5
	f.EndFrame = 7
	f.AffectedBodies = []string{"a"}

	assert.False(t, f.Active(4))
	assert.True(t, f.Active(5))
	assert.True(t, f.Active(7))
	assert.False(t, f.Active(8))
	assert.True(t, f.Affects("a"))
	assert.False(t, f.Affects("b"))

	f.EndFrame = Unbounded
	assert.True(t, f.Active(100000))
	f.Enabled = false
	assert.False(t, f.Active(6))
}

func TestAttractionFalloff(t *testing.T) {
	cases := []struct {
		name    string
		falloff Falloff
		want    float64
	}{
		{"none", FalloffNone, 10},
		{"linear", FalloffLinear, 5},
		{"inverse_square", FalloffInverseSquare, 0.1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := NewAttraction("a", AttractionParams{Strength: 10, Radius: 20, Falloff: c.falloff})
			fx := f.Apply(Context{}, target("b", 10, 0), 1)
			assert.InDelta(t, -c.want, fx.Force.X, 1e-9)
			assert.InDelta(t, 0, fx.Force.Y, 1e-9)
		})
	}

	f := NewAttraction("a", AttractionParams{Strength: 10, Radius: 20})
	assert.True(t, f.Apply(Context{}, target("b", 30, 0), 1).IsZero())
}

func TestBuoyancy(t *testing.T) {
	f := NewBuoyancy("water", BuoyancyParams{Level: 100, Density: 2, LinearDrag: 1})
	ctx := Context{Gravity: cp.Vector{Y: 10}}

	above := target("a", 0, 50)
	assert.True(t, f.Apply(ctx, above, 1).IsZero())

	half := target("b", 0, 100)
	fx := f.Apply(ctx, half, 1)
	// Half of area 4 displaced at density 2 against g=10.
	assert.InDelta(t, -40, fx.Force.Y, 1e-9)

	deep := target("c", 0, 200)
	deep.Velocity = cp.Vector{X: 3}
	fx = f.Apply(ctx, deep, 1)
	assert.InDelta(t, -80, fx.Force.Y, 1e-9)
	assert.InDelta(t, -3, fx.Force.X, 1e-9)
}

func shapeTarget(s shape.Shape, pos cp.Vector, angle float64) Target {
	return Target{
		ID:       "body",
		Position: pos,
		Mass:     1,
		Bounds:   s.Bounds(pos, angle),
		Area:     s.Area(),
		Prims:    s.Primitives(pos, angle),
	}
}

func TestBuoyancyClipsGeometry(t *testing.T) {
	f := NewBuoyancy("water", BuoyancyParams{Level: 100, Density: 1})
	ctx := Context{Gravity: cp.Vector{Y: 10}}

	tests := []struct {
		name   string
		target Target
		area   float64
		torque func(t *testing.T, torque float64)
	}{
		{
			name:   "upright box half under",
			target: shapeTarget(shape.NewBox(20, 20), cp.Vector{Y: 100}, 0),
			area:   200,
			torque: func(t *testing.T, torque float64) { assert.InDelta(t, 0, torque, 1e-9) },
		},
		{
			name:   "box above the surface",
			target: shapeTarget(shape.NewBox(20, 20), cp.Vector{Y: 50}, 0),
			area:   0,
			torque: func(t *testing.T, torque float64) { assert.Zero(t, torque) },
		},
		{
			name:   "box fully under",
			target: shapeTarget(shape.NewBox(20, 20), cp.Vector{Y: 300}, 0.7),
			area:   400,
			torque: func(t *testing.T, torque float64) { assert.InDelta(t, 0, torque, 1e-6) },
		},
		{
			name:   "plank dipping right is turned back",
			target: shapeTarget(shape.NewBox(40, 20), cp.Vector{Y: 100}, 0.3),
			area:   400,
			torque: func(t *testing.T, torque float64) { assert.Less(t, torque, -1.0) },
		},
		{
			name:   "plank dipping left is turned back",
			target: shapeTarget(shape.NewBox(40, 20), cp.Vector{Y: 100}, -0.3),
			area:   400,
			torque: func(t *testing.T, torque float64) { assert.Greater(t, torque, 1.0) },
		},
		{
			name:   "circle half under",
			target: shapeTarget(shape.NewCircle(10), cp.Vector{Y: 100}, 0),
			area:   50 * math.Pi,
			torque: func(t *testing.T, torque float64) { assert.InDelta(t, 0, torque, 1e-9) },
		},
		{
			name:   "circle mostly under",
			target: shapeTarget(shape.NewCircle(10), cp.Vector{Y: 105}, 0),
			area:   100*math.Acos(-0.5) + 5*math.Sqrt(75),
			torque: func(t *testing.T, torque float64) { assert.InDelta(t, 0, torque, 1e-9) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := f.Apply(ctx, tt.target, 1)
			assert.InDelta(t, -10*tt.area, fx.Force.Y, 1e-6)
			assert.InDelta(t, 0, fx.Force.X, 1e-9)
			tt.torque(t, fx.Torque)
		})
	}
}

func TestSubmergedCentroid(t *testing.T) {
	box := shape.NewBox(20, 20).Primitives(cp.Vector{Y: 100}, 0)
	area, c := submerged(box, 100)
	assert.InDelta(t, 200, area, 1e-9)
	assert.InDelta(t, 0, c.X, 1e-9)
	assert.InDelta(t, 105, c.Y, 1e-9)

	area, c = submerged(shape.NewCircle(10).Primitives(cp.Vector{Y: 100}, 0), 100)
	assert.InDelta(t, 50*math.Pi, area, 1e-9)
	assert.InDelta(t, 100+40/(3*math.Pi), c.Y, 1e-9)

	// A capsule is clipped through its sampled outline.
	pill := shape.NewCapsule(40, 10).Primitives(cp.Vector{Y: 100}, 0)
	area, c = submerged(pill, 100)
	full := shape.NewCapsule(40, 10).Area()
	assert.InDelta(t, full/2, area, full*0.02)
	assert.Greater(t, c.Y, 100.0)
}

func TestVortexAndDrag(t *testing.T) {
	v := NewVortex("v", VortexParams{Strength: 10, Radius: 100})
	fx := v.Apply(Context{}, target("a", 50, 0), 1)
	assert.InDelta(t, 0, fx.Force.X, 1e-9)
	assert.InDelta(t, 5, fx.Force.Y, 1e-9)

	d := NewDrag("d", DragParams{Linear: 0.5, Quadratic: 0.1, Angular: 2})
	tg := target("a", 0, 0)
	tg.Velocity = cp.Vector{X: 10}
	tg.AngularVelocity = 1
	fx = d.Apply(Context{}, tg, 1)
	assert.InDelta(t, -15, fx.Force.X, 1e-9)
	assert.InDelta(t, -2, fx.Torque, 1e-9)
}

func TestWindTurbulenceIsSeeded(t *testing.T) {
	f := NewWind("w", WindParams{Direction: cp.Vector{X: 2}, Strength: 10, Turbulence: 0.5})
	run := func() []cp.Vector {
		ctx := Context{RNG: common.NewRNG(42)}
		out := make([]cp.Vector, 5)
		for i := range out {
			out[i] = f.Apply(ctx, target("a", 0, 0), 1).Force
		}
		return out
	}
	a, b := run(), run()
	assert.Equal(t, a, b)
	for _, v := range a {
		assert.InDelta(t, 10, v.X, 5)
		assert.LessOrEqual(t, math.Abs(v.Y), 5.0)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name  string
		field Field
		path  string
	}{
		{"ok", NewGravity("g", cp.Vector{Y: 1}), ""},
		{"missing_id", NewGravity("", cp.Vector{Y: 1}), "force.id"},
		{"bad_window", func() Field { f := NewGravity("g", cp.Vector{}); f.StartFrame = 5; f.EndFrame = 2; return f }(), "force.end_frame"},
		{"wrong_payload", Field{ID: "x", Kind: Wind, Gravity: &GravityParams{}}, "force.wind"},
		{"two_payloads", Field{ID: "x", Kind: Drag, Drag: &DragParams{}, Wind: &WindParams{}}, "force.kind"},
		{"explosion_radius", NewExplosion("e", ExplosionParams{Strength: 1}), "force.explosion.radius"},
		{"zero_wind", NewWind("w", WindParams{Strength: 1}), "force.wind.direction"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.field.Validate()
			if c.path == "" {
				assert.NoError(t, err)
				return
			}
			var ve *common.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, c.path, ve.Field)
		})
	}
}

func TestStrengthExpr(t *testing.T) {
	ev := NewEvaluator()
	f := NewGravity("g", cp.Vector{Y: 10})
	f.StrengthExpr = `scale := frame < 5 ? 0 : 2`
	require.NoError(t, ev.Add(f))

	ctx := Context{Frame: 3}
	require.Empty(t, ev.Prepare(ctx))
	assert.True(t, ev.Apply(ctx, target("a", 0, 0)).IsZero())

	ctx = Context{Frame: 6}
	require.Empty(t, ev.Prepare(ctx))
	assert.InDelta(t, 20, ev.Apply(ctx, target("a", 0, 0)).Force.Y, 1e-9)

	clone := ev.Clone()
	ctx = Context{Frame: 1}
	require.Empty(t, clone.Prepare(ctx))
	assert.True(t, clone.Apply(ctx, target("a", 0, 0)).IsZero())
}

func TestStrengthExprErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"syntax", `scale := (`},
		{"no_scale", `x := 1`},
		{"string_scale", `scale := "big"`},
		{"os_import", `os := import("os"); scale := 1`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := NewGravity("g", cp.Vector{Y: 1})
			f.StrengthExpr = c.src
			assert.Error(t, NewEvaluator().Add(f))
		})
	}

	f := NewGravity("g", cp.Vector{Y: 1})
	f.StrengthExpr = `math := import("math"); scale := math.abs(-0.5) + seconds`
	assert.NoError(t, NewEvaluator().Add(f))
}

func TestExprReadsSeconds(t *testing.T) {
	e, err := CompileExpr(`scale := seconds * 2 + frame`)
	require.NoError(t, err)

	tests := []struct {
		frame   int
		seconds float64
		want    float64
	}{
		{frame: 0, seconds: 0, want: 0},
		{frame: 1, seconds: 0.5, want: 2},
		{frame: 90, seconds: 1.5, want: 93},
	}
	for _, tt := range tests {
		got, err := e.Eval(tt.frame, tt.seconds)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 1e-9)
	}

	ev := NewEvaluator()
	g := NewGravity("g", cp.Vector{Y: 10})
	g.StrengthExpr = `scale := seconds`
	require.NoError(t, ev.Add(g))
	ctx := Context{Frame: 30, Time: 0.5}
	require.Empty(t, ev.Prepare(ctx))
	assert.InDelta(t, 5, ev.Apply(ctx, target("a", 0, 0)).Force.Y, 1e-9)
}

func TestExprRecoversDivisionByZero(t *testing.T) {
	// Valid from the first stepped frame, so registration accepts it.
	e, err := CompileExpr(`scale := 10 / frame`)
	require.NoError(t, err)

	got, err := e.Eval(5, 0)
	require.NoError(t, err)
	assert.InDelta(t, 2, got, 1e-9)

	assert.NotPanics(t, func() {
		_, err = e.Eval(0, 0)
	})
	assert.ErrorContains(t, err, "panicked at frame 0")

	// The compiled script stays usable after a failed run.
	got, err = e.Eval(10, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1, got, 1e-9)

	ev := NewEvaluator()
	g := NewGravity("g", cp.Vector{Y: 10})
	g.StrengthExpr = `scale := 1 / (frame - 4)`
	require.NoError(t, ev.Add(g))
	var errs []error
	assert.NotPanics(t, func() { errs = ev.Prepare(Context{Frame: 4}) })
	require.Len(t, errs, 1)
	assert.ErrorContains(t, errs[0], `field "g"`)
	assert.True(t, ev.Apply(Context{Frame: 4}, target("a", 0, 0)).IsZero())

	_, err = CompileExpr(`scale := 1 / (frame - 1)`)
	assert.ErrorContains(t, err, "panicked", "registration rejects a script failing on its trial frame")
}

func TestEvaluatorRemoveAndDuplicate(t *testing.T) {
	ev := NewEvaluator()
	require.NoError(t, ev.Add(NewGravity("a", cp.Vector{Y: 1})))
	require.NoError(t, ev.Add(NewGravity("b", cp.Vector{Y: 2})))
	require.NoError(t, ev.Add(NewGravity("c", cp.Vector{Y: 4})))
	assert.Error(t, ev.Add(NewGravity("b", cp.Vector{Y: 2})))

	assert.True(t, ev.Remove("b"))
	assert.False(t, ev.Remove("b"))
	assert.Equal(t, 2, ev.Len())
	assert.True(t, ev.Has("c"))
	assert.False(t, ev.Has("b"))

	ctx := Context{}
	ev.Prepare(ctx)
	assert.InDelta(t, 5, ev.Apply(ctx, target("x", 0, 0)).Force.Y, 1e-9)

	assert.True(t, ev.SetEnabled("c", false))
	assert.InDelta(t, 1, ev.Apply(ctx, target("x", 0, 0)).Force.Y, 1e-9)
}

func TestFieldYAMLDefaults(t *testing.T) {
	src := `
id: breeze
kind: wind
wind:
  direction: {x: 1, y: 0}
  strength: 25
`
	var f Field
	require.NoError(t, yaml.Unmarshal([]byte(src), &f))
	assert.True(t, f.Enabled)
	assert.Equal(t, Unbounded, f.EndFrame)
	assert.Equal(t, Wind, f.Kind)
	require.NotNil(t, f.Wind)
	assert.Equal(t, 25.0, f.Wind.Strength)
	assert.NoError(t, f.Validate())
}
