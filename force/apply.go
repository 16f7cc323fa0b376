package force

import (
	"math"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/motionsim/common"
	"github.com/milk9111/motionsim/shape"
)

// Context is the per-step input shared by every field.
type Context struct {
	Frame   int
	Time    float64
	Dt      float64
	Gravity cp.Vector
	RNG     *common.RNG
}

// Target describes the body a field acts on. Particles have no angular
// state and report a zero AngularVelocity.
type Target struct {
	ID              string
	Position        cp.Vector
	Velocity        cp.Vector
	AngularVelocity float64
	Mass            float64
	Bounds          cp.BB
	Area            float64
	// Prims is the world-space geometry buoyancy clips at the surface.
	// Without it the submerged share of Bounds is used.
	Prims []shape.Primitive
	// Gravity overrides Context.Gravity for buoyancy when non-nil.
	Gravity *cp.Vector
}

// Effect is what a field contributes for one step. Force and Torque are
// integrated over dt; Impulse is applied directly.
type Effect struct {
	Force   cp.Vector
	Torque  float64
	Impulse cp.Vector
}

func (e Effect) Add(o Effect) Effect {
	return Effect{
		Force:   e.Force.Add(o.Force),
		Torque:  e.Torque + o.Torque,
		Impulse: e.Impulse.Add(o.Impulse),
	}
}

func (e Effect) IsZero() bool {
	return e.Force == (cp.Vector{}) && e.Torque == 0 && e.Impulse == (cp.Vector{})
}

// Apply evaluates the field on a target. scale multiplies the field's
// strength; it comes from StrengthExpr and is 1 without one. The caller
// checks Active and Affects.
func (f *Field) Apply(ctx Context, t Target, scale float64) Effect {
	switch f.Kind {
	case Gravity:
		return Effect{Force: f.Gravity.Acceleration.Mult(t.Mass * scale)}
	case Wind:
		return f.applyWind(ctx, scale)
	case Attraction:
		return f.applyAttraction(t, scale)
	case Explosion:
		return f.applyExplosion(ctx, t, scale)
	case Buoyancy:
		return f.applyBuoyancy(ctx, t, scale)
	case Vortex:
		return f.applyVortex(t, scale)
	case Drag:
		return f.applyDrag(t, scale)
	}
	return Effect{}
}

func (f *Field) applyWind(ctx Context, scale float64) Effect {
	w := f.Wind
	strength := w.Strength * scale
	force := w.Direction.Normalize().Mult(strength)
	if w.Turbulence > 0 && ctx.RNG != nil {
		amp := w.Turbulence * math.Abs(strength)
		force = force.Add(cp.Vector{X: ctx.RNG.Signed() * amp, Y: ctx.RNG.Signed() * amp})
	}
	return Effect{Force: force}
}

// applyAttraction works like a point gravity well: the strength is an
// acceleration, so heavy and light bodies fall in together.
func (f *Field) applyAttraction(t Target, scale float64) Effect {
	a := f.Attraction
	rel := a.Center.Sub(t.Position)
	d := rel.Length()
	if d < 1e-9 || (a.Radius > 0 && d > a.Radius) {
		return Effect{}
	}
	mag := a.Strength * scale
	switch a.Falloff {
	case FalloffLinear:
		if a.Radius > 0 {
			mag *= 1 - d/a.Radius
		}
	case FalloffInverseSquare:
		mag /= math.Max(d*d, 1)
	}
	return Effect{Force: rel.Mult(mag * t.Mass / d)}
}

func (f *Field) applyExplosion(ctx Context, t Target, scale float64) Effect {
	e := f.Explosion
	rel := t.Position.Sub(e.Center)
	d := rel.Length()
	if d >= e.Radius {
		return Effect{}
	}
	dir := explosionDirection
	if d > 1e-9 {
		dir = rel.Mult(1 / d)
	}
	if e.Jitter > 0 && ctx.RNG != nil {
		dir = common.Rotate(dir, e.Jitter*ctx.RNG.Signed())
	}
	mag := e.Strength * scale * (1 - d/e.Radius)
	d1 := max(e.Duration, 1)
	return Effect{Impulse: dir.Mult(mag / float64(d1))}
}

// applyBuoyancy pushes the displaced fluid's weight up through the centroid
// of the submerged part, so a tilted body rights itself, and damps motion
// in proportion to how much is under.
func (f *Field) applyBuoyancy(ctx Context, t Target, scale float64) Effect {
	b := f.Buoyancy
	area, centroid := f.displaced(t)
	if area <= 0 {
		return Effect{}
	}
	share := 1.0
	if t.Area > 0 {
		share = common.Clamp(area/t.Area, 0, 1)
	}

	g := ctx.Gravity
	if t.Gravity != nil {
		g = *t.Gravity
	}
	lift := g.Mult(-b.Density * area * scale)
	return Effect{
		Force:  lift.Add(t.Velocity.Mult(-b.LinearDrag * share)),
		Torque: centroid.Sub(t.Position).Cross(lift) - t.AngularVelocity*b.AngularDrag*share,
	}
}

// displaced is the submerged area and its centroid.
func (f *Field) displaced(t Target) (float64, cp.Vector) {
	level := f.Buoyancy.Level
	if len(t.Prims) > 0 {
		return submerged(t.Prims, level)
	}
	height := t.Bounds.T - t.Bounds.B
	switch {
	case t.Bounds.B >= level:
		return t.Area, t.Position
	case t.Bounds.T <= level || height <= 0:
		return 0, cp.Vector{}
	}
	frac := common.Clamp((t.Bounds.T-level)/height, 0, 1)
	return t.Area * frac, t.Position
}

func (f *Field) applyVortex(t Target, scale float64) Effect {
	v := f.Vortex
	rel := t.Position.Sub(v.Center)
	d := rel.Length()
	if d < 1e-9 || d > v.Radius {
		return Effect{}
	}
	radial := rel.Mult(1 / d)
	// Perp turns clockwise on screen with y pointing down.
	tangent := radial.Perp()
	mag := v.Strength * scale * (1 - d/v.Radius)
	force := tangent.Mult(mag).Add(radial.Mult(-math.Abs(mag) * v.Inward))
	return Effect{Force: force}
}

func (f *Field) applyDrag(t Target, scale float64) Effect {
	dr := f.Drag
	speed := t.Velocity.Length()
	k := (dr.Linear + dr.Quadratic*speed) * scale
	return Effect{
		Force:  t.Velocity.Mult(-k),
		Torque: -t.AngularVelocity * dr.Angular * scale,
	}
}
