package physics

import (
	"math"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/motionsim/collision"
	"github.com/milk9111/motionsim/force"
	"github.com/milk9111/motionsim/shape"
)

// prepareBodies decides which AEmatic bodies follow a keyframe this frame
// and refreshes the solver masses.
func (w *World) prepareBodies(dt float64) {
	for _, b := range w.bodies.Items() {
		b.keyed = false
		aematic := b.Type == AEmatic || (b.Type == Dormant && b.awakeType == AEmatic)
		if aematic {
			if _, ok := b.keyframeAt(w.frame); ok {
				w.wake(b, "keyframe")
				b.keyed = true
			}
		}
		b.updateSolverMass()
	}
}

func (w *World) forceContext(dt float64) force.Context {
	return force.Context{
		Frame:   w.frame,
		Time:    w.Time(),
		Dt:      dt,
		Gravity: w.cfg.Gravity,
		RNG:     w.rng,
	}
}

// applyForceFields accumulates field forces on simulated bodies and soft
// body particles. Dormant bodies are evaluated too and woken when a field
// disturbs them.
func (w *World) applyForceFields(dt float64) {
	if w.fields.Len() == 0 {
		return
	}
	ctx := w.forceContext(dt)
	for _, err := range w.fields.Prepare(ctx) {
		w.events.Push(Event{Kind: EventScriptError, Frame: w.frame, Detail: err.Error()})
	}
	for _, b := range w.bodies.Items() {
		dormant := b.Type == Dormant && (b.awakeType == Dynamic || b.awakeType == AEmatic)
		if !b.simulated() && !dormant {
			continue
		}
		eff := w.fields.Apply(ctx, force.Target{
			ID:              b.ID,
			Position:        b.Position,
			Velocity:        b.Velocity,
			AngularVelocity: b.AngularVelocity,
			Mass:            b.Mass,
			Bounds:          b.bounds,
			Area:            b.area,
			Prims:           b.prims,
			Gravity:         b.Gravity,
		})
		if dormant {
			if !w.fieldDisturbs(b, eff) {
				continue
			}
			w.wake(b, "force field")
		}
		b.fieldForce, b.fieldTorque = eff.Force, eff.Torque
		b.force = b.force.Add(eff.Force)
		b.torque += eff.Torque
		b.impulse = b.impulse.Add(eff.Impulse)
	}
	for _, rec := range w.softs.Items() {
		body := rec.body
		for i, p := range body.Particles {
			if p.Pinned {
				continue
			}
			eff := w.fields.Apply(ctx, force.Target{
				ID:       body.ID,
				Position: p.Position,
				Velocity: body.Velocity(i, dt),
				Mass:     p.Mass,
				Bounds:   cp.NewBBForCircle(p.Position, p.Radius),
				Area:     math.Pi * p.Radius * p.Radius,
				Prims:    []shape.Primitive{{Kind: shape.PrimCircle, Center: p.Position, Radius: p.Radius}},
			})
			if eff.Force != (cp.Vector{}) {
				body.AddForce(i, eff.Force)
			}
			if eff.Impulse != (cp.Vector{}) {
				body.ApplyImpulse(i, eff.Impulse, dt)
			}
		}
	}
}

// fieldDisturbs reports whether eff should wake a dormant body: any
// impulse does, and so does a field acceleration that moved away from the
// one the body fell asleep under by more than the sleep thresholds.
func (w *World) fieldDisturbs(b *RigidBody, eff force.Effect) bool {
	if eff.Impulse != (cp.Vector{}) {
		return true
	}
	if b.Mass > 0 && eff.Force.Sub(b.fieldForce).Length()/b.Mass > w.cfg.SleepVelocityThreshold {
		return true
	}
	return b.Moment > 0 && !b.FixedRotation &&
		math.Abs(eff.Torque-b.fieldTorque)/b.Moment > w.cfg.SleepAngularThreshold
}

// integrateVelocities turns gravity, forces and impulses into velocity.
// Keyed AEmatic bodies get the velocity that lands them on the key.
func (w *World) integrateVelocities(dt float64) {
	for _, b := range w.bodies.Items() {
		switch {
		case b.keyed:
			key, _ := b.keyframeAt(w.frame)
			b.Velocity = key.Position.Sub(b.Position).Mult(1 / dt)
			b.AngularVelocity = (key.Angle - b.Angle) / dt
		case b.simulated():
			g := w.cfg.Gravity
			if b.Gravity != nil {
				g = *b.Gravity
			}
			acc := g.Add(b.force.Mult(b.im))
			b.Velocity = b.Velocity.Add(acc.Mult(dt)).Add(b.impulse.Mult(b.im))
			b.AngularVelocity += b.torque*b.iI*dt + b.angularImpulse*b.iI
			if b.LinearDamping > 0 {
				b.Velocity = b.Velocity.Mult(math.Pow(1-b.LinearDamping, dt))
			}
			if b.AngularDamping > 0 {
				b.AngularVelocity *= math.Pow(1-b.AngularDamping, dt)
			}
			if b.FixedRotation {
				b.AngularVelocity = 0
			}
		}
		b.force, b.torque = cp.Vector{}, 0
		b.impulse, b.angularImpulse = cp.Vector{}, 0
	}
}

// integratePositions moves awake bodies by their velocity. Bullets sweep
// their path in sub-steps.
func (w *World) integratePositions(dt float64) {
	for _, b := range w.bodies.Items() {
		if !b.Awake() {
			continue
		}
		if b.Bullet && b.simulated() {
			w.sweep(b, dt)
		} else {
			b.Position = b.Position.Add(b.Velocity.Mult(dt))
			b.Angle += b.AngularVelocity * dt
		}
		if b.keyed {
			key, _ := b.keyframeAt(w.frame)
			b.Position, b.Angle = key.Position, key.Angle
		}
		b.updateGeometry()
	}
}

// sweep advances a bullet in chunks no longer than its thinnest
// half-extent and stops at the first chunk that overlaps a solid body, so
// the contact is found next step instead of the body passing through.
func (w *World) sweep(b *RigidBody, dt float64) {
	start, startAngle := b.Position, b.Angle
	disp := b.Velocity.Mult(dt)
	turn := b.AngularVelocity * dt
	extent := b.Shape.MinExtent()
	n := 1
	if extent > 0 {
		n = int(math.Ceil(disp.Length() / extent))
	}
	n = max(1, min(n, w.cfg.MaxSubsteps))

	swept := collision.Inflate(b.bounds, disp)
	var candidates []*RigidBody
	for _, o := range w.bodies.Items() {
		if o == b || o.Type == Dead || !o.bounds.Intersects(swept) {
			continue
		}
		if r, ok := collision.PairResponse(b.Response, o.Response); !ok || r != collision.ResponseCollide {
			continue
		}
		if !b.Filter.CanCollide(o.Filter) || w.jointSuppressed(b.ID, o.ID) {
			continue
		}
		// Already touching: the contact solver owns that pair.
		if collision.Overlaps(b.prims, o.prims) {
			continue
		}
		candidates = append(candidates, o)
	}

	for i := 1; i <= n; i++ {
		t := float64(i) / float64(n)
		pos := start.Add(disp.Mult(t))
		angle := startAngle + turn*t
		b.Position, b.Angle = pos, angle
		if len(candidates) == 0 {
			continue
		}
		prims := b.Shape.Primitives(pos, angle)
		if w.overlapsAny(prims, candidates) {
			return
		}
	}
}

func (w *World) overlapsAny(prims []shape.Primitive, others []*RigidBody) bool {
	for _, o := range others {
		if collision.Overlaps(prims, o.prims) {
			return true
		}
	}
	return false
}
