package softbody

import (
	"fmt"
	"math"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/motionsim/collision"
	"github.com/milk9111/motionsim/common"
	"github.com/milk9111/motionsim/shape"
)

// Body is a running soft body.
type Body struct {
	ID            string
	Particles     []Particle
	Constraints   []Constraint
	Iterations    int
	Damping       float64
	SelfCollision bool
	CollideRigid  bool
	Material      shape.Material
	Filter        collision.Filter
	Response      collision.Response
	Grid          *Grid

	torn []Torn
	// rest holds particle offsets from the rest centroid, for Transform.
	rest       []cp.Vector
	restExtent cp.Vector
	// touching records the obstacle normal per particle during a step.
	touching []touch
}

// New validates cfg and builds a body. Previous positions start equal to
// positions, so particles are at rest.
func New(cfg Config) (*Body, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("softbody: %q: %w", cfg.ID, err)
	}
	b := &Body{
		ID:            cfg.ID,
		Particles:     make([]Particle, len(cfg.Particles)),
		Constraints:   make([]Constraint, len(cfg.Constraints)),
		Iterations:    cfg.Iterations,
		Damping:       cfg.Damping,
		SelfCollision: cfg.SelfCollision,
		CollideRigid:  cfg.CollideRigid,
		Material:      cfg.Material,
		Filter:        cfg.Filter.Normalized(),
		Response:      cfg.Response,
		Grid:          cfg.grid,
	}
	if b.Iterations == 0 {
		b.Iterations = DefaultIterations
	}
	for i, p := range cfg.Particles {
		p.Previous = p.Position
		p.Acceleration = cp.Vector{}
		b.Particles[i] = p
	}
	for i, k := range cfg.Constraints {
		if k.RestLength == 0 {
			k.RestLength = b.Particles[k.A].Position.Distance(b.Particles[k.B].Position)
		}
		if k.Stiffness == 0 {
			k.Stiffness = 1
		}
		b.Constraints[i] = k
	}

	c := b.Centroid()
	b.rest = make([]cp.Vector, len(b.Particles))
	for i, p := range b.Particles {
		b.rest[i] = p.Position.Sub(c)
	}
	b.restExtent = extent(b.Bounds())
	return b, nil
}

func (b *Body) invMass(i int) float64 {
	p := &b.Particles[i]
	if p.Pinned || p.Mass <= 0 {
		return 0
	}
	return 1 / p.Mass
}

// AddForce accumulates a force on particle i for the next step.
func (b *Body) AddForce(i int, f cp.Vector) {
	p := &b.Particles[i]
	if p.Pinned || p.Mass <= 0 {
		return
	}
	p.Acceleration = p.Acceleration.Add(f.Mult(1 / p.Mass))
}

// ApplyImpulse changes the velocity of particle i by j/mass. In Verlet form
// that moves the previous position.
func (b *Body) ApplyImpulse(i int, j cp.Vector, dt float64) {
	p := &b.Particles[i]
	if p.Pinned || p.Mass <= 0 || dt <= 0 {
		return
	}
	p.Previous = p.Previous.Sub(j.Mult(dt / p.Mass))
}

// Displace moves particle i by delta without giving it velocity.
func (b *Body) Displace(i int, delta cp.Vector) {
	p := &b.Particles[i]
	p.Position = p.Position.Add(delta)
	p.Previous = p.Previous.Add(delta)
}

// SetPinned pins or releases particle i.
func (b *Body) SetPinned(i int, pinned bool) {
	b.Particles[i].Pinned = pinned
}

// Velocity is the implicit velocity of particle i over the last step.
func (b *Body) Velocity(i int, dt float64) cp.Vector {
	if dt <= 0 {
		return cp.Vector{}
	}
	p := &b.Particles[i]
	return p.Position.Sub(p.Previous).Mult(1 / dt)
}

// Step advances the body by dt: Verlet integration under gravity and the
// accumulated forces, then Iterations relaxation passes with tearing and
// collision. It returns the constraints torn during this step.
func (b *Body) Step(dt float64, gravity cp.Vector, obstacles []Obstacle, frame int) []Torn {
	dt2 := dt * dt
	keep := 1 - b.Damping
	for i := range b.Particles {
		p := &b.Particles[i]
		if p.Pinned {
			p.Previous = p.Position
			p.Acceleration = cp.Vector{}
			continue
		}
		vel := p.Position.Sub(p.Previous).Mult(keep)
		next := p.Position.Add(vel).Add(gravity.Add(p.Acceleration).Mult(dt2))
		p.Previous = p.Position
		p.Position = next
		p.Acceleration = cp.Vector{}
	}

	var selfPairs []collision.Pair
	if b.SelfCollision {
		selfPairs = b.selfCollisionPairs()
	}
	if b.CollideRigid {
		b.resetTouching()
	}

	var torn []Torn
	for iter := 0; iter < b.Iterations; iter++ {
		torn = b.relax(torn, frame)
		if len(selfPairs) > 0 {
			b.resolveSelf(selfPairs)
		}
		if b.CollideRigid && len(obstacles) > 0 {
			b.resolveObstacles(obstacles)
		}
	}
	if b.CollideRigid && len(obstacles) > 0 {
		b.applyFriction(obstacles)
	}
	b.torn = append(b.torn, torn...)
	return torn
}

// relax runs one pass over the constraints. A constraint stretched past
// its break length is torn before it gets corrected.
func (b *Body) relax(torn []Torn, frame int) []Torn {
	kept := b.Constraints[:0]
	for _, k := range b.Constraints {
		pa, pb := &b.Particles[k.A], &b.Particles[k.B]
		delta := pb.Position.Sub(pa.Position)
		d := delta.Length()
		if k.BreakThreshold > 0 && d > k.RestLength*(1+k.BreakThreshold) {
			torn = append(torn, Torn{Constraint: k, Frame: frame})
			continue
		}
		kept = append(kept, k)

		wa, wb := b.invMass(k.A), b.invMass(k.B)
		w := wa + wb
		if w == 0 || d < 1e-12 {
			continue
		}
		corr := delta.Mult((d - k.RestLength) / d * k.Stiffness / w)
		pa.Position = pa.Position.Add(corr.Mult(wa))
		pb.Position = pb.Position.Sub(corr.Mult(wb))
	}
	for i := len(kept); i < len(b.Constraints); i++ {
		b.Constraints[i] = Constraint{}
	}
	b.Constraints = kept
	return torn
}

// TornConstraints returns every constraint torn since the body was built.
func (b *Body) TornConstraints() []Torn {
	return append([]Torn(nil), b.torn...)
}

// TornAt returns the constraints that tore on frame.
func (b *Body) TornAt(frame int) []Torn {
	i := len(b.torn)
	for i > 0 && b.torn[i-1].Frame >= frame {
		i--
	}
	j := i
	for j < len(b.torn) && b.torn[j].Frame == frame {
		j++
	}
	if i == j {
		return nil
	}
	return append([]Torn(nil), b.torn[i:j]...)
}

func (b *Body) Centroid() cp.Vector {
	var sum cp.Vector
	for _, p := range b.Particles {
		sum = sum.Add(p.Position)
	}
	return sum.Mult(1 / float64(len(b.Particles)))
}

// Bounds covers every particle including its radius.
func (b *Body) Bounds() cp.BB {
	bb := cp.NewBBForCircle(b.Particles[0].Position, b.Particles[0].Radius)
	for _, p := range b.Particles[1:] {
		bb = bb.Merge(cp.NewBBForCircle(p.Position, p.Radius))
	}
	return bb
}

// Transform summarizes the particles as a rigid transform: centroid, best
// fit rotation from the rest pose, and bounds size relative to the rest
// pose.
func (b *Body) Transform() (cp.Vector, float64, cp.Vector) {
	c := b.Centroid()
	var cross, dot float64
	for i, p := range b.Particles {
		r := p.Position.Sub(c)
		cross += b.rest[i].Cross(r)
		dot += b.rest[i].Dot(r)
	}
	angle := 0.0
	if cross != 0 || dot != 0 {
		angle = math.Atan2(cross, dot)
	}
	scale := cp.Vector{X: 1, Y: 1}
	cur := extent(b.Bounds())
	if b.restExtent.X > 0 {
		scale.X = cur.X / b.restExtent.X
	}
	if b.restExtent.Y > 0 {
		scale.Y = cur.Y / b.restExtent.Y
	}
	return c, angle, scale
}

func extent(bb cp.BB) cp.Vector {
	return cp.Vector{X: bb.R - bb.L, Y: bb.T - bb.B}
}

// Finite reports whether every particle position is a real number.
func (b *Body) Finite() bool {
	for _, p := range b.Particles {
		if !common.VecFinite(p.Position) {
			return false
		}
	}
	return true
}

// Clone deep-copies the body for snapshots.
func (b *Body) Clone() *Body {
	out := *b
	out.Particles = append([]Particle(nil), b.Particles...)
	out.Constraints = append([]Constraint(nil), b.Constraints...)
	out.torn = append([]Torn(nil), b.torn...)
	out.rest = append([]cp.Vector(nil), b.rest...)
	out.touching = nil
	if b.Grid != nil {
		g := *b.Grid
		out.Grid = &g
	}
	return &out
}
