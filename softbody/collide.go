package softbody

import (
	"github.com/jakecoffman/cp"
	"github.com/milk9111/motionsim/collision"
	"github.com/milk9111/motionsim/shape"
)

// Obstacle is a rigid shape particles collide with.
type Obstacle struct {
	ID       string
	Prims    []shape.Primitive
	Bounds   cp.BB
	Filter   collision.Filter
	Friction float64
}

type pairKey struct{ a, b int }

// touch is the last obstacle contact of a particle during a step.
type touch struct {
	normal   cp.Vector
	obstacle int
}

func orderedPair(a, b int) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

// selfCollisionPairs returns particle pairs that are close enough to touch
// and not already joined by a constraint.
func (b *Body) selfCollisionPairs() []collision.Pair {
	linked := make(map[pairKey]struct{}, len(b.Constraints))
	for _, k := range b.Constraints {
		linked[orderedPair(k.A, k.B)] = struct{}{}
	}
	bounds := make([]cp.BB, len(b.Particles))
	for i, p := range b.Particles {
		bounds[i] = cp.NewBBForCircle(p.Position, p.Radius*2)
	}
	grid := collision.Grid{}
	var out []collision.Pair
	for _, pr := range grid.Pairs(bounds) {
		if _, ok := linked[pairKey{pr.A, pr.B}]; ok {
			continue
		}
		out = append(out, pr)
	}
	return out
}

func (b *Body) resolveSelf(pairs []collision.Pair) {
	for _, pr := range pairs {
		pa, pb := &b.Particles[pr.A], &b.Particles[pr.B]
		minDist := pa.Radius + pb.Radius
		delta := pb.Position.Sub(pa.Position)
		d2 := delta.LengthSq()
		if d2 >= minDist*minDist || d2 < 1e-18 {
			continue
		}
		wa, wb := b.invMass(pr.A), b.invMass(pr.B)
		w := wa + wb
		if w == 0 {
			continue
		}
		d := delta.Length()
		corr := delta.Mult((d - minDist) / d / w)
		pa.Position = pa.Position.Add(corr.Mult(wa))
		pb.Position = pb.Position.Sub(corr.Mult(wb))
	}
}

func (b *Body) resetTouching() {
	if cap(b.touching) < len(b.Particles) {
		b.touching = make([]touch, len(b.Particles))
	}
	b.touching = b.touching[:len(b.Particles)]
	for i := range b.touching {
		b.touching[i] = touch{obstacle: -1}
	}
}

// resolveObstacles pushes each particle out of the rigid shapes along the
// contact normal.
func (b *Body) resolveObstacles(obstacles []Obstacle) {
	for i := range b.Particles {
		p := &b.Particles[i]
		if p.Pinned {
			continue
		}
		pb := cp.NewBBForCircle(p.Position, p.Radius)
		for oi := range obstacles {
			o := &obstacles[oi]
			if !pb.Intersects(o.Bounds) || !b.Filter.CanCollide(o.Filter) {
				continue
			}
			n, depth, ok := collision.CollideCircle(p.Position, p.Radius, o.Prims)
			if !ok || depth <= 0 {
				continue
			}
			p.Position = p.Position.Sub(n.Mult(depth))
			pb = cp.NewBBForCircle(p.Position, p.Radius)
			b.touching[i] = touch{normal: n, obstacle: oi}
		}
	}
}

// applyFriction removes part of the tangential motion of particles that
// touched an obstacle this step.
func (b *Body) applyFriction(obstacles []Obstacle) {
	for i := range b.Particles {
		t := b.touching[i]
		if t.obstacle < 0 {
			continue
		}
		p := &b.Particles[i]
		n := t.normal
		mu := shape.MixFriction(b.Material.Friction, obstacles[t.obstacle].Friction)
		if mu > 1 {
			mu = 1
		}
		v := p.Position.Sub(p.Previous)
		vt := v.Sub(n.Mult(v.Dot(n)))
		p.Previous = p.Previous.Add(vt.Mult(mu))
	}
}
