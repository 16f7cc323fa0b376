package physics

import (
	"fmt"

	"github.com/milk9111/motionsim/collision"
	"github.com/milk9111/motionsim/softbody"
)

// stepSoftBodies integrates every soft body against the rigid bodies as
// they stand after the rigid step. Particles are pushed out of rigid shapes;
// rigid bodies do not feel the particles.
func (w *World) stepSoftBodies(dt float64) {
	if w.softs.Len() == 0 {
		return
	}
	var obstacles []softbody.Obstacle
	for _, b := range w.bodies.Items() {
		if b.Type == Dead || b.Response != collision.ResponseCollide {
			continue
		}
		obstacles = append(obstacles, softbody.Obstacle{
			ID:       b.ID,
			Prims:    b.prims,
			Bounds:   b.bounds,
			Filter:   b.Filter,
			Friction: b.Material.Friction,
		})
	}
	for _, rec := range w.softs.Items() {
		body := rec.body
		var obs []softbody.Obstacle
		if body.CollideRigid && body.Response == collision.ResponseCollide {
			obs = obstacles
		}
		for _, t := range body.Step(dt, w.cfg.Gravity, obs, w.frame) {
			w.events.Push(Event{
				Kind:    EventConstraintTorn,
				Frame:   w.frame,
				Subject: body.ID,
				Detail:  tornDetail(t),
			})
		}
	}
}

func tornDetail(t softbody.Torn) string {
	if t.Class == softbody.Generic {
		return fmt.Sprintf("%d-%d", t.A, t.B)
	}
	return fmt.Sprintf("%s %d-%d row %d col %d", t.Class, t.A, t.B, t.Row, t.Col)
}
