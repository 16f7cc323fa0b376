package physics

import (
	"math"

	"go.uber.org/zap"
)

// checkFinite rolls back bodies and soft bodies that picked up NaN or Inf
// this step. Rigid bodies are also put to sleep so the bad input does not
// replay; a body with no valid state is removed.
func (w *World) checkFinite(dt float64) {
	var lost []string
	for _, b := range w.bodies.Items() {
		if b.Type == Dead {
			continue
		}
		if b.finite() {
			b.saveValid()
			continue
		}
		if b.lastValid == nil {
			lost = append(lost, b.ID)
			w.events.Push(Event{Kind: EventNumericalInstability, Frame: w.frame, Subject: b.ID, Detail: "removed"})
			continue
		}
		v := b.lastValid
		b.Position, b.Angle = v.position, v.angle
		b.Velocity, b.AngularVelocity = v.velocity, v.angularVelocity
		if b.Type == Dynamic || b.Type == AEmatic {
			b.sleep()
		}
		b.updateGeometry()
		w.events.Push(Event{Kind: EventNumericalInstability, Frame: w.frame, Subject: b.ID, Detail: "restored"})
	}
	for _, id := range lost {
		w.removeBody(id)
		w.logger.Warn("removed unstable body", zap.String("body", id), zap.Int("frame", w.frame))
	}

	for _, rec := range w.softs.Items() {
		if rec.body.Finite() {
			rec.valid = append(rec.valid[:0], rec.body.Particles...)
			continue
		}
		copy(rec.body.Particles, rec.valid)
		w.events.Push(Event{Kind: EventNumericalInstability, Frame: w.frame, Subject: rec.body.ID, Detail: "restored"})
	}
}

// updateSleep moves bodies that stayed slow for SleepTimeThreshold seconds
// to dormant. A body tied by a joint to a moving body stays awake.
func (w *World) updateSleep(dt float64) {
	if !w.cfg.SleepEnabled {
		return
	}
	held := make(map[*RigidBody]bool)
	for _, j := range w.joints.Items() {
		if j.a == nil || j.b == nil {
			continue
		}
		if w.moving(j.a) {
			held[j.b] = true
		}
		if w.moving(j.b) {
			held[j.a] = true
		}
	}
	for _, b := range w.bodies.Items() {
		if !b.simulated() || !b.CanSleep {
			b.sleepTime = 0
			continue
		}
		slow := b.Velocity.Length() <= w.cfg.SleepVelocityThreshold &&
			math.Abs(b.AngularVelocity) <= w.cfg.SleepAngularThreshold
		if !slow || held[b] {
			b.sleepTime = 0
			continue
		}
		b.sleepTime += dt
		if b.sleepTime >= w.cfg.SleepTimeThreshold {
			b.sleep()
			w.events.Push(Event{Kind: EventBodySlept, Frame: w.frame, Subject: b.ID})
		}
	}
}
