package physics

import (
	"math"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/motionsim/collision"
	"github.com/milk9111/motionsim/common"
	"go.uber.org/zap"
)

// rebindJoints resolves the body references of every joint.
func (w *World) rebindJoints() {
	for _, j := range w.joints.Items() {
		j.a, _ = w.bodyOrGround(j.cfg.BodyA)
		j.b, _ = w.bodyOrGround(j.cfg.BodyB)
	}
}

// bindJoints rebinds joints, collects the body pairs they keep from
// colliding and wakes dormant bodies whose partner moves.
func (w *World) bindJoints(dt float64) {
	w.rebindJoints()
	w.noCollide = make(map[bodyPair]struct{})
	for _, j := range w.joints.Items() {
		if j.a == nil || j.b == nil {
			continue
		}
		if !j.cfg.CollideConnected {
			w.noCollide[orderedBodyPair(j.a.ID, j.b.ID)] = struct{}{}
		}
		if j.a.Type == Dormant && w.moving(j.b) {
			w.wake(j.a, "joint partner moved")
		}
		if j.b.Type == Dormant && w.moving(j.a) {
			w.wake(j.b, "joint partner moved")
		}
	}
}

// moving reports whether an awake body is above the sleep thresholds.
func (w *World) moving(b *RigidBody) bool {
	if !b.Awake() {
		return false
	}
	return b.Velocity.Length() > w.cfg.SleepVelocityThreshold ||
		math.Abs(b.AngularVelocity) > w.cfg.SleepAngularThreshold
}

func (w *World) jointSuppressed(a, b string) bool {
	_, ok := w.noCollide[orderedBodyPair(a, b)]
	return ok
}

func (j *joint) active() bool {
	if j.a == nil || j.b == nil {
		return false
	}
	return j.a.im+j.a.iI+j.b.im+j.b.iI > 0
}

// canInteract reports whether contact between a and b can change anything:
// at least one side must respond to impulses, or a kinematic body must be
// able to push a dormant one awake.
func canInteract(a, b *RigidBody) bool {
	if a.simulated() || b.simulated() {
		return true
	}
	return (a.Type == Dormant && b.Type == Kinematic) || (b.Type == Dormant && a.Type == Kinematic)
}

// collide runs the broad and narrow phases and builds this step's contacts.
func (w *World) collide(dt float64) {
	w.contacts = w.contacts[:0]

	var proxies []*RigidBody
	var bounds []cp.BB
	for _, b := range w.bodies.Items() {
		if b.Type == Dead || b.Response == collision.ResponseNone {
			continue
		}
		bb := b.bounds
		if b.Awake() && common.VecFinite(b.Velocity) {
			bb = collision.Inflate(bb, b.Velocity.Mult(dt))
		}
		proxies = append(proxies, b)
		bounds = append(bounds, bb)
	}

	grid := collision.Grid{CellSize: w.cfg.CellSize}
	for _, pair := range grid.Pairs(bounds) {
		a, b := proxies[pair.A], proxies[pair.B]
		if !canInteract(a, b) {
			continue
		}
		if !a.Filter.CanCollide(b.Filter) || w.jointSuppressed(a.ID, b.ID) {
			continue
		}
		response, ok := collision.PairResponse(a.Response, b.Response)
		if !ok {
			continue
		}
		manifolds := collision.Collide(a.prims, b.prims)
		if len(manifolds) == 0 {
			continue
		}
		sensor := response == collision.ResponseSensor
		if !sensor {
			w.wakeOnNewContact(a, b, manifolds)
			if !a.simulated() && !b.simulated() {
				continue
			}
		}
		for _, m := range manifolds {
			w.contacts = append(w.contacts, newContact(a, b, m, sensor))
		}
	}
}

// wakeOnNewContact wakes a dormant body touched by a moving body for the
// first time. Contacts already in the warm-start cache are old news.
func (w *World) wakeOnNewContact(a, b *RigidBody, manifolds []collision.Manifold) {
	if a.Type != Dormant && b.Type != Dormant {
		return
	}
	for _, m := range manifolds {
		for _, p := range m.Points {
			if _, ok := w.warm[contactKey{a.ID, b.ID, p.ID}]; ok {
				return
			}
		}
	}
	if a.Type == Dormant && (b.simulated() || w.moving(b)) {
		w.wake(a, "contact with "+b.ID)
	}
	if b.Type == Dormant && (a.simulated() || w.moving(a)) {
		w.wake(b, "contact with "+a.ID)
	}
}

// solveVelocities runs the sequential impulse iterations over joints and
// contacts, warm started from the previous step.
func (w *World) solveVelocities(dt float64) {
	warm := w.cfg.WarmStarting
	cache := w.warm
	if !warm {
		cache = nil
	}

	var joints []*joint
	for _, j := range w.joints.Items() {
		if j.active() {
			j.solver.initVelocity(j.a, j.b, dt, warm)
			joints = append(joints, j)
		}
	}
	var contacts []*contact
	for _, c := range w.contacts {
		if !c.sensor {
			c.initVelocity(cache, w.cfg.RestitutionThreshold)
			contacts = append(contacts, c)
		}
	}

	for it := 0; it < w.cfg.VelocityIterations; it++ {
		for _, j := range joints {
			j.solver.solveVelocity(j.a, j.b, dt)
		}
		for _, c := range contacts {
			c.solveVelocity()
		}
	}

	next := make(map[contactKey]cachedImpulse, len(w.warm))
	w.lastContacts = w.lastContacts[:0]
	for _, c := range w.contacts {
		if !c.sensor {
			c.store(next)
		}
		w.lastContacts = append(w.lastContacts, c.info()...)
	}
	w.warm = next
}

// solvePositions removes the remaining penetration and joint drift without
// adding velocity, then records the solver diagnostics.
func (w *World) solvePositions(dt float64) {
	slop := w.cfg.CollisionSlop
	for it := 0; it < w.cfg.PositionIterations; it++ {
		minSeparation := 0.0
		for _, c := range w.contacts {
			if c.sensor {
				continue
			}
			minSeparation = math.Min(minSeparation, c.solvePosition(w.cfg.CollisionBias, slop, w.cfg.MaxCorrection))
		}
		jointsOK := true
		for _, j := range w.joints.Items() {
			if j.active() {
				if !j.solver.solvePosition(j.a, j.b, slop, w.cfg.MaxCorrection) {
					jointsOK = false
				}
			}
		}
		if minSeparation >= -unresolvedFactor*slop && jointsOK {
			break
		}
	}

	for _, b := range w.bodies.Items() {
		if b.simulated() {
			b.updateGeometry()
		}
	}

	w.diagnostics = Diagnostics{Contacts: len(w.lastContacts), Joints: w.joints.Len()}
	for _, c := range w.contacts {
		if c.sensor {
			continue
		}
		penetration := -c.separation()
		if penetration > w.diagnostics.MaxPenetration {
			w.diagnostics.MaxPenetration = penetration
		}
		if penetration > unresolvedFactor*slop {
			w.diagnostics.UnresolvedContacts++
		}
	}
}

// unresolvedFactor times the slop is the penetration a contact may keep
// before it counts as unresolved.
const unresolvedFactor = 3

// breakJoints removes joints whose constraint force this step exceeded
// their MaxForce.
func (w *World) breakJoints(dt float64) {
	var broken []Event
	for _, j := range w.joints.Items() {
		if j.cfg.MaxForce <= 0 || !j.active() {
			continue
		}
		f := j.solver.appliedImpulse() / dt
		if f > j.cfg.MaxForce {
			broken = append(broken, Event{Kind: EventJointBroken, Frame: w.frame, Subject: j.cfg.ID, Force: f})
		}
	}
	for _, evt := range broken {
		w.joints.Remove(evt.Subject)
		w.events.Push(evt)
	}
}

// removeDead drops bodies killed since the last step.
func (w *World) removeDead(dt float64) {
	var dead []string
	for _, b := range w.bodies.Items() {
		if b.Type == Dead {
			dead = append(dead, b.ID)
		}
	}
	for _, id := range dead {
		w.removeBody(id)
		w.logger.Debug("removed dead body", zap.String("body", id), zap.Int("frame", w.frame))
	}
}
