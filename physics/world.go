// Package physics owns the simulation world: rigid bodies, joints, soft
// bodies and ragdolls registered by id, the fixed-step pipeline that moves
// them, and the snapshots and states it reports.
package physics

import (
	"errors"
	"fmt"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/motionsim/common"
	"github.com/milk9111/motionsim/force"
	"github.com/milk9111/motionsim/logging"
	"github.com/milk9111/motionsim/shape"
	"github.com/milk9111/motionsim/softbody"
	"go.uber.org/zap"
)

var (
	// ErrVariableTimestep is returned by Step when dt is not positive, or
	// differs from the configured timestep in deterministic mode.
	ErrVariableTimestep = errors.New("physics: variable timestep")
	ErrNotFound         = errors.New("physics: not found")
	ErrDuplicateID      = errors.New("physics: duplicate id")
)

// Option configures a World.
type Option func(*World)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(w *World) {
		w.logger = logging.OrNop(l)
	}
}

type softRecord struct {
	body  *softbody.Body
	valid []softbody.Particle
}

func (r *softRecord) clone() *softRecord {
	return &softRecord{
		body:  r.body.Clone(),
		valid: append([]softbody.Particle(nil), r.valid...),
	}
}

type ragdollRecord struct {
	id     string
	bones  []string
	bodies []string
	joints []string
}

func (r *ragdollRecord) clone() *ragdollRecord {
	return &ragdollRecord{
		id:     r.id,
		bones:  append([]string(nil), r.bones...),
		bodies: append([]string(nil), r.bodies...),
		joints: append([]string(nil), r.joints...),
	}
}

type bodyPair struct {
	a, b string
}

func orderedBodyPair(a, b string) bodyPair {
	if a > b {
		a, b = b, a
	}
	return bodyPair{a, b}
}

// World is a deterministic 2D physics space. It is not safe for concurrent
// use; independent worlds share nothing.
type World struct {
	cfg    SpaceConfig
	logger *zap.Logger

	bodies   *arena[*RigidBody]
	joints   *arena[*joint]
	softs    *arena[*softRecord]
	ragdolls *arena[*ragdollRecord]
	fields   *force.Evaluator
	rng      *common.RNG
	// ground stands in for the world when a joint names no body.
	ground *RigidBody

	frame        int
	events       EventQueue
	lastEvents   []Event
	contacts     []*contact
	lastContacts []ContactInfo
	warm         map[contactKey]cachedImpulse
	noCollide    map[bodyPair]struct{}
	diagnostics  Diagnostics
	nextGroup    int32

	pipeline *pipeline
}

// NewWorld validates cfg, after filling zero fields with defaults, and
// returns an empty world at frame 0.
func NewWorld(cfg SpaceConfig, opts ...Option) (*World, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("physics: %w", err)
	}
	w := &World{
		cfg:       cfg,
		logger:    logging.Nop(),
		bodies:    newArena[*RigidBody](),
		joints:    newArena[*joint](),
		softs:     newArena[*softRecord](),
		ragdolls:  newArena[*ragdollRecord](),
		fields:    force.NewEvaluator(),
		rng:       common.NewRNG(cfg.Seed),
		ground:    newGround(),
		warm:      map[contactKey]cachedImpulse{},
		nextGroup: -1 << 20,
		pipeline:  defaultPipeline(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func newGround() *RigidBody {
	return &RigidBody{Type: Static, Shape: shape.NewCircle(1)}
}

func (w *World) Config() SpaceConfig {
	return w.cfg
}

// Frame is the number of steps taken.
func (w *World) Frame() int {
	return w.frame
}

// Time is the simulated time at the current frame.
func (w *World) Time() float64 {
	return float64(w.frame) * w.cfg.Timestep
}

// taken reports whether id names any registered entity.
func (w *World) taken(id string) bool {
	return w.bodies.Has(id) || w.joints.Has(id) || w.softs.Has(id) || w.ragdolls.Has(id) || w.fields.Has(id)
}

// AddRigidBody validates cfg and registers the body.
func (w *World) AddRigidBody(cfg RigidBodyConfig) error {
	if err := cfg.Validate(); err != nil {
		w.logger.Warn("rejected body", zap.String("body", cfg.ID), zap.Error(err))
		return fmt.Errorf("physics: body %q: %w", cfg.ID, err)
	}
	if w.taken(cfg.ID) {
		return fmt.Errorf("physics: body %q: %w", cfg.ID, ErrDuplicateID)
	}
	b := newRigidBody(cfg)
	w.bodies.Insert(b.ID, b)
	w.logger.Debug("added body", zap.String("body", b.ID), zap.Stringer("type", b.Type), zap.Float64("mass", b.Mass))
	return nil
}

// bodyOrGround resolves a joint body reference. The empty id is the world.
func (w *World) bodyOrGround(id string) (*RigidBody, bool) {
	if id == "" {
		return w.ground, true
	}
	b, ok := w.bodies.Get(id)
	if !ok || b.Type == Dead {
		return nil, false
	}
	return b, true
}

// AddJoint validates cfg against the current pose of its bodies and
// registers it. Auto lengths are measured now.
func (w *World) AddJoint(cfg JointConfig) error {
	wrap := func(err error) error {
		w.logger.Warn("rejected joint", zap.String("joint", cfg.ID), zap.Error(err))
		return fmt.Errorf("physics: joint %q: %w", cfg.ID, err)
	}
	if err := cfg.Validate(); err != nil {
		return wrap(err)
	}
	if w.taken(cfg.ID) {
		return fmt.Errorf("physics: joint %q: %w", cfg.ID, ErrDuplicateID)
	}
	a, ok := w.bodyOrGround(cfg.BodyA)
	if !ok {
		return wrap(common.Invalid("joint.body_a", cfg.BodyA, "unknown body"))
	}
	b, ok := w.bodyOrGround(cfg.BodyB)
	if !ok {
		return wrap(common.Invalid("joint.body_b", cfg.BodyB, "unknown body"))
	}
	solver, err := newJointSolver(cfg, a, b)
	if err != nil {
		return wrap(err)
	}
	w.joints.Insert(cfg.ID, &joint{cfg: cfg.clone(), a: a, b: b, solver: solver})
	return nil
}

// AddForceField registers a field. Strength expressions are compiled here.
func (w *World) AddForceField(f force.Field) error {
	if f.ID != "" && w.taken(f.ID) {
		return fmt.Errorf("physics: field %q: %w", f.ID, ErrDuplicateID)
	}
	if err := w.fields.Add(f); err != nil {
		w.logger.Warn("rejected force field", zap.String("field", f.ID), zap.Error(err))
		return fmt.Errorf("physics: %w", err)
	}
	return nil
}

// SetFieldEnabled toggles a registered field.
func (w *World) SetFieldEnabled(id string, enabled bool) error {
	if !w.fields.SetEnabled(id, enabled) {
		return fmt.Errorf("physics: field %q: %w", id, ErrNotFound)
	}
	return nil
}

// AddSoftBody builds and registers a soft body.
func (w *World) AddSoftBody(cfg softbody.Config) error {
	if w.taken(cfg.ID) {
		return fmt.Errorf("physics: soft body %q: %w", cfg.ID, ErrDuplicateID)
	}
	body, err := softbody.New(cfg)
	if err != nil {
		w.logger.Warn("rejected soft body", zap.String("softbody", cfg.ID), zap.Error(err))
		return fmt.Errorf("physics: %w", err)
	}
	rec := &softRecord{body: body, valid: append([]softbody.Particle(nil), body.Particles...)}
	w.softs.Insert(cfg.ID, rec)
	return nil
}

// AddCloth generates a cloth grid and registers it as a soft body.
func (w *World) AddCloth(cfg softbody.ClothConfig) error {
	sc, err := softbody.NewCloth(cfg)
	if err != nil {
		w.logger.Warn("rejected cloth", zap.String("softbody", cfg.ID), zap.Error(err))
		return fmt.Errorf("physics: cloth %q: %w", cfg.ID, err)
	}
	return w.AddSoftBody(sc)
}

// Remove deletes the entity with id. Removing a body also removes its
// joints; removing a ragdoll removes its bones and joints.
func (w *World) Remove(id string) error {
	switch {
	case w.bodies.Has(id):
		w.removeBody(id)
	case w.joints.Has(id):
		w.joints.Remove(id)
	case w.softs.Has(id):
		w.softs.Remove(id)
	case w.ragdolls.Has(id):
		rec, _ := w.ragdolls.Get(id)
		for _, jid := range rec.joints {
			w.joints.Remove(jid)
		}
		for _, bid := range rec.bodies {
			w.removeBody(bid)
		}
		w.ragdolls.Remove(id)
	case w.fields.Remove(id):
	default:
		return fmt.Errorf("physics: %q: %w", id, ErrNotFound)
	}
	return nil
}

func (w *World) removeBody(id string) {
	var stale []string
	for _, j := range w.joints.Items() {
		if j.cfg.BodyA == id || j.cfg.BodyB == id {
			stale = append(stale, j.cfg.ID)
		}
	}
	for _, jid := range stale {
		w.joints.Remove(jid)
	}
	w.bodies.Remove(id)
}

// Kill takes a body out of the simulation. It is excluded from every query
// at once and removed at the end of the next step.
func (w *World) Kill(id string) error {
	b, ok := w.bodies.Get(id)
	if !ok || b.Type == Dead {
		return fmt.Errorf("physics: body %q: %w", id, ErrNotFound)
	}
	b.Type = Dead
	return nil
}

func (w *World) liveBody(id string) (*RigidBody, error) {
	b, ok := w.bodies.Get(id)
	if !ok || b.Type == Dead {
		return nil, fmt.Errorf("physics: body %q: %w", id, ErrNotFound)
	}
	return b, nil
}

// Body returns the current state of a live body.
func (w *World) Body(id string) (BodyState, bool) {
	b, err := w.liveBody(id)
	if err != nil {
		return BodyState{}, false
	}
	return bodyState(b), true
}

// SoftBody returns the current state of a soft body or cloth.
func (w *World) SoftBody(id string) (SoftBodyState, bool) {
	rec, ok := w.softs.Get(id)
	if !ok {
		return SoftBodyState{}, false
	}
	return softBodyState(rec.body, w.frame), true
}

// Ragdoll returns the current bone poses of a ragdoll.
func (w *World) Ragdoll(id string) (RagdollState, bool) {
	rec, ok := w.ragdolls.Get(id)
	if !ok {
		return RagdollState{}, false
	}
	return w.ragdollState(rec), true
}

// ApplyForce adds a force for the next step. On a soft body the force is
// shared between particles by mass. Static and kinematic bodies ignore it.
func (w *World) ApplyForce(id string, f cp.Vector) error {
	if rec, ok := w.softs.Get(id); ok {
		total := 0.0
		for _, p := range rec.body.Particles {
			total += p.Mass
		}
		if total > 0 {
			for i, p := range rec.body.Particles {
				rec.body.AddForce(i, f.Mult(p.Mass/total))
			}
		}
		return nil
	}
	b, err := w.liveBody(id)
	if err != nil {
		return err
	}
	if w.wakeForInput(b) {
		b.force = b.force.Add(f)
	}
	return nil
}

// ApplyTorque adds a torque for the next step.
func (w *World) ApplyTorque(id string, torque float64) error {
	b, err := w.liveBody(id)
	if err != nil {
		return err
	}
	if w.wakeForInput(b) {
		b.torque += torque
	}
	return nil
}

// ApplyImpulse changes the momentum of a body at the next step.
func (w *World) ApplyImpulse(id string, j cp.Vector) error {
	if rec, ok := w.softs.Get(id); ok {
		n := float64(len(rec.body.Particles))
		for i := range rec.body.Particles {
			rec.body.ApplyImpulse(i, j.Mult(1/n), w.cfg.Timestep)
		}
		return nil
	}
	b, err := w.liveBody(id)
	if err != nil {
		return err
	}
	if w.wakeForInput(b) {
		b.impulse = b.impulse.Add(j)
	}
	return nil
}

// SetVelocity overrides the velocity of a dynamic or kinematic body.
func (w *World) SetVelocity(id string, v cp.Vector, angular float64) error {
	b, err := w.liveBody(id)
	if err != nil {
		return err
	}
	if b.Type == Static {
		return nil
	}
	w.wake(b, "velocity set")
	b.Velocity = v
	if !b.FixedRotation {
		b.AngularVelocity = angular
	}
	return nil
}

// SetShape replaces the shape of a body. Mass and moment derived from the
// old shape are recomputed.
func (w *World) SetShape(id string, s shape.Shape) error {
	b, err := w.liveBody(id)
	if err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("physics: body %q: %w", id, err)
	}
	movable := b.Type == Dynamic || b.Type == AEmatic || b.Type == Dormant
	if b.autoMass && movable && !(b.Material.Density*s.Area() > 0) {
		return fmt.Errorf("physics: body %q: %w", id, common.Invalid("body.mass", 0, "shape gives the body no mass"))
	}
	b.setShape(s)
	w.wake(b, "shape set")
	return nil
}

// wakeForInput wakes a dormant body receiving an external push and reports
// whether the body accepts forces at all.
func (w *World) wakeForInput(b *RigidBody) bool {
	w.wake(b, "external input")
	return b.Type == Dynamic || b.Type == AEmatic
}

func (w *World) wake(b *RigidBody, reason string) {
	if !b.wake() {
		return
	}
	b.updateSolverMass()
	w.events.Push(Event{Kind: EventBodyWoke, Frame: w.frame, Subject: b.ID, Detail: reason})
}

// JointAnchorSeparation is the world distance between the two anchors of a
// joint.
func (w *World) JointAnchorSeparation(id string) (float64, bool) {
	j, ok := w.joints.Get(id)
	if !ok {
		return 0, false
	}
	a, okA := w.bodyOrGround(j.cfg.BodyA)
	b, okB := w.bodyOrGround(j.cfg.BodyB)
	if !okA || !okB {
		return 0, false
	}
	return a.WorldPoint(j.cfg.LocalAnchorA).Distance(b.WorldPoint(j.cfg.LocalAnchorB)), true
}

// JointIDs lists the registered joints in registration order.
func (w *World) JointIDs() []string {
	return append([]string(nil), w.joints.IDs()...)
}

// BodyIDs lists the live bodies in registration order.
func (w *World) BodyIDs() []string {
	out := make([]string, 0, w.bodies.Len())
	for _, b := range w.bodies.Items() {
		if b.Type != Dead {
			out = append(out, b.ID)
		}
	}
	return out
}

// Step advances the world by one frame of dt. In deterministic mode dt must
// equal the configured timestep; otherwise the world is left untouched and
// ErrVariableTimestep is returned.
func (w *World) Step(dt float64) (*State, error) {
	if !(dt > 0) || !common.IsFinite(dt) || (w.cfg.Deterministic && dt != w.cfg.Timestep) {
		return nil, fmt.Errorf("%w: dt %v, timestep %v", ErrVariableTimestep, dt, w.cfg.Timestep)
	}
	w.frame++
	w.pipeline.Update(w, dt)
	w.lastEvents = w.events.Drain()
	for _, evt := range w.lastEvents {
		w.logEvent(evt)
	}
	return w.State(), nil
}

// Advance steps by the configured timestep.
func (w *World) Advance() (*State, error) {
	return w.Step(w.cfg.Timestep)
}

func (w *World) logEvent(evt Event) {
	fields := []zap.Field{zap.Stringer("event", evt.Kind), zap.Int("frame", evt.Frame), zap.String("subject", evt.Subject)}
	if evt.Detail != "" {
		fields = append(fields, zap.String("detail", evt.Detail))
	}
	switch evt.Kind {
	case EventNumericalInstability, EventScriptError:
		w.logger.Warn("simulation event", fields...)
	case EventJointBroken, EventConstraintTorn:
		w.logger.Info("simulation event", append(fields, zap.Float64("force", evt.Force))...)
	default:
		w.logger.Debug("simulation event", fields...)
	}
}

// Snapshot captures everything needed to continue the simulation.
type Snapshot struct {
	world *World
}

// Frame is the frame the snapshot was taken at.
func (s *Snapshot) Frame() int {
	if s == nil || s.world == nil {
		return 0
	}
	return s.world.frame
}

// Fork returns an independent world continuing from the snapshot.
func (s *Snapshot) Fork(opts ...Option) *World {
	w := s.world.clone()
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Snapshot deep-copies the world state, including the random generator
// and warm-start caches.
func (w *World) Snapshot() *Snapshot {
	return &Snapshot{world: w.clone()}
}

// Restore rewinds the world to s. The snapshot stays usable.
func (w *World) Restore(s *Snapshot) error {
	if s == nil || s.world == nil {
		return fmt.Errorf("physics: restore: %w", ErrNotFound)
	}
	logger := w.logger
	*w = *s.world.clone()
	w.logger = logger
	return nil
}

func (w *World) clone() *World {
	out := &World{
		cfg:          w.cfg,
		logger:       w.logger,
		bodies:       w.bodies.clone((*RigidBody).clone),
		joints:       w.joints.clone((*joint).clone),
		softs:        w.softs.clone((*softRecord).clone),
		ragdolls:     w.ragdolls.clone((*ragdollRecord).clone),
		fields:       w.fields.Clone(),
		rng:          w.rng.Clone(),
		ground:       newGround(),
		frame:        w.frame,
		lastEvents:   append([]Event(nil), w.lastEvents...),
		lastContacts: append([]ContactInfo(nil), w.lastContacts...),
		warm:         make(map[contactKey]cachedImpulse, len(w.warm)),
		diagnostics:  w.diagnostics,
		nextGroup:    w.nextGroup,
		pipeline:     w.pipeline,
	}
	for k, v := range w.warm {
		out.warm[k] = v
	}
	out.rebindJoints()
	return out
}
