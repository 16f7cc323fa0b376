package physics

import (
	"math"
	"testing"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/motionsim/common"
	"github.com/milk9111/motionsim/force"
	"github.com/milk9111/motionsim/ragdoll"
	"github.com/milk9111/motionsim/shape"
	"github.com/milk9111/motionsim/softbody"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorld(t *testing.T, mutate func(*SpaceConfig)) *World {
	t.Helper()
	cfg := DefaultSpaceConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	w, err := NewWorld(cfg)
	require.NoError(t, err)
	return w
}

func noGravity(c *SpaceConfig) {
	c.Gravity = cp.Vector{}
}

func ball(id string, pos cp.Vector, radius float64) RigidBodyConfig {
	return RigidBodyConfig{
		ID:       id,
		Type:     Dynamic,
		Mass:     1,
		Position: pos,
		Shape:    shape.NewCircle(radius),
		Material: shape.DefaultMaterial(),
	}
}

func box(id string, typ BodyType, pos cp.Vector, width, height float64) RigidBodyConfig {
	c := RigidBodyConfig{
		ID:       id,
		Type:     typ,
		Position: pos,
		Shape:    shape.NewBox(width, height),
		Material: shape.DefaultMaterial(),
	}
	if typ == Dynamic {
		c.Mass = 1
	}
	return c
}

func stepN(t *testing.T, w *World, n int) *State {
	t.Helper()
	var s *State
	for i := 0; i < n; i++ {
		var err error
		s, err = w.Advance()
		require.NoError(t, err)
	}
	return s
}

func bodyOf(t *testing.T, w *World, id string) BodyState {
	t.Helper()
	b, ok := w.Body(id)
	require.True(t, ok, "body %s", id)
	return b
}

func TestNewWorldValidatesConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*SpaceConfig)
		field  string
	}{
		{"negative_timestep", func(c *SpaceConfig) { c.Timestep = -1 }, "space.timestep"},
		{"bias_above_one", func(c *SpaceConfig) { c.CollisionBias = 2 }, "space.collision_bias"},
		{"nan_gravity", func(c *SpaceConfig) { c.Gravity = cp.Vector{X: math.NaN()} }, "space.gravity"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := DefaultSpaceConfig()
			c.mutate(&cfg)
			_, err := NewWorld(cfg)
			var ve *common.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, c.field, ve.Field)
		})
	}

	w, err := NewWorld(SpaceConfig{Gravity: cp.Vector{Y: 980}, Deterministic: true})
	require.NoError(t, err)
	assert.Equal(t, 1.0/60, w.Config().Timestep)
	assert.Equal(t, 8, w.Config().VelocityIterations)
}

func TestStepRejectsVariableTimestep(t *testing.T) {
	w := newTestWorld(t, nil)
	require.NoError(t, w.AddRigidBody(ball("b", cp.Vector{}, 5)))

	for _, dt := range []float64{1.0 / 30, 0, -1.0 / 60, math.NaN()} {
		_, err := w.Step(dt)
		assert.ErrorIs(t, err, ErrVariableTimestep)
	}
	assert.Equal(t, 0, w.Frame())
	assert.Equal(t, cp.Vector{}, bodyOf(t, w, "b").Position)

	loose := newTestWorld(t, func(c *SpaceConfig) { c.Deterministic = false })
	require.NoError(t, loose.AddRigidBody(ball("b", cp.Vector{}, 5)))
	_, err := loose.Step(1.0 / 30)
	require.NoError(t, err)
	assert.Equal(t, 1, loose.Frame())
}

func TestFreeFall(t *testing.T) {
	w := newTestWorld(t, nil)
	require.NoError(t, w.AddRigidBody(ball("b", cp.Vector{}, 5)))

	s := stepN(t, w, 60)
	b, ok := s.Body("b")
	require.True(t, ok)
	assert.Equal(t, 60, s.Frame)
	assert.InDelta(t, 1.0, s.Time, 1e-9)
	assert.InEpsilon(t, 490, b.Position.Y, 0.05)
	assert.InDelta(t, 0, b.Position.X, 1e-9)
}

func TestGravityOverrideAndDamping(t *testing.T) {
	w := newTestWorld(t, nil)
	up := cp.Vector{Y: -980}
	floating := ball("floating", cp.Vector{}, 5)
	floating.Gravity = &up
	damped := ball("damped", cp.Vector{X: 100}, 5)
	damped.LinearDamping = 0.5
	require.NoError(t, w.AddRigidBody(floating))
	require.NoError(t, w.AddRigidBody(damped))
	plain := ball("plain", cp.Vector{X: 200}, 5)
	require.NoError(t, w.AddRigidBody(plain))

	stepN(t, w, 30)
	assert.Less(t, bodyOf(t, w, "floating").Position.Y, -100.0)
	assert.Less(t, bodyOf(t, w, "damped").Velocity.Y, bodyOf(t, w, "plain").Velocity.Y)
}

func TestStaticBodiesNeverMove(t *testing.T) {
	w := newTestWorld(t, nil)
	require.NoError(t, w.AddRigidBody(box("ground", Static, cp.Vector{Y: 100}, 400, 20)))
	require.NoError(t, w.AddRigidBody(box("crate", Dynamic, cp.Vector{Y: 0}, 20, 20)))
	before := bodyOf(t, w, "ground")

	require.NoError(t, w.ApplyForce("ground", cp.Vector{X: 1e6}))
	require.NoError(t, w.ApplyImpulse("ground", cp.Vector{Y: -1e6}))
	require.NoError(t, w.SetVelocity("ground", cp.Vector{X: 50}, 1))

	for i := 0; i < 120; i++ {
		s := stepN(t, w, 1)
		g, ok := s.Body("ground")
		require.True(t, ok)
		require.Equal(t, before.Position, g.Position)
		require.Equal(t, before.Angle, g.Angle)
		require.Equal(t, cp.Vector{}, g.Velocity)
	}
	assert.Less(t, bodyOf(t, w, "crate").Position.Y, 90.0)
}

func TestKinematicBodyIgnoresForces(t *testing.T) {
	w := newTestWorld(t, nil)
	k := box("platform", Kinematic, cp.Vector{}, 100, 10)
	k.Velocity = cp.Vector{X: 60}
	require.NoError(t, w.AddRigidBody(k))
	require.NoError(t, w.ApplyImpulse("platform", cp.Vector{Y: 1e5}))

	stepN(t, w, 60)
	b := bodyOf(t, w, "platform")
	assert.InDelta(t, 60, b.Position.X, 1e-9)
	assert.InDelta(t, 0, b.Position.Y, 1e-9)
	assert.Equal(t, Kinematic, b.Type)
}

func TestAEmaticLandsOnKeyframes(t *testing.T) {
	w := newTestWorld(t, nil)
	c := ball("logo", cp.Vector{}, 10)
	c.Type = AEmatic
	c.Keyframes = []Keyframe{{Frame: 5, Position: cp.Vector{X: 100, Y: -20}, Angle: 1}}
	require.NoError(t, w.AddRigidBody(c))

	s := stepN(t, w, 4)
	b, _ := s.Body("logo")
	assert.Greater(t, b.Position.Y, 0.0, "simulated as dynamic between keys")

	s = stepN(t, w, 1)
	b, _ = s.Body("logo")
	assert.Equal(t, cp.Vector{X: 100, Y: -20}, b.Position)
	assert.Equal(t, 1.0, b.Angle)

	s = stepN(t, w, 1)
	b, _ = s.Body("logo")
	assert.Greater(t, b.Position.X, 100.0, "keeps the velocity that reached the key")
}

func buildScene(t *testing.T) *World {
	t.Helper()
	w := newTestWorld(t, func(c *SpaceConfig) { c.Seed = 42 })
	require.NoError(t, w.AddRigidBody(box("ground", Static, cp.Vector{Y: 300}, 800, 20)))
	for i := 0; i < 4; i++ {
		c := box(string(rune('a'+i)), Dynamic, cp.Vector{X: float64(i) * 7, Y: 200 - float64(i)*25}, 20, 20)
		c.Angle = 0.1 * float64(i)
		require.NoError(t, w.AddRigidBody(c))
	}
	require.NoError(t, w.AddRigidBody(ball("ball", cp.Vector{X: -60, Y: 100}, 12)))
	require.NoError(t, w.AddJoint(JointConfig{ID: "link", Kind: DistanceJoint, BodyA: "ball", BodyB: "a"}))

	wind := force.NewWind("wind", force.WindParams{Direction: cp.Vector{X: 1}, Strength: 200, Turbulence: 0.5})
	require.NoError(t, w.AddForceField(wind))
	require.NoError(t, w.AddCloth(softbody.ClothConfig{
		ID:            "flag",
		Width:         4,
		Height:        4,
		Spacing:       10,
		Origin:        cp.Vector{X: 100, Y: 0},
		Pinned:        []int{0, 3},
		CollideRigid:  true,
		SelfCollision: true,
	}))
	return w
}

func TestDeterministicReplay(t *testing.T) {
	a, b := buildScene(t), buildScene(t)
	for i := 0; i < 120; i++ {
		sa := stepN(t, a, 1)
		sb := stepN(t, b, 1)
		require.Equal(t, sa.Digest(), sb.Digest(), "frame %d", sa.Frame)
	}
}

func TestSnapshotRestoreMatchesSequentialRun(t *testing.T) {
	sequential := buildScene(t)
	want := stepN(t, sequential, 90).Digest()

	w := buildScene(t)
	stepN(t, w, 30)
	snap := w.Snapshot()
	assert.Equal(t, 30, snap.Frame())
	assert.Equal(t, want, stepN(t, w, 60).Digest())

	require.NoError(t, w.Restore(snap))
	assert.Equal(t, 30, w.Frame())
	assert.Equal(t, want, stepN(t, w, 60).Digest())

	fork := snap.Fork()
	assert.Equal(t, want, stepN(t, fork, 60).Digest())

	assert.Error(t, w.Restore(nil))
}

func TestExplosionReachesOnlyNearbyBodies(t *testing.T) {
	w := newTestWorld(t, noGravity)
	require.NoError(t, w.AddRigidBody(ball("near", cp.Vector{X: 100}, 5)))
	require.NoError(t, w.AddRigidBody(ball("far", cp.Vector{X: 300}, 5)))
	require.NoError(t, w.AddForceField(force.NewExplosion("boom", force.ExplosionParams{
		Strength:     1000,
		Radius:       200,
		TriggerFrame: 10,
	})))

	s := stepN(t, w, 9)
	b, _ := s.Body("near")
	assert.Equal(t, cp.Vector{}, b.Velocity)

	s = stepN(t, w, 1)
	b, _ = s.Body("near")
	assert.InDelta(t, 500, b.Velocity.X, 1e-6)
	for i := 0; i < 3; i++ {
		f, _ := s.Body("far")
		assert.Equal(t, cp.Vector{}, f.Velocity, "frame %d", s.Frame)
		s = stepN(t, w, 1)
	}
}

func TestExplosionWakesDormantBodies(t *testing.T) {
	w := newTestWorld(t, noGravity)
	require.NoError(t, w.AddRigidBody(ball("near", cp.Vector{X: 100}, 5)))
	require.NoError(t, w.AddRigidBody(ball("far", cp.Vector{Y: 300}, 5)))
	require.NoError(t, w.AddForceField(force.NewExplosion("boom", force.ExplosionParams{
		Strength:     1000,
		Radius:       200,
		TriggerFrame: 60,
	})))

	stepN(t, w, 59)
	require.True(t, bodyOf(t, w, "near").Sleeping())
	require.True(t, bodyOf(t, w, "far").Sleeping())

	s := stepN(t, w, 1)
	near, _ := s.Body("near")
	assert.Equal(t, Dynamic, near.Type)
	assert.InDelta(t, 500, near.Velocity.X, 1e-6)
	var woke []string
	for _, e := range s.EventsOf(EventBodyWoke) {
		woke = append(woke, e.Subject)
	}
	assert.Equal(t, []string{"near"}, woke)

	s = stepN(t, w, 30)
	near, _ = s.Body("near")
	far, _ := s.Body("far")
	assert.Greater(t, near.Position.X, 300.0)
	assert.True(t, far.Sleeping())
	assert.Equal(t, cp.Vector{Y: 300}, far.Position)
}

func TestSteadyFieldLetsBodiesSleep(t *testing.T) {
	w := newTestWorld(t, noGravity)
	require.NoError(t, w.AddRigidBody(box("ground", Static, cp.Vector{Y: 100}, 400, 20)))
	require.NoError(t, w.AddRigidBody(box("crate", Dynamic, cp.Vector{Y: 80.2}, 20, 20)))
	require.NoError(t, w.AddForceField(force.NewGravity("down", cp.Vector{Y: 980})))

	for i := 0; i < 180 && !bodyOf(t, w, "crate").Sleeping(); i++ {
		stepN(t, w, 1)
	}
	require.True(t, bodyOf(t, w, "crate").Sleeping())
	s := stepN(t, w, 30)
	assert.Empty(t, s.EventsOf(EventBodyWoke))
	assert.True(t, bodyOf(t, w, "crate").Sleeping())

	require.NoError(t, w.SetFieldEnabled("down", false))
	require.NoError(t, w.AddForceField(force.NewWind("gust", force.WindParams{
		Direction: cp.Vector{X: 1},
		Strength:  50,
	})))
	s = stepN(t, w, 1)
	require.Len(t, s.EventsOf(EventBodyWoke), 1)
	assert.Equal(t, "force field", s.EventsOf(EventBodyWoke)[0].Detail)
	assert.Equal(t, Dynamic, bodyOf(t, w, "crate").Type)
}

func TestScriptErrorIsReported(t *testing.T) {
	w := newTestWorld(t, noGravity)
	require.NoError(t, w.AddRigidBody(ball("b", cp.Vector{}, 5)))
	g := force.NewGravity("pull", cp.Vector{X: 100})
	g.StrengthExpr = `scale := frame < 3 ? 1 : 1 / (frame - frame)`
	require.NoError(t, w.AddForceField(g))

	s := stepN(t, w, 2)
	assert.Empty(t, s.EventsOf(EventScriptError))
	s = stepN(t, w, 1)
	assert.Len(t, s.EventsOf(EventScriptError), 1)
}

func TestSleepAndWake(t *testing.T) {
	w := newTestWorld(t, nil)
	require.NoError(t, w.AddRigidBody(box("ground", Static, cp.Vector{Y: 100}, 400, 20)))
	require.NoError(t, w.AddRigidBody(box("crate", Dynamic, cp.Vector{Y: 80.2}, 20, 20)))

	slept := false
	for i := 0; i < 180 && !slept; i++ {
		s := stepN(t, w, 1)
		slept = len(s.EventsOf(EventBodySlept)) > 0
	}
	require.True(t, slept)
	crate := bodyOf(t, w, "crate")
	assert.True(t, crate.Sleeping())
	assert.Equal(t, cp.Vector{}, crate.Velocity)

	rest := crate.Position
	stepN(t, w, 10)
	assert.Equal(t, rest, bodyOf(t, w, "crate").Position)

	require.NoError(t, w.ApplyImpulse("crate", cp.Vector{Y: -300}))
	assert.Equal(t, Dynamic, bodyOf(t, w, "crate").Type)
	stepN(t, w, 1)
	assert.Less(t, bodyOf(t, w, "crate").Velocity.Y, 0.0)
}

func TestDormantBodyWakesOnNewContact(t *testing.T) {
	w := newTestWorld(t, nil)
	require.NoError(t, w.AddRigidBody(box("ground", Static, cp.Vector{Y: 100}, 400, 20)))
	require.NoError(t, w.AddRigidBody(box("crate", Dynamic, cp.Vector{Y: 80.2}, 20, 20)))
	for i := 0; i < 180 && !bodyOf(t, w, "crate").Sleeping(); i++ {
		stepN(t, w, 1)
	}
	require.True(t, bodyOf(t, w, "crate").Sleeping())

	require.NoError(t, w.AddRigidBody(ball("pebble", cp.Vector{Y: 40}, 5)))
	woke := false
	for i := 0; i < 60 && !woke; i++ {
		for _, e := range stepN(t, w, 1).EventsOf(EventBodyWoke) {
			woke = woke || e.Subject == "crate"
		}
	}
	assert.True(t, woke)
}

func TestNumericalInstabilityRestoresBody(t *testing.T) {
	w := newTestWorld(t, nil)
	require.NoError(t, w.AddRigidBody(ball("b", cp.Vector{X: 10, Y: 20}, 5)))
	stepN(t, w, 1)
	valid := bodyOf(t, w, "b")

	require.NoError(t, w.ApplyForce("b", cp.Vector{X: math.Inf(1)}))
	s := stepN(t, w, 1)
	events := s.EventsOf(EventNumericalInstability)
	require.Len(t, events, 1)
	assert.Equal(t, "b", events[0].Subject)

	b, ok := s.Body("b")
	require.True(t, ok)
	assert.Equal(t, valid.Position, b.Position)
	assert.Equal(t, Dormant, b.Type)
	assert.True(t, common.VecFinite(b.Velocity))

	s = stepN(t, w, 1)
	assert.Empty(t, s.EventsOf(EventNumericalInstability))
}

func TestRegistrationErrors(t *testing.T) {
	w := newTestWorld(t, nil)
	require.NoError(t, w.AddRigidBody(ball("a", cp.Vector{}, 5)))
	require.NoError(t, w.AddRigidBody(ball("b", cp.Vector{X: 10}, 5)))

	massless := ball("ghost", cp.Vector{}, 5)
	massless.Mass = 0
	massless.Material.Density = 0
	badShape := ball("flat", cp.Vector{}, 5)
	badShape.Shape = shape.NewBox(0, 10)
	keyedDynamic := ball("keyed", cp.Vector{}, 5)
	keyedDynamic.Keyframes = []Keyframe{{Frame: 1}}

	cases := []struct {
		name  string
		add   func() error
		field string
		is    error
	}{
		{"massless_dynamic", func() error { return w.AddRigidBody(massless) }, "body.mass", nil},
		{"bad_shape", func() error { return w.AddRigidBody(badShape) }, "shape.width", nil},
		{"keyframes_on_dynamic", func() error { return w.AddRigidBody(keyedDynamic) }, "body.keyframes", nil},
		{"duplicate_body", func() error { return w.AddRigidBody(ball("a", cp.Vector{}, 5)) }, "", ErrDuplicateID},
		{"unknown_joint_body", func() error {
			return w.AddJoint(JointConfig{ID: "j", Kind: PivotJoint, BodyA: "a", BodyB: "nobody"})
		}, "joint.body_b", nil},
		{"coincident_distance", func() error {
			return w.AddJoint(JointConfig{ID: "j", Kind: DistanceJoint, BodyA: "a", LocalAnchorB: cp.Vector{}})
		}, "joint.distance.length", nil},
		{"spring_without_stiffness", func() error {
			return w.AddJoint(JointConfig{ID: "j", Kind: SpringJoint, BodyA: "a", BodyB: "b", Spring: &SpringParams{}})
		}, "joint.spring.stiffness", nil},
		{"field_id_taken", func() error { return w.AddForceField(force.NewGravity("a", cp.Vector{Y: 1})) }, "", ErrDuplicateID},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.add()
			require.Error(t, err)
			if c.is != nil {
				assert.ErrorIs(t, err, c.is)
				return
			}
			var ve *common.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, c.field, ve.Field)
		})
	}
	assert.Equal(t, []string{"a", "b"}, w.BodyIDs())
	assert.Empty(t, w.JointIDs())
}

func TestKillAndRemove(t *testing.T) {
	w := newTestWorld(t, nil)
	require.NoError(t, w.AddRigidBody(ball("a", cp.Vector{}, 5)))
	require.NoError(t, w.AddRigidBody(ball("b", cp.Vector{X: 20}, 5)))
	require.NoError(t, w.AddJoint(JointConfig{ID: "rod", Kind: DistanceJoint, BodyA: "a", BodyB: "b"}))

	require.NoError(t, w.Kill("a"))
	_, ok := w.Body("a")
	assert.False(t, ok)
	assert.Equal(t, []string{"b"}, w.BodyIDs())
	assert.ErrorIs(t, w.Kill("a"), ErrNotFound)
	assert.ErrorIs(t, w.ApplyForce("a", cp.Vector{X: 1}), ErrNotFound)

	s := stepN(t, w, 1)
	assert.Len(t, s.Bodies, 1)
	assert.Empty(t, w.JointIDs())

	require.NoError(t, w.Remove("b"))
	assert.ErrorIs(t, w.Remove("b"), ErrNotFound)
	assert.Empty(t, w.BodyIDs())
}

func TestSetShapeRecomputesMass(t *testing.T) {
	w := newTestWorld(t, nil)
	c := box("crate", Dynamic, cp.Vector{}, 10, 10)
	c.Mass = 0
	c.Material.Density = 1
	require.NoError(t, w.AddRigidBody(c))
	assert.InDelta(t, 100, bodyOf(t, w, "crate").Mass, 1e-9)

	require.NoError(t, w.SetShape("crate", shape.NewBox(20, 20)))
	assert.InDelta(t, 400, bodyOf(t, w, "crate").Mass, 1e-9)

	var ve *common.ValidationError
	assert.ErrorAs(t, w.SetShape("crate", shape.NewCircle(-1)), &ve)
}

func TestSoftBodyTearEvent(t *testing.T) {
	w := newTestWorld(t, noGravity)
	require.NoError(t, w.AddSoftBody(softbody.Config{
		ID: "strand",
		Particles: []softbody.Particle{
			{Position: cp.Vector{}, Mass: 1, Pinned: true, Radius: 1},
			{Position: cp.Vector{Y: 10}, Mass: 1, Radius: 1},
		},
		Constraints: []softbody.Constraint{{A: 0, B: 1, BreakThreshold: 0.1}},
	}))
	require.NoError(t, w.ApplyImpulse("strand", cp.Vector{Y: 6000}))

	s := stepN(t, w, 1)
	torn := s.EventsOf(EventConstraintTorn)
	require.Len(t, torn, 1)
	assert.Equal(t, "strand", torn[0].Subject)
	assert.Equal(t, "0-1", torn[0].Detail)

	sb, ok := s.SoftBody("strand")
	require.True(t, ok)
	assert.Len(t, sb.Torn, 1)
	assert.Equal(t, 1, sb.Torn[0].Frame)

	// Later states only carry their own frame's tears.
	s = stepN(t, w, 1)
	assert.Empty(t, s.EventsOf(EventConstraintTorn))
	later, ok := s.SoftBody("strand")
	require.True(t, ok)
	assert.Empty(t, later.Torn)
	assert.Len(t, sb.Torn, 1, "earlier state is unchanged")
}

func TestClothHangsOnRigidObstacle(t *testing.T) {
	w := newTestWorld(t, nil)
	require.NoError(t, w.AddRigidBody(box("table", Static, cp.Vector{X: 20, Y: 60}, 200, 20)))
	require.NoError(t, w.AddCloth(softbody.ClothConfig{
		ID:           "sheet",
		Width:        3,
		Height:       3,
		Spacing:      20,
		CollideRigid: true,
	}))
	s := stepN(t, w, 120)
	sb, ok := s.SoftBody("sheet")
	require.True(t, ok)
	for i, p := range sb.Particles {
		assert.Less(t, p.Y, 50.0+0.01, "particle %d stays on the table", i)
	}
}

func TestRagdollStaysConnected(t *testing.T) {
	tests := []struct {
		name      string
		ground    bool
		frames    int
		tolerance float64
	}{
		// Free fall only exercises the joints.
		{name: "free fall", frames: 300, tolerance: 0.05},
		{name: "landing", ground: true, frames: 120, tolerance: 2.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWorld(t, nil)
			if tt.ground {
				require.NoError(t, w.AddRigidBody(box("ground", Static, cp.Vector{Y: 110}, 1000, 20)))
			}
			require.NoError(t, w.AddRagdoll(ragdoll.Config{ID: "hero", Preset: "adult"}))

			joints := w.JointIDs()
			require.Len(t, joints, 10)
			for frame := 1; frame <= tt.frames; frame++ {
				stepN(t, w, 1)
				for _, id := range joints {
					sep, ok := w.JointAnchorSeparation(id)
					require.True(t, ok)
					require.Less(t, sep, tt.tolerance, "joint %s at frame %d", id, frame)
				}
			}

			r, ok := w.Ragdoll("hero")
			require.True(t, ok)
			assert.Len(t, r.Bones, 11)
			head, ok := r.Bone("head")
			require.True(t, ok)
			assert.Equal(t, RagdollBodyID("hero", "head"), head.Body)
			if tt.ground {
				assert.Less(t, head.Position.Y, 100.0)
			} else {
				// Half of g·t² after five seconds, give or take the pose.
				assert.Greater(t, head.Position.Y, 10000.0)
			}
		})
	}
}

func TestRemoveRagdoll(t *testing.T) {
	w := newTestWorld(t, nil)
	require.NoError(t, w.AddRigidBody(box("ground", Static, cp.Vector{Y: 110}, 1000, 20)))
	require.NoError(t, w.AddRagdoll(ragdoll.Config{ID: "hero", Preset: "adult"}))
	stepN(t, w, 10)

	require.NoError(t, w.Remove("hero"))
	assert.Equal(t, []string{"ground"}, w.BodyIDs())
	assert.Empty(t, w.JointIDs())
	_, ok := w.Ragdoll("hero")
	assert.False(t, ok)
}

func TestRagdollRejectsTakenIDs(t *testing.T) {
	w := newTestWorld(t, nil)
	require.NoError(t, w.AddRigidBody(ball(RagdollBodyID("hero", "head"), cp.Vector{}, 5)))
	err := w.AddRagdoll(ragdoll.Config{ID: "hero"})
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Len(t, w.BodyIDs(), 1)
	assert.Empty(t, w.JointIDs())
}
