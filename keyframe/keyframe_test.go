package keyframe

import (
	"context"
	"math"
	"testing"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/motionsim/common"
	"github.com/milk9111/motionsim/physics"
	"github.com/milk9111/motionsim/ragdoll"
	"github.com/milk9111/motionsim/shape"
	"github.com/milk9111/motionsim/softbody"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordScene(t *testing.T, frames int) SliceSource {
	t.Helper()
	w, err := physics.NewWorld(physics.DefaultSpaceConfig())
	require.NoError(t, err)
	require.NoError(t, w.AddRigidBody(physics.RigidBodyConfig{
		ID:              "slider",
		Type:            physics.Kinematic,
		Position:        cp.Vector{Y: -1000},
		Velocity:        cp.Vector{X: 60},
		AngularVelocity: math.Pi,
		Shape:           shape.NewBox(10, 10),
		Material:        shape.DefaultMaterial(),
	}))
	require.NoError(t, w.AddRigidBody(physics.RigidBodyConfig{
		ID:          "drop",
		Type:        physics.Dynamic,
		Mass:        1,
		Position:    cp.Vector{X: 500},
		Shape:       shape.NewCircle(5),
		Material:    shape.DefaultMaterial(),
		CannotSleep: true,
	}))
	require.NoError(t, w.AddRagdoll(ragdoll.Config{ID: "doll", Position: cp.Vector{X: -500}}))
	require.NoError(t, w.AddCloth(softbody.ClothConfig{ID: "flag", Width: 3, Height: 3, Spacing: 10, Origin: cp.Vector{X: 1000}, Pinned: []int{0, 2}}))

	src, err := Record(w, frames)
	require.NoError(t, err)
	require.Len(t, src, frames)
	return src
}

func find(t *testing.T, tracks []Exported, layer string, prop Property) Exported {
	t.Helper()
	for _, tr := range tracks {
		if tr.LayerID == layer && tr.Property == prop {
			return tr
		}
	}
	require.Failf(t, "missing track", "%s %s", layer, prop)
	return Exported{}
}

// valueAt evaluates the keys as a polyline.
func valueAt(keys []Key, frame int) []float64 {
	for i := 1; i < len(keys); i++ {
		a, b := keys[i-1], keys[i]
		if frame > b.Frame {
			continue
		}
		t := float64(frame-a.Frame) / float64(b.Frame-a.Frame)
		out := make([]float64, len(a.Value))
		for k := range out {
			out[k] = common.Lerp(a.Value[k], b.Value[k], t)
		}
		return out
	}
	return keys[len(keys)-1].Value
}

func TestExportSamplesEveryFrame(t *testing.T) {
	src := recordScene(t, 60)
	tracks, err := Export(context.Background(), src, "drop", Options{Start: 1, End: 60, Properties: []Property{Position}})
	require.NoError(t, err)
	require.Len(t, tracks, 1)

	pos := tracks[0]
	assert.Equal(t, "drop", pos.LayerID)
	assert.Equal(t, Position, pos.Property)
	require.Len(t, pos.Keys, 60)
	for i, k := range pos.Keys {
		b, _ := src[i].Body("drop")
		assert.Equal(t, i+1, k.Frame)
		assert.Equal(t, []float64{b.Position.X, b.Position.Y}, k.Value)
		assert.Equal(t, Linear, k.Interpolation)
		assert.Nil(t, k.In)
		assert.Nil(t, k.Out)
	}
}

func TestExportUnits(t *testing.T) {
	src := recordScene(t, 60)
	tracks, err := Export(context.Background(), src, "slider", Options{Start: 1, End: 60})
	require.NoError(t, err)
	require.Len(t, tracks, 3)

	rot := find(t, tracks, "slider", Rotation)
	assert.InDelta(t, 180, rot.Keys[len(rot.Keys)-1].Value[0], 1e-6)
	scale := find(t, tracks, "slider", Scale)
	for _, k := range scale.Keys {
		assert.Equal(t, []float64{100, 100}, k.Value)
	}
	pos := find(t, tracks, "slider", Position)
	last := pos.Keys[len(pos.Keys)-1]
	assert.InDelta(t, 60, last.Value[0], 1e-9)
	assert.InDelta(t, -1000, last.Value[1], 1e-9)
}

func TestSimplify(t *testing.T) {
	src := recordScene(t, 60)

	t.Run("linear_motion_collapses", func(t *testing.T) {
		tracks, err := Export(context.Background(), src, "slider", Options{
			Start: 1, End: 60, Properties: []Property{Position, Rotation}, Simplify: true, Tolerance: 0.01,
		})
		require.NoError(t, err)
		for _, tr := range tracks {
			require.Len(t, tr.Keys, 2, tr.Property)
			assert.Equal(t, 1, tr.Keys[0].Frame)
			assert.Equal(t, 60, tr.Keys[1].Frame)
		}
	})

	t.Run("curve_within_tolerance", func(t *testing.T) {
		const tolerance = 0.5
		full, err := Export(context.Background(), src, "drop", Options{Start: 1, End: 60, Properties: []Property{Position}})
		require.NoError(t, err)
		reduced, err := Export(context.Background(), src, "drop", Options{
			Start: 1, End: 60, Properties: []Property{Position}, Simplify: true, Tolerance: tolerance,
		})
		require.NoError(t, err)

		keys := reduced[0].Keys
		assert.Greater(t, len(keys), 2)
		assert.Less(t, len(keys), 60)
		assert.Equal(t, full[0].Keys[0], keys[0])
		assert.Equal(t, full[0].Keys[59], keys[len(keys)-1])
		for _, k := range full[0].Keys {
			v := valueAt(keys, k.Frame)
			assert.LessOrEqual(t, math.Hypot(v[0]-k.Value[0], v[1]-k.Value[1]), tolerance, "frame %d", k.Frame)
		}
	})

	t.Run("short_tracks_untouched", func(t *testing.T) {
		s := []sample{{frame: 1, value: []float64{0}}, {frame: 2, value: []float64{5}}}
		assert.Equal(t, s, simplify(s, 100))
	})
}

func TestBezierHandles(t *testing.T) {
	src := recordScene(t, 31)
	tracks, err := Export(context.Background(), src, "slider", Options{
		Start: 1, End: 31, Step: 10, Properties: []Property{Rotation}, Interpolation: Bezier,
	})
	require.NoError(t, err)
	keys := tracks[0].Keys
	require.Len(t, keys, 4)
	assert.Equal(t, []int{1, 11, 21, 31}, []int{keys[0].Frame, keys[1].Frame, keys[2].Frame, keys[3].Frame})

	assert.Nil(t, keys[0].In)
	assert.Nil(t, keys[3].Out)
	mid := keys[1]
	assert.Equal(t, Bezier, mid.Interpolation)
	require.NotNil(t, mid.In)
	require.NotNil(t, mid.Out)
	assert.InDelta(t, -10.0/3, mid.In.Frame, 1e-12)
	assert.InDelta(t, 10.0/3, mid.Out.Frame, 1e-12)
	// 180 degrees per second is 3 degrees per frame.
	assert.InDelta(t, 10, mid.Out.Value[0], 1e-6)
	assert.InDelta(t, -10, mid.In.Value[0], 1e-6)
}

func TestExportRagdollAndSoftBody(t *testing.T) {
	src := recordScene(t, 10)

	tracks, err := Export(context.Background(), src, "doll", Options{Start: 1, End: 10, Properties: []Property{Position, Rotation}})
	require.NoError(t, err)
	assert.Len(t, tracks, 22)
	head := find(t, tracks, physics.RagdollBodyID("doll", "head"), Position)
	assert.Len(t, head.Keys, 10)

	tracks, err = Export(context.Background(), src, "flag", Options{Start: 1, End: 1, Properties: []Property{Scale}})
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.InDelta(t, 100, tracks[0].Keys[0].Value[0], 5)
}

func TestExportErrors(t *testing.T) {
	src := recordScene(t, 5)

	_, err := Export(context.Background(), src, "nobody", Options{Start: 1, End: 5})
	assert.ErrorIs(t, err, ErrUnknownTarget)

	_, err = Export(context.Background(), src, "drop", Options{Start: 0, End: 5})
	assert.Error(t, err, "frame 0 was never recorded")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Export(ctx, src, "drop", Options{Start: 1, End: 5})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptionsValidate(t *testing.T) {
	cases := []struct {
		name  string
		opts  Options
		field string
	}{
		{"negative_start", Options{Start: -1}, "export.start"},
		{"end_before_start", Options{Start: 5, End: 4}, "export.end"},
		{"negative_step", Options{End: 4, Step: -1}, "export.step"},
		{"negative_tolerance", Options{End: 4, Tolerance: -1}, "export.tolerance"},
		{"unknown_interpolation", Options{End: 4, Interpolation: "hold"}, "export.interpolation"},
		{"unknown_property", Options{End: 4, Properties: []Property{"opacity"}}, "export.properties"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var ve *common.ValidationError
			require.ErrorAs(t, c.opts.Validate(), &ve)
			assert.Equal(t, c.field, ve.Field)
		})
	}
	assert.NoError(t, Options{End: 4}.Validate())
}

func TestFrames(t *testing.T) {
	assert.Equal(t, []int{0, 4, 8, 10}, Options{End: 10, Step: 4}.Frames())
	assert.Equal(t, []int{5}, Options{Start: 5, End: 5}.Frames())
	assert.Equal(t, []int{1, 2, 3}, Options{Start: 1, End: 3}.Frames())
}
