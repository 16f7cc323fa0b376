package keyframe

import (
	"context"
	"fmt"
	"math"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/motionsim/common"
	"github.com/milk9111/motionsim/physics"
)

type sample struct {
	frame int
	value []float64
}

type track struct {
	layer    string
	property Property
	samples  []sample
}

// pose is the transform of one exported layer at one frame.
type pose struct {
	layer string
	pos   cp.Vector
	angle float64
	scale cp.Vector
}

// posesOf resolves target in s. A body or soft body is one layer; a
// ragdoll is one layer per bone, named like the bone's body.
func posesOf(s *physics.State, target string) []pose {
	if b, ok := s.Body(target); ok {
		return []pose{{layer: target, pos: b.Position, angle: b.Angle, scale: cp.Vector{X: 1, Y: 1}}}
	}
	if sb, ok := s.SoftBody(target); ok {
		return []pose{{layer: target, pos: sb.Centroid, angle: sb.Angle, scale: sb.Scale}}
	}
	if r, ok := s.Ragdoll(target); ok {
		out := make([]pose, 0, len(r.Bones))
		for _, bone := range r.Bones {
			out = append(out, pose{layer: bone.Body, pos: bone.Position, angle: bone.Angle, scale: cp.Vector{X: 1, Y: 1}})
		}
		return out
	}
	return nil
}

func valueOf(p pose, prop Property) []float64 {
	switch prop {
	case Position:
		return []float64{p.pos.X, p.pos.Y}
	case Rotation:
		return []float64{common.Degrees(p.angle)}
	default:
		return []float64{p.scale.X * 100, p.scale.Y * 100}
	}
}

// Export samples target over the frame range of opts and returns one
// track per (layer, property), in the order layers first appear. Frames
// where the target is absent (removed, killed) are skipped.
func Export(ctx context.Context, src Source, target string, opts Options) ([]Exported, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("keyframe: %w", err)
	}
	opts = opts.withDefaults()

	var tracks []*track
	index := make(map[string]*track)
	for _, frame := range opts.Frames() {
		s, err := src.StateAt(ctx, frame)
		if err != nil {
			return nil, fmt.Errorf("keyframe: sample frame %d: %w", frame, err)
		}
		for _, p := range posesOf(s, target) {
			for _, prop := range opts.Properties {
				key := p.layer + "\x00" + string(prop)
				t, ok := index[key]
				if !ok {
					t = &track{layer: p.layer, property: prop}
					index[key] = t
					tracks = append(tracks, t)
				}
				t.samples = append(t.samples, sample{frame: frame, value: valueOf(p, prop)})
			}
		}
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: %q in frames %d-%d", ErrUnknownTarget, target, opts.Start, opts.End)
	}

	out := make([]Exported, 0, len(tracks))
	for _, t := range tracks {
		samples := t.samples
		if opts.Simplify {
			samples = simplify(samples, opts.Tolerance)
		}
		out = append(out, Exported{LayerID: t.layer, Property: t.property, Keys: keysFor(samples, opts.Interpolation)})
	}
	return out, nil
}

// simplify drops samples that lie within tolerance of the straight line
// between the samples kept around them (Ramer-Douglas-Peucker). The first
// and last samples are always kept.
func simplify(s []sample, tolerance float64) []sample {
	if len(s) < 3 {
		return s
	}
	keep := make([]bool, len(s))
	keep[0], keep[len(s)-1] = true, true
	rdp(s, 0, len(s)-1, tolerance, keep)

	out := make([]sample, 0, len(s))
	for i, k := range keep {
		if k {
			out = append(out, s[i])
		}
	}
	return out
}

func rdp(s []sample, lo, hi int, tolerance float64, keep []bool) {
	if hi-lo < 2 {
		return
	}
	worst, at := -1.0, -1
	for i := lo + 1; i < hi; i++ {
		if d := deviation(s[lo], s[hi], s[i]); d > worst {
			worst, at = d, i
		}
	}
	if worst <= tolerance {
		return
	}
	keep[at] = true
	rdp(s, lo, at, tolerance, keep)
	rdp(s, at, hi, tolerance, keep)
}

// deviation is the distance, in value space, between p and the linear
// interpolation of a and b at p's frame.
func deviation(a, b, p sample) float64 {
	t := float64(p.frame-a.frame) / float64(b.frame-a.frame)
	sum := 0.0
	for k := range p.value {
		d := p.value[k] - common.Lerp(a.value[k], b.value[k], t)
		sum += d * d
	}
	return math.Sqrt(sum)
}

// keysFor turns samples into keys. Bezier handles sit a third of the way
// to the neighbouring key along the slope through both neighbours.
func keysFor(s []sample, interp Interpolation) []Key {
	out := make([]Key, len(s))
	for i, smp := range s {
		k := Key{Frame: smp.frame, Value: append([]float64(nil), smp.value...), Interpolation: interp}
		if interp == Bezier && len(s) > 1 {
			slope := slopeAt(s, i)
			if i > 0 {
				dt := float64(smp.frame-s[i-1].frame) / 3
				k.In = &Handle{Frame: -dt, Value: scaled(slope, -dt)}
			}
			if i < len(s)-1 {
				dt := float64(s[i+1].frame-smp.frame) / 3
				k.Out = &Handle{Frame: dt, Value: scaled(slope, dt)}
			}
		}
		out[i] = k
	}
	return out
}

func slopeAt(s []sample, i int) []float64 {
	lo, hi := max(i-1, 0), min(i+1, len(s)-1)
	span := float64(s[hi].frame - s[lo].frame)
	out := make([]float64, len(s[i].value))
	for k := range out {
		out[k] = (s[hi].value[k] - s[lo].value[k]) / span
	}
	return out
}

func scaled(v []float64, f float64) []float64 {
	out := make([]float64, len(v))
	for k := range v {
		out[k] = v[k] * f
	}
	return out
}
