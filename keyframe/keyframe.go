// Package keyframe samples simulation states over a frame range and turns
// them into keyframe tracks for an external animation system.
package keyframe

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/milk9111/motionsim/common"
	"github.com/milk9111/motionsim/physics"
)

// ErrUnknownTarget is returned when no sampled state contains the target.
var ErrUnknownTarget = errors.New("keyframe: target not found")

type Property string

const (
	Position Property = "position"
	Rotation Property = "rotation"
	Scale    Property = "scale"
)

// AllProperties is used when Options.Properties is empty.
var AllProperties = []Property{Position, Rotation, Scale}

type Interpolation string

const (
	Linear Interpolation = "linear"
	Bezier Interpolation = "bezier"
)

// Handle is a bezier tangent relative to its key, in frames and value
// units.
type Handle struct {
	Frame float64   `json:"frame"`
	Value []float64 `json:"value"`
}

// Key is one keyframe. Position is in pixels, rotation in degrees and
// scale in percent.
type Key struct {
	Frame         int           `json:"frame"`
	Value         []float64     `json:"value"`
	Interpolation Interpolation `json:"interpolation"`
	In            *Handle       `json:"in,omitempty"`
	Out           *Handle       `json:"out,omitempty"`
}

// Exported is the track of one property of one layer.
type Exported struct {
	LayerID  string   `json:"layer_id"`
	Property Property `json:"property"`
	Keys     []Key    `json:"keys"`
}

// Source yields the simulation state at a frame.
type Source interface {
	StateAt(ctx context.Context, frame int) (*physics.State, error)
}

// SliceSource serves states recorded from a run, looked up by frame.
type SliceSource []*physics.State

func (s SliceSource) StateAt(ctx context.Context, frame int) (*physics.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i, ok := slices.BinarySearchFunc(s, frame, func(st *physics.State, f int) int { return st.Frame - f })
	if !ok {
		return nil, fmt.Errorf("keyframe: frame %d not recorded", frame)
	}
	return s[i], nil
}

// Record steps w n times and collects the states.
func Record(w *physics.World, n int) (SliceSource, error) {
	out := make(SliceSource, 0, n)
	for i := 0; i < n; i++ {
		s, err := w.Advance()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

type Options struct {
	Start         int           `json:"start" yaml:"start"`
	End           int           `json:"end" yaml:"end"`
	Step          int           `json:"step" yaml:"step"`
	Properties    []Property    `json:"properties" yaml:"properties"`
	Simplify      bool          `json:"simplify" yaml:"simplify"`
	Tolerance     float64       `json:"tolerance" yaml:"tolerance"`
	Interpolation Interpolation `json:"interpolation" yaml:"interpolation"`
}

func (o Options) Validate() error {
	if o.Start < 0 {
		return common.Invalid("export.start", o.Start, "must be >= 0")
	}
	if o.End < o.Start {
		return common.Invalid("export.end", o.End, "must be >= start")
	}
	if o.Step < 0 {
		return common.Invalid("export.step", o.Step, "must be >= 0")
	}
	if o.Tolerance < 0 || !common.IsFinite(o.Tolerance) {
		return common.Invalid("export.tolerance", o.Tolerance, "must be >= 0")
	}
	switch o.Interpolation {
	case "", Linear, Bezier:
	default:
		return common.Invalid("export.interpolation", o.Interpolation, "must be linear or bezier")
	}
	for _, p := range o.Properties {
		switch p {
		case Position, Rotation, Scale:
		default:
			return common.Invalid("export.properties", p, "unknown property")
		}
	}
	return nil
}

func (o Options) withDefaults() Options {
	if o.Step == 0 {
		o.Step = 1
	}
	if o.Interpolation == "" {
		o.Interpolation = Linear
	}
	if len(o.Properties) == 0 {
		o.Properties = AllProperties
	}
	return o
}

// Frames lists the sampled frames: Start, Start+Step, ... and always End.
func (o Options) Frames() []int {
	o = o.withDefaults()
	var out []int
	for f := o.Start; f < o.End; f += o.Step {
		out = append(out, f)
	}
	return append(out, o.End)
}
