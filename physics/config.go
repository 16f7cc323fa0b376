package physics

import (
	"github.com/jakecoffman/cp"
	"github.com/milk9111/motionsim/common"
)

// SpaceConfig holds the global tunables of a world. Lengths are in pixels,
// time in seconds, y grows downward.
type SpaceConfig struct {
	Timestep               float64   `json:"timestep" yaml:"timestep"`
	VelocityIterations     int       `json:"velocity_iterations" yaml:"velocity_iterations"`
	PositionIterations     int       `json:"position_iterations" yaml:"position_iterations"`
	Gravity                cp.Vector `json:"gravity" yaml:"gravity"`
	SleepEnabled           bool      `json:"sleep_enabled" yaml:"sleep_enabled"`
	SleepVelocityThreshold float64   `json:"sleep_velocity_threshold" yaml:"sleep_velocity_threshold"`
	SleepAngularThreshold  float64   `json:"sleep_angular_threshold" yaml:"sleep_angular_threshold"`
	SleepTimeThreshold     float64   `json:"sleep_time_threshold" yaml:"sleep_time_threshold"`
	CollisionSlop          float64   `json:"collision_slop" yaml:"collision_slop"`
	CollisionBias          float64   `json:"collision_bias" yaml:"collision_bias"`
	Deterministic          bool      `json:"deterministic" yaml:"deterministic"`
	Seed                   uint64    `json:"seed" yaml:"seed"`

	CellSize             float64 `json:"cell_size" yaml:"cell_size"`
	RestitutionThreshold float64 `json:"restitution_threshold" yaml:"restitution_threshold"`
	MaxSubsteps          int     `json:"max_substeps" yaml:"max_substeps"`
	MaxCorrection        float64 `json:"max_correction" yaml:"max_correction"`
	WarmStarting         bool    `json:"warm_starting" yaml:"warm_starting"`
}

func DefaultSpaceConfig() SpaceConfig {
	return SpaceConfig{
		Timestep:               1.0 / 60,
		VelocityIterations:     8,
		PositionIterations:     3,
		Gravity:                cp.Vector{X: 0, Y: 980},
		SleepEnabled:           true,
		SleepVelocityThreshold: 5,
		SleepAngularThreshold:  0.1,
		SleepTimeThreshold:     0.5,
		CollisionSlop:          0.5,
		CollisionBias:          0.2,
		Deterministic:          true,
		RestitutionThreshold:   30,
		MaxSubsteps:            16,
		MaxCorrection:          20,
		WarmStarting:           true,
	}
}

// WithDefaults fills zero numeric fields from DefaultSpaceConfig. Booleans
// and Gravity are taken as given.
func (c SpaceConfig) WithDefaults() SpaceConfig {
	d := DefaultSpaceConfig()
	if c.Timestep == 0 {
		c.Timestep = d.Timestep
	}
	if c.VelocityIterations == 0 {
		c.VelocityIterations = d.VelocityIterations
	}
	if c.PositionIterations == 0 {
		c.PositionIterations = d.PositionIterations
	}
	if c.SleepVelocityThreshold == 0 {
		c.SleepVelocityThreshold = d.SleepVelocityThreshold
	}
	if c.SleepAngularThreshold == 0 {
		c.SleepAngularThreshold = d.SleepAngularThreshold
	}
	if c.SleepTimeThreshold == 0 {
		c.SleepTimeThreshold = d.SleepTimeThreshold
	}
	if c.CollisionSlop == 0 {
		c.CollisionSlop = d.CollisionSlop
	}
	if c.CollisionBias == 0 {
		c.CollisionBias = d.CollisionBias
	}
	if c.RestitutionThreshold == 0 {
		c.RestitutionThreshold = d.RestitutionThreshold
	}
	if c.MaxSubsteps == 0 {
		c.MaxSubsteps = d.MaxSubsteps
	}
	if c.MaxCorrection == 0 {
		c.MaxCorrection = d.MaxCorrection
	}
	return c
}

func (c SpaceConfig) Validate() error {
	switch {
	case !(c.Timestep > 0) || !common.IsFinite(c.Timestep):
		return common.Invalid("space.timestep", c.Timestep, "must be > 0")
	case c.VelocityIterations < 1:
		return common.Invalid("space.velocity_iterations", c.VelocityIterations, "must be >= 1")
	case c.PositionIterations < 0:
		return common.Invalid("space.position_iterations", c.PositionIterations, "must be >= 0")
	case !common.VecFinite(c.Gravity):
		return common.Invalid("space.gravity", c.Gravity, "must be finite")
	case c.CollisionSlop < 0:
		return common.Invalid("space.collision_slop", c.CollisionSlop, "must be >= 0")
	case c.CollisionBias < 0 || c.CollisionBias > 1:
		return common.Invalid("space.collision_bias", c.CollisionBias, "must be in [0, 1]")
	case c.SleepTimeThreshold < 0:
		return common.Invalid("space.sleep_time_threshold", c.SleepTimeThreshold, "must be >= 0")
	case c.CellSize < 0:
		return common.Invalid("space.cell_size", c.CellSize, "must be >= 0")
	case c.MaxSubsteps < 1:
		return common.Invalid("space.max_substeps", c.MaxSubsteps, "must be >= 1")
	}
	return nil
}
