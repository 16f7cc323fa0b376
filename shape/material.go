package shape

import (
	"math"

	"github.com/milk9111/motionsim/common"
)

// Material describes how a surface responds to contact.
type Material struct {
	Restitution float64 `json:"restitution" yaml:"restitution"`
	Friction    float64 `json:"friction" yaml:"friction"`
	Density     float64 `json:"density,omitempty" yaml:"density"`
}

func DefaultMaterial() Material {
	return Material{Restitution: 0.2, Friction: 0.4, Density: 1}
}

func (m Material) Validate() error {
	if m.Restitution < 0 || m.Restitution > 1 || !common.IsFinite(m.Restitution) {
		return common.Invalid("material.restitution", m.Restitution, "must be within [0, 1]")
	}
	if m.Friction < 0 || !common.IsFinite(m.Friction) {
		return common.Invalid("material.friction", m.Friction, "must be non-negative")
	}
	if m.Density < 0 || !common.IsFinite(m.Density) {
		return common.Invalid("material.density", m.Density, "must be non-negative")
	}
	return nil
}

// MixFriction combines two friction coefficients (geometric mean).
func MixFriction(a, b float64) float64 {
	return math.Sqrt(a * b)
}

// MixRestitution combines two restitution coefficients (the bouncier wins).
func MixRestitution(a, b float64) float64 {
	return math.Max(a, b)
}
