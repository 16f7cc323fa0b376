package softbody

import (
	"math"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/motionsim/collision"
	"github.com/milk9111/motionsim/common"
	"github.com/milk9111/motionsim/shape"
)

// ClothConfig describes a rectangular cloth of Width x Height particles,
// Spacing apart, with the top-left particle at Origin. Particle (row, col)
// has index row*Width+col. TearThreshold is the stretch beyond rest length,
// in world units, that tears a constraint; zero disables tearing.
type ClothConfig struct {
	ID            string             `json:"id" yaml:"id"`
	Width         int                `json:"width" yaml:"width"`
	Height        int                `json:"height" yaml:"height"`
	Spacing       float64            `json:"spacing" yaml:"spacing"`
	Origin        cp.Vector          `json:"origin" yaml:"origin"`
	Pinned        []int              `json:"pinned" yaml:"pinned"`
	TearThreshold float64            `json:"tear_threshold" yaml:"tear_threshold"`
	Mass          float64            `json:"mass" yaml:"mass"`
	Radius        float64            `json:"radius" yaml:"radius"`
	Stiffness     float64            `json:"stiffness" yaml:"stiffness"`
	ShearStiff    float64            `json:"shear_stiffness" yaml:"shear_stiffness"`
	BendStiff     float64            `json:"bend_stiffness" yaml:"bend_stiffness"`
	Iterations    int                `json:"iterations" yaml:"iterations"`
	Damping       float64            `json:"damping" yaml:"damping"`
	SelfCollision bool               `json:"self_collision" yaml:"self_collision"`
	CollideRigid  bool               `json:"collide_rigid" yaml:"collide_rigid"`
	Material      shape.Material     `json:"material" yaml:"material"`
	Filter        collision.Filter   `json:"filter" yaml:"filter"`
	Response      collision.Response `json:"response" yaml:"response"`
}

func (c ClothConfig) Validate() error {
	if c.Width < 2 {
		return common.Invalid("cloth.width", c.Width, "must be >= 2")
	}
	if c.Height < 2 {
		return common.Invalid("cloth.height", c.Height, "must be >= 2")
	}
	if c.Spacing <= 0 {
		return common.Invalid("cloth.spacing", c.Spacing, "must be > 0")
	}
	if c.TearThreshold < 0 {
		return common.Invalid("cloth.tear_threshold", c.TearThreshold, "must be >= 0")
	}
	if c.Mass < 0 {
		return common.Invalid("cloth.mass", c.Mass, "must be >= 0")
	}
	n := c.Width * c.Height
	for _, idx := range c.Pinned {
		if idx < 0 || idx >= n {
			return common.Invalid("cloth.pinned", idx, "particle index out of range")
		}
	}
	return nil
}

// NewCloth expands a cloth description into a soft body config. Each
// particle links right and down (structural), diagonally (shear) and two
// apart (bend). Mass is the per-particle mass (1 when zero).
func NewCloth(c ClothConfig) (Config, error) {
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	mass := c.Mass
	if mass == 0 {
		mass = 1
	}
	radius := c.Radius
	if radius == 0 {
		radius = math.Min(DefaultParticleRadius, c.Spacing/4)
	}
	structural := orOne(c.Stiffness)
	shear := c.ShearStiff
	if shear == 0 {
		shear = structural
	}
	bend := c.BendStiff
	if bend == 0 {
		bend = structural * 0.5
	}

	idx := func(row, col int) int { return row*c.Width + col }
	particles := make([]Particle, 0, c.Width*c.Height)
	for row := 0; row < c.Height; row++ {
		for col := 0; col < c.Width; col++ {
			pos := c.Origin.Add(cp.Vector{X: float64(col) * c.Spacing, Y: float64(row) * c.Spacing})
			particles = append(particles, Particle{Position: pos, Mass: mass, Radius: radius})
		}
	}
	for _, i := range c.Pinned {
		particles[i].Pinned = true
	}

	var constraints []Constraint
	link := func(row, col, r2, c2 int, class Class, stiffness float64) {
		if r2 < 0 || r2 >= c.Height || c2 < 0 || c2 >= c.Width {
			return
		}
		rest := particles[idx(row, col)].Position.Distance(particles[idx(r2, c2)].Position)
		k := Constraint{
			A:          idx(row, col),
			B:          idx(r2, c2),
			RestLength: rest,
			Stiffness:  stiffness,
			Class:      class,
			Row:        row,
			Col:        col,
		}
		if c.TearThreshold > 0 {
			k.BreakThreshold = c.TearThreshold / rest
		}
		constraints = append(constraints, k)
	}
	for row := 0; row < c.Height; row++ {
		for col := 0; col < c.Width; col++ {
			link(row, col, row, col+1, Structural, structural)
			link(row, col, row+1, col, Structural, structural)
		}
	}
	for row := 0; row < c.Height; row++ {
		for col := 0; col < c.Width; col++ {
			link(row, col, row+1, col+1, Shear, shear)
			link(row, col, row+1, col-1, Shear, shear)
		}
	}
	for row := 0; row < c.Height; row++ {
		for col := 0; col < c.Width; col++ {
			link(row, col, row, col+2, Bend, bend)
			link(row, col, row+2, col, Bend, bend)
		}
	}

	return Config{
		ID:            c.ID,
		Particles:     particles,
		Constraints:   constraints,
		Iterations:    c.Iterations,
		Damping:       c.Damping,
		SelfCollision: c.SelfCollision,
		CollideRigid:  c.CollideRigid,
		Material:      c.Material,
		Filter:        c.Filter,
		Response:      c.Response,
		grid:          &Grid{Width: c.Width, Height: c.Height},
	}, nil
}

// RingConfig describes a blob: Segments particles on a circle, linked to
// their neighbours and across the diameter so the ring holds its shape.
type RingConfig struct {
	ID        string    `json:"id" yaml:"id"`
	Center    cp.Vector `json:"center" yaml:"center"`
	Radius    float64   `json:"radius" yaml:"radius"`
	Segments  int       `json:"segments" yaml:"segments"`
	Mass      float64   `json:"mass" yaml:"mass"`
	Stiffness float64   `json:"stiffness" yaml:"stiffness"`
	// Pressure is the stiffness of the cross links; lower is squishier.
	Pressure float64 `json:"pressure" yaml:"pressure"`
}

func NewRing(r RingConfig) (Config, error) {
	if r.Segments < 3 {
		return Config{}, common.Invalid("ring.segments", r.Segments, "must be >= 3")
	}
	if r.Radius <= 0 {
		return Config{}, common.Invalid("ring.radius", r.Radius, "must be > 0")
	}
	mass := r.Mass
	if mass == 0 {
		mass = float64(r.Segments)
	}
	perParticle := mass / float64(r.Segments)
	edge := 2 * math.Pi * r.Radius / float64(r.Segments)
	particles := make([]Particle, r.Segments)
	for i := range particles {
		a := 2 * math.Pi * float64(i) / float64(r.Segments)
		particles[i] = Particle{
			Position: r.Center.Add(cp.Vector{X: math.Cos(a), Y: math.Sin(a)}.Mult(r.Radius)),
			Mass:     perParticle,
			Radius:   math.Min(DefaultParticleRadius*2, edge/2),
		}
	}
	stiff := orOne(r.Stiffness)
	pressure := r.Pressure
	if pressure == 0 {
		pressure = stiff * 0.3
	}
	var constraints []Constraint
	for i := 0; i < r.Segments; i++ {
		constraints = append(constraints, Constraint{A: i, B: (i + 1) % r.Segments, Stiffness: stiff})
	}
	for i := 0; i < r.Segments/2; i++ {
		constraints = append(constraints, Constraint{A: i, B: i + r.Segments/2, Stiffness: pressure})
	}
	return Config{ID: r.ID, Particles: particles, Constraints: constraints}, nil
}

// RopeConfig describes a chain of Segments+1 particles from Start to End.
// The first particle is pinned unless Free is set.
type RopeConfig struct {
	ID        string    `json:"id" yaml:"id"`
	Start     cp.Vector `json:"start" yaml:"start"`
	End       cp.Vector `json:"end" yaml:"end"`
	Segments  int       `json:"segments" yaml:"segments"`
	Mass      float64   `json:"mass" yaml:"mass"`
	Stiffness float64   `json:"stiffness" yaml:"stiffness"`
	Free      bool      `json:"free" yaml:"free"`
}

func NewRope(r RopeConfig) (Config, error) {
	if r.Segments < 1 {
		return Config{}, common.Invalid("rope.segments", r.Segments, "must be >= 1")
	}
	if r.Start.Distance(r.End) == 0 {
		return Config{}, common.Invalid("rope.end", r.End, "must differ from start")
	}
	mass := r.Mass
	if mass == 0 {
		mass = float64(r.Segments + 1)
	}
	perParticle := mass / float64(r.Segments+1)
	particles := make([]Particle, r.Segments+1)
	for i := range particles {
		t := float64(i) / float64(r.Segments)
		particles[i] = Particle{
			Position: r.Start.Lerp(r.End, t),
			Mass:     perParticle,
			Radius:   DefaultParticleRadius,
		}
	}
	particles[0].Pinned = !r.Free
	stiff := orOne(r.Stiffness)
	constraints := make([]Constraint, r.Segments)
	for i := range constraints {
		constraints[i] = Constraint{A: i, B: i + 1, Stiffness: stiff}
	}
	return Config{ID: r.ID, Particles: particles, Constraints: constraints}, nil
}

func orOne(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}
