package common

import (
	"math"

	"github.com/jakecoffman/cp"
)

func Lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ApproxEqual reports whether a and b differ by at most eps.
func ApproxEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// VecFinite reports whether both components of v are finite.
func VecFinite(v cp.Vector) bool {
	return IsFinite(v.X) && IsFinite(v.Y)
}

// CrossSV returns the cross product of a scalar (z axis) and a vector,
// which is the velocity of point r on a body spinning at w.
func CrossSV(w float64, r cp.Vector) cp.Vector {
	return cp.Vector{X: -w * r.Y, Y: w * r.X}
}

// Rotate rotates v by angle radians.
func Rotate(v cp.Vector, angle float64) cp.Vector {
	if angle == 0 {
		return v
	}
	c, s := math.Cos(angle), math.Sin(angle)
	return cp.Vector{X: v.X*c - v.Y*s, Y: v.X*s + v.Y*c}
}

// Unrotate applies the inverse of Rotate(v, angle).
func Unrotate(v cp.Vector, angle float64) cp.Vector {
	return Rotate(v, -angle)
}

// Transform maps a local point into world space for a frame at pos/angle.
func Transform(local, pos cp.Vector, angle float64) cp.Vector {
	return Rotate(local, angle).Add(pos)
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}
