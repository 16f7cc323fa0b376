// Package collision implements the broad phase (uniform grid over bounding
// boxes) and the narrow phase (per primitive pair analytic tests) that turn
// shapes into contact manifolds.
package collision

import "fmt"

// AllCategories is the mask that accepts every category.
const AllCategories uint32 = 0xFFFFFFFF

// Filter decides which bodies may touch. A shared non-zero Group overrides
// the category/mask test: positive groups always collide, negative groups
// never do.
type Filter struct {
	Category uint32 `json:"category" yaml:"category"`
	Mask     uint32 `json:"mask" yaml:"mask"`
	Group    int32  `json:"group" yaml:"group"`
}

func DefaultFilter() Filter {
	return Filter{Category: 1, Mask: AllCategories}
}

// Normalized fills an unset category or mask (zero) with the defaults. Use
// ResponseNone to take a body out of collision entirely.
func (f Filter) Normalized() Filter {
	if f.Category == 0 {
		f.Category = 1
	}
	if f.Mask == 0 {
		f.Mask = AllCategories
	}
	return f
}

// CanCollide reports whether bodies with filters f and o should be tested.
func (f Filter) CanCollide(o Filter) bool {
	if f.Group != 0 && f.Group == o.Group {
		return f.Group > 0
	}
	return f.Mask&o.Category != 0 && o.Mask&f.Category != 0
}

// Response selects what happens when a pair overlaps.
type Response int

const (
	// ResponseCollide generates contacts that the solver resolves.
	ResponseCollide Response = iota
	// ResponseSensor reports contacts without resolving them.
	ResponseSensor
	// ResponseNone skips the body in the broad phase.
	ResponseNone
)

var responseNames = [...]string{"collide", "sensor", "none"}

func (r Response) String() string {
	if r < 0 || int(r) >= len(responseNames) {
		return fmt.Sprintf("Response(%d)", int(r))
	}
	return responseNames[r]
}

func (r Response) MarshalText() ([]byte, error) {
	if r < 0 || int(r) >= len(responseNames) {
		return nil, fmt.Errorf("collision: unknown response %d", int(r))
	}
	return []byte(responseNames[r]), nil
}

func (r *Response) UnmarshalText(b []byte) error {
	for i, n := range responseNames {
		if n == string(b) {
			*r = Response(i)
			return nil
		}
	}
	return fmt.Errorf("collision: unknown response %q", string(b))
}

// PairResponse combines the responses of two bodies. The second result is
// false when the pair must be skipped.
func PairResponse(a, b Response) (Response, bool) {
	if a == ResponseNone || b == ResponseNone {
		return ResponseNone, false
	}
	if a == ResponseSensor || b == ResponseSensor {
		return ResponseSensor, true
	}
	return ResponseCollide, true
}
