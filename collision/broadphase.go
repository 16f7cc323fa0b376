package collision

import (
	"math"
	"sort"

	"github.com/jakecoffman/cp"
)

const defaultMaxCellsPerProxy = 256

// Pair is a candidate pair of proxy indices with A < B.
type Pair struct {
	A, B int
}

type cellKey struct {
	X, Y int
}

// Grid is a uniform spatial hash over bounding boxes. A zero CellSize picks
// one from the proxies; proxies that would cover more than MaxCellsPerProxy
// cells are tested against everything instead.
type Grid struct {
	CellSize         float64
	MaxCellsPerProxy int
}

// Pairs returns the overlapping candidate pairs, sorted by (A, B) so that
// the result does not depend on map iteration order.
func (g *Grid) Pairs(bounds []cp.BB) []Pair {
	if len(bounds) < 2 {
		return nil
	}
	size := g.CellSize
	if size <= 0 {
		size = autoCellSize(bounds)
	}
	maxCells := g.MaxCellsPerProxy
	if maxCells <= 0 {
		maxCells = defaultMaxCellsPerProxy
	}

	cells := make(map[cellKey][]int)
	var oversized []int
	for i, bb := range bounds {
		x0, y0 := int(math.Floor(bb.L/size)), int(math.Floor(bb.B/size))
		x1, y1 := int(math.Floor(bb.R/size)), int(math.Floor(bb.T/size))
		if (x1-x0+1)*(y1-y0+1) > maxCells || x1 < x0 || y1 < y0 {
			oversized = append(oversized, i)
			continue
		}
		for x := x0; x <= x1; x++ {
			for y := y0; y <= y1; y++ {
				k := cellKey{x, y}
				cells[k] = append(cells[k], i)
			}
		}
	}

	seen := make(map[Pair]struct{})
	add := func(a, b int) {
		if a == b {
			return
		}
		if a > b {
			a, b = b, a
		}
		p := Pair{a, b}
		if _, ok := seen[p]; ok {
			return
		}
		if !bounds[a].Intersects(bounds[b]) {
			return
		}
		seen[p] = struct{}{}
	}
	for _, members := range cells {
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				add(members[i], members[j])
			}
		}
	}
	for _, o := range oversized {
		for i := range bounds {
			add(o, i)
		}
	}

	out := make([]Pair, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// autoCellSize uses twice the mean proxy extent, which keeps typical proxies
// within a 2x2 block of cells.
func autoCellSize(bounds []cp.BB) float64 {
	sum := 0.0
	n := 0
	for _, bb := range bounds {
		e := math.Max(bb.R-bb.L, bb.T-bb.B)
		if e > 0 && !math.IsInf(e, 0) && !math.IsNaN(e) {
			sum += e
			n++
		}
	}
	if n == 0 {
		return 64
	}
	return math.Max(2*sum/float64(n), 1)
}

// Inflate grows bb along the displacement d, so that a body moving by d this
// step is found by the broad phase along its whole path.
func Inflate(bb cp.BB, d cp.Vector) cp.BB {
	if d.X < 0 {
		bb.L += d.X
	} else {
		bb.R += d.X
	}
	if d.Y < 0 {
		bb.B += d.Y
	} else {
		bb.T += d.Y
	}
	return bb
}
