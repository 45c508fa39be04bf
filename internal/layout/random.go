package layout

import (
	"fmt"

	"github.com/MJE43/lightgrid/internal/engine"
	"github.com/MJE43/lightgrid/internal/grid"
	"github.com/MJE43/lightgrid/internal/tracer"
)

const randomMaxAttempts = 64

// RandomSource builds solvable layouts from a provably fair stream.
//
// It lays a self-avoiding route from a source on the border, drops a corner
// mirror at each turn and the target at the end, scatters decoy mirrors off
// the route, then turns every route mirror 1-3 clicks away from its solved
// angle.
type RandomSource struct{}

// Spec returns metadata about the random source.
func (r *RandomSource) Spec() Spec {
	return Spec{
		ID:          "random",
		Name:        "Random",
		Description: "Seeded layout; regenerate with the revealed server seed to verify",
	}
}

type route struct {
	source  grid.Position
	dir     grid.Direction
	target  grid.Position
	mirrors []grid.Placement
	cells   map[grid.Position]bool
}

// Generate builds the layout for (seeds, nonce, difficulty).
func (r *RandomSource) Generate(seeds Seeds, nonce uint64, params Params) (Layout, error) {
	d, err := DifficultyByName(params.Difficulty)
	if err != nil {
		return Layout{}, err
	}
	s := engine.NewStream(seeds, nonce, 0)

	var rt route
	ok := false
	for attempt := 0; attempt < randomMaxAttempts && !ok; attempt++ {
		rt, ok = buildRoute(s, d)
	}
	if !ok {
		return Layout{}, fmt.Errorf("%w: no %s route after %d attempts", ErrGenerate, d.Name, randomMaxAttempts)
	}
	decoys := placeDecoys(s, d, rt)

	for attempt := 0; attempt < randomMaxAttempts; attempt++ {
		placements, solution := scramble(s, rt.mirrors)
		placements = append(placements, decoys...)

		g, err := grid.New(d.Size, rt.source, rt.dir, rt.target, placements)
		if err != nil {
			return Layout{}, fmt.Errorf("%w: %v", ErrGenerate, err)
		}
		res, err := tracer.TraceGrid(g)
		if err != nil {
			return Layout{}, fmt.Errorf("%w: %v", ErrGenerate, err)
		}
		if res.Outcome == tracer.Hit {
			continue
		}
		return Layout{
			Grid:       g,
			Difficulty: d,
			TimeLimit:  d.TimeLimit,
			Solution:   solution,
		}, nil
	}
	return Layout{}, fmt.Errorf("%w: every scramble of the %s route was already solved", ErrGenerate, d.Name)
}

func buildRoute(s *engine.Stream, d Difficulty) (route, bool) {
	n := d.Size
	dir := grid.Directions[s.IntN(len(grid.Directions))]
	along := s.IntN(n)

	// The source sits on the edge opposite to the way it fires.
	var src grid.Position
	switch dir {
	case grid.Right:
		src = grid.P(0, along)
	case grid.Left:
		src = grid.P(n-1, along)
	case grid.Up:
		src = grid.P(along, 0)
	default:
		src = grid.P(along, n-1)
	}

	rt := route{source: src, dir: dir, cells: map[grid.Position]bool{src: true}}
	cur := src
	for leg := 0; leg <= d.Turns; leg++ {
		room := roomAhead(cur, dir, n)
		if room == 0 {
			return route{}, false
		}
		length := s.Range(min(2, room), room)
		for i := 0; i < length; i++ {
			cur = cur.Step(dir)
			if rt.cells[cur] {
				return route{}, false
			}
			rt.cells[cur] = true
		}
		if leg == d.Turns {
			rt.target = cur
			break
		}

		next := turn(dir, s.IntN(2))
		o, ok := tracer.CornerFor(dir, next)
		if !ok {
			return route{}, false
		}
		rt.mirrors = append(rt.mirrors, grid.Placement{Pos: cur, Orientation: o})
		dir = next
	}
	return rt, true
}

func roomAhead(p grid.Position, d grid.Direction, n int) int {
	switch d {
	case grid.Right:
		return n - 1 - p.X
	case grid.Left:
		return p.X
	case grid.Up:
		return n - 1 - p.Y
	default:
		return p.Y
	}
}

func turn(d grid.Direction, side int) grid.Direction {
	if d.Vertical() {
		return [2]grid.Direction{grid.Left, grid.Right}[side]
	}
	return [2]grid.Direction{grid.Up, grid.Down}[side]
}

func placeDecoys(s *engine.Stream, d Difficulty, rt route) []grid.Placement {
	taken := make(map[grid.Position]bool, len(rt.cells))
	for p := range rt.cells {
		taken[p] = true
	}
	decoys := make([]grid.Placement, 0, d.Decoys)
	for tries := 0; len(decoys) < d.Decoys && tries < d.Decoys*8; tries++ {
		p := grid.P(s.IntN(d.Size), s.IntN(d.Size))
		if taken[p] {
			continue
		}
		taken[p] = true
		decoys = append(decoys, grid.Placement{Pos: p, Orientation: grid.Orientation(s.IntN(4))})
	}
	return decoys
}

// scramble turns each route mirror 1-3 clicks past its solved angle and
// returns the clicks that undo it.
func scramble(s *engine.Stream, solved []grid.Placement) ([]grid.Placement, []grid.Position) {
	out := make([]grid.Placement, len(solved))
	var solution []grid.Position
	for i, m := range solved {
		k := s.Range(1, 3)
		out[i] = grid.Placement{Pos: m.Pos, Orientation: (m.Orientation + grid.Orientation(k)) % 4}
		for j := 0; j < 4-k; j++ {
			solution = append(solution, m.Pos)
		}
	}
	return out, solution
}
