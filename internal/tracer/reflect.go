// Package tracer computes the beam path across a grid. Everything here is a
// pure function of its inputs; the grid is only read.
package tracer

import "github.com/MJE43/lightgrid/internal/grid"

// reflectTable is indexed [incoming direction][orientation].
//
// 0° and 90° are wall mirrors: travel parallel to the mirror passes through,
// perpendicular travel is sent straight back. 45° and 135° are corner mirrors
// that turn the beam onto the other axis.
var reflectTable = [4][4]grid.Direction{
	grid.Up: {
		grid.Deg0:   grid.Down,
		grid.Deg45:  grid.Right,
		grid.Deg90:  grid.Up,
		grid.Deg135: grid.Left,
	},
	grid.Down: {
		grid.Deg0:   grid.Up,
		grid.Deg45:  grid.Left,
		grid.Deg90:  grid.Down,
		grid.Deg135: grid.Right,
	},
	grid.Left: {
		grid.Deg0:   grid.Left,
		grid.Deg45:  grid.Down,
		grid.Deg90:  grid.Right,
		grid.Deg135: grid.Up,
	},
	grid.Right: {
		grid.Deg0:   grid.Right,
		grid.Deg45:  grid.Up,
		grid.Deg90:  grid.Left,
		grid.Deg135: grid.Down,
	},
}

// Reflect returns the travel direction after a beam moving in d meets a
// mirror at orientation o. Invalid inputs are returned unchanged.
func Reflect(d grid.Direction, o grid.Orientation) grid.Direction {
	if !d.Valid() || !o.Valid() {
		return d
	}
	return reflectTable[d][o]
}

// CornerFor returns the corner orientation that turns a beam travelling in
// from onto to. ok is false when no single corner mirror does that.
func CornerFor(from, to grid.Direction) (grid.Orientation, bool) {
	for _, o := range grid.Orientations {
		if o.Corner() && Reflect(from, o) == to {
			return o, true
		}
	}
	return 0, false
}
