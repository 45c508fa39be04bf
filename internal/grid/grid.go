package grid

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrInvalidLayout is returned when a layout breaks a construction rule.
	ErrInvalidLayout = errors.New("invalid layout")
	// ErrOutOfBounds is returned for a position outside the grid.
	ErrOutOfBounds = errors.New("position out of bounds")
)

// MinSize is the smallest accepted side length.
const MinSize = 2

// CellKind tags the variant stored in a Cell.
type CellKind uint8

const (
	Empty CellKind = iota
	Source
	Target
	Mirror
)

func (k CellKind) String() string {
	switch k {
	case Empty:
		return "empty"
	case Source:
		return "source"
	case Target:
		return "target"
	case Mirror:
		return "mirror"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k CellKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Cell is a tagged variant. Orientation is meaningful only for mirrors.
type Cell struct {
	Kind        CellKind
	Orientation Orientation
}

type cellJSON struct {
	Kind        CellKind     `json:"kind"`
	Orientation *Orientation `json:"orientation,omitempty"`
}

// MarshalJSON writes the orientation only for mirror cells.
func (c Cell) MarshalJSON() ([]byte, error) {
	out := cellJSON{Kind: c.Kind}
	if c.Kind == Mirror {
		o := c.Orientation
		out.Orientation = &o
	}
	return json.Marshal(out)
}

// IsMirror reports whether the cell holds a mirror.
func (c Cell) IsMirror() bool {
	return c.Kind == Mirror
}

// Placement puts a mirror with an initial orientation on the board.
type Placement struct {
	Pos         Position    `json:"pos"`
	Orientation Orientation `json:"orientation"`
}

// Grid is an N×N board. It is owned by a single puzzle session and is only
// mutated through RotateMirror.
type Grid struct {
	size      int
	cells     []Cell
	source    Position
	sourceDir Direction
	target    Position
}

// New builds a grid after checking every layout rule. All failures wrap
// ErrInvalidLayout.
func New(size int, source Position, sourceDir Direction, target Position, mirrors []Placement) (*Grid, error) {
	if size < MinSize {
		return nil, fmt.Errorf("%w: size %d below minimum %d", ErrInvalidLayout, size, MinSize)
	}
	g := &Grid{
		size:      size,
		cells:     make([]Cell, size*size),
		source:    source,
		sourceDir: sourceDir,
		target:    target,
	}

	if !sourceDir.Valid() {
		return nil, fmt.Errorf("%w: invalid source direction %d", ErrInvalidLayout, sourceDir)
	}
	if !g.InBounds(source) {
		return nil, fmt.Errorf("%w: source %s outside %dx%d grid", ErrInvalidLayout, source, size, size)
	}
	if !g.InBounds(target) {
		return nil, fmt.Errorf("%w: target %s outside %dx%d grid", ErrInvalidLayout, target, size, size)
	}
	if source == target {
		return nil, fmt.Errorf("%w: source and target share %s", ErrInvalidLayout, source)
	}
	g.cells[g.index(source)] = Cell{Kind: Source}
	g.cells[g.index(target)] = Cell{Kind: Target}

	for i, m := range mirrors {
		if !g.InBounds(m.Pos) {
			return nil, fmt.Errorf("%w: mirror %d at %s outside grid", ErrInvalidLayout, i, m.Pos)
		}
		if !m.Orientation.Valid() {
			return nil, fmt.Errorf("%w: mirror %d at %s has invalid orientation %d", ErrInvalidLayout, i, m.Pos, m.Orientation)
		}
		idx := g.index(m.Pos)
		switch g.cells[idx].Kind {
		case Source, Target:
			return nil, fmt.Errorf("%w: mirror %d at %s overlaps the %s", ErrInvalidLayout, i, m.Pos, g.cells[idx].Kind)
		case Mirror:
			return nil, fmt.Errorf("%w: duplicate mirror at %s", ErrInvalidLayout, m.Pos)
		}
		g.cells[idx] = Cell{Kind: Mirror, Orientation: m.Orientation}
	}

	return g, nil
}

func (g *Grid) index(p Position) int {
	return p.Y*g.size + p.X
}

// Size returns the side length N.
func (g *Grid) Size() int { return g.size }

// Source returns the fixed source position.
func (g *Grid) Source() Position { return g.source }

// SourceDirection returns the direction the beam leaves the source in.
func (g *Grid) SourceDirection() Direction { return g.sourceDir }

// Target returns the fixed target position.
func (g *Grid) Target() Position { return g.target }

// InBounds reports whether p lies on the board.
func (g *Grid) InBounds(p Position) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < g.size && p.Y < g.size
}

// Cell returns the cell at p. Reading outside the board is an error, never
// an implicit Empty.
func (g *Grid) Cell(p Position) (Cell, error) {
	if !g.InBounds(p) {
		return Cell{}, fmt.Errorf("%w: %s on %dx%d grid", ErrOutOfBounds, p, g.size, g.size)
	}
	return g.cells[g.index(p)], nil
}

// RotateMirror advances the mirror at p one step through 0→45→90→135→0 and
// reports whether anything changed. Non-mirror cells are left untouched
// without error.
func (g *Grid) RotateMirror(p Position) (bool, error) {
	if !g.InBounds(p) {
		return false, fmt.Errorf("%w: %s on %dx%d grid", ErrOutOfBounds, p, g.size, g.size)
	}
	idx := g.index(p)
	if g.cells[idx].Kind != Mirror {
		return false, nil
	}
	g.cells[idx].Orientation = g.cells[idx].Orientation.Next()
	return true, nil
}

// Mirrors returns every mirror ordered by row, then column.
func (g *Grid) Mirrors() []Placement {
	out := make([]Placement, 0)
	for i, c := range g.cells {
		if c.Kind == Mirror {
			out = append(out, Placement{Pos: Position{X: i % g.size, Y: i / g.size}, Orientation: c.Orientation})
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Pos.Y != out[b].Pos.Y {
			return out[a].Pos.Y < out[b].Pos.Y
		}
		return out[a].Pos.X < out[b].Pos.X
	})
	return out
}

// Clone returns an independent copy of the grid.
func (g *Grid) Clone() *Grid {
	c := *g
	c.cells = make([]Cell, len(g.cells))
	copy(c.cells, g.cells)
	return &c
}

// Rows returns the board as rows of cells, top row (highest Y) first, which
// is the order a renderer draws them in.
func (g *Grid) Rows() [][]Cell {
	rows := make([][]Cell, g.size)
	for r := 0; r < g.size; r++ {
		y := g.size - 1 - r
		row := make([]Cell, g.size)
		copy(row, g.cells[y*g.size:(y+1)*g.size])
		rows[r] = row
	}
	return rows
}
