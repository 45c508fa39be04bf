package tracer

import (
	"fmt"

	"github.com/MJE43/lightgrid/internal/grid"
)

// Outcome is how a trace ended. None of them are errors.
type Outcome uint8

const (
	// Hit means the beam reached the target.
	Hit Outcome = iota
	// Exited means the beam left the board.
	Exited
	// StepLimitExceeded means the beam was still travelling after size²
	// steps, i.e. it is caught in a closed reflective loop.
	StepLimitExceeded
)

func (o Outcome) String() string {
	switch o {
	case Hit:
		return "hit"
	case Exited:
		return "exited"
	case StepLimitExceeded:
		return "step_limit_exceeded"
	default:
		return "unknown"
	}
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText decodes an outcome name.
func (o *Outcome) UnmarshalText(b []byte) error {
	for _, v := range []Outcome{Hit, Exited, StepLimitExceeded} {
		if v.String() == string(b) {
			*o = v
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", b)
}

// Board is the read-only view of a grid the tracer needs.
type Board interface {
	Size() int
	Cell(p grid.Position) (grid.Cell, error)
}

// Result is the output of one trace.
type Result struct {
	Path    []grid.Position `json:"path"`
	Outcome Outcome         `json:"outcome"`
	Steps   int             `json:"steps"`
}

// Terminal returns the last cell the beam occupied.
func (r Result) Terminal() grid.Position {
	return r.Path[len(r.Path)-1]
}

// MaxSteps is the step budget for a board of the given side length.
func MaxSteps(size int) int {
	return size * size
}

// Trace marches the beam one cell at a time from source in direction dir.
// The path starts with source and never contains an off-board position.
// A beam passing back over the source is unaffected.
func Trace(b Board, source grid.Position, dir grid.Direction) (Result, error) {
	if !dir.Valid() {
		return Result{}, fmt.Errorf("trace: invalid direction %d", dir)
	}
	if _, err := b.Cell(source); err != nil {
		return Result{}, fmt.Errorf("trace: source: %w", err)
	}

	size := b.Size()
	maxSteps := MaxSteps(size)
	path := make([]grid.Position, 1, size*2)
	path[0] = source
	current := source

	for steps := 0; steps < maxSteps; steps++ {
		current = current.Step(dir)
		if !inBounds(current, size) {
			return Result{Path: path, Outcome: Exited, Steps: steps + 1}, nil
		}
		path = append(path, current)

		cell, err := b.Cell(current)
		if err != nil {
			return Result{}, fmt.Errorf("trace: %w", err)
		}
		switch cell.Kind {
		case grid.Target:
			return Result{Path: path, Outcome: Hit, Steps: steps + 1}, nil
		case grid.Mirror:
			dir = Reflect(dir, cell.Orientation)
		}
	}

	return Result{Path: path, Outcome: StepLimitExceeded, Steps: maxSteps}, nil
}

// TraceGrid traces from the grid's own source and initial direction.
func TraceGrid(g *grid.Grid) (Result, error) {
	return Trace(g, g.Source(), g.SourceDirection())
}

func inBounds(p grid.Position, size int) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < size && p.Y < size
}
