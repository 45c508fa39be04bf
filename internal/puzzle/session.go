// Package puzzle runs laser puzzles: a Session is the Playing/Won/Lost state
// machine around one grid, and a Manager keeps many sessions alive behind
// their countdown timers.
package puzzle

import (
	"errors"
	"fmt"

	"github.com/MJE43/lightgrid/internal/grid"
	"github.com/MJE43/lightgrid/internal/tracer"
)

// ErrSessionFinished is returned for a move on a Won or Lost session.
var ErrSessionFinished = errors.New("session finished")

// State is the session state.
type State uint8

const (
	Playing State = iota
	Won
	Lost
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Won:
		return "won"
	case Lost:
		return "lost"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseState is the inverse of State.String.
func ParseState(name string) (State, error) {
	for _, s := range []State{Playing, Won, Lost} {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown session state %q", name)
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Finished reports whether s is terminal.
func (s State) Finished() bool {
	return s == Won || s == Lost
}

// Session owns one grid for one play-through. It is not safe for concurrent
// use; the Manager serialises access.
type Session struct {
	grid  *grid.Grid
	state State
	trace tracer.Result
	moves int
}

// NewSession takes ownership of g and traces it once. Every session starts
// Playing; a grid whose beam already reaches the target is rejected with
// grid.ErrInvalidLayout.
func NewSession(g *grid.Grid) (*Session, error) {
	res, err := tracer.TraceGrid(g)
	if err != nil {
		return nil, err
	}
	if res.Outcome == tracer.Hit {
		return nil, fmt.Errorf("%w: beam reaches the target before any move", grid.ErrInvalidLayout)
	}
	return &Session{grid: g, state: Playing, trace: res}, nil
}

func (s *Session) retrace() error {
	res, err := tracer.TraceGrid(s.grid)
	if err != nil {
		return err
	}
	s.trace = res
	if res.Outcome == tracer.Hit {
		s.state = Won
	}
	return nil
}

// Rotate turns the mirror at p and retraces. Rotating a cell without a mirror
// changes nothing and does not count as a move.
func (s *Session) Rotate(p grid.Position) (bool, error) {
	if s.state.Finished() {
		return false, fmt.Errorf("rotate %s: %w", p, ErrSessionFinished)
	}
	changed, err := s.grid.RotateMirror(p)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	s.moves++
	return true, s.retrace()
}

// Expire moves a Playing session to Lost and reports whether it did.
func (s *Session) Expire() bool {
	if s.state != Playing {
		return false
	}
	s.state = Lost
	return true
}

// LayoutFunc builds a brand-new grid.
type LayoutFunc func() (*grid.Grid, error)

// Reset discards the session and returns a new one on a freshly built grid.
func (s *Session) Reset(build LayoutFunc) (*Session, error) {
	g, err := build()
	if err != nil {
		return nil, err
	}
	return NewSession(g)
}

func (s *Session) State() State { return s.state }

// Moves counts rotations that changed a mirror.
func (s *Session) Moves() int { return s.moves }

// Trace returns the most recent trace.
func (s *Session) Trace() tracer.Result { return s.trace }

func (s *Session) Grid() *grid.Grid { return s.grid }

// Board is a read-only rendering view of a grid.
type Board struct {
	Size      int              `json:"size"`
	Source    grid.Position    `json:"source"`
	Direction grid.Direction   `json:"direction"`
	Target    grid.Position    `json:"target"`
	Mirrors   []grid.Placement `json:"mirrors"`
}

// BoardOf copies the drawable parts of g.
func BoardOf(g *grid.Grid) Board {
	return Board{
		Size:      g.Size(),
		Source:    g.Source(),
		Direction: g.SourceDirection(),
		Target:    g.Target(),
		Mirrors:   g.Mirrors(),
	}
}

// Snapshot is a copy of the session safe to hand to other goroutines.
type Snapshot struct {
	State   State           `json:"state"`
	Outcome tracer.Outcome  `json:"outcome"`
	Path    []grid.Position `json:"path"`
	Steps   int             `json:"steps"`
	Moves   int             `json:"moves"`
	Board   Board           `json:"board"`
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	path := make([]grid.Position, len(s.trace.Path))
	copy(path, s.trace.Path)
	return Snapshot{
		State:   s.state,
		Outcome: s.trace.Outcome,
		Path:    path,
		Steps:   s.trace.Steps,
		Moves:   s.moves,
		Board:   BoardOf(s.grid),
	}
}
