// Package grid holds the laser puzzle board: a fixed N×N layout with one
// source, one target and any number of rotatable mirrors.
package grid

import (
	"fmt"
	"strings"
)

// Position is a cell coordinate. X grows to the right, Y grows upward.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// P is a convenience constructor for Position.
func P(x, y int) Position {
	return Position{X: x, Y: y}
}

// String returns a string representation of the position.
func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Step returns the neighbouring position one cell away in direction d.
func (p Position) Step(d Direction) Position {
	dx, dy := d.Delta()
	return Position{X: p.X + dx, Y: p.Y + dy}
}

// Manhattan returns the Manhattan distance to another position.
func (p Position) Manhattan(other Position) int {
	dx := p.X - other.X
	dy := p.Y - other.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// Direction is one of the four cardinal travel directions.
type Direction uint8

const (
	Up Direction = iota
	Down
	Left
	Right
)

// Directions lists every direction in declaration order.
var Directions = [4]Direction{Up, Down, Left, Right}

// Valid reports whether d is one of the four cardinal directions.
func (d Direction) Valid() bool {
	return d <= Right
}

// Delta returns the (dx, dy) offset of a single step.
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case Up:
		return 0, 1
	case Down:
		return 0, -1
	case Left:
		return -1, 0
	case Right:
		return 1, 0
	default:
		return 0, 0
	}
}

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	default:
		return Left
	}
}

// Vertical reports whether d travels along the Y axis.
func (d Direction) Vertical() bool {
	return d == Up || d == Down
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// ParseDirection accepts the lower-case names produced by String.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// MarshalText encodes the direction by name.
func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid direction %d", d)
	}
	return []byte(d.String()), nil
}

// UnmarshalText decodes a direction name.
func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Orientation is one of the four discrete mirror angles.
type Orientation uint8

const (
	Deg0   Orientation = iota // horizontal "-"
	Deg45                     // forward diagonal "/"
	Deg90                     // vertical "|"
	Deg135                    // back diagonal "\"
)

// Orientations lists every angle in rotation order.
var Orientations = [4]Orientation{Deg0, Deg45, Deg90, Deg135}

// Valid reports whether o is one of the four mirror angles.
func (o Orientation) Valid() bool {
	return o <= Deg135
}

// Next returns the orientation one step further in the 0→45→90→135→0 cycle.
func (o Orientation) Next() Orientation {
	return (o + 1) % 4
}

// Degrees returns the angle of the mirror.
func (o Orientation) Degrees() int {
	return int(o) * 45
}

// Corner reports whether the mirror turns the beam onto the perpendicular axis.
func (o Orientation) Corner() bool {
	return o == Deg45 || o == Deg135
}

func (o Orientation) String() string {
	return fmt.Sprintf("%d°", o.Degrees())
}

// Glyph is the single-rune drawing of the mirror.
func (o Orientation) Glyph() rune {
	switch o {
	case Deg0:
		return '-'
	case Deg45:
		return '/'
	case Deg90:
		return '|'
	default:
		return '\\'
	}
}

// OrientationFromDegrees maps 0, 45, 90 or 135 to an Orientation.
func OrientationFromDegrees(deg int) (Orientation, error) {
	switch deg {
	case 0:
		return Deg0, nil
	case 45:
		return Deg45, nil
	case 90:
		return Deg90, nil
	case 135:
		return Deg135, nil
	}
	return 0, fmt.Errorf("unsupported mirror angle %d", deg)
}

// MarshalJSON encodes the orientation as its angle in degrees.
func (o Orientation) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%d", o.Degrees())), nil
}

// UnmarshalJSON decodes an angle in degrees.
func (o *Orientation) UnmarshalJSON(b []byte) error {
	var deg int
	if _, err := fmt.Sscanf(string(b), "%d", &deg); err != nil {
		return fmt.Errorf("invalid mirror angle %s", b)
	}
	v, err := OrientationFromDegrees(deg)
	if err != nil {
		return err
	}
	*o = v
	return nil
}
