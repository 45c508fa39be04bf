package grid

import (
	"encoding/json"
	"errors"
	"testing"
)

func scenarioGrid(t *testing.T) *Grid {
	t.Helper()
	g, err := New(8, P(0, 3), Right, P(3, 7), []Placement{{Pos: P(3, 3), Orientation: Deg45}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return g
}

func TestNewPlacesCells(t *testing.T) {
	g := scenarioGrid(t)

	if g.Size() != 8 {
		t.Errorf("expected size 8, got %d", g.Size())
	}

	cases := []struct {
		pos  Position
		want Cell
	}{
		{P(0, 3), Cell{Kind: Source}},
		{P(3, 7), Cell{Kind: Target}},
		{P(3, 3), Cell{Kind: Mirror, Orientation: Deg45}},
		{P(5, 5), Cell{Kind: Empty}},
	}
	for _, tc := range cases {
		got, err := g.Cell(tc.pos)
		if err != nil {
			t.Fatalf("Cell(%s) failed: %v", tc.pos, err)
		}
		if got != tc.want {
			t.Errorf("Cell(%s) = %+v, want %+v", tc.pos, got, tc.want)
		}
	}

	if g.SourceDirection() != Right {
		t.Errorf("expected source direction right, got %s", g.SourceDirection())
	}
}

func TestNewRejectsInvalidLayouts(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		source  Position
		dir     Direction
		target  Position
		mirrors []Placement
	}{
		{name: "too small", size: 1, source: P(0, 0), dir: Right, target: P(0, 0)},
		{name: "source equals target", size: 4, source: P(1, 1), dir: Right, target: P(1, 1)},
		{name: "source out of bounds", size: 4, source: P(4, 0), dir: Right, target: P(1, 1)},
		{name: "target out of bounds", size: 4, source: P(0, 0), dir: Right, target: P(0, -1)},
		{name: "bad direction", size: 4, source: P(0, 0), dir: Direction(9), target: P(3, 3)},
		{
			name: "mirror out of bounds", size: 4, source: P(0, 0), dir: Right, target: P(3, 3),
			mirrors: []Placement{{Pos: P(7, 1), Orientation: Deg0}},
		},
		{
			name: "mirror on source", size: 4, source: P(0, 0), dir: Right, target: P(3, 3),
			mirrors: []Placement{{Pos: P(0, 0), Orientation: Deg0}},
		},
		{
			name: "mirror on target", size: 4, source: P(0, 0), dir: Right, target: P(3, 3),
			mirrors: []Placement{{Pos: P(3, 3), Orientation: Deg90}},
		},
		{
			name: "duplicate mirror", size: 4, source: P(0, 0), dir: Right, target: P(3, 3),
			mirrors: []Placement{{Pos: P(1, 1), Orientation: Deg0}, {Pos: P(1, 1), Orientation: Deg45}},
		},
		{
			name: "bad orientation", size: 4, source: P(0, 0), dir: Right, target: P(3, 3),
			mirrors: []Placement{{Pos: P(1, 1), Orientation: Orientation(7)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.size, tt.source, tt.dir, tt.target, tt.mirrors)
			if !errors.Is(err, ErrInvalidLayout) {
				t.Errorf("expected ErrInvalidLayout, got %v", err)
			}
		})
	}
}

func TestCellOutOfBounds(t *testing.T) {
	g := scenarioGrid(t)
	for _, p := range []Position{P(-1, 0), P(0, -1), P(8, 0), P(0, 8)} {
		if _, err := g.Cell(p); !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("Cell(%s): expected ErrOutOfBounds, got %v", p, err)
		}
	}
	if _, err := g.RotateMirror(P(9, 9)); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("RotateMirror out of bounds: expected ErrOutOfBounds, got %v", err)
	}
}

func TestRotateMirrorCycle(t *testing.T) {
	g := scenarioGrid(t)
	want := []Orientation{Deg90, Deg135, Deg0, Deg45}

	for i, o := range want {
		changed, err := g.RotateMirror(P(3, 3))
		if err != nil {
			t.Fatalf("rotate %d failed: %v", i, err)
		}
		if !changed {
			t.Fatalf("rotate %d reported no change", i)
		}
		c, _ := g.Cell(P(3, 3))
		if c.Orientation != o {
			t.Errorf("after rotate %d expected %s, got %s", i+1, o, c.Orientation)
		}
	}
}

func TestRotateNonMirrorIsNoop(t *testing.T) {
	g := scenarioGrid(t)
	before := g.Clone()

	for _, p := range []Position{P(0, 3), P(3, 7), P(5, 5)} {
		changed, err := g.RotateMirror(p)
		if err != nil {
			t.Fatalf("RotateMirror(%s) failed: %v", p, err)
		}
		if changed {
			t.Errorf("RotateMirror(%s) reported a change", p)
		}
	}

	for y := 0; y < g.Size(); y++ {
		for x := 0; x < g.Size(); x++ {
			a, _ := before.Cell(P(x, y))
			b, _ := g.Cell(P(x, y))
			if a != b {
				t.Errorf("cell %s changed from %+v to %+v", P(x, y), a, b)
			}
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	g := scenarioGrid(t)
	c := g.Clone()

	if _, err := c.RotateMirror(P(3, 3)); err != nil {
		t.Fatal(err)
	}
	orig, _ := g.Cell(P(3, 3))
	if orig.Orientation != Deg45 {
		t.Errorf("rotating the clone changed the original to %s", orig.Orientation)
	}
}

func TestMirrorsSorted(t *testing.T) {
	g, err := New(5, P(0, 0), Up, P(4, 4), []Placement{
		{Pos: P(3, 2), Orientation: Deg0},
		{Pos: P(1, 2), Orientation: Deg90},
		{Pos: P(2, 1), Orientation: Deg135},
	})
	if err != nil {
		t.Fatal(err)
	}
	got := g.Mirrors()
	want := []Position{P(2, 1), P(1, 2), P(3, 2)}
	if len(got) != len(want) {
		t.Fatalf("expected %d mirrors, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Pos != want[i] {
			t.Errorf("mirror %d at %s, want %s", i, got[i].Pos, want[i])
		}
	}
}

func TestRowsTopFirst(t *testing.T) {
	g := scenarioGrid(t)
	rows := g.Rows()
	// Row 0 is y=7, which holds the target at x=3.
	if rows[0][3].Kind != Target {
		t.Errorf("expected target in first row, got %s", rows[0][3].Kind)
	}
	if rows[4][0].Kind != Source {
		t.Errorf("expected source at rows[4][0], got %s", rows[4][0].Kind)
	}
}

func TestDirectionHelpers(t *testing.T) {
	for _, d := range Directions {
		if d.Opposite().Opposite() != d {
			t.Errorf("%s: double opposite mismatch", d)
		}
		parsed, err := ParseDirection(d.String())
		if err != nil || parsed != d {
			t.Errorf("ParseDirection(%q) = %s, %v", d.String(), parsed, err)
		}
	}
	if P(0, 0).Step(Up) != P(0, 1) {
		t.Errorf("up should increase y")
	}
	if P(2, 3).Manhattan(P(5, 1)) != 5 {
		t.Errorf("unexpected manhattan distance")
	}
}

func TestOrientationCorner(t *testing.T) {
	want := map[Orientation]bool{Deg0: false, Deg45: true, Deg90: false, Deg135: true}
	for _, o := range Orientations {
		if o.Corner() != want[o] {
			t.Errorf("%s: Corner() = %v", o, o.Corner())
		}
		if o.Next() != Orientations[(int(o)+1)%len(Orientations)] {
			t.Errorf("%s: Next() = %s", o, o.Next())
		}
	}
}

func TestOrientationJSON(t *testing.T) {
	data, err := json.Marshal(Placement{Pos: P(1, 2), Orientation: Deg135})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"pos":{"x":1,"y":2},"orientation":135}` {
		t.Errorf("unexpected encoding %s", data)
	}

	var p Placement
	if err := json.Unmarshal([]byte(`{"pos":{"x":4,"y":0},"orientation":90}`), &p); err != nil {
		t.Fatal(err)
	}
	if p.Orientation != Deg90 || p.Pos != P(4, 0) {
		t.Errorf("unexpected decode %+v", p)
	}

	if err := json.Unmarshal([]byte(`{"orientation":30}`), &p); err == nil {
		t.Error("expected error for 30 degrees")
	}
}

func TestCellJSON(t *testing.T) {
	data, err := json.Marshal([]Cell{{Kind: Mirror, Orientation: Deg0}, {Kind: Empty}})
	if err != nil {
		t.Fatal(err)
	}
	want := `[{"kind":"mirror","orientation":0},{"kind":"empty"}]`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}
