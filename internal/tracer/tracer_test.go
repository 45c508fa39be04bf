package tracer

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MJE43/lightgrid/internal/grid"
)

func TestReflectTable(t *testing.T) {
	tests := []struct {
		in   grid.Direction
		o    grid.Orientation
		want grid.Direction
	}{
		// 0° horizontal wall: horizontal passes, vertical bounces back.
		{grid.Up, grid.Deg0, grid.Down},
		{grid.Down, grid.Deg0, grid.Up},
		{grid.Left, grid.Deg0, grid.Left},
		{grid.Right, grid.Deg0, grid.Right},
		// 45° "/" corner.
		{grid.Up, grid.Deg45, grid.Right},
		{grid.Down, grid.Deg45, grid.Left},
		{grid.Left, grid.Deg45, grid.Down},
		{grid.Right, grid.Deg45, grid.Up},
		// 90° vertical wall: vertical passes, horizontal bounces back.
		{grid.Up, grid.Deg90, grid.Up},
		{grid.Down, grid.Deg90, grid.Down},
		{grid.Left, grid.Deg90, grid.Right},
		{grid.Right, grid.Deg90, grid.Left},
		// 135° "\" corner.
		{grid.Up, grid.Deg135, grid.Left},
		{grid.Down, grid.Deg135, grid.Right},
		{grid.Left, grid.Deg135, grid.Up},
		{grid.Right, grid.Deg135, grid.Down},
	}

	if len(tests) != 16 {
		t.Fatalf("table test must cover 16 cases, has %d", len(tests))
	}

	for _, tt := range tests {
		t.Run(tt.in.String()+"_"+tt.o.String(), func(t *testing.T) {
			if got := Reflect(tt.in, tt.o); got != tt.want {
				t.Errorf("Reflect(%s, %s) = %s, want %s", tt.in, tt.o, got, tt.want)
			}
		})
	}
}

func TestReflectIsReversible(t *testing.T) {
	// Sending the outgoing beam back into the same mirror must retrace the
	// incoming one.
	for _, d := range grid.Directions {
		for o := grid.Deg0; o <= grid.Deg135; o++ {
			out := Reflect(d, o)
			if back := Reflect(out.Opposite(), o); back != d.Opposite() {
				t.Errorf("%s/%s: reverse gives %s, want %s", d, o, back, d.Opposite())
			}
		}
	}
}

func TestCornerFor(t *testing.T) {
	o, ok := CornerFor(grid.Right, grid.Up)
	if !ok || o != grid.Deg45 {
		t.Errorf("right->up: got %s %v", o, ok)
	}
	o, ok = CornerFor(grid.Up, grid.Left)
	if !ok || o != grid.Deg135 {
		t.Errorf("up->left: got %s %v", o, ok)
	}
	if _, ok := CornerFor(grid.Right, grid.Left); ok {
		t.Error("no corner mirror reverses a beam")
	}
}

func mustGrid(t *testing.T, size int, src grid.Position, dir grid.Direction, tgt grid.Position, mirrors ...grid.Placement) *grid.Grid {
	t.Helper()
	g, err := grid.New(size, src, dir, tgt, mirrors)
	if err != nil {
		t.Fatalf("grid.New failed: %v", err)
	}
	return g
}

func mirror(x, y int, o grid.Orientation) grid.Placement {
	return grid.Placement{Pos: grid.P(x, y), Orientation: o}
}

func TestTraceLineOfSight(t *testing.T) {
	tests := []struct {
		name string
		src  grid.Position
		dir  grid.Direction
		tgt  grid.Position
	}{
		{"right along row", grid.P(1, 2), grid.Right, grid.P(6, 2)},
		{"left along row", grid.P(7, 0), grid.Left, grid.P(0, 0)},
		{"up along column", grid.P(4, 0), grid.Up, grid.P(4, 7)},
		{"down adjacent", grid.P(2, 5), grid.Down, grid.P(2, 4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := mustGrid(t, 8, tt.src, tt.dir, tt.tgt)
			res, err := TraceGrid(g)
			if err != nil {
				t.Fatalf("trace failed: %v", err)
			}
			if res.Outcome != Hit {
				t.Fatalf("expected hit, got %s", res.Outcome)
			}
			dist := tt.src.Manhattan(tt.tgt)
			if res.Steps != dist {
				t.Errorf("expected %d steps, got %d", dist, res.Steps)
			}
			if len(res.Path) != dist+1 {
				t.Errorf("expected path of %d cells including the source, got %d", dist+1, len(res.Path))
			}
			if res.Path[0] != tt.src || res.Terminal() != tt.tgt {
				t.Errorf("path runs %s..%s, want %s..%s", res.Path[0], res.Terminal(), tt.src, tt.tgt)
			}
		})
	}
}

func TestTraceScenario(t *testing.T) {
	g := mustGrid(t, 8, grid.P(0, 3), grid.Right, grid.P(3, 7), mirror(3, 3, grid.Deg45))

	res, err := TraceGrid(g)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != Hit {
		t.Fatalf("expected hit, got %s", res.Outcome)
	}
	want := []grid.Position{
		grid.P(0, 3), grid.P(1, 3), grid.P(2, 3), grid.P(3, 3),
		grid.P(3, 4), grid.P(3, 5), grid.P(3, 6), grid.P(3, 7),
	}
	if diff := cmp.Diff(want, res.Path); diff != "" {
		t.Errorf("path mismatch (-want +got):\n%s", diff)
	}

	if _, err := g.RotateMirror(grid.P(3, 3)); err != nil {
		t.Fatal(err)
	}
	res, err = TraceGrid(g)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != Exited {
		t.Fatalf("expected exited after rotating to 90°, got %s", res.Outcome)
	}
	// The vertical wall sends the beam back over the source and off the left edge.
	want = []grid.Position{
		grid.P(0, 3), grid.P(1, 3), grid.P(2, 3), grid.P(3, 3),
		grid.P(2, 3), grid.P(1, 3), grid.P(0, 3),
	}
	if diff := cmp.Diff(want, res.Path); diff != "" {
		t.Errorf("path mismatch (-want +got):\n%s", diff)
	}
	if res.Steps != 7 {
		t.Errorf("expected 7 steps, got %d", res.Steps)
	}
}

func TestTraceExitDropsOffBoardCell(t *testing.T) {
	g := mustGrid(t, 4, grid.P(0, 0), grid.Up, grid.P(3, 3))
	res, err := TraceGrid(g)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != Exited {
		t.Fatalf("expected exited, got %s", res.Outcome)
	}
	want := []grid.Position{grid.P(0, 0), grid.P(0, 1), grid.P(0, 2), grid.P(0, 3)}
	if diff := cmp.Diff(want, res.Path); diff != "" {
		t.Errorf("path mismatch (-want +got):\n%s", diff)
	}
}

func TestTraceClosedLoops(t *testing.T) {
	tests := []struct {
		name string
		g    func(t *testing.T) *grid.Grid
	}{
		{
			name: "wall mirrors bounce forever",
			g: func(t *testing.T) *grid.Grid {
				return mustGrid(t, 5, grid.P(2, 0), grid.Right, grid.P(4, 4),
					mirror(4, 0, grid.Deg90), mirror(0, 0, grid.Deg90))
			},
		},
		{
			name: "corner mirrors form a ring",
			g: func(t *testing.T) *grid.Grid {
				return mustGrid(t, 6, grid.P(2, 1), grid.Right, grid.P(5, 5),
					mirror(4, 1, grid.Deg45), mirror(4, 3, grid.Deg135),
					mirror(0, 3, grid.Deg45), mirror(0, 1, grid.Deg135))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := tt.g(t)
			res, err := TraceGrid(g)
			if err != nil {
				t.Fatal(err)
			}
			if res.Outcome != StepLimitExceeded {
				t.Fatalf("expected step limit, got %s", res.Outcome)
			}
			limit := MaxSteps(g.Size())
			if res.Steps != limit {
				t.Errorf("expected exactly %d steps, got %d", limit, res.Steps)
			}
			if len(res.Path) != limit+1 {
				t.Errorf("expected %d path cells, got %d", limit+1, len(res.Path))
			}
		})
	}
}

func TestTraceDoesNotMutate(t *testing.T) {
	g := mustGrid(t, 6, grid.P(2, 1), grid.Right, grid.P(5, 5),
		mirror(4, 1, grid.Deg45), mirror(4, 3, grid.Deg135))
	before := g.Mirrors()
	if _, err := TraceGrid(g); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(before, g.Mirrors()); diff != "" {
		t.Errorf("trace changed the grid (-before +after):\n%s", diff)
	}
}

func TestTraceRejectsBadInput(t *testing.T) {
	g := mustGrid(t, 4, grid.P(0, 0), grid.Right, grid.P(3, 0))
	if _, err := Trace(g, grid.P(5, 5), grid.Right); !errors.Is(err, grid.ErrOutOfBounds) {
		t.Errorf("expected ErrOutOfBounds for off-board source, got %v", err)
	}
	if _, err := Trace(g, grid.P(0, 0), grid.Direction(12)); err == nil {
		t.Error("expected error for invalid direction")
	}
}

func TestOutcomeText(t *testing.T) {
	for o, want := range map[Outcome]string{Hit: "hit", Exited: "exited", StepLimitExceeded: "step_limit_exceeded"} {
		b, _ := o.MarshalText()
		if string(b) != want {
			t.Errorf("%d: got %s, want %s", o, b, want)
		}
		var back Outcome
		if err := back.UnmarshalText(b); err != nil || back != o {
			t.Errorf("UnmarshalText(%s) = %v, %v", b, back, err)
		}
	}
	var o Outcome
	if err := o.UnmarshalText([]byte("missed")); err == nil {
		t.Error("expected error for unknown outcome")
	}
}
