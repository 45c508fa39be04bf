package scripting

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/MJE43/lightgrid/internal/grid"
	"github.com/MJE43/lightgrid/internal/puzzle"
)

// sessionMover drives a bare puzzle.Session.
type sessionMover struct {
	s     *puzzle.Session
	calls int
}

func (m *sessionMover) Rotate(_ context.Context, p grid.Position) (puzzle.View, error) {
	m.calls++
	if _, err := m.s.Rotate(p); err != nil {
		return puzzle.View{}, err
	}
	return puzzle.View{Snapshot: m.s.Snapshot()}, nil
}

func (m *sessionMover) view() puzzle.View {
	return puzzle.View{Snapshot: m.s.Snapshot()}
}

func newMover(t *testing.T) *sessionMover {
	t.Helper()
	g, err := grid.New(8, grid.P(0, 3), grid.Right, grid.P(3, 7), []grid.Placement{
		{Pos: grid.P(3, 3), Orientation: grid.Deg0},
		{Pos: grid.P(6, 1), Orientation: grid.Deg90},
	})
	if err != nil {
		t.Fatal(err)
	}
	s, err := puzzle.NewSession(g)
	if err != nil {
		t.Fatal(err)
	}
	return &sessionMover{s: s}
}

func newBot(t *testing.T, script string, budget int) *Bot {
	t.Helper()
	b, err := NewBot(script, BotOptions{MoveBudget: budget, Logger: log.New(io.Discard, "", 0)})
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	return b
}

func TestBotRuns(t *testing.T) {
	tests := []struct {
		name      string
		script    string
		budget    int
		wantMoves int
		want      StopReason
		wantState puzzle.State
	}{
		{
			name:      "solves",
			script:    `function move(s) { return { x: 3, y: 3 }; }`,
			wantMoves: 1,
			want:      StopFinished,
			wantState: puzzle.Won,
		},
		{
			name:      "yields",
			script:    `function move(s) { return null; }`,
			want:      StopYielded,
			wantState: puzzle.Playing,
		},
		{
			name:      "stop",
			script:    `function move(s) { stop(); return { x: 3, y: 3 }; }`,
			want:      StopScript,
			wantState: puzzle.Playing,
		},
		{
			name:      "budget",
			script:    `function move(s) { return { x: 0, y: 0 }; }`,
			budget:    5,
			wantMoves: 5,
			want:      StopBudget,
			wantState: puzzle.Playing,
		},
		{
			name:      "default walker",
			script:    PathWalker,
			wantMoves: 1,
			want:      StopFinished,
			wantState: puzzle.Won,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMover(t)
			b := newBot(t, tt.script, tt.budget)

			rep, err := b.Run(context.Background(), m.view(), m)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if rep.Reason != tt.want {
				t.Errorf("reason = %s, want %s", rep.Reason, tt.want)
			}
			if rep.Moves != tt.wantMoves {
				t.Errorf("moves = %d, want %d", rep.Moves, tt.wantMoves)
			}
			if rep.Final.State != tt.wantState {
				t.Errorf("state = %s, want %s", rep.Final.State, tt.wantState)
			}
		})
	}
}

func TestBotSeesState(t *testing.T) {
	m := newMover(t)
	b := newBot(t, `
		function move(s) {
			log(s.size, s.direction, s.outcome, s.state, s.mirrors.length, s.path[0].x, s.path[0].y, s.mirrors[0].angle);
			return null;
		}
	`, 0)

	rep, err := b.Run(context.Background(), m.view(), m)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Logs) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(rep.Logs))
	}
	if got, want := rep.Logs[0].Message, "8 right exited playing 2 0 3 90"; got != want {
		t.Errorf("log = %q, want %q", got, want)
	}
}

func TestBotErrors(t *testing.T) {
	if _, err := NewBot(`var x = 1;`, BotOptions{}); !errors.Is(err, ErrNoMoveFunc) {
		t.Errorf("expected ErrNoMoveFunc, got %v", err)
	}
	if _, err := NewBot(`function move( {`, BotOptions{}); err == nil {
		t.Error("expected a syntax error")
	}

	m := newMover(t)
	b := newBot(t, `function move(s) { return { col: 1 }; }`, 0)
	if _, err := b.Run(context.Background(), m.view(), m); err == nil || !strings.Contains(err.Error(), "{x, y}") {
		t.Errorf("expected a shape error, got %v", err)
	}

	b = newBot(t, `function move(s) { return { x: 12, y: 0 }; }`, 0)
	if _, err := b.Run(context.Background(), m.view(), m); !errors.Is(err, grid.ErrOutOfBounds) {
		t.Errorf("expected ErrOutOfBounds, got %v", err)
	}

	b = newBot(t, `function move(s) { throw new Error("boom"); }`, 0)
	if _, err := b.Run(context.Background(), m.view(), m); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected the thrown error, got %v", err)
	}
}

func TestBotTimeout(t *testing.T) {
	m := newMover(t)
	b := newBot(t, `function move(s) { while (true) {} }`, 0)
	_, err := b.Run(context.Background(), m.view(), m)
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected a timeout, got %v", err)
	}
}

func TestBotCanceled(t *testing.T) {
	m := newMover(t)
	b := newBot(t, `function move(s) { return { x: 3, y: 3 }; }`, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := b.Run(ctx, m.view(), m)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Reason != StopCanceled || m.calls != 0 {
		t.Errorf("reason = %s after %d calls", rep.Reason, m.calls)
	}
}

func TestSandboxHidesGlobals(t *testing.T) {
	m := newMover(t)
	b := newBot(t, `
		function move(s) {
			log(typeof require, typeof fetch, typeof eval);
			return null;
		}
	`, 0)
	rep, err := b.Run(context.Background(), m.view(), m)
	if err != nil {
		t.Fatal(err)
	}
	if got := rep.Logs[0].Message; got != "undefined undefined undefined" {
		t.Errorf("sandbox globals visible: %q", got)
	}
}
