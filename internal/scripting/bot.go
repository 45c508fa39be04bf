package scripting

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/MJE43/lightgrid/internal/grid"
	"github.com/MJE43/lightgrid/internal/puzzle"
)

// Mover applies one rotation to a live session.
type Mover interface {
	Rotate(ctx context.Context, p grid.Position) (puzzle.View, error)
}

// StopReason says why a bot run ended.
type StopReason string

const (
	StopFinished StopReason = "finished"
	StopYielded  StopReason = "yielded"
	StopScript   StopReason = "stopped"
	StopBudget   StopReason = "move_budget"
	StopCanceled StopReason = "canceled"
)

// DefaultMoveBudget caps a run when BotOptions leaves it unset.
const DefaultMoveBudget = 200

// Report summarises a bot run.
type Report struct {
	Reason StopReason  `json:"reason"`
	Moves  int         `json:"moves"`
	Final  puzzle.View `json:"final"`
	Logs   []LogEntry  `json:"logs"`
}

// BotOptions configures a Bot.
type BotOptions struct {
	MoveBudget int
	Logger     *log.Logger
}

// Bot drives a session with a script's move() function.
type Bot struct {
	vm     *VM
	budget int
	logger *log.Logger
}

// NewBot loads source into a fresh VM. The script must define move(state).
func NewBot(source string, opts BotOptions) (*Bot, error) {
	vm := NewVM()
	if err := vm.Execute(source); err != nil {
		return nil, err
	}
	b := &Bot{vm: vm, budget: opts.MoveBudget, logger: opts.Logger}
	if b.budget <= 0 {
		b.budget = DefaultMoveBudget
	}
	if b.logger == nil {
		b.logger = log.New(os.Stdout, "[SCRIPT] ", log.LstdFlags)
	}
	return b, nil
}

// Run asks the script for moves starting from view until the session
// finishes, the script yields null or calls stop(), the move budget runs out
// or ctx is done. Script and rotate errors end the run with an error.
func (b *Bot) Run(ctx context.Context, view puzzle.View, mover Mover) (rep Report, err error) {
	rep = Report{Final: view}
	defer func() {
		rep.Logs = b.vm.GetLogs()
		b.logger.Printf("bot run ended session=%s reason=%s moves=%d state=%s", view.ID, rep.Reason, rep.Moves, rep.Final.State)
	}()

	for {
		if rep.Final.State.Finished() {
			rep.Reason = StopFinished
			return rep, nil
		}
		if ctx.Err() != nil {
			rep.Reason = StopCanceled
			return rep, nil
		}
		if rep.Moves >= b.budget {
			rep.Reason = StopBudget
			return rep, nil
		}

		p, err := b.vm.CallMove(StateObject(rep.Final))
		if err != nil {
			return rep, err
		}
		if b.vm.IsStopRequested() {
			rep.Reason = StopScript
			return rep, nil
		}
		if p == nil {
			rep.Reason = StopYielded
			return rep, nil
		}

		next, err := mover.Rotate(ctx, *p)
		if err != nil {
			if errors.Is(err, puzzle.ErrSessionFinished) {
				rep.Reason = StopFinished
				return rep, nil
			}
			return rep, fmt.Errorf("rotate %s: %w", *p, err)
		}
		rep.Moves++
		rep.Final = next
	}
}

func pos(p grid.Position) map[string]any {
	return map[string]any{"x": p.X, "y": p.Y}
}

// StateObject is the value handed to move(): plain maps and slices so the
// script sees ordinary JavaScript objects.
func StateObject(v puzzle.View) map[string]any {
	mirrors := make([]any, len(v.Board.Mirrors))
	for i, m := range v.Board.Mirrors {
		mirrors[i] = map[string]any{"x": m.Pos.X, "y": m.Pos.Y, "angle": m.Orientation.Degrees()}
	}
	path := make([]any, len(v.Path))
	for i, p := range v.Path {
		path[i] = pos(p)
	}
	return map[string]any{
		"size":      v.Board.Size,
		"source":    pos(v.Board.Source),
		"direction": v.Board.Direction.String(),
		"target":    pos(v.Board.Target),
		"mirrors":   mirrors,
		"path":      path,
		"outcome":   v.Outcome.String(),
		"state":     v.State.String(),
		"moves":     v.Moves,
	}
}

// PathWalker turns the mirror nearest the end of the beam, giving each
// mirror at most three clicks. It is the default autoplay script.
const PathWalker = `
var tries = {};

function move(state) {
	for (var i = state.path.length - 1; i >= 0; i--) {
		var p = state.path[i];
		for (var j = 0; j < state.mirrors.length; j++) {
			var m = state.mirrors[j];
			var k = m.x + "," + m.y;
			if (m.x === p.x && m.y === p.y && (tries[k] || 0) < 3) {
				tries[k] = (tries[k] || 0) + 1;
				return { x: m.x, y: m.y };
			}
		}
	}
	log("no untried mirror on the beam after", state.moves, "moves");
	return null;
}
`
