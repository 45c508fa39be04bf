package puzzle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MJE43/lightgrid/internal/engine"
	"github.com/MJE43/lightgrid/internal/grid"
	"github.com/MJE43/lightgrid/internal/layout"
)

var (
	// ErrSessionNotFound is returned for an unknown or discarded session ID.
	ErrSessionNotFound = errors.New("session not found")
	// ErrClosed is returned by Create after Close.
	ErrClosed = errors.New("session manager closed")
)

// DefaultSource is used when a create request names no layout source.
const DefaultSource = "random"

// Result describes a finished session.
type Result struct {
	SessionID      uuid.UUID       `json:"session_id"`
	Player         string          `json:"player"`
	Source         string          `json:"source"`
	Difficulty     string          `json:"difficulty"`
	Level          string          `json:"level,omitempty"`
	State          State           `json:"state"`
	Moves          int             `json:"moves"`
	Elapsed        time.Duration   `json:"elapsed"`
	Score          decimal.Decimal `json:"score"`
	ServerSeed     string          `json:"server_seed"`
	ServerSeedHash string          `json:"server_seed_hash"`
	ClientSeed     string          `json:"client_seed"`
	Nonce          uint64          `json:"nonce"`
	FinishedAt     time.Time       `json:"finished_at"`
}

// ResultRecorder persists finished sessions.
type ResultRecorder interface {
	SaveResult(ctx context.Context, r Result) error
}

// CreateRequest starts a session.
type CreateRequest struct {
	Source     string `json:"source,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	Level      string `json:"level,omitempty"`
	ClientSeed string `json:"client_seed,omitempty"`
	Player     string `json:"player,omitempty"`
}

// View is what callers see of a session. The server seed stays empty until
// the session is finished.
type View struct {
	ID             uuid.UUID        `json:"id"`
	Source         string           `json:"source"`
	Difficulty     string           `json:"difficulty"`
	Level          string           `json:"level,omitempty"`
	Player         string           `json:"player,omitempty"`
	ServerSeedHash string           `json:"server_seed_hash"`
	ServerSeed     string           `json:"server_seed,omitempty"`
	ClientSeed     string           `json:"client_seed"`
	Nonce          uint64           `json:"nonce"`
	TimeLimit      time.Duration    `json:"time_limit"`
	StartedAt      time.Time        `json:"started_at"`
	Deadline       time.Time        `json:"deadline"`
	FinishedAt     *time.Time       `json:"finished_at,omitempty"`
	Score          *decimal.Decimal `json:"score,omitempty"`
	Snapshot
}

// Options configures a Manager.
type Options struct {
	// Recorder receives every finished session. Optional.
	Recorder ResultRecorder
	// Lookup resolves layout sources. Defaults to layout.Get.
	Lookup func(id string) (layout.Source, bool)
	// TimeLimit overrides the clock of every layout when positive.
	TimeLimit time.Duration
	// Retention is how long finished sessions stay readable. Defaults to 10m.
	Retention time.Duration
	Logger    *log.Logger
	Now       func() time.Time
}

type entry struct {
	mu sync.Mutex

	id         uuid.UUID
	session    *Session
	seeds      engine.Seeds
	nonce      uint64
	source     string
	params     layout.Params
	difficulty layout.Difficulty
	level      string
	player     string
	timeLimit  time.Duration
	startedAt  time.Time
	finishedAt time.Time
	score      decimal.Decimal
	timer      *time.Timer
	recorded   bool
	discarded  bool

	watchers map[chan View]struct{}
}

// Manager runs sessions concurrently. Every action on one session is
// serialised by that session's lock.
type Manager struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*entry
	closed   bool

	recorder  ResultRecorder
	lookup    func(id string) (layout.Source, bool)
	timeLimit time.Duration
	retention time.Duration
	logger    *log.Logger
	now       func() time.Time
}

// NewManager creates an empty manager.
func NewManager(opts Options) *Manager {
	m := &Manager{
		sessions:  make(map[uuid.UUID]*entry),
		recorder:  opts.Recorder,
		lookup:    opts.Lookup,
		timeLimit: opts.TimeLimit,
		retention: opts.Retention,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if m.lookup == nil {
		m.lookup = layout.Get
	}
	if m.retention <= 0 {
		m.retention = 10 * time.Minute
	}
	if m.logger == nil {
		m.logger = log.New(os.Stdout, "[PUZZLE] ", log.LstdFlags)
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Create generates a layout and starts its countdown.
func (m *Manager) Create(_ context.Context, req CreateRequest) (View, error) {
	if req.Source == "" {
		req.Source = DefaultSource
	}
	if req.ClientSeed == "" {
		req.ClientSeed = uuid.NewString()
	}
	serverSeed, err := engine.NewServerSeed()
	if err != nil {
		return View{}, fmt.Errorf("server seed: %w", err)
	}

	e := &entry{
		id:     uuid.New(),
		seeds:  engine.Seeds{Server: serverSeed, Client: req.ClientSeed},
		source: req.Source,
		params: layout.Params{Difficulty: req.Difficulty, Level: req.Level},
		player: req.Player,
	}
	if err := m.start(e, nil); err != nil {
		return View{}, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return View{}, ErrClosed
	}
	m.sessions[e.id] = e
	m.mu.Unlock()
	m.arm(e)

	m.logger.Printf("session created id=%s source=%s difficulty=%s level=%s nonce=%d",
		e.id, e.source, e.difficulty.Name, e.level, e.nonce)

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view(), nil
}

// start generates the layout for e's seeds and nonce, replacing prev when
// given. The clock starts here but the timer is armed by arm once e is
// reachable by ID.
func (m *Manager) start(e *entry, prev *Session) error {
	src, ok := m.lookup(e.source)
	if !ok {
		return fmt.Errorf("%w: %q", layout.ErrSourceNotFound, e.source)
	}
	var l layout.Layout
	build := func() (*grid.Grid, error) {
		var err error
		l, err = src.Generate(e.seeds, e.nonce, e.params)
		return l.Grid, err
	}

	var s *Session
	if prev != nil {
		var err error
		if s, err = prev.Reset(build); err != nil {
			return err
		}
	} else {
		g, err := build()
		if err != nil {
			return err
		}
		if s, err = NewSession(g); err != nil {
			return err
		}
	}

	e.session = s
	e.difficulty = l.Difficulty
	e.level = l.Level
	e.timeLimit = l.TimeLimit
	if m.timeLimit > 0 {
		e.timeLimit = m.timeLimit
	}
	e.startedAt = m.now()
	e.finishedAt = time.Time{}
	e.score = decimal.Zero
	return nil
}

func (m *Manager) arm(e *entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.State().Finished() || e.discarded {
		return
	}
	id := e.id
	e.timer = time.AfterFunc(e.deadline().Sub(m.now()), func() {
		if _, err := m.Expire(context.Background(), id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			m.logger.Printf("expire failed id=%s err=%v", id, err)
		}
	})
}

// lock returns the entry for id with its lock held.
func (m *Manager) lock(id uuid.UUID) (*entry, error) {
	m.mu.Lock()
	e, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	e.mu.Lock()
	if e.discarded {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return e, nil
}

// Get returns the current view of a session.
func (m *Manager) Get(id uuid.UUID) (View, error) {
	e, err := m.lock(id)
	if err != nil {
		return View{}, err
	}
	defer e.mu.Unlock()
	return e.view(), nil
}

// Rotate turns the mirror at p. Rotating a finished session fails with
// ErrSessionFinished and leaves the grid untouched.
func (m *Manager) Rotate(ctx context.Context, id uuid.UUID, p grid.Position) (View, error) {
	return m.RotateFrom(ctx, id, p, nil)
}

// RotateFrom is Rotate for a caller that also watches the session through
// origin, a channel returned by Watch. The resulting view is returned to the
// caller and not pushed to origin.
func (m *Manager) RotateFrom(ctx context.Context, id uuid.UUID, p grid.Position, origin <-chan View) (View, error) {
	e, err := m.lock(id)
	if err != nil {
		return View{}, err
	}

	changed, err := e.session.Rotate(p)
	if err != nil {
		e.mu.Unlock()
		return View{}, err
	}
	if changed && e.session.State() == Won {
		m.finish(e)
		m.logger.Printf("session won id=%s moves=%d score=%s", e.id, e.session.Moves(), e.score)
	}
	v, res := e.view(), e.pendingResult()
	if changed {
		e.broadcast(v, origin)
	}
	e.mu.Unlock()

	if res != nil {
		m.record(ctx, *res)
	}
	return v, nil
}

// Expire ends a Playing session as Lost. Finished sessions are returned
// unchanged.
func (m *Manager) Expire(ctx context.Context, id uuid.UUID) (View, error) {
	e, err := m.lock(id)
	if err != nil {
		return View{}, err
	}

	expired := e.session.Expire()
	if expired {
		m.finish(e)
		m.logger.Printf("session lost id=%s moves=%d", e.id, e.session.Moves())
	}
	v, res := e.view(), e.pendingResult()
	if expired {
		e.broadcast(v, nil)
	}
	e.mu.Unlock()

	if res != nil {
		m.record(ctx, *res)
	}
	return v, nil
}

// Reset discards a session and starts a new one with a new ID and a freshly
// generated layout from the same source. A Playing session moves on to the
// next nonce of the same seeds. A finished session has revealed its server
// seed, so the replacement draws a new one and starts again at nonce 0.
func (m *Manager) Reset(_ context.Context, id uuid.UUID) (View, error) {
	old, err := m.lock(id)
	if err != nil {
		return View{}, err
	}

	next := &entry{
		id:     uuid.New(),
		seeds:  old.seeds,
		nonce:  old.nonce + 1,
		source: old.source,
		params: old.params,
		player: old.player,
	}
	if old.session.State().Finished() {
		seed, err := engine.NewServerSeed()
		if err != nil {
			old.mu.Unlock()
			return View{}, fmt.Errorf("server seed: %w", err)
		}
		next.seeds.Server = seed
		next.nonce = 0
	}
	if err := m.start(next, old.session); err != nil {
		old.mu.Unlock()
		return View{}, err
	}
	old.stopTimer()
	old.discarded = true
	watchers := old.watchers
	old.watchers = nil
	old.mu.Unlock()

	m.mu.Lock()
	delete(m.sessions, id)
	m.sessions[next.id] = next
	m.mu.Unlock()
	m.arm(next)

	m.logger.Printf("session reset old=%s new=%s nonce=%d", id, next.id, next.nonce)

	next.mu.Lock()
	v := next.view()
	next.mu.Unlock()
	for ch := range watchers {
		close(ch)
	}
	return v, nil
}

// Watch subscribes to view updates for one session. The channel is closed
// when the session is discarded or cancel is called.
func (m *Manager) Watch(id uuid.UUID) (<-chan View, func(), error) {
	e, err := m.lock(id)
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan View, 8)
	if e.watchers == nil {
		e.watchers = make(map[chan View]struct{})
	}
	e.watchers[ch] = struct{}{}
	e.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if _, ok := e.watchers[ch]; ok {
				delete(e.watchers, ch)
				close(ch)
			}
		})
	}
	return ch, cancel, nil
}

// Sweep drops finished sessions whose retention has passed and returns how
// many were removed.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.retention)

	m.mu.Lock()
	var stale []*entry
	for id, e := range m.sessions {
		e.mu.Lock()
		if !e.finishedAt.IsZero() && e.finishedAt.Before(cutoff) {
			stale = append(stale, e)
			delete(m.sessions, id)
		}
		e.mu.Unlock()
	}
	m.mu.Unlock()

	for _, e := range stale {
		e.mu.Lock()
		e.discarded = true
		e.closeWatchers()
		e.mu.Unlock()
	}
	if len(stale) > 0 {
		m.logger.Printf("swept finished sessions count=%d", len(stale))
	}
	return len(stale)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops every timer and discards all sessions.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[uuid.UUID]*entry)
	m.closed = true
	m.mu.Unlock()

	for _, e := range sessions {
		e.mu.Lock()
		e.discarded = true
		e.stopTimer()
		e.closeWatchers()
		e.mu.Unlock()
	}
}

// finish stamps a session that just became Won or Lost. Callers hold e.mu.
func (m *Manager) finish(e *entry) {
	e.stopTimer()
	e.finishedAt = m.now()
	e.score = Score(e.session.State(), e.timeLimit, e.elapsed(), e.difficulty.Multiplier, e.session.Moves())
}

func (m *Manager) record(ctx context.Context, r Result) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.SaveResult(ctx, r); err != nil {
		m.logger.Printf("record result failed id=%s err=%v", r.SessionID, err)
	}
}

func (e *entry) stopTimer() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *entry) closeWatchers() {
	for ch := range e.watchers {
		close(ch)
	}
	e.watchers = nil
}

// broadcast pushes v to every watcher except skip.
func (e *entry) broadcast(v View, skip <-chan View) {
	for ch := range e.watchers {
		if ch == skip {
			continue
		}
		select {
		case ch <- v:
		default:
			// slow watcher; it will catch up on the next update
		}
	}
}

func (e *entry) deadline() time.Time {
	return e.startedAt.Add(e.timeLimit)
}

func (e *entry) elapsed() time.Duration {
	if e.finishedAt.IsZero() {
		return 0
	}
	return e.finishedAt.Sub(e.startedAt)
}

// pendingResult returns the result to record once, right after finish.
func (e *entry) pendingResult() *Result {
	if e.finishedAt.IsZero() || e.recorded {
		return nil
	}
	e.recorded = true
	return &Result{
		SessionID:      e.id,
		Player:         e.player,
		Source:         e.source,
		Difficulty:     e.difficulty.Name,
		Level:          e.level,
		State:          e.session.State(),
		Moves:          e.session.Moves(),
		Elapsed:        e.elapsed(),
		Score:          e.score,
		ServerSeed:     e.seeds.Server,
		ServerSeedHash: engine.HashSeed(e.seeds.Server),
		ClientSeed:     e.seeds.Client,
		Nonce:          e.nonce,
		FinishedAt:     e.finishedAt,
	}
}

func (e *entry) view() View {
	v := View{
		ID:             e.id,
		Source:         e.source,
		Difficulty:     e.difficulty.Name,
		Level:          e.level,
		Player:         e.player,
		ServerSeedHash: engine.HashSeed(e.seeds.Server),
		ClientSeed:     e.seeds.Client,
		Nonce:          e.nonce,
		TimeLimit:      e.timeLimit,
		StartedAt:      e.startedAt,
		Deadline:       e.deadline(),
		Snapshot:       e.session.Snapshot(),
	}
	if !e.finishedAt.IsZero() {
		finished := e.finishedAt
		score := e.score
		v.FinishedAt = &finished
		v.Score = &score
		v.ServerSeed = e.seeds.Server
	}
	return v
}
