// Package layout produces puzzle grids. A Source turns seeds and a nonce into
// a Layout, so any layout a player receives can be regenerated and checked
// once the server seed is revealed.
package layout

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/MJE43/lightgrid/internal/engine"
	"github.com/MJE43/lightgrid/internal/grid"
)

// ErrSourceNotFound is returned when no source is registered under an ID.
var ErrSourceNotFound = errors.New("layout source not found")

// ErrGenerate is returned when a source cannot produce a layout.
var ErrGenerate = errors.New("layout generation failed")

// Seeds is re-exported for convenience.
type Seeds = engine.Seeds

// Spec describes a layout source.
type Spec struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Params selects what a source should generate.
type Params struct {
	Difficulty string `json:"difficulty,omitempty"`
	Level      string `json:"level,omitempty"`
}

// Layout is a freshly built grid plus the rules it is played under.
type Layout struct {
	Grid       *grid.Grid
	Difficulty Difficulty
	Level      string
	TimeLimit  time.Duration
	// Solution is one sequence of rotations that routes the beam to the
	// target. Empty when the source does not know one.
	Solution []grid.Position
}

// Source generates layouts.
type Source interface {
	Spec() Spec
	Generate(seeds Seeds, nonce uint64, params Params) (Layout, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Source)
)

// Register adds a source, replacing any source with the same ID.
func Register(src Source) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[src.Spec().ID] = src
}

// Get retrieves a source by ID.
func Get(id string) (Source, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	src, ok := registry[id]
	return src, ok
}

// List returns the specs of all registered sources sorted by ID.
func List() []Spec {
	registryMu.RLock()
	defer registryMu.RUnlock()
	specs := make([]Spec, 0, len(registry))
	for _, src := range registry {
		specs = append(specs, src.Spec())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].ID < specs[j].ID })
	return specs
}

func init() {
	Register(&RandomSource{})
	Register(NewLevelSource(DefaultPack()))
}
