package layout

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/MJE43/lightgrid/internal/grid"
	"github.com/MJE43/lightgrid/internal/tracer"
)

//go:embed levels/*.hcl
var builtinLevels embed.FS

type levelFile struct {
	Levels []levelBlock `hcl:"level,block"`
}

type levelBlock struct {
	Name       string        `hcl:"name,label"`
	Title      string        `hcl:"title,optional"`
	Difficulty string        `hcl:"difficulty,optional"`
	Size       int           `hcl:"size"`
	TimeLimit  int           `hcl:"time_limit,optional"`
	Source     sourceBlock   `hcl:"source,block"`
	Target     pointBlock    `hcl:"target,block"`
	Mirrors    []mirrorBlock `hcl:"mirror,block"`
}

type sourceBlock struct {
	X         int    `hcl:"x"`
	Y         int    `hcl:"y"`
	Direction string `hcl:"direction"`
}

type pointBlock struct {
	X int `hcl:"x"`
	Y int `hcl:"y"`
}

type mirrorBlock struct {
	X     int `hcl:"x"`
	Y     int `hcl:"y"`
	Angle int `hcl:"angle"`
}

// Level is a hand-made layout.
type Level struct {
	Name       string           `json:"name"`
	Title      string           `json:"title"`
	Difficulty Difficulty       `json:"difficulty"`
	Size       int              `json:"size"`
	Source     grid.Position    `json:"source"`
	Direction  grid.Direction   `json:"direction"`
	Target     grid.Position    `json:"target"`
	Mirrors    []grid.Placement `json:"mirrors"`
	TimeLimit  time.Duration    `json:"time_limit"`
}

// Build constructs a fresh grid for the level.
func (l Level) Build() (*grid.Grid, error) {
	return grid.New(l.Size, l.Source, l.Direction, l.Target, l.Mirrors)
}

// Pack is an ordered set of levels.
type Pack struct {
	levels map[string]Level
	order  []string
}

// NewPack returns an empty pack.
func NewPack() *Pack {
	return &Pack{levels: make(map[string]Level)}
}

// ParsePack decodes HCL level definitions. Every level is built and traced
// once so a broken or already solved layout is rejected here rather than when
// a session starts.
func ParsePack(src []byte, filename string) (*Pack, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %w", filename, diags)
	}

	var lf levelFile
	if diags := gohcl.DecodeBody(file.Body, nil, &lf); diags.HasErrors() {
		return nil, fmt.Errorf("decode %s: %w", filename, diags)
	}

	pack := NewPack()
	for _, b := range lf.Levels {
		lvl, err := b.level()
		if err != nil {
			return nil, fmt.Errorf("%s: level %q: %w", filename, b.Name, err)
		}
		if err := pack.Add(lvl); err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
	}
	return pack, nil
}

func (b levelBlock) level() (Level, error) {
	d, err := DifficultyByName(b.Difficulty)
	if err != nil {
		return Level{}, err
	}
	dir, err := grid.ParseDirection(b.Source.Direction)
	if err != nil {
		return Level{}, fmt.Errorf("%w: %v", grid.ErrInvalidLayout, err)
	}
	lvl := Level{
		Name:       b.Name,
		Title:      b.Title,
		Difficulty: d,
		Size:       b.Size,
		Source:     grid.P(b.Source.X, b.Source.Y),
		Direction:  dir,
		Target:     grid.P(b.Target.X, b.Target.Y),
		TimeLimit:  d.TimeLimit,
	}
	if lvl.Title == "" {
		lvl.Title = b.Name
	}
	if b.TimeLimit > 0 {
		lvl.TimeLimit = time.Duration(b.TimeLimit) * time.Second
	}
	for _, m := range b.Mirrors {
		o, err := grid.OrientationFromDegrees(m.Angle)
		if err != nil {
			return Level{}, fmt.Errorf("%w: mirror at (%d,%d): %v", grid.ErrInvalidLayout, m.X, m.Y, err)
		}
		lvl.Mirrors = append(lvl.Mirrors, grid.Placement{Pos: grid.P(m.X, m.Y), Orientation: o})
	}
	g, err := lvl.Build()
	if err != nil {
		return Level{}, err
	}
	res, err := tracer.TraceGrid(g)
	if err != nil {
		return Level{}, err
	}
	if res.Outcome == tracer.Hit {
		return Level{}, fmt.Errorf("%w: beam reaches the target before any move", grid.ErrInvalidLayout)
	}
	return lvl, nil
}

// Add appends a level. Names must be unique.
func (p *Pack) Add(l Level) error {
	if _, dup := p.levels[l.Name]; dup {
		return fmt.Errorf("duplicate level %q", l.Name)
	}
	p.levels[l.Name] = l
	p.order = append(p.order, l.Name)
	return nil
}

// Merge adds every level of other.
func (p *Pack) Merge(other *Pack) error {
	for _, name := range other.order {
		if err := p.Add(other.levels[name]); err != nil {
			return err
		}
	}
	return nil
}

// Level looks a level up by name.
func (p *Pack) Level(name string) (Level, bool) {
	l, ok := p.levels[name]
	return l, ok
}

// Levels returns levels in the order they were added, optionally filtered by
// difficulty name.
func (p *Pack) Levels(difficulty string) []Level {
	out := make([]Level, 0, len(p.order))
	for _, name := range p.order {
		l := p.levels[name]
		if difficulty != "" && !strings.EqualFold(l.Difficulty.Name, difficulty) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// Len returns the number of levels.
func (p *Pack) Len() int { return len(p.order) }

// DefaultPack returns the levels compiled into the binary.
func DefaultPack() *Pack {
	pack, err := loadFS(builtinLevels)
	if err != nil {
		panic(fmt.Sprintf("layout: builtin levels: %v", err))
	}
	return pack
}

func loadFS(fsys embed.FS) (*Pack, error) {
	entries, err := fsys.ReadDir("levels")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	pack := NewPack()
	for _, name := range names {
		src, err := fsys.ReadFile("levels/" + name)
		if err != nil {
			return nil, err
		}
		p, err := ParsePack(src, name)
		if err != nil {
			return nil, err
		}
		if err := pack.Merge(p); err != nil {
			return nil, err
		}
	}
	return pack, nil
}

// LoadDir parses every *.hcl file in dir, in name order.
func LoadDir(dir string) (*Pack, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.hcl"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	pack := NewPack()
	for _, path := range files {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read level file: %w", err)
		}
		p, err := ParsePack(src, filepath.Base(path))
		if err != nil {
			return nil, err
		}
		if err := pack.Merge(p); err != nil {
			return nil, err
		}
	}
	return pack, nil
}

// LevelSource serves hand-made levels from a pack.
type LevelSource struct {
	pack *Pack
}

// NewLevelSource wraps a pack.
func NewLevelSource(pack *Pack) *LevelSource {
	return &LevelSource{pack: pack}
}

// Spec returns metadata about the level source.
func (s *LevelSource) Spec() Spec {
	return Spec{
		ID:          "levels",
		Name:        "Levels",
		Description: fmt.Sprintf("%d hand-made layouts", s.pack.Len()),
	}
}

// Pack exposes the underlying levels.
func (s *LevelSource) Pack() *Pack { return s.pack }

// Generate returns the named level, or when none is named, picks one of the
// levels of the requested difficulty by nonce. Seeds are not used.
func (s *LevelSource) Generate(_ Seeds, nonce uint64, params Params) (Layout, error) {
	var lvl Level
	if params.Level != "" {
		l, ok := s.pack.Level(params.Level)
		if !ok {
			return Layout{}, fmt.Errorf("%w: unknown level %q", ErrGenerate, params.Level)
		}
		lvl = l
	} else {
		candidates := s.pack.Levels(params.Difficulty)
		if len(candidates) == 0 {
			return Layout{}, fmt.Errorf("%w: no levels for difficulty %q", ErrGenerate, params.Difficulty)
		}
		lvl = candidates[nonce%uint64(len(candidates))]
	}

	g, err := lvl.Build()
	if err != nil {
		return Layout{}, err
	}
	return Layout{
		Grid:       g,
		Difficulty: lvl.Difficulty,
		Level:      lvl.Name,
		TimeLimit:  lvl.TimeLimit,
	}, nil
}
