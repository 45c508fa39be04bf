package layout

import (
	"strings"

	"github.com/MJE43/lightgrid/internal/grid"
)

// Render draws the grid top row first. Source is S, target is T, mirrors use
// their glyph and empty cells a dot. Cells on path that are otherwise empty
// are drawn as '*'.
func Render(g *grid.Grid, path []grid.Position) string {
	lit := make(map[grid.Position]bool, len(path))
	for _, p := range path {
		lit[p] = true
	}

	n := g.Size()
	var b strings.Builder
	for r, row := range g.Rows() {
		y := n - 1 - r
		for x, c := range row {
			if x > 0 {
				b.WriteByte(' ')
			}
			switch c.Kind {
			case grid.Source:
				b.WriteByte('S')
			case grid.Target:
				b.WriteByte('T')
			case grid.Mirror:
				b.WriteRune(c.Orientation.Glyph())
			default:
				if lit[grid.P(x, y)] {
					b.WriteByte('*')
				} else {
					b.WriteByte('.')
				}
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
