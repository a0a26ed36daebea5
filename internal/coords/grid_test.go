package coords

import (
	"image"
	"math"
	"math/rand"
	"testing"

	"github.com/ayusman/pairclick/internal/grid"
)

// Detected centres wander a few pixels from the cell centre; resolving them
// into rows and columns and mapping those must land on the intended cell.
func TestMapper_ResolvedCentres(t *testing.T) {
	const rows, cols, jitter = 5, 6, 8

	anchor := Anchor{Reference: Point{X: 812, Y: 418}, Scale: 2}
	spacing := DefaultSpacing()
	m, err := NewMapper(anchor, spacing)
	if err != nil {
		t.Fatalf("NewMapper() error = %v", err)
	}

	rng := rand.New(rand.NewSource(3))
	var centres []image.Point
	var truth []grid.Position
	for _, cell := range rng.Perm(rows * cols) {
		row, col := cell/cols, cell%cols
		centres = append(centres, image.Pt(
			int(anchor.Reference.X+float64(col)*spacing.Horizontal)+rng.Intn(2*jitter+1)-jitter,
			int(anchor.Reference.Y+float64(row)*spacing.Vertical)+rng.Intn(2*jitter+1)-jitter,
		))
		truth = append(truth, grid.Position{Row: row, Col: col})
	}

	resolver := grid.NewResolver(grid.DefaultClusterTolerance)
	resolver.ExpectedRows, resolver.ExpectedCols = rows, cols
	positions, layout, warnings := resolver.Resolve(centres)

	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}
	if len(layout.Rows) != rows || len(layout.Cols) != cols {
		t.Fatalf("layout = %d rows x %d cols, want %d x %d", len(layout.Rows), len(layout.Cols), rows, cols)
	}

	for i, pos := range positions {
		if pos != truth[i] {
			t.Errorf("centre %v resolved to %v, want %v", centres[i], pos, truth[i])
			continue
		}
		got := m.CellPoint(pos.Row, pos.Col)
		physical := m.ToPhysical(got)
		if math.Abs(physical.X-float64(centres[i].X)) > jitter || math.Abs(physical.Y-float64(centres[i].Y)) > jitter {
			t.Errorf("cell %v maps to %v (physical %v), more than %d px from centre %v",
				pos, got, physical, jitter, centres[i])
		}
	}
}
