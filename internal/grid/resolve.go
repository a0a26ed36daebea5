package grid

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/ayusman/pairclick/internal/report"
)

// DefaultClusterTolerance is the pixel distance within which a centre joins
// an existing row or column bucket.
const DefaultClusterTolerance = 30

// Position is a resolved grid index.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

// Layout holds the canonical row and column lines recovered from a set of
// centres, in ascending pixel order.
type Layout struct {
	Rows []float64 `json:"rows"`
	Cols []float64 `json:"cols"`
}

// Resolver infers grid positions from raw pixel centres when the grid
// geometry is not known in advance.
type Resolver struct {
	Tolerance    float64
	ExpectedRows int // 0 disables the row count check
	ExpectedCols int // 0 disables the column count check
}

// NewResolver creates a Resolver with the given clustering tolerance.
func NewResolver(tolerance float64) *Resolver {
	if tolerance <= 0 {
		tolerance = DefaultClusterTolerance
	}
	return &Resolver{Tolerance: tolerance}
}

// Resolve clusters the Y and X coordinates of centers independently and
// assigns every centre to its nearest row and column line. Positions are
// returned in the order of centers. When more lines than expected are
// found, a ClusteringAnomaly warning is returned alongside best-effort
// positions.
func (r *Resolver) Resolve(centers []image.Point) ([]Position, Layout, []report.Warning) {
	if len(centers) == 0 {
		return nil, Layout{}, nil
	}

	ys := make([]float64, len(centers))
	xs := make([]float64, len(centers))
	for i, c := range centers {
		ys[i] = float64(c.Y)
		xs[i] = float64(c.X)
	}

	layout := Layout{
		Rows: Cluster(ys, r.Tolerance),
		Cols: Cluster(xs, r.Tolerance),
	}

	var warnings []report.Warning
	if r.ExpectedRows > 0 && len(layout.Rows) > r.ExpectedRows {
		warnings = append(warnings, report.ClusteringAnomaly("row", len(layout.Rows), r.ExpectedRows))
	}
	if r.ExpectedCols > 0 && len(layout.Cols) > r.ExpectedCols {
		warnings = append(warnings, report.ClusteringAnomaly("column", len(layout.Cols), r.ExpectedCols))
	}

	positions := make([]Position, len(centers))
	for i, c := range centers {
		positions[i] = Position{
			Row: Nearest(float64(c.Y), layout.Rows),
			Col: Nearest(float64(c.X), layout.Cols),
		}
	}

	return positions, layout, warnings
}

// Cluster groups values by single-linkage tolerance clustering: values are
// visited in ascending order and join the first bucket whose first member
// lies within tolerance, otherwise they open a new bucket. It returns the
// bucket means in ascending order.
func Cluster(values []float64, tolerance float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var buckets [][]float64
	for _, v := range sorted {
		joined := false
		for i := range buckets {
			if math.Abs(v-buckets[i][0]) < tolerance {
				buckets[i] = append(buckets[i], v)
				joined = true
				break
			}
		}
		if !joined {
			buckets = append(buckets, []float64{v})
		}
	}

	lines := make([]float64, len(buckets))
	for i, b := range buckets {
		var sum float64
		for _, v := range b {
			sum += v
		}
		lines[i] = sum / float64(len(b))
	}
	sort.Float64s(lines)
	return lines
}

// Nearest returns the index of the line closest to v; ties go to the lower
// index. It returns -1 when lines is empty.
func Nearest(v float64, lines []float64) int {
	best := -1
	bestDist := math.Inf(1)
	for i, l := range lines {
		if d := math.Abs(v - l); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}
