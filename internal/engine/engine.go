package engine

import (
	"fmt"
	"log"

	"gocv.io/x/gocv"

	"github.com/ayusman/pairclick/internal/coords"
	"github.com/ayusman/pairclick/internal/grid"
	"github.com/ayusman/pairclick/internal/pairing"
	"github.com/ayusman/pairclick/internal/report"
)

// Targeting selects how click points are derived.
type Targeting string

const (
	// TargetCell maps (row, col) through the anchor and fixed spacing.
	TargetCell Targeting = "cell"
	// TargetPixel maps each card's detected pixel centre through the capture origin.
	TargetPixel Targeting = "pixel"
)

// Config holds engine options.
type Config struct {
	// Threshold is the minimum candidate score for a pair.
	Threshold float64
	// Targeting selects cell- or pixel-based click points.
	Targeting Targeting
	// Origin is the physical screen position of the screenshot's top-left
	// corner, used by TargetPixel.
	Origin coords.Point
}

// DefaultConfig returns the grid-mode defaults.
func DefaultConfig() Config {
	return Config{
		Threshold: 0.5,
		Targeting: TargetCell,
	}
}

// Click is the pair of logical screen points for one accepted pair.
type Click struct {
	A     coords.Point  `json:"a"`
	B     coords.Point  `json:"b"`
	CellA grid.Position `json:"cell_a"`
	CellB grid.Position `json:"cell_b"`
}

// Result is the outcome of a solve. Clicks is parallel to Pairs.
type Result struct {
	Mode     Mode             `json:"mode"`
	Items    []Item           `json:"items"`
	Pairs    []pairing.Pair   `json:"pairs"`
	Clicks   []Click          `json:"clicks"`
	Summary  report.Summary   `json:"summary"`
	Warnings []report.Warning `json:"warnings"`
}

// Engine runs a strategy, assigns pairs and maps them to the screen. An
// Engine holds no per-solve state and may be reused.
type Engine struct {
	strategy Strategy
	mapper   *coords.Mapper
	config   Config
}

// New creates an Engine.
func New(strategy Strategy, mapper *coords.Mapper, config Config) *Engine {
	if config.Targeting == "" {
		config.Targeting = TargetCell
	}
	return &Engine{
		strategy: strategy,
		mapper:   mapper,
		config:   config,
	}
}

// Strategy returns the engine's strategy.
func (e *Engine) Strategy() Strategy { return e.strategy }

// Solve computes the pairs on scene. A nil or empty scene is a LoadError;
// a board with no candidate above the threshold returns ErrNoCandidates.
// A shortfall against the expected pair count is a warning, not an error.
func (e *Engine) Solve(scene *gocv.Mat) (*Result, error) {
	if scene == nil || scene.Empty() {
		return nil, report.NewLoadError("screenshot", fmt.Errorf("empty image"))
	}

	plan, err := e.strategy.Plan(*scene)
	if err != nil {
		return nil, err
	}
	if len(plan.Items) < 2 {
		return nil, fmt.Errorf("%w: %d cards on board", report.ErrNoCandidates, len(plan.Items))
	}

	assigned := pairing.NewAssigner(e.config.Threshold).Assign(plan.Candidates, len(plan.Items))
	if len(assigned.Pairs) == 0 {
		return nil, fmt.Errorf("%w: nothing scored above %.2f", report.ErrNoCandidates, e.config.Threshold)
	}

	res := &Result{
		Mode:     e.strategy.Mode(),
		Items:    plan.Items,
		Pairs:    assigned.Pairs,
		Warnings: plan.Warnings,
		Summary: report.Summary{
			ExpectedPairs: assigned.Expected,
			FoundPairs:    len(assigned.Pairs),
			UnmatchedIDs:  assigned.Unmatched,
		},
	}

	for _, p := range assigned.Pairs {
		res.Items[p.A].Matched = true
		res.Items[p.B].Matched = true
		res.Clicks = append(res.Clicks, e.click(res.Items[p.A], res.Items[p.B]))
	}

	if !assigned.Complete() {
		w := report.IncompletePairing(assigned.Expected, len(assigned.Pairs), assigned.Unmatched)
		res.Warnings = append(res.Warnings, w)
	}

	for _, w := range res.Warnings {
		log.Printf("Solve warning: %s", w)
	}
	log.Printf("Solved %s board: %d/%d pairs", res.Mode, res.Summary.FoundPairs, res.Summary.ExpectedPairs)

	return res, nil
}

func (e *Engine) click(a, b Item) Click {
	c := Click{
		CellA: grid.Position{Row: a.Row, Col: a.Col},
		CellB: grid.Position{Row: b.Row, Col: b.Col},
	}
	if e.config.Targeting == TargetPixel {
		c.A = e.mapper.PixelPoint(a.Center, e.config.Origin)
		c.B = e.mapper.PixelPoint(b.Center, e.config.Origin)
	} else {
		c.A = e.mapper.CellPoint(a.Row, a.Col)
		c.B = e.mapper.CellPoint(b.Row, b.Col)
	}
	return c
}
