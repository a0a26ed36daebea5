// Package engine solves a pair-matching board: it turns one screenshot into
// an ordered list of card pairs and the screen points to click for each.
package engine

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ayusman/pairclick/internal/detector"
	"github.com/ayusman/pairclick/internal/grid"
	"github.com/ayusman/pairclick/internal/pairing"
	"github.com/ayusman/pairclick/internal/report"
	"github.com/ayusman/pairclick/internal/vision"
)

// Mode names a matching strategy.
type Mode string

const (
	// ModeGrid splits a known rows x cols grid and compares every cell.
	ModeGrid Mode = "grid"
	// ModeTemplate searches the screenshot for a library of card faces.
	ModeTemplate Mode = "template"
)

// Item is one card on the board, whichever way it was found.
type Item struct {
	ID      int         `json:"id"`
	Row     int         `json:"row"`
	Col     int         `json:"col"`
	Center  image.Point `json:"center"`
	Label   string      `json:"label,omitempty"`
	Matched bool        `json:"matched"`
}

// Plan is what a strategy hands to the pair assigner: the board's items,
// scored candidate pairs between them, and any warnings so far.
type Plan struct {
	Items      []Item
	Candidates []pairing.Candidate
	Warnings   []report.Warning
}

// Strategy locates cards in a screenshot and scores candidate pairs. The
// engine owns everything after that: assignment and coordinate mapping.
type Strategy interface {
	Mode() Mode
	Plan(scene gocv.Mat) (Plan, error)
}

// GridStrategy handles boards whose rows and columns are known ahead of time.
type GridStrategy struct {
	Rows      int
	Cols      int
	Extractor *vision.Extractor
	Scorer    *vision.Scorer
}

// NewGridStrategy creates a GridStrategy with default extraction and scoring.
func NewGridStrategy(rows, cols int) *GridStrategy {
	return &GridStrategy{
		Rows:      rows,
		Cols:      cols,
		Extractor: vision.NewExtractor(vision.DefaultConfig()),
		Scorer:    vision.NewScorer(),
	}
}

// Mode implements Strategy.
func (s *GridStrategy) Mode() Mode { return ModeGrid }

// Plan segments the scene, extracts a signature per cell and scores every
// unordered pair of cells.
func (s *GridStrategy) Plan(scene gocv.Mat) (Plan, error) {
	cards, err := grid.Segment(scene.Cols(), scene.Rows(), s.Rows, s.Cols)
	if err != nil {
		return Plan{}, err
	}

	for i := range cards {
		cell := scene.Region(cards[i].Region)
		sig, err := s.Extractor.Extract(cell)
		cell.Close()
		if err != nil {
			return Plan{}, fmt.Errorf("card %d: %w", cards[i].ID, err)
		}
		cards[i].Signature = sig
	}

	plan := Plan{Items: make([]Item, len(cards))}
	for i, c := range cards {
		plan.Items[i] = Item{ID: c.ID, Row: c.Row, Col: c.Col, Center: c.Center()}
	}
	plan.Candidates = pairing.All(len(cards), func(i, j int) float64 {
		return s.Scorer.Score(cards[i].Signature, cards[j].Signature)
	})

	return plan, nil
}

// TemplateStrategy handles boards whose layout is unknown: it finds cards
// with a template detector and recovers rows and columns by clustering.
type TemplateStrategy struct {
	Detector detector.Detector
	Resolver *grid.Resolver
}

// NewTemplateStrategy creates a TemplateStrategy with the default
// clustering tolerance.
func NewTemplateStrategy(d detector.Detector) *TemplateStrategy {
	return &TemplateStrategy{
		Detector: d,
		Resolver: grid.NewResolver(grid.DefaultClusterTolerance),
	}
}

// Mode implements Strategy.
func (s *TemplateStrategy) Mode() Mode { return ModeTemplate }

// Plan detects cards and pairs detections of the same template. A
// candidate's score is the mean detection confidence of its two cards.
func (s *TemplateStrategy) Plan(scene gocv.Mat) (Plan, error) {
	res, err := s.Detector.Detect(&scene)
	if err != nil {
		return Plan{}, err
	}

	dets := res.Detections
	centers := make([]image.Point, len(dets))
	for i, d := range dets {
		centers[i] = image.Pt(d.CenterX, d.CenterY)
	}
	positions, _, warnings := s.Resolver.Resolve(centers)

	plan := Plan{
		Items:    make([]Item, len(dets)),
		Warnings: append(res.Warnings, warnings...),
	}
	for i, d := range dets {
		plan.Items[i] = Item{
			ID:     i,
			Row:    positions[i].Row,
			Col:    positions[i].Col,
			Center: centers[i],
			Label:  d.Label,
		}
	}

	plan.Candidates = pairing.All(len(dets), func(i, j int) float64 {
		if dets[i].TemplateID != dets[j].TemplateID {
			return vision.Excluded
		}
		return (dets[i].Confidence + dets[j].Confidence) / 2
	})

	return plan, nil
}
