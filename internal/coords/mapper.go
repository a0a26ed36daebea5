// Package coords converts grid indices and image pixels into the logical
// screen coordinates a clicker consumes.
//
// Two pixel spaces are involved. Screenshots, template detections, the
// anchor reference point and the grid spacing are measured in physical
// pixels. Click targets are logical pixels. Physical = logical * Scale.
package coords

import (
	"errors"
	"fmt"
	"image"
)

// Card spacing defaults, centre to centre, in physical pixels.
const (
	DefaultHorizontalSpacing = 123
	DefaultVerticalSpacing   = 170
)

// ErrInvalidScale is returned for a non-positive scaling factor.
var ErrInvalidScale = errors.New("scaling factor must be positive")

// Point is a screen position.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

func (p Point) String() string {
	return fmt.Sprintf("(%.1f, %.1f)", p.X, p.Y)
}

// Anchor ties image space to the screen: Reference is the physical position
// of the centre of cell (0, 0) and Scale the physical/logical pixel ratio.
type Anchor struct {
	Reference Point   `json:"reference" yaml:"reference"`
	Scale     float64 `json:"scale" yaml:"scale"`
}

// Spacing is the physical distance between neighbouring card centres.
type Spacing struct {
	Horizontal float64 `json:"horizontal" yaml:"horizontal"`
	Vertical   float64 `json:"vertical" yaml:"vertical"`
}

// DefaultSpacing returns the calibrated spacing of the reference deployment.
func DefaultSpacing() Spacing {
	return Spacing{Horizontal: DefaultHorizontalSpacing, Vertical: DefaultVerticalSpacing}
}

// Mapper converts positions to logical screen coordinates. It is immutable
// and safe for concurrent use.
type Mapper struct {
	anchor  Anchor
	spacing Spacing
}

// NewMapper validates anchor and returns a Mapper.
func NewMapper(anchor Anchor, spacing Spacing) (*Mapper, error) {
	if anchor.Scale <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScale, anchor.Scale)
	}
	return &Mapper{anchor: anchor, spacing: spacing}, nil
}

// Anchor returns the mapper's anchor.
func (m *Mapper) Anchor() Anchor { return m.anchor }

// Spacing returns the mapper's spacing.
func (m *Mapper) Spacing() Spacing { return m.spacing }

// CellPoint returns the logical screen position of the centre of cell (row, col).
func (m *Mapper) CellPoint(row, col int) Point {
	return m.ToLogical(Point{
		X: m.anchor.Reference.X + float64(col)*m.spacing.Horizontal,
		Y: m.anchor.Reference.Y + float64(row)*m.spacing.Vertical,
	})
}

// PixelPoint returns the logical screen position of pixel p in a screenshot
// whose top-left corner sits at the physical screen position origin.
func (m *Mapper) PixelPoint(p image.Point, origin Point) Point {
	return m.ToLogical(Point{
		X: origin.X + float64(p.X),
		Y: origin.Y + float64(p.Y),
	})
}

// ToLogical divides a physical position by the scaling factor.
func (m *Mapper) ToLogical(p Point) Point {
	return Point{X: p.X / m.anchor.Scale, Y: p.Y / m.anchor.Scale}
}

// ToPhysical multiplies a logical position by the scaling factor.
func (m *Mapper) ToPhysical(p Point) Point {
	return Point{X: p.X * m.anchor.Scale, Y: p.Y * m.anchor.Scale}
}
