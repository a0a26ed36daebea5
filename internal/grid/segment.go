// Package grid maps between card grids and pixel positions: it splits a
// known-size grid into cells and recovers rows and columns from detected
// card centres.
package grid

import (
	"errors"
	"fmt"
	"image"

	"github.com/ayusman/pairclick/internal/vision"
)

// ErrInvalidGrid is returned for non-positive grid dimensions or an image
// too small to hold one pixel per cell.
var ErrInvalidGrid = errors.New("invalid grid")

// Card is one grid cell. It lives for a single solve.
type Card struct {
	ID        int
	Row       int
	Col       int
	Region    image.Rectangle
	Signature vision.Signature
	Matched   bool
}

// Center returns the pixel centre of the card's region.
func (c Card) Center() image.Point {
	return image.Pt((c.Region.Min.X+c.Region.Max.X)/2, (c.Region.Min.Y+c.Region.Max.Y)/2)
}

// Segment splits a width x height image into rows x cols equal cells.
// Cell sizes use integer division; remainder pixels on the right and bottom
// belong to no cell. Cards are returned in id order, id = row*cols + col.
func Segment(width, height, rows, cols int) ([]Card, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidGrid, rows, cols)
	}

	cellW := width / cols
	cellH := height / rows
	if cellW == 0 || cellH == 0 {
		return nil, fmt.Errorf("%w: %dx%d image cannot hold %dx%d cells", ErrInvalidGrid, width, height, rows, cols)
	}

	cards := make([]Card, 0, rows*cols)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			x := col * cellW
			y := row * cellH
			cards = append(cards, Card{
				ID:     row*cols + col,
				Row:    row,
				Col:    col,
				Region: image.Rect(x, y, x+cellW, y+cellH),
			})
		}
	}

	return cards, nil
}
