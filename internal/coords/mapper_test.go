package coords

import (
	"errors"
	"image"
	"math"
	"testing"
)

func TestNewMapper_InvalidScale(t *testing.T) {
	for _, scale := range []float64{0, -1} {
		_, err := NewMapper(Anchor{Scale: scale}, DefaultSpacing())
		if !errors.Is(err, ErrInvalidScale) {
			t.Errorf("NewMapper(scale %v) error = %v, want ErrInvalidScale", scale, err)
		}
	}
}

func TestMapper_CellPoint(t *testing.T) {
	tests := []struct {
		name     string
		anchor   Anchor
		row, col int
		want     Point
	}{
		{
			name:   "origin at scale 1",
			anchor: Anchor{Reference: Point{X: 500, Y: 300}, Scale: 1},
			want:   Point{X: 500, Y: 300},
		},
		{
			name:   "retina scale",
			anchor: Anchor{Reference: Point{X: 500, Y: 300}, Scale: 2},
			row:    1, col: 2,
			want: Point{X: (500 + 2*123) / 2.0, Y: (300 + 170) / 2.0},
		},
		{
			name:   "fractional scale",
			anchor: Anchor{Reference: Point{X: 0, Y: 0}, Scale: 1.25},
			row:    4, col: 5,
			want: Point{X: 5 * 123 / 1.25, Y: 4 * 170 / 1.25},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMapper(tt.anchor, DefaultSpacing())
			if err != nil {
				t.Fatalf("NewMapper() error = %v", err)
			}
			got := m.CellPoint(tt.row, tt.col)
			if math.Abs(got.X-tt.want.X) > 1e-9 || math.Abs(got.Y-tt.want.Y) > 1e-9 {
				t.Errorf("CellPoint(%d, %d) = %v, want %v", tt.row, tt.col, got, tt.want)
			}
		})
	}
}

func TestMapper_Inversion(t *testing.T) {
	anchor := Anchor{Reference: Point{X: 812, Y: 418}, Scale: 2}
	spacing := DefaultSpacing()
	m, err := NewMapper(anchor, spacing)
	if err != nil {
		t.Fatalf("NewMapper() error = %v", err)
	}

	for row := 0; row < 5; row++ {
		for col := 0; col < 6; col++ {
			p := m.ToPhysical(m.CellPoint(row, col))
			gotCol := int(math.Round((p.X - anchor.Reference.X) / spacing.Horizontal))
			gotRow := int(math.Round((p.Y - anchor.Reference.Y) / spacing.Vertical))
			if gotRow != row || gotCol != col {
				t.Errorf("cell (%d, %d) inverted to (%d, %d)", row, col, gotRow, gotCol)
			}
		}
	}
}

func TestMapper_PixelPoint(t *testing.T) {
	m, err := NewMapper(Anchor{Scale: 2}, DefaultSpacing())
	if err != nil {
		t.Fatalf("NewMapper() error = %v", err)
	}

	got := m.PixelPoint(image.Pt(300, 120), Point{X: 100, Y: 40})
	want := Point{X: 200, Y: 80}
	if got != want {
		t.Errorf("PixelPoint() = %v, want %v", got, want)
	}
}
