// Package fixture generates synthetic screenshots for tests: card grids of
// solid faces and scenes containing copies of textured templates.
package fixture

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"math/rand"

	"gocv.io/x/gocv"
)

// frameColor is the card border drawn around every grid cell.
var frameColor = color.RGBA{R: 40, G: 40, B: 40, A: 255}

// Palette returns n distinct, fully saturated colours, n <= 16. Each lands in
// a different bin of an 8x8x8 HSV histogram: hues sit at bin centres and
// the second eight use a darker value.
func Palette(n int) []color.RGBA {
	out := make([]color.RGBA, 0, n)
	for i := 0; i < n; i++ {
		hue := 45*float64(i%8) + 22.5
		value := 1.0
		if i >= 8 {
			value = 150.0 / 255.0
		}
		out = append(out, hsv(hue, 1, value))
	}
	return out
}

// hsv converts hue in degrees, saturation and value in [0, 1] to RGBA.
func hsv(h, s, v float64) color.RGBA {
	c := v * s
	hp := h / 60
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))
	var r, g, b float64
	switch int(hp) {
	case 0:
		r, g, b = c, x, 0
	case 1:
		r, g, b = x, c, 0
	case 2:
		r, g, b = 0, c, x
	case 3:
		r, g, b = 0, x, c
	case 4:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	m := v - c
	to8 := func(f float64) uint8 { return uint8(math.Round((f + m) * 255)) }
	return color.RGBA{R: to8(r), G: to8(g), B: to8(b), A: 255}
}

// Grid describes a generated card grid.
type Grid struct {
	Rows, Cols   int
	CellW, CellH int
	Border       int
	Faces        []int // face index per cell id
	Palette      []color.RGBA
}

// ShuffledGrid lays out rows*cols/2 faces, each twice, in random cells
// chosen with seed.
func ShuffledGrid(rows, cols, cellW, cellH int, seed int64) Grid {
	n := rows * cols
	faces := make([]int, n)
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	for i, cell := range perm {
		faces[cell] = i / 2
	}
	return Grid{
		Rows:    rows,
		Cols:    cols,
		CellW:   cellW,
		CellH:   cellH,
		Border:  4,
		Faces:   faces,
		Palette: Palette(n / 2),
	}
}

// Image renders the grid as an RGBA image: each cell a solid face colour
// inside a dark frame.
func (g Grid) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, g.Cols*g.CellW, g.Rows*g.CellH))
	for id, face := range g.Faces {
		row, col := id/g.Cols, id%g.Cols
		cell := image.Rect(col*g.CellW, row*g.CellH, (col+1)*g.CellW, (row+1)*g.CellH)
		draw.Draw(img, cell, image.NewUniform(frameColor), image.Point{}, draw.Src)
		draw.Draw(img, cell.Inset(g.Border), image.NewUniform(g.Palette[face]), image.Point{}, draw.Src)
	}
	return img
}

// Mat renders the grid as a BGR Mat. The caller closes it.
func (g Grid) Mat() (gocv.Mat, error) {
	return gocv.ImageToMatRGB(g.Image())
}

// Swap returns a copy of g with the faces of cells a and b exchanged.
func (g Grid) Swap(a, b int) Grid {
	faces := make([]int, len(g.Faces))
	copy(faces, g.Faces)
	faces[a], faces[b] = faces[b], faces[a]
	g.Faces = faces
	return g
}

// Partner returns the other cell showing the same face as cell id, or -1.
func (g Grid) Partner(id int) int {
	for other, face := range g.Faces {
		if other != id && face == g.Faces[id] {
			return other
		}
	}
	return -1
}

// Noise returns a w x h grayscale image of uniform noise seeded by seed,
// with values in [lo, hi].
func Noise(w, h int, seed int64, lo, hi uint8) *image.Gray {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewGray(image.Rect(0, 0, w, h))
	span := int(hi) - int(lo) + 1
	for i := range img.Pix {
		img.Pix[i] = lo + uint8(rng.Intn(span))
	}
	return img
}

// Scene is a generated screenshot containing template copies on a textured
// background.
type Scene struct {
	Image     *image.RGBA
	Templates []*image.RGBA
	// Placements[i] lists the top-left corners of the copies of template i.
	Placements [][]image.Point
}

// NewScene creates a w x h background of low-contrast noise.
func NewScene(w, h int, seed int64) *Scene {
	bg := Noise(w, h, seed, 100, 140)
	img := image.NewRGBA(bg.Bounds())
	draw.Draw(img, img.Bounds(), bg, image.Point{}, draw.Src)
	return &Scene{Image: img}
}

// AddTemplate creates a high-contrast textured w x h template and returns
// its index.
func (s *Scene) AddTemplate(w, h int, seed int64) int {
	tex := Noise(w, h, seed, 0, 255)
	img := image.NewRGBA(tex.Bounds())
	draw.Draw(img, img.Bounds(), tex, image.Point{}, draw.Src)
	s.Templates = append(s.Templates, img)
	s.Placements = append(s.Placements, nil)
	return len(s.Templates) - 1
}

// Place copies template i onto the scene with its top-left corner at p.
func (s *Scene) Place(i int, p image.Point) {
	t := s.Templates[i]
	draw.Draw(s.Image, t.Bounds().Add(p), t, image.Point{}, draw.Src)
	s.Placements[i] = append(s.Placements[i], p)
}

// Center returns the expected detection centre of a placement of template i.
func (s *Scene) Center(i int, p image.Point) image.Point {
	b := s.Templates[i].Bounds()
	return image.Pt(p.X+b.Dx()/2, p.Y+b.Dy()/2)
}

// Mat renders the scene as a BGR Mat. The caller closes it.
func (s *Scene) Mat() (gocv.Mat, error) {
	return gocv.ImageToMatRGB(s.Image)
}

// TemplateMat renders template i as a BGR Mat. The caller closes it.
func (s *Scene) TemplateMat(i int) (gocv.Mat, error) {
	return gocv.ImageToMatRGB(s.Templates[i])
}

// Encode returns img as PNG-encoded bytes via OpenCV.
func Encode(img image.Image) ([]byte, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, mat)
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}
