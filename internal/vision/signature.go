// Package vision turns card images into comparable signatures and scores
// pairs of signatures.
package vision

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"
)

// Feature extraction defaults.
const (
	// DefaultMarginX is the fraction of the card width cropped from each side.
	DefaultMarginX = 0.15
	// DefaultMarginY is the fraction of the card height cropped from top and bottom.
	DefaultMarginY = 0.25
	// DefaultBins is the number of histogram bins per HSV channel.
	DefaultBins = 8
)

// OpenCV stores 8-bit hue in [0, 180).
var hsvRanges = []float64{0, 180, 0, 256, 0, 256}

var (
	// ErrEmptyImage is returned when the card image has no pixels.
	ErrEmptyImage = errors.New("card image is empty")
	// ErrCropTooSmall is returned when the content margins leave nothing to compare.
	ErrCropTooSmall = errors.New("card too small for content crop")
)

// Signature is the comparable representation of one card's content.
// It owns plain Go memory and needs no cleanup.
type Signature struct {
	Histogram []float64   // HSV histogram, bins^3 values, L2-normalised
	Patch     *image.Gray // grayscale content region
}

// Config holds feature extraction options.
type Config struct {
	MarginX float64
	MarginY float64
	Bins    int
}

// DefaultConfig returns a Config with the standard crop and bin count.
func DefaultConfig() Config {
	return Config{
		MarginX: DefaultMarginX,
		MarginY: DefaultMarginY,
		Bins:    DefaultBins,
	}
}

// Extractor computes signatures from card images.
type Extractor struct {
	cfg Config
}

// NewExtractor creates an Extractor. Zero or out-of-range fields fall back
// to the defaults.
func NewExtractor(cfg Config) *Extractor {
	def := DefaultConfig()
	if cfg.MarginX < 0 || cfg.MarginX >= 0.5 {
		cfg.MarginX = def.MarginX
	}
	if cfg.MarginY < 0 || cfg.MarginY >= 0.5 {
		cfg.MarginY = def.MarginY
	}
	if cfg.Bins <= 0 {
		cfg.Bins = def.Bins
	}
	return &Extractor{cfg: cfg}
}

// Config returns the effective configuration.
func (e *Extractor) Config() Config {
	return e.cfg
}

// ContentRect returns the region of a width x height card that survives the
// margin crop. Margins are truncated to whole pixels.
func ContentRect(width, height int, marginX, marginY float64) image.Rectangle {
	mx := int(float64(width) * marginX)
	my := int(float64(height) * marginY)
	return image.Rect(mx, my, width-mx, height-my)
}

// Extract crops card to its content region and computes its signature.
// card may be BGR, BGRA or single-channel; it is not modified.
func (e *Extractor) Extract(card gocv.Mat) (Signature, error) {
	if card.Empty() {
		return Signature{}, ErrEmptyImage
	}

	rect := ContentRect(card.Cols(), card.Rows(), e.cfg.MarginX, e.cfg.MarginY)
	if rect.Empty() {
		return Signature{}, fmt.Errorf("%w: %dx%d", ErrCropTooSmall, card.Cols(), card.Rows())
	}

	content := card.Region(rect)
	defer content.Close()

	bgr := toBGR(content)
	defer bgr.Close()

	hist, err := e.histogram(bgr)
	if err != nil {
		return Signature{}, err
	}

	patch, err := grayPatch(bgr)
	if err != nil {
		return Signature{}, err
	}

	return Signature{Histogram: hist, Patch: patch}, nil
}

// histogram computes the L2-normalised HSV histogram of a BGR image.
func (e *Extractor) histogram(bgr gocv.Mat) ([]float64, error) {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(bgr, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()

	hist := gocv.NewMat()
	defer hist.Close()

	b := e.cfg.Bins
	gocv.CalcHist([]gocv.Mat{hsv}, []int{0, 1, 2}, mask, &hist, []int{b, b, b}, hsvRanges, false)

	data, err := hist.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read histogram: %w", err)
	}
	if len(data) != b*b*b {
		return nil, fmt.Errorf("histogram has %d bins, want %d", len(data), b*b*b)
	}

	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = float64(v)
	}

	if n := floats.Norm(out, 2); n > 0 {
		floats.Scale(1/n, out)
	}
	return out, nil
}

// grayPatch converts a BGR image into a Go grayscale image.
func grayPatch(bgr gocv.Mat) (*image.Gray, error) {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)

	img, err := gray.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert grayscale patch: %w", err)
	}

	if g, ok := img.(*image.Gray); ok {
		return g, nil
	}

	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g, nil
}

// toBGR returns a 3-channel BGR copy of src. The caller closes it.
func toBGR(src gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	switch src.Channels() {
	case 1:
		gocv.CvtColor(src, &dst, gocv.ColorGrayToBGR)
	case 4:
		gocv.CvtColor(src, &dst, gocv.ColorBGRAToBGR)
	default:
		src.CopyTo(&dst)
	}
	return dst
}
