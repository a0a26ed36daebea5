package vision

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
	"gonum.org/v1/gonum/stat"
)

// Scoring defaults.
const (
	// DefaultHistogramGate is the histogram correlation below which the
	// structural comparison is skipped and the pair is excluded.
	DefaultHistogramGate = 0.85
	// DefaultHistogramWeight weights histSim in the combined score.
	DefaultHistogramWeight = 0.5
	// DefaultStructureWeight weights structSim in the combined score.
	DefaultStructureWeight = 0.5

	// flatVariance is the per-pixel variance under which a patch is treated as flat.
	flatVariance = 1e-6
	// flatMeanTolerance is how far two flat patches' grey levels may differ and still match.
	flatMeanTolerance = 2.0
)

// Excluded is the score of a pair that failed the histogram gate.
var Excluded = math.Inf(-1)

// Scorer combines histogram and structural similarity into one score in
// [-1, 1]. The zero value is not usable; use NewScorer.
type Scorer struct {
	HistogramWeight float64
	StructureWeight float64
	Gate            float64
}

// NewScorer returns a Scorer with equal weights and the default gate.
func NewScorer() *Scorer {
	return &Scorer{
		HistogramWeight: DefaultHistogramWeight,
		StructureWeight: DefaultStructureWeight,
		Gate:            DefaultHistogramGate,
	}
}

// Components returns both similarity terms. ok is false when the histogram
// gate rejected the pair, in which case structural is not computed.
func (s *Scorer) Components(a, b Signature) (hist, structural float64, ok bool) {
	hist = HistogramCorrelation(a.Histogram, b.Histogram)
	if hist < s.Gate {
		return hist, 0, false
	}
	return hist, PatchCorrelation(a.Patch, b.Patch), true
}

// Score returns the combined similarity of a and b, or Excluded when the
// histograms are too different to be the same face. Score(a, b) == Score(b, a).
func (s *Scorer) Score(a, b Signature) float64 {
	hist, structural, ok := s.Components(a, b)
	if !ok {
		return Excluded
	}
	return s.HistogramWeight*hist + s.StructureWeight*structural
}

// HistogramCorrelation is the Pearson correlation of two histograms, the
// same measure as OpenCV's HISTCMP_CORREL. Mismatched lengths and
// degenerate inputs score 0.
func HistogramCorrelation(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	c := stat.Correlation(a, b, nil)
	if math.IsNaN(c) {
		return 0
	}
	return clamp(c)
}

// PatchCorrelation is the normalised correlation coefficient of two
// grayscale patches evaluated at a single offset. When sizes differ, the
// smaller patch is resized to the larger so the result does not depend on
// argument order.
func PatchCorrelation(a, b *image.Gray) float64 {
	if a == nil || b == nil || a.Bounds().Empty() || b.Bounds().Empty() {
		return 0
	}

	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		if larger(bb, ab) {
			a = resizeGray(a, bb.Dx(), bb.Dy())
		} else {
			b = resizeGray(b, ab.Dx(), ab.Dy())
		}
	}

	return ncc(a, b)
}

// larger reports whether r is the canonical resize target over s.
func larger(r, s image.Rectangle) bool {
	ra, sa := r.Dx()*r.Dy(), s.Dx()*s.Dy()
	if ra != sa {
		return ra > sa
	}
	if r.Dx() != s.Dx() {
		return r.Dx() > s.Dx()
	}
	return r.Dy() > s.Dy()
}

func resizeGray(src *image.Gray, w, h int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, w, h))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// ncc computes the zero-mean normalised cross-correlation of equal-sized patches.
func ncc(a, b *image.Gray) float64 {
	ab, bb := a.Bounds(), b.Bounds()
	w, h := ab.Dx(), ab.Dy()
	n := float64(w * h)

	var sumA, sumB float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sumA += float64(a.GrayAt(ab.Min.X+x, ab.Min.Y+y).Y)
			sumB += float64(b.GrayAt(bb.Min.X+x, bb.Min.Y+y).Y)
		}
	}
	meanA, meanB := sumA/n, sumB/n

	var saa, sbb, sab float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			da := float64(a.GrayAt(ab.Min.X+x, ab.Min.Y+y).Y) - meanA
			db := float64(b.GrayAt(bb.Min.X+x, bb.Min.Y+y).Y) - meanB
			saa += da * da
			sbb += db * db
			sab += da * db
		}
	}

	flatA := saa/n < flatVariance
	flatB := sbb/n < flatVariance
	switch {
	case flatA && flatB:
		if math.Abs(meanA-meanB) <= flatMeanTolerance {
			return 1
		}
		return 0
	case flatA || flatB:
		return 0
	}

	return clamp(sab / math.Sqrt(saa*sbb))
}

func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
