package vision

import (
	"image"
	"math"
	"math/rand"
	"testing"
)

func noisePatch(w, h int, seed int64) *image.Gray {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	return img
}

func flatPatch(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func oneHot(n, i int) []float64 {
	h := make([]float64, n)
	h[i] = 1
	return h
}

func TestHistogramCorrelation(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{
			name: "identical",
			a:    []float64{1, 2, 3, 4},
			b:    []float64{1, 2, 3, 4},
			want: 1,
		},
		{
			name: "scaled",
			a:    []float64{1, 2, 3, 4},
			b:    []float64{2, 4, 6, 8},
			want: 1,
		},
		{
			name: "inverted",
			a:    []float64{1, 2, 3, 4},
			b:    []float64{4, 3, 2, 1},
			want: -1,
		},
		{
			name: "length mismatch",
			a:    []float64{1, 2},
			b:    []float64{1, 2, 3},
			want: 0,
		},
		{
			name: "constant input",
			a:    []float64{1, 1, 1},
			b:    []float64{1, 2, 3},
			want: 0,
		},
		{
			name: "empty",
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HistogramCorrelation(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("HistogramCorrelation() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestPatchCorrelation(t *testing.T) {
	a := noisePatch(40, 30, 1)
	b := noisePatch(40, 30, 2)

	tests := []struct {
		name    string
		a, b    *image.Gray
		wantMin float64
		wantMax float64
	}{
		{name: "identical", a: a, b: a, wantMin: 1 - 1e-9, wantMax: 1},
		{name: "independent noise", a: a, b: b, wantMin: -0.2, wantMax: 0.2},
		{name: "same flat", a: flatPatch(10, 10, 80), b: flatPatch(10, 10, 81), wantMin: 1, wantMax: 1},
		{name: "different flat", a: flatPatch(10, 10, 80), b: flatPatch(10, 10, 200), wantMin: 0, wantMax: 0},
		{name: "flat against texture", a: flatPatch(40, 30, 80), b: a, wantMin: 0, wantMax: 0},
		{name: "nil", a: nil, b: a, wantMin: 0, wantMax: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PatchCorrelation(tt.a, tt.b)
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("PatchCorrelation() = %f, want in [%f, %f]", got, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestPatchCorrelation_SymmetricAcrossSizes(t *testing.T) {
	a := noisePatch(40, 30, 3)
	b := resizeGray(a, 36, 27)

	ab := PatchCorrelation(a, b)
	ba := PatchCorrelation(b, a)
	if ab != ba {
		t.Errorf("PatchCorrelation not symmetric: %f vs %f", ab, ba)
	}
}

func TestScorer_Gate(t *testing.T) {
	s := NewScorer()
	a := Signature{Histogram: oneHot(512, 3), Patch: noisePatch(20, 20, 1)}
	b := Signature{Histogram: oneHot(512, 9), Patch: a.Patch}

	if got := s.Score(a, b); !math.IsInf(got, -1) {
		t.Errorf("Score() = %f, want Excluded", got)
	}
	if _, _, ok := s.Components(a, b); ok {
		t.Error("Components() ok = true, want false")
	}
}

func TestScorer_Combined(t *testing.T) {
	s := NewScorer()
	patch := noisePatch(30, 20, 4)
	a := Signature{Histogram: oneHot(512, 5), Patch: patch}

	got := s.Score(a, a)
	if math.Abs(got-1) > 1e-9 {
		t.Errorf("Score(a, a) = %f, want 1", got)
	}

	b := Signature{Histogram: oneHot(512, 5), Patch: noisePatch(30, 20, 5)}
	hist, structural, ok := s.Components(a, b)
	if !ok {
		t.Fatal("Components() ok = false, want true")
	}
	want := 0.5*hist + 0.5*structural
	if got := s.Score(a, b); math.Abs(got-want) > 1e-12 {
		t.Errorf("Score() = %f, want %f", got, want)
	}
}

func TestScorer_Symmetry(t *testing.T) {
	s := NewScorer()
	rng := rand.New(rand.NewSource(9))

	sigs := make([]Signature, 6)
	for i := range sigs {
		hist := make([]float64, 64)
		for k := range hist {
			hist[k] = rng.Float64()
		}
		// Two families of near-identical histograms so some pairs pass the gate.
		if i%2 == 1 {
			copy(hist, sigs[i-1].Histogram)
			hist[0] += 0.01
		}
		sigs[i] = Signature{Histogram: hist, Patch: noisePatch(20+i, 20-i, int64(i))}
	}

	for i := range sigs {
		for j := range sigs {
			ab := s.Score(sigs[i], sigs[j])
			ba := s.Score(sigs[j], sigs[i])
			if ab != ba && !(math.IsInf(ab, -1) && math.IsInf(ba, -1)) {
				t.Errorf("Score(%d, %d) = %f, Score(%d, %d) = %f", i, j, ab, j, i, ba)
			}
		}
	}
}
