package engine

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var (
	pairColor      = color.RGBA{G: 220, A: 255}
	unmatchedColor = color.RGBA{R: 230, A: 255}
)

// Annotate returns a copy of scene with each pair's cards joined by a line
// and labelled with the pair number; unmatched cards get a red marker. The
// caller closes the returned Mat.
func Annotate(scene gocv.Mat, res *Result) gocv.Mat {
	out := scene.Clone()
	if res == nil {
		return out
	}

	for i, p := range res.Pairs {
		a, b := res.Items[p.A].Center, res.Items[p.B].Center
		gocv.Line(&out, a, b, pairColor, 2)
		label := fmt.Sprintf("%d", i+1)
		gocv.PutText(&out, label, a.Add(image.Pt(-6, 6)), gocv.FontHersheyPlain, 1.4, pairColor, 2)
		gocv.PutText(&out, label, b.Add(image.Pt(-6, 6)), gocv.FontHersheyPlain, 1.4, pairColor, 2)
	}

	for _, id := range res.Summary.UnmatchedIDs {
		c := res.Items[id].Center
		gocv.Circle(&out, c, 10, unmatchedColor, 2)
	}

	return out
}
