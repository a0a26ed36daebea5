package detector

import (
	"fmt"
	"image"
	"log"
	"sort"
	"sync"

	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/pairclick/internal/report"
)

// maxProbesPerHit bounds the masking loop for a template: every probe masks
// a fresh region, so this only matters for pathological surfaces.
const maxProbesPerHit = 16

// TemplateDetector finds instances of a fixed template library in a scene
// using normalised cross-correlation.
type TemplateDetector struct {
	config    Config
	templates []*Template
	mu        sync.RWMutex
}

// NewTemplateDetector creates a detector over templates, which it takes
// ownership of. An empty library is a LoadError.
func NewTemplateDetector(config Config, templates []*Template) (*TemplateDetector, error) {
	if len(templates) == 0 {
		return nil, report.NewLoadError("template library", ErrNoTemplates)
	}

	sorted := append([]*Template(nil), templates...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	return &TemplateDetector{
		config:    config.normalize(),
		templates: sorted,
	}, nil
}

// Config returns the effective configuration.
func (d *TemplateDetector) Config() Config {
	return d.config
}

// Templates returns the library in search order.
func (d *TemplateDetector) Templates() []*Template {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]*Template(nil), d.templates...)
}

// templateHits is one worker's output slot.
type templateHits struct {
	hits      []Detection
	ambiguous bool
}

// Detect searches the scene for every template. Templates are searched
// concurrently; the merge is deterministic: templates in id order, hits in
// descending confidence, and a hit within DedupTolerance of an already
// accepted hit (from any template) is dropped. Each template's hits are
// capped at MaxPerTemplate before the merge, so a capped hit that loses to
// another template is not replaced by that template's next match.
func (d *TemplateDetector) Detect(scene *gocv.Mat) (Result, error) {
	if scene == nil || scene.Empty() {
		return Result{}, report.NewLoadError("scene", fmt.Errorf("empty screenshot"))
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	gray := toGray(*scene)
	defer gray.Close()

	slots := make([]templateHits, len(d.templates))

	var g errgroup.Group
	g.SetLimit(d.config.Workers)
	for i, t := range d.templates {
		g.Go(func() error {
			hits, ambiguous, err := d.search(gray, t)
			if err != nil {
				return fmt.Errorf("template %d (%s): %w", t.ID, t.Label, err)
			}
			slots[i] = templateHits{hits: hits, ambiguous: ambiguous}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var result Result
	for i, slot := range slots {
		t := d.templates[i]
		if slot.ambiguous {
			result.Warnings = append(result.Warnings, report.AmbiguousTemplate(t.ID, t.Label, d.config.MaxPerTemplate))
		}

		for _, hit := range slot.hits {
			if d.isDuplicate(result.Detections, hit) {
				continue
			}
			result.Detections = append(result.Detections, hit)
		}
	}

	return result, nil
}

func (d *TemplateDetector) isDuplicate(accepted []Detection, hit Detection) bool {
	for _, prev := range accepted {
		if duplicateOf(prev, hit.CenterX, hit.CenterY, d.config.DedupTolerance) {
			return true
		}
	}
	return false
}

// search runs the correlate-and-mask loop for one template against the
// grayscale scene. It returns at most MaxPerTemplate hits in descending
// confidence and whether a further hit above threshold was suppressed.
func (d *TemplateDetector) search(scene gocv.Mat, t *Template) ([]Detection, bool, error) {
	if t.Width > scene.Cols() || t.Height > scene.Rows() {
		log.Printf("Template %d (%s) is larger than the scene, skipping", t.ID, t.Label)
		return nil, false, nil
	}

	tmpl := toGray(t.Image)
	defer tmpl.Close()

	surface := gocv.NewMat()
	defer surface.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	gocv.MatchTemplate(scene, tmpl, &surface, gocv.TmCcoeffNormed, mask)
	if surface.Empty() {
		return nil, false, fmt.Errorf("empty correlation surface")
	}

	limit := d.config.MaxPerTemplate
	suppress := max(t.Width, t.Height) / 2
	bounds := image.Rect(0, 0, surface.Cols(), surface.Rows())

	var hits []Detection
	for probe := 0; probe < (limit+1)*maxProbesPerHit && len(hits) <= limit; probe++ {
		_, maxVal, _, maxLoc := gocv.MinMaxLoc(surface)
		if float64(maxVal) < d.config.Threshold {
			break
		}

		cx := maxLoc.X + t.Width/2
		cy := maxLoc.Y + t.Height/2

		dup := false
		for _, h := range hits {
			if duplicateOf(h, cx, cy, d.config.DedupTolerance) {
				dup = true
				break
			}
		}
		if !dup {
			hits = append(hits, Detection{
				TemplateID: t.ID,
				Label:      t.Label,
				CenterX:    cx,
				CenterY:    cy,
				Confidence: float64(maxVal),
				Row:        -1,
				Col:        -1,
			})
		}

		masked := image.Rect(
			maxLoc.X-suppress, maxLoc.Y-suppress,
			maxLoc.X+t.Width+suppress, maxLoc.Y+t.Height+suppress,
		).Intersect(bounds)
		region := surface.Region(masked)
		region.SetTo(gocv.NewScalar(0, 0, 0, 0))
		region.Close()
	}

	ambiguous := len(hits) > limit
	if ambiguous {
		hits = hits[:limit]
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Confidence > hits[j].Confidence })
	return hits, ambiguous, nil
}

// Close releases all template images.
func (d *TemplateDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	CloseAll(d.templates)
	d.templates = nil
	return nil
}

// toGray returns a single-channel copy of src. The caller closes it.
func toGray(src gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	switch src.Channels() {
	case 1:
		src.CopyTo(&dst)
	case 4:
		gocv.CvtColor(src, &dst, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(src, &dst, gocv.ColorBGRToGray)
	}
	return dst
}
