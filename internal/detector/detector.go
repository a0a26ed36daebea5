// Package detector locates card faces in a screenshot by template matching.
package detector

import (
	"gocv.io/x/gocv"

	"github.com/ayusman/pairclick/internal/report"
)

// Detector defines the interface for card detection implementations.
type Detector interface {
	// Detect searches scene for every known card face. scene is a BGR
	// screenshot and is not modified.
	Detect(scene *gocv.Mat) (Result, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Detection is a located card instance. Centres are physical image pixels.
// Row and Col are -1 until a grid position has been resolved.
type Detection struct {
	TemplateID int     `json:"template_id"`
	Label      string  `json:"label"`
	CenterX    int     `json:"center_x"`
	CenterY    int     `json:"center_y"`
	Confidence float64 `json:"confidence"`
	Row        int     `json:"row"`
	Col        int     `json:"col"`
}

// Result is the outcome of one Detect call.
type Result struct {
	Detections []Detection
	Warnings   []report.Warning
}

// Config holds configuration options for template detection.
type Config struct {
	// Threshold is the minimum normalised correlation for a hit (0.0-1.0].
	Threshold float64

	// MaxPerTemplate caps detections per template. Each face appears twice.
	MaxPerTemplate int

	// DedupTolerance is the per-axis pixel distance under which two
	// detections are the same card slot.
	DedupTolerance int

	// Workers bounds how many templates are searched concurrently.
	// Values <= 0 search one template at a time.
	Workers int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Threshold:      0.8,
		MaxPerTemplate: 2,
		DedupTolerance: 60,
		Workers:        4,
	}
}

// normalize fills unset or invalid fields from DefaultConfig.
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.Threshold <= 0 || c.Threshold > 1 {
		c.Threshold = def.Threshold
	}
	if c.MaxPerTemplate <= 0 {
		c.MaxPerTemplate = def.MaxPerTemplate
	}
	if c.DedupTolerance <= 0 {
		c.DedupTolerance = def.DedupTolerance
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	return c
}

// duplicateOf reports whether (x, y) lies within tol of d on both axes.
func duplicateOf(d Detection, x, y, tol int) bool {
	return abs(d.CenterX-x) < tol && abs(d.CenterY-y) < tol
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
