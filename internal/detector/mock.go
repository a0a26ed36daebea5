package detector

import (
	"gocv.io/x/gocv"

	"github.com/ayusman/pairclick/internal/report"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	detections []Detection
	warnings   []report.Warning
	err        error
	calls      int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetDetections sets the detections that will be returned by Detect.
func (m *MockDetector) SetDetections(detections []Detection) {
	m.detections = detections
}

// SetWarnings sets the warnings that will be returned by Detect.
func (m *MockDetector) SetWarnings(warnings []report.Warning) {
	m.warnings = warnings
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.err = err
}

// Calls returns how many times Detect was invoked.
func (m *MockDetector) Calls() int {
	return m.calls
}

// Detect returns the pre-configured detections or error.
func (m *MockDetector) Detect(scene *gocv.Mat) (Result, error) {
	m.calls++
	if m.err != nil {
		return Result{}, m.err
	}
	out := make([]Detection, len(m.detections))
	copy(out, m.detections)
	return Result{Detections: out, Warnings: m.warnings}, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// GridDetections returns a preset layout: pairs x 2 detections on a grid of
// cols columns with the given pitch, starting at origin. Detection 2k and
// 2k+1 share template k, placed at cells k and pairs*2-1-k so that the two
// copies of each face are far apart.
func GridDetections(pairs, cols int, originX, originY, pitchX, pitchY int) []Detection {
	total := pairs * 2
	cells := make([]Detection, 0, total)
	place := func(tid, cell int) Detection {
		row, col := cell/cols, cell%cols
		return Detection{
			TemplateID: tid,
			CenterX:    originX + col*pitchX,
			CenterY:    originY + row*pitchY,
			Confidence: 0.95,
			Row:        -1,
			Col:        -1,
		}
	}
	for k := 0; k < pairs; k++ {
		cells = append(cells, place(k, k), place(k, total-1-k))
	}
	return cells
}
