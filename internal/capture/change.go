package capture

import (
	"fmt"
	"sync"

	"github.com/corona10/goimagehash"
	"gocv.io/x/gocv"
)

// DefaultMaxDistance is the perceptual-hash Hamming distance at or under
// which two screenshots count as the same board.
const DefaultMaxDistance = 4

// ChangeDetector decides whether the board changed between screenshots by
// comparing perceptual hashes. Small rendering noise such as a blinking
// cursor or a clock stays under the distance threshold.
type ChangeDetector struct {
	maxDistance int
	last        *goimagehash.ImageHash
	mu          sync.Mutex
}

// NewChangeDetector creates a ChangeDetector. A negative maxDistance uses
// DefaultMaxDistance.
func NewChangeDetector(maxDistance int) *ChangeDetector {
	if maxDistance < 0 {
		maxDistance = DefaultMaxDistance
	}
	return &ChangeDetector{maxDistance: maxDistance}
}

// Detect hashes frame and compares it with the last frame that counted as
// a change. It returns whether the board changed and the Hamming distance.
// The first frame always counts as a change.
func (c *ChangeDetector) Detect(frame *gocv.Mat) (bool, int, error) {
	hash, err := perceptionHash(frame)
	if err != nil {
		return false, 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.last == nil {
		c.last = hash
		return true, 0, nil
	}

	dist, err := c.last.Distance(hash)
	if err != nil {
		c.last = hash
		return true, 0, nil
	}

	if dist <= c.maxDistance {
		return false, dist, nil
	}

	c.last = hash
	return true, dist, nil
}

// Reset forgets the baseline so the next frame counts as a change.
func (c *ChangeDetector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = nil
}

// SetMaxDistance sets the change threshold. Negative values are ignored.
func (c *ChangeDetector) SetMaxDistance(d int) {
	if d < 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.maxDistance = d
}

// Fingerprint returns the perceptual hash of frame as a string, suitable as
// a cache key for solve results.
func Fingerprint(frame *gocv.Mat) (string, error) {
	hash, err := perceptionHash(frame)
	if err != nil {
		return "", err
	}
	return hash.ToString(), nil
}

func perceptionHash(frame *gocv.Mat) (*goimagehash.ImageHash, error) {
	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}
	img, err := frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return nil, fmt.Errorf("hash frame: %w", err)
	}
	return hash, nil
}
