package coords

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Offset names used by the card solver.
const (
	// AnchorName is the on-screen element all offsets are measured from.
	AnchorName = "run_button"
	// GridTopLeftName is the offset of the centre of card (0, 0).
	GridTopLeftName = "pair_top_left"
	// GridBottomRightName is the offset of the centre of the last card.
	GridBottomRightName = "pair_bottom_right"
)

// ErrUnknownOffset is returned when a named offset is not configured.
var ErrUnknownOffset = errors.New("unknown offset")

// Offsets maps names to logical displacements from the anchor element.
type Offsets map[string]Point

// ParseOffsets reads "name:dx,dy" lines. Blank lines and lines starting
// with '#' are skipped; a trailing '.' after dy is tolerated. Malformed
// lines are reported with their line number.
func ParseOffsets(r io.Reader) (Offsets, error) {
	out := make(Offsets)
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("line %d: missing ':' in %q", lineNo, line)
		}
		value = strings.TrimRight(strings.TrimSpace(value), ".")

		xs, ys, ok := strings.Cut(value, ",")
		if !ok {
			return nil, fmt.Errorf("line %d: missing ',' in %q", lineNo, line)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		out[strings.TrimSpace(name)] = Point{X: x, Y: y}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Names returns the configured names in sorted order.
func (o Offsets) Names() []string {
	names := make([]string, 0, len(o))
	for n := range o {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Session resolves named offsets against an anchor for the duration of one
// solve session and memoises the results. Create one per session; it holds
// no process-wide state.
type Session struct {
	anchor  Point // logical position of the anchor element
	scale   float64
	offsets Offsets

	mu       sync.Mutex
	resolved map[string]Point
}

// NewSession creates a Session. anchorPhysical is where the anchor element
// was found in physical pixels.
func NewSession(anchorPhysical Point, scale float64, offsets Offsets) (*Session, error) {
	if scale <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScale, scale)
	}
	return &Session{
		anchor:   Point{X: anchorPhysical.X / scale, Y: anchorPhysical.Y / scale},
		scale:    scale,
		offsets:  offsets,
		resolved: make(map[string]Point),
	}, nil
}

// Resolve returns the logical screen position of the named offset.
func (s *Session) Resolve(name string) (Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.resolved[name]; ok {
		return p, nil
	}

	d, ok := s.offsets[name]
	if !ok {
		return Point{}, fmt.Errorf("%w: %s", ErrUnknownOffset, name)
	}

	p := Point{X: s.anchor.X + d.X, Y: s.anchor.Y + d.Y}
	s.resolved[name] = p
	return p, nil
}

// GridAnchor returns the Anchor whose reference is the physical position of
// the named grid origin offset.
func (s *Session) GridAnchor(name string) (Anchor, error) {
	p, err := s.Resolve(name)
	if err != nil {
		return Anchor{}, err
	}
	return Anchor{
		Reference: Point{X: p.X * s.scale, Y: p.Y * s.scale},
		Scale:     s.scale,
	}, nil
}

// Cached returns how many names have been resolved in this session.
func (s *Session) Cached() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.resolved)
}
