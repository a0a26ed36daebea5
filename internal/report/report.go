// Package report defines the diagnostics a solve produces: structured
// warnings for recoverable conditions and the fatal load error.
package report

import (
	"errors"
	"fmt"
)

// Kind identifies the class of a Warning.
type Kind string

const (
	// KindIncompletePairing is raised when fewer pairs than total/2 were found.
	KindIncompletePairing Kind = "incomplete_pairing"
	// KindAmbiguousTemplate is raised when a template matched more times than allowed.
	KindAmbiguousTemplate Kind = "ambiguous_template"
	// KindClusteringAnomaly is raised when position clustering yields more lines than expected.
	KindClusteringAnomaly Kind = "clustering_anomaly"
)

// ErrNoCandidates is returned when a solve has nothing to pair.
var ErrNoCandidates = errors.New("no valid candidates")

// Warning is a non-fatal diagnostic. Data carries kind-specific values
// (unmatched ids, template id, cluster counts) and is safe to JSON-encode.
type Warning struct {
	Kind    Kind           `json:"kind"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Kind, w.Message)
}

// IncompletePairing builds the warning emitted when the pair count falls
// short of expected.
func IncompletePairing(expected, found int, unmatched []int) Warning {
	return Warning{
		Kind:    KindIncompletePairing,
		Message: fmt.Sprintf("found %d of %d pairs; consider lowering the similarity threshold", found, expected),
		Data: map[string]any{
			"expected_pairs": expected,
			"found_pairs":    found,
			"unmatched_ids":  unmatched,
		},
	}
}

// AmbiguousTemplate builds the warning emitted when a template yields more
// detections than the per-template cap.
func AmbiguousTemplate(templateID int, label string, limit int) Warning {
	return Warning{
		Kind:    KindAmbiguousTemplate,
		Message: fmt.Sprintf("template %d (%s) matched more than %d times; keeping the top %d", templateID, label, limit, limit),
		Data: map[string]any{
			"template_id": templateID,
			"label":       label,
			"limit":       limit,
		},
	}
}

// ClusteringAnomaly builds the warning emitted when an axis clusters into
// more lines than expected.
func ClusteringAnomaly(axis string, got, expected int) Warning {
	return Warning{
		Kind:    KindClusteringAnomaly,
		Message: fmt.Sprintf("%s clustering produced %d lines, expected %d", axis, got, expected),
		Data: map[string]any{
			"axis":     axis,
			"got":      got,
			"expected": expected,
		},
	}
}

// Summary is the pairing diagnostic returned with every solve.
type Summary struct {
	ExpectedPairs int   `json:"expected_pairs"`
	FoundPairs    int   `json:"found_pairs"`
	UnmatchedIDs  []int `json:"unmatched_ids"`
}

// Complete reports whether every expected pair was found.
func (s Summary) Complete() bool {
	return s.FoundPairs >= s.ExpectedPairs
}

// LoadError is the fatal error for missing or unreadable input: a
// screenshot that cannot be decoded or an empty template library. It is
// never retried by the engine.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("load %s", e.Source)
	}
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// NewLoadError wraps err as a LoadError for source.
func NewLoadError(source string, err error) *LoadError {
	return &LoadError{Source: source, Err: err}
}

// IsLoadError reports whether err is, or wraps, a LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}
