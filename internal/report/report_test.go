package report

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestLoadError(t *testing.T) {
	err := fmt.Errorf("solve: %w", NewLoadError("board.png", fs.ErrNotExist))

	if !IsLoadError(err) {
		t.Error("IsLoadError() = false, want true")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("LoadError does not unwrap to its cause")
	}

	var le *LoadError
	if !errors.As(err, &le) || le.Source != "board.png" {
		t.Errorf("errors.As() = %v", le)
	}

	if IsLoadError(ErrNoCandidates) {
		t.Error("IsLoadError(ErrNoCandidates) = true, want false")
	}
}

func TestWarnings(t *testing.T) {
	tests := []struct {
		name string
		w    Warning
		kind Kind
		key  string
	}{
		{name: "incomplete", w: IncompletePairing(15, 13, []int{4, 9, 11, 20}), kind: KindIncompletePairing, key: "unmatched_ids"},
		{name: "ambiguous", w: AmbiguousTemplate(3, "cat.png", 2), kind: KindAmbiguousTemplate, key: "template_id"},
		{name: "clustering", w: ClusteringAnomaly("row", 6, 5), kind: KindClusteringAnomaly, key: "axis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.w.Kind != tt.kind {
				t.Errorf("Kind = %s, want %s", tt.w.Kind, tt.kind)
			}
			if tt.w.Message == "" {
				t.Error("Message is empty")
			}
			if _, ok := tt.w.Data[tt.key]; !ok {
				t.Errorf("Data missing %q: %v", tt.key, tt.w.Data)
			}
		})
	}
}

func TestSummary_Complete(t *testing.T) {
	if !(Summary{ExpectedPairs: 2, FoundPairs: 2}).Complete() {
		t.Error("2/2 should be complete")
	}
	if (Summary{ExpectedPairs: 2, FoundPairs: 1, UnmatchedIDs: []int{2, 3}}).Complete() {
		t.Error("1/2 should not be complete")
	}
}
