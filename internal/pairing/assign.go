// Package pairing selects mutually exclusive pairs from scored candidates.
package pairing

import (
	"math"
	"sort"
)

// Candidate is a scored pairing of two items, generated once per unordered pair.
type Candidate struct {
	A     int
	B     int
	Score float64
}

// Pair is an accepted Candidate. An item id appears in at most one Pair of
// a Result.
type Pair struct {
	A     int     `json:"a"`
	B     int     `json:"b"`
	Score float64 `json:"score"`
}

// Result is the outcome of an assignment.
type Result struct {
	Pairs     []Pair
	Unmatched []int // ids left without a partner, ascending
	Expected  int   // total/2
}

// Complete reports whether the expected number of pairs was reached.
func (r Result) Complete() bool {
	return len(r.Pairs) >= r.Expected
}

// Assigner greedily builds a matching from candidates. It is an
// approximation of maximum-weight matching: candidates are taken in
// descending score order and kept only when both ids are still free.
type Assigner struct {
	Threshold float64
}

// NewAssigner creates an Assigner that ignores candidates scoring below threshold.
func NewAssigner(threshold float64) *Assigner {
	return &Assigner{Threshold: threshold}
}

// Assign pairs up ids 0..total-1 from candidates. The output does not depend
// on the order of candidates: ties in score are broken by ascending (A, B).
func (a *Assigner) Assign(candidates []Candidate, total int) Result {
	eligible := Filter(candidates, a.Threshold)
	Sort(eligible)

	assigned := make(map[int]bool, total)
	var pairs []Pair
	for _, c := range eligible {
		if c.A == c.B || assigned[c.A] || assigned[c.B] {
			continue
		}
		assigned[c.A] = true
		assigned[c.B] = true
		pairs = append(pairs, Pair{A: c.A, B: c.B, Score: c.Score})
	}

	var unmatched []int
	for id := 0; id < total; id++ {
		if !assigned[id] {
			unmatched = append(unmatched, id)
		}
	}

	return Result{
		Pairs:     pairs,
		Unmatched: unmatched,
		Expected:  total / 2,
	}
}

// Filter returns the candidates scoring at least threshold, normalised so
// that A < B. NaN and -Inf scores never pass.
func Filter(candidates []Candidate, threshold float64) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if math.IsNaN(c.Score) || math.IsInf(c.Score, -1) || c.Score < threshold {
			continue
		}
		if c.A > c.B {
			c.A, c.B = c.B, c.A
		}
		out = append(out, c)
	}
	return out
}

// Sort orders candidates by score descending, then A, then B ascending.
func Sort(candidates []Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if ci.Score != cj.Score {
			return ci.Score > cj.Score
		}
		if ci.A != cj.A {
			return ci.A < cj.A
		}
		return ci.B < cj.B
	})
}

// All scores every unordered pair of n items with score and returns the
// candidates in (i, j) order.
func All(n int, score func(i, j int) float64) []Candidate {
	if n < 2 {
		return nil
	}
	out := make([]Candidate, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			out = append(out, Candidate{A: i, B: j, Score: score(i, j)})
		}
	}
	return out
}
