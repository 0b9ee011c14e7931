package lqmc

import (
	"golang.org/x/exp/rand"
)

// Field is the Hubbard-Stratonovich auxiliary field configuration, one value
// in {-1, +1} per site and imaginary time slice. The sampler owns it
// exclusively for the duration of a run.
type Field struct {
	n         int
	timeSteps int
	// data is site major, data[i*timeSteps+l].
	data []int8
	col  []int8
}

// NewField returns a randomly initialized configuration of n sites and
// timeSteps time slices. All randomness comes from rng; Flip itself is
// deterministic.
func NewField(n, timeSteps int, rng *rand.Rand) *Field {
	f := &Field{n: n, timeSteps: timeSteps, data: make([]int8, n*timeSteps), col: make([]int8, n)}
	for i := range f.data {
		f.data[i] = 1
		if rng.Float64() < 0.5 {
			f.data[i] = -1
		}
	}
	return f
}

// NumSites returns the number of sites.
func (f *Field) NumSites() int { return f.n }

// TimeSteps returns the number of time slices.
func (f *Field) TimeSteps() int { return f.timeSteps }

// Value returns the field at site i and time slice l.
func (f *Field) Value(i, l int) int8 { return f.data[i*f.timeSteps+l] }

// Column returns the field of all sites at time slice l.
// The returned slice is overwritten by the next call.
func (f *Field) Column(l int) []int8 {
	for i := 0; i < f.n; i++ {
		f.col[i] = f.data[i*f.timeSteps+l]
	}
	return f.col
}

// Flip negates the field at (i, l). Flipping twice restores the original.
func (f *Field) Flip(i, l int) { f.data[i*f.timeSteps+l] = -f.data[i*f.timeSteps+l] }

// Snapshot returns an independent copy.
func (f *Field) Snapshot() *Field {
	s := &Field{n: f.n, timeSteps: f.timeSteps, data: make([]int8, len(f.data)), col: make([]int8, f.n)}
	copy(s.data, f.data)
	return s
}

// Restore replaces the contents of f with those of s.
func (f *Field) Restore(s *Field) { copy(f.data, s.data) }
