package lqmc

import (
	"gonum.org/v1/gonum/mat"
)

// Phase is the state of the Monte Carlo run.
type Phase int

const (
	PhaseWarmup Phase = iota
	PhaseMeasurement
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseWarmup:
		return "Warmup"
	case PhaseMeasurement:
		return "Measurement"
	case PhaseDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// accumulator sums sampled Green's functions over the measurement phase.
type accumulator struct {
	up, dn []*mat.Dense
	count  int
}

func newAccumulator(n, timeSteps int) *accumulator {
	a := &accumulator{}
	for l := 0; l < timeSteps; l++ {
		a.up = append(a.up, mat.NewDense(n, n, nil))
		a.dn = append(a.dn, mat.NewDense(n, n, nil))
	}
	return a
}

// add sums the full per slice chains of both spins, one call per iteration.
func (a *accumulator) add(up, dn []*mat.Dense) {
	for l := range a.up {
		a.up[l].Add(a.up[l], up[l])
		a.dn[l].Add(a.dn[l], dn[l])
	}
	a.count++
}

// addSlice sums the Green's functions of a single time slice,
// one call per iteration.
func (a *accumulator) addSlice(l int, up, dn *mat.Dense) {
	a.up[l].Add(a.up[l], up)
	a.dn[l].Add(a.dn[l], dn)
	a.count++
}

// finalize divides every slice total by perSlice, the number of
// contributions each slice received.
func (a *accumulator) finalize(beta float64, perSlice float64) *Result {
	r := &Result{Beta: beta, TimeSteps: len(a.up), Up: a.up, Dn: a.dn}
	for l := range a.up {
		a.up[l].Scale(1/perSlice, a.up[l])
		a.dn[l].Scale(1/perSlice, a.dn[l])
	}
	return r
}

// Result is the accumulated Green's function of a run: for each spin, one
// N by N matrix per imaginary time slice.
type Result struct {
	Beta      float64
	TimeSteps int
	Up        []*mat.Dense
	Dn        []*mat.Dense
}

// Filling returns the per slice, per site filling 1 - diag(G) of a single
// spin Green's function.
func Filling(g []*mat.Dense) [][]float64 {
	out := make([][]float64, len(g))
	for l, gl := range g {
		n, _ := gl.Dims()
		row := make([]float64, n)
		for i := 0; i < n; i++ {
			row[i] = 1 - gl.At(i, i)
		}
		out[l] = row
	}
	return out
}

// MeanFilling returns the mean of <n_up> + <n_dn> over sites and slices.
func (r *Result) MeanFilling() float64 {
	var sum float64
	var count int
	for _, g := range [2][]*mat.Dense{r.Up, r.Dn} {
		for _, f := range Filling(g) {
			for _, v := range f {
				sum += v
			}
			count += len(f)
		}
	}
	// Both spins contribute to the same site, so average over slice*site only.
	return sum / float64(count/2)
}
