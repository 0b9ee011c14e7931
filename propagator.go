package lqmc

import (
	"gonum.org/v1/gonum/mat"
)

// Propagator caches the time slice independent kinetic propagators
// exp(+dtau*K) and exp(-dtau*K). They are computed once per run and are
// read-only afterwards; every B matrix of every slice reuses them.
type Propagator struct {
	ExpK    *mat.Dense
	ExpKInv *mat.Dense
}

// NewPropagator computes the propagators for the kinetic Hamiltonian hamKin
// and imaginary time step dtau.
func NewPropagator(hamKin *mat.SymDense, dtau float64) *Propagator {
	n := hamKin.SymmetricDim()
	p := &Propagator{ExpK: &mat.Dense{}, ExpKInv: &mat.Dense{}}
	scaled := mat.NewDense(n, n, nil)
	scaled.Scale(dtau, hamKin)
	p.ExpK.Exp(scaled)
	scaled.Scale(-dtau, hamKin)
	p.ExpKInv.Exp(scaled)
	return p
}
