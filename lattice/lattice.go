// Package lattice builds the single particle Hamiltonian of the Hubbard model
// on a periodic chain.
package lattice

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Model holds the lattice graph and the parameters of the Hubbard model.
// It is immutable after construction.
type Model struct {
	// U is the on-site interaction.
	U float64
	// T is the hopping amplitude.
	T float64
	// Mu is the chemical potential.
	Mu float64

	sites []int
	edges [][2]int
}

// NewChain builds a periodic one dimensional chain of n sites.
// The edges form a single connected cycle.
func NewChain(n int, u, t, mu float64) (*Model, error) {
	if n <= 0 {
		return nil, errors.Errorf("non-positive site count %d", n)
	}
	m := &Model{U: u, T: t, Mu: mu}
	for i := 0; i < n-1; i++ {
		m.edges = append(m.edges, [2]int{i, i + 1})
		m.sites = append(m.sites, i)
	}
	if n > 1 {
		m.edges = append(m.edges, [2]int{n - 1, 0})
	}
	m.sites = append(m.sites, n-1)
	return m, nil
}

// NumSites returns the number of lattice sites.
func (m *Model) NumSites() int { return len(m.sites) }

// Sites returns the ordered site indices.
func (m *Model) Sites() []int { return m.sites }

// Edges returns the ordered undirected edges of the lattice graph.
func (m *Model) Edges() [][2]int { return m.edges }

// KineticHamiltonian returns the N by N single particle Hamiltonian,
// K[i,j] = -t for lattice adjacent i, j and K[i,i] = U/2 - mu.
// The on-site term is carried on the kinetic diagonal; the auxiliary field
// of the sampler encodes only the interaction. At mu = U/2 the diagonal
// vanishes, which is the half filled point.
func (m *Model) KineticHamiltonian() *mat.SymDense {
	n := m.NumSites()
	k := mat.NewSymDense(n, nil)
	for _, e := range m.edges {
		k.SetSym(e[0], e[1], -m.T)
	}
	for _, i := range m.sites {
		k.SetSym(i, i, m.U/2-m.Mu)
	}
	return k
}
