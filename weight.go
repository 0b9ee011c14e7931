package lqmc

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Spin sigma values of the two fermion species.
const (
	SpinUp = +1.0
	SpinDn = -1.0
)

// Lambda returns the Hubbard-Stratonovich coupling arccosh(exp(u*dtau/2)).
// It is zero in the non-interacting limit u = 0, where the auxiliary field
// decouples completely.
func Lambda(u, dtau float64) float64 {
	if u == 0 {
		return 0
	}
	return math.Acosh(math.Exp(u * dtau / 2))
}

// Engine evaluates fermionic weights and Green's functions for a field
// configuration. The per slice propagator is
//
//	B_sigma(l) = exp(sigma*lambda*V(l)) * exp(dtau*K)
//
// and the direct product ordering is fixed as B(L-1)*B(L-2)*...*B(0).
type Engine struct {
	n         int
	timeSteps int
	lamb      float64
	prop      *Propagator

	// Scratch buffers for the product chains.
	bbuf  *mat.Dense
	prod  *mat.Dense
	prod2 *mat.Dense
	mbuf  *mat.Dense
	cvec  []float64
	bvec  []float64
}

// NewEngine returns an engine for n sites and timeSteps time slices.
func NewEngine(n, timeSteps int, lamb float64, prop *Propagator) *Engine {
	return &Engine{
		n: n, timeSteps: timeSteps, lamb: lamb, prop: prop,
		bbuf:  mat.NewDense(n, n, nil),
		prod:  mat.NewDense(n, n, nil),
		prod2: mat.NewDense(n, n, nil),
		mbuf:  mat.NewDense(n, n, nil),
		cvec:  make([]float64, n),
		bvec:  make([]float64, n),
	}
}

// b writes B_sigma(l) = exp(sigma*lambda*V(l))*expK into dst.
// The field exponential is diagonal, so it scales the rows of expK.
func (e *Engine) b(dst *mat.Dense, f *Field, sigma float64, l int) {
	col := f.Column(l)
	for i := 0; i < e.n; i++ {
		w := math.Exp(sigma * e.lamb * float64(col[i]))
		for j := 0; j < e.n; j++ {
			dst.Set(i, j, w*e.prop.ExpK.At(i, j))
		}
	}
}

// bInv writes B_sigma(l)^-1 = expKInv*exp(-sigma*lambda*V(l)) into dst.
func (e *Engine) bInv(dst *mat.Dense, f *Field, sigma float64, l int) {
	col := f.Column(l)
	for j := 0; j < e.n; j++ {
		w := math.Exp(-sigma * e.lamb * float64(col[j]))
		for i := 0; i < e.n; i++ {
			dst.Set(i, j, e.prop.ExpKInv.At(i, j)*w)
		}
	}
}

// BuildM writes M_sigma = I + B(L-1)*B(L-2)*...*B(0) into dst.
func (e *Engine) BuildM(dst *mat.Dense, f *Field, sigma float64) {
	lmax := e.timeSteps - 1
	e.b(e.prod, f, sigma, lmax)
	for l := lmax - 1; l >= 0; l-- {
		e.b(e.bbuf, f, sigma, l)
		e.prod2.Mul(e.prod, e.bbuf)
		e.prod, e.prod2 = e.prod2, e.prod
	}
	identityPlus(dst, e.prod)
}

// BuildMCyclic writes the M matrix with the product re-rooted at slice l,
// so that B(l) is the leftmost factor:
//
//	M = I + B(l)*B(l-1)*...*B(0)*B(L-1)*...*B(l+1)
//
// The determinant is unchanged by the rotation, but the inverse is the equal
// time Green's function at slice l, which local updates at l require.
func (e *Engine) BuildMCyclic(dst *mat.Dense, f *Field, sigma float64, l int) {
	e.b(e.prod, f, sigma, l)
	for k := l - 1; k >= 0; k-- {
		e.b(e.bbuf, f, sigma, k)
		e.prod2.Mul(e.prod, e.bbuf)
		e.prod, e.prod2 = e.prod2, e.prod
	}
	for k := e.timeSteps - 1; k >= l+1; k-- {
		e.b(e.bbuf, f, sigma, k)
		e.prod2.Mul(e.prod, e.bbuf)
		e.prod, e.prod2 = e.prod2, e.prod
	}
	identityPlus(dst, e.prod)
}

// Weight returns det(M_sigma) for the direct product ordering. The total
// statistical weight of a configuration is Weight(up)*Weight(dn).
func (e *Engine) Weight(f *Field, sigma float64) float64 {
	e.BuildM(e.mbuf, f, sigma)
	return mat.Det(e.mbuf)
}

// WeightCyclic returns det(M_sigma) for the product re-rooted at slice l.
func (e *Engine) WeightCyclic(f *Field, sigma float64, l int) float64 {
	e.BuildMCyclic(e.mbuf, f, sigma, l)
	return mat.Det(e.mbuf)
}

// GreensChain fills g with the Green's function of every time slice, walking
// down from the reference gLast at slice L-1 through the exact recursion
//
//	G(l-1) = B(l)^-1 * G(l) * B(l)
//
// No matrix is re-inverted along the way.
func (e *Engine) GreensChain(g []*mat.Dense, gLast *mat.Dense, f *Field, sigma float64) {
	last := e.timeSteps - 1
	g[last].Copy(gLast)
	for l := last; l >= 1; l-- {
		e.b(e.bbuf, f, sigma, l)
		e.bInv(e.prod, f, sigma, l)
		e.prod2.Mul(e.prod, g[l])
		g[l-1].Mul(e.prod2, e.bbuf)
	}
}

// Delta returns exp(-2*sigma*lambda*s(i,l)) - 1 for a proposed flip at (i, l),
// evaluated on the current (pre-flip) field value.
func (e *Engine) Delta(f *Field, sigma float64, i, l int) float64 {
	return math.Exp(-2*sigma*e.lamb*float64(f.Value(i, l))) - 1
}

// RatioFast returns the local determinant ratio
//
//	d_sigma = 1 + (1 - G[i,i]) * Delta_sigma
//
// where g is the equal time Green's function rooted at the flipped slice.
// It equals det(M_new)/det(M_old) without forming M explicitly.
func (e *Engine) RatioFast(g *mat.Dense, delta float64, i int) float64 {
	return 1 + (1-g.At(i, i))*delta
}

// UpdateGreens applies the rank-1 Sherman-Morrison correction to g after an
// accepted flip of site i, using the same delta that entered the ratio:
//
//	c = delta*e_i - delta*G[i,:],  b = G[:,i]/(1+c[i]),  G -= outer(b, c)
//
// The result equals the direct inverse of the updated M matrix.
func (e *Engine) UpdateGreens(g *mat.Dense, delta float64, i int) {
	n := e.n
	for j := 0; j < n; j++ {
		e.cvec[j] = -delta * g.At(i, j)
	}
	e.cvec[i] += delta
	denom := 1 + e.cvec[i]
	for j := 0; j < n; j++ {
		e.bvec[j] = g.At(j, i) / denom
	}
	for r := 0; r < n; r++ {
		row := g.RawRowView(r)
		br := e.bvec[r]
		for j := 0; j < n; j++ {
			row[j] -= br * e.cvec[j]
		}
	}
}

// identityPlus writes I + a into dst.
func identityPlus(dst, a *mat.Dense) {
	dst.CloneFrom(a)
	n, _ := a.Dims()
	for i := 0; i < n; i++ {
		dst.Set(i, i, dst.At(i, i)+1)
	}
}

// invert writes m^-1 into dst. An exactly singular m is fatal for the
// configuration; a merely ill conditioned one is reported by gonum and
// tolerated.
func invert(dst, m *mat.Dense) error {
	err := dst.Inverse(m)
	if err == nil {
		return nil
	}
	if cond, ok := err.(mat.Condition); ok && !math.IsInf(float64(cond), 1) {
		return nil
	}
	return errors.Wrap(err, "singular M matrix")
}
