// Package gftools post-processes imaginary time Green's functions.
//
// It provides the Fourier transforms from the imaginary time interval
// [0, beta] to the fermionic Matsubara frequencies, and analytic pole
// representations used to subtract the known high frequency behaviour
// before the numeric transform.
package gftools

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// MatsubaraFrequencies returns the fermionic Matsubara frequencies
// iw_n = i*pi*(2n+1)/beta for the given indices.
func MatsubaraFrequencies(n []int, beta float64) []complex128 {
	out := make([]complex128, len(n))
	for k, nk := range n {
		out[k] = complex(0, math.Pi*float64(2*nk+1)/beta)
	}
	return out
}

// FermiFct is the Fermi function 1/(exp(beta*eps)+1).
func FermiFct(eps, beta float64) float64 {
	return 1 / (math.Exp(beta*eps) + 1)
}

// Tau returns num equally spaced imaginary times spanning [0, beta].
func Tau(beta float64, num int) []float64 {
	tau := make([]float64, num)
	for i := range tau {
		tau[i] = beta * float64(i) / float64(num-1)
	}
	return tau
}

// ihfft is the inverse FFT of a real signal whose spectrum is Hermitian,
// returning only the non-negative frequencies.
func ihfft(x []float64) []complex128 {
	full := fft.FFTReal(x)
	n := len(x)
	out := make([]complex128, n/2+1)
	for i := range out {
		out[i] = cmplx.Conj(full[i]) / complex(float64(n), 0)
	}
	return out
}

// fullAntiperiodic extends a Green's function sampled on [0, beta] to
// [-beta, beta] using the fermionic antiperiodicity G(tau-beta) = -G(tau).
func fullAntiperiodic(gfTau []float64) []float64 {
	m := len(gfTau) - 1
	out := make([]float64, 0, 2*len(gfTau)-1)
	for _, v := range gfTau[:m] {
		out = append(out, -v)
	}
	return append(out, gfTau...)
}

// Tau2IwDFT transforms a real Green's function sampled on [0, beta] to the
// positive fermionic Matsubara frequencies by a plain Riemann sum DFT.
func Tau2IwDFT(gfTau []float64, beta float64) []complex128 {
	full := fullAntiperiodic(gfTau)
	dft := ihfft(full[:len(full)-1])
	out := make([]complex128, 0, len(dft)/2)
	for k := 1; k < len(dft); k += 2 {
		out = append(out, -complex(beta, 0)*dft[k])
	}
	return out
}

// Tau2IwFTLin transforms with linear interpolation between the sampled
// points, which improves the high frequency tail over the plain DFT.
func Tau2IwFTLin(gfTau []float64, beta float64) []complex128 {
	full := fullAntiperiodic(gfTau)
	nTau := len(full)
	gfDft := ihfft(full[:nTau-1])
	d := make([]float64, nTau-1)
	for i := range d {
		d[i] = full[i+1] - full[i]
	}
	dDft := ihfft(d)

	out := make([]complex128, 0, len(gfDft)/2)
	for k := 1; k < len(gfDft); k += 2 {
		dTauIw := complex(0, 2*math.Pi*float64(k)/float64(nTau))
		expm1 := cmplx.Exp(dTauIw) - 1
		w1 := expm1 / dTauIw
		w2 := (expm1 + 1 - w1) / dTauIw
		out = append(out, -complex(beta, 0)*(w1*gfDft[k]+w2*dDft[k]))
	}
	return out
}

// PoleGf is a Green's function represented by a finite set of real poles.
type PoleGf struct {
	Poles   []float64
	Weights []float64
}

// Eval evaluates the pole Green's function at the complex frequencies z.
func (p PoleGf) Eval(z []complex128) []complex128 {
	out := make([]complex128, len(z))
	for k, zk := range z {
		var sum complex128
		for j, pj := range p.Poles {
			sum += complex(p.Weights[j], 0) / (zk - complex(pj, 0))
		}
		out[k] = sum
	}
	return out
}

// Tau evaluates the pole Green's function at imaginary times in [0, beta].
// The exponent is shifted by beta for negative poles so that it never
// overflows.
func (p PoleGf) Tau(tau []float64, beta float64) ([]float64, error) {
	out := make([]float64, len(tau))
	for k, t := range tau {
		if t < 0 || t > beta {
			return nil, errors.Errorf("tau %f outside [0, %f]", t, beta)
		}
		var sum float64
		for j, pj := range p.Poles {
			exponent := -t * pj
			if pj < 0 {
				exponent = (beta - t) * pj
			}
			sum += p.Weights[j] * math.Exp(exponent) * FermiFct(-sign(pj)*pj, beta)
		}
		out[k] = -sum
	}
	return out, nil
}

// Moments returns the high frequency moments sum_j w_j*pole_j^(order-1).
func (p PoleGf) Moments(order []int) []float64 {
	out := make([]float64, len(order))
	for k, o := range order {
		var sum float64
		for j, pj := range p.Poles {
			sum += p.Weights[j] * math.Pow(pj, float64(o-1))
		}
		out[k] = sum
	}
	return out
}

// PoleGfFromMoments fits a pole Green's function to the given high frequency
// moments. The poles sit on Chebyshev nodes of the interval [-1, 1], the
// weights solve the corresponding Vandermonde system.
func PoleGfFromMoments(moments []float64) (PoleGf, error) {
	nMom := len(moments)
	if nMom == 0 {
		return PoleGf{}, nil
	}
	poles := make([]float64, nMom)
	for j := 0; j < nMom; j++ {
		poles[j] = math.Cos(0.5 * math.Pi * float64(2*j+1) / float64(nMom))
	}
	if nMom%2 == 1 {
		poles[nMom/2] = 0
	}

	vander := mat.NewDense(nMom, nMom, nil)
	for r := 0; r < nMom; r++ {
		for c := 0; c < nMom; c++ {
			vander.Set(r, c, math.Pow(poles[c], float64(r)))
		}
	}
	var w mat.VecDense
	if err := w.SolveVec(vander, mat.NewVecDense(nMom, moments)); err != nil {
		return PoleGf{}, errors.Wrap(err, "")
	}
	weights := make([]float64, nMom)
	for j := range weights {
		weights[j] = w.AtVec(j)
	}
	return PoleGf{Poles: poles, Weights: weights}, nil
}

// Tau2Iw transforms gfTau to the Matsubara frequencies, subtracting a pole
// model fitted to the high frequency moments before the numeric transform
// and adding its exact frequency representation back afterwards.
// When moments is nil, the 1/z moment is taken from the jump of gfTau at the
// interval ends; otherwise moments[0] must agree with that jump.
func Tau2Iw(gfTau []float64, beta float64, moments []float64) (iws, gfIw []complex128, err error) {
	m1 := -gfTau[len(gfTau)-1] - gfTau[0]
	if moments == nil {
		moments = []float64{m1}
	} else if math.Abs(moments[0]-m1) > 1e-8*math.Max(1, math.Abs(m1)) {
		return nil, nil, errors.Errorf("1/z moment %f differs from jump %f", moments[0], m1)
	}
	poleGf, err := PoleGfFromMoments(moments)
	if err != nil {
		return nil, nil, err
	}

	tau := Tau(beta, len(gfTau))
	poleTau, err := poleGf.Tau(tau, beta)
	if err != nil {
		return nil, nil, err
	}
	diff := make([]float64, len(gfTau))
	for i := range diff {
		diff[i] = gfTau[i] - poleTau[i]
	}

	gfIw = Tau2IwFTLin(diff, beta)
	indices := make([]int, len(gfIw))
	for i := range indices {
		indices[i] = i
	}
	iws = MatsubaraFrequencies(indices, beta)
	poleIw := poleGf.Eval(iws)
	for i := range gfIw {
		gfIw[i] += poleIw[i]
	}
	return iws, gfIw, nil
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
