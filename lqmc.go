// Package lqmc implements the determinantal lattice quantum Monte Carlo
// solver for the finite temperature Hubbard model.
//
// The quartic interaction is decoupled by a discrete Hubbard-Stratonovich
// auxiliary field with one Ising-like value per site and imaginary time
// slice. Sampling that field with Metropolis updates leaves a free fermion
// problem per configuration, whose weight is the product of the up and down
// determinants of M = I + B(L-1)*...*B(0).
//
// References:
//   - Monte Carlo calculations of coupled boson-fermion systems, Blankenbecler, Scalapino and Sugar
//   - Two-dimensional Hubbard model: Numerical simulation study, Hirsch
package lqmc

import (
	"log"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/fumin/lqmc/lattice"
)

// Config are the parameters of a Monte Carlo run.
type Config struct {
	// Beta is the inverse temperature.
	Beta float64
	// TimeSteps is the number of imaginary time slices, dtau = Beta/TimeSteps.
	TimeSteps int
	// Warmup is the number of warmup sweeps.
	Warmup int
	// Sweeps is the number of measurement sweeps.
	Sweeps int
	// DetMode selects the slow algorithm via full determinant recomputation.
	// The default is the fast algorithm via local ratios and rank-1 updates.
	DetMode bool
	// Seed seeds all randomness of the run.
	Seed uint64
}

// Simulation drives the Metropolis loop over sweeps, sites and time slices.
type Simulation struct {
	model *lattice.Model
	cfg   Config
	n     int
	dtau  float64
	lamb  float64

	conf   *Field
	prop   *Propagator
	engine *Engine
	rng    *rand.Rand
	phase  Phase

	// Progress, when set, is called once per completed sweep. It must not
	// touch the simulation state.
	Progress func(phase Phase, sweep int)
}

// New validates cfg and prepares a simulation of the given model.
func New(model *lattice.Model, cfg Config) (*Simulation, error) {
	if cfg.Beta <= 0 {
		return nil, errors.Errorf("non-positive inverse temperature %f", cfg.Beta)
	}
	if cfg.TimeSteps <= 0 {
		return nil, errors.Errorf("non-positive time steps %d", cfg.TimeSteps)
	}
	if cfg.Warmup < 0 || cfg.Sweeps < 0 {
		return nil, errors.Errorf("negative sweep counts %d %d", cfg.Warmup, cfg.Sweeps)
	}

	s := &Simulation{model: model, cfg: cfg, n: model.NumSites()}
	s.dtau = cfg.Beta / float64(cfg.TimeSteps)
	if check := model.U * model.T * s.dtau * s.dtau; check > 0.1 {
		log.Printf("check value %.2f should be smaller than 0.1, the Trotter discretization may be untrustworthy", check)
	}
	s.lamb = Lambda(model.U, s.dtau)
	s.rng = rand.New(rand.NewSource(cfg.Seed))
	s.conf = NewField(s.n, cfg.TimeSteps, s.rng)
	s.prop = NewPropagator(model.KineticHamiltonian(), s.dtau)
	s.engine = NewEngine(s.n, cfg.TimeSteps, s.lamb, s.prop)
	return s, nil
}

// Engine returns the weight engine bound to this simulation.
func (s *Simulation) Engine() *Engine { return s.engine }

// Field returns the current auxiliary field configuration.
func (s *Simulation) Field() *Field { return s.conf }

// Phase returns the current phase of the run.
func (s *Simulation) Phase() Phase { return s.phase }

// Iterations returns the total number of (sweep, site, slice) iterations.
func (s *Simulation) Iterations() int {
	return (s.cfg.Warmup + s.cfg.Sweeps) * s.n * s.cfg.TimeSteps
}

// Run executes the warmup and the measurement phase and returns the
// accumulated Green's functions.
func (s *Simulation) Run() (*Result, error) {
	var res *Result
	var err error
	if s.cfg.DetMode {
		if err = s.warmupDet(); err == nil {
			res, err = s.measureDet()
		}
	} else {
		if err = s.warmupFast(); err == nil {
			res, err = s.measureFast()
		}
	}
	if err != nil {
		return nil, err
	}
	s.phase = PhaseDone
	return res, nil
}

func (s *Simulation) report(sweep int) {
	if s.Progress != nil {
		s.Progress(s.phase, sweep)
	}
}

// warmupDet runs the slow warmup loop. The trial configuration is a
// snapshot, the live field is mutated only after acceptance.
func (s *Simulation) warmupDet() error {
	s.phase = PhaseWarmup
	wOld := s.engine.Weight(s.conf, SpinUp) * s.engine.Weight(s.conf, SpinDn)
	if wOld == 0 {
		return errors.Errorf("vanishing fermion determinant in initial configuration")
	}
	trial := s.conf.Snapshot()
	for sweep := 0; sweep < s.cfg.Warmup; sweep++ {
		for l := s.cfg.TimeSteps - 1; l >= 0; l-- {
			for i := 0; i < s.n; i++ {
				trial.Restore(s.conf)
				trial.Flip(i, l)
				wNew := s.engine.Weight(trial, SpinUp) * s.engine.Weight(trial, SpinDn)
				if s.rng.Float64() < wNew/wOld {
					s.conf.Flip(i, l)
					wOld = wNew
				}
			}
		}
		s.report(sweep)
	}
	return nil
}

// measureDet runs the slow measurement loop. The acceptance ratio at slice l
// uses the cyclically re-rooted M matrices, so that the inverse of an
// accepted M is directly the equal time Green's function at l.
func (s *Simulation) measureDet() (*Result, error) {
	s.phase = PhaseMeasurement
	lt := s.cfg.TimeSteps

	wOld := s.engine.Weight(s.conf, SpinUp) * s.engine.Weight(s.conf, SpinDn)
	if wOld == 0 {
		return nil, errors.Errorf("vanishing fermion determinant entering measurement")
	}

	gUp := newSlices(s.n, lt)
	gDn := newSlices(s.n, lt)
	mUp, mDn := &mat.Dense{}, &mat.Dense{}
	s.engine.BuildM(mUp, s.conf, SpinUp)
	s.engine.BuildM(mDn, s.conf, SpinDn)
	if err := invert(gUp[lt-1], mUp); err != nil {
		return nil, err
	}
	if err := invert(gDn[lt-1], mDn); err != nil {
		return nil, err
	}

	acc := newAccumulator(s.n, lt)
	trial := s.conf.Snapshot()
	for sweep := 0; sweep < s.cfg.Sweeps; sweep++ {
		for l := lt - 1; l >= 0; l-- {
			for i := 0; i < s.n; i++ {
				trial.Restore(s.conf)
				trial.Flip(i, l)
				s.engine.BuildMCyclic(mUp, trial, SpinUp, l)
				s.engine.BuildMCyclic(mDn, trial, SpinDn, l)
				wNew := mat.Det(mUp) * mat.Det(mDn)
				if s.rng.Float64() < wNew/wOld {
					if err := invert(gUp[l], mUp); err != nil {
						return nil, err
					}
					if err := invert(gDn[l], mDn); err != nil {
						return nil, err
					}
					s.conf.Flip(i, l)
					wOld = wNew
				}
				acc.addSlice(l, gUp[l], gDn[l])
			}
		}
		s.report(sweep)
	}
	return acc.finalize(s.cfg.Beta, float64(acc.count)/float64(lt)), nil
}

// warmupFast runs the fast warmup loop with the cached equal time Green's
// function at beta updated in place by Sherman-Morrison corrections.
func (s *Simulation) warmupFast() error {
	s.phase = PhaseWarmup
	gUp, gDn, err := s.invertM()
	if err != nil {
		return err
	}
	for sweep := 0; sweep < s.cfg.Warmup; sweep++ {
		for l := s.cfg.TimeSteps - 1; l >= 0; l-- {
			for i := 0; i < s.n; i++ {
				deltaUp := s.engine.Delta(s.conf, SpinUp, i, l)
				deltaDn := s.engine.Delta(s.conf, SpinDn, i, l)
				ratio := s.engine.RatioFast(gUp, deltaUp, i) * s.engine.RatioFast(gDn, deltaDn, i)
				if s.rng.Float64() < ratio {
					s.engine.UpdateGreens(gUp, deltaUp, i)
					s.engine.UpdateGreens(gDn, deltaDn, i)
					s.conf.Flip(i, l)
				}
			}
		}
		s.report(sweep)
	}
	return nil
}

// measureFast runs the fast measurement loop. The cached Green's function is
// rebuilt from scratch once at the phase transition, then maintained by
// rank-1 updates; after every accepted move the per slice chain is
// regenerated through the wrapping recursion. The chain is accumulated on
// every iteration, accepted or not.
func (s *Simulation) measureFast() (*Result, error) {
	s.phase = PhaseMeasurement
	lt := s.cfg.TimeSteps

	gUp, gDn, err := s.invertM()
	if err != nil {
		return nil, err
	}
	chainUp := newSlices(s.n, lt)
	chainDn := newSlices(s.n, lt)
	s.engine.GreensChain(chainUp, gUp, s.conf, SpinUp)
	s.engine.GreensChain(chainDn, gDn, s.conf, SpinDn)

	acc := newAccumulator(s.n, lt)
	for sweep := 0; sweep < s.cfg.Sweeps; sweep++ {
		for l := lt - 1; l >= 0; l-- {
			for i := 0; i < s.n; i++ {
				deltaUp := s.engine.Delta(s.conf, SpinUp, i, l)
				deltaDn := s.engine.Delta(s.conf, SpinDn, i, l)
				ratio := s.engine.RatioFast(gUp, deltaUp, i) * s.engine.RatioFast(gDn, deltaDn, i)
				if s.rng.Float64() < ratio {
					s.engine.UpdateGreens(gUp, deltaUp, i)
					s.engine.UpdateGreens(gDn, deltaDn, i)
					s.conf.Flip(i, l)
					s.engine.GreensChain(chainUp, gUp, s.conf, SpinUp)
					s.engine.GreensChain(chainDn, gDn, s.conf, SpinDn)
				}
				acc.add(chainUp, chainDn)
			}
		}
		s.report(sweep)
	}
	return acc.finalize(s.cfg.Beta, float64(acc.count)), nil
}

// invertM builds the M matrices of both spins for the current field and
// returns their inverses, the equal time Green's functions at beta.
func (s *Simulation) invertM() (*mat.Dense, *mat.Dense, error) {
	m := &mat.Dense{}
	gUp := mat.NewDense(s.n, s.n, nil)
	gDn := mat.NewDense(s.n, s.n, nil)
	s.engine.BuildM(m, s.conf, SpinUp)
	if err := invert(gUp, m); err != nil {
		return nil, nil, err
	}
	s.engine.BuildM(m, s.conf, SpinDn)
	if err := invert(gDn, m); err != nil {
		return nil, nil, err
	}
	return gUp, gDn, nil
}

func newSlices(n, timeSteps int) []*mat.Dense {
	g := make([]*mat.Dense, timeSteps)
	for l := range g {
		g[l] = mat.NewDense(n, n, nil)
	}
	return g
}
