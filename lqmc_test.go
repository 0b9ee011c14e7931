package lqmc

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/fumin/lqmc/lattice"
)

// At u=0 the auxiliary field decouples and every configuration has the same
// weight, so the sampled Green's function is exactly (I + exp(dtau K)^L)^-1
// at every time slice regardless of the accepted moves.
func TestNonInteractingExact(t *testing.T) {
	t.Parallel()
	for _, detMode := range []bool{false, true} {
		detMode := detMode
		name := "fast"
		if detMode {
			name = "det"
		}
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			model, err := lattice.NewChain(4, 0, 1, 0.3)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			cfg := Config{Beta: 1, TimeSteps: 8, Warmup: 5, Sweeps: 10, DetMode: detMode, Seed: 7}
			sim, err := New(model, cfg)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			res, err := sim.Run()
			if err != nil {
				t.Fatalf("%+v", err)
			}

			prop := NewPropagator(model.KineticHamiltonian(), cfg.Beta/float64(cfg.TimeSteps))
			prod := mat.NewDense(4, 4, nil)
			for i := 0; i < 4; i++ {
				prod.Set(i, i, 1)
			}
			buf := &mat.Dense{}
			for l := 0; l < cfg.TimeSteps; l++ {
				buf.Mul(prop.ExpK, prod)
				prod, buf = buf, prod
			}
			for i := 0; i < 4; i++ {
				prod.Set(i, i, prod.At(i, i)+1)
			}
			exact := mat.NewDense(4, 4, nil)
			if err := invert(exact, prod); err != nil {
				t.Fatalf("%+v", err)
			}

			for l := 0; l < cfg.TimeSteps; l++ {
				if !mat.EqualApprox(res.Up[l], exact, 1e-8) {
					t.Fatalf("up l=%d:\n%v\nexpected\n%v", l, mat.Formatted(res.Up[l]), mat.Formatted(exact))
				}
				if !mat.EqualApprox(res.Dn[l], exact, 1e-8) {
					t.Fatalf("dn l=%d:\n%v\nexpected\n%v", l, mat.Formatted(res.Dn[l]), mat.Formatted(exact))
				}
			}
		})
	}
}

func TestHalfFilling(t *testing.T) {
	t.Parallel()
	// Half filled chain: mu = u/2 pins the density at one electron per site.
	model, err := lattice.NewChain(4, 2, 1, 1)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	cfg := Config{Beta: 0.5, TimeSteps: 10, Warmup: 100, Sweeps: 200, Seed: 42}
	sim, err := New(model, cfg)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	res, err := sim.Run()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if sim.Phase() != PhaseDone {
		t.Fatalf("%v, expected %v", sim.Phase(), PhaseDone)
	}

	filling := res.MeanFilling()
	if math.IsNaN(filling) || math.Abs(filling-1) > 0.35 {
		t.Fatalf("mean filling %f, expected close to 1", filling)
	}
}

func TestDetModeRun(t *testing.T) {
	t.Parallel()
	model, err := lattice.NewChain(3, 2, 1, 1)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	cfg := Config{Beta: 0.5, TimeSteps: 4, Warmup: 20, Sweeps: 40, DetMode: true, Seed: 5}
	sim, err := New(model, cfg)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	res, err := sim.Run()
	if err != nil {
		t.Fatalf("%+v", err)
	}

	filling := res.MeanFilling()
	if math.IsNaN(filling) || filling < 0.2 || filling > 1.8 {
		t.Fatalf("mean filling %f, expected a physical value", filling)
	}
}

func TestSingleTimeSlice(t *testing.T) {
	t.Parallel()
	for _, detMode := range []bool{false, true} {
		model, err := lattice.NewChain(3, 2, 1, 1)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		cfg := Config{Beta: 0.1, TimeSteps: 1, Warmup: 10, Sweeps: 20, DetMode: detMode, Seed: 3}
		sim, err := New(model, cfg)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		res, err := sim.Run()
		if err != nil {
			t.Fatalf("detMode=%v: %+v", detMode, err)
		}
		if len(res.Up) != 1 || len(res.Dn) != 1 {
			t.Fatalf("detMode=%v: %d up, %d dn slices, expected 1 each", detMode, len(res.Up), len(res.Dn))
		}
	}
}

func TestConfigValidation(t *testing.T) {
	t.Parallel()
	model, err := lattice.NewChain(2, 1, 1, 0)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	tests := []Config{
		{Beta: 0, TimeSteps: 4, Warmup: 1, Sweeps: 1},
		{Beta: -1, TimeSteps: 4, Warmup: 1, Sweeps: 1},
		{Beta: 1, TimeSteps: 0, Warmup: 1, Sweeps: 1},
		{Beta: 1, TimeSteps: 4, Warmup: -1, Sweeps: 1},
		{Beta: 1, TimeSteps: 4, Warmup: 1, Sweeps: -1},
	}
	for i, cfg := range tests {
		if _, err := New(model, cfg); err == nil {
			t.Fatalf("%d: expected error for %+v", i, cfg)
		}
	}
}

func TestFilling(t *testing.T) {
	t.Parallel()
	g := mat.NewDense(2, 2, []float64{0.25, 0.9, -0.3, 0.75})
	got := Filling([]*mat.Dense{g})
	want := [][]float64{{0.75, 0.25}}
	for l := range want {
		for i := range want[l] {
			if relDiff(got[l][i], want[l][i]) > 1e-12 {
				t.Fatalf("(%d, %d): %f, expected %f", l, i, got[l][i], want[l][i])
			}
		}
	}
}
