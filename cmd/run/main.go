// Command run executes a determinantal quantum Monte Carlo simulation of the
// Hubbard model on a periodic chain and stores the measured Green's
// functions.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/fumin/lqmc"
	"github.com/fumin/lqmc/gftools"
	"github.com/fumin/lqmc/lattice"
	"github.com/fumin/lqmc/store"
)

var (
	sites     = flag.Int("n", 4, "number of lattice sites")
	u         = flag.Float64("u", 2, "on-site interaction")
	hop       = flag.Float64("t", 1, "hopping amplitude")
	mu        = flag.Float64("mu", 1, "chemical potential")
	beta      = flag.Float64("beta", 0.5, "inverse temperature")
	timeSteps = flag.Int("nt", 10, "number of imaginary time slices")
	warmup    = flag.Int("warmup", 100, "warmup sweeps")
	sweeps    = flag.Int("sweeps", 200, "measurement sweeps")
	detMode   = flag.Bool("det", false, "use the slow algorithm via determinants")
	seed      = flag.Uint64("seed", 0, "random seed")
	dbPath    = flag.String("db", filepath.Join("runs", "lqmc.db"), "results database")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	if err := mainWithErr(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func mainWithErr() error {
	model, err := lattice.NewChain(*sites, *u, *hop, *mu)
	if err != nil {
		return errors.Wrap(err, "")
	}
	cfg := lqmc.Config{
		Beta:      *beta,
		TimeSteps: *timeSteps,
		Warmup:    *warmup,
		Sweeps:    *sweeps,
		DetMode:   *detMode,
		Seed:      *seed,
	}
	sim, err := lqmc.New(model, cfg)
	if err != nil {
		return errors.Wrap(err, "")
	}
	sim.Progress = func(phase lqmc.Phase, sweep int) {
		if sweep%50 == 0 {
			log.Printf("%s sweep %d", phase, sweep)
		}
	}

	log.Printf("warmup %d, measurement %d, %s iterations", *warmup, *sweeps, humanize.Comma(int64(sim.Iterations())))
	res, err := sim.Run()
	if err != nil {
		return errors.Wrap(err, "")
	}

	nUp := flatten(lqmc.Filling(res.Up))
	nDn := flatten(lqmc.Filling(res.Dn))
	fmt.Printf("<n_up> = %.3f\n", stat.Mean(nUp, nil))
	fmt.Printf("<n_dn> = %.3f\n", stat.Mean(nDn, nil))
	fmt.Printf("<n>    = %.3f\n", stat.Mean(nUp, nil)+stat.Mean(nDn, nil))

	if err := printMatsubara(res); err != nil {
		return errors.Wrap(err, "")
	}
	return save(model, cfg, res)
}

// printMatsubara prints the first Matsubara frequencies of the local Green's
// function at site 0. The beta endpoint is fixed by the unit 1/z moment.
func printMatsubara(res *lqmc.Result) error {
	gfTau := make([]float64, res.TimeSteps+1)
	for l := 0; l < res.TimeSteps; l++ {
		gfTau[l] = res.Up[l].At(0, 0)
	}
	gfTau[res.TimeSteps] = -1 - gfTau[0]

	iws, gfIw, err := gftools.Tau2Iw(gfTau, res.Beta, nil)
	if err != nil {
		return errors.Wrap(err, "")
	}
	for k := 0; k < 3 && k < len(gfIw); k++ {
		fmt.Printf("G(iw_%d) = %.4f%+.4fi at w_%d = %.4f\n", k, real(gfIw[k]), imag(gfIw[k]), k, imag(iws[k]))
	}
	return nil
}

func save(model *lattice.Model, cfg lqmc.Config, res *lqmc.Result) error {
	if err := os.MkdirAll(filepath.Dir(*dbPath), os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}
	db, err := store.Open(*dbPath)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer db.Close()

	runID := store.NewRunID()
	run := store.Run{
		ID:        runID,
		Sites:     model.NumSites(),
		U:         model.U,
		Hop:       model.T,
		Mu:        model.Mu,
		Beta:      cfg.Beta,
		TimeSteps: cfg.TimeSteps,
		Warmup:    cfg.Warmup,
		Sweeps:    cfg.Sweeps,
		DetMode:   cfg.DetMode,
		Seed:      int64(cfg.Seed),
	}
	if err := db.SaveRun(run); err != nil {
		return errors.Wrap(err, "")
	}
	if err := db.SaveGreens(runID, res); err != nil {
		return errors.Wrap(err, "")
	}
	log.Printf("saved run %s to %s", runID, *dbPath)
	return nil
}

func flatten(rows [][]float64) []float64 {
	out := make([]float64, 0, len(rows)*len(rows[0]))
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}
