package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/fumin/lqmc"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunRoundTrip(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)

	run := Run{
		ID:        NewRunID(),
		Sites:     4,
		U:         2,
		Hop:       1,
		Mu:        1,
		Beta:      0.5,
		TimeSteps: 10,
		Warmup:    100,
		Sweeps:    200,
		DetMode:   true,
		Seed:      42,
	}
	require.NoError(t, db.SaveRun(run))

	got, err := db.LoadRun(run.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, got.CreatedAt)
	got.CreatedAt = ""
	assert.Equal(t, run, got)

	_, err = db.LoadRun("no-such-run")
	assert.Error(t, err)
}

func TestSaveRunDuplicate(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	run := Run{ID: NewRunID(), Sites: 2, U: 1, Hop: 1, Beta: 1, TimeSteps: 2, Warmup: 1, Sweeps: 1}
	require.NoError(t, db.SaveRun(run))
	assert.Error(t, db.SaveRun(run))
}

func TestGreensRoundTrip(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)

	res := &lqmc.Result{
		Beta:      0.5,
		TimeSteps: 2,
		Up: []*mat.Dense{
			mat.NewDense(2, 2, []float64{0.1, 0.2, 0.3, 0.4}),
			mat.NewDense(2, 2, []float64{0.5, 0.6, 0.7, 0.8}),
		},
		Dn: []*mat.Dense{
			mat.NewDense(2, 2, []float64{-0.1, -0.2, -0.3, -0.4}),
			mat.NewDense(2, 2, []float64{-0.5, -0.6, -0.7, -0.8}),
		},
	}
	runID := NewRunID()
	require.NoError(t, db.SaveGreens(runID, res))

	for l := 0; l < 2; l++ {
		up, err := db.LoadGreens(runID, SpinUp, l, 2)
		require.NoError(t, err)
		assert.True(t, mat.Equal(res.Up[l], up), "up slice %d", l)

		dn, err := db.LoadGreens(runID, SpinDn, l, 2)
		require.NoError(t, err)
		assert.True(t, mat.Equal(res.Dn[l], dn), "dn slice %d", l)
	}

	// Saving again overwrites instead of erroring.
	require.NoError(t, db.SaveGreens(runID, res))
}
