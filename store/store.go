// Package store persists Monte Carlo runs and their measured Green's
// functions to sqlite.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/fumin/lqmc"
)

const (
	// Spin indices of the greens table.
	SpinUp = 0
	SpinDn = 1
)

// DB wraps a sqlite connection holding simulation results.
type DB struct {
	db *sqlx.DB
}

// Open opens or creates the results database at path.
func Open(path string) (*DB, error) {
	db, err := sqlx.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "")
	}
	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func migrate(db *sqlx.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	sites INTEGER NOT NULL,
	u REAL NOT NULL,
	hop REAL NOT NULL,
	mu REAL NOT NULL,
	beta REAL NOT NULL,
	time_steps INTEGER NOT NULL,
	warmup INTEGER NOT NULL,
	sweeps INTEGER NOT NULL,
	det_mode INTEGER NOT NULL,
	seed INTEGER NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS greens (
	run_id TEXT NOT NULL,
	spin INTEGER NOT NULL,
	slice INTEGER NOT NULL,
	i INTEGER NOT NULL,
	j INTEGER NOT NULL,
	value REAL NOT NULL,
	PRIMARY KEY (run_id, spin, slice, i, j)
);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// Run is a persisted simulation run.
type Run struct {
	ID        string  `db:"id"`
	Sites     int     `db:"sites"`
	U         float64 `db:"u"`
	Hop       float64 `db:"hop"`
	Mu        float64 `db:"mu"`
	Beta      float64 `db:"beta"`
	TimeSteps int     `db:"time_steps"`
	Warmup    int     `db:"warmup"`
	Sweeps    int     `db:"sweeps"`
	DetMode   bool    `db:"det_mode"`
	Seed      int64   `db:"seed"`
	CreatedAt string  `db:"created_at"`
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// SaveRun inserts the run metadata.
func (d *DB) SaveRun(run Run) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if run.CreatedAt == "" {
		run.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	sqlStr := `INSERT INTO runs (id, sites, u, hop, mu, beta, time_steps, warmup, sweeps, det_mode, seed, created_at)
VALUES (:id, :sites, :u, :hop, :mu, :beta, :time_steps, :warmup, :sweeps, :det_mode, :seed, :created_at)`
	if _, err := d.db.NamedExecContext(ctx, sqlStr, run); err != nil {
		return errors.Wrap(err, fmt.Sprintf("%#v", run))
	}
	return nil
}

// SaveGreens stores the full (2, timeSteps, N, N) Green's function of a run.
func (d *DB) SaveGreens(runID string, res *lqmc.Result) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "")
	}
	sqlStr := `INSERT OR REPLACE INTO greens (run_id, spin, slice, i, j, value) VALUES (?, ?, ?, ?, ?, ?)`
	for spin, g := range [2][]*mat.Dense{res.Up, res.Dn} {
		for l, gl := range g {
			n, _ := gl.Dims()
			for i := 0; i < n; i++ {
				for j := 0; j < n; j++ {
					if _, err := tx.ExecContext(ctx, sqlStr, runID, spin, l, i, j, gl.At(i, j)); err != nil {
						tx.Rollback()
						return errors.Wrap(err, fmt.Sprintf("%s %d %d %d %d", runID, spin, l, i, j))
					}
				}
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// LoadRun reads back the run metadata.
func (d *DB) LoadRun(runID string) (Run, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var run Run
	if err := d.db.GetContext(ctx, &run, `SELECT * FROM runs WHERE id=?`, runID); err != nil {
		return Run{}, errors.Wrap(err, runID)
	}
	return run, nil
}

// LoadGreens reads back one spin and time slice as an n by n matrix.
func (d *DB) LoadGreens(runID string, spin, slice, n int) (*mat.Dense, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	rows, err := d.db.QueryContext(ctx, `SELECT i, j, value FROM greens WHERE run_id=? AND spin=? AND slice=?`, runID, spin, slice)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	g := mat.NewDense(n, n, nil)
	for rows.Next() {
		var i, j int
		var v float64
		if err := rows.Scan(&i, &j, &v); err != nil {
			return nil, errors.Wrap(err, "")
		}
		g.Set(i, j, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return g, nil
}
