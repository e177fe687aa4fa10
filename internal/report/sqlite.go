package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/signalsfoundry/soilcn-simulator/core"
)

// RunRecord is one unit run as stored in SQLite.
type RunRecord struct {
	RunID             string
	Study             string
	Unit              string
	Status            string
	Iterations        int
	CalibrationFactor float64
	MeasuredSOC       float64
	SimulatedSOC      float64
	Error             string
	Summary           []core.SummaryRow
	CreatedAt         time.Time
}

// SQLiteSink persists unit runs and their tables to a SQLite database. Tables
// are stored as JSON blobs keyed by run and table name.
type SQLiteSink struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewSQLiteSink opens or creates the database at path.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	if path == "" {
		path = "soilcn.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			study TEXT NOT NULL,
			unit TEXT NOT NULL,
			status TEXT NOT NULL,
			iterations INTEGER NOT NULL,
			calibration_factor REAL NOT NULL,
			measured_soc REAL NOT NULL,
			simulated_soc REAL NOT NULL,
			error TEXT NOT NULL,
			summary BLOB,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS unit_tables (
			run_id TEXT NOT NULL,
			name TEXT NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (run_id, name)
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create tables: %w", err)
		}
	}
	return &SQLiteSink{db: db, path: path}, nil
}

// Write stores the run record and, when the steady state converged, its
// carbon, nitrogen and water tables in one transaction.
func (s *SQLiteSink) Write(ctx context.Context, study string, outcome core.UnitOutcome) (retErr error) {
	rec := RunRecord{
		Study:     study,
		Unit:      outcome.Unit,
		Status:    outcome.Status(),
		CreatedAt: time.Now().UTC(),
	}
	if outcome.Err != nil {
		rec.Error = outcome.Err.Error()
	}
	var conv *core.ConvergenceError
	if errors.As(outcome.Err, &conv) {
		rec.Iterations = conv.Iterations
		rec.MeasuredSOC = conv.Measured
		rec.SimulatedSOC = conv.Simulated
	}
	res := outcome.Result
	if res != nil {
		rec.RunID = res.RunID
		if ss := res.SteadyState; ss != nil {
			rec.Iterations = ss.Iterations
			rec.CalibrationFactor = ss.CalibrationFactor
			rec.MeasuredSOC = ss.Measured
			rec.SimulatedSOC = ss.Simulated
			rec.Summary = core.SummaryTable(res)
		}
	}
	if rec.RunID == "" {
		rec.RunID = uuid.NewString()
	}

	summary, err := json.Marshal(rec.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `INSERT INTO runs(run_id,study,unit,status,iterations,calibration_factor,measured_soc,simulated_soc,error,summary,created_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(run_id) DO UPDATE SET status=excluded.status, iterations=excluded.iterations,
			calibration_factor=excluded.calibration_factor, measured_soc=excluded.measured_soc,
			simulated_soc=excluded.simulated_soc, error=excluded.error, summary=excluded.summary`,
		rec.RunID, rec.Study, rec.Unit, rec.Status, rec.Iterations, rec.CalibrationFactor,
		rec.MeasuredSOC, rec.SimulatedSOC, rec.Error, summary, rec.CreatedAt.Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("upsert run %s: %w", rec.RunID, err)
	}

	if res != nil && res.SteadyState != nil {
		for _, tbl := range unitTables(res) {
			payload, err := json.Marshal(tbl)
			if err != nil {
				return fmt.Errorf("encode %s table: %w", tbl.Name, err)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO unit_tables(run_id,name,payload) VALUES(?,?,?)
				ON CONFLICT(run_id,name) DO UPDATE SET payload=excluded.payload`, rec.RunID, tbl.Name, payload); err != nil {
				return fmt.Errorf("upsert %s table: %w", tbl.Name, err)
			}
		}
	}
	return tx.Commit()
}

// Runs returns every stored run ordered by study and unit.
func (s *SQLiteSink) Runs(ctx context.Context) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id,study,unit,status,iterations,calibration_factor,
		measured_soc,simulated_soc,error,summary,created_at FROM runs ORDER BY study, unit, created_at`)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []RunRecord
	for rows.Next() {
		var (
			rec     RunRecord
			summary []byte
			created string
		)
		if err := rows.Scan(&rec.RunID, &rec.Study, &rec.Unit, &rec.Status, &rec.Iterations, &rec.CalibrationFactor,
			&rec.MeasuredSOC, &rec.SimulatedSOC, &rec.Error, &summary, &created); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if len(summary) > 0 {
			if err := json.Unmarshal(summary, &rec.Summary); err != nil {
				return nil, fmt.Errorf("decode summary: %w", err)
			}
		}
		if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Table loads one stored table of a run. It returns sql.ErrNoRows when the
// run has no such table.
func (s *SQLiteSink) Table(ctx context.Context, runID, name string) (core.Table, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM unit_tables WHERE run_id=? AND name=?`, runID, name).Scan(&payload)
	if err != nil {
		return core.Table{}, err
	}
	var tbl core.Table
	if err := json.Unmarshal(payload, &tbl); err != nil {
		return core.Table{}, fmt.Errorf("decode %s table: %w", name, err)
	}
	return tbl, nil
}

// Close closes the database.
func (s *SQLiteSink) Close() error { return s.db.Close() }

// Path returns the configured database path.
func (s *SQLiteSink) Path() string { return s.path }
