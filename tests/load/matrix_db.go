// Package load records query-ingestion throughput runs in a small SQLite
// results database.
package load

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const matrixDBFilename = "term_parse_results.db"

// MatrixDBPath returns the path to the results SQLite DB for a given
// results directory.
func MatrixDBPath(resultsDir string) string {
	return filepath.Join(resultsDir, matrixDBFilename)
}

// OpenMatrixDB opens or creates the results database at the given path.
func OpenMatrixDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open results db: %w", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			output_dir TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			total_benchmarks INTEGER DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS term_parse_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL REFERENCES runs(id),
			benchmark_name TEXT NOT NULL,
			term_count INTEGER NOT NULL,
			max_depth INTEGER NOT NULL,
			iterations INTEGER NOT NULL,
			duration_sec REAL NOT NULL,
			terms_parsed_per_sec REAL NOT NULL,
			bytes_allocated_per_op INTEGER NOT NULL
		);
	`)
	return err
}

// InsertRun inserts a new run row and returns its id.
func InsertRun(db *sql.DB, outputDir string) (int64, error) {
	startedAt := time.Now().UTC().Format(time.RFC3339)
	res, err := db.Exec(
		`INSERT INTO runs (output_dir, started_at) VALUES (?, ?)`,
		outputDir, startedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return res.LastInsertId()
}

// FinishRun stamps a run as finished with its total benchmark count.
func FinishRun(db *sql.DB, runID int64, totalBenchmarks int) error {
	finishedAt := time.Now().UTC().Format(time.RFC3339)
	_, err := db.Exec(
		`UPDATE runs SET finished_at = ?, total_benchmarks = ? WHERE id = ?`,
		finishedAt, totalBenchmarks, runID,
	)
	return err
}

// TermParseResult is one benchmark's parse-throughput measurement.
type TermParseResult struct {
	BenchmarkName       string
	TermCount           int
	MaxDepth            int
	Iterations          int
	Duration            time.Duration
	TermsParsedPerSec   float64
	BytesAllocatedPerOp int64
}

// InsertTermParseResult inserts a single term-parse benchmark result row.
func InsertTermParseResult(db *sql.DB, runID int64, r *TermParseResult) error {
	_, err := db.Exec(
		`INSERT INTO term_parse_runs (
			run_id, benchmark_name, term_count, max_depth, iterations,
			duration_sec, terms_parsed_per_sec, bytes_allocated_per_op
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, r.BenchmarkName, r.TermCount, r.MaxDepth, r.Iterations,
		r.Duration.Seconds(), r.TermsParsedPerSec, r.BytesAllocatedPerOp,
	)
	return err
}

// QueryLatestRunID returns the id of the most recent run, or 0 if none.
func QueryLatestRunID(db *sql.DB) (int64, error) {
	var id int64
	err := db.QueryRow(`SELECT id FROM runs ORDER BY id DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return id, err
}
