// Package duckdb persists transcript models and prediction results.
// Transcript models are cached as gob files (fast, pure Go).
// Neoepitopes are stored in DuckDB per run (queryable, append-only).
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection holding prediction runs.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		run_id VARCHAR PRIMARY KEY,
		started_at TIMESTAMP,
		sample VARCHAR,
		gtf VARCHAR,
		genome VARCHAR,
		min_size INTEGER,
		max_size INTEGER
	)`); err != nil {
		return err
	}
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS neoepitopes (
		run_id VARCHAR,
		peptide VARCHAR,
		reference VARCHAR,
		transcript_id VARCHAR,
		gene_name VARCHAR,
		chrom VARCHAR,
		pos BIGINT,
		ref VARCHAR,
		alt VARCHAR,
		mutation_type VARCHAR,
		vaf DOUBLE,
		origin VARCHAR,
		haplotype VARCHAR
	)`)
	return err
}

// Run describes one prediction run.
type Run struct {
	ID        string
	StartedAt time.Time
	Sample    string
	GTF       string
	Genome    string
	MinSize   int
	MaxSize   int
}

// StartRun records a new run and returns it with a fresh ID and start time.
func (s *Store) StartRun(r Run) (Run, error) {
	r.ID = uuid.NewString()
	r.StartedAt = time.Now().UTC().Truncate(time.Microsecond)
	if _, err := s.db.Exec(`INSERT INTO runs VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt, r.Sample, r.GTF, r.Genome, r.MinSize, r.MaxSize); err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return r, nil
}

// Runs lists every recorded run, oldest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(`SELECT run_id, started_at, sample, gtf, genome, min_size, max_size
		FROM runs ORDER BY started_at, run_id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.Sample, &r.GTF, &r.Genome, &r.MinSize, &r.MaxSize); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ClearRun removes a run and its neoepitopes.
func (s *Store) ClearRun(runID string) error {
	if _, err := s.db.Exec("DELETE FROM neoepitopes WHERE run_id=?", runID); err != nil {
		return fmt.Errorf("delete neoepitopes: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM runs WHERE run_id=?", runID); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}
