// Package store persists typing results in DuckDB (queryable, append-only),
// so runs over many samples can be compared after the fact.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection for typing results.
type Store struct {
	db   *sql.DB
	path string
}

// RunMeta describes one typing run.
type RunMeta struct {
	Fastq      string
	Alignment  string
	Model      string
	Reads      int
	ReadErrors int
}

// AlleleScore is one ranked allele of a recorded run.
type AlleleScore struct {
	Rank   int
	Allele string
	Score  float64
}

// Open opens or creates a DuckDB database at the given path. Use an empty
// string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create results directory: %w", err)
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

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS typing_runs (
			run_id BIGINT,
			fastq VARCHAR,
			alignment VARCHAR,
			model VARCHAR,
			reads BIGINT,
			read_errors BIGINT,
			created_at TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS allele_scores (
			run_id BIGINT,
			rank INTEGER,
			allele VARCHAR,
			score DOUBLE
		);
	`)
	return err
}

// RecordRun appends a run with its ranked allele scores and returns the new
// run's ID.
func (s *Store) RecordRun(meta RunMeta, scores []AlleleScore) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var runID int64
	if err := tx.QueryRow(`SELECT COALESCE(MAX(run_id), 0) + 1 FROM typing_runs`).Scan(&runID); err != nil {
		return 0, fmt.Errorf("allocate run id: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO typing_runs (run_id, fastq, alignment, model, reads, read_errors, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, runID, meta.Fastq, meta.Alignment, meta.Model, meta.Reads, meta.ReadErrors, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	for _, sc := range scores {
		_, err := tx.Exec(`
			INSERT INTO allele_scores (run_id, rank, allele, score)
			VALUES (?, ?, ?, ?)
		`, runID, sc.Rank, sc.Allele, sc.Score)
		if err != nil {
			return 0, fmt.Errorf("insert allele score: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run: %w", err)
	}
	return runID, nil
}

// RunScores returns the ranked alleles of a recorded run.
func (s *Store) RunScores(runID int64, limit int) ([]AlleleScore, error) {
	query := `
		SELECT rank, allele, score
		FROM allele_scores
		WHERE run_id = ?
		ORDER BY rank, allele
	`
	args := []any{runID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query allele scores: %w", err)
	}
	defer rows.Close()

	var scores []AlleleScore
	for rows.Next() {
		var sc AlleleScore
		if err := rows.Scan(&sc.Rank, &sc.Allele, &sc.Score); err != nil {
			return nil, fmt.Errorf("scan allele score: %w", err)
		}
		scores = append(scores, sc)
	}
	return scores, rows.Err()
}

// RunCount returns the number of recorded runs.
func (s *Store) RunCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM typing_runs`).Scan(&count)
	return count, err
}
