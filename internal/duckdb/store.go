// Package duckdb stores finished cleavage site reports in DuckDB and caches
// the parsed transcript index as gob files.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection holding cleavage sites.
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

// ensureSchema creates tables if they don't exist. Sites are 0-based;
// counts that do not apply to a row are NULL.
func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS cleavage_sites (
		chrom VARCHAR,
		site BIGINT,
		gene VARCHAR,
		transcript_id VARCHAR,
		transcript_strand TINYINT,
		coding BOOLEAN,
		contigs VARCHAR,
		within_utr BOOLEAN,
		distance BIGINT,
		ests BIGINT,
		tail_length BIGINT,
		tail_reads BIGINT,
		bridge_reads BIGINT,
		max_bridge_length BIGINT,
		bridge_ids VARCHAR,
		tail_bridge_reads BIGINT,
		link_pairs BIGINT,
		max_link_length BIGINT,
		link_ids VARCHAR,
		hexamers VARCHAR,
		utr3_start BIGINT,
		utr3_end BIGINT,
		PRIMARY KEY (chrom, site)
	)`)
	return err
}
