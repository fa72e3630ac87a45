package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite feedback store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPriorRecord(s scanner) (*PriorRecord, error) {
	r := &PriorRecord{}
	err := s.Scan(
		&r.ID, &r.Gene, &r.Diplotype, &r.PriorMultiplier,
		&r.SampleCount, &r.Notes, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS priors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		gene TEXT NOT NULL,
		diplotype TEXT NOT NULL,
		prior_multiplier REAL NOT NULL DEFAULT 1.0,
		sample_count INTEGER NOT NULL DEFAULT 0,
		notes TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(gene, diplotype)
	);

	CREATE INDEX IF NOT EXISTS idx_priors_gene ON priors(gene);
	CREATE INDEX IF NOT EXISTS idx_priors_created_at ON priors(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores or updates the prior for a (gene, diplotype) pair.
func (s *SQLiteStore) Save(ctx context.Context, record *PriorRecord) error {
	now := time.Now()
	record.PriorMultiplier = ClampPrior(record.PriorMultiplier)

	var existingID int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM priors WHERE gene = ? AND diplotype = ?",
		record.Gene, record.Diplotype,
	).Scan(&existingID)

	if err == nil {
		record.ID = existingID
		record.UpdatedAt = now

		_, err = s.db.ExecContext(ctx, `
			UPDATE priors SET
				prior_multiplier = ?,
				sample_count = ?,
				notes = ?,
				updated_at = ?
			WHERE id = ?
		`,
			record.PriorMultiplier,
			record.SampleCount,
			record.Notes,
			now,
			existingID,
		)
		return err
	}

	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	record.CreatedAt = now
	record.UpdatedAt = now

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO priors (
			gene, diplotype, prior_multiplier, sample_count, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		record.Gene,
		record.Diplotype,
		record.PriorMultiplier,
		record.SampleCount,
		record.Notes,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	record.ID = id

	return nil
}

// Get retrieves the prior record for a (gene, diplotype) pair.
func (s *SQLiteStore) Get(ctx context.Context, gene, diplotype string) (*PriorRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, gene, diplotype, prior_multiplier, sample_count, notes, created_at, updated_at
		FROM priors
		WHERE gene = ? AND diplotype = ?
		LIMIT 1
	`, gene, diplotype)

	r, err := scanPriorRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return r, nil
}

// Prior returns the clamped multiplicative prior, defaulting to 1.0
// when no record exists.
func (s *SQLiteStore) Prior(ctx context.Context, gene, diplotype string) (float64, error) {
	r, err := s.Get(ctx, gene, diplotype)
	if err != nil {
		return 0, err
	}
	if r == nil {
		return 1.0, nil
	}
	return ClampPrior(r.PriorMultiplier), nil
}

// List returns all prior records with pagination.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*PriorRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, gene, diplotype, prior_multiplier, sample_count, notes, created_at, updated_at
		FROM priors
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*PriorRecord
	for rows.Next() {
		r, err := scanPriorRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// Count returns the total number of prior records.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM priors").Scan(&count)
	return count, err
}

// Delete removes a prior record by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM priors WHERE id = ?", id)
	return err
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// ExportJSON exports all prior records to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list priors: %w", err)
	}

	export := &PriorExport{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Count:      len(all),
		Priors:     all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// ImportJSON imports prior records from a JSON reader.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	var export PriorExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, r := range export.Priors {
		existing, err := s.Get(ctx, r.Gene, r.Diplotype)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}

		if existing != nil {
			skipped++
			continue
		}

		if err := s.Save(ctx, r); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
