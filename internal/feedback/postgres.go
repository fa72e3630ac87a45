package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL feedback store.
// It expects the database and schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL feedback store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Save stores or updates the prior for a (gene, diplotype) pair.
func (s *PostgresStore) Save(ctx context.Context, record *PriorRecord) error {
	now := time.Now()
	record.PriorMultiplier = ClampPrior(record.PriorMultiplier)

	query := `
		INSERT INTO priors (
			gene, diplotype, prior_multiplier, sample_count, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (gene, diplotype) DO UPDATE SET
			prior_multiplier = EXCLUDED.prior_multiplier,
			sample_count = EXCLUDED.sample_count,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		record.Gene,
		record.Diplotype,
		record.PriorMultiplier,
		record.SampleCount,
		record.Notes,
		now,
		now,
	).Scan(&record.ID, &record.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to save prior: %w", err)
	}

	record.UpdatedAt = now
	return nil
}

// Get retrieves the prior record for a (gene, diplotype) pair.
func (s *PostgresStore) Get(ctx context.Context, gene, diplotype string) (*PriorRecord, error) {
	query := `
		SELECT id, gene, diplotype, prior_multiplier, sample_count, notes, created_at, updated_at
		FROM priors
		WHERE gene = $1 AND diplotype = $2
		LIMIT 1
	`

	r := &PriorRecord{}
	err := s.db.QueryRowContext(ctx, query, gene, diplotype).Scan(
		&r.ID, &r.Gene, &r.Diplotype, &r.PriorMultiplier,
		&r.SampleCount, &r.Notes, &r.CreatedAt, &r.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prior: %w", err)
	}

	return r, nil
}

// Prior returns the clamped multiplicative prior, defaulting to 1.0
// when no record exists.
func (s *PostgresStore) Prior(ctx context.Context, gene, diplotype string) (float64, error) {
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
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*PriorRecord, error) {
	query := `
		SELECT id, gene, diplotype, prior_multiplier, sample_count, notes, created_at, updated_at
		FROM priors
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list priors: %w", err)
	}
	defer rows.Close()

	var result []*PriorRecord
	for rows.Next() {
		r := &PriorRecord{}
		err := rows.Scan(
			&r.ID, &r.Gene, &r.Diplotype, &r.PriorMultiplier,
			&r.SampleCount, &r.Notes, &r.CreatedAt, &r.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, r)
	}

	return result, rows.Err()
}

// Count returns the total number of prior records.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM priors").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count priors: %w", err)
	}
	return count, nil
}

// Delete removes a prior record by ID.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM priors WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete prior: %w", err)
	}
	return nil
}

// pgMaxExportLimit is the maximum number of entries to export at once.
const pgMaxExportLimit = 1000000

// ExportJSON exports all prior records to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, pgMaxExportLimit, 0)
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
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
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
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
