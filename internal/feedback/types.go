// Package feedback provides the pharmacogenomic prior-feedback store.
// It persists clinician-curated multiplicative priors keyed by
// (gene, diplotype) and lets C5 nudge risk scores toward observed
// real-world outcomes. The core only ever reads from it (§5).
package feedback

import (
	"context"
	"io"
	"time"
)

// minPrior and maxPrior bound every prior this store returns, matching
// the external-interface contract in §6.
const (
	minPrior = 0.80
	maxPrior = 1.50
)

// PriorRecord is one clinician-curated adjustment for a (gene,
// diplotype) pair.
type PriorRecord struct {
	ID              int64     `json:"id,omitempty"`
	Gene            string    `json:"gene"`
	Diplotype       string    `json:"diplotype"`
	PriorMultiplier float64   `json:"prior_multiplier"`
	SampleCount     int       `json:"sample_count"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ClampPrior keeps a prior within the [minPrior, maxPrior] contract
// regardless of what a collaborator store happens to hold.
func ClampPrior(p float64) float64 {
	if p < minPrior {
		return minPrior
	}
	if p > maxPrior {
		return maxPrior
	}
	return p
}

// Store defines the interface for prior-feedback storage operations.
type Store interface {
	// Save stores or updates the prior for a (gene, diplotype) pair.
	Save(ctx context.Context, record *PriorRecord) error

	// Get retrieves the prior record for a (gene, diplotype) pair.
	Get(ctx context.Context, gene, diplotype string) (*PriorRecord, error)

	// Prior returns the clamped multiplicative prior for (gene,
	// diplotype), defaulting to 1.0 (neutral) when no record exists.
	Prior(ctx context.Context, gene, diplotype string) (float64, error)

	// List returns all prior records with pagination.
	List(ctx context.Context, limit, offset int) ([]*PriorRecord, error)

	// Count returns the total number of prior records.
	Count(ctx context.Context) (int64, error)

	// Delete removes a prior record by ID.
	Delete(ctx context.Context, id int64) error

	// ExportJSON exports all prior records to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON imports prior records from a JSON reader. Returns the
	// number of imported and skipped entries.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// PriorExport represents the JSON export format.
type PriorExport struct {
	Version    string         `json:"version"`
	ExportedAt time.Time      `json:"exported_at"`
	Count      int            `json:"count"`
	Priors     []*PriorRecord `json:"priors"`
}
