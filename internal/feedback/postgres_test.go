package feedback

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// getTestDB spins up a disposable Postgres container and returns a
// connection with the priors schema already created. Skips when Docker
// is unavailable in the test environment.
func getTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("pgx_feedback_test"),
		tcpostgres.WithUsername("pgx"),
		tcpostgres.WithPassword("pgx"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		),
	)
	if err != nil {
		t.Skipf("postgres testcontainer unavailable, skipping: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS priors (
			id BIGSERIAL PRIMARY KEY,
			gene TEXT NOT NULL,
			diplotype TEXT NOT NULL,
			prior_multiplier DOUBLE PRECISION NOT NULL DEFAULT 1.0,
			sample_count INTEGER NOT NULL DEFAULT 0,
			notes TEXT DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			CONSTRAINT priors_gene_diplotype_unique UNIQUE (gene, diplotype)
		)
	`)
	require.NoError(t, err)

	return db
}

func TestPostgresStore_Save(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	ctx := context.Background()
	record := &PriorRecord{
		Gene:            "CYP2D6",
		Diplotype:       "*4/*4",
		PriorMultiplier: 1.20,
		SampleCount:     8,
		Notes:           "cohort A observation",
	}

	err = store.Save(ctx, record)
	require.NoError(t, err)
	assert.NotZero(t, record.ID)
	assert.NotZero(t, record.CreatedAt)
	assert.NotZero(t, record.UpdatedAt)
}

func TestPostgresStore_SaveUpdate(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	ctx := context.Background()
	record := &PriorRecord{Gene: "CYP2C19", Diplotype: "*1/*2", PriorMultiplier: 1.0}

	err = store.Save(ctx, record)
	require.NoError(t, err)
	originalID := record.ID

	record.PriorMultiplier = 0.88
	record.Notes = "Updated after review"

	err = store.Save(ctx, record)
	require.NoError(t, err)

	assert.Equal(t, originalID, record.ID)

	retrieved, err := store.Get(ctx, record.Gene, record.Diplotype)
	require.NoError(t, err)
	assert.Equal(t, 0.88, retrieved.PriorMultiplier)
	assert.Equal(t, "Updated after review", retrieved.Notes)
}

func TestPostgresStore_Get(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	ctx := context.Background()

	fb, err := store.Get(ctx, "NONE", "*1/*1")
	require.NoError(t, err)
	assert.Nil(t, fb)

	saved := &PriorRecord{Gene: "TPMT", Diplotype: "*1/*3A", PriorMultiplier: 0.95}
	err = store.Save(ctx, saved)
	require.NoError(t, err)

	retrieved, err := store.Get(ctx, saved.Gene, saved.Diplotype)
	require.NoError(t, err)
	require.NotNil(t, retrieved)
	assert.Equal(t, saved.Gene, retrieved.Gene)
	assert.Equal(t, saved.PriorMultiplier, retrieved.PriorMultiplier)
}

func TestPostgresStore_Prior_DefaultsToNeutral(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	prior, err := store.Prior(context.Background(), "CYP2D6", "*1/*1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, prior)
}

func TestPostgresStore_List(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	ctx := context.Background()

	for i := 0; i < 5; i++ {
		record := &PriorRecord{Gene: "CYP2C9", Diplotype: "*1/*" + string(rune('0'+i)), PriorMultiplier: 1.0}
		err = store.Save(ctx, record)
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
	}

	list, err := store.List(ctx, 3, 0)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	list, err = store.List(ctx, 3, 3)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestPostgresStore_Count(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	ctx := context.Background()

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	for i := 0; i < 3; i++ {
		record := &PriorRecord{Gene: "DPYD", Diplotype: "*1/*" + string(rune('0'+i)), PriorMultiplier: 1.0}
		err = store.Save(ctx, record)
		require.NoError(t, err)
	}

	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestPostgresStore_Delete(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	ctx := context.Background()

	record := &PriorRecord{Gene: "SLCO1B1", Diplotype: "*1/*5", PriorMultiplier: 1.1}
	err = store.Save(ctx, record)
	require.NoError(t, err)

	err = store.Delete(ctx, record.ID)
	require.NoError(t, err)

	retrieved, err := store.Get(ctx, record.Gene, record.Diplotype)
	require.NoError(t, err)
	assert.Nil(t, retrieved)
}
