package registry

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurodetect-server/internal/domain"
)

// getTestPool returns a pgx pool for testing.
// Skip test if TEST_DATABASE_URL is not set.
func getTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL tests")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	// Test schema, mirroring migrations/0001_init.up.sql.
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS patients (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			age INTEGER NOT NULL,
			medical_id TEXT NOT NULL DEFAULT '',
			last_test_date TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL,
			risk_level TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, "TRUNCATE patients")
	require.NoError(t, err)

	return pool
}

func TestPostgresRegistry_CreateDeleteQuery(t *testing.T) {
	pool := getTestPool(t)
	ctx := context.Background()

	reg, err := NewPostgresRegistry(ctx, pool, false, testLogger())
	require.NoError(t, err)

	first, err := reg.Create(ctx, domain.PatientInfo{Name: "Jane Doe", Age: 29, MedicalID: "NHS-1"},
		domain.KindSeizure, domain.RiskHigh, testDate)
	require.NoError(t, err)
	assert.Equal(t, "MED-2024-001", first.ID)

	_, err = reg.Create(ctx, domain.PatientInfo{Name: "Bob Ray", Age: 51},
		domain.KindNormal, domain.RiskLow, testDate)
	require.NoError(t, err)

	records, err := reg.Query(ctx, "jane", domain.StatusFilterAll)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.KindSeizure, records[0].Status)

	require.NoError(t, reg.Delete(ctx, first.ID))
	count, err := reg.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Idempotent delete.
	require.NoError(t, reg.Delete(ctx, first.ID))
}

func TestPostgresRegistry_SeedsWhenEmpty(t *testing.T) {
	pool := getTestPool(t)
	ctx := context.Background()

	reg, err := NewPostgresRegistry(ctx, pool, true, testLogger())
	require.NoError(t, err)

	count, err := reg.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(SeedRecords()), count)
}
