package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/neurodetect-server/internal/domain"
)

// SQLiteRegistry implements the PatientRegistry interface using SQLite.
// Records are stored one row per patient as JSON documents; row order is
// insertion order. A payload that fails to decode marks the store corrupt:
// it is logged, wiped and reseeded rather than surfaced to the caller.
type SQLiteRegistry struct {
	db   *sql.DB
	log  *logrus.Logger
	seed bool
	mu   sync.Mutex
}

// NewSQLiteRegistry opens (creating if needed) the registry database and
// seeds the demonstration records when the store is empty and seed is true.
func NewSQLiteRegistry(dbPath string, seed bool, logger *logrus.Logger) (*SQLiteRegistry, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency with the result store sharing the file
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS patients (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		payload TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_patients_id ON patients(id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	r := &SQLiteRegistry{db: db, log: logger, seed: seed}

	if seed {
		if err := r.seedIfEmpty(context.Background()); err != nil {
			db.Close()
			return nil, err
		}
	}

	return r, nil
}

// seedIfEmpty inserts the demonstration records when the table is empty.
// Seeding happens at most once per empty-state observation.
func (r *SQLiteRegistry) seedIfEmpty(ctx context.Context) error {
	count, err := r.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, rec := range SeedRecords() {
		if err := r.insert(ctx, rec); err != nil {
			return fmt.Errorf("seeding registry: %w", err)
		}
	}
	r.log.WithField("records", len(SeedRecords())).Info("Seeded patient registry with demonstration data")
	return nil
}

func (r *SQLiteRegistry) insert(ctx context.Context, rec *domain.PatientRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding patient record: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		"INSERT INTO patients (id, payload) VALUES (?, ?)",
		rec.ID, string(payload),
	)
	if err != nil {
		return fmt.Errorf("inserting patient record: %w", err)
	}
	return nil
}

// loadAll reads every record in insertion order. A row that fails to decode
// triggers the corruption recovery path: the store is wiped, reseeded and
// the seed set returned.
func (r *SQLiteRegistry) loadAll(ctx context.Context) ([]*domain.PatientRecord, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT payload FROM patients ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("querying patients: %w", err)
	}
	defer rows.Close()

	var records []*domain.PatientRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning patient row: %w", err)
		}
		rec := &domain.PatientRecord{}
		if err := json.Unmarshal([]byte(payload), rec); err != nil {
			rows.Close()
			return r.recoverCorrupt(ctx, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating patient rows: %w", err)
	}
	return records, nil
}

// recoverCorrupt wipes the store and reseeds it. This silent recovery can
// discard real data, so it is logged at Error rather than just swallowed.
func (r *SQLiteRegistry) recoverCorrupt(ctx context.Context, cause error) ([]*domain.PatientRecord, error) {
	r.log.WithError(cause).Error("Corrupt patient payload in registry store, discarding and reseeding")

	if _, err := r.db.ExecContext(ctx, "DELETE FROM patients"); err != nil {
		return nil, fmt.Errorf("wiping corrupt registry: %w", err)
	}
	if !r.seed {
		return []*domain.PatientRecord{}, nil
	}
	for _, rec := range SeedRecords() {
		if err := r.insert(ctx, rec); err != nil {
			return nil, err
		}
	}
	return SeedRecords(), nil
}

// Create appends a new patient record derived from one analysis.
func (r *SQLiteRegistry) Create(ctx context.Context, info domain.PatientInfo, status domain.ClassificationKind, risk domain.RiskLevel, testDate time.Time) (*domain.PatientRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count, err := r.Count(ctx)
	if err != nil {
		return nil, err
	}

	existing := make(map[string]bool)
	rows, err := r.db.QueryContext(ctx, "SELECT id FROM patients")
	if err != nil {
		return nil, fmt.Errorf("querying patient ids: %w", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning patient id: %w", err)
		}
		existing[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating patient ids: %w", err)
	}

	id := generateID(testDate.Year(), count, func(candidate string) bool {
		return existing[candidate]
	})

	rec := newRecord(id, info, status, risk, testDate)
	if err := r.insert(ctx, rec); err != nil {
		return nil, err
	}

	r.log.WithFields(logrus.Fields{
		"patient_id": rec.ID,
		"status":     rec.Status,
		"risk_level": rec.RiskLevel,
	}).Info("Patient record created")

	return rec, nil
}

// Delete removes the matching record; absent ids are a no-op.
func (r *SQLiteRegistry) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM patients WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting patient record: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n > 0 {
		r.log.WithField("patient_id", id).Info("Patient record deleted")
	}
	return nil
}

// Query returns records matching the search term and status filter in
// insertion order.
func (r *SQLiteRegistry) Query(ctx context.Context, searchTerm, statusFilter string) ([]*domain.PatientRecord, error) {
	records, err := r.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	return filterRecords(records, searchTerm, statusFilter), nil
}

// Count returns the number of records in the registry.
func (r *SQLiteRegistry) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM patients").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting patients: %w", err)
	}
	return count, nil
}

// Close closes the underlying database handle.
func (r *SQLiteRegistry) Close() error {
	return r.db.Close()
}
