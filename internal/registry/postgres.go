package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/neurodetect-server/internal/domain"
)

// PostgresRegistry implements the PatientRegistry interface on PostgreSQL.
// The patients table is created by the migration runner; rows are columnar
// and ordered by an insertion sequence.
type PostgresRegistry struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
	mu   sync.Mutex
}

// NewPostgresRegistry creates a registry over an existing connection pool
// and seeds the demonstration records when the table is empty and seed is
// true.
func NewPostgresRegistry(ctx context.Context, pool *pgxpool.Pool, seed bool, logger *logrus.Logger) (*PostgresRegistry, error) {
	r := &PostgresRegistry{pool: pool, log: logger}

	if seed {
		count, err := r.Count(ctx)
		if err != nil {
			return nil, err
		}
		if count == 0 {
			for _, rec := range SeedRecords() {
				if err := r.insert(ctx, rec); err != nil {
					return nil, fmt.Errorf("seeding registry: %w", err)
				}
			}
			logger.WithField("records", len(SeedRecords())).Info("Seeded patient registry with demonstration data")
		}
	}

	return r, nil
}

func (r *PostgresRegistry) insert(ctx context.Context, rec *domain.PatientRecord) error {
	query := `
		INSERT INTO patients (
			id, name, age, medical_id, last_test_date, status, risk_level, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)`

	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.Name,
		rec.Age,
		rec.MedicalID,
		rec.LastTestDate,
		string(rec.Status),
		string(rec.RiskLevel),
		rec.Timestamp,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"patient_id": rec.ID,
			"error":      err,
		}).Error("Failed to insert patient record")
		return fmt.Errorf("inserting patient record: %w", err)
	}
	return nil
}

// Create appends a new patient record derived from one analysis.
func (r *PostgresRegistry) Create(ctx context.Context, info domain.PatientInfo, status domain.ClassificationKind, risk domain.RiskLevel, testDate time.Time) (*domain.PatientRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count, err := r.Count(ctx)
	if err != nil {
		return nil, err
	}

	existing := make(map[string]bool)
	rows, err := r.pool.Query(ctx, "SELECT id FROM patients")
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
func (r *PostgresRegistry) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM patients WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting patient record: %w", err)
	}
	if tag.RowsAffected() > 0 {
		r.log.WithField("patient_id", id).Info("Patient record deleted")
	}
	return nil
}

// Query returns records matching the search term and status filter in
// insertion order.
func (r *PostgresRegistry) Query(ctx context.Context, searchTerm, statusFilter string) ([]*domain.PatientRecord, error) {
	query := `
		SELECT id, name, age, medical_id, last_test_date, status, risk_level, created_at
		FROM patients
		ORDER BY seq`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying patients: %w", err)
	}
	defer rows.Close()

	var records []*domain.PatientRecord
	for rows.Next() {
		rec := &domain.PatientRecord{}
		var status, risk string
		err := rows.Scan(
			&rec.ID,
			&rec.Name,
			&rec.Age,
			&rec.MedicalID,
			&rec.LastTestDate,
			&status,
			&risk,
			&rec.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning patient row: %w", err)
		}
		rec.Status = domain.ClassificationKind(status)
		rec.RiskLevel = domain.RiskLevel(risk)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating patient rows: %w", err)
	}

	return filterRecords(records, searchTerm, statusFilter), nil
}

// Count returns the number of records in the registry.
func (r *PostgresRegistry) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM patients").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting patients: %w", err)
	}
	return count, nil
}

// Close releases nothing of its own; the pool is owned by the caller.
func (r *PostgresRegistry) Close() error { return nil }
