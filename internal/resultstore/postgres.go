package resultstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/neurodetect-server/internal/domain"
)

// PostgresStore keeps the latest analysis in a single upserted row of the
// analysis_state table (created by the migrations).
type PostgresStore struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewPostgresStore connects to PostgreSQL and verifies the connection.
func NewPostgresStore(connStr string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{db: db, log: logger}, nil
}

// NewPostgresStoreFromDB wraps an existing handle, used by tests.
func NewPostgresStoreFromDB(db *sql.DB, logger *logrus.Logger) *PostgresStore {
	return &PostgresStore{db: db, log: logger}
}

// Persist replaces the stored analysis wholesale.
func (s *PostgresStore) Persist(ctx context.Context, record *domain.AnalysisRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding analysis record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analysis_state (key, payload, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()`,
		storageKey, string(payload),
	)
	if err != nil {
		return fmt.Errorf("persisting analysis record: %w", err)
	}
	return nil
}

// Latest returns the stored analysis or ErrNoAnalysis when none exists.
func (s *PostgresStore) Latest(ctx context.Context) (*domain.AnalysisRecord, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM analysis_state WHERE key = $1", storageKey,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNoAnalysis
	}
	if err != nil {
		return nil, fmt.Errorf("querying analysis record: %w", err)
	}

	record := &domain.AnalysisRecord{}
	if err := json.Unmarshal([]byte(payload), record); err != nil {
		s.log.WithError(err).Error("Corrupt analysis payload in result store, discarding")
		if _, derr := s.db.ExecContext(ctx,
			"DELETE FROM analysis_state WHERE key = $1", storageKey); derr != nil {
			return nil, fmt.Errorf("discarding corrupt analysis record: %w", derr)
		}
		return nil, domain.ErrNoAnalysis
	}
	return record, nil
}

// Close closes the underlying database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
