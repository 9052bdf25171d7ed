package resultstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/neurodetect-server/internal/domain"
)

// SQLiteStore persists the latest analysis as a single JSON row in a
// key/value table. Writing replaces the row, reading a payload that no
// longer decodes reports absence after logging.
type SQLiteStore struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewSQLiteStore opens (creating if needed) the result database.
func NewSQLiteStore(dbPath string, logger *logrus.Logger) (*SQLiteStore, error) {
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

	schema := `
	CREATE TABLE IF NOT EXISTS analysis_state (
		key TEXT PRIMARY KEY,
		payload TEXT NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, log: logger}, nil
}

// Persist replaces the stored analysis wholesale.
func (s *SQLiteStore) Persist(ctx context.Context, record *domain.AnalysisRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding analysis record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analysis_state (key, payload) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload`,
		storageKey, string(payload),
	)
	if err != nil {
		return fmt.Errorf("persisting analysis record: %w", err)
	}
	return nil
}

// Latest returns the stored analysis or ErrNoAnalysis when none exists.
// Undecodable payloads are discarded and reported as absence.
func (s *SQLiteStore) Latest(ctx context.Context) (*domain.AnalysisRecord, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM analysis_state WHERE key = ?", storageKey,
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
			"DELETE FROM analysis_state WHERE key = ?", storageKey); derr != nil {
			return nil, fmt.Errorf("discarding corrupt analysis record: %w", derr)
		}
		return nil, domain.ErrNoAnalysis
	}
	return record, nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
