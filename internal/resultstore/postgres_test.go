package resultstore

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurodetect-server/internal/domain"
)

func TestPostgresStore_PersistUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStoreFromDB(db, testLogger())

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO analysis_state")).
		WithArgs(storageKey, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = store.Persist(context.Background(), sampleRecord("eeg_recording.csv"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestDecodesPayload(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStoreFromDB(db, testLogger())

	payload, err := json.Marshal(sampleRecord("eeg_recording.csv"))
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT payload FROM analysis_state")).
		WithArgs(storageKey).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(string(payload)))

	got, err := store.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "eeg_recording.csv", got.FileName)
	assert.Equal(t, domain.KindSeizure, got.Results[domain.ModelQDA].PredictedClass)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestEmptyReturnsNoAnalysis(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStoreFromDB(db, testLogger())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT payload FROM analysis_state")).
		WithArgs(storageKey).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	_, err = store.Latest(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoAnalysis)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestCorruptPayloadDiscards(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStoreFromDB(db, testLogger())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT payload FROM analysis_state")).
		WithArgs(storageKey).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow("{broken"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM analysis_state")).
		WithArgs(storageKey).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err = store.Latest(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoAnalysis)
	assert.NoError(t, mock.ExpectationsWereMet())
}
