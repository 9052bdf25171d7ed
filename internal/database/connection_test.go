package database

import (
	"context"
	"net/url"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/neurodetect-server/internal/domain"
)

// configFromTestURL translates TEST_DATABASE_URL into a DatabaseConfig.
// Skip test if the variable is not set.
func configFromTestURL(t *testing.T) domain.DatabaseConfig {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL tests")
	}

	parsed, err := url.Parse(dbURL)
	require.NoError(t, err)

	port := 5432
	if p := parsed.Port(); p != "" {
		port, err = strconv.Atoi(p)
		require.NoError(t, err)
	}
	password, _ := parsed.User.Password()

	return domain.DatabaseConfig{
		Host:            parsed.Hostname(),
		Port:            port,
		Database:        parsed.Path[1:],
		Username:        parsed.User.Username(),
		Password:        password,
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	}
}

func TestDatabaseConnection(t *testing.T) {
	config := configFromTestURL(t)
	ctx := context.Background()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel) // Reduce noise in tests

	db, err := NewConnection(ctx, config, logger)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Health(ctx))

	stats := db.Stats()
	if stats.TotalConns() == 0 {
		t.Error("Expected at least one connection in pool")
	}
}
