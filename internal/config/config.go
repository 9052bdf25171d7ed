package config

import (
	"fmt"
	"strings"

	"github.com/neurodetect-server/internal/domain"
	"github.com/spf13/viper"
)

// Manager loads and validates application configuration using Viper.
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/neurodetect/")

	viper.SetEnvPrefix("NEURODETECT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults and env vars cover everything.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.rate_limit", 20)
	viper.SetDefault("server.max_upload_mb", 100)

	// Storage defaults: process-local sqlite, demo data seeded when empty
	viper.SetDefault("storage.registry_backend", "sqlite")
	viper.SetDefault("storage.result_backend", "sqlite")
	viper.SetDefault("storage.sqlite_path", "./data/neurodetect.db")
	viper.SetDefault("storage.migrations_path", "./migrations")
	viper.SetDefault("storage.seed_demo_data", true)

	// Database defaults (postgres backends)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "neurodetect")
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")

	// Cache defaults (redis result backend)
	viper.SetDefault("cache.redis_url", "redis://localhost:6379")
	viper.SetDefault("cache.pool_size", 10)
	viper.SetDefault("cache.pool_timeout", "4s")
	viper.SetDefault("cache.max_retries", 3)

	// Classification service defaults
	viper.SetDefault("classifier.base_url", "http://localhost:8000")
	viper.SetDefault("classifier.timeout", "60s")
	viper.SetDefault("classifier.rate_limit", 5)
	viper.SetDefault("classifier.breaker.max_requests", 3)
	viper.SetDefault("classifier.breaker.interval", "10s")
	viper.SetDefault("classifier.breaker.timeout", "30s")
	viper.SetDefault("classifier.breaker.failure_threshold", 5)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	validRegistry := map[string]bool{"sqlite": true, "postgres": true, "memory": true}
	if !validRegistry[config.Storage.RegistryBackend] {
		return fmt.Errorf("invalid registry backend: %s", config.Storage.RegistryBackend)
	}

	validResults := map[string]bool{"sqlite": true, "postgres": true, "redis": true, "memory": true}
	if !validResults[config.Storage.ResultBackend] {
		return fmt.Errorf("invalid result backend: %s", config.Storage.ResultBackend)
	}

	if config.Storage.RegistryBackend == "sqlite" || config.Storage.ResultBackend == "sqlite" {
		if config.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for sqlite backends")
		}
	}

	if config.Storage.RegistryBackend == "postgres" || config.Storage.ResultBackend == "postgres" {
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	}

	if config.Storage.ResultBackend == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required for the redis result backend")
	}

	if config.Classifier.BaseURL == "" {
		return fmt.Errorf("classifier base URL is required")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// GetDatabaseURL returns the database URL used by the migration runner
func (m *Manager) GetDatabaseURL() string {
	db := m.config.Database
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		db.Username, db.Password, db.Host, db.Port, db.Database, db.SSLMode)
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(viper.GetString("environment")) == "production"
}
