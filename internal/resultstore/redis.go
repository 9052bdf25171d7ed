package resultstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/neurodetect-server/internal/domain"
)

// RedisStore keeps the latest analysis as a single JSON string under the
// storage key. The value has no TTL: it lives until the next replacement.
type RedisStore struct {
	redis *redis.Client
	log   *logrus.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string, logger *logrus.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{redis: client, log: logger}, nil
}

// Persist replaces the stored analysis wholesale.
func (s *RedisStore) Persist(ctx context.Context, record *domain.AnalysisRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding analysis record: %w", err)
	}
	if err := s.redis.Set(ctx, storageKey, payload, 0).Err(); err != nil {
		return fmt.Errorf("persisting analysis record: %w", err)
	}
	return nil
}

// Latest returns the stored analysis or ErrNoAnalysis when none exists.
// A corrupted entry is deleted and reported as absence.
func (s *RedisStore) Latest(ctx context.Context) (*domain.AnalysisRecord, error) {
	val, err := s.redis.Get(ctx, storageKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNoAnalysis
	}
	if err != nil {
		return nil, fmt.Errorf("querying analysis record: %w", err)
	}

	record := &domain.AnalysisRecord{}
	if err := json.Unmarshal([]byte(val), record); err != nil {
		s.log.WithError(err).Error("Corrupt analysis payload in result store, discarding")
		s.redis.Del(ctx, storageKey)
		return nil, domain.ErrNoAnalysis
	}
	return record, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.redis.Close()
}
