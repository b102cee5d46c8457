// Package cache holds the Redis-backed escalation checkpoint store. The
// store is the source of truth for "has this checkpoint fired for this
// request", shared across scheduler instances.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/damocles-platform/gdpr-engine/internal/infrastructure/config"
)

// checkpointTTL keeps fired flags around long past any realistic case
// lifetime; stale flags are harmless, lost ones are not.
const checkpointTTL = 2 * 365 * 24 * time.Hour

// CheckpointStore tracks fired escalation checkpoints in Redis. SETNX
// gives per-key atomicity: exactly one scheduler instance wins the mark
// for a given (request, checkpoint) pair.
type CheckpointStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewCheckpointStore connects to Redis and verifies the connection.
func NewCheckpointStore(cfg config.RedisConfig, logger *zap.Logger) (*CheckpointStore, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info("checkpoint store initialized",
		zap.String("addr", cfg.URL),
		zap.Int("db", cfg.DB))

	return &CheckpointStore{client: client, logger: logger}, nil
}

// NewCheckpointStoreWithClient wraps an existing client, used by tests.
func NewCheckpointStoreWithClient(client *redis.Client, logger *zap.Logger) *CheckpointStore {
	return &CheckpointStore{client: client, logger: logger}
}

func checkpointKey(requestID uuid.UUID, checkpoint string) string {
	return fmt.Sprintf("escalation:fired:%s:%s", requestID, checkpoint)
}

// MarkFired atomically claims the checkpoint. Returns true for the first
// caller, false when the checkpoint was already fired.
func (s *CheckpointStore) MarkFired(ctx context.Context, requestID uuid.UUID, checkpoint string) (bool, error) {
	key := checkpointKey(requestID, checkpoint)
	fresh, err := s.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), checkpointTTL).Result()
	if err != nil {
		s.logger.Error("checkpoint mark failed",
			zap.String("key", key),
			zap.Error(err))
		return false, fmt.Errorf("checkpoint mark failed: %w", err)
	}
	return fresh, nil
}

// Unmark rolls back a claim whose side effect failed.
func (s *CheckpointStore) Unmark(ctx context.Context, requestID uuid.UUID, checkpoint string) error {
	key := checkpointKey(requestID, checkpoint)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.logger.Error("checkpoint unmark failed",
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("checkpoint unmark failed: %w", err)
	}
	return nil
}

// Fired reports whether the checkpoint has been claimed.
func (s *CheckpointStore) Fired(ctx context.Context, requestID uuid.UUID, checkpoint string) (bool, error) {
	n, err := s.client.Exists(ctx, checkpointKey(requestID, checkpoint)).Result()
	if err != nil {
		return false, fmt.Errorf("checkpoint lookup failed: %w", err)
	}
	return n > 0, nil
}

// Close releases the Redis connection.
func (s *CheckpointStore) Close() error {
	return s.client.Close()
}
