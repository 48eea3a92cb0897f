package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const (
	// EngineConfigKey is the Redis key where the engine configuration
	// document is stored. The host application writes it when an
	// administrator changes automation settings.
	EngineConfigKey = "config:alert-engine"
)

// Store loads the hot-reloadable engine configuration from Redis.
// Callers receive a fresh snapshot on every Load; a missing document falls
// back to defaults, a corrupted or invalid document is an error so the
// scheduler can fail closed rather than run with undefined timing.
type Store struct {
	client *redis.Client
}

// NewStore creates a configuration store backed by the given Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Load reads and validates the current engine configuration snapshot.
func (s *Store) Load(ctx context.Context) (*EngineConfig, error) {
	data, err := s.client.Get(ctx, EngineConfigKey).Result()
	if err == redis.Nil {
		slog.Debug("No engine configuration document in Redis, using defaults",
			"key", EngineConfigKey,
		)
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read engine configuration: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal([]byte(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal engine configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine configuration: %w", err)
	}
	return cfg, nil
}
