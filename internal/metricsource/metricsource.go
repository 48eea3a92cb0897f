// Package metricsource provides the metric snapshot boundary between the
// engine and the systems that record grades, attendance, and behavior
// incidents. The engine only ever reads snapshots; it never mutates them.
package metricsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// SnapshotKeyPrefix is the Redis key prefix for per-subject metric
	// snapshots. The host application refreshes these documents whenever a
	// grade, attendance record, or incident is written.
	SnapshotKeyPrefix = "metrics:subject:"
)

// ErrUnavailable signals that the metric source could not be reached or
// timed out. Callers degrade to "missing field" rather than failing the
// evaluation batch.
var ErrUnavailable = errors.New("metric source unavailable")

// Snapshot is a point-in-time view of a subject's metrics. A field absent
// from the map means the underlying data does not exist for the subject.
type Snapshot map[string]any

// Provider yields current academic/attendance/behavior metrics for a subject.
type Provider interface {
	// GetSnapshot returns the subject's current metrics restricted to the
	// requested fields. An empty field list returns all known metrics.
	// Fields with no recorded data are simply absent from the result.
	GetSnapshot(ctx context.Context, subjectID string, fields []string) (Snapshot, error)
}

// RedisProvider reads per-subject metric snapshots from Redis with a bounded
// call timeout.
type RedisProvider struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisProvider creates a provider reading snapshots from the given Redis
// client. The timeout bounds every snapshot read.
func NewRedisProvider(client *redis.Client, timeout time.Duration) *RedisProvider {
	return &RedisProvider{
		client:  client,
		timeout: timeout,
	}
}

// GetSnapshot loads the subject's metric document and filters it to the
// requested fields. A missing document yields an empty snapshot; Redis
// errors and timeouts are wrapped in ErrUnavailable.
func (p *RedisProvider) GetSnapshot(ctx context.Context, subjectID string, fields []string) (Snapshot, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	data, err := p.client.Get(callCtx, SnapshotKeyPrefix+subjectID).Result()
	if err == redis.Nil {
		slog.Debug("No metric snapshot for subject", "subject_id", subjectID)
		return Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}

	var full Snapshot
	if err := json.Unmarshal([]byte(data), &full); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metric snapshot for subject %s: %w", subjectID, err)
	}

	if len(fields) == 0 {
		return full, nil
	}

	filtered := make(Snapshot, len(fields))
	for _, f := range fields {
		if v, ok := full[f]; ok {
			filtered[f] = v
		}
	}
	return filtered, nil
}
