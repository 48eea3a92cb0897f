// Package scheduler runs the periodic escalation and reminder pass over
// active alerts.
package scheduler

import (
	"context"
	"time"

	"alert-engine/internal/alerts"
	"alert-engine/internal/config"
)

// AlertStore is the subset of alert storage the scheduler needs.
// Implemented by the database layer.
type AlertStore interface {
	// ListOverdueActive returns active alerts created before the cutoff,
	// oldest first, bounded by limit.
	ListOverdueActive(ctx context.Context, cutoff time.Time, limit int) ([]*alerts.Alert, error)

	// EscalateAlert promotes an active alert via compare-and-set on status.
	EscalateAlert(ctx context.Context, alertID, userID, note string, recipients []string) (*alerts.Alert, error)

	// ListReminderCandidates returns active alerts older than olderThan with
	// fewer than maxSent reminders, oldest first, bounded by limit.
	ListReminderCandidates(ctx context.Context, olderThan time.Time, maxSent, limit int) ([]*alerts.Alert, error)

	// IncrementRemindersSent bumps the reminder counter via compare-and-set.
	// Returns false without error when another tick won the race.
	IncrementRemindersSent(ctx context.Context, alertID string, by, expectedSent int) (bool, error)
}

// ConfigSource yields the current engine configuration snapshot.
// Implemented by the config store.
type ConfigSource interface {
	Load(ctx context.Context) (*config.EngineConfig, error)
}

// EventPublisher publishes outbound notification events.
// Implemented by the Kafka producer.
type EventPublisher interface {
	Publish(ctx context.Context, key string, payload any) error
}
