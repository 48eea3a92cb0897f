// Package dispatcher resolves triggered rule actions into alert records and
// outbound notification or task events.
package dispatcher

import (
	"context"

	"alert-engine/internal/alerts"
)

// AlertStore is the subset of alert storage the dispatcher needs.
// Implemented by the database layer.
type AlertStore interface {
	// InsertRuleAlert inserts an alert deduplicated against active alerts
	// sharing (rule_id, subject_id). Returns nil, nil when deduplicated.
	InsertRuleAlert(ctx context.Context, a *alerts.Alert) (*alerts.Alert, error)

	// GetActiveAlertByRule returns the active alert for (rule_id, subject_id)
	// or alerts.ErrNotFound.
	GetActiveAlertByRule(ctx context.Context, ruleID, subjectID string) (*alerts.Alert, error)

	// EscalateAlert promotes an active alert, optionally replacing its
	// recipient set. Returns alerts.ErrInvalidTransition from other states.
	EscalateAlert(ctx context.Context, alertID, userID, note string, recipients []string) (*alerts.Alert, error)
}

// EventPublisher publishes outbound events keyed for partitioning.
// Implemented by the Kafka producer.
type EventPublisher interface {
	Publish(ctx context.Context, key string, payload any) error
}
