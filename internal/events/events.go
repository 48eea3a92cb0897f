// Package events defines the outbound event structures the engine publishes
// to the notification and task transports. Delivery success or failure is
// not observable by the engine.
package events

import "time"

// SchemaVersion is the current outbound event schema version.
const SchemaVersion = 1

// NotificationKind classifies why a notification was emitted.
type NotificationKind string

const (
	KindAlertCreated NotificationKind = "alert_created"
	KindNotification NotificationKind = "notification"
	KindReminder     NotificationKind = "reminder"
	KindEscalation   NotificationKind = "escalation"
)

// NotificationEvent is the opaque payload handed to the notification
// transport. Target may be a role-group token resolved at delivery time.
type NotificationEvent struct {
	Target        string           `json:"target"`
	AlertID       string           `json:"alert_id"`
	Kind          NotificationKind `json:"kind"`
	Title         string           `json:"title,omitempty"`
	Priority      string           `json:"priority,omitempty"`
	SchemaVersion int              `json:"schema_version"`
	EventTS       int64            `json:"event_ts"`
}

// NewNotification creates a notification event stamped with the current time.
func NewNotification(target, alertID string, kind NotificationKind, title, priority string) *NotificationEvent {
	return &NotificationEvent{
		Target:        target,
		AlertID:       alertID,
		Kind:          kind,
		Title:         title,
		Priority:      priority,
		SchemaVersion: SchemaVersion,
		EventTS:       time.Now().Unix(),
	}
}

// TaskAssigned is emitted when an assign_task action fires. Task persistence
// is owned by the consuming system.
type TaskAssigned struct {
	RuleID        string   `json:"rule_id"`
	SubjectID     string   `json:"subject_id"`
	Targets       []string `json:"targets"`
	Description   string   `json:"description"`
	Priority      string   `json:"priority"`
	SchemaVersion int      `json:"schema_version"`
	EventTS       int64    `json:"event_ts"`
}

// NewTaskAssigned creates a task assignment event stamped with the current time.
func NewTaskAssigned(ruleID, subjectID string, targets []string, description, priority string) *TaskAssigned {
	return &TaskAssigned{
		RuleID:        ruleID,
		SubjectID:     subjectID,
		Targets:       targets,
		Description:   description,
		Priority:      priority,
		SchemaVersion: SchemaVersion,
		EventTS:       time.Now().Unix(),
	}
}
