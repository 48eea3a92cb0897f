// Package alerts defines the persisted alert record and its lifecycle
// vocabulary. Alerts are never physically deleted, only archived.
package alerts

import (
	"errors"
	"time"

	"alert-engine/internal/rules"
)

// Status is the lifecycle state of an alert, serialized as a lowercase token.
type Status string

const (
	StatusActive    Status = "active"
	StatusResolved  Status = "resolved"
	StatusEscalated Status = "escalated"
	StatusArchived  Status = "archived"
)

// String returns the status as a string.
func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether automatic transitions may still move the alert.
// Archived is reachable from any state via explicit user action only.
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusArchived
}

// IsValidStatus reports whether s is a known lifecycle state.
func IsValidStatus(s Status) bool {
	switch s {
	case StatusActive, StatusResolved, StatusEscalated, StatusArchived:
		return true
	}
	return false
}

// ErrInvalidTransition signals a lifecycle operation attempted from an
// incompatible state. No state change occurs when it is returned.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

// ErrNotFound signals that no alert exists for the given identifier.
var ErrNotFound = errors.New("alert not found")

// EscalationEntry is one audit record of a manual or automatic escalation.
type EscalationEntry struct {
	UserID    string    `json:"user_id"`
	Note      string    `json:"note"`
	Timestamp time.Time `json:"timestamp"`
}

// Alert is a persisted record of a triggered concern.
//
// RuleID and SubjectID are set when the alert was created by a rule firing;
// the pair is the deduplication boundary while the alert stays active.
// Manual alerts carry neither.
type Alert struct {
	AlertID          string            `json:"alert_id"`
	RuleID           string            `json:"rule_id,omitempty"`
	SubjectID        string            `json:"subject_id,omitempty"`
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	Type             rules.RuleType    `json:"type"`
	Priority         rules.Priority    `json:"priority"`
	Recipients       []string          `json:"recipients"`
	CourseID         string            `json:"course_id,omitempty"`
	SelectedStudents []string          `json:"selected_students,omitempty"`
	Status           Status            `json:"status"`
	EscalationLevel  int               `json:"escalation_level"`
	CreatedBy        string            `json:"created_by"`
	CreatedAt        time.Time         `json:"created_at"`
	ResolvedAt       *time.Time        `json:"resolved_at,omitempty"`
	ResolvedBy       string            `json:"resolved_by,omitempty"`
	ResolutionNote   string            `json:"resolution_note,omitempty"`
	ReadBy           []string          `json:"read_by"`
	RemindersSent    int               `json:"reminders_sent"`
	EscalationLog    []EscalationEntry `json:"escalation_log,omitempty"`
}

// Age returns how long the alert has been open relative to now.
func (a *Alert) Age(now time.Time) time.Duration {
	return now.Sub(a.CreatedAt)
}

// AlertListResult contains paginated alert results.
type AlertListResult struct {
	Alerts []*Alert `json:"alerts"`
	Total  int64    `json:"total"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
}
