package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"alert-engine/internal/alerts"
)

const alertColumns = `alert_id, rule_id, subject_id, title, description, type, priority, recipients, course_id, selected_students, status, escalation_level, created_by, created_at, resolved_at, resolved_by, resolution_note, read_by, reminders_sent, escalation_log`

// scanAlert scans one alert row, handling nullable columns and the JSONB
// escalation log.
func scanAlert(row rowScanner) (*alerts.Alert, error) {
	var a alerts.Alert
	var ruleID, subjectID, courseID, resolvedBy, resolutionNote sql.NullString
	var resolvedAt sql.NullTime
	var escalationLog []byte
	if err := row.Scan(
		&a.AlertID,
		&ruleID,
		&subjectID,
		&a.Title,
		&a.Description,
		&a.Type,
		&a.Priority,
		pq.Array(&a.Recipients),
		&courseID,
		pq.Array(&a.SelectedStudents),
		&a.Status,
		&a.EscalationLevel,
		&a.CreatedBy,
		&a.CreatedAt,
		&resolvedAt,
		&resolvedBy,
		&resolutionNote,
		pq.Array(&a.ReadBy),
		&a.RemindersSent,
		&escalationLog,
	); err != nil {
		return nil, err
	}
	a.RuleID = ruleID.String
	a.SubjectID = subjectID.String
	a.CourseID = courseID.String
	a.ResolvedBy = resolvedBy.String
	a.ResolutionNote = resolutionNote.String
	if resolvedAt.Valid {
		t := resolvedAt.Time
		a.ResolvedAt = &t
	}
	if len(escalationLog) > 0 {
		if err := json.Unmarshal(escalationLog, &a.EscalationLog); err != nil {
			slog.Warn("Failed to unmarshal escalation log", "alert_id", a.AlertID, "error", err)
		}
	}
	return &a, nil
}

// nullIfEmpty maps empty strings to SQL NULL.
func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// InsertAlert inserts a manually created alert. No deduplication applies:
// manual alerts carry no (rule_id, subject_id) identity.
func (db *DB) InsertAlert(ctx context.Context, a *alerts.Alert) (*alerts.Alert, error) {
	query := `
		INSERT INTO alerts (alert_id, rule_id, subject_id, title, description, type, priority, recipients, course_id, selected_students, status, escalation_level, created_by, created_at, read_by, reminders_sent, escalation_log)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'active', 0, $11, NOW(), '{}', 0, '[]')
		RETURNING ` + alertColumns + `
	`
	created, err := scanAlert(db.conn.QueryRowContext(ctx, query,
		uuid.NewString(),
		nullIfEmpty(a.RuleID),
		nullIfEmpty(a.SubjectID),
		a.Title,
		a.Description,
		a.Type,
		a.Priority,
		pq.Array(a.Recipients),
		nullIfEmpty(a.CourseID),
		pq.Array(a.SelectedStudents),
		a.CreatedBy,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert alert: %w", err)
	}
	return created, nil
}

// InsertRuleAlert inserts an alert created by a rule firing, deduplicated
// against existing active alerts sharing (rule_id, subject_id). Uses
// INSERT ... ON CONFLICT DO NOTHING against the partial unique index so a
// concurrent firing can never create a second active alert.
// Returns nil, nil when an active alert already exists (no-op, not an error).
func (db *DB) InsertRuleAlert(ctx context.Context, a *alerts.Alert) (*alerts.Alert, error) {
	query := `
		INSERT INTO alerts (alert_id, rule_id, subject_id, title, description, type, priority, recipients, course_id, selected_students, status, escalation_level, created_by, created_at, read_by, reminders_sent, escalation_log)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'active', 0, $11, NOW(), '{}', 0, '[]')
		ON CONFLICT (rule_id, subject_id) WHERE status = 'active' DO NOTHING
		RETURNING ` + alertColumns + `
	`
	created, err := scanAlert(db.conn.QueryRowContext(ctx, query,
		uuid.NewString(),
		a.RuleID,
		a.SubjectID,
		a.Title,
		a.Description,
		a.Type,
		a.Priority,
		pq.Array(a.Recipients),
		nullIfEmpty(a.CourseID),
		pq.Array(a.SelectedStudents),
		a.CreatedBy,
	))
	if err == sql.ErrNoRows {
		// Conflict: an active alert from this rule already covers the subject.
		slog.Debug("Active alert already exists, skipping",
			"rule_id", a.RuleID,
			"subject_id", a.SubjectID,
		)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert alert: %w", err)
	}
	return created, nil
}

// GetAlert retrieves an alert by ID.
func (db *DB) GetAlert(ctx context.Context, alertID string) (*alerts.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE alert_id = $1`
	a, err := scanAlert(db.conn.QueryRowContext(ctx, query, alertID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("alert %s: %w", alertID, alerts.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return a, nil
}

// GetActiveAlertByRule returns the active alert created by the given rule for
// the given subject, or ErrNotFound when none exists.
func (db *DB) GetActiveAlertByRule(ctx context.Context, ruleID, subjectID string) (*alerts.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE rule_id = $1 AND subject_id = $2 AND status = 'active'
	`
	a, err := scanAlert(db.conn.QueryRowContext(ctx, query, ruleID, subjectID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no active alert for rule %s subject %s: %w", ruleID, subjectID, alerts.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active alert: %w", err)
	}
	return a, nil
}

// ListAlerts retrieves alerts with pagination, optionally filtered by status
// and/or subject.
func (db *DB) ListAlerts(ctx context.Context, status, subjectID *string, limit, offset int) (*alerts.AlertListResult, error) {
	where := "WHERE ($1::text IS NULL OR status = $1) AND ($2::text IS NULL OR subject_id = $2)"

	var total int64
	countQuery := `SELECT COUNT(*) FROM alerts ` + where
	if err := db.conn.QueryRowContext(ctx, countQuery, status, subjectID).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}

	query := `
		SELECT ` + alertColumns + `
		FROM alerts ` + where + `
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := db.conn.QueryContext(ctx, query, status, subjectID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var list []*alerts.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &alerts.AlertListResult{
		Alerts: list,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, nil
}

// ListAlertHistory returns every alert created at or after the given time,
// newest first. Feeds the pattern miner.
func (db *DB) ListAlertHistory(ctx context.Context, since time.Time) ([]*alerts.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE created_at >= $1
		ORDER BY created_at DESC
	`
	rows, err := db.conn.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list alert history: %w", err)
	}
	defer rows.Close()

	var list []*alerts.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// ResolveAlert transitions an alert to resolved via compare-and-set on
// status. Valid from active or escalated. Resolving an already-resolved
// alert is a no-op returning the current record, not an error.
func (db *DB) ResolveAlert(ctx context.Context, alertID, userID, note string) (*alerts.Alert, error) {
	query := `
		UPDATE alerts
		SET status = 'resolved',
		    resolved_at = NOW(),
		    resolved_by = $2,
		    resolution_note = $3
		WHERE alert_id = $1 AND status IN ('active', 'escalated')
		RETURNING ` + alertColumns + `
	`
	resolved, err := scanAlert(db.conn.QueryRowContext(ctx, query, alertID, userID, note))
	if err == sql.ErrNoRows {
		// Benign race or repeat call: re-read and decide from current state.
		current, getErr := db.GetAlert(ctx, alertID)
		if getErr != nil {
			return nil, getErr
		}
		if current.Status == alerts.StatusResolved {
			return current, nil
		}
		return nil, fmt.Errorf("cannot resolve alert %s in status %s: %w", alertID, current.Status, alerts.ErrInvalidTransition)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve alert: %w", err)
	}
	return resolved, nil
}

// EscalateAlert promotes an active alert: increments escalation_level, sets
// status to escalated, appends an audit entry, and optionally replaces the
// recipient set with the next tier. Compare-and-set on status; escalating a
// non-active alert returns ErrInvalidTransition with no state change.
func (db *DB) EscalateAlert(ctx context.Context, alertID, userID, note string, recipients []string) (*alerts.Alert, error) {
	entry, err := json.Marshal([]alerts.EscalationEntry{{
		UserID:    userID,
		Note:      note,
		Timestamp: time.Now().UTC(),
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal escalation entry: %w", err)
	}

	var newRecipients any
	if recipients != nil {
		newRecipients = pq.Array(recipients)
	}

	query := `
		UPDATE alerts
		SET status = 'escalated',
		    escalation_level = escalation_level + 1,
		    escalation_log = escalation_log || $2::jsonb,
		    recipients = COALESCE($3, recipients)
		WHERE alert_id = $1 AND status = 'active'
		RETURNING ` + alertColumns + `
	`
	escalated, err := scanAlert(db.conn.QueryRowContext(ctx, query, alertID, entry, newRecipients))
	if err == sql.ErrNoRows {
		current, getErr := db.GetAlert(ctx, alertID)
		if getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("cannot escalate alert %s in status %s: %w", alertID, current.Status, alerts.ErrInvalidTransition)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to escalate alert: %w", err)
	}
	return escalated, nil
}

// MarkAlertRead adds the user to the alert's read set. Valid in any state;
// never affects status. Marking twice is a no-op.
func (db *DB) MarkAlertRead(ctx context.Context, alertID, userID string) error {
	query := `
		UPDATE alerts
		SET read_by = array_append(read_by, $2)
		WHERE alert_id = $1 AND NOT ($2 = ANY(read_by))
	`
	result, err := db.conn.ExecContext(ctx, query, alertID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark alert read: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Either already read or the alert does not exist.
		var exists bool
		checkQuery := `SELECT EXISTS(SELECT 1 FROM alerts WHERE alert_id = $1)`
		if err := db.conn.QueryRowContext(ctx, checkQuery, alertID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check alert existence: %w", err)
		}
		if !exists {
			return fmt.Errorf("alert %s: %w", alertID, alerts.ErrNotFound)
		}
	}
	return nil
}

// ArchiveAlert transitions an alert to archived. Valid from any state and
// terminal; archiving an archived alert is a no-op.
func (db *DB) ArchiveAlert(ctx context.Context, alertID string) error {
	query := `
		UPDATE alerts
		SET status = 'archived'
		WHERE alert_id = $1 AND status <> 'archived'
	`
	result, err := db.conn.ExecContext(ctx, query, alertID)
	if err != nil {
		return fmt.Errorf("failed to archive alert: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var exists bool
		checkQuery := `SELECT EXISTS(SELECT 1 FROM alerts WHERE alert_id = $1)`
		if err := db.conn.QueryRowContext(ctx, checkQuery, alertID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check alert existence: %w", err)
		}
		if !exists {
			return fmt.Errorf("alert %s: %w", alertID, alerts.ErrNotFound)
		}
	}
	return nil
}

// ListOverdueActive returns active alerts created before the cutoff, oldest
// first, bounded by limit. Oldest-first ordering guarantees no overdue alert
// is starved across ticks.
func (db *DB) ListOverdueActive(ctx context.Context, cutoff time.Time, limit int) ([]*alerts.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE status = 'active' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := db.conn.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue alerts: %w", err)
	}
	defer rows.Close()

	var list []*alerts.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// ListReminderCandidates returns active alerts old enough to have crossed at
// least the first reminder threshold and with fewer reminders sent than
// thresholds configured, oldest first.
func (db *DB) ListReminderCandidates(ctx context.Context, olderThan time.Time, maxSent, limit int) ([]*alerts.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE status = 'active' AND created_at < $1 AND reminders_sent < $2
		ORDER BY created_at ASC
		LIMIT $3
	`
	rows, err := db.conn.QueryContext(ctx, query, olderThan, maxSent, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminder candidates: %w", err)
	}
	defer rows.Close()

	var list []*alerts.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// IncrementRemindersSent bumps the reminder counter via compare-and-set so a
// concurrent tick can never double-send the same threshold. A failed CAS is
// a benign race: the other tick already accounted for these reminders.
func (db *DB) IncrementRemindersSent(ctx context.Context, alertID string, by, expectedSent int) (bool, error) {
	query := `
		UPDATE alerts
		SET reminders_sent = reminders_sent + $2
		WHERE alert_id = $1 AND reminders_sent = $3 AND status = 'active'
	`
	result, err := db.conn.ExecContext(ctx, query, alertID, by, expectedSent)
	if err != nil {
		return false, fmt.Errorf("failed to increment reminders sent: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}
