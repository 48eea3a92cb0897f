package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"alert-engine/internal/rules"
)

const ruleColumns = `rule_id, name, description, type, priority, conditions, actions, enabled, version, created_by, created_at, updated_at`

// scanRule scans one rule row, deserializing the JSONB condition and action
// lists.
func scanRule(row rowScanner) (*rules.Rule, error) {
	var r rules.Rule
	var conditionsJSON, actionsJSON []byte
	if err := row.Scan(
		&r.RuleID,
		&r.Name,
		&r.Description,
		&r.Type,
		&r.Priority,
		&conditionsJSON,
		&actionsJSON,
		&r.Enabled,
		&r.Version,
		&r.CreatedBy,
		&r.CreatedAt,
		&r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(conditionsJSON, &r.Conditions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule conditions: %w", err)
	}
	if err := json.Unmarshal(actionsJSON, &r.Actions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule actions: %w", err)
	}
	return &r, nil
}

// marshalRuleLists serializes the condition and action lists for JSONB storage.
func marshalRuleLists(r *rules.Rule) ([]byte, []byte, error) {
	conditionsJSON, err := json.Marshal(r.Conditions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal rule conditions: %w", err)
	}
	actionsJSON, err := json.Marshal(r.Actions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal rule actions: %w", err)
	}
	return conditionsJSON, actionsJSON, nil
}

// CreateRule creates a new rule in the database.
// Returns the created rule with generated rule_id and version 1.
func (db *DB) CreateRule(ctx context.Context, r *rules.Rule) (*rules.Rule, error) {
	conditionsJSON, actionsJSON, err := marshalRuleLists(r)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO alert_rules (name, description, type, priority, conditions, actions, enabled, version, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, NOW(), NOW())
		RETURNING ` + ruleColumns + `
	`
	created, err := scanRule(db.conn.QueryRowContext(ctx, query,
		r.Name,
		r.Description,
		r.Type,
		r.Priority,
		conditionsJSON,
		actionsJSON,
		r.Enabled,
		r.CreatedBy,
	))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			return nil, fmt.Errorf("rule already exists with name %q", r.Name)
		}
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}
	return created, nil
}

// GetRule retrieves a rule by ID.
func (db *DB) GetRule(ctx context.Context, ruleID string) (*rules.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM alert_rules WHERE rule_id = $1`
	r, err := scanRule(db.conn.QueryRowContext(ctx, query, ruleID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("rule %s: %w", ruleID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return r, nil
}

// ListRules retrieves rules with pagination, optionally filtered by type
// and/or enabled status.
func (db *DB) ListRules(ctx context.Context, ruleType *string, enabled *bool, limit, offset int) (*rules.RuleListResult, error) {
	where := "WHERE ($1::text IS NULL OR type = $1) AND ($2::boolean IS NULL OR enabled = $2)"

	var total int64
	countQuery := `SELECT COUNT(*) FROM alert_rules ` + where
	if err := db.conn.QueryRowContext(ctx, countQuery, ruleType, enabled).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count rules: %w", err)
	}

	query := `
		SELECT ` + ruleColumns + `
		FROM alert_rules ` + where + `
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := db.conn.QueryContext(ctx, query, ruleType, enabled, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var list []*rules.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &rules.RuleListResult{
		Rules:  list,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, nil
}

// ListEnabledRules returns every enabled rule, oldest first. Used to build
// the in-memory rule set for evaluation.
func (db *DB) ListEnabledRules(ctx context.Context) ([]*rules.Rule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM alert_rules
		WHERE enabled = TRUE
		ORDER BY created_at ASC
	`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled rules: %w", err)
	}
	defer rows.Close()

	var list []*rules.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

// LatestRuleChange returns the most recent updated_at across all rules.
// Returns the zero time when no rules exist.
func (db *DB) LatestRuleChange(ctx context.Context) (time.Time, error) {
	var watermark sql.NullTime
	query := `SELECT MAX(updated_at) FROM alert_rules`
	if err := db.conn.QueryRowContext(ctx, query).Scan(&watermark); err != nil {
		return time.Time{}, fmt.Errorf("failed to get latest rule change: %w", err)
	}
	if !watermark.Valid {
		return time.Time{}, nil
	}
	return watermark.Time, nil
}

// UpdateRule updates a rule with optimistic locking.
// Returns ErrVersionMismatch if the expected version is stale.
func (db *DB) UpdateRule(ctx context.Context, ruleID string, r *rules.Rule, expectedVersion int) (*rules.Rule, error) {
	conditionsJSON, actionsJSON, err := marshalRuleLists(r)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE alert_rules
		SET name = $2,
		    description = $3,
		    type = $4,
		    priority = $5,
		    conditions = $6,
		    actions = $7,
		    version = version + 1,
		    updated_at = NOW()
		WHERE rule_id = $1 AND version = $8
		RETURNING ` + ruleColumns + `
	`
	updated, err := scanRule(db.conn.QueryRowContext(ctx, query,
		ruleID,
		r.Name,
		r.Description,
		r.Type,
		r.Priority,
		conditionsJSON,
		actionsJSON,
		expectedVersion,
	))
	if err == sql.ErrNoRows {
		return nil, db.classifyRuleCASFailure(ctx, ruleID, expectedVersion)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}
	return updated, nil
}

// ToggleRuleEnabled toggles the enabled status of a rule with optimistic locking.
func (db *DB) ToggleRuleEnabled(ctx context.Context, ruleID string, enabled bool, expectedVersion int) (*rules.Rule, error) {
	query := `
		UPDATE alert_rules
		SET enabled = $2,
		    version = version + 1,
		    updated_at = NOW()
		WHERE rule_id = $1 AND version = $3
		RETURNING ` + ruleColumns + `
	`
	updated, err := scanRule(db.conn.QueryRowContext(ctx, query, ruleID, enabled, expectedVersion))
	if err == sql.ErrNoRows {
		return nil, db.classifyRuleCASFailure(ctx, ruleID, expectedVersion)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to toggle rule enabled: %w", err)
	}
	return updated, nil
}

// DeleteRule deletes a rule by ID. Alerts already created from the rule keep
// their rule_id reference and are unaffected.
func (db *DB) DeleteRule(ctx context.Context, ruleID string) error {
	query := `DELETE FROM alert_rules WHERE rule_id = $1`
	result, err := db.conn.ExecContext(ctx, query, ruleID)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("rule %s: %w", ruleID, ErrNotFound)
	}
	return nil
}

// classifyRuleCASFailure distinguishes a missing rule from a stale version
// after an optimistic-locking update matched no rows.
func (db *DB) classifyRuleCASFailure(ctx context.Context, ruleID string, expectedVersion int) error {
	var exists bool
	checkQuery := `SELECT EXISTS(SELECT 1 FROM alert_rules WHERE rule_id = $1)`
	if err := db.conn.QueryRowContext(ctx, checkQuery, ruleID).Scan(&exists); err == nil && exists {
		return fmt.Errorf("rule %s expected version %d: %w", ruleID, expectedVersion, ErrVersionMismatch)
	}
	return fmt.Errorf("rule %s: %w", ruleID, ErrNotFound)
}
