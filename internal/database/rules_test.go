package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"alert-engine/internal/rules"
)

var ruleColumnList = []string{
	"rule_id", "name", "description", "type", "priority", "conditions",
	"actions", "enabled", "version", "created_by", "created_at", "updated_at",
}

// ruleRow builds a sqlmock row for one rule.
func ruleRow(ruleID string, version int) *sqlmock.Rows {
	conditions, _ := json.Marshal([]rules.Condition{
		{Field: rules.FieldAverageGrade, Operator: rules.OpLessThan, Value: 3.0},
	})
	actions, _ := json.Marshal([]rules.Action{
		{Type: rules.ActionCreateAlert, Targets: []rules.Target{rules.TargetCourseTeacher}},
	})
	return sqlmock.NewRows(ruleColumnList).AddRow(
		ruleID, "Low average grade", "", "academic", "high", conditions,
		actions, true, version, "admin-1", time.Now(), time.Now(),
	)
}

func testRule() *rules.Rule {
	return &rules.Rule{
		Name:     "Low average grade",
		Type:     rules.TypeAcademic,
		Priority: rules.PriorityHigh,
		Conditions: []rules.Condition{
			{Field: rules.FieldAverageGrade, Operator: rules.OpLessThan, Value: 3.0},
		},
		Actions: []rules.Action{
			{Type: rules.ActionCreateAlert, Targets: []rules.Target{rules.TargetCourseTeacher}},
		},
		Enabled:   true,
		CreatedBy: "admin-1",
	}
}

func TestDB_CreateRule(t *testing.T) {
	d, mock := newMockDB(t)
	ctx := context.Background()

	t.Run("successful create", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO alert_rules").
			WillReturnRows(ruleRow("rule-1", 1))

		created, err := d.CreateRule(ctx, testRule())
		if err != nil {
			t.Fatalf("CreateRule() error = %v", err)
		}
		if created.RuleID != "rule-1" || created.Version != 1 {
			t.Errorf("CreateRule() = %+v, want rule-1 at version 1", created)
		}
		if len(created.Conditions) != 1 || created.Conditions[0].Field != rules.FieldAverageGrade {
			t.Errorf("CreateRule() conditions = %+v, want average_grade condition", created.Conditions)
		}
	})

	t.Run("database error", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO alert_rules").
			WillReturnError(sql.ErrConnDone)

		if _, err := d.CreateRule(ctx, testRule()); err == nil {
			t.Fatal("CreateRule() error = nil, want error")
		}
	})
}

func TestDB_GetRule(t *testing.T) {
	d, mock := newMockDB(t)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM alert_rules WHERE rule_id").
			WithArgs("rule-1").
			WillReturnRows(ruleRow("rule-1", 1))

		r, err := d.GetRule(ctx, "rule-1")
		if err != nil {
			t.Fatalf("GetRule() error = %v", err)
		}
		if r.Name != "Low average grade" {
			t.Errorf("GetRule() name = %q", r.Name)
		}
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM alert_rules WHERE rule_id").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := d.GetRule(ctx, "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("GetRule() error = %v, want ErrNotFound", err)
		}
	})
}

func TestDB_UpdateRule(t *testing.T) {
	d, mock := newMockDB(t)
	ctx := context.Background()

	t.Run("successful update bumps version", func(t *testing.T) {
		mock.ExpectQuery("UPDATE alert_rules").
			WillReturnRows(ruleRow("rule-1", 2))

		updated, err := d.UpdateRule(ctx, "rule-1", testRule(), 1)
		if err != nil {
			t.Fatalf("UpdateRule() error = %v", err)
		}
		if updated.Version != 2 {
			t.Errorf("UpdateRule() version = %d, want 2", updated.Version)
		}
	})

	t.Run("stale version", func(t *testing.T) {
		mock.ExpectQuery("UPDATE alert_rules").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("rule-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		_, err := d.UpdateRule(ctx, "rule-1", testRule(), 1)
		if !errors.Is(err, ErrVersionMismatch) {
			t.Errorf("UpdateRule() error = %v, want ErrVersionMismatch", err)
		}
	})

	t.Run("missing rule", func(t *testing.T) {
		mock.ExpectQuery("UPDATE alert_rules").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := d.UpdateRule(ctx, "missing", testRule(), 1)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("UpdateRule() error = %v, want ErrNotFound", err)
		}
	})
}

func TestDB_ToggleRuleEnabled(t *testing.T) {
	d, mock := newMockDB(t)
	ctx := context.Background()

	mock.ExpectQuery("UPDATE alert_rules").
		WithArgs("rule-1", false, 1).
		WillReturnRows(ruleRow("rule-1", 2))

	if _, err := d.ToggleRuleEnabled(ctx, "rule-1", false, 1); err != nil {
		t.Fatalf("ToggleRuleEnabled() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Mock expectations were not met: %v", err)
	}
}

func TestDB_DeleteRule(t *testing.T) {
	d, mock := newMockDB(t)
	ctx := context.Background()

	t.Run("successful delete", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM alert_rules").
			WithArgs("rule-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		if err := d.DeleteRule(ctx, "rule-1"); err != nil {
			t.Errorf("DeleteRule() error = %v", err)
		}
	})

	t.Run("missing rule", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM alert_rules").
			WithArgs("missing").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := d.DeleteRule(ctx, "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("DeleteRule() error = %v, want ErrNotFound", err)
		}
	})
}

func TestDB_LatestRuleChange(t *testing.T) {
	d, mock := newMockDB(t)
	ctx := context.Background()

	t.Run("returns watermark", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("SELECT MAX").
			WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(now))

		got, err := d.LatestRuleChange(ctx)
		if err != nil {
			t.Fatalf("LatestRuleChange() error = %v", err)
		}
		if !got.Equal(now) {
			t.Errorf("LatestRuleChange() = %v, want %v", got, now)
		}
	})

	t.Run("no rules yields zero time", func(t *testing.T) {
		mock.ExpectQuery("SELECT MAX").
			WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

		got, err := d.LatestRuleChange(ctx)
		if err != nil {
			t.Fatalf("LatestRuleChange() error = %v", err)
		}
		if !got.IsZero() {
			t.Errorf("LatestRuleChange() = %v, want zero time", got)
		}
	})
}

func TestDB_ListEnabledRules(t *testing.T) {
	d, mock := newMockDB(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT (.+) FROM alert_rules").
		WillReturnRows(ruleRow("rule-1", 1))

	list, err := d.ListEnabledRules(ctx)
	if err != nil {
		t.Fatalf("ListEnabledRules() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("ListEnabledRules() = %d rules, want 1", len(list))
	}
}
