package handlers

import (
	"context"
	"time"

	"alert-engine/internal/alerts"
	"alert-engine/internal/config"
	"alert-engine/internal/dispatcher"
	"alert-engine/internal/evaluator"
	"alert-engine/internal/patterns"
	"alert-engine/internal/risk"
	"alert-engine/internal/rules"
)

// RuleRepository abstracts rule storage for testing.
type RuleRepository interface {
	CreateRule(ctx context.Context, r *rules.Rule) (*rules.Rule, error)
	GetRule(ctx context.Context, ruleID string) (*rules.Rule, error)
	ListRules(ctx context.Context, ruleType *string, enabled *bool, limit, offset int) (*rules.RuleListResult, error)
	UpdateRule(ctx context.Context, ruleID string, r *rules.Rule, expectedVersion int) (*rules.Rule, error)
	ToggleRuleEnabled(ctx context.Context, ruleID string, enabled bool, expectedVersion int) (*rules.Rule, error)
	DeleteRule(ctx context.Context, ruleID string) error
}

// AlertRepository abstracts alert storage for testing.
type AlertRepository interface {
	InsertAlert(ctx context.Context, a *alerts.Alert) (*alerts.Alert, error)
	GetAlert(ctx context.Context, alertID string) (*alerts.Alert, error)
	ListAlerts(ctx context.Context, status, subjectID *string, limit, offset int) (*alerts.AlertListResult, error)
	ListAlertHistory(ctx context.Context, since time.Time) ([]*alerts.Alert, error)
	ResolveAlert(ctx context.Context, alertID, userID, note string) (*alerts.Alert, error)
	EscalateAlert(ctx context.Context, alertID, userID, note string, recipients []string) (*alerts.Alert, error)
	MarkAlertRead(ctx context.Context, alertID, userID string) error
	ArchiveAlert(ctx context.Context, alertID string) error
}

// Evaluator runs all enabled rules against one subject.
type Evaluator interface {
	EvaluateSubject(ctx context.Context, subjectID string) ([]evaluator.Firing, error)
	RuleCount() int
}

// ActionDispatcher executes the actions of a fired rule.
type ActionDispatcher interface {
	Dispatch(ctx context.Context, firing evaluator.Firing, sub dispatcher.SubjectContext) error
}

// RuleReloader refreshes the in-memory rule set after a rule mutation.
type RuleReloader interface {
	ReloadNow(ctx context.Context) error
}

// RiskScorer produces a risk prediction for one subject.
type RiskScorer interface {
	Score(ctx context.Context, subjectID string) (*risk.Prediction, error)
}

// ConfigSource yields the current engine configuration snapshot.
type ConfigSource interface {
	Load(ctx context.Context) (*config.EngineConfig, error)
}

// PatternMiner summarizes recurring alert patterns from history.
// Satisfied by patterns.Mine wrapped in MinerFunc.
type PatternMiner interface {
	Mine(history []*alerts.Alert) []patterns.Summary
}

// MinerFunc adapts a plain mining function to the PatternMiner interface.
type MinerFunc func(history []*alerts.Alert) []patterns.Summary

func (f MinerFunc) Mine(history []*alerts.Alert) []patterns.Summary {
	return f(history)
}
