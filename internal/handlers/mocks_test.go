package handlers

import (
	"context"
	"time"

	"alert-engine/internal/alerts"
	"alert-engine/internal/config"
	"alert-engine/internal/database"
	"alert-engine/internal/dispatcher"
	"alert-engine/internal/evaluator"
	"alert-engine/internal/risk"
	"alert-engine/internal/rules"
)

// fakeRuleRepo implements RuleRepository in memory.
type fakeRuleRepo struct {
	rules       map[string]*rules.Rule
	createErr   error
	getErr      error
	updateErr   error
	deleteErr   error
	createCalls int
}

func newFakeRuleRepo() *fakeRuleRepo {
	return &fakeRuleRepo{rules: make(map[string]*rules.Rule)}
}

func (f *fakeRuleRepo) CreateRule(_ context.Context, r *rules.Rule) (*rules.Rule, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	created := *r
	created.RuleID = "rule-created"
	created.Version = 1
	f.rules[created.RuleID] = &created
	return &created, nil
}

func (f *fakeRuleRepo) GetRule(_ context.Context, ruleID string) (*rules.Rule, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	r, ok := f.rules[ruleID]
	if !ok {
		return nil, f.notFound()
	}
	return r, nil
}

func (f *fakeRuleRepo) ListRules(_ context.Context, _ *string, _ *bool, limit, offset int) (*rules.RuleListResult, error) {
	list := make([]*rules.Rule, 0, len(f.rules))
	for _, r := range f.rules {
		list = append(list, r)
	}
	return &rules.RuleListResult{Rules: list, Total: int64(len(list)), Limit: limit, Offset: offset}, nil
}

func (f *fakeRuleRepo) UpdateRule(_ context.Context, ruleID string, r *rules.Rule, expectedVersion int) (*rules.Rule, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	existing, ok := f.rules[ruleID]
	if !ok {
		return nil, f.notFound()
	}
	updated := *r
	updated.RuleID = ruleID
	updated.Version = existing.Version + 1
	f.rules[ruleID] = &updated
	_ = expectedVersion
	return &updated, nil
}

func (f *fakeRuleRepo) ToggleRuleEnabled(_ context.Context, ruleID string, enabled bool, _ int) (*rules.Rule, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	existing, ok := f.rules[ruleID]
	if !ok {
		return nil, f.notFound()
	}
	existing.Enabled = enabled
	existing.Version++
	return existing, nil
}

func (f *fakeRuleRepo) DeleteRule(_ context.Context, ruleID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.rules[ruleID]; !ok {
		return f.notFound()
	}
	delete(f.rules, ruleID)
	return nil
}

func (f *fakeRuleRepo) notFound() error {
	return database.ErrNotFound
}

// fakeAlertRepo implements AlertRepository in memory.
type fakeAlertRepo struct {
	alerts     map[string]*alerts.Alert
	history    []*alerts.Alert
	insertErr  error
	resolveErr error
	inserted   []*alerts.Alert
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{alerts: make(map[string]*alerts.Alert)}
}

func (f *fakeAlertRepo) InsertAlert(_ context.Context, a *alerts.Alert) (*alerts.Alert, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	created := *a
	created.AlertID = "alert-created"
	created.CreatedAt = time.Now()
	f.alerts[created.AlertID] = &created
	f.inserted = append(f.inserted, &created)
	return &created, nil
}

func (f *fakeAlertRepo) GetAlert(_ context.Context, alertID string) (*alerts.Alert, error) {
	a, ok := f.alerts[alertID]
	if !ok {
		return nil, alerts.ErrNotFound
	}
	return a, nil
}

func (f *fakeAlertRepo) ListAlerts(_ context.Context, _, _ *string, limit, offset int) (*alerts.AlertListResult, error) {
	list := make([]*alerts.Alert, 0, len(f.alerts))
	for _, a := range f.alerts {
		list = append(list, a)
	}
	return &alerts.AlertListResult{Alerts: list, Total: int64(len(list)), Limit: limit, Offset: offset}, nil
}

func (f *fakeAlertRepo) ListAlertHistory(_ context.Context, _ time.Time) ([]*alerts.Alert, error) {
	return f.history, nil
}

func (f *fakeAlertRepo) ResolveAlert(_ context.Context, alertID, userID, note string) (*alerts.Alert, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	a, ok := f.alerts[alertID]
	if !ok {
		return nil, alerts.ErrNotFound
	}
	if a.Status == alerts.StatusArchived {
		return nil, alerts.ErrInvalidTransition
	}
	now := time.Now()
	a.Status = alerts.StatusResolved
	a.ResolvedAt = &now
	a.ResolvedBy = userID
	a.ResolutionNote = note
	return a, nil
}

func (f *fakeAlertRepo) EscalateAlert(_ context.Context, alertID, userID, note string, recipients []string) (*alerts.Alert, error) {
	a, ok := f.alerts[alertID]
	if !ok {
		return nil, alerts.ErrNotFound
	}
	if a.Status.IsTerminal() {
		return nil, alerts.ErrInvalidTransition
	}
	a.Status = alerts.StatusEscalated
	a.EscalationLevel++
	if len(recipients) > 0 {
		a.Recipients = recipients
	}
	_ = userID
	_ = note
	return a, nil
}

func (f *fakeAlertRepo) MarkAlertRead(_ context.Context, alertID, userID string) error {
	a, ok := f.alerts[alertID]
	if !ok {
		return alerts.ErrNotFound
	}
	a.ReadBy = append(a.ReadBy, userID)
	return nil
}

func (f *fakeAlertRepo) ArchiveAlert(_ context.Context, alertID string) error {
	a, ok := f.alerts[alertID]
	if !ok {
		return alerts.ErrNotFound
	}
	a.Status = alerts.StatusArchived
	return nil
}

// fakeEngine implements Evaluator.
type fakeEngine struct {
	firings []evaluator.Firing
	err     error
	count   int
}

func (f *fakeEngine) EvaluateSubject(_ context.Context, _ string) ([]evaluator.Firing, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.firings, nil
}

func (f *fakeEngine) RuleCount() int { return f.count }

// fakeDispatcher implements ActionDispatcher.
type fakeDispatcher struct {
	dispatched []evaluator.Firing
	err        error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, firing evaluator.Firing, _ dispatcher.SubjectContext) error {
	if f.err != nil {
		return f.err
	}
	f.dispatched = append(f.dispatched, firing)
	return nil
}

// fakeReloader implements RuleReloader.
type fakeReloader struct {
	calls int
	err   error
}

func (f *fakeReloader) ReloadNow(_ context.Context) error {
	f.calls++
	return f.err
}

// fakeScorer implements RiskScorer.
type fakeScorer struct {
	prediction *risk.Prediction
	err        error
}

func (f *fakeScorer) Score(_ context.Context, _ string) (*risk.Prediction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.prediction, nil
}

// fakeConfigSource implements ConfigSource.
type fakeConfigSource struct {
	cfg *config.EngineConfig
	err error
}

func (f *fakeConfigSource) Load(_ context.Context) (*config.EngineConfig, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.cfg == nil {
		return config.Default(), nil
	}
	return f.cfg, nil
}
