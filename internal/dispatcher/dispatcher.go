package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"alert-engine/internal/alerts"
	"alert-engine/internal/evaluator"
	"alert-engine/internal/events"
	"alert-engine/internal/metrics"
	"alert-engine/internal/rules"
)

// Dispatcher turns firings from the rule engine into alert records and
// outbound events. Each action type has exactly one handler; the switch in
// Dispatch is the only place an action type is interpreted.
type Dispatcher struct {
	store    AlertStore
	notifier EventPublisher
	tasks    EventPublisher
	locks    *subjectLocks
	recorder metrics.Recorder
}

// NewDispatcher creates a dispatcher with the given dependencies. A nil
// recorder defaults to no-op metrics.
func NewDispatcher(store AlertStore, notifier, tasks EventPublisher, recorder metrics.Recorder) *Dispatcher {
	if recorder == nil {
		recorder = metrics.NoOp{}
	}
	return &Dispatcher{
		store:    store,
		notifier: notifier,
		tasks:    tasks,
		locks:    newSubjectLocks(),
		recorder: recorder,
	}
}

// Dispatch applies one firing for one subject. Dispatches for the same
// subject are serialized so the active-alert dedup check cannot race;
// notification publish failures are logged and never fail the dispatch.
func (d *Dispatcher) Dispatch(ctx context.Context, firing evaluator.Firing, sub SubjectContext) error {
	unlock := d.locks.acquire(sub.SubjectID)
	defer unlock()

	switch firing.Action.Type {
	case rules.ActionCreateAlert:
		return d.createAlert(ctx, firing, sub)
	case rules.ActionSendNotification:
		return d.sendNotification(ctx, firing, sub)
	case rules.ActionEscalate:
		return d.escalate(ctx, firing, sub)
	case rules.ActionAssignTask:
		return d.assignTask(ctx, firing, sub)
	default:
		// Unreachable for rules that passed save-time validation.
		return fmt.Errorf("unknown action type %q", firing.Action.Type)
	}
}

// createAlert creates an active alert from the rule firing, deduplicated
// against existing active alerts for the same (rule, subject).
func (d *Dispatcher) createAlert(ctx context.Context, firing evaluator.Firing, sub SubjectContext) error {
	rule := firing.Rule
	alert := &alerts.Alert{
		RuleID:      rule.RuleID,
		SubjectID:   sub.SubjectID,
		Title:       rule.Name,
		Description: rule.Description,
		Type:        rule.Type,
		Priority:    rule.Priority,
		Recipients:  ResolveTargets(firing.Action.Targets, sub),
		CourseID:    sub.CourseID,
		CreatedBy:   "rule:" + rule.RuleID,
	}

	created, err := d.store.InsertRuleAlert(ctx, alert)
	if err != nil {
		d.recorder.RecordError()
		return fmt.Errorf("failed to create alert for rule %s: %w", rule.RuleID, err)
	}
	if created == nil {
		// An active alert from this rule already covers the subject.
		d.recorder.IncrementCustom("alerts_deduplicated")
		return nil
	}

	d.recorder.RecordAlertCreated()
	metrics.AlertsCreatedTotal.WithLabelValues(string(created.Priority)).Inc()

	slog.Info("Created alert",
		"alert_id", created.AlertID,
		"rule_id", rule.RuleID,
		"subject_id", sub.SubjectID,
		"priority", created.Priority,
	)

	d.publishToAll(ctx, created.Recipients, created.AlertID, events.KindAlertCreated, created.Title, string(created.Priority))
	return nil
}

// sendNotification emits a fire-and-forget notification event per target.
// There is no alert record to roll back and delivery failures are invisible
// to the engine, so errors are only logged.
func (d *Dispatcher) sendNotification(ctx context.Context, firing evaluator.Firing, sub SubjectContext) error {
	recipients := ResolveTargets(firing.Action.Targets, sub)
	d.publishToAll(ctx, recipients, "", events.KindNotification, firing.Rule.Name, string(firing.Rule.Priority))
	return nil
}

// escalate promotes the alert previously (or just) created by this rule for
// the subject, moving its recipients one tier up.
func (d *Dispatcher) escalate(ctx context.Context, firing evaluator.Firing, sub SubjectContext) error {
	rule := firing.Rule
	current, err := d.store.GetActiveAlertByRule(ctx, rule.RuleID, sub.SubjectID)
	if err != nil {
		if errors.Is(err, alerts.ErrNotFound) {
			// Nothing to escalate: the rule has no create_alert action, or the
			// alert was resolved between dispatches.
			slog.Warn("Escalate action found no active alert",
				"rule_id", rule.RuleID,
				"subject_id", sub.SubjectID,
			)
			return nil
		}
		d.recorder.RecordError()
		return err
	}

	note := fmt.Sprintf("escalated by rule %q", rule.Name)
	escalated, err := d.store.EscalateAlert(ctx, current.AlertID, "rule:"+rule.RuleID, note, NextTier(current.Recipients))
	if err != nil {
		if errors.Is(err, alerts.ErrInvalidTransition) {
			// Benign race: another dispatch escalated or resolved it first.
			slog.Debug("Alert no longer active, skipping escalation",
				"alert_id", current.AlertID,
			)
			return nil
		}
		d.recorder.RecordError()
		return err
	}

	d.recorder.RecordEscalation()
	metrics.EscalationsTotal.WithLabelValues("rule_action").Inc()

	slog.Info("Escalated alert",
		"alert_id", escalated.AlertID,
		"rule_id", rule.RuleID,
		"escalation_level", escalated.EscalationLevel,
	)

	d.publishToAll(ctx, escalated.Recipients, escalated.AlertID, events.KindEscalation, escalated.Title, string(escalated.Priority))
	return nil
}

// assignTask emits a task-assignment event. Task persistence belongs to the
// consuming system.
func (d *Dispatcher) assignTask(ctx context.Context, firing evaluator.Firing, sub SubjectContext) error {
	rule := firing.Rule
	ev := events.NewTaskAssigned(
		rule.RuleID,
		sub.SubjectID,
		ResolveTargets(firing.Action.Targets, sub),
		rule.Description,
		string(rule.Priority),
	)
	if err := d.tasks.Publish(ctx, sub.SubjectID, ev); err != nil {
		d.recorder.RecordError()
		slog.Error("Failed to publish task assignment",
			"rule_id", rule.RuleID,
			"subject_id", sub.SubjectID,
			"error", err,
		)
		// Fire-and-forget: the dispatch itself still succeeds.
		return nil
	}
	slog.Info("Published task assignment",
		"rule_id", rule.RuleID,
		"subject_id", sub.SubjectID,
	)
	return nil
}

// publishToAll emits one notification event per recipient, logging failures
// without propagating them.
func (d *Dispatcher) publishToAll(ctx context.Context, recipients []string, alertID string, kind events.NotificationKind, title, priority string) {
	for _, target := range recipients {
		ev := events.NewNotification(target, alertID, kind, title, priority)
		if err := d.notifier.Publish(ctx, alertID, ev); err != nil {
			d.recorder.RecordError()
			slog.Error("Failed to publish notification event",
				"target", target,
				"alert_id", alertID,
				"kind", kind,
				"error", err,
			)
			continue
		}
	}
}
