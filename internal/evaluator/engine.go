package evaluator

import (
	"context"
	"errors"
	"log/slog"

	"alert-engine/internal/metricsource"
	"alert-engine/internal/rules"
)

// Firing pairs a rule whose conditions all held with one of its actions.
type Firing struct {
	Rule   *rules.Rule
	Action rules.Action
}

// Engine evaluates the active rule set against a subject's metric snapshot.
// It is side-effect-free and idempotent for a fixed snapshot; dispatching the
// resulting firings is the Action Dispatcher's job.
type Engine struct {
	set      *RuleSet
	provider metricsource.Provider
}

// NewEngine creates an engine evaluating the given rule set against
// snapshots from the provider.
func NewEngine(set *RuleSet, provider metricsource.Provider) *Engine {
	return &Engine{
		set:      set,
		provider: provider,
	}
}

// RuleCount returns the number of rules currently loaded.
func (e *Engine) RuleCount() int {
	return e.set.Count()
}

// EvaluateSubject evaluates every enabled rule against the subject's current
// metrics and returns one firing per (rule, action) whose conditions all
// held. Rules are evaluated independently; one rule firing never suppresses
// another. A metric source timeout degrades to an empty snapshot so the
// batch never aborts: conditions on absent data are simply false.
func (e *Engine) EvaluateSubject(ctx context.Context, subjectID string) ([]Firing, error) {
	active := e.set.Rules()

	fields := neededFields(active)
	if len(fields) == 0 {
		return nil, nil
	}

	snap, err := e.provider.GetSnapshot(ctx, subjectID, fields)
	if err != nil {
		if errors.Is(err, metricsource.ErrUnavailable) {
			slog.Warn("Metric source unavailable, evaluating against empty snapshot",
				"subject_id", subjectID,
				"error", err,
			)
			snap = metricsource.Snapshot{}
		} else {
			return nil, err
		}
	}

	var firings []Firing
	for _, rule := range active {
		if !rule.Enabled {
			continue
		}
		if !RuleFires(rule, snap) {
			continue
		}
		slog.Debug("Rule fired",
			"rule_id", rule.RuleID,
			"rule_name", rule.Name,
			"subject_id", subjectID,
		)
		for _, action := range rule.Actions {
			firings = append(firings, Firing{Rule: rule, Action: action})
		}
	}
	return firings, nil
}

// neededFields collects the distinct condition fields across enabled rules so
// the snapshot is fetched once per subject.
func neededFields(active []*rules.Rule) []string {
	seen := make(map[string]struct{})
	var fields []string
	for _, rule := range active {
		if !rule.Enabled {
			continue
		}
		for _, c := range rule.Conditions {
			f := string(c.Field)
			if _, ok := seen[f]; !ok {
				seen[f] = struct{}{}
				fields = append(fields, f)
			}
		}
	}
	return fields
}
