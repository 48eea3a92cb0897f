package evaluator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"alert-engine/internal/metricsource"
	"alert-engine/internal/rules"
)

// fakeProvider returns a canned snapshot per subject, or an error.
type fakeProvider struct {
	snapshots map[string]metricsource.Snapshot
	err       error
	calls     int
}

func (f *fakeProvider) GetSnapshot(ctx context.Context, subjectID string, fields []string) (metricsource.Snapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshots[subjectID], nil
}

func gradeRule(id string, actions ...rules.Action) *rules.Rule {
	if len(actions) == 0 {
		actions = []rules.Action{{Type: rules.ActionCreateAlert, Targets: []rules.Target{rules.TargetCourseTeacher}}}
	}
	return &rules.Rule{
		RuleID:   id,
		Name:     "Low average grade",
		Type:     rules.TypeAcademic,
		Priority: rules.PriorityHigh,
		Conditions: []rules.Condition{
			{Field: rules.FieldAverageGrade, Operator: rules.OpLessThan, Value: 3.0},
		},
		Actions: actions,
		Enabled: true,
	}
}

func TestEngine_EvaluateSubject(t *testing.T) {
	provider := &fakeProvider{snapshots: map[string]metricsource.Snapshot{
		"student-1": {"average_grade": 2.5},
		"student-2": {"average_grade": 4.0},
	}}
	set := NewRuleSet([]*rules.Rule{gradeRule("rule-1")})
	engine := NewEngine(set, provider)

	firings, err := engine.EvaluateSubject(context.Background(), "student-1")
	if err != nil {
		t.Fatalf("EvaluateSubject() error = %v", err)
	}
	if len(firings) != 1 {
		t.Fatalf("EvaluateSubject() firings = %d, want 1", len(firings))
	}
	if firings[0].Rule.RuleID != "rule-1" {
		t.Errorf("firing rule = %s, want rule-1", firings[0].Rule.RuleID)
	}
	if firings[0].Action.Type != rules.ActionCreateAlert {
		t.Errorf("firing action = %s, want create_alert", firings[0].Action.Type)
	}

	firings, err = engine.EvaluateSubject(context.Background(), "student-2")
	if err != nil {
		t.Fatalf("EvaluateSubject() error = %v", err)
	}
	if len(firings) != 0 {
		t.Errorf("EvaluateSubject() firings = %d, want 0 for passing student", len(firings))
	}
}

func TestEngine_OneFiringPerAction(t *testing.T) {
	rule := gradeRule("rule-1",
		rules.Action{Type: rules.ActionCreateAlert, Targets: []rules.Target{rules.TargetCourseTeacher}},
		rules.Action{Type: rules.ActionSendNotification, Targets: []rules.Target{rules.TargetParents}},
	)
	provider := &fakeProvider{snapshots: map[string]metricsource.Snapshot{
		"student-1": {"average_grade": 2.0},
	}}
	engine := NewEngine(NewRuleSet([]*rules.Rule{rule}), provider)

	firings, err := engine.EvaluateSubject(context.Background(), "student-1")
	if err != nil {
		t.Fatalf("EvaluateSubject() error = %v", err)
	}
	if len(firings) != 2 {
		t.Fatalf("EvaluateSubject() firings = %d, want 2", len(firings))
	}
}

func TestEngine_DisabledRuleSkipped(t *testing.T) {
	rule := gradeRule("rule-1")
	rule.Enabled = false
	provider := &fakeProvider{snapshots: map[string]metricsource.Snapshot{
		"student-1": {"average_grade": 2.0},
	}}
	engine := NewEngine(NewRuleSet([]*rules.Rule{rule}), provider)

	firings, err := engine.EvaluateSubject(context.Background(), "student-1")
	if err != nil {
		t.Fatalf("EvaluateSubject() error = %v", err)
	}
	if len(firings) != 0 {
		t.Errorf("EvaluateSubject() firings = %d, want 0 for disabled rule", len(firings))
	}
	if provider.calls != 0 {
		t.Errorf("provider calls = %d, want 0 when no enabled rule needs fields", provider.calls)
	}
}

func TestEngine_MetricSourceUnavailable(t *testing.T) {
	provider := &fakeProvider{err: fmt.Errorf("%w: connection refused", metricsource.ErrUnavailable)}
	engine := NewEngine(NewRuleSet([]*rules.Rule{gradeRule("rule-1")}), provider)

	// Unavailable source degrades to an empty snapshot: no firings, no error.
	firings, err := engine.EvaluateSubject(context.Background(), "student-1")
	if err != nil {
		t.Fatalf("EvaluateSubject() error = %v, want nil on degraded source", err)
	}
	if len(firings) != 0 {
		t.Errorf("EvaluateSubject() firings = %d, want 0", len(firings))
	}
}

func TestEngine_ProviderErrorPropagates(t *testing.T) {
	provider := &fakeProvider{err: errors.New("boom")}
	engine := NewEngine(NewRuleSet([]*rules.Rule{gradeRule("rule-1")}), provider)

	if _, err := engine.EvaluateSubject(context.Background(), "student-1"); err == nil {
		t.Fatal("EvaluateSubject() error = nil, want error for non-availability failure")
	}
}

func TestRuleSet_Replace(t *testing.T) {
	set := NewRuleSet([]*rules.Rule{gradeRule("rule-1")})
	if set.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", set.Count())
	}

	set.Replace([]*rules.Rule{gradeRule("rule-2"), gradeRule("rule-3")})
	if set.Count() != 2 {
		t.Errorf("Count() = %d, want 2 after replace", set.Count())
	}
	for _, r := range set.Rules() {
		if r.RuleID == "rule-1" {
			t.Error("Rules() still contains rule-1 after replace")
		}
	}
}
