package dispatcher

import (
	"context"
	"testing"

	"alert-engine/internal/alerts"
	"alert-engine/internal/evaluator"
	"alert-engine/internal/events"
	"alert-engine/internal/rules"
)

func firingFor(actionType rules.ActionType, targets ...rules.Target) evaluator.Firing {
	if len(targets) == 0 {
		targets = []rules.Target{rules.TargetCourseTeacher}
	}
	return evaluator.Firing{
		Rule: &rules.Rule{
			RuleID:   "rule-1",
			Name:     "Low average grade",
			Type:     rules.TypeAcademic,
			Priority: rules.PriorityHigh,
			Conditions: []rules.Condition{
				{Field: rules.FieldAverageGrade, Operator: rules.OpLessThan, Value: 3.0},
			},
			Enabled: true,
		},
		Action: rules.Action{Type: actionType, Targets: targets},
	}
}

func subjectCtx() SubjectContext {
	return SubjectContext{SubjectID: "student-1", CourseID: "course-1", StudentID: "student-1"}
}

func TestDispatch_CreateAlert(t *testing.T) {
	store := newFakeAlertStore()
	notifier := &fakePublisher{}
	d := NewDispatcher(store, notifier, &fakePublisher{}, nil)

	err := d.Dispatch(context.Background(), firingFor(rules.ActionCreateAlert), subjectCtx())
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(store.inserted) != 1 {
		t.Fatalf("inserted = %d alerts, want 1", len(store.inserted))
	}
	created := store.inserted[0]
	if created.RuleID != "rule-1" || created.SubjectID != "student-1" {
		t.Errorf("alert = %+v, want rule-1/student-1", created)
	}
	if len(created.Recipients) != 1 || created.Recipients[0] != "course_teacher:course-1" {
		t.Errorf("recipients = %v, want [course_teacher:course-1]", created.Recipients)
	}
	// One alert_created event per recipient.
	if notifier.count() != 1 {
		t.Errorf("published = %d events, want 1", notifier.count())
	}
}

func TestDispatch_CreateAlertDeduplicates(t *testing.T) {
	store := newFakeAlertStore()
	notifier := &fakePublisher{}
	d := NewDispatcher(store, notifier, &fakePublisher{}, nil)

	ctx := context.Background()
	firing := firingFor(rules.ActionCreateAlert)
	if err := d.Dispatch(ctx, firing, subjectCtx()); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if err := d.Dispatch(ctx, firing, subjectCtx()); err != nil {
		t.Fatalf("Dispatch() repeat error = %v", err)
	}

	if len(store.inserted) != 1 {
		t.Errorf("inserted = %d alerts after repeat firing, want 1", len(store.inserted))
	}
	if notifier.count() != 1 {
		t.Errorf("published = %d events after repeat firing, want 1", notifier.count())
	}
}

func TestDispatch_SendNotification(t *testing.T) {
	notifier := &fakePublisher{}
	d := NewDispatcher(newFakeAlertStore(), notifier, &fakePublisher{}, nil)

	firing := firingFor(rules.ActionSendNotification, rules.TargetParents, rules.TargetAdmin)
	if err := d.Dispatch(context.Background(), firing, subjectCtx()); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if notifier.count() != 2 {
		t.Errorf("published = %d events, want 2", notifier.count())
	}
	ev, ok := notifier.payloads[0].(*events.NotificationEvent)
	if !ok {
		t.Fatalf("payload type = %T, want *events.NotificationEvent", notifier.payloads[0])
	}
	if ev.Kind != events.KindNotification {
		t.Errorf("event kind = %s, want notification", ev.Kind)
	}
}

func TestDispatch_NotificationPublishFailureDoesNotFailDispatch(t *testing.T) {
	notifier := &fakePublisher{err: context.DeadlineExceeded}
	d := NewDispatcher(newFakeAlertStore(), notifier, &fakePublisher{}, nil)

	firing := firingFor(rules.ActionSendNotification, rules.TargetParents)
	if err := d.Dispatch(context.Background(), firing, subjectCtx()); err != nil {
		t.Errorf("Dispatch() error = %v, want nil despite publish failure", err)
	}
}

func TestDispatch_Escalate(t *testing.T) {
	store := newFakeAlertStore()
	notifier := &fakePublisher{}
	d := NewDispatcher(store, notifier, &fakePublisher{}, nil)
	ctx := context.Background()

	// Seed the active alert the escalate action operates on.
	if err := d.Dispatch(ctx, firingFor(rules.ActionCreateAlert), subjectCtx()); err != nil {
		t.Fatalf("Dispatch(create) error = %v", err)
	}

	if err := d.Dispatch(ctx, firingFor(rules.ActionEscalate), subjectCtx()); err != nil {
		t.Fatalf("Dispatch(escalate) error = %v", err)
	}
	if len(store.escalated) != 1 {
		t.Fatalf("escalated = %d, want 1", len(store.escalated))
	}
	// Recipient set moved one tier up: course teacher climbs to admin.
	last := notifier.payloads[len(notifier.payloads)-1].(*events.NotificationEvent)
	if last.Kind != events.KindEscalation {
		t.Errorf("event kind = %s, want escalation", last.Kind)
	}
	if last.Target != "admin" {
		t.Errorf("escalation target = %s, want admin", last.Target)
	}
}

func TestDispatch_EscalateWithoutActiveAlertIsNoOp(t *testing.T) {
	store := newFakeAlertStore()
	d := NewDispatcher(store, &fakePublisher{}, &fakePublisher{}, nil)

	if err := d.Dispatch(context.Background(), firingFor(rules.ActionEscalate), subjectCtx()); err != nil {
		t.Errorf("Dispatch() error = %v, want nil when no active alert exists", err)
	}
	if len(store.escalated) != 0 {
		t.Errorf("escalated = %d, want 0", len(store.escalated))
	}
}

func TestDispatch_EscalateRaceIsBenign(t *testing.T) {
	store := newFakeAlertStore()
	store.active[key("rule-1", "student-1")] = &alerts.Alert{
		AlertID:    "alert-1",
		RuleID:     "rule-1",
		SubjectID:  "student-1",
		Status:     alerts.StatusActive,
		Recipients: []string{"course_teacher:course-1"},
	}
	store.escalateErr = alerts.ErrInvalidTransition
	d := NewDispatcher(store, &fakePublisher{}, &fakePublisher{}, nil)

	if err := d.Dispatch(context.Background(), firingFor(rules.ActionEscalate), subjectCtx()); err != nil {
		t.Errorf("Dispatch() error = %v, want nil for concurrent transition", err)
	}
}

func TestDispatch_AssignTask(t *testing.T) {
	tasks := &fakePublisher{}
	d := NewDispatcher(newFakeAlertStore(), &fakePublisher{}, tasks, nil)

	firing := firingFor(rules.ActionAssignTask, rules.TargetCourseTeacher)
	if err := d.Dispatch(context.Background(), firing, subjectCtx()); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if tasks.count() != 1 {
		t.Fatalf("task events = %d, want 1", tasks.count())
	}
	ev, ok := tasks.payloads[0].(*events.TaskAssigned)
	if !ok {
		t.Fatalf("payload type = %T, want *events.TaskAssigned", tasks.payloads[0])
	}
	if ev.RuleID != "rule-1" || ev.SubjectID != "student-1" {
		t.Errorf("task event = %+v, want rule-1/student-1", ev)
	}
}

func TestResolveTargets(t *testing.T) {
	tests := []struct {
		name    string
		targets []rules.Target
		sub     SubjectContext
		want    []string
	}{
		{
			name:    "role groups stay tokens",
			targets: []rules.Target{rules.TargetAllTeachers, rules.TargetAdmin, rules.TargetParents},
			sub:     subjectCtx(),
			want:    []string{"all_teachers", "admin", "parents"},
		},
		{
			name:    "course teacher resolves against course",
			targets: []rules.Target{rules.TargetCourseTeacher},
			sub:     subjectCtx(),
			want:    []string{"course_teacher:course-1"},
		},
		{
			name:    "course teacher without course stays bare",
			targets: []rules.Target{rules.TargetCourseTeacher},
			sub:     SubjectContext{SubjectID: "student-1"},
			want:    []string{"course_teacher"},
		},
		{
			name:    "student resolves against student id",
			targets: []rules.Target{rules.TargetStudent},
			sub:     subjectCtx(),
			want:    []string{"student:student-1"},
		},
		{
			name:    "duplicates collapse",
			targets: []rules.Target{rules.TargetAdmin, rules.TargetAdmin},
			sub:     subjectCtx(),
			want:    []string{"admin"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveTargets(tt.targets, tt.sub)
			if len(got) != len(tt.want) {
				t.Fatalf("ResolveTargets() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ResolveTargets()[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNextTier(t *testing.T) {
	tests := []struct {
		name       string
		recipients []string
		want       []string
	}{
		{
			name:       "course teacher climbs to admin",
			recipients: []string{"course_teacher:course-1"},
			want:       []string{"admin"},
		},
		{
			name:       "bare course teacher token climbs to admin",
			recipients: []string{"course_teacher"},
			want:       []string{"admin"},
		},
		{
			name:       "admin stays admin",
			recipients: []string{"admin"},
			want:       []string{"admin"},
		},
		{
			name:       "student climbs to course teacher",
			recipients: []string{"student:student-1"},
			want:       []string{"course_teacher"},
		},
		{
			name:       "mixed set collapses",
			recipients: []string{"course_teacher:course-1", "all_teachers", "admin"},
			want:       []string{"admin"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextTier(tt.recipients)
			if len(got) != len(tt.want) {
				t.Fatalf("NextTier() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("NextTier()[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}
