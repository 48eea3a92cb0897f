// Package rules defines alert rule types and the closed vocabularies for
// rule fields, operators, actions, and targets.
package rules

import (
	"time"
)

// RuleType categorizes the academic signal a rule watches.
type RuleType string

const (
	TypeAcademic   RuleType = "academic"
	TypeAttendance RuleType = "attendance"
	TypeBehavior   RuleType = "behavior"
	TypeGeneral    RuleType = "general"
)

// Priority is the attention level attached to a rule and to alerts it creates.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Field names one of the metrics a condition may inspect.
type Field string

const (
	FieldAverageGrade        Field = "average_grade"
	FieldAttendanceRate      Field = "attendance_rate"
	FieldConsecutiveAbsences Field = "consecutive_absences"
	FieldFailedSubjects      Field = "failed_subjects"
	FieldGradeTrend          Field = "grade_trend"
	FieldBehaviorIncidents   Field = "behavior_incidents"
)

// Operator is the comparison applied between a metric value and the condition value.
type Operator string

const (
	OpGreaterThan  Operator = "gt"
	OpLessThan     Operator = "lt"
	OpEqual        Operator = "eq"
	OpGreaterEqual Operator = "gte"
	OpLessEqual    Operator = "lte"
	OpContains     Operator = "contains"
)

// ActionType is the effect applied when a rule's conditions hold.
type ActionType string

const (
	ActionCreateAlert      ActionType = "create_alert"
	ActionSendNotification ActionType = "send_notification"
	ActionEscalate         ActionType = "escalate"
	ActionAssignTask       ActionType = "assign_task"
)

// Target is an abstract recipient reference, expanded at dispatch time.
type Target string

const (
	TargetAllTeachers   Target = "all_teachers"
	TargetCourseTeacher Target = "course_teacher"
	TargetAdmin         Target = "admin"
	TargetParents       Target = "parents"
	TargetStudent       Target = "student"
)

// Condition is a single field/operator/value predicate. Immutable once saved.
// Value is numeric for numeric fields and a string for string fields; the
// pairing is enforced at save time by ValidateCondition.
type Condition struct {
	Field    Field    `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// Action pairs an effect with the abstract targets it applies to.
type Action struct {
	Type    ActionType `json:"type"`
	Targets []Target   `json:"targets"`
}

// Rule is a named condition set plus actions, owned by an administrator.
// A rule fires for a subject when all of its conditions evaluate true.
type Rule struct {
	RuleID      string      `json:"rule_id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Type        RuleType    `json:"type"`
	Priority    Priority    `json:"priority"`
	Conditions  []Condition `json:"conditions"`
	Actions     []Action    `json:"actions"`
	Enabled     bool        `json:"enabled"`
	Version     int         `json:"version"`
	CreatedBy   string      `json:"created_by"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// RuleListResult contains paginated rule results.
type RuleListResult struct {
	Rules  []*Rule `json:"rules"`
	Total  int64   `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}
