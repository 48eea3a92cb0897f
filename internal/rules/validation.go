package rules

import (
	"fmt"
	"strconv"
)

// Keep validation logic centralized so every entry point (HTTP, seed scripts)
// rejects the same malformed rules.

// ValidationError reports a malformed rule at save time. A rule that fails
// validation is never persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid rule: " + e.Reason
	}
	return fmt.Sprintf("invalid rule: %s: %s", e.Field, e.Reason)
}

var validRuleTypes = map[RuleType]struct{}{
	TypeAcademic:   {},
	TypeAttendance: {},
	TypeBehavior:   {},
	TypeGeneral:    {},
}

var validPriorities = map[Priority]struct{}{
	PriorityLow:      {},
	PriorityMedium:   {},
	PriorityHigh:     {},
	PriorityCritical: {},
}

var validOperators = map[Operator]struct{}{
	OpGreaterThan:  {},
	OpLessThan:     {},
	OpEqual:        {},
	OpGreaterEqual: {},
	OpLessEqual:    {},
	OpContains:     {},
}

var validActionTypes = map[ActionType]struct{}{
	ActionCreateAlert:      {},
	ActionSendNotification: {},
	ActionEscalate:         {},
	ActionAssignTask:       {},
}

var validTargets = map[Target]struct{}{
	TargetAllTeachers:   {},
	TargetCourseTeacher: {},
	TargetAdmin:         {},
	TargetParents:       {},
	TargetStudent:       {},
}

// numericFields maps each condition field to whether its values are numeric.
// grade_trend is the only string-valued field.
var numericFields = map[Field]bool{
	FieldAverageGrade:        true,
	FieldAttendanceRate:      true,
	FieldConsecutiveAbsences: true,
	FieldFailedSubjects:      true,
	FieldGradeTrend:          false,
	FieldBehaviorIncidents:   true,
}

// IsValidPriority reports whether p is one of the closed priority tokens.
func IsValidPriority(p Priority) bool {
	_, ok := validPriorities[p]
	return ok
}

// IsValidRuleType reports whether t is one of the closed rule type tokens.
func IsValidRuleType(t RuleType) bool {
	_, ok := validRuleTypes[t]
	return ok
}

// IsNumericField reports whether f carries numeric values. Unknown fields
// return false for both; use ValidateCondition to reject them.
func IsNumericField(f Field) bool {
	return numericFields[f]
}

// ValidateCondition checks the field, operator, and value type of a single
// condition against the closed vocabulary.
func ValidateCondition(c Condition) error {
	if _, ok := numericFields[c.Field]; !ok {
		return &ValidationError{Field: "conditions.field", Reason: fmt.Sprintf("unknown field %q", c.Field)}
	}
	if _, ok := validOperators[c.Operator]; !ok {
		return &ValidationError{Field: "conditions.operator", Reason: fmt.Sprintf("unknown operator %q", c.Operator)}
	}
	if c.Value == nil {
		return &ValidationError{Field: "conditions.value", Reason: "value is required"}
	}
	if numericFields[c.Field] {
		if !isNumericValue(c.Value) {
			return &ValidationError{
				Field:  "conditions.value",
				Reason: fmt.Sprintf("field %q requires a numeric value", c.Field),
			}
		}
	} else {
		if _, ok := c.Value.(string); !ok {
			return &ValidationError{
				Field:  "conditions.value",
				Reason: fmt.Sprintf("field %q requires a string value", c.Field),
			}
		}
	}
	return nil
}

// isNumericValue accepts native numbers and numeric strings. JSON decoding
// yields float64 for numbers; tests and callers may also pass ints.
func isNumericValue(v any) bool {
	switch n := v.(type) {
	case float64, float32, int, int32, int64:
		return true
	case string:
		_, err := strconv.ParseFloat(n, 64)
		return err == nil
	default:
		return false
	}
}

// ValidateAction checks the action type and that the target set is non-empty
// and drawn from the closed target vocabulary.
func ValidateAction(a Action) error {
	if _, ok := validActionTypes[a.Type]; !ok {
		return &ValidationError{Field: "actions.type", Reason: fmt.Sprintf("unknown action type %q", a.Type)}
	}
	if len(a.Targets) == 0 {
		return &ValidationError{Field: "actions.targets", Reason: "target list cannot be empty"}
	}
	for _, t := range a.Targets {
		if _, ok := validTargets[t]; !ok {
			return &ValidationError{Field: "actions.targets", Reason: fmt.Sprintf("unknown target %q", t)}
		}
	}
	return nil
}

// ValidateRule checks a full rule at save time. An empty condition list is
// rejected so a rule can never be accidentally "always true"; an empty action
// list is rejected because a firing rule must have an effect.
func ValidateRule(r *Rule) error {
	if r.Name == "" {
		return &ValidationError{Field: "name", Reason: "name is required"}
	}
	if !IsValidRuleType(r.Type) {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("type must be one of: academic, attendance, behavior, general (got %q)", r.Type)}
	}
	if !IsValidPriority(r.Priority) {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("priority must be one of: low, medium, high, critical (got %q)", r.Priority)}
	}
	if len(r.Conditions) == 0 {
		return &ValidationError{Field: "conditions", Reason: "condition list cannot be empty"}
	}
	if len(r.Actions) == 0 {
		return &ValidationError{Field: "actions", Reason: "action list cannot be empty"}
	}
	for _, c := range r.Conditions {
		if err := ValidateCondition(c); err != nil {
			return err
		}
	}
	for _, a := range r.Actions {
		if err := ValidateAction(a); err != nil {
			return err
		}
	}
	return nil
}
