package dispatcher

import (
	"strings"

	"alert-engine/internal/rules"
)

// SubjectContext carries the concrete identifiers needed to resolve abstract
// targets for one subject's evaluation.
type SubjectContext struct {
	SubjectID string
	CourseID  string
	StudentID string
}

// ResolveTargets expands an action's abstract target list into concrete
// recipient tokens. Role groups (all_teachers, admin, parents) stay as group
// tokens resolved at delivery time so roster changes are tolerated;
// course_teacher and student resolve against the subject context. This is
// the single resolution point: no other layer expands targets.
func ResolveTargets(targets []rules.Target, sub SubjectContext) []string {
	recipients := make([]string, 0, len(targets))
	seen := make(map[string]struct{}, len(targets))

	add := func(token string) {
		if token == "" {
			return
		}
		if _, ok := seen[token]; ok {
			return
		}
		seen[token] = struct{}{}
		recipients = append(recipients, token)
	}

	for _, t := range targets {
		switch t {
		case rules.TargetAllTeachers, rules.TargetAdmin, rules.TargetParents:
			add(string(t))
		case rules.TargetCourseTeacher:
			if sub.CourseID != "" {
				add("course_teacher:" + sub.CourseID)
			} else {
				add(string(t))
			}
		case rules.TargetStudent:
			if sub.StudentID != "" {
				add("student:" + sub.StudentID)
			}
		}
	}
	return recipients
}

// NextTier maps a recipient set one escalation tier up. Course teachers and
// student-level recipients escalate to the admin group; anything already at
// admin stays there.
func NextTier(recipients []string) []string {
	next := make([]string, 0, len(recipients))
	seen := make(map[string]struct{}, len(recipients))
	for _, r := range recipients {
		tier := nextTierFor(r)
		if _, ok := seen[tier]; ok {
			continue
		}
		seen[tier] = struct{}{}
		next = append(next, tier)
	}
	return next
}

func nextTierFor(recipient string) string {
	switch {
	case recipient == string(rules.TargetAdmin):
		return string(rules.TargetAdmin)
	case recipient == string(rules.TargetAllTeachers):
		return string(rules.TargetAdmin)
	case recipient == string(rules.TargetParents):
		return string(rules.TargetAdmin)
	case strings.HasPrefix(recipient, string(rules.TargetCourseTeacher)):
		// Both the bare course_teacher token and course_teacher:<id>.
		return string(rules.TargetAdmin)
	default:
		// student:<id> and anything else climbs through the teacher group first.
		return string(rules.TargetCourseTeacher)
	}
}
