// Package evaluator provides pure condition evaluation and per-subject rule
// evaluation against metric snapshots.
package evaluator

import (
	"strconv"
	"strings"

	"alert-engine/internal/metricsource"
	"alert-engine/internal/rules"
)

// Evaluate applies a single condition to a metric snapshot. It is a total
// function: a field missing from the snapshot evaluates to false, so a rule
// can never fire on absent data. Numeric operators coerce string operands
// that parse as numbers; operands that do not are false, never an error.
func Evaluate(c rules.Condition, snap metricsource.Snapshot) bool {
	raw, ok := snap[string(c.Field)]
	if !ok {
		return false
	}

	switch c.Operator {
	case rules.OpGreaterThan, rules.OpLessThan, rules.OpGreaterEqual, rules.OpLessEqual:
		left, okL := toFloat(raw)
		right, okR := toFloat(c.Value)
		if !okL || !okR {
			return false
		}
		return compareNumeric(c.Operator, left, right)
	case rules.OpEqual:
		return equalNative(raw, c.Value)
	case rules.OpContains:
		return contains(raw, c.Value)
	default:
		return false
	}
}

// RuleFires reports whether all of a rule's conditions hold for the snapshot.
// An empty condition list never fires.
func RuleFires(r *rules.Rule, snap metricsource.Snapshot) bool {
	if len(r.Conditions) == 0 {
		return false
	}
	for _, c := range r.Conditions {
		if !Evaluate(c, snap) {
			return false
		}
	}
	return true
}

func compareNumeric(op rules.Operator, left, right float64) bool {
	switch op {
	case rules.OpGreaterThan:
		return left > right
	case rules.OpLessThan:
		return left < right
	case rules.OpGreaterEqual:
		return left >= right
	case rules.OpLessEqual:
		return left <= right
	default:
		return false
	}
}

// equalNative performs exact match on the field's native type: numbers
// compare numerically, strings compare as strings, mixed types never match.
func equalNative(raw, value any) bool {
	if lf, ok := toFloatStrict(raw); ok {
		if rf, ok := toFloatStrict(value); ok {
			return lf == rf
		}
		return false
	}
	ls, okL := raw.(string)
	rs, okR := value.(string)
	return okL && okR && ls == rs
}

// contains is defined only for string and sequence fields: substring test for
// strings, membership test for sequences. Anything else is false.
func contains(raw, value any) bool {
	switch field := raw.(type) {
	case string:
		needle, ok := value.(string)
		if !ok {
			return false
		}
		return strings.Contains(field, needle)
	case []any:
		for _, elem := range field {
			if equalNative(elem, value) {
				return true
			}
		}
		return false
	case []string:
		needle, ok := value.(string)
		if !ok {
			return false
		}
		for _, elem := range field {
			if elem == needle {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// toFloat converts native numbers and numeric strings to float64.
func toFloat(v any) (float64, bool) {
	if f, ok := toFloatStrict(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil {
			return f, true
		}
	}
	return 0, false
}

// toFloatStrict converts native numbers to float64 without string coercion.
func toFloatStrict(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
