// Package patterns aggregates historical alerts into recurring-pattern
// summaries used to surface systemic issues. Summaries are derived data,
// recomputed from the alert history window on demand.
package patterns

import (
	"sort"

	"alert-engine/internal/alerts"
)

// Impact is the qualitative weight of a pattern, derived from frequency.
type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

// Summary describes one recurring (type, priority) alert grouping.
type Summary struct {
	AlertType              string   `json:"alert_type"`
	Priority               string   `json:"priority"`
	Frequency              int      `json:"frequency"`
	Impact                 Impact   `json:"impact"`
	AffectedSubjects       []string `json:"affected_subjects"`
	AvgResolutionTimeHours float64  `json:"avg_resolution_time_hours"`
}

// groupKey identifies one pattern group.
type groupKey struct {
	alertType string
	priority  string
}

// Mine groups the alert history by (type, priority) and summarizes each
// group. Every alert belongs to exactly one group, so group frequencies sum
// to the history length. Output is sorted by descending frequency, ties
// broken by group key lexical order for determinism.
func Mine(history []*alerts.Alert) []Summary {
	type accumulator struct {
		frequency     int
		subjects      map[string]struct{}
		resolvedCount int
		resolvedHours float64
	}

	groups := make(map[groupKey]*accumulator)
	for _, a := range history {
		key := groupKey{alertType: string(a.Type), priority: string(a.Priority)}
		acc, ok := groups[key]
		if !ok {
			acc = &accumulator{subjects: make(map[string]struct{})}
			groups[key] = acc
		}
		acc.frequency++
		if a.SubjectID != "" {
			acc.subjects[a.SubjectID] = struct{}{}
		}
		if a.ResolvedAt != nil {
			acc.resolvedCount++
			acc.resolvedHours += a.ResolvedAt.Sub(a.CreatedAt).Hours()
		}
	}

	summaries := make([]Summary, 0, len(groups))
	for key, acc := range groups {
		var avgHours float64
		if acc.resolvedCount > 0 {
			avgHours = acc.resolvedHours / float64(acc.resolvedCount)
		}

		subjects := make([]string, 0, len(acc.subjects))
		for s := range acc.subjects {
			subjects = append(subjects, s)
		}
		sort.Strings(subjects)

		summaries = append(summaries, Summary{
			AlertType:              key.alertType,
			Priority:               key.priority,
			Frequency:              acc.frequency,
			Impact:                 impactFor(acc.frequency),
			AffectedSubjects:       subjects,
			AvgResolutionTimeHours: avgHours,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Frequency != summaries[j].Frequency {
			return summaries[i].Frequency > summaries[j].Frequency
		}
		if summaries[i].AlertType != summaries[j].AlertType {
			return summaries[i].AlertType < summaries[j].AlertType
		}
		return summaries[i].Priority < summaries[j].Priority
	})

	return summaries
}

// impactFor maps a group's frequency to its impact tier.
func impactFor(frequency int) Impact {
	switch {
	case frequency > 20:
		return ImpactHigh
	case frequency > 10:
		return ImpactMedium
	default:
		return ImpactLow
	}
}
