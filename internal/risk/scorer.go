// Package risk computes per-student risk predictions from weighted metric
// factors. Predictions are ephemeral: recomputed on demand, never persisted.
package risk

import (
	"context"
	"errors"
	"log/slog"

	"alert-engine/internal/metricsource"
)

// Level is the qualitative risk tier derived from the probability.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Snapshot fields the scorer reads.
const (
	fieldAverageGrade    = "average_grade"
	fieldAttendanceRate  = "attendance_rate"
	fieldGradeSampleSize = "grade_sample_size"
)

// Factor weights. Each additive term applies only when its guard holds.
const (
	weightLowGrade         = 40
	weightLowAttendance    = 30
	weightInsufficientData = 20
)

// Prediction is a computed likelihood-of-concern score for a student.
type Prediction struct {
	SubjectID           string   `json:"subject_id"`
	RiskLevel           Level    `json:"risk_level"`
	Probability         int      `json:"probability"`
	ContributingFactors []string `json:"contributing_factors"`
	Recommendations     []string `json:"recommendations"`
}

// Scorer computes deterministic risk predictions from current metrics.
// There is no randomness in the score: the same snapshot always yields the
// same prediction.
type Scorer struct {
	provider metricsource.Provider
}

// NewScorer creates a scorer reading metrics from the provider.
func NewScorer(provider metricsource.Provider) *Scorer {
	return &Scorer{provider: provider}
}

// Score computes the risk prediction for a student. A metric source outage
// degrades to an empty snapshot: grade and attendance guards then stay off
// while the insufficient-data guard triggers.
func (s *Scorer) Score(ctx context.Context, subjectID string) (*Prediction, error) {
	snap, err := s.provider.GetSnapshot(ctx, subjectID, []string{
		fieldAverageGrade,
		fieldAttendanceRate,
		fieldGradeSampleSize,
	})
	if err != nil {
		if errors.Is(err, metricsource.ErrUnavailable) {
			slog.Warn("Metric source unavailable, scoring against empty snapshot",
				"subject_id", subjectID,
				"error", err,
			)
			snap = metricsource.Snapshot{}
		} else {
			return nil, err
		}
	}

	score := 0
	var factors []string
	var recommendations []string

	if avg, ok := numericField(snap, fieldAverageGrade); ok && avg < 3 {
		score += weightLowGrade
		factors = append(factors, "average grade below passing threshold")
		recommendations = append(recommendations, "Schedule reinforcement classes and notify the course teacher")
	}
	if rate, ok := numericField(snap, fieldAttendanceRate); ok && rate < 0.8 {
		score += weightLowAttendance
		factors = append(factors, "attendance rate below 80%")
		recommendations = append(recommendations, "Contact the family about repeated absences")
	}
	// A missing sample size counts as zero recorded grades.
	sampleSize, _ := numericField(snap, fieldGradeSampleSize)
	if sampleSize < 5 {
		score += weightInsufficientData
		factors = append(factors, "insufficient grade data")
		recommendations = append(recommendations, "Record pending evaluations before relying on this prediction")
	}

	probability := clamp(score, 0, 100)

	return &Prediction{
		SubjectID:           subjectID,
		RiskLevel:           levelFor(probability),
		Probability:         probability,
		ContributingFactors: factors,
		Recommendations:     recommendations,
	}, nil
}

// levelFor maps a clamped probability to its risk tier.
func levelFor(probability int) Level {
	switch {
	case probability >= 70:
		return LevelCritical
	case probability >= 50:
		return LevelHigh
	case probability >= 30:
		return LevelMedium
	default:
		return LevelLow
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// numericField reads a numeric snapshot field, tolerating JSON's float64
// decoding and native ints.
func numericField(snap metricsource.Snapshot, field string) (float64, bool) {
	raw, ok := snap[field]
	if !ok {
		return 0, false
	}
	switch n := raw.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
