package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"alert-engine/internal/dispatcher"
	"alert-engine/internal/metrics"
	"alert-engine/internal/risk"
)

// EvaluateRequest represents a request to evaluate a subject against all
// enabled rules.
type EvaluateRequest struct {
	SubjectID string `json:"subject_id"`
	CourseID  string `json:"course_id"`
	StudentID string `json:"student_id"`
}

// FiringResult describes one fired (rule, action) pair and whether its
// action dispatched cleanly.
type FiringResult struct {
	RuleID     string `json:"rule_id"`
	RuleName   string `json:"rule_name"`
	ActionType string `json:"action_type"`
	Dispatched bool   `json:"dispatched"`
}

// EvaluateResponse summarizes an evaluation pass for one subject.
type EvaluateResponse struct {
	SubjectID  string         `json:"subject_id"`
	RulesTotal int            `json:"rules_total"`
	Firings    []FiringResult `json:"firings"`
}

// EvaluateSubject runs every enabled rule against one subject and dispatches
// the actions of the rules that fire. Per-action dispatch failures are
// reported in the response, not as a request failure.
func (h *Handlers) EvaluateSubject(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req EvaluateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SubjectID == "" {
		http.Error(w, "subject_id is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	started := time.Now()
	firings, err := h.engine.EvaluateSubject(ctx, req.SubjectID)
	h.recorder.RecordEvaluation(time.Since(started))
	metrics.RuleEvaluationsTotal.Inc()
	if err != nil {
		slog.Error("Evaluation failed", "subjectID", req.SubjectID, "error", err)
		http.Error(w, "Failed to evaluate subject: "+err.Error(), http.StatusInternalServerError)
		return
	}

	sub := dispatcher.SubjectContext{
		SubjectID: req.SubjectID,
		CourseID:  req.CourseID,
		StudentID: req.StudentID,
	}
	results := make([]FiringResult, 0, len(firings))
	for _, firing := range firings {
		res := FiringResult{
			RuleID:     firing.Rule.RuleID,
			RuleName:   firing.Rule.Name,
			ActionType: string(firing.Action.Type),
			Dispatched: true,
		}
		if err := h.dispatch.Dispatch(ctx, firing, sub); err != nil {
			slog.Error("Action dispatch failed", "ruleID", firing.Rule.RuleID, "actionType", firing.Action.Type, "error", err)
			h.recorder.RecordError()
			res.Dispatched = false
		}
		results = append(results, res)
	}

	writeJSON(w, http.StatusOK, EvaluateResponse{
		SubjectID:  req.SubjectID,
		RulesTotal: h.engine.RuleCount(),
		Firings:    results,
	})
}

// RiskResponse wraps a risk prediction with the threshold verdict.
type RiskResponse struct {
	Prediction *risk.Prediction `json:"prediction"`
	Surfaced   bool             `json:"surfaced"`
}

// GetRiskPrediction scores one subject and reports whether the prediction
// clears the configured surfacing threshold.
func (h *Handlers) GetRiskPrediction(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	subjectID, ok := requireQueryParam(w, r, "subject_id")
	if !ok {
		return
	}

	ctx := r.Context()
	prediction, err := h.scorer.Score(ctx, subjectID)
	if err != nil {
		http.Error(w, "Failed to score subject: "+err.Error(), http.StatusInternalServerError)
		return
	}

	cfg, err := h.configs.Load(ctx)
	if err != nil {
		http.Error(w, "Failed to load engine config: "+err.Error(), http.StatusInternalServerError)
		return
	}

	surfaced := float64(prediction.Probability)/100.0 >= cfg.Automation.MLThreshold
	writeJSON(w, http.StatusOK, RiskResponse{Prediction: prediction, Surfaced: surfaced})
}

// defaultPatternWindowDays bounds pattern mining when no window is given.
const defaultPatternWindowDays = 30

// GetAlertPatterns mines recurring (type, priority) patterns from alert
// history.
// Query params: days (default 30)
func (h *Handlers) GetAlertPatterns(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	days := defaultPatternWindowDays
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		d, err := strconv.Atoi(daysStr)
		if err != nil || d <= 0 {
			http.Error(w, "days must be a positive integer", http.StatusBadRequest)
			return
		}
		days = d
	}

	since := time.Now().AddDate(0, 0, -days)
	history, err := h.alerts.ListAlertHistory(r.Context(), since)
	if err != nil {
		http.Error(w, "Failed to load alert history: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, h.miner.Mine(history))
}
