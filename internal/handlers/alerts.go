package handlers

import (
	"net/http"

	"alert-engine/internal/alerts"
	"alert-engine/internal/metrics"
	"alert-engine/internal/rules"
)

// CreateAlertRequest represents a request to create a manual alert.
type CreateAlertRequest struct {
	SubjectID        string         `json:"subject_id"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Type             rules.RuleType `json:"type"`
	Priority         rules.Priority `json:"priority"`
	Recipients       []string       `json:"recipients"`
	CourseID         string         `json:"course_id"`
	SelectedStudents []string       `json:"selected_students"`
	CreatedBy        string         `json:"created_by"`
}

// ResolveAlertRequest represents a request to resolve an alert.
type ResolveAlertRequest struct {
	UserID string `json:"user_id"`
	Note   string `json:"note"`
}

// EscalateAlertRequest represents a request to manually escalate an alert.
type EscalateAlertRequest struct {
	UserID     string   `json:"user_id"`
	Note       string   `json:"note"`
	Recipients []string `json:"recipients"` // empty keeps current recipients
}

// MarkAlertReadRequest represents a request to mark an alert read by a user.
type MarkAlertReadRequest struct {
	UserID string `json:"user_id"`
}

// CreateAlert creates a manual alert. Manual alerts carry no rule_id and are
// not subject to per-rule deduplication.
func (h *Handlers) CreateAlert(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req CreateAlertRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.SubjectID == "" {
		http.Error(w, "subject_id is required", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}
	if req.CreatedBy == "" {
		http.Error(w, "created_by is required", http.StatusBadRequest)
		return
	}
	if !rules.IsValidRuleType(req.Type) {
		http.Error(w, "type must be one of: academic, attendance, behavior, general", http.StatusBadRequest)
		return
	}
	if !rules.IsValidPriority(req.Priority) {
		http.Error(w, "priority must be one of: low, medium, high, critical", http.StatusBadRequest)
		return
	}

	alert := &alerts.Alert{
		SubjectID:        req.SubjectID,
		Title:            req.Title,
		Description:      req.Description,
		Type:             req.Type,
		Priority:         req.Priority,
		Recipients:       req.Recipients,
		CourseID:         req.CourseID,
		SelectedStudents: req.SelectedStudents,
		Status:           alerts.StatusActive,
		CreatedBy:        req.CreatedBy,
	}
	created, err := h.alerts.InsertAlert(r.Context(), alert)
	if err != nil {
		http.Error(w, "Failed to create alert: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.recorder.RecordAlertCreated()
	metrics.AlertsCreatedTotal.WithLabelValues(string(created.Priority)).Inc()
	writeJSON(w, http.StatusCreated, created)
}

// GetAlert retrieves an alert by ID.
func (h *Handlers) GetAlert(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	alertID, ok := requireQueryParam(w, r, "alert_id")
	if !ok {
		return
	}

	alert, err := h.alerts.GetAlert(r.Context(), alertID)
	if err != nil {
		if handleStoreError(w, err, "Alert", alertID) {
			return
		}
		http.Error(w, "Failed to get alert: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, alert)
}

// ListAlerts retrieves alerts with pagination, optionally filtered by status
// and subject_id.
// Query params: status, subject_id, limit (default 50, max 200), offset (default 0)
func (h *Handlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	var statusPtr *string
	if status := r.URL.Query().Get("status"); status != "" {
		if !alerts.IsValidStatus(alerts.Status(status)) {
			http.Error(w, "status must be one of: active, resolved, escalated, archived", http.StatusBadRequest)
			return
		}
		statusPtr = &status
	}

	var subjectPtr *string
	if subjectID := r.URL.Query().Get("subject_id"); subjectID != "" {
		subjectPtr = &subjectID
	}

	p := parsePagination(r)
	result, err := h.alerts.ListAlerts(r.Context(), statusPtr, subjectPtr, p.Limit, p.Offset)
	if err != nil {
		http.Error(w, "Failed to list alerts: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ResolveAlert transitions an alert to resolved. Resolving an already
// resolved alert is a no-op returning the current state.
func (h *Handlers) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	alertID, ok := requireQueryParam(w, r, "alert_id")
	if !ok {
		return
	}

	var req ResolveAlertRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	alert, err := h.alerts.ResolveAlert(r.Context(), alertID, req.UserID, req.Note)
	if err != nil {
		if handleStoreError(w, err, "Alert", alertID) {
			return
		}
		http.Error(w, "Failed to resolve alert: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, alert)
}

// EscalateAlert manually escalates an active alert, appending to its
// escalation log and optionally retargeting recipients.
func (h *Handlers) EscalateAlert(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	alertID, ok := requireQueryParam(w, r, "alert_id")
	if !ok {
		return
	}

	var req EscalateAlertRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	alert, err := h.alerts.EscalateAlert(r.Context(), alertID, req.UserID, req.Note, req.Recipients)
	if err != nil {
		if handleStoreError(w, err, "Alert", alertID) {
			return
		}
		http.Error(w, "Failed to escalate alert: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.recorder.RecordEscalation()
	metrics.EscalationsTotal.WithLabelValues("manual").Inc()
	writeJSON(w, http.StatusOK, alert)
}

// MarkAlertRead records that a user has read an alert. Idempotent per user.
func (h *Handlers) MarkAlertRead(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	alertID, ok := requireQueryParam(w, r, "alert_id")
	if !ok {
		return
	}

	var req MarkAlertReadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	if err := h.alerts.MarkAlertRead(r.Context(), alertID, req.UserID); err != nil {
		if handleStoreError(w, err, "Alert", alertID) {
			return
		}
		http.Error(w, "Failed to mark alert read: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ArchiveAlert moves an alert to the archived terminal state. Archiving an
// already archived alert is a no-op.
func (h *Handlers) ArchiveAlert(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	alertID, ok := requireQueryParam(w, r, "alert_id")
	if !ok {
		return
	}

	if err := h.alerts.ArchiveAlert(r.Context(), alertID); err != nil {
		if handleStoreError(w, err, "Alert", alertID) {
			return
		}
		http.Error(w, "Failed to archive alert: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
