package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"alert-engine/internal/rules"
)

// CreateRuleRequest represents a request to create a rule.
type CreateRuleRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Type        rules.RuleType    `json:"type"`
	Priority    rules.Priority    `json:"priority"`
	Conditions  []rules.Condition `json:"conditions"`
	Actions     []rules.Action    `json:"actions"`
	Enabled     *bool             `json:"enabled"` // defaults to true
	CreatedBy   string            `json:"created_by"`
}

// UpdateRuleRequest represents a request to update a rule.
type UpdateRuleRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Type        rules.RuleType    `json:"type"`
	Priority    rules.Priority    `json:"priority"`
	Conditions  []rules.Condition `json:"conditions"`
	Actions     []rules.Action    `json:"actions"`
	Version     int               `json:"version"` // Optimistic locking version
}

// ToggleRuleEnabledRequest represents a request to toggle rule enabled status.
type ToggleRuleEnabledRequest struct {
	Enabled bool `json:"enabled"`
	Version int  `json:"version"` // Optimistic locking version
}

// CreateRule validates and persists a new rule, then refreshes the engine's
// rule set.
func (h *Handlers) CreateRule(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req CreateRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	rule := &rules.Rule{
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		Priority:    req.Priority,
		Conditions:  req.Conditions,
		Actions:     req.Actions,
		Enabled:     enabled,
		CreatedBy:   req.CreatedBy,
	}
	if err := rules.ValidateRule(rule); err != nil {
		if handleValidationError(w, err) {
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	created, err := h.rules.CreateRule(ctx, rule)
	if err != nil {
		if handleStoreError(w, err, "Rule", req.Name) {
			return
		}
		http.Error(w, "Failed to create rule: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.refreshRules(ctx)
	writeJSON(w, http.StatusCreated, created)
}

// GetRule retrieves a rule by ID.
func (h *Handlers) GetRule(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	ruleID, ok := requireQueryParam(w, r, "rule_id")
	if !ok {
		return
	}

	rule, err := h.rules.GetRule(r.Context(), ruleID)
	if err != nil {
		if handleStoreError(w, err, "Rule", ruleID) {
			return
		}
		http.Error(w, "Failed to get rule: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// ListRules retrieves rules with pagination, optionally filtered by type and
// enabled status.
// Query params: type, enabled, limit (default 50, max 200), offset (default 0)
func (h *Handlers) ListRules(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	var typePtr *string
	if ruleType := r.URL.Query().Get("type"); ruleType != "" {
		if !rules.IsValidRuleType(rules.RuleType(ruleType)) {
			http.Error(w, "type must be one of: academic, attendance, behavior, general", http.StatusBadRequest)
			return
		}
		typePtr = &ruleType
	}

	var enabledPtr *bool
	if enabledStr := r.URL.Query().Get("enabled"); enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			http.Error(w, "enabled must be true or false", http.StatusBadRequest)
			return
		}
		enabledPtr = &enabled
	}

	p := parsePagination(r)
	result, err := h.rules.ListRules(r.Context(), typePtr, enabledPtr, p.Limit, p.Offset)
	if err != nil {
		http.Error(w, "Failed to list rules: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// UpdateRule replaces a rule's definition under optimistic locking, then
// refreshes the engine's rule set.
func (h *Handlers) UpdateRule(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPut) {
		return
	}

	ruleID, ok := requireQueryParam(w, r, "rule_id")
	if !ok {
		return
	}

	var req UpdateRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rule := &rules.Rule{
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		Priority:    req.Priority,
		Conditions:  req.Conditions,
		Actions:     req.Actions,
	}
	if err := rules.ValidateRule(rule); err != nil {
		if handleValidationError(w, err) {
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	updated, err := h.rules.UpdateRule(ctx, ruleID, rule, req.Version)
	if err != nil {
		if handleStoreError(w, err, "Rule", ruleID) {
			return
		}
		http.Error(w, "Failed to update rule: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.refreshRules(ctx)
	writeJSON(w, http.StatusOK, updated)
}

// ToggleRuleEnabled flips a rule's enabled flag under optimistic locking,
// then refreshes the engine's rule set.
func (h *Handlers) ToggleRuleEnabled(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	ruleID, ok := requireQueryParam(w, r, "rule_id")
	if !ok {
		return
	}

	var req ToggleRuleEnabledRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	rule, err := h.rules.ToggleRuleEnabled(ctx, ruleID, req.Enabled, req.Version)
	if err != nil {
		if handleStoreError(w, err, "Rule", ruleID) {
			return
		}
		http.Error(w, "Failed to toggle rule enabled: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.refreshRules(ctx)
	writeJSON(w, http.StatusOK, rule)
}

// DeleteRule removes a rule, then refreshes the engine's rule set.
func (h *Handlers) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodDelete) {
		return
	}

	ruleID, ok := requireQueryParam(w, r, "rule_id")
	if !ok {
		return
	}

	ctx := r.Context()
	if err := h.rules.DeleteRule(ctx, ruleID); err != nil {
		if handleStoreError(w, err, "Rule", ruleID) {
			return
		}
		http.Error(w, "Failed to delete rule: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.refreshRules(ctx)
	w.WriteHeader(http.StatusNoContent)
}

// refreshRules reloads the in-memory rule set after a mutation. The poller
// would pick the change up anyway, so a failed refresh only logs.
func (h *Handlers) refreshRules(ctx context.Context) {
	if h.reloader == nil {
		return
	}
	if err := h.reloader.ReloadNow(ctx); err != nil {
		slog.Error("Failed to refresh rule set after mutation", "error", err)
	}
}
