package router

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes configures all HTTP routes for the API.
func (r *Router) setupRoutes() {
	// Rule endpoints
	r.mux.HandleFunc("/api/v1/rules", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodPost:
			r.handlers.CreateRule(w, req)
		case http.MethodGet:
			if req.URL.Query().Get("rule_id") != "" {
				r.handlers.GetRule(w, req)
			} else {
				r.handlers.ListRules(w, req)
			}
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	r.mux.HandleFunc("/api/v1/rules/update", r.handlers.UpdateRule)
	r.mux.HandleFunc("/api/v1/rules/toggle", r.handlers.ToggleRuleEnabled)
	r.mux.HandleFunc("/api/v1/rules/delete", r.handlers.DeleteRule)

	// Alert endpoints
	r.mux.HandleFunc("/api/v1/alerts", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodPost:
			r.handlers.CreateAlert(w, req)
		case http.MethodGet:
			if req.URL.Query().Get("alert_id") != "" {
				r.handlers.GetAlert(w, req)
			} else {
				r.handlers.ListAlerts(w, req)
			}
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	r.mux.HandleFunc("/api/v1/alerts/resolve", r.handlers.ResolveAlert)
	r.mux.HandleFunc("/api/v1/alerts/escalate", r.handlers.EscalateAlert)
	r.mux.HandleFunc("/api/v1/alerts/read", r.handlers.MarkAlertRead)
	r.mux.HandleFunc("/api/v1/alerts/archive", r.handlers.ArchiveAlert)

	// Engine endpoints
	r.mux.HandleFunc("/api/v1/evaluate", r.handlers.EvaluateSubject)
	r.mux.HandleFunc("/api/v1/risk", r.handlers.GetRiskPrediction)
	r.mux.HandleFunc("/api/v1/patterns", r.handlers.GetAlertPatterns)

	// Health check endpoint
	r.mux.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus scrape endpoint
	r.mux.Handle("/metrics", promhttp.Handler())
}
