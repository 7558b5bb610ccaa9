package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket event stream
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Workflow orders (customer-facing)
	mux.HandleFunc("/api/workflows/generate", s.app.WorkflowHandler.GenerateHandler) // POST - submit order
	mux.HandleFunc("/api/workflows/status/", s.app.WorkflowHandler.StatusHandler)    // GET /{id} - poll order

	// API routes - Queue administration
	mux.HandleFunc("/api/queues/stats", s.app.QueueHandler.AllStatsHandler)
	mux.HandleFunc("/api/queues/", s.handleQueueRoutes) // /{name}/stats, /{name}/jobs
	mux.HandleFunc("/api/jobs/", s.app.QueueHandler.JobStatusHandler)

	// Monitoring routes - prober output
	mux.HandleFunc("/monitoring/health", s.app.MonitoringHandler.HealthHandler)
	mux.HandleFunc("/monitoring/dashboard", s.app.MonitoringHandler.DashboardHandler)
	mux.HandleFunc("/monitoring/metrics", s.app.MonitoringHandler.MetricsHandler)
	mux.HandleFunc("/monitoring/alerts", s.app.MonitoringHandler.AlertsHandler)
	mux.HandleFunc("/monitoring/results", s.app.MonitoringHandler.ResultsHandler)
	mux.HandleFunc("/monitoring/probe/", s.app.MonitoringHandler.TriggerProbeHandler) // POST /{type}
	mux.HandleFunc("/monitoring/metrics/reset", s.app.MonitoringHandler.ResetMetricsHandler)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)
	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleQueueRoutes routes /api/queues/{name}/... to the queue handler
func (s *Server) handleQueueRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if strings.HasSuffix(path, "/stats") {
		s.app.QueueHandler.StatsHandler(w, r)
		return
	}
	if strings.HasSuffix(path, "/jobs") {
		s.app.QueueHandler.EnqueueHandler(w, r)
		return
	}

	s.app.APIHandler.NotFoundHandler(w, r)
}
