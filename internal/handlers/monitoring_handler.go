package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/autoforgehq/autoforge/internal/interfaces"
	"github.com/autoforgehq/autoforge/internal/models"
	"github.com/autoforgehq/autoforge/internal/services/prober"
	"github.com/autoforgehq/autoforge/internal/services/status"
)

// MonitoringHandler exposes the prober's output: derived health, the
// rolling metrics aggregate, recent results and alerts, and manual
// probe triggers for operators.
type MonitoringHandler struct {
	prober     *prober.Service
	status     *status.Service
	probeStore interfaces.ProbeStorage
	logger     arbor.ILogger
}

func NewMonitoringHandler(proberService *prober.Service, statusService *status.Service, probeStore interfaces.ProbeStorage, logger arbor.ILogger) *MonitoringHandler {
	return &MonitoringHandler{
		prober:     proberService,
		status:     statusService,
		probeStore: probeStore,
		logger:     logger,
	}
}

// HealthHandler returns the derived service health with the full status
// report. Unhealthy responds 503 so upstream load balancers can act on
// the status code alone.
func (h *MonitoringHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	report := h.status.Report(r.Context())
	code := http.StatusOK
	if report.Status == models.HealthUnhealthy {
		code = http.StatusServiceUnavailable
	}
	WriteJSON(w, code, report)
}

// DashboardHandler returns the full status rollup for the operator
// dashboard. Always 200; the health endpoint is the one that maps
// status to response codes.
func (h *MonitoringHandler) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, h.status.Report(r.Context()))
}

// MetricsHandler returns the rolling probe aggregate.
func (h *MonitoringHandler) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"metrics":        h.prober.Metrics(),
		"prober_running": h.prober.IsRunning(),
	})
}

// AlertsHandler returns recent alerts, newest first.
func (h *MonitoringHandler) AlertsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	alerts, err := h.probeStore.ListAlerts(r.Context(), LimitParam(r, 20, 50))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// ResultsHandler returns recent probe results, newest first.
func (h *MonitoringHandler) ResultsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	results, err := h.probeStore.ListTestResults(r.Context(), LimitParam(r, 20, 100))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

// ResetMetricsHandler zeroes the rolling aggregate. Used by operators
// after a deployment to start the uptime window fresh.
func (h *MonitoringHandler) ResetMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	if err := h.prober.ResetMetrics(r.Context()); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Info().Msg("Probe metrics reset via API")
	WriteJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// TriggerProbeHandler runs one probe on demand and returns its result.
// Handles POST /monitoring/probe/{type} where type is health_check,
// endpoint_test, or performance_test.
func (h *MonitoringHandler) TriggerProbeHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	probeType := strings.TrimPrefix(r.URL.Path, "/monitoring/probe/")
	var result *models.TestResult
	switch models.ProbeType(probeType) {
	case models.ProbeHealthCheck:
		result = h.prober.RunHealthCheck(r.Context())
	case models.ProbeEndpointTest:
		result = h.prober.RunEndpointTest(r.Context())
	case models.ProbePerformance:
		result = h.prober.RunPerformanceTest(r.Context())
	default:
		WriteError(w, http.StatusBadRequest, "unknown probe type: "+probeType)
		return
	}

	h.logger.Info().
		Str("probe_type", probeType).
		Int("total", result.Summary.Total).
		Int("failed", result.Summary.Failed).
		Msg("Probe triggered via API")

	WriteJSON(w, http.StatusOK, result)
}
