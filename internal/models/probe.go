package models

import (
	"time"

	"github.com/google/uuid"
)

// ProbeType identifies which kind of synthetic test produced a result.
type ProbeType string

const (
	ProbeHealthCheck  ProbeType = "health_check"
	ProbeEndpointTest ProbeType = "endpoint_test"
	ProbePerformance  ProbeType = "performance_test"
)

// Endpoint describes one probe target. Critical endpoints escalate any
// failure to a critical_failure alert regardless of sweep error rate.
type Endpoint struct {
	Name     string `yaml:"name" json:"name"`
	Path     string `yaml:"path" json:"path"`
	Method   string `yaml:"method" json:"method"`
	Critical bool   `yaml:"critical" json:"critical"`
}

// EndpointResult is the outcome of a single probe request.
type EndpointResult struct {
	Endpoint       string `json:"endpoint"`
	Method         string `json:"method"`
	Success        bool   `json:"success"`
	StatusCode     int    `json:"status_code"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	Critical       bool   `json:"critical"`
	Error          string `json:"error,omitempty"`
}

// TestSummary aggregates one probe run.
type TestSummary struct {
	Total             int   `json:"total"`
	Passed            int   `json:"passed"`
	Failed            int   `json:"failed"`
	AvgResponseTimeMs int64 `json:"avg_response_time_ms"`
}

// TestResult is one recorded prober run, retained with a bounded window.
type TestResult struct {
	ID        string           `json:"id" badgerhold:"key"`
	Type      ProbeType        `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Endpoints []EndpointResult `json:"endpoints"`
	Summary   TestSummary      `json:"summary"`
	Duration  time.Duration    `json:"duration"`
}

// NewTestResult creates an empty result shell for a probe run.
func NewTestResult(probeType ProbeType) *TestResult {
	return &TestResult{
		ID:        uuid.New().String(),
		Type:      probeType,
		Timestamp: time.Now(),
	}
}

// Finalize computes the summary from the per-endpoint results.
func (r *TestResult) Finalize(started time.Time) {
	r.Duration = time.Since(started)
	r.Summary.Total = len(r.Endpoints)
	var totalMs int64
	for _, e := range r.Endpoints {
		if e.Success {
			r.Summary.Passed++
		} else {
			r.Summary.Failed++
		}
		totalMs += e.ResponseTimeMs
	}
	if r.Summary.Total > 0 {
		r.Summary.AvgResponseTimeMs = totalMs / int64(r.Summary.Total)
	}
}

// ErrorRate is the failed fraction of the run, 0 when empty.
func (r *TestResult) ErrorRate() float64 {
	if r.Summary.Total == 0 {
		return 0
	}
	return float64(r.Summary.Failed) / float64(r.Summary.Total)
}

// AlertType classifies a threshold breach.
type AlertType string

const (
	AlertHighErrorRate   AlertType = "high_error_rate"
	AlertSlowResponse    AlertType = "slow_response"
	AlertCriticalFailure AlertType = "critical_failure"
)

// AlertSeverity is the coarse urgency of an alert.
type AlertSeverity string

const (
	SeverityWarning AlertSeverity = "warning"
	SeverityHigh    AlertSeverity = "high"
)

// Alert is a recorded threshold-breach notification derived from a
// TestResult. Retained short-term for dashboard paging.
type Alert struct {
	ID        string        `json:"id" badgerhold:"key"`
	Type      AlertType     `json:"type"`
	Severity  AlertSeverity `json:"severity"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
	TestID    string        `json:"test_id,omitempty"`
	Detail    interface{}   `json:"detail,omitempty"`
}

// NewAlert creates an alert stamped now.
func NewAlert(alertType AlertType, severity AlertSeverity, message, testID string) *Alert {
	return &Alert{
		ID:        uuid.New().String(),
		Type:      alertType,
		Severity:  severity,
		Message:   message,
		Timestamp: time.Now(),
		TestID:    testID,
	}
}

// ProbeMetrics is the single rolling aggregate updated after every test
// ingestion. Uptime is a lifetime ratio, not time-windowed. The average
// response time is a count-weighted running mean so uneven sweep sizes
// do not skew it.
type ProbeMetrics struct {
	TotalTests        int       `json:"total_tests"`
	TotalFailures     int       `json:"total_failures"`
	TotalProbes       int64     `json:"total_probes"`
	AvgResponseTimeMs float64   `json:"avg_response_time_ms"`
	Uptime            float64   `json:"uptime"`
	LastTestTime      time.Time `json:"last_test_time"`
}

// Ingest folds one test result into the aggregate.
func (m *ProbeMetrics) Ingest(r *TestResult) {
	m.TotalTests++
	if r.Summary.Failed > 0 {
		m.TotalFailures++
	}

	if r.Summary.Total > 0 {
		prev := m.TotalProbes
		m.TotalProbes += int64(r.Summary.Total)
		sum := m.AvgResponseTimeMs*float64(prev) + float64(r.Summary.AvgResponseTimeMs)*float64(r.Summary.Total)
		m.AvgResponseTimeMs = sum / float64(m.TotalProbes)
	}

	m.Uptime = float64(m.TotalTests-m.TotalFailures) / float64(m.TotalTests)
	m.LastTestTime = r.Timestamp
}

// HealthStatus is the coarse service status derived from metrics.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)
