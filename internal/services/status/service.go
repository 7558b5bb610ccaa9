package status

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/autoforgehq/autoforge/internal/common"
	"github.com/autoforgehq/autoforge/internal/interfaces"
	"github.com/autoforgehq/autoforge/internal/models"
)

// Uptime thresholds for health derivation.
const (
	healthyUptime  = 0.95
	degradedUptime = 0.90
)

// Report is the dashboard-facing rollup: derived health, the prober
// aggregate, queue depths, and the recent alert count.
type Report struct {
	Status       models.HealthStatus           `json:"status"`
	Uptime       float64                       `json:"uptime"`
	Metrics      models.ProbeMetrics           `json:"metrics"`
	RecentAlerts int                           `json:"recent_alerts"`
	AlertWindow  string                        `json:"alert_window"`
	Queues       map[string]*models.QueueStats `json:"queues"`
	GeneratedAt  time.Time                     `json:"generated_at"`
}

// MetricsSource yields the current rolling probe aggregate.
type MetricsSource interface {
	Metrics() models.ProbeMetrics
}

// Service derives the coarse service health. Uptime drives the
// healthy/degraded split; a burst of recent alerts forces unhealthy
// even when lifetime uptime still looks good.
type Service struct {
	metrics     MetricsSource
	probeStore  interfaces.ProbeStorage
	queues      interfaces.QueueService
	logger      arbor.ILogger
	alertWindow time.Duration
	maxAlerts   int
}

// NewService creates the status service.
func NewService(metrics MetricsSource, probeStore interfaces.ProbeStorage, queues interfaces.QueueService, cfg common.ProberConfig, logger arbor.ILogger) *Service {
	window := time.Duration(cfg.AlertWindowHours) * time.Hour
	if window <= 0 {
		window = 24 * time.Hour
	}
	maxAlerts := cfg.MaxActiveAlerts
	if maxAlerts <= 0 {
		maxAlerts = 5
	}
	return &Service{
		metrics:     metrics,
		probeStore:  probeStore,
		queues:      queues,
		logger:      logger,
		alertWindow: window,
		maxAlerts:   maxAlerts,
	}
}

// Health derives the current coarse status.
func (s *Service) Health(ctx context.Context) (models.HealthStatus, error) {
	m := s.metrics.Metrics()

	recent, err := s.probeStore.CountAlertsSince(ctx, time.Now().Add(-s.alertWindow))
	if err != nil {
		return models.HealthUnhealthy, err
	}

	return Derive(m, recent, s.maxAlerts), nil
}

// Report builds the full dashboard rollup. Partial failures degrade the
// report rather than failing it: a store error leaves that section
// empty and is logged.
func (s *Service) Report(ctx context.Context) *Report {
	m := s.metrics.Metrics()

	recent, err := s.probeStore.CountAlertsSince(ctx, time.Now().Add(-s.alertWindow))
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to count recent alerts for status report")
		recent = 0
	}

	queues, err := s.queues.AllStats(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to collect queue stats for status report")
		queues = map[string]*models.QueueStats{}
	}

	return &Report{
		Status:       Derive(m, recent, s.maxAlerts),
		Uptime:       m.Uptime,
		Metrics:      m,
		RecentAlerts: recent,
		AlertWindow:  s.alertWindow.String(),
		Queues:       queues,
		GeneratedAt:  time.Now(),
	}
}

// Derive maps the rolling aggregate and the recent alert count to a
// status. Pure, independently testable. A service with no probe history
// yet reports healthy: absence of evidence is not an outage.
func Derive(m models.ProbeMetrics, recentAlerts, maxAlerts int) models.HealthStatus {
	if recentAlerts > maxAlerts {
		return models.HealthUnhealthy
	}
	if m.TotalTests == 0 {
		return models.HealthHealthy
	}
	switch {
	case m.Uptime >= healthyUptime:
		return models.HealthHealthy
	case m.Uptime >= degradedUptime:
		return models.HealthDegraded
	default:
		return models.HealthUnhealthy
	}
}
