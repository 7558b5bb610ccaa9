package prober

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/autoforgehq/autoforge/internal/common"
	"github.com/autoforgehq/autoforge/internal/interfaces"
	"github.com/autoforgehq/autoforge/internal/models"
)

// Service is the periodic health prober: it issues synthetic requests
// against the service's own endpoints on fixed cadences, folds the
// outcomes into a rolling metrics aggregate, and raises alerts on
// threshold breach. Individual probe failures are recorded results, not
// crashes; the schedules keep running regardless of outcomes.
type Service struct {
	cfg     common.ProberConfig
	baseURL string
	storage interfaces.ProbeStorage
	events  interfaces.EventService
	logger  arbor.ILogger
	client  *http.Client
	limiter *rate.Limiter

	cron    *cron.Cron
	running bool
	mu      sync.Mutex

	// metricsMu serializes metric read-modify-write so overlapping
	// probe cycles cannot lose updates (single-writer discipline).
	metricsMu sync.Mutex
	metrics   models.ProbeMetrics
}

// NewService creates the prober. baseURL overrides config when set
// (the composition root passes the bound server address).
func NewService(cfg common.ProberConfig, baseURL string, storage interfaces.ProbeStorage, events interfaces.EventService, logger arbor.ILogger) *Service {
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	sweepRate := cfg.SweepRate
	if sweepRate <= 0 {
		sweepRate = 2
	}
	return &Service{
		cfg:     cfg,
		baseURL: baseURL,
		storage: storage,
		events:  events,
		logger:  logger,
		client:  &http.Client{Timeout: cfg.Timeout()},
		limiter: rate.NewLimiter(rate.Limit(sweepRate), 1),
	}
}

// Start loads persisted metrics and schedules the four probe cadences.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("prober already running")
	}

	if m, err := s.storage.GetMetrics(context.Background()); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to load persisted prober metrics, starting fresh")
	} else {
		s.metricsMu.Lock()
		s.metrics = *m
		s.metricsMu.Unlock()
	}

	s.cron = cron.New()
	schedules := []struct {
		spec string
		name string
		run  func()
	}{
		{s.cfg.HealthSchedule, "health_check", func() { s.RunHealthCheck(context.Background()) }},
		{s.cfg.SweepSchedule, "endpoint_test", func() { s.RunEndpointTest(context.Background()) }},
		{s.cfg.PerformanceSchedule, "performance_test", func() { s.RunPerformanceTest(context.Background()) }},
		{s.cfg.SnapshotSchedule, "metrics_snapshot", func() { s.snapshotMetrics(context.Background()) }},
	}
	for _, sched := range schedules {
		name := sched.name
		run := sched.run
		if _, err := s.cron.AddFunc(sched.spec, func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error().
						Str("probe", name).
						Str("panic", fmt.Sprintf("%v", r)).
						Msg("PANIC RECOVERED in probe run")
				}
			}()
			run()
		}); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", sched.name, err)
		}
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("base_url", s.baseURL).
		Int("endpoints", len(s.cfg.Endpoints)).
		Msg("Prober started")
	return nil
}

// Stop halts the probe schedules. In-flight probes finish on their own.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.cron.Stop()
	s.running = false
	s.logger.Info().Msg("Prober stopped")
	return nil
}

// IsRunning reports whether the schedules are active.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Metrics returns a copy of the rolling aggregate.
func (s *Service) Metrics() models.ProbeMetrics {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()
	return s.metrics
}

// ResetMetrics clears the rolling aggregate. Operator action only.
func (s *Service) ResetMetrics(ctx context.Context) error {
	s.metricsMu.Lock()
	s.metrics = models.ProbeMetrics{}
	snapshot := s.metrics
	s.metricsMu.Unlock()
	return s.storage.SaveMetrics(ctx, &snapshot)
}

// RunHealthCheck probes the critical path once. Failure raises a
// critical_failure alert immediately, outside the sweep cadence.
func (s *Service) RunHealthCheck(ctx context.Context) *models.TestResult {
	started := time.Now()
	result := models.NewTestResult(models.ProbeHealthCheck)

	ep := s.criticalEndpoint()
	probe := s.probeEndpoint(ctx, ep)
	result.Endpoints = append(result.Endpoints, probe)
	result.Finalize(started)

	s.ingest(ctx, result)

	if !probe.Success {
		s.raiseAlert(ctx, models.NewAlert(
			models.AlertCriticalFailure,
			models.SeverityHigh,
			fmt.Sprintf("critical endpoint %s failed health check: %s", ep.Name, probe.Error),
			result.ID,
		))
	}

	return result
}

// RunEndpointTest sweeps the full endpoint list sequentially, paced by
// the sweep limiter to avoid self-inflicted load, then evaluates the
// alerting rules on the sweep summary.
func (s *Service) RunEndpointTest(ctx context.Context) *models.TestResult {
	started := time.Now()
	result := models.NewTestResult(models.ProbeEndpointTest)

	for _, ep := range s.cfg.Endpoints {
		if err := s.limiter.Wait(ctx); err != nil {
			break
		}
		result.Endpoints = append(result.Endpoints, s.probeEndpoint(ctx, ep))
	}
	result.Finalize(started)

	s.ingest(ctx, result)
	s.evaluateSweep(ctx, result)

	return result
}

// RunPerformanceTest bursts concurrent requests against the lightest
// endpoint to measure response behavior under parallel load.
func (s *Service) RunPerformanceTest(ctx context.Context) *models.TestResult {
	started := time.Now()
	result := models.NewTestResult(models.ProbePerformance)

	burst := s.cfg.BurstConcurrency
	if burst <= 0 {
		burst = 5
	}
	ep := s.lightestEndpoint()

	var wg sync.WaitGroup
	probes := make([]models.EndpointResult, burst)
	for i := 0; i < burst; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			probes[slot] = s.probeEndpoint(ctx, ep)
		}(i)
	}
	wg.Wait()

	result.Endpoints = probes
	result.Finalize(started)

	s.ingest(ctx, result)

	return result
}

// probeEndpoint issues one bounded-timeout request. Any status below
// 500 counts as a soft success for availability purposes: a 4xx means
// the service answered, which is what the prober measures.
func (s *Service) probeEndpoint(ctx context.Context, ep models.Endpoint) models.EndpointResult {
	method := ep.Method
	if method == "" {
		method = http.MethodGet
	}

	probe := models.EndpointResult{
		Endpoint: ep.Name,
		Method:   method,
		Critical: ep.Critical,
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+ep.Path, nil)
	if err != nil {
		probe.Error = err.Error()
		return probe
	}

	started := time.Now()
	resp, err := s.client.Do(req)
	probe.ResponseTimeMs = time.Since(started).Milliseconds()

	if err != nil {
		probe.Error = err.Error()
		return probe
	}
	defer resp.Body.Close()

	probe.StatusCode = resp.StatusCode
	probe.Success = resp.StatusCode < http.StatusInternalServerError
	if !probe.Success {
		probe.Error = fmt.Sprintf("status %d", resp.StatusCode)
	}
	return probe
}

// evaluateSweep applies the alerting rules to a full-sweep result:
// error rate strictly above the threshold, average response time above
// the slow threshold, and any critical endpoint failure.
func (s *Service) evaluateSweep(ctx context.Context, result *models.TestResult) {
	if result.ErrorRate() > s.cfg.ErrorRateThreshold {
		s.raiseAlert(ctx, models.NewAlert(
			models.AlertHighErrorRate,
			models.SeverityWarning,
			fmt.Sprintf("sweep error rate %.1f%% exceeds %.1f%% threshold (%d/%d failed)",
				result.ErrorRate()*100, s.cfg.ErrorRateThreshold*100,
				result.Summary.Failed, result.Summary.Total),
			result.ID,
		))
	}

	if s.cfg.SlowResponseMs > 0 && result.Summary.AvgResponseTimeMs > s.cfg.SlowResponseMs {
		s.raiseAlert(ctx, models.NewAlert(
			models.AlertSlowResponse,
			models.SeverityWarning,
			fmt.Sprintf("sweep average response time %dms exceeds %dms threshold",
				result.Summary.AvgResponseTimeMs, s.cfg.SlowResponseMs),
			result.ID,
		))
	}

	for _, probe := range result.Endpoints {
		if probe.Critical && !probe.Success {
			s.raiseAlert(ctx, models.NewAlert(
				models.AlertCriticalFailure,
				models.SeverityHigh,
				fmt.Sprintf("critical endpoint %s failed: %s", probe.Endpoint, probe.Error),
				result.ID,
			))
		}
	}
}

// ingest folds a result into the rolling metrics and persists both.
// Store write failures are logged and swallowed: observability loss,
// not a correctness problem.
func (s *Service) ingest(ctx context.Context, result *models.TestResult) {
	s.metricsMu.Lock()
	s.metrics.Ingest(result)
	snapshot := s.metrics
	s.metricsMu.Unlock()

	if err := s.storage.SaveTestResult(ctx, result); err != nil {
		s.logger.Warn().Err(err).Str("test_id", result.ID).Msg("Failed to persist test result")
	}
	if err := s.storage.SaveMetrics(ctx, &snapshot); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist prober metrics")
	}

	s.logger.Debug().
		Str("test_id", result.ID).
		Str("type", string(result.Type)).
		Int("total", result.Summary.Total).
		Int("failed", result.Summary.Failed).
		Int64("avg_ms", result.Summary.AvgResponseTimeMs).
		Msg("Probe result ingested")

	if s.events != nil {
		_ = s.events.Publish(ctx, interfaces.Event{
			Type:    interfaces.EventProbeCompleted,
			Payload: result,
		})
	}
}

func (s *Service) raiseAlert(ctx context.Context, alert *models.Alert) {
	if err := s.storage.SaveAlert(ctx, alert); err != nil {
		s.logger.Warn().Err(err).Str("alert_id", alert.ID).Msg("Failed to persist alert")
	}

	s.logger.Warn().
		Str("alert_type", string(alert.Type)).
		Str("severity", string(alert.Severity)).
		Str("message", alert.Message).
		Msg("Alert raised")

	if s.events != nil {
		_ = s.events.Publish(ctx, interfaces.Event{
			Type:    interfaces.EventAlertRaised,
			Payload: alert,
		})
	}
}

func (s *Service) snapshotMetrics(ctx context.Context) {
	s.metricsMu.Lock()
	snapshot := s.metrics
	s.metricsMu.Unlock()

	if err := s.storage.SaveMetricsSnapshot(ctx, &snapshot); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist metrics snapshot")
		return
	}
	s.logger.Debug().
		Int("total_tests", snapshot.TotalTests).
		Float64("uptime", snapshot.Uptime).
		Msg("Metrics snapshot persisted")
}

// criticalEndpoint returns the first critical endpoint, falling back to
// the first configured endpoint.
func (s *Service) criticalEndpoint() models.Endpoint {
	for _, ep := range s.cfg.Endpoints {
		if ep.Critical {
			return ep
		}
	}
	if len(s.cfg.Endpoints) > 0 {
		return s.cfg.Endpoints[0]
	}
	return models.Endpoint{Name: "health", Path: "/api/health", Method: http.MethodGet, Critical: true}
}

// lightestEndpoint returns the first non-critical endpoint, falling
// back to the critical one. Non-critical endpoints carry no downstream
// work, which keeps the burst from skewing real traffic.
func (s *Service) lightestEndpoint() models.Endpoint {
	for _, ep := range s.cfg.Endpoints {
		if !ep.Critical {
			return ep
		}
	}
	return s.criticalEndpoint()
}
