package prober

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/autoforgehq/autoforge/internal/common"
	"github.com/autoforgehq/autoforge/internal/models"
)

// memProbeStore is an in-memory ProbeStorage capturing prober output.
type memProbeStore struct {
	mu      sync.Mutex
	results []*models.TestResult
	alerts  []*models.Alert
	metrics models.ProbeMetrics
}

func (s *memProbeStore) SaveTestResult(_ context.Context, r *models.TestResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
	return nil
}

func (s *memProbeStore) ListTestResults(_ context.Context, limit int) ([]*models.TestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]*models.TestResult(nil), s.results...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memProbeStore) SaveAlert(_ context.Context, a *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	return nil
}

func (s *memProbeStore) ListAlerts(_ context.Context, limit int) ([]*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]*models.Alert(nil), s.alerts...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memProbeStore) CountAlertsSince(_ context.Context, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, a := range s.alerts {
		if a.Timestamp.After(since) {
			count++
		}
	}
	return count, nil
}

func (s *memProbeStore) SaveMetrics(_ context.Context, m *models.ProbeMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = *m
	return nil
}

func (s *memProbeStore) GetMetrics(_ context.Context) (*models.ProbeMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.metrics
	return &m, nil
}

func (s *memProbeStore) SaveMetricsSnapshot(_ context.Context, _ *models.ProbeMetrics) error {
	return nil
}

func (s *memProbeStore) PruneExpired(_ context.Context) (int, error) {
	return 0, nil
}

func (s *memProbeStore) alertTypes() []models.AlertType {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]models.AlertType, 0, len(s.alerts))
	for _, a := range s.alerts {
		types = append(types, a.Type)
	}
	return types
}

// sweepEndpoints builds total probe targets of which failing hit the
// failing path.
func sweepEndpoints(total, failing int) []models.Endpoint {
	eps := make([]models.Endpoint, 0, total)
	for i := 0; i < total; i++ {
		path := "/ok"
		if i < failing {
			path = "/fail"
		}
		eps = append(eps, models.Endpoint{Name: fmt.Sprintf("ep-%d", i), Path: path, Method: "GET"})
	}
	return eps
}

func newTestProber(t *testing.T, endpoints []models.Endpoint) (*Service, *memProbeStore, *httptest.Server) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/fail", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/notfound", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	cfg := common.ProberConfig{
		Enabled:            true,
		TimeoutSeconds:     2,
		SweepRate:          1000, // no pacing in tests
		BurstConcurrency:   5,
		ErrorRateThreshold: 0.05,
		SlowResponseMs:     5000,
		Endpoints:          endpoints,
	}

	store := &memProbeStore{}
	return NewService(cfg, ts.URL, store, nil, arbor.NewLogger()), store, ts
}

func TestRunEndpointTest_HealthySweepNoAlerts(t *testing.T) {
	svc, store, _ := newTestProber(t, sweepEndpoints(10, 0))

	result := svc.RunEndpointTest(context.Background())

	assert.Equal(t, 10, result.Summary.Total)
	assert.Equal(t, 0, result.Summary.Failed)
	assert.Empty(t, store.alertTypes())
}

func TestRunEndpointTest_ErrorRateAboveThresholdAlerts(t *testing.T) {
	// 2 of 20 failing: 10% > 5% threshold.
	svc, store, _ := newTestProber(t, sweepEndpoints(20, 2))

	result := svc.RunEndpointTest(context.Background())

	assert.Equal(t, 2, result.Summary.Failed)
	assert.Contains(t, store.alertTypes(), models.AlertHighErrorRate)
}

func TestRunEndpointTest_ErrorRateAtThresholdNoAlert(t *testing.T) {
	// 1 of 20 failing: exactly 5%, threshold is strict.
	svc, store, _ := newTestProber(t, sweepEndpoints(20, 1))

	result := svc.RunEndpointTest(context.Background())

	assert.Equal(t, 1, result.Summary.Failed)
	assert.NotContains(t, store.alertTypes(), models.AlertHighErrorRate)
}

func TestRunEndpointTest_CriticalFailureAlerts(t *testing.T) {
	endpoints := []models.Endpoint{
		{Name: "core", Path: "/fail", Method: "GET", Critical: true},
		{Name: "aux", Path: "/ok", Method: "GET"},
	}
	svc, store, _ := newTestProber(t, endpoints)

	svc.RunEndpointTest(context.Background())

	types := store.alertTypes()
	assert.Contains(t, types, models.AlertCriticalFailure)
}

func TestProbeEndpoint_4xxIsSoftSuccess(t *testing.T) {
	svc, _, _ := newTestProber(t, nil)

	probe := svc.probeEndpoint(context.Background(), models.Endpoint{Name: "missing", Path: "/notfound", Method: "GET"})

	assert.True(t, probe.Success)
	assert.Equal(t, http.StatusNotFound, probe.StatusCode)
}

func TestProbeEndpoint_ConnectionErrorFails(t *testing.T) {
	svc, _, ts := newTestProber(t, nil)
	ts.Close()

	probe := svc.probeEndpoint(context.Background(), models.Endpoint{Name: "gone", Path: "/ok", Method: "GET"})

	assert.False(t, probe.Success)
	assert.NotEmpty(t, probe.Error)
}

func TestRunHealthCheck_CriticalFailureRaisesHighAlert(t *testing.T) {
	endpoints := []models.Endpoint{
		{Name: "core", Path: "/fail", Method: "GET", Critical: true},
	}
	svc, store, _ := newTestProber(t, endpoints)

	result := svc.RunHealthCheck(context.Background())

	assert.Equal(t, models.ProbeHealthCheck, result.Type)
	require.Len(t, store.alerts, 1)
	assert.Equal(t, models.AlertCriticalFailure, store.alerts[0].Type)
	assert.Equal(t, models.SeverityHigh, store.alerts[0].Severity)
}

func TestRunHealthCheck_SuccessNoAlert(t *testing.T) {
	endpoints := []models.Endpoint{
		{Name: "core", Path: "/ok", Method: "GET", Critical: true},
	}
	svc, store, _ := newTestProber(t, endpoints)

	svc.RunHealthCheck(context.Background())

	assert.Empty(t, store.alerts)
}

func TestRunPerformanceTest_BurstSize(t *testing.T) {
	endpoints := []models.Endpoint{
		{Name: "core", Path: "/ok", Method: "GET", Critical: true},
		{Name: "light", Path: "/ok", Method: "GET"},
	}
	svc, _, _ := newTestProber(t, endpoints)

	result := svc.RunPerformanceTest(context.Background())

	assert.Equal(t, models.ProbePerformance, result.Type)
	assert.Equal(t, 5, result.Summary.Total)
}

func TestIngest_UpdatesAndPersistsMetrics(t *testing.T) {
	svc, store, _ := newTestProber(t, sweepEndpoints(4, 1))

	svc.RunEndpointTest(context.Background())

	m := svc.Metrics()
	assert.Equal(t, 1, m.TotalTests)
	assert.Equal(t, 1, m.TotalFailures)
	assert.Equal(t, int64(4), m.TotalProbes)

	persisted, err := store.GetMetrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, m.TotalTests, persisted.TotalTests)
}

func TestResultsArePersisted(t *testing.T) {
	svc, store, _ := newTestProber(t, sweepEndpoints(3, 0))

	svc.RunEndpointTest(context.Background())
	svc.RunHealthCheck(context.Background())

	results, err := store.ListTestResults(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
