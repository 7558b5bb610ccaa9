package badger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/autoforgehq/autoforge/internal/common"
	"github.com/autoforgehq/autoforge/internal/interfaces"
	"github.com/autoforgehq/autoforge/internal/models"
)

const metricsKey = "prober-metrics"

// metricsRecord wraps the single rolling aggregate under a fixed key.
type metricsRecord struct {
	ID      string `badgerhold:"key"`
	Metrics models.ProbeMetrics
}

// metricsSnapshot is a periodic persisted copy of the rolling aggregate.
type metricsSnapshot struct {
	ID      string `badgerhold:"key"`
	TakenAt time.Time
	Metrics models.ProbeMetrics
}

// ProbeStorage persists prober results, alerts, and metrics with bounded
// retention (recent-N plus TTL expiry, enforced on write and by the
// retention pruner).
type ProbeStorage struct {
	db        *BadgerDB
	logger    arbor.ILogger
	retention common.RetentionConfig
	mu        sync.Mutex
}

// NewProbeStorage creates a new ProbeStorage instance.
func NewProbeStorage(db *BadgerDB, logger arbor.ILogger, retention common.RetentionConfig) interfaces.ProbeStorage {
	return &ProbeStorage{
		db:        db,
		logger:    logger,
		retention: retention,
	}
}

func (s *ProbeStorage) SaveTestResult(ctx context.Context, result *models.TestResult) error {
	if result.ID == "" {
		return fmt.Errorf("test result ID is required")
	}
	if err := s.db.Store().Upsert(result.ID, result); err != nil {
		return fmt.Errorf("failed to save test result: %w", err)
	}
	s.trimResults()
	return nil
}

func (s *ProbeStorage) ListTestResults(ctx context.Context, limit int) ([]*models.TestResult, error) {
	var results []models.TestResult
	if err := s.db.Store().Find(&results, badgerhold.Where("ID").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to list test results: %w", err)
	}
	sort.Slice(results, func(i, k int) bool {
		return results[i].Timestamp.After(results[k].Timestamp)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	out := make([]*models.TestResult, len(results))
	for i := range results {
		out[i] = &results[i]
	}
	return out, nil
}

func (s *ProbeStorage) SaveAlert(ctx context.Context, alert *models.Alert) error {
	if alert.ID == "" {
		return fmt.Errorf("alert ID is required")
	}
	if err := s.db.Store().Upsert(alert.ID, alert); err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}
	s.trimAlerts()
	return nil
}

func (s *ProbeStorage) ListAlerts(ctx context.Context, limit int) ([]*models.Alert, error) {
	var alerts []models.Alert
	if err := s.db.Store().Find(&alerts, badgerhold.Where("ID").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	sort.Slice(alerts, func(i, k int) bool {
		return alerts[i].Timestamp.After(alerts[k].Timestamp)
	})
	if limit > 0 && len(alerts) > limit {
		alerts = alerts[:limit]
	}
	out := make([]*models.Alert, len(alerts))
	for i := range alerts {
		out[i] = &alerts[i]
	}
	return out, nil
}

func (s *ProbeStorage) CountAlertsSince(ctx context.Context, since time.Time) (int, error) {
	var alerts []models.Alert
	if err := s.db.Store().Find(&alerts, badgerhold.Where("ID").Ne("")); err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	count := 0
	for _, a := range alerts {
		if a.Timestamp.After(since) {
			count++
		}
	}
	return count, nil
}

func (s *ProbeStorage) SaveMetrics(ctx context.Context, metrics *models.ProbeMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := metricsRecord{ID: metricsKey, Metrics: *metrics}
	if err := s.db.Store().Upsert(rec.ID, &rec); err != nil {
		return fmt.Errorf("failed to save metrics: %w", err)
	}
	return nil
}

func (s *ProbeStorage) GetMetrics(ctx context.Context) (*models.ProbeMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rec metricsRecord
	if err := s.db.Store().Get(metricsKey, &rec); err != nil {
		if err == badgerhold.ErrNotFound {
			return &models.ProbeMetrics{}, nil
		}
		return nil, fmt.Errorf("failed to get metrics: %w", err)
	}
	return &rec.Metrics, nil
}

func (s *ProbeStorage) SaveMetricsSnapshot(ctx context.Context, metrics *models.ProbeMetrics) error {
	snap := metricsSnapshot{
		ID:      common.NewID(),
		TakenAt: time.Now(),
		Metrics: *metrics,
	}
	if err := s.db.Store().Upsert(snap.ID, &snap); err != nil {
		return fmt.Errorf("failed to save metrics snapshot: %w", err)
	}
	return nil
}

// PruneExpired removes test results, alerts, and snapshots past their
// TTL. Count-based trimming happens on write; this sweeps age.
func (s *ProbeStorage) PruneExpired(ctx context.Context) (int, error) {
	pruned := 0
	now := time.Now()

	if days := s.retention.ResultTTLDays; days > 0 {
		cutoff := now.AddDate(0, 0, -days)
		var results []models.TestResult
		if err := s.db.Store().Find(&results, badgerhold.Where("ID").Ne("")); err != nil {
			return pruned, fmt.Errorf("failed to list test results for pruning: %w", err)
		}
		for _, r := range results {
			if r.Timestamp.Before(cutoff) {
				if err := s.db.Store().Delete(r.ID, &models.TestResult{}); err == nil {
					pruned++
				}
			}
		}
	}

	if days := s.retention.AlertTTLDays; days > 0 {
		cutoff := now.AddDate(0, 0, -days)
		var alerts []models.Alert
		if err := s.db.Store().Find(&alerts, badgerhold.Where("ID").Ne("")); err != nil {
			return pruned, fmt.Errorf("failed to list alerts for pruning: %w", err)
		}
		for _, a := range alerts {
			if a.Timestamp.Before(cutoff) {
				if err := s.db.Store().Delete(a.ID, &models.Alert{}); err == nil {
					pruned++
				}
			}
		}

		var snaps []metricsSnapshot
		if err := s.db.Store().Find(&snaps, badgerhold.Where("ID").Ne("")); err == nil {
			for _, sn := range snaps {
				if sn.TakenAt.Before(cutoff) {
					if err := s.db.Store().Delete(sn.ID, &metricsSnapshot{}); err == nil {
						pruned++
					}
				}
			}
		}
	}

	if pruned > 0 {
		s.logger.Debug().Int("count", pruned).Msg("Pruned expired probe records")
	}
	return pruned, nil
}

func (s *ProbeStorage) trimResults() {
	keep := s.retention.RecentResults
	if keep <= 0 {
		return
	}
	results, err := s.ListTestResults(context.Background(), 0)
	if err != nil || len(results) <= keep {
		return
	}
	for _, r := range results[keep:] {
		if err := s.db.Store().Delete(r.ID, &models.TestResult{}); err != nil {
			s.logger.Warn().Err(err).Str("test_id", r.ID).Msg("Failed to trim test result")
		}
	}
}

func (s *ProbeStorage) trimAlerts() {
	keep := s.retention.RecentAlerts
	if keep <= 0 {
		return
	}
	alerts, err := s.ListAlerts(context.Background(), 0)
	if err != nil || len(alerts) <= keep {
		return
	}
	for _, a := range alerts[keep:] {
		if err := s.db.Store().Delete(a.ID, &models.Alert{}); err != nil {
			s.logger.Warn().Err(err).Str("alert_id", a.ID).Msg("Failed to trim alert")
		}
	}
}
