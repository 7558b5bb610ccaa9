package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/autoforgehq/autoforge/internal/common"
	"github.com/autoforgehq/autoforge/internal/interfaces"
	"github.com/autoforgehq/autoforge/internal/models"
)

func newTestProbeStorage(t *testing.T, retention common.RetentionConfig) interfaces.ProbeStorage {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := NewBadgerDB(logger, &common.BadgerConfig{Path: t.TempDir() + "/db"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewProbeStorage(db, logger, retention)
}

func probeResult(when time.Time) *models.TestResult {
	r := models.NewTestResult(models.ProbeEndpointTest)
	r.Timestamp = when
	r.Endpoints = []models.EndpointResult{{Endpoint: "health", Success: true, ResponseTimeMs: 10}}
	r.Finalize(when)
	return r
}

func TestSaveTestResult_TrimsBeyondRetention(t *testing.T) {
	storage := newTestProbeStorage(t, common.RetentionConfig{RecentResults: 3})
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, storage.SaveTestResult(ctx, probeResult(base.Add(time.Duration(i)*time.Minute))))
	}

	results, err := storage.ListTestResults(ctx, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Newest first, oldest two trimmed.
	assert.True(t, results[0].Timestamp.After(results[1].Timestamp))
	assert.True(t, results[2].Timestamp.After(base.Add(time.Minute)))
}

func TestListAlerts_NewestFirstWithLimit(t *testing.T) {
	storage := newTestProbeStorage(t, common.RetentionConfig{RecentAlerts: 50})
	ctx := context.Background()

	old := models.NewAlert(models.AlertHighErrorRate, models.SeverityWarning, "old", "")
	old.Timestamp = time.Now().Add(-time.Hour)
	require.NoError(t, storage.SaveAlert(ctx, old))

	recent := models.NewAlert(models.AlertCriticalFailure, models.SeverityHigh, "recent", "")
	require.NoError(t, storage.SaveAlert(ctx, recent))

	alerts, err := storage.ListAlerts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, recent.ID, alerts[0].ID)
}

func TestCountAlertsSince_WindowBoundary(t *testing.T) {
	storage := newTestProbeStorage(t, common.RetentionConfig{RecentAlerts: 50})
	ctx := context.Background()

	inside := models.NewAlert(models.AlertSlowResponse, models.SeverityWarning, "inside", "")
	require.NoError(t, storage.SaveAlert(ctx, inside))

	outside := models.NewAlert(models.AlertSlowResponse, models.SeverityWarning, "outside", "")
	outside.Timestamp = time.Now().Add(-48 * time.Hour)
	require.NoError(t, storage.SaveAlert(ctx, outside))

	count, err := storage.CountAlertsSince(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_RoundTripAndEmptyDefault(t *testing.T) {
	storage := newTestProbeStorage(t, common.RetentionConfig{})
	ctx := context.Background()

	empty, err := storage.GetMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalTests)

	saved := &models.ProbeMetrics{TotalTests: 7, TotalFailures: 1, TotalProbes: 35, Uptime: 6.0 / 7.0}
	require.NoError(t, storage.SaveMetrics(ctx, saved))

	loaded, err := storage.GetMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.TotalTests)
	assert.Equal(t, int64(35), loaded.TotalProbes)
}

func TestPruneExpired_DropsAgedRecords(t *testing.T) {
	storage := newTestProbeStorage(t, common.RetentionConfig{
		RecentResults: 100,
		RecentAlerts:  50,
		ResultTTLDays: 7,
		AlertTTLDays:  30,
	})
	ctx := context.Background()

	require.NoError(t, storage.SaveTestResult(ctx, probeResult(time.Now().AddDate(0, 0, -10))))
	require.NoError(t, storage.SaveTestResult(ctx, probeResult(time.Now())))

	aged := models.NewAlert(models.AlertHighErrorRate, models.SeverityWarning, "aged", "")
	aged.Timestamp = time.Now().AddDate(0, 0, -40)
	require.NoError(t, storage.SaveAlert(ctx, aged))

	pruned, err := storage.PruneExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pruned)

	results, err := storage.ListTestResults(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	alerts, err := storage.ListAlerts(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, alerts, 0)
}
