package interfaces

import (
	"context"
	"time"

	"github.com/autoforgehq/autoforge/internal/models"
)

// JobStorage is the durable job store. It owns authoritative job state;
// all transitions go through it. ClaimNext is the concurrency-critical
// operation: at most one caller receives a given job.
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	UpdateJob(ctx context.Context, job *models.Job) error

	// ClaimNext returns the highest-priority, earliest-created eligible
	// job in the queue, transitioned to active, or models.ErrNoJob.
	ClaimNext(ctx context.Context, queueName string) (*models.Job, error)

	GetJobsByState(ctx context.Context, queueName string, state models.JobState) ([]*models.Job, error)
	Stats(ctx context.Context, queueName string) (*models.QueueStats, error)

	// GetStaleActive returns active jobs whose heartbeat is older than
	// the threshold. Observability input for the stalled-job monitor.
	GetStaleActive(ctx context.Context, threshold time.Time) ([]*models.Job, error)

	// PruneTerminal trims terminal jobs beyond the retention counts,
	// oldest first. Returns the number of jobs removed.
	PruneTerminal(ctx context.Context, keepCompleted, keepFailed int) (int, error)
}

// ProbeStorage persists prober output with bounded retention.
// Write failures are observability losses, not correctness failures;
// callers log and continue.
type ProbeStorage interface {
	SaveTestResult(ctx context.Context, result *models.TestResult) error
	ListTestResults(ctx context.Context, limit int) ([]*models.TestResult, error)
	SaveAlert(ctx context.Context, alert *models.Alert) error
	ListAlerts(ctx context.Context, limit int) ([]*models.Alert, error)
	CountAlertsSince(ctx context.Context, since time.Time) (int, error)
	SaveMetrics(ctx context.Context, metrics *models.ProbeMetrics) error
	GetMetrics(ctx context.Context) (*models.ProbeMetrics, error)
	SaveMetricsSnapshot(ctx context.Context, metrics *models.ProbeMetrics) error
	PruneExpired(ctx context.Context) (int, error)
}

// StorageManager bundles the stores behind one lifecycle.
type StorageManager interface {
	JobStorage() JobStorage
	ProbeStorage() ProbeStorage
	Close() error
}
