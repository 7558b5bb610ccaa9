package interfaces

import (
	"context"
	"encoding/json"

	"github.com/autoforgehq/autoforge/internal/models"
)

// EnqueueOptions carries per-enqueue overrides. Zero values fall back to
// dispatcher defaults (priority 10, 3 attempts, exponential 2s backoff).
type EnqueueOptions struct {
	Priority    int                   `json:"priority,omitempty"`
	MaxAttempts int                   `json:"max_attempts,omitempty"`
	Backoff     *models.BackoffPolicy `json:"backoff,omitempty"`
	DelayMs     int64                 `json:"delay_ms,omitempty"`
}

// Enqueuer is the producer-facing admission surface. Route handlers and
// job handlers (chaining) both use it.
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName, jobType string, payload json.RawMessage, opts *EnqueueOptions) (string, error)
}

// QueueService owns the job lifecycle on top of JobStorage: admission,
// claims, terminal transitions, and retry/backoff routing.
type QueueService interface {
	Enqueuer

	ClaimNext(ctx context.Context, queueName string) (*models.Job, error)
	Complete(ctx context.Context, jobID string, result json.RawMessage) error
	Fail(ctx context.Context, jobID string, jobErr error) error
	ReportProgress(ctx context.Context, jobID string, progress int) error

	GetStatus(ctx context.Context, jobID string) (*models.JobView, error)
	Stats(ctx context.Context, queueName string) (*models.QueueStats, error)
	AllStats(ctx context.Context) (map[string]*models.QueueStats, error)
}

// ProgressFunc lets a handler report 0-100 completion while active.
// Reports also refresh the job heartbeat.
type ProgressFunc func(progress int)

// JobHandler executes one job. A returned error routes the job through
// the retry/backoff policy; a nil error completes it with the result.
type JobHandler func(ctx context.Context, job *models.Job, report ProgressFunc) (json.RawMessage, error)

// WorkerPool runs up to N concurrent handler invocations for one queue.
type WorkerPool interface {
	Start() error
	Stop() error
}
