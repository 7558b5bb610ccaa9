package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/autoforgehq/autoforge/internal/interfaces"
	"github.com/autoforgehq/autoforge/internal/models"
)

// Service owns the job lifecycle on top of the durable store: admission,
// claims, terminal transitions, and retry/backoff routing. Handler
// errors land here via Fail and never propagate to the enqueuing caller.
type Service struct {
	storage  interfaces.JobStorage
	registry *HandlerRegistry
	events   interfaces.EventService
	logger   arbor.ILogger
}

// NewService creates the queue service.
func NewService(storage interfaces.JobStorage, registry *HandlerRegistry, events interfaces.EventService, logger arbor.ILogger) *Service {
	return &Service{
		storage:  storage,
		registry: registry,
		events:   events,
		logger:   logger,
	}
}

// Enqueue admits a job. Unknown queues and unregistered job types are
// configuration errors surfaced to the caller; a store failure is a
// transient infrastructure failure, also surfaced.
func (s *Service) Enqueue(ctx context.Context, queueName, jobType string, payload json.RawMessage, opts *interfaces.EnqueueOptions) (string, error) {
	job, err := BuildJob(queueName, jobType, payload, opts)
	if err != nil {
		return "", err
	}
	if !s.registry.Has(queueName, jobType) {
		return "", fmt.Errorf("%w: %s/%s", models.ErrNoHandler, queueName, jobType)
	}

	if err := s.storage.SaveJob(ctx, job); err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	s.logger.Debug().
		Str("job_id", job.ID).
		Str("queue", queueName).
		Str("job_type", jobType).
		Int("priority", job.Priority).
		Msg("Job enqueued")

	s.publish(ctx, interfaces.EventJobReady, job)
	return job.ID, nil
}

// ClaimNext claims the next eligible job for a queue, or models.ErrNoJob.
func (s *Service) ClaimNext(ctx context.Context, queueName string) (*models.Job, error) {
	job, err := s.storage.ClaimNext(ctx, queueName)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, interfaces.EventJobActive, job)
	return job, nil
}

// Complete marks the job completed and stores its result.
func (s *Service) Complete(ctx context.Context, jobID string, result json.RawMessage) error {
	job, err := s.storage.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	job.MarkCompleted(result)
	if err := s.storage.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("queue", job.QueueName).
		Str("job_type", job.Type).
		Msg("Job completed")

	s.publish(ctx, interfaces.EventJobCompleted, job)
	return nil
}

// Fail records a failed attempt. With retries remaining the job goes
// back to delayed with a backoff-computed eligibility time; otherwise it
// becomes terminally failed with the captured error.
func (s *Service) Fail(ctx context.Context, jobID string, jobErr error) error {
	job, err := s.storage.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	job.Attempts++
	errMsg := ""
	if jobErr != nil {
		errMsg = jobErr.Error()
	}

	decision := DecideRetry(job, time.Now())
	if decision.Retry {
		job.State = decision.NextState
		job.DelayUntil = decision.DelayUntil
		job.Error = errMsg
		if err := s.storage.UpdateJob(ctx, job); err != nil {
			return fmt.Errorf("failed to schedule retry: %w", err)
		}

		s.logger.Warn().
			Str("job_id", job.ID).
			Str("queue", job.QueueName).
			Int("attempts", job.Attempts).
			Int("max_attempts", job.MaxAttempts).
			Str("error", errMsg).
			Str("next_attempt", decision.DelayUntil.Format(time.RFC3339)).
			Msg("Job failed, retry scheduled")

		s.publish(ctx, interfaces.EventJobRetrying, job)
		return nil
	}

	job.MarkFailed(errMsg)
	if err := s.storage.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}

	s.logger.Error().
		Str("job_id", job.ID).
		Str("queue", job.QueueName).
		Int("attempts", job.Attempts).
		Str("error", errMsg).
		Msg("Job failed terminally")

	s.publish(ctx, interfaces.EventJobFailed, job)
	return nil
}

// ReportProgress records handler-reported progress and refreshes the
// heartbeat. Progress is best-effort monotonic: lower reports are
// ignored rather than rejected.
func (s *Service) ReportProgress(ctx context.Context, jobID string, progress int) error {
	job, err := s.storage.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.State != models.JobStateActive {
		return nil
	}

	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	if progress > job.Progress {
		job.Progress = progress
	}
	job.UpdateHeartbeat()

	return s.storage.UpdateJob(ctx, job)
}

// GetStatus returns the poller-visible snapshot for a job.
func (s *Service) GetStatus(ctx context.Context, jobID string) (*models.JobView, error) {
	job, err := s.storage.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return job.View(), nil
}

// Stats returns per-state counts for one queue.
func (s *Service) Stats(ctx context.Context, queueName string) (*models.QueueStats, error) {
	return s.storage.Stats(ctx, queueName)
}

// AllStats returns per-state counts for every queue.
func (s *Service) AllStats(ctx context.Context) (map[string]*models.QueueStats, error) {
	all := make(map[string]*models.QueueStats, len(models.QueueNames))
	for _, queueName := range models.QueueNames {
		stats, err := s.storage.Stats(ctx, queueName)
		if err != nil {
			return nil, err
		}
		all[queueName] = stats
	}
	return all, nil
}

func (s *Service) publish(ctx context.Context, eventType interfaces.EventType, job *models.Job) {
	if s.events == nil {
		return
	}
	_ = s.events.Publish(ctx, interfaces.Event{
		Type: eventType,
		Payload: map[string]interface{}{
			"job_id":   job.ID,
			"queue":    job.QueueName,
			"job_type": job.Type,
			"state":    string(job.State),
			"attempts": job.Attempts,
		},
	})
}
