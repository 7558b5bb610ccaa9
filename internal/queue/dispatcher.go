package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/autoforgehq/autoforge/internal/interfaces"
	"github.com/autoforgehq/autoforge/internal/models"
)

// Admission defaults. Callers that pass no options get three attempts
// with exponential backoff from a 2s base and no priority preference;
// customer-approved or paid requests pass priority 1 explicitly.
const (
	DefaultPriority = 10
	PriorityPaid    = 1
)

// BuildJob translates enqueue-time options into a persistable job.
// Pure admission logic: no storage access, independently testable.
func BuildJob(queueName, jobType string, payload json.RawMessage, opts *interfaces.EnqueueOptions) (*models.Job, error) {
	if !models.ValidQueue(queueName) {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownQueue, queueName)
	}
	if jobType == "" {
		return nil, fmt.Errorf("job type is required")
	}

	job := models.NewJob(queueName, jobType, payload)
	job.Priority = DefaultPriority
	job.MaxAttempts = models.DefaultMaxAttempts
	job.Backoff = models.DefaultBackoff()

	if opts != nil {
		if opts.Priority > 0 {
			job.Priority = opts.Priority
		}
		if opts.MaxAttempts > 0 {
			job.MaxAttempts = opts.MaxAttempts
		}
		if opts.Backoff != nil {
			job.Backoff = *opts.Backoff
		}
		if opts.DelayMs > 0 {
			job.DelayUntil = time.Now().Add(time.Duration(opts.DelayMs) * time.Millisecond)
			job.State = models.JobStateDelayed
		}
	}

	return job, nil
}

// RetryDecision is the outcome of routing a handler failure through the
// backoff policy.
type RetryDecision struct {
	Retry      bool
	DelayUntil time.Time
	NextState  models.JobState
}

// DecideRetry applies the retry/backoff policy to a failed attempt.
// attempts is the count after the failed attempt has been recorded.
func DecideRetry(job *models.Job, now time.Time) RetryDecision {
	if job.Attempts >= job.MaxAttempts {
		return RetryDecision{Retry: false, NextState: models.JobStateFailed}
	}

	delay := job.Backoff.NextDelay(job.Attempts)
	return RetryDecision{
		Retry:      true,
		DelayUntil: now.Add(delay),
		NextState:  models.JobStateDelayed,
	}
}
