package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors shared by the queue service and storage layer.
var (
	ErrNoJob        = errors.New("no eligible job")
	ErrJobNotFound  = errors.New("job not found")
	ErrUnknownQueue = errors.New("unknown queue name")
	ErrNoHandler    = errors.New("no handler registered for job type")
)

// JobState is the lifecycle state of a queued job.
type JobState string

const (
	JobStateWaiting   JobState = "waiting"
	JobStateDelayed   JobState = "delayed"
	JobStateActive    JobState = "active"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

// Queue names form a closed set. Each queue has its own worker pool and
// concurrency ceiling; jobs enqueued to any other name are rejected.
const (
	QueueGeneration      = "generation"
	QueueTesting         = "testing"
	QueueContentCreation = "content-creation"
	QueuePublishing      = "publishing"
	QueueNotifications   = "notifications"
	QueueAnalytics       = "analytics"
)

// QueueNames lists all valid queues in dispatch-registration order.
var QueueNames = []string{
	QueueGeneration,
	QueueTesting,
	QueueContentCreation,
	QueuePublishing,
	QueueNotifications,
	QueueAnalytics,
}

// ValidQueue reports whether name is a member of the closed queue set.
func ValidQueue(name string) bool {
	for _, q := range QueueNames {
		if q == name {
			return true
		}
	}
	return false
}

// Job is one unit of queued work: payload, lifecycle state, and retry
// bookkeeping. The record in storage is authoritative; workers mutate it
// only through the queue service.
type Job struct {
	ID        string          `json:"id" badgerhold:"key"`
	QueueName string          `json:"queue_name" badgerholdIndex:"QueueName"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`

	// Priority: lower value = higher priority. Ties break on CreatedAt.
	Priority int `json:"priority"`

	Attempts    int           `json:"attempts"`
	MaxAttempts int           `json:"max_attempts"`
	Backoff     BackoffPolicy `json:"backoff"`

	// DelayUntil gates dispatch; zero means immediately eligible.
	DelayUntil time.Time `json:"delay_until,omitempty"`

	State    JobState `json:"state" badgerholdIndex:"State"`
	Progress int      `json:"progress"`

	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`

	// Heartbeat tracking for stalled-job observation. A stalled job stays
	// active; the flag is informational and never triggers a requeue.
	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`
	Stalled       bool       `json:"stalled,omitempty"`
}

// NewJob creates a waiting job with a generated ID.
func NewJob(queueName, jobType string, payload json.RawMessage) *Job {
	return &Job{
		ID:        uuid.New().String(),
		QueueName: queueName,
		Type:      jobType,
		Payload:   payload,
		State:     JobStateWaiting,
		CreatedAt: time.Now(),
	}
}

// Eligible reports whether the job may be claimed at the given instant.
func (j *Job) Eligible(now time.Time) bool {
	if j.State != JobStateWaiting && j.State != JobStateDelayed {
		return false
	}
	return j.DelayUntil.IsZero() || !j.DelayUntil.After(now)
}

// IsTerminal reports whether the job reached a terminal state.
func (j *Job) IsTerminal() bool {
	return j.State == JobStateCompleted || j.State == JobStateFailed
}

// MarkActive transitions the job to active and stamps ProcessedAt.
func (j *Job) MarkActive() {
	now := time.Now()
	j.State = JobStateActive
	j.ProcessedAt = &now
	j.LastHeartbeat = &now
	j.Stalled = false
}

// MarkCompleted transitions the job to completed with its result.
func (j *Job) MarkCompleted(result json.RawMessage) {
	now := time.Now()
	j.State = JobStateCompleted
	j.Result = result
	j.Progress = 100
	j.FinishedAt = &now
}

// MarkFailed transitions the job to terminal failed with the last error.
func (j *Job) MarkFailed(errMsg string) {
	now := time.Now()
	j.State = JobStateFailed
	j.Error = errMsg
	j.FinishedAt = &now
}

// UpdateHeartbeat refreshes the liveness timestamp while active.
func (j *Job) UpdateHeartbeat() {
	now := time.Now()
	j.LastHeartbeat = &now
}

// Validate checks structural invariants before admission.
func (j *Job) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if !ValidQueue(j.QueueName) {
		return fmt.Errorf("%w: %q", ErrUnknownQueue, j.QueueName)
	}
	if j.Type == "" {
		return fmt.Errorf("job type is required")
	}
	if j.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive")
	}
	return nil
}

// JobView is the snapshot returned to status pollers.
type JobView struct {
	ID          string          `json:"id"`
	QueueName   string          `json:"queue_name"`
	Type        string          `json:"type"`
	State       JobState        `json:"state"`
	Progress    int             `json:"progress"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	Stalled     bool            `json:"stalled,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
}

// View extracts the poller-visible snapshot of a job.
func (j *Job) View() *JobView {
	return &JobView{
		ID:          j.ID,
		QueueName:   j.QueueName,
		Type:        j.Type,
		State:       j.State,
		Progress:    j.Progress,
		Attempts:    j.Attempts,
		MaxAttempts: j.MaxAttempts,
		Result:      j.Result,
		Error:       j.Error,
		Stalled:     j.Stalled,
		CreatedAt:   j.CreatedAt,
		ProcessedAt: j.ProcessedAt,
		FinishedAt:  j.FinishedAt,
	}
}

// QueueStats holds per-state job counts for one queue.
type QueueStats struct {
	Waiting   int `json:"waiting"`
	Delayed   int `json:"delayed"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}
