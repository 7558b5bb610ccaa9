package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoforgehq/autoforge/internal/interfaces"
	"github.com/autoforgehq/autoforge/internal/models"
)

func TestBuildJob_Defaults(t *testing.T) {
	job, err := BuildJob(models.QueueGeneration, "generate-workflow", json.RawMessage(`{}`), nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultPriority, job.Priority)
	assert.Equal(t, models.DefaultMaxAttempts, job.MaxAttempts)
	assert.Equal(t, models.BackoffExponential, job.Backoff.Kind)
	assert.Equal(t, models.JobStateWaiting, job.State)
	assert.True(t, job.DelayUntil.IsZero())
	assert.NotEmpty(t, job.ID)
}

func TestBuildJob_UnknownQueueRejected(t *testing.T) {
	_, err := BuildJob("video-rendering", "render", nil, nil)
	assert.ErrorIs(t, err, models.ErrUnknownQueue)
}

func TestBuildJob_EmptyTypeRejected(t *testing.T) {
	_, err := BuildJob(models.QueueGeneration, "", nil, nil)
	assert.Error(t, err)
}

func TestBuildJob_OptionsOverrideDefaults(t *testing.T) {
	opts := &interfaces.EnqueueOptions{
		Priority:    PriorityPaid,
		MaxAttempts: 5,
		Backoff:     &models.BackoffPolicy{Kind: models.BackoffFixed, Base: time.Second},
	}

	job, err := BuildJob(models.QueueTesting, "test-workflow", nil, opts)
	require.NoError(t, err)

	assert.Equal(t, PriorityPaid, job.Priority)
	assert.Equal(t, 5, job.MaxAttempts)
	assert.Equal(t, models.BackoffFixed, job.Backoff.Kind)
}

func TestBuildJob_DelayedAdmission(t *testing.T) {
	before := time.Now()
	job, err := BuildJob(models.QueueAnalytics, "record-event", nil, &interfaces.EnqueueOptions{DelayMs: 5000})
	require.NoError(t, err)

	assert.Equal(t, models.JobStateDelayed, job.State)
	assert.True(t, job.DelayUntil.After(before.Add(4*time.Second)))
	assert.False(t, job.Eligible(time.Now()))
	assert.True(t, job.Eligible(time.Now().Add(6*time.Second)))
}

func TestDecideRetry_SchedulesBackoffDelay(t *testing.T) {
	job, err := BuildJob(models.QueueGeneration, "generate-workflow", nil, nil)
	require.NoError(t, err)
	job.Attempts = 1

	now := time.Now()
	decision := DecideRetry(job, now)

	assert.True(t, decision.Retry)
	assert.Equal(t, models.JobStateDelayed, decision.NextState)
	assert.Equal(t, now.Add(2*time.Second), decision.DelayUntil)
}

func TestDecideRetry_SecondFailureDoublesDelay(t *testing.T) {
	job, err := BuildJob(models.QueueGeneration, "generate-workflow", nil, nil)
	require.NoError(t, err)
	job.Attempts = 2

	now := time.Now()
	decision := DecideRetry(job, now)

	assert.True(t, decision.Retry)
	assert.Equal(t, now.Add(4*time.Second), decision.DelayUntil)
}

func TestDecideRetry_ExhaustedAttemptsTerminal(t *testing.T) {
	job, err := BuildJob(models.QueueGeneration, "generate-workflow", nil, nil)
	require.NoError(t, err)
	job.Attempts = 3

	decision := DecideRetry(job, time.Now())

	assert.False(t, decision.Retry)
	assert.Equal(t, models.JobStateFailed, decision.NextState)
}
