package queue

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/autoforgehq/autoforge/internal/interfaces"
	"github.com/autoforgehq/autoforge/internal/models"
)

// Monitor watches for stalled jobs: active jobs whose heartbeat lapsed
// beyond the configured window. Stalled detection is observability, not
// recovery: the job stays active and is never requeued automatically.
type Monitor struct {
	storage      interfaces.JobStorage
	events       interfaces.EventService
	logger       arbor.ILogger
	stalledAfter time.Duration
	interval     time.Duration
	ticker       *time.Ticker
	done         chan struct{}
}

// NewMonitor creates a stalled-job monitor.
func NewMonitor(storage interfaces.JobStorage, events interfaces.EventService, logger arbor.ILogger, stalledAfter, interval time.Duration) *Monitor {
	return &Monitor{
		storage:      storage,
		events:       events,
		logger:       logger,
		stalledAfter: stalledAfter,
		interval:     interval,
		done:         make(chan struct{}),
	}
}

// Start launches the periodic detection loop.
func (m *Monitor) Start() {
	m.ticker = time.NewTicker(m.interval)
	go m.loop()
	m.logger.Info().
		Dur("interval", m.interval).
		Dur("stalled_after", m.stalledAfter).
		Msg("Stalled job monitor started")
}

// Stop halts the detection loop.
func (m *Monitor) Stop() {
	if m.ticker != nil {
		m.ticker.Stop()
	}
	close(m.done)
}

func (m *Monitor) loop() {
	for {
		select {
		case <-m.done:
			return
		case <-m.ticker.C:
			if err := m.DetectStalledJobs(context.Background()); err != nil {
				m.logger.Error().Err(err).Msg("Stalled job detection failed")
			}
		}
	}
}

// DetectStalledJobs flags active jobs with lapsed heartbeats and fires a
// stalled event for each newly flagged job.
func (m *Monitor) DetectStalledJobs(ctx context.Context) error {
	threshold := time.Now().Add(-m.stalledAfter)
	stale, err := m.storage.GetStaleActive(ctx, threshold)
	if err != nil {
		return err
	}

	for _, job := range stale {
		if job.Stalled {
			continue
		}
		job.Stalled = true
		if err := m.storage.UpdateJob(ctx, job); err != nil {
			m.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to flag stalled job")
			continue
		}

		m.logger.Warn().
			Str("job_id", job.ID).
			Str("queue", job.QueueName).
			Str("job_type", job.Type).
			Msg("Job stalled (no heartbeat within window)")

		if m.events != nil {
			_ = m.events.Publish(ctx, interfaces.Event{
				Type: interfaces.EventJobStalled,
				Payload: map[string]interface{}{
					"job_id": job.ID,
					"queue":  job.QueueName,
				},
			})
		}
	}

	return nil
}

// CleanupOrphanedJobs marks jobs left active by a previous process as
// terminally failed. Called once at startup before the pools start.
func CleanupOrphanedJobs(ctx context.Context, storage interfaces.JobStorage, logger arbor.ILogger) error {
	cleaned := 0
	for _, queueName := range models.QueueNames {
		active, err := storage.GetJobsByState(ctx, queueName, models.JobStateActive)
		if err != nil {
			return err
		}
		for _, job := range active {
			job.MarkFailed("service restarted while job was running")
			if err := storage.UpdateJob(ctx, job); err != nil {
				logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to clean up orphaned job")
				continue
			}
			cleaned++
		}
	}
	if cleaned > 0 {
		logger.Info().Int("count", cleaned).Msg("Orphaned jobs from previous run marked failed")
	}
	return nil
}
