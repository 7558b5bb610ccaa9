package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/autoforgehq/autoforge/internal/interfaces"
	"github.com/autoforgehq/autoforge/internal/models"
)

// WorkerPool runs up to N concurrent handler invocations for one queue.
// Each worker loops: claim an eligible job, invoke the registered
// handler with a progress reporter, then route the outcome through
// Complete or Fail. Handler errors and panics never crash the loop.
type WorkerPool struct {
	queueName    string
	concurrency  int
	pollInterval time.Duration
	service      *Service
	registry     *HandlerRegistry
	logger       arbor.ILogger
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewWorkerPool creates a worker pool for one queue.
func NewWorkerPool(queueName string, concurrency int, pollInterval time.Duration, service *Service, registry *HandlerRegistry, logger arbor.ILogger) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	if concurrency < 1 {
		concurrency = 1
	}
	return &WorkerPool{
		queueName:    queueName,
		concurrency:  concurrency,
		pollInterval: pollInterval,
		service:      service,
		registry:     registry,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start launches the worker goroutines. The registry must carry at
// least one handler for this queue; anything else is a configuration
// error reported here, at startup.
func (wp *WorkerPool) Start() error {
	if !models.ValidQueue(wp.queueName) {
		return fmt.Errorf("%w: %q", models.ErrUnknownQueue, wp.queueName)
	}

	wp.logger.Info().
		Str("queue", wp.queueName).
		Int("concurrency", wp.concurrency).
		Msg("Starting worker pool")

	for i := 0; i < wp.concurrency; i++ {
		go wp.worker(i)
	}

	return nil
}

// Stop cancels the worker context. In-flight handlers observe the
// cancellation through their own context.
func (wp *WorkerPool) Stop() error {
	wp.logger.Info().Str("queue", wp.queueName).Msg("Stopping worker pool")
	wp.cancel()
	return nil
}

func (wp *WorkerPool) worker(workerID int) {
	// Stagger worker starts to spread claims across the poll interval.
	stagger := (wp.pollInterval / time.Duration(wp.concurrency)) * time.Duration(workerID)
	if stagger > 0 {
		select {
		case <-wp.ctx.Done():
			return
		case <-time.After(stagger):
		}
	}

	ticker := time.NewTicker(wp.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wp.ctx.Done():
			wp.logger.Debug().
				Str("queue", wp.queueName).
				Int("worker_id", workerID).
				Msg("Worker stopped")
			return

		case <-ticker.C:
			if err := wp.processOne(workerID); err != nil && !errors.Is(err, models.ErrNoJob) {
				wp.logger.Warn().
					Err(err).
					Str("queue", wp.queueName).
					Int("worker_id", workerID).
					Msg("Error processing job")
			}
		}
	}
}

// processOne claims and executes a single job.
func (wp *WorkerPool) processOne(workerID int) error {
	job, err := wp.service.ClaimNext(wp.ctx, wp.queueName)
	if err != nil {
		return err
	}

	handler, ok := wp.registry.Lookup(job.QueueName, job.Type)
	if !ok {
		// Enqueue validates registration, so this only happens when a
		// job outlived a code change that removed its handler.
		failErr := fmt.Errorf("%w: %s/%s", models.ErrNoHandler, job.QueueName, job.Type)
		if err := wp.service.Fail(wp.ctx, job.ID, failErr); err != nil {
			return err
		}
		return failErr
	}

	wp.logger.Debug().
		Str("job_id", job.ID).
		Str("queue", job.QueueName).
		Str("job_type", job.Type).
		Int("worker_id", workerID).
		Msg("Processing job")

	report := func(progress int) {
		if err := wp.service.ReportProgress(wp.ctx, job.ID, progress); err != nil {
			wp.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to report progress")
		}
	}

	started := time.Now()
	result, handlerErr := wp.runHandler(handler, job, report)
	duration := time.Since(started)

	if handlerErr != nil {
		wp.logger.Warn().
			Err(handlerErr).
			Str("job_id", job.ID).
			Str("queue", job.QueueName).
			Str("job_type", job.Type).
			Dur("duration", duration).
			Int("worker_id", workerID).
			Msg("Job handler failed")
		return wp.service.Fail(wp.ctx, job.ID, handlerErr)
	}

	wp.logger.Info().
		Str("job_id", job.ID).
		Str("queue", job.QueueName).
		Str("job_type", job.Type).
		Dur("duration", duration).
		Int("worker_id", workerID).
		Msg("Job handler succeeded")
	return wp.service.Complete(wp.ctx, job.ID, result)
}

// runHandler invokes the handler with panic recovery. A panic is routed
// through the retry policy like any other handler failure.
func (wp *WorkerPool) runHandler(handler interfaces.JobHandler, job *models.Job, report interfaces.ProgressFunc) (result []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error().
				Str("job_id", job.ID).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in job handler")
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return handler(wp.ctx, job, report)
}
