package queue

import (
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/autoforgehq/autoforge/internal/interfaces"
	"github.com/autoforgehq/autoforge/internal/models"
)

// HandlerRegistry maps (queue, job type) pairs to handlers. Registration
// happens at startup, before any worker pool runs; enqueue rejects job
// types with no registered handler so misconfiguration surfaces at
// admission time rather than at dispatch.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]map[string]interfaces.JobHandler
	logger   arbor.ILogger
}

// NewHandlerRegistry creates an empty registry.
func NewHandlerRegistry(logger arbor.ILogger) *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[string]map[string]interfaces.JobHandler),
		logger:   logger,
	}
}

// Register binds a handler to a (queue, job type) pair. Duplicate
// registration and unknown queues are configuration errors.
func (r *HandlerRegistry) Register(queueName, jobType string, handler interfaces.JobHandler) error {
	if !models.ValidQueue(queueName) {
		return fmt.Errorf("%w: %q", models.ErrUnknownQueue, queueName)
	}
	if jobType == "" {
		return fmt.Errorf("job type is required")
	}
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byType, ok := r.handlers[queueName]
	if !ok {
		byType = make(map[string]interfaces.JobHandler)
		r.handlers[queueName] = byType
	}
	if _, exists := byType[jobType]; exists {
		return fmt.Errorf("handler already registered for %s/%s", queueName, jobType)
	}
	byType[jobType] = handler

	r.logger.Debug().
		Str("queue", queueName).
		Str("job_type", jobType).
		Msg("Job handler registered")

	return nil
}

// Lookup returns the handler for a (queue, job type) pair.
func (r *HandlerRegistry) Lookup(queueName, jobType string) (interfaces.JobHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[queueName][jobType]
	return handler, ok
}

// Has reports whether any handler is bound to the (queue, type) pair.
func (r *HandlerRegistry) Has(queueName, jobType string) bool {
	_, ok := r.Lookup(queueName, jobType)
	return ok
}

// Validate checks that every queue in the closed set has at least one
// handler. Called once at startup before the worker pools spin up.
func (r *HandlerRegistry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, queueName := range models.QueueNames {
		if len(r.handlers[queueName]) == 0 {
			return fmt.Errorf("queue %q has no registered handlers", queueName)
		}
	}
	return nil
}
