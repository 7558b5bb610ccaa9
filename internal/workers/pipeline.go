package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/autoforgehq/autoforge/internal/interfaces"
	"github.com/autoforgehq/autoforge/internal/models"
	"github.com/autoforgehq/autoforge/internal/queue"
)

// Job types handled by the pipeline, one primary type per queue.
const (
	JobGenerateWorkflow = "generate-workflow"
	JobTestWorkflow     = "test-workflow"
	JobAssembleContent  = "assemble-content"
	JobPublishContent   = "publish-content"
	JobNotifyCustomer   = "notify-customer"
	JobRecordEvent      = "record-event"
)

// WorkflowRequest is the customer-facing order that enters the pipeline.
type WorkflowRequest struct {
	RequestID string `json:"request_id"`
	Customer  string `json:"customer"`
	Email     string `json:"email"`
	Request   string `json:"request"`
	Paid      bool   `json:"paid"`
}

// StagePayload is the envelope passed between pipeline stages. Each
// stage fills in its own artifact and enqueues the next stage with the
// accumulated envelope.
type StagePayload struct {
	WorkflowRequest
	Workflow    json.RawMessage `json:"workflow,omitempty"`
	TestReport  json.RawMessage `json:"test_report,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`
	Publication json.RawMessage `json:"publication,omitempty"`
}

// stageResult is the per-job result stored on completion: the artifact
// the stage produced plus the ID of the chained follow-up job.
type stageResult struct {
	Artifact  json.RawMessage `json:"artifact,omitempty"`
	NextJobID string          `json:"next_job_id,omitempty"`
}

// Pipeline wires the content-generation stages together. Each handler
// does one unit of work through its collaborator, then chains the
// enriched envelope to the next queue. The chain is:
// generation -> testing -> content-creation -> publishing -> notifications,
// with fire-and-forget analytics events along the way.
type Pipeline struct {
	generator interfaces.Generator
	tester    interfaces.WorkflowTester
	assembler interfaces.ContentAssembler
	publisher interfaces.Publisher
	notifier  interfaces.Notifier
	enqueuer  interfaces.Enqueuer

	// publishLimiter paces uploads to the quota-limited platform. The
	// publishing queue already runs one worker; the limiter bounds the
	// request rate within that worker.
	publishLimiter *rate.Limiter
	logger         arbor.ILogger
}

// NewPipeline creates the pipeline. publishRate is uploads per second;
// zero or negative falls back to one upload every two seconds.
func NewPipeline(
	generator interfaces.Generator,
	tester interfaces.WorkflowTester,
	assembler interfaces.ContentAssembler,
	publisher interfaces.Publisher,
	notifier interfaces.Notifier,
	enqueuer interfaces.Enqueuer,
	publishRate float64,
	logger arbor.ILogger,
) *Pipeline {
	if publishRate <= 0 {
		publishRate = 0.5
	}
	return &Pipeline{
		generator:      generator,
		tester:         tester,
		assembler:      assembler,
		publisher:      publisher,
		notifier:       notifier,
		enqueuer:       enqueuer,
		publishLimiter: rate.NewLimiter(rate.Limit(publishRate), 1),
		logger:         logger,
	}
}

// Register binds every pipeline handler to its queue. Called once at
// startup before the worker pools start.
func (p *Pipeline) Register(registry *queue.HandlerRegistry) error {
	bindings := []struct {
		queueName string
		jobType   string
		handler   interfaces.JobHandler
	}{
		{models.QueueGeneration, JobGenerateWorkflow, p.handleGenerate},
		{models.QueueTesting, JobTestWorkflow, p.handleTest},
		{models.QueueContentCreation, JobAssembleContent, p.handleAssemble},
		{models.QueuePublishing, JobPublishContent, p.handlePublish},
		{models.QueueNotifications, JobNotifyCustomer, p.handleNotify},
		{models.QueueAnalytics, JobRecordEvent, p.handleRecordEvent},
	}
	for _, b := range bindings {
		if err := registry.Register(b.queueName, b.jobType, b.handler); err != nil {
			return err
		}
	}
	return nil
}

// chain enqueues the next pipeline stage, inheriting the parent job's
// priority so paid requests stay ahead through the whole pipeline.
func (p *Pipeline) chain(ctx context.Context, queueName, jobType string, payload StagePayload, parent *models.Job) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal stage payload: %w", err)
	}
	return p.enqueuer.Enqueue(ctx, queueName, jobType, data, &interfaces.EnqueueOptions{
		Priority: parent.Priority,
	})
}

// recordEvent fires an analytics job. Fire-and-forget: a failure here
// never fails the stage that emitted it.
func (p *Pipeline) recordEvent(ctx context.Context, event, requestID string) {
	data, err := json.Marshal(AnalyticsEvent{
		Event:     event,
		RequestID: requestID,
		At:        time.Now(),
	})
	if err != nil {
		return
	}
	if _, err := p.enqueuer.Enqueue(ctx, models.QueueAnalytics, JobRecordEvent, data, nil); err != nil {
		p.logger.Warn().
			Err(err).
			Str("event", event).
			Str("request_id", requestID).
			Msg("Failed to enqueue analytics event")
	}
}

func decodePayload(job *models.Job) (StagePayload, error) {
	var payload StagePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return payload, fmt.Errorf("invalid stage payload: %w", err)
	}
	return payload, nil
}

func marshalResult(artifact json.RawMessage, nextJobID string) (json.RawMessage, error) {
	return json.Marshal(stageResult{Artifact: artifact, NextJobID: nextJobID})
}
