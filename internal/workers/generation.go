package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/autoforgehq/autoforge/internal/interfaces"
	"github.com/autoforgehq/autoforge/internal/models"
)

// handleGenerate turns the customer's automation request into a workflow
// definition and chains it to the testing queue.
func (p *Pipeline) handleGenerate(ctx context.Context, job *models.Job, report interfaces.ProgressFunc) (json.RawMessage, error) {
	payload, err := decodePayload(job)
	if err != nil {
		return nil, err
	}
	if payload.Request == "" {
		return nil, fmt.Errorf("generation payload has no request text")
	}

	report(10)
	workflow, err := p.generator.GenerateWorkflow(ctx, payload.Request)
	if err != nil {
		return nil, fmt.Errorf("workflow generation failed: %w", err)
	}
	report(80)

	payload.Workflow = workflow
	nextID, err := p.chain(ctx, models.QueueTesting, JobTestWorkflow, payload, job)
	if err != nil {
		return nil, fmt.Errorf("failed to chain to testing: %w", err)
	}

	p.recordEvent(ctx, "workflow_generated", payload.RequestID)
	p.logger.Info().
		Str("request_id", payload.RequestID).
		Str("next_job_id", nextID).
		Msg("Workflow generated, queued for testing")

	return marshalResult(workflow, nextID)
}
