package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/autoforgehq/autoforge/internal/interfaces"
	"github.com/autoforgehq/autoforge/internal/models"
)

// handleTest exercises the generated workflow and chains the envelope to
// content creation. A failing check surfaces as a handler error and goes
// through the normal retry policy.
func (p *Pipeline) handleTest(ctx context.Context, job *models.Job, report interfaces.ProgressFunc) (json.RawMessage, error) {
	payload, err := decodePayload(job)
	if err != nil {
		return nil, err
	}
	if len(payload.Workflow) == 0 {
		return nil, fmt.Errorf("testing payload has no workflow")
	}

	report(10)
	testReport, err := p.tester.TestWorkflow(ctx, payload.Workflow)
	if err != nil {
		return nil, fmt.Errorf("workflow test failed: %w", err)
	}
	report(80)

	payload.TestReport = testReport
	nextID, err := p.chain(ctx, models.QueueContentCreation, JobAssembleContent, payload, job)
	if err != nil {
		return nil, fmt.Errorf("failed to chain to content creation: %w", err)
	}

	p.recordEvent(ctx, "workflow_tested", payload.RequestID)
	p.logger.Info().
		Str("request_id", payload.RequestID).
		Str("next_job_id", nextID).
		Msg("Workflow tested, queued for content creation")

	return marshalResult(testReport, nextID)
}
