package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/autoforgehq/autoforge/internal/interfaces"
	"github.com/autoforgehq/autoforge/internal/models"
)

// handleAssemble produces the tutorial content for a tested workflow and
// chains the envelope to publishing.
func (p *Pipeline) handleAssemble(ctx context.Context, job *models.Job, report interfaces.ProgressFunc) (json.RawMessage, error) {
	payload, err := decodePayload(job)
	if err != nil {
		return nil, err
	}
	if len(payload.Workflow) == 0 {
		return nil, fmt.Errorf("content payload has no workflow")
	}

	report(10)
	content, err := p.assembler.AssembleContent(ctx, payload.Workflow)
	if err != nil {
		return nil, fmt.Errorf("content assembly failed: %w", err)
	}
	report(80)

	payload.Content = content
	nextID, err := p.chain(ctx, models.QueuePublishing, JobPublishContent, payload, job)
	if err != nil {
		return nil, fmt.Errorf("failed to chain to publishing: %w", err)
	}

	p.recordEvent(ctx, "content_assembled", payload.RequestID)
	p.logger.Info().
		Str("request_id", payload.RequestID).
		Str("next_job_id", nextID).
		Msg("Content assembled, queued for publishing")

	return marshalResult(content, nextID)
}
