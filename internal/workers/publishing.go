package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/autoforgehq/autoforge/internal/interfaces"
	"github.com/autoforgehq/autoforge/internal/models"
)

// handlePublish uploads assembled content and chains a customer
// notification. The rate limiter gates each upload so retried and
// freshly enqueued publishes alike respect the platform quota.
func (p *Pipeline) handlePublish(ctx context.Context, job *models.Job, report interfaces.ProgressFunc) (json.RawMessage, error) {
	payload, err := decodePayload(job)
	if err != nil {
		return nil, err
	}
	if len(payload.Content) == 0 {
		return nil, fmt.Errorf("publish payload has no content")
	}

	if err := p.publishLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("publish rate wait aborted: %w", err)
	}

	report(10)
	publication, err := p.publisher.Publish(ctx, payload.Content)
	if err != nil {
		return nil, fmt.Errorf("publish failed: %w", err)
	}
	report(80)

	payload.Publication = publication
	nextID, err := p.chain(ctx, models.QueueNotifications, JobNotifyCustomer, payload, job)
	if err != nil {
		return nil, fmt.Errorf("failed to chain to notifications: %w", err)
	}

	p.recordEvent(ctx, "content_published", payload.RequestID)
	p.logger.Info().
		Str("request_id", payload.RequestID).
		Str("next_job_id", nextID).
		Msg("Content published, customer notification queued")

	return marshalResult(publication, nextID)
}
