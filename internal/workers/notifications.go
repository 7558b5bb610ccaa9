package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/autoforgehq/autoforge/internal/interfaces"
	"github.com/autoforgehq/autoforge/internal/models"
)

// handleNotify delivers the completion notification. Last stage of the
// chain; nothing is enqueued after it except the analytics event.
func (p *Pipeline) handleNotify(ctx context.Context, job *models.Job, report interfaces.ProgressFunc) (json.RawMessage, error) {
	payload, err := decodePayload(job)
	if err != nil {
		return nil, err
	}

	recipient := payload.Email
	if recipient == "" {
		recipient = payload.Customer
	}
	if recipient == "" {
		return nil, fmt.Errorf("notification payload has no recipient")
	}

	report(20)
	subject := fmt.Sprintf("Your automation %q is ready", payload.RequestID)
	if err := p.notifier.Notify(ctx, recipient, subject, payload.Publication); err != nil {
		return nil, fmt.Errorf("notification delivery failed: %w", err)
	}

	p.recordEvent(ctx, "customer_notified", payload.RequestID)
	p.logger.Info().
		Str("request_id", payload.RequestID).
		Str("recipient", recipient).
		Msg("Customer notified, pipeline complete")

	return json.Marshal(map[string]string{
		"recipient": recipient,
		"subject":   subject,
	})
}
