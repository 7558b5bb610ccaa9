package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/autoforgehq/autoforge/internal/interfaces"
	"github.com/autoforgehq/autoforge/internal/models"
)

// AnalyticsEvent is the fire-and-forget telemetry record emitted by the
// pipeline stages.
type AnalyticsEvent struct {
	Event     string    `json:"event"`
	RequestID string    `json:"request_id"`
	At        time.Time `json:"at"`
}

// handleRecordEvent records one analytics event. The analytics queue is
// high-volume and low-value; the handler just validates and logs, and
// the completed job itself is the durable record until it is pruned.
func (p *Pipeline) handleRecordEvent(ctx context.Context, job *models.Job, report interfaces.ProgressFunc) (json.RawMessage, error) {
	var event AnalyticsEvent
	if err := json.Unmarshal(job.Payload, &event); err != nil {
		return nil, fmt.Errorf("invalid analytics payload: %w", err)
	}
	if event.Event == "" {
		return nil, fmt.Errorf("analytics payload has no event name")
	}

	p.logger.Info().
		Str("event", event.Event).
		Str("request_id", event.RequestID).
		Str("at", event.At.Format(time.RFC3339)).
		Msg("Analytics event recorded")

	return job.Payload, nil
}
