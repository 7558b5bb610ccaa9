package interfaces

import "context"

// EventType identifies a lifecycle or monitoring event.
type EventType string

const (
	// Queue lifecycle events, fired by the queue service.
	EventJobReady     EventType = "job.ready"
	EventJobActive    EventType = "job.active"
	EventJobCompleted EventType = "job.completed"
	EventJobFailed    EventType = "job.failed"
	EventJobRetrying  EventType = "job.retrying"
	EventJobStalled   EventType = "job.stalled"

	// Prober events.
	EventProbeCompleted EventType = "probe.completed"
	EventAlertRaised    EventType = "alert.raised"
)

// Event is a typed notification with an arbitrary payload.
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload"`
}

// EventHandler processes a published event.
type EventHandler func(ctx context.Context, event Event) error

// EventService is the pub/sub bus decoupling producers (queue service,
// prober) from consumers (logging, websocket broadcast, dashboards).
type EventService interface {
	Subscribe(eventType EventType, handler EventHandler) error
	Publish(ctx context.Context, event Event) error
	PublishSync(ctx context.Context, event Event) error
	Close() error
}
