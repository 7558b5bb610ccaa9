package interfaces

import (
	"context"
	"encoding/json"
)

// External content-generation collaborators. Each is a black-box unit of
// work invoked by a job handler; implementations live at the edge
// (LLM client, video assembler, upload client) and are injected by the
// composition root. Handlers treat returned errors as retryable.

// Generator turns a natural-language automation request into a workflow
// definition document.
type Generator interface {
	GenerateWorkflow(ctx context.Context, request string) (json.RawMessage, error)
}

// WorkflowTester exercises a generated workflow definition and returns a
// test report.
type WorkflowTester interface {
	TestWorkflow(ctx context.Context, workflow json.RawMessage) (json.RawMessage, error)
}

// ContentAssembler produces tutorial video content (script, audio,
// video) from a tested workflow.
type ContentAssembler interface {
	AssembleContent(ctx context.Context, workflow json.RawMessage) (json.RawMessage, error)
}

// Publisher uploads assembled content to the external video platform.
// The platform is quota-limited; the publishing queue runs one worker.
type Publisher interface {
	Publish(ctx context.Context, content json.RawMessage) (json.RawMessage, error)
}

// Notifier delivers a customer-facing notification.
type Notifier interface {
	Notify(ctx context.Context, recipient, subject string, detail json.RawMessage) error
}
