package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/autoforgehq/autoforge/internal/common"
)

// Local collaborator implementations. These run the pipeline end to end
// without external credentials: the generator builds a template
// workflow, the tester runs structural checks, the assembler produces
// content metadata, and the publisher and notifier record their side
// effects in the log. Real integrations replace them at the composition
// root; the handlers never know the difference.

// TemplateGenerator derives a workflow definition from the request text
// without calling an LLM.
type TemplateGenerator struct{}

func (TemplateGenerator) GenerateWorkflow(_ context.Context, request string) (json.RawMessage, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return nil, fmt.Errorf("empty automation request")
	}

	steps := []map[string]string{
		{"id": "trigger", "action": "webhook", "description": "Receive incoming data"},
	}
	for i, clause := range splitClauses(request) {
		steps = append(steps, map[string]string{
			"id":          fmt.Sprintf("step-%d", i+1),
			"action":      "transform",
			"description": clause,
		})
	}
	steps = append(steps, map[string]string{
		"id": "deliver", "action": "http-request", "description": "Deliver the result",
	})

	return json.Marshal(map[string]interface{}{
		"name":        workflowName(request),
		"description": request,
		"steps":       steps,
	})
}

// splitClauses breaks the request into step-sized clauses.
func splitClauses(request string) []string {
	parts := strings.FieldsFunc(request, func(r rune) bool {
		return r == ',' || r == ';' || r == '.'
	})
	clauses := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			clauses = append(clauses, p)
		}
	}
	if len(clauses) == 0 {
		clauses = []string{request}
	}
	return clauses
}

func workflowName(request string) string {
	words := strings.Fields(request)
	if len(words) > 6 {
		words = words[:6]
	}
	return strings.Join(words, " ")
}

// StructuralTester checks that a workflow definition is well-formed:
// valid JSON, a non-empty name, and at least one step.
type StructuralTester struct{}

func (StructuralTester) TestWorkflow(_ context.Context, workflow json.RawMessage) (json.RawMessage, error) {
	var doc struct {
		Name  string            `json:"name"`
		Steps []json.RawMessage `json:"steps"`
	}
	if err := json.Unmarshal(workflow, &doc); err != nil {
		return nil, fmt.Errorf("workflow is not valid JSON: %w", err)
	}

	checks := []map[string]interface{}{
		{"check": "has_name", "passed": doc.Name != ""},
		{"check": "has_steps", "passed": len(doc.Steps) > 0},
	}
	for _, c := range checks {
		if passed, _ := c["passed"].(bool); !passed {
			return nil, fmt.Errorf("workflow failed check %v", c["check"])
		}
	}

	return json.Marshal(map[string]interface{}{
		"passed":    true,
		"checks":    checks,
		"tested_at": time.Now(),
	})
}

// MetadataAssembler produces tutorial content metadata from a tested
// workflow: a narration script plus placeholder media references.
type MetadataAssembler struct{}

func (MetadataAssembler) AssembleContent(_ context.Context, workflow json.RawMessage) (json.RawMessage, error) {
	var doc struct {
		Name  string `json:"name"`
		Steps []struct {
			Description string `json:"description"`
		} `json:"steps"`
	}
	if err := json.Unmarshal(workflow, &doc); err != nil {
		return nil, fmt.Errorf("cannot assemble content from workflow: %w", err)
	}

	var script strings.Builder
	fmt.Fprintf(&script, "In this tutorial we set up %s.\n", doc.Name)
	for i, step := range doc.Steps {
		fmt.Fprintf(&script, "Step %d: %s.\n", i+1, step.Description)
	}

	return json.Marshal(map[string]interface{}{
		"title":        doc.Name,
		"script":       script.String(),
		"duration_s":   30 * len(doc.Steps),
		"assembled_at": time.Now(),
	})
}

// LogPublisher stands in for the video-platform upload client. It
// assigns a local content ID and logs the would-be upload.
type LogPublisher struct {
	Logger arbor.ILogger
}

func (p LogPublisher) Publish(_ context.Context, content json.RawMessage) (json.RawMessage, error) {
	id := common.NewID()
	if p.Logger != nil {
		p.Logger.Info().
			Str("content_id", common.ShortID(id)).
			Int("content_bytes", len(content)).
			Msg("Publish recorded (no upstream platform configured)")
	}
	return json.Marshal(map[string]interface{}{
		"content_id":   id,
		"url":          fmt.Sprintf("local://published/%s", id),
		"published_at": time.Now(),
	})
}

// LogNotifier stands in for the customer notification channel.
type LogNotifier struct {
	Logger arbor.ILogger
}

func (n LogNotifier) Notify(_ context.Context, recipient, subject string, detail json.RawMessage) error {
	if recipient == "" {
		return fmt.Errorf("notification recipient is required")
	}
	if n.Logger != nil {
		n.Logger.Info().
			Str("recipient", recipient).
			Str("subject", subject).
			Int("detail_bytes", len(detail)).
			Msg("Notification delivered (log channel)")
	}
	return nil
}
