package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/autoforgehq/autoforge/internal/common"
)

const workflowSystemPrompt = `You are a workflow automation engineer. ` +
	`Given a customer's plain-language automation request, respond with a single JSON ` +
	`object describing the workflow: {"name": string, "description": string, ` +
	`"steps": [{"id": string, "action": string, "description": string}]}. ` +
	`Respond with JSON only, no surrounding prose.`

// ClaudeGenerator implements workflow generation against the Anthropic
// API. It is wired in only when an API key is configured; otherwise the
// pipeline runs on the template generator.
type ClaudeGenerator struct {
	client    *anthropic.Client
	logger    arbor.ILogger
	model     string
	maxTokens int
}

// NewClaudeGenerator creates the generator from LLM config.
func NewClaudeGenerator(cfg common.LLMConfig, logger arbor.ILogger) (*ClaudeGenerator, error) {
	if cfg.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required (set ANTHROPIC_API_KEY or llm.anthropic_api_key)")
	}

	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	client := anthropic.NewClient(
		option.WithAPIKey(cfg.AnthropicAPIKey),
	)

	logger.Debug().
		Str("model", model).
		Int("max_tokens", maxTokens).
		Msg("Claude workflow generator initialized")

	return &ClaudeGenerator{
		client:    &client,
		logger:    logger,
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

// GenerateWorkflow asks the model for a workflow definition and returns
// the validated JSON document.
func (g *ClaudeGenerator) GenerateWorkflow(ctx context.Context, request string) (json.RawMessage, error) {
	if strings.TrimSpace(request) == "" {
		return nil, fmt.Errorf("empty automation request")
	}

	started := time.Now()
	resp, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: int64(g.maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: workflowSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(request)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("Claude API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("no response generated from Claude API")
	}

	doc := extractJSON(text.String())
	if !json.Valid([]byte(doc)) {
		return nil, fmt.Errorf("Claude response is not valid workflow JSON")
	}

	g.logger.Debug().
		Int("response_length", text.Len()).
		Dur("duration", time.Since(started)).
		Msg("Workflow generated via Claude")

	return json.RawMessage(doc), nil
}

// extractJSON strips markdown fencing the model sometimes wraps around
// JSON output.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}
