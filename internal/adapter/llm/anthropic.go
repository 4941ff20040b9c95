package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/cheerhou/DevoLight/internal/domain"
	"github.com/cheerhou/DevoLight/internal/infra/config"
	"github.com/cheerhou/DevoLight/internal/infra/tracer"
)

const defaultAnthropicVersion = "2023-06-01"

// AnthropicResponder implements domain.Responder over the Anthropic Messages API.
// Each call sends the persona prompt as the system message and the routing
// context, encoded as JSON, as the single user message.
type AnthropicResponder struct {
	name        string
	model       string
	apiKey      string
	baseURL     string
	maxTokens   int
	temperature float64
	version     string
	client      *http.Client
	prompts     *PromptBook
	logger      *slog.Logger
}

var _ domain.Responder = (*AnthropicResponder)(nil)

// NewAnthropicResponder creates a responder for the Anthropic Messages API.
func NewAnthropicResponder(cfg config.ProviderConfig, prompts *PromptBook, logger *slog.Logger) *AnthropicResponder {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	name := cfg.Name
	if name == "" {
		name = "anthropic"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	if prompts == nil {
		prompts = NewPromptBook("")
	}

	return &AnthropicResponder{
		name:        name,
		model:       cfg.Model,
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		version:     defaultAnthropicVersion,
		client:      NewHTTPClient(cfg),
		prompts:     prompts,
		logger:      logger,
	}
}

// Respond implements domain.Responder.
func (p *AnthropicResponder) Respond(ctx context.Context, agent domain.Agent, rc domain.Context) (string, error) {
	const op = "AnthropicResponder.Respond"
	ctx, span := tracer.StartSpan(ctx, "llm.messages",
		trace.WithAttributes(
			tracer.StringAttr("llm.provider", p.name),
			tracer.StringAttr("llm.model", p.model),
			tracer.StringAttr("agent.role", agent.Role),
		),
	)
	defer span.End()

	system, err := p.prompts.For(agent)
	if err != nil {
		tracer.RecordError(span, err)
		return "", err
	}

	payload, err := json.Marshal(rolePayload{Role: agent.Role, Agent: agent.Summary(), Context: rc})
	if err != nil {
		tracer.RecordError(span, err)
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	temp := p.temperature
	body, err := json.Marshal(anthropicRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		Temperature: &temp,
		System:      system,
		Messages: []anthropicMessage{{
			Role:    "user",
			Content: []anthropicContent{{Type: "text", Text: string(payload)}},
		}},
	})
	if err != nil {
		tracer.RecordError(span, err)
		return "", fmt.Errorf("marshal request: %w", err)
	}

	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": p.version,
	}
	respBody, err := doJSONRequest(ctx, p.client, op, p.baseURL+"/v1/messages", body, headers)
	if err != nil {
		tracer.RecordError(span, err)
		return "", err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		err = domain.NewSubSystemError(subsystem, op, domain.ErrProviderError, "response is not valid JSON")
		tracer.RecordError(span, err)
		return "", err
	}

	text := resp.text()
	if text == "" {
		err := domain.NewSubSystemError(subsystem, op, domain.ErrProviderError, "empty response")
		tracer.RecordError(span, err)
		return "", err
	}

	setUsageAttrs(span, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	tracer.SetOK(span)
	p.logger.Debug("responder call completed",
		"provider", p.name,
		"session_id", domain.SessionIDFromContext(ctx),
		"model", resp.Model,
		"role", agent.Role,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return text, nil
}

// Name implements domain.Responder.
func (p *AnthropicResponder) Name() string { return p.name }

// rolePayload is the JSON document a persona receives.
type rolePayload struct {
	Role    string              `json:"role"`
	Agent   domain.AgentSummary `json:"agent"`
	Context domain.Context      `json:"context"`
}

// --- Anthropic API wire types ---

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicResponse struct {
	ID      string             `json:"id"`
	Model   string             `json:"model"`
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
	Usage   anthropicUsage     `json:"usage"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// text concatenates the text blocks, skipping any other block types.
func (r anthropicResponse) text() string {
	var sb strings.Builder
	for _, c := range r.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	return sb.String()
}
