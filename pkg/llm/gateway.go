package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openresearch/deepsearch/pkg/domain"
	"github.com/openresearch/deepsearch/pkg/observability"
)

// Gateway fronts a generation provider with the policy every caller
// wants: one bounded retry on transport failure, and schema validation
// with a single stricter reformulation attempt for structured output.
type Gateway struct {
	client      domain.GenerationClient
	logger      observability.Logger
	temperature float64
	maxTokens   int
}

// GatewayOptions configures a generation gateway.
type GatewayOptions struct {
	Temperature float64
	MaxTokens   int
}

// NewGateway creates a gateway over a generation client.
func NewGateway(client domain.GenerationClient, logger observability.Logger, opts GatewayOptions) *Gateway {
	if logger == nil {
		logger = observability.NewStructuredLogger("llm-gateway")
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.7
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 4096
	}
	return &Gateway{
		client:      client,
		logger:      logger,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
	}
}

// Provider returns the underlying provider name.
func (g *Gateway) Provider() string {
	return g.client.Name()
}

// Generate performs a free-text completion. A transient provider
// failure is retried once before the call fails with a GenerationError.
func (g *Gateway) Generate(ctx context.Context, system, prompt string) (string, error) {
	resp, err := g.generateWithRetry(ctx, domain.GenerationRequest{
		System:      system,
		Prompt:      prompt,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// GenerateStructured performs a completion that must yield a JSON object
// containing the required fields, unmarshaled into out. If the first
// response fails validation, the prompt is reissued once with a strict
// JSON-only reminder; a second failure is a SchemaError.
func (g *Gateway) GenerateStructured(ctx context.Context, system, prompt string, required []string, out any) error {
	req := domain.GenerationRequest{
		System:      system,
		Prompt:      prompt,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
		JSONMode:    true,
	}

	resp, err := g.generateWithRetry(ctx, req)
	if err != nil {
		return err
	}

	missing, parseErr := validateStructured(resp.Content, required, out)
	if parseErr == nil && len(missing) == 0 {
		return nil
	}

	g.logger.Warn(ctx, "structured output invalid, reformulating", map[string]interface{}{
		"provider":       g.client.Name(),
		"missing_fields": strings.Join(missing, ","),
	})

	strict := req
	strict.Prompt = prompt + "\n\nRespond with ONLY a valid JSON object. " +
		"Do not include any text outside the JSON."
	if len(required) > 0 {
		strict.Prompt += " The object MUST contain the fields: " + strings.Join(required, ", ") + "."
	}

	resp, err = g.generateWithRetry(ctx, strict)
	if err != nil {
		return err
	}

	missing, parseErr = validateStructured(resp.Content, required, out)
	if parseErr != nil {
		return &domain.SchemaError{Err: parseErr}
	}
	if len(missing) > 0 {
		return &domain.SchemaError{Missing: missing}
	}
	return nil
}

func (g *Gateway) generateWithRetry(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResponse, error) {
	resp, err := g.client.Generate(ctx, req)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, &domain.GenerationError{Provider: g.client.Name(), Err: err}
	}

	g.logger.Warn(ctx, "generation failed, retrying once", map[string]interface{}{
		"provider": g.client.Name(),
		"error":    err.Error(),
	})

	select {
	case <-ctx.Done():
		return nil, &domain.GenerationError{Provider: g.client.Name(), Err: ctx.Err()}
	case <-time.After(time.Second):
	}

	resp, err = g.client.Generate(ctx, req)
	if err != nil {
		return nil, &domain.GenerationError{Provider: g.client.Name(), Err: err}
	}
	return resp, nil
}

// validateStructured parses a response as JSON and checks that every
// required field is present and non-empty. It returns the missing field
// names, or a parse error when no JSON object could be extracted.
func validateStructured(content string, required []string, out any) ([]string, error) {
	var raw map[string]json.RawMessage
	if err := ExtractJSONObject(content, &raw); err != nil {
		return nil, err
	}

	var missing []string
	for _, field := range required {
		val, ok := raw[field]
		if !ok || isEmptyJSON(val) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return missing, nil
	}

	if err := ExtractJSONObject(content, out); err != nil {
		return nil, fmt.Errorf("failed to decode structured output: %w", err)
	}
	return nil, nil
}

func isEmptyJSON(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null" || s == `""`
}
