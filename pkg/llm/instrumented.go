package llm

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/openresearch/deepsearch/pkg/domain"
	"github.com/openresearch/deepsearch/pkg/observability"
)

// InstrumentedClient wraps a generation client with observability
type InstrumentedClient struct {
	client    domain.GenerationClient
	telemetry *observability.Telemetry
	metrics   *observability.Metrics
	model     string
}

// NewInstrumentedClient creates a new instrumented generation client.
// Spans are always emitted (a noop tracer when tracing is disabled);
// metrics are recorded only when the telemetry carries a meter.
func NewInstrumentedClient(client domain.GenerationClient, telemetry *observability.Telemetry, model string) (*InstrumentedClient, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if telemetry == nil {
		return nil, fmt.Errorf("telemetry is required")
	}

	var metrics *observability.Metrics
	if telemetry.Meter() != nil {
		m, err := observability.NewMetrics(telemetry.Meter())
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics: %w", err)
		}
		metrics = m
	}

	return &InstrumentedClient{
		client:    client,
		telemetry: telemetry,
		metrics:   metrics,
		model:     model,
	}, nil
}

// Name returns the underlying provider name.
func (c *InstrumentedClient) Name() string {
	return c.client.Name()
}

// Generate performs an instrumented completion
func (c *InstrumentedClient) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResponse, error) {
	ctx, span := c.telemetry.StartSpan(ctx, "llm.generate",
		trace.WithAttributes(
			attribute.String("llm.model", c.model),
			attribute.String("llm.provider", c.client.Name()),
			attribute.Float64("llm.temperature", req.Temperature),
			attribute.Int("llm.max_tokens", req.MaxTokens),
			attribute.Bool("llm.json_mode", req.JSONMode),
		),
	)
	defer span.End()

	startTime := time.Now()

	response, err := c.client.Generate(ctx, req)

	duration := time.Since(startTime)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	span.SetAttributes(
		attribute.Int("llm.prompt_tokens", response.Usage.PromptTokens),
		attribute.Int("llm.completion_tokens", response.Usage.CompletionTokens),
		attribute.Int("llm.total_tokens", response.Usage.TotalTokens),
	)

	if c.metrics != nil {
		c.metrics.RecordLLMRequest(ctx, c.model,
			int64(response.Usage.PromptTokens),
			int64(response.Usage.CompletionTokens),
			duration)
	}

	return response, nil
}
