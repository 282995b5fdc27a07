package observability

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	meter metric.Meter

	// Counters
	researchRunsTotal        metric.Int64Counter
	paragraphsCompletedTotal metric.Int64Counter
	paragraphsFailedTotal    metric.Int64Counter
	paragraphsDegradedTotal  metric.Int64Counter
	reflectionsTotal         metric.Int64Counter
	searchRequestsTotal      metric.Int64Counter
	searchRetriesTotal       metric.Int64Counter
	llmRequestsTotal         metric.Int64Counter
	llmTokensUsedTotal       metric.Int64Counter

	// Histograms
	runDuration        metric.Float64Histogram
	paragraphDuration  metric.Float64Histogram
	searchDuration     metric.Float64Histogram
	llmRequestDuration metric.Float64Histogram

	// Gauges (using async instruments)
	activeRuns       metric.Int64ObservableGauge
	activeParagraphs metric.Int64ObservableGauge

	// Gauge values. Paragraphs update concurrently.
	activeRunCount       atomic.Int64
	activeParagraphCount atomic.Int64
}

// NewMetrics creates and initializes all metrics
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{
		meter: meter,
	}

	var err error

	m.researchRunsTotal, err = meter.Int64Counter(
		"research_runs_total",
		metric.WithDescription("Total number of research runs started"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.paragraphsCompletedTotal, err = meter.Int64Counter(
		"paragraphs_completed_total",
		metric.WithDescription("Total number of paragraphs completing research"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.paragraphsFailedTotal, err = meter.Int64Counter(
		"paragraphs_failed_total",
		metric.WithDescription("Total number of paragraphs failing research"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.paragraphsDegradedTotal, err = meter.Int64Counter(
		"paragraphs_degraded_total",
		metric.WithDescription("Total number of paragraphs completing with degraded evidence"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.reflectionsTotal, err = meter.Int64Counter(
		"reflections_total",
		metric.WithDescription("Total number of reflection iterations executed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.searchRequestsTotal, err = meter.Int64Counter(
		"search_requests_total",
		metric.WithDescription("Total number of search requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.searchRetriesTotal, err = meter.Int64Counter(
		"search_retries_total",
		metric.WithDescription("Total number of search retry attempts"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.llmRequestsTotal, err = meter.Int64Counter(
		"llm_requests_total",
		metric.WithDescription("Total number of LLM requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.llmTokensUsedTotal, err = meter.Int64Counter(
		"llm_tokens_used_total",
		metric.WithDescription("Total number of LLM tokens used"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.runDuration, err = meter.Float64Histogram(
		"research_run_duration_seconds",
		metric.WithDescription("Duration of research runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.paragraphDuration, err = meter.Float64Histogram(
		"paragraph_duration_seconds",
		metric.WithDescription("Duration of paragraph research in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.searchDuration, err = meter.Float64Histogram(
		"search_duration_seconds",
		metric.WithDescription("Duration of search requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.llmRequestDuration, err = meter.Float64Histogram(
		"llm_request_duration_seconds",
		metric.WithDescription("Duration of LLM requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.activeRuns, err = meter.Int64ObservableGauge(
		"active_research_runs",
		metric.WithDescription("Number of active research runs"),
		metric.WithUnit("1"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.activeRunCount.Load())
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	m.activeParagraphs, err = meter.Int64ObservableGauge(
		"active_paragraphs",
		metric.WithDescription("Number of paragraphs under active research"),
		metric.WithUnit("1"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.activeParagraphCount.Load())
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordRunStarted records the start of a research run
func (m *Metrics) RecordRunStarted(ctx context.Context, mode string) {
	m.researchRunsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("mode", mode),
		),
	)
	m.activeRunCount.Add(1)
}

// RecordRunComplete records completion of a research run
func (m *Metrics) RecordRunComplete(ctx context.Context, duration time.Duration, status string) {
	m.runDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("status", status),
		),
	)
	m.activeRunCount.Add(-1)
}

// RecordParagraphStarted records start of paragraph research
func (m *Metrics) RecordParagraphStarted(ctx context.Context) {
	m.activeParagraphCount.Add(1)
}

// RecordParagraphComplete records a paragraph reaching a terminal phase
func (m *Metrics) RecordParagraphComplete(ctx context.Context, duration time.Duration, phase string, degraded bool) {
	if phase == "failed" {
		m.paragraphsFailedTotal.Add(ctx, 1)
	} else {
		m.paragraphsCompletedTotal.Add(ctx, 1)
	}
	if degraded {
		m.paragraphsDegradedTotal.Add(ctx, 1)
	}

	m.paragraphDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("phase", phase),
		),
	)

	m.activeParagraphCount.Add(-1)
}

// RecordReflection records one reflection iteration
func (m *Metrics) RecordReflection(ctx context.Context, sufficient bool) {
	m.reflectionsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.Bool("sufficient", sufficient),
		),
	)
}

// RecordSearchRequest records a search request
func (m *Metrics) RecordSearchRequest(ctx context.Context, provider string, duration time.Duration, results int, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}

	m.searchRequestsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
			attribute.Int("results", results),
		),
	)

	m.searchDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordSearchRetry records a search retry attempt
func (m *Metrics) RecordSearchRetry(ctx context.Context, provider string) {
	m.searchRetriesTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
		),
	)
}

// RecordLLMRequest records an LLM request
func (m *Metrics) RecordLLMRequest(ctx context.Context, model string, promptTokens, completionTokens int64, duration time.Duration) {
	m.llmRequestsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("model", model),
		),
	)

	m.llmTokensUsedTotal.Add(ctx, promptTokens+completionTokens,
		metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("type", "total"),
		),
	)

	m.llmRequestDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("model", model),
		),
	)
}
