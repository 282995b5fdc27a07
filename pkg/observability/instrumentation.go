package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentPhase wraps one paragraph state-machine phase with a span
func (t *Telemetry) InstrumentPhase(ctx context.Context, phase string, paragraphIndex int, fn func(context.Context) error) error {
	ctx, span := t.StartSpan(ctx, fmt.Sprintf("research.phase.%s", phase),
		trace.WithAttributes(
			attribute.String("phase", phase),
			attribute.Int("paragraph.index", paragraphIndex),
		),
	)
	defer span.End()

	startTime := time.Now()

	err := fn(ctx)

	duration := time.Since(startTime)
	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.SetAttributes(
		attribute.String("status", status),
		attribute.Float64("duration.seconds", duration.Seconds()),
	)

	return err
}

// InstrumentSearch wraps a search request with a span
func (t *Telemetry) InstrumentSearch(ctx context.Context, provider, query string, fn func(context.Context) (results int, err error)) error {
	ctx, span := t.StartSpan(ctx, "search.request",
		trace.WithAttributes(
			attribute.String("search.provider", provider),
			attribute.Int("search.query_length", len(query)),
		),
	)
	defer span.End()

	startTime := time.Now()

	results, err := fn(ctx)

	duration := time.Since(startTime)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(
			attribute.Int("search.results", results),
		)
	}

	span.SetAttributes(
		attribute.Float64("duration.seconds", duration.Seconds()),
	)

	return err
}

// StartResearchRun starts a root span for a research run
func (t *Telemetry) StartResearchRun(ctx context.Context, runID, query string) (context.Context, trace.Span) {
	ctx, span := t.StartSpan(ctx, "research.run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int("query.length", len(query)),
		),
	)
	return ctx, span
}
