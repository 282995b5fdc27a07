package workflow

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openresearch/deepsearch/pkg/llm"
	"github.com/openresearch/deepsearch/pkg/observability"
	"github.com/openresearch/deepsearch/pkg/search"
	"github.com/openresearch/deepsearch/pkg/state"
)

// Engine orchestrates a complete research run: plan the report
// structure, research every paragraph, then assemble the report.
// Paragraphs are independent once planned, so they research
// concurrently under a bounded limit.
type Engine struct {
	llm       *llm.Gateway
	search    *search.Gateway
	store     state.Store
	planner   *Planner
	formatter *Formatter
	logger    observability.Logger
	telemetry *observability.Telemetry
	metrics   *observability.Metrics

	maxReflections  int
	maxConcurrency  int
	saveCheckpoints bool
}

// EngineOptions configures a research engine.
type EngineOptions struct {
	MaxParagraphs   int
	MaxReflections  int
	MaxConcurrency  int
	SaveCheckpoints bool
	Telemetry       *observability.Telemetry
	Logger          observability.Logger
}

// Result is the outcome of a research run.
type Result struct {
	RunID    string
	Report   string
	Snapshot state.Snapshot
}

// NewEngine creates a research engine.
func NewEngine(llmGateway *llm.Gateway, searchGateway *search.Gateway, store state.Store, opts EngineOptions) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NewStructuredLogger("engine")
	}
	if opts.MaxParagraphs == 0 {
		opts.MaxParagraphs = 5
	}
	if opts.MaxConcurrency == 0 {
		opts.MaxConcurrency = 1
	}

	var metrics *observability.Metrics
	if opts.Telemetry != nil && opts.Telemetry.Meter() != nil {
		m, err := observability.NewMetrics(opts.Telemetry.Meter())
		if err != nil {
			return nil, err
		}
		metrics = m
	}

	return &Engine{
		llm:             llmGateway,
		search:          searchGateway,
		store:           store,
		planner:         NewPlanner(llmGateway, logger, opts.MaxParagraphs),
		formatter:       NewFormatter(),
		logger:          logger,
		telemetry:       opts.Telemetry,
		metrics:         metrics,
		maxReflections:  opts.MaxReflections,
		maxConcurrency:  opts.MaxConcurrency,
		saveCheckpoints: opts.SaveCheckpoints,
	}, nil
}

// Run executes a fresh research run for a query.
func (e *Engine) Run(ctx context.Context, query string) (*Result, error) {
	st := state.New("", query)
	return e.execute(ctx, st, "run")
}

// Resume restores a run from its last checkpoint and drives it to
// completion. Work already checkpointed is not repeated.
func (e *Engine) Resume(ctx context.Context, runID string) (*Result, error) {
	st, err := e.store.Load(ctx, runID)
	if err != nil {
		return nil, err
	}
	return e.execute(ctx, st, "resume")
}

func (e *Engine) execute(ctx context.Context, st *state.ResearchState, mode string) (*Result, error) {
	startTime := time.Now()

	if e.telemetry != nil {
		runCtx, rootSpan := e.telemetry.StartResearchRun(ctx, st.ID(), st.Query())
		defer rootSpan.End()
		ctx = runCtx
	}

	if e.metrics != nil {
		e.metrics.RecordRunStarted(ctx, mode)
	}

	e.logger.Info(ctx, "research run starting", map[string]interface{}{
		"run_id": st.ID(),
		"mode":   mode,
	})

	checkpoint := func(ctx context.Context) error {
		if !e.saveCheckpoints {
			return nil
		}
		return e.store.Save(ctx, st)
	}

	// Plan once. A resumed run that already has its plan skips this.
	if st.ParagraphCount() == 0 {
		specs, err := e.planner.Plan(ctx, st.Query())
		if err != nil {
			e.recordRunComplete(ctx, startTime, "plan_failed")
			return nil, err
		}
		if err := st.SeedPlan(specs); err != nil {
			e.recordRunComplete(ctx, startTime, "plan_failed")
			return nil, err
		}
		if err := checkpoint(ctx); err != nil {
			e.logger.Warn(ctx, "checkpoint failed after planning", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	controller := NewController(e.llm, e.search, st, ControllerOptions{
		MaxReflections: e.maxReflections,
		Checkpoint:     checkpoint,
		Telemetry:      e.telemetry,
		Metrics:        e.metrics,
		Logger:         e.logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrency)

	for i := 0; i < st.ParagraphCount(); i++ {
		index := i
		para, err := st.Paragraph(index)
		if err != nil {
			return nil, err
		}
		if para.Phase.Terminal() {
			continue
		}

		g.Go(func() error {
			paraStart := time.Now()
			if e.metrics != nil {
				e.metrics.RecordParagraphStarted(gctx)
			}
			err := controller.Research(gctx, index)
			if e.metrics != nil {
				done, perr := st.Paragraph(index)
				if perr == nil {
					e.metrics.RecordParagraphComplete(gctx, time.Since(paraStart), string(done.Phase), done.Degraded)
				}
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		e.recordRunComplete(ctx, startTime, "interrupted")
		return nil, err
	}

	st.MarkCompleted()
	if err := checkpoint(ctx); err != nil {
		e.logger.Warn(ctx, "final checkpoint failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	snap := st.Snapshot()
	report := e.formatter.Format(snap)

	progress := st.Progress()
	e.logger.Info(ctx, "research run complete", map[string]interface{}{
		"run_id":    st.ID(),
		"completed": progress.CompletedParagraphs,
		"failed":    progress.FailedParagraphs,
		"degraded":  progress.DegradedParagraphs,
	})
	e.recordRunComplete(ctx, startTime, "completed")

	return &Result{
		RunID:    st.ID(),
		Report:   report,
		Snapshot: snap,
	}, nil
}

func (e *Engine) recordRunComplete(ctx context.Context, start time.Time, status string) {
	if e.metrics != nil {
		e.metrics.RecordRunComplete(ctx, time.Since(start), status)
	}
}
