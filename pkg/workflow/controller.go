package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openresearch/deepsearch/pkg/domain"
	"github.com/openresearch/deepsearch/pkg/llm"
	"github.com/openresearch/deepsearch/pkg/observability"
	"github.com/openresearch/deepsearch/pkg/search"
	"github.com/openresearch/deepsearch/pkg/state"
)

// CheckpointFunc persists the run state. The controller invokes it after
// every completed phase transition so a resumed run replays nothing.
type CheckpointFunc func(ctx context.Context) error

// Controller drives one paragraph through its research state machine:
// initial search, first summary, then up to maxReflections critique and
// revise passes. The controller is resumable: it dispatches on the
// paragraph's current phase, so a run restored from a checkpoint picks
// up exactly where it stopped.
//
// Failure policy: a paragraph that never obtains a usable summary fails;
// a paragraph that already has one finishes degraded instead. Search
// exhaustion never fails a paragraph, it only degrades it.
type Controller struct {
	llm       *llm.Gateway
	search    *search.Gateway
	state     *state.ResearchState
	logger    observability.Logger
	telemetry *observability.Telemetry
	metrics   *observability.Metrics

	maxReflections int
	checkpoint     CheckpointFunc
}

// ControllerOptions configures a paragraph controller.
type ControllerOptions struct {
	MaxReflections int
	Checkpoint     CheckpointFunc
	Telemetry      *observability.Telemetry
	Metrics        *observability.Metrics
	Logger         observability.Logger
}

// NewController creates a paragraph research controller over a run's
// state.
func NewController(llmGateway *llm.Gateway, searchGateway *search.Gateway, st *state.ResearchState, opts ControllerOptions) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NewStructuredLogger("controller")
	}
	checkpoint := opts.Checkpoint
	if checkpoint == nil {
		checkpoint = func(context.Context) error { return nil }
	}
	return &Controller{
		llm:            llmGateway,
		search:         searchGateway,
		state:          st,
		logger:         logger,
		telemetry:      opts.Telemetry,
		metrics:        opts.Metrics,
		maxReflections: opts.MaxReflections,
		checkpoint:     checkpoint,
	}
}

type queryResponse struct {
	SearchQuery string `json:"search_query"`
	Reasoning   string `json:"reasoning"`
}

type summaryResponse struct {
	State string `json:"paragraph_latest_state"`
}

type revisionResponse struct {
	State string `json:"updated_paragraph_latest_state"`
}

// Research drives the paragraph at index to a terminal phase. The only
// error it returns is context cancellation; paragraph-level failures are
// recorded in the paragraph itself and do not abort the run.
func (c *Controller) Research(ctx context.Context, index int) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		para, err := c.state.Paragraph(index)
		if err != nil {
			return err
		}
		if para.Phase.Terminal() {
			return nil
		}

		switch para.Phase {
		case domain.PhasePending:
			err = c.runPhase(ctx, "initial_search", index, func(ctx context.Context) error {
				return c.initialSearch(ctx, index, para)
			})
		case domain.PhaseInitialSearched:
			err = c.runPhase(ctx, "summarize", index, func(ctx context.Context) error {
				return c.summarize(ctx, index, para)
			})
		case domain.PhaseSummarized, domain.PhaseReflecting:
			err = c.runPhase(ctx, "reflect", index, func(ctx context.Context) error {
				return c.reflect(ctx, index, para)
			})
		default:
			return fmt.Errorf("paragraph %d in unexpected phase %q", index, para.Phase)
		}

		if err != nil {
			return err
		}
	}
}

// runPhase wraps a phase in a span when telemetry is configured.
func (c *Controller) runPhase(ctx context.Context, phase string, index int, fn func(context.Context) error) error {
	if c.telemetry != nil {
		return c.telemetry.InstrumentPhase(ctx, phase, index, fn)
	}
	return fn(ctx)
}

// initialSearch formulates the paragraph's opening query and runs it.
func (c *Controller) initialSearch(ctx context.Context, index int, para domain.Paragraph) error {
	prompt := fmt.Sprintf("Section title: %s\nSection intent: %s", para.Title, para.Description)

	var query queryResponse
	err := c.llm.GenerateStructured(ctx, initialQuerySystemPrompt, prompt, []string{"search_query"}, &query)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return c.fail(ctx, index, fmt.Sprintf("initial query generation failed: %v", err))
	}

	record := c.search.Search(ctx, query.SearchQuery)
	if err := ctx.Err(); err != nil {
		return err
	}

	degraded := record.Empty()
	if degraded {
		c.logger.Warn(ctx, "initial search returned no evidence", map[string]interface{}{
			"paragraph": index,
			"query":     query.SearchQuery,
		})
	}

	return c.transition(ctx, index, func(p *domain.Paragraph) {
		rec := record
		p.InitialSearch = &rec
		p.Phase = domain.PhaseInitialSearched
		if degraded {
			p.Degraded = true
		}
	})
}

// summarize writes the paragraph's first summary from the initial
// evidence. Without a summary the paragraph has nothing to show, so a
// generation failure here fails the paragraph.
func (c *Controller) summarize(ctx context.Context, index int, para domain.Paragraph) error {
	evidence := "No search results were available."
	if para.InitialSearch != nil && !para.InitialSearch.Empty() {
		evidence = formatEvidence(*para.InitialSearch)
	}

	prompt := fmt.Sprintf("Section title: %s\nSection intent: %s\n\nSearch results:\n%s",
		para.Title, para.Description, evidence)

	var summary summaryResponse
	err := c.llm.GenerateStructured(ctx, summarySystemPrompt, prompt, []string{"paragraph_latest_state"}, &summary)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return c.fail(ctx, index, fmt.Sprintf("initial summary generation failed: %v", err))
	}

	return c.transition(ctx, index, func(p *domain.Paragraph) {
		p.Summary = summary.State
		p.Phase = domain.PhaseSummarized
	})
}

// reflect runs one critique and revise pass, or finishes the paragraph
// when the budget is spent or the critique reports sufficiency.
func (c *Controller) reflect(ctx context.Context, index int, para domain.Paragraph) error {
	if para.ReflectionCount >= c.maxReflections {
		return c.finish(ctx, index, false)
	}

	prompt := fmt.Sprintf("Section title: %s\nSection intent: %s\n\nCurrent text:\n%s",
		para.Title, para.Description, para.Summary)

	var critique domain.Critique
	// "sufficient" is required so an empty JSON object cannot read as a
	// convergence signal.
	err := c.llm.GenerateStructured(ctx, critiqueSystemPrompt, prompt, []string{"sufficient"}, &critique)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// The summary we already have is usable. Keep it.
		c.logger.Warn(ctx, "critique failed, finishing with current summary", map[string]interface{}{
			"paragraph": index,
			"error":     err.Error(),
		})
		return c.finish(ctx, index, true)
	}

	if c.metrics != nil {
		c.metrics.RecordReflection(ctx, critique.Sufficient)
	}

	if critique.Sufficient || strings.TrimSpace(critique.Query) == "" {
		return c.finish(ctx, index, false)
	}

	record := c.search.Search(ctx, critique.Query)
	if err := ctx.Err(); err != nil {
		return err
	}

	revised := para.Summary
	degraded := false
	if record.Empty() {
		// No new evidence to integrate; the pass still counts against
		// the reflection budget.
		degraded = true
	} else {
		evidence := formatEvidence(record)
		revisePrompt := fmt.Sprintf(
			"Section title: %s\nSection intent: %s\n\nCurrent text:\n%s\n\nKnown gap: %s\n\nNew search results:\n%s",
			para.Title, para.Description, para.Summary, critique.Gap, evidence)

		var revision revisionResponse
		err = c.llm.GenerateStructured(ctx, revisionSystemPrompt, revisePrompt, []string{"updated_paragraph_latest_state"}, &revision)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn(ctx, "revision failed, finishing with current summary", map[string]interface{}{
				"paragraph": index,
				"error":     err.Error(),
			})
			return c.finish(ctx, index, true)
		}
		revised = revision.State
	}

	iteration := para.ReflectionCount + 1
	return c.transition(ctx, index, func(p *domain.Paragraph) {
		p.Reflections = append(p.Reflections, domain.ReflectionRecord{
			Iteration:      iteration,
			Gap:            critique.Gap,
			Query:          critique.Query,
			Search:         record,
			RevisedSummary: revised,
			Timestamp:      time.Now().UTC(),
		})
		p.ReflectionCount = len(p.Reflections)
		p.Summary = revised
		p.Phase = domain.PhaseReflecting
		if degraded {
			p.Degraded = true
		}
	})
}

// finish moves the paragraph to done.
func (c *Controller) finish(ctx context.Context, index int, degraded bool) error {
	return c.transition(ctx, index, func(p *domain.Paragraph) {
		now := time.Now().UTC()
		p.Phase = domain.PhaseDone
		p.CompletedAt = &now
		if degraded {
			p.Degraded = true
		}
	})
}

// fail moves the paragraph to failed with a reason. The returned error
// is nil: a failed paragraph is recorded, not propagated.
func (c *Controller) fail(ctx context.Context, index int, reason string) error {
	c.logger.Error(ctx, "paragraph research failed", nil, map[string]interface{}{
		"paragraph": index,
		"reason":    reason,
	})
	return c.transition(ctx, index, func(p *domain.Paragraph) {
		now := time.Now().UTC()
		p.Phase = domain.PhaseFailed
		p.FailureReason = reason
		p.CompletedAt = &now
	})
}

// transition applies a state mutation and checkpoints the run. A
// checkpoint failure degrades durability, not correctness, so it is
// logged and the run continues.
func (c *Controller) transition(ctx context.Context, index int, fn func(*domain.Paragraph)) error {
	if err := c.state.UpdateParagraph(index, fn); err != nil {
		return err
	}
	if err := c.checkpoint(ctx); err != nil {
		c.logger.Warn(ctx, "checkpoint failed", map[string]interface{}{
			"paragraph": index,
			"error":     err.Error(),
		})
	}
	return nil
}

// formatEvidence renders a search record for inclusion in a prompt.
func formatEvidence(record domain.SearchRecord) string {
	var b strings.Builder
	for i, r := range record.Results {
		fmt.Fprintf(&b, "[%d] %s", i+1, r.SourceID)
		if r.Title != "" {
			fmt.Fprintf(&b, " (%s)", r.Title)
		}
		b.WriteString("\n")
		b.WriteString(r.Content)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}
