package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/openresearch/deepsearch/pkg/domain"
	"github.com/openresearch/deepsearch/pkg/llm"
	"github.com/openresearch/deepsearch/pkg/observability"
)

// Planner turns a research query into the ordered section plan for the
// report. Planning happens exactly once per run; there is no partial
// plan, so any failure aborts the run with a PlanError.
type Planner struct {
	gateway *llm.Gateway
	logger  observability.Logger

	maxParagraphs int
}

// NewPlanner creates a report structure planner.
func NewPlanner(gateway *llm.Gateway, logger observability.Logger, maxParagraphs int) *Planner {
	if logger == nil {
		logger = observability.NewStructuredLogger("planner")
	}
	return &Planner{
		gateway:       gateway,
		logger:        logger,
		maxParagraphs: maxParagraphs,
	}
}

// Plan produces the section specs for a query. The model decides how
// many sections the topic needs; the planner only enforces the upper
// bound and drops the overflow in order.
func (p *Planner) Plan(ctx context.Context, query string) ([]domain.SectionSpec, error) {
	prompt := fmt.Sprintf("Research query:\n%s\n\nPlan at most %d sections.", query, p.maxParagraphs)

	content, err := p.gateway.Generate(ctx, plannerSystemPrompt, prompt)
	if err != nil {
		return nil, &domain.PlanError{Err: err}
	}

	specs, err := parsePlan(content)
	if err != nil {
		p.logger.Warn(ctx, "plan response invalid, reformulating", map[string]interface{}{
			"error": err.Error(),
		})

		strict := prompt + "\n\nRespond with ONLY a valid JSON array of {\"title\", \"description\"} objects. Do not include any text outside the JSON."
		content, err = p.gateway.Generate(ctx, plannerSystemPrompt, strict)
		if err != nil {
			return nil, &domain.PlanError{Err: err}
		}
		specs, err = parsePlan(content)
		if err != nil {
			return nil, &domain.PlanError{Err: err}
		}
	}

	if len(specs) > p.maxParagraphs {
		specs = specs[:p.maxParagraphs]
	}

	p.logger.Info(ctx, "report structure planned", map[string]interface{}{
		"sections": len(specs),
	})
	return specs, nil
}

// parsePlan extracts and validates the section list from a model
// response.
func parsePlan(content string) ([]domain.SectionSpec, error) {
	var specs []domain.SectionSpec
	if err := llm.ExtractJSONArray(content, &specs); err != nil {
		return nil, err
	}

	if len(specs) == 0 {
		return nil, fmt.Errorf("plan contains no sections")
	}
	for i, spec := range specs {
		if strings.TrimSpace(spec.Title) == "" {
			return nil, fmt.Errorf("section %d has no title", i)
		}
		if strings.TrimSpace(spec.Description) == "" {
			return nil, fmt.Errorf("section %d has no description", i)
		}
	}
	return specs, nil
}
