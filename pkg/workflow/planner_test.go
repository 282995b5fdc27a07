package workflow

import (
	"errors"
	"testing"

	"github.com/openresearch/deepsearch/internal/testutil"
	"github.com/openresearch/deepsearch/pkg/domain"
	"github.com/openresearch/deepsearch/pkg/llm"
)

func newTestPlanner(mock *testutil.MockGenerationClient, maxParagraphs int) *Planner {
	gateway := llm.NewGateway(mock, nil, llm.GatewayOptions{})
	return NewPlanner(gateway, nil, maxParagraphs)
}

func TestPlanParsesSections(t *testing.T) {
	mock := testutil.NewMockGenerationClient()
	mock.Enqueue(`[
		{"title": "History", "description": "Where it came from"},
		{"title": "Architecture", "description": "How it works"}
	]`)

	planner := newTestPlanner(mock, 5)

	specs, err := planner.Plan(testutil.NewTestContext(t), "some topic")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("sections = %d, want 2", len(specs))
	}
	if specs[0].Title != "History" || specs[1].Title != "Architecture" {
		t.Errorf("specs = %+v", specs)
	}
}

func TestPlanTruncatesToMaxParagraphs(t *testing.T) {
	mock := testutil.NewMockGenerationClient()
	mock.Enqueue(`[
		{"title": "One", "description": "a"},
		{"title": "Two", "description": "b"},
		{"title": "Three", "description": "c"},
		{"title": "Four", "description": "d"}
	]`)

	planner := newTestPlanner(mock, 2)

	specs, err := planner.Plan(testutil.NewTestContext(t), "topic")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("sections = %d, want 2", len(specs))
	}
	if specs[0].Title != "One" || specs[1].Title != "Two" {
		t.Error("truncation must keep the leading sections in order")
	}
}

func TestPlanReformulatesOnInvalidResponse(t *testing.T) {
	mock := testutil.NewMockGenerationClient()
	mock.Enqueue(
		"Sure! Here is my thinking about the report structure.",
		`[{"title": "One", "description": "a"}]`,
	)

	planner := newTestPlanner(mock, 5)

	specs, err := planner.Plan(testutil.NewTestContext(t), "topic")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(specs) != 1 {
		t.Fatalf("sections = %d", len(specs))
	}
	if mock.GetCallCount() != 2 {
		t.Errorf("calls = %d, want 2", mock.GetCallCount())
	}
}

func TestPlanFailsWithPlanError(t *testing.T) {
	mock := testutil.NewMockGenerationClient()
	mock.Enqueue("not json", "still not json")

	planner := newTestPlanner(mock, 5)

	_, err := planner.Plan(testutil.NewTestContext(t), "topic")
	var planErr *domain.PlanError
	if !errors.As(err, &planErr) {
		t.Fatalf("expected PlanError, got %v", err)
	}
}

func TestPlanRejectsIncompleteSections(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"empty array", `[]`},
		{"missing title", `[{"title": "", "description": "a"}]`},
		{"missing description", `[{"title": "One", "description": ""}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockGenerationClient()
			mock.Enqueue(tt.response, tt.response)

			planner := newTestPlanner(mock, 5)

			_, err := planner.Plan(testutil.NewTestContext(t), "topic")
			var planErr *domain.PlanError
			if !errors.As(err, &planErr) {
				t.Fatalf("expected PlanError, got %v", err)
			}
		})
	}
}
