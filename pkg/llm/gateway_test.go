package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/openresearch/deepsearch/internal/testutil"
	"github.com/openresearch/deepsearch/pkg/domain"
)

func TestGenerateReturnsContent(t *testing.T) {
	mock := testutil.NewMockGenerationClient()
	mock.Enqueue("the answer")

	gw := NewGateway(mock, nil, GatewayOptions{})

	content, err := gw.Generate(context.Background(), "system", "prompt")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if content != "the answer" {
		t.Errorf("content = %q", content)
	}
	if mock.GetCallCount() != 1 {
		t.Errorf("calls = %d, want 1", mock.GetCallCount())
	}
	if mock.LastRequest.System != "system" || mock.LastRequest.Prompt != "prompt" {
		t.Errorf("request = %+v", mock.LastRequest)
	}
}

func TestGenerateRetriesOnceThenSucceeds(t *testing.T) {
	mock := testutil.NewMockGenerationClient()
	calls := 0
	mock.GenerateFunc = func(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResponse, error) {
		calls++
		if calls == 1 {
			return nil, fmt.Errorf("transient failure")
		}
		return &domain.GenerationResponse{Content: "recovered"}, nil
	}

	gw := NewGateway(mock, nil, GatewayOptions{})

	content, err := gw.Generate(context.Background(), "", "prompt")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if content != "recovered" {
		t.Errorf("content = %q", content)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestGenerateFailsWithGenerationError(t *testing.T) {
	mock := testutil.NewMockGenerationClient()
	mock.GenerateFunc = func(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResponse, error) {
		return nil, fmt.Errorf("provider down")
	}

	gw := NewGateway(mock, nil, GatewayOptions{})

	_, err := gw.Generate(context.Background(), "", "prompt")
	var genErr *domain.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if genErr.Provider != "mock" {
		t.Errorf("provider = %s", genErr.Provider)
	}
	if mock.GetCallCount() != 2 {
		t.Errorf("calls = %d, want 2 (one retry)", mock.GetCallCount())
	}
}

func TestGenerateStructuredValidFirstTry(t *testing.T) {
	mock := testutil.NewMockGenerationClient()
	mock.Enqueue(`{"search_query": "q", "reasoning": "r"}`)

	gw := NewGateway(mock, nil, GatewayOptions{})

	var out struct {
		SearchQuery string `json:"search_query"`
	}
	err := gw.GenerateStructured(context.Background(), "sys", "prompt", []string{"search_query"}, &out)
	if err != nil {
		t.Fatalf("structured: %v", err)
	}
	if out.SearchQuery != "q" {
		t.Errorf("search_query = %q", out.SearchQuery)
	}
	if mock.GetCallCount() != 1 {
		t.Errorf("calls = %d, want 1", mock.GetCallCount())
	}
	if !mock.LastRequest.JSONMode {
		t.Error("structured generation should request JSON mode")
	}
}

func TestGenerateStructuredReformulatesOnce(t *testing.T) {
	mock := testutil.NewMockGenerationClient()
	mock.Enqueue(
		"I think the query should be about concurrency.",
		`{"search_query": "go concurrency"}`,
	)

	gw := NewGateway(mock, nil, GatewayOptions{})

	var out struct {
		SearchQuery string `json:"search_query"`
	}
	err := gw.GenerateStructured(context.Background(), "sys", "prompt", []string{"search_query"}, &out)
	if err != nil {
		t.Fatalf("structured: %v", err)
	}
	if out.SearchQuery != "go concurrency" {
		t.Errorf("search_query = %q", out.SearchQuery)
	}
	if mock.GetCallCount() != 2 {
		t.Errorf("calls = %d, want 2", mock.GetCallCount())
	}
	if len(mock.Requests) == 2 && mock.Requests[1].Prompt == mock.Requests[0].Prompt {
		t.Error("reformulated prompt should be stricter than the original")
	}
}

func TestGenerateStructuredSchemaErrorAfterRetry(t *testing.T) {
	mock := testutil.NewMockGenerationClient()
	mock.Enqueue(
		`{"reasoning": "no query field"}`,
		`{"reasoning": "still no query field"}`,
	)

	gw := NewGateway(mock, nil, GatewayOptions{})

	var out map[string]any
	err := gw.GenerateStructured(context.Background(), "sys", "prompt", []string{"search_query"}, &out)

	var schemaErr *domain.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if len(schemaErr.Missing) != 1 || schemaErr.Missing[0] != "search_query" {
		t.Errorf("missing = %v", schemaErr.Missing)
	}
}

func TestGenerateStructuredEmptyFieldCountsAsMissing(t *testing.T) {
	mock := testutil.NewMockGenerationClient()
	mock.Enqueue(
		`{"search_query": ""}`,
		`{"search_query": null}`,
	)

	gw := NewGateway(mock, nil, GatewayOptions{})

	var out map[string]any
	err := gw.GenerateStructured(context.Background(), "sys", "prompt", []string{"search_query"}, &out)

	var schemaErr *domain.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
}

func TestGenerateStructuredNoRequiredFieldsJustParses(t *testing.T) {
	mock := testutil.NewMockGenerationClient()
	mock.Enqueue(`{"sufficient": true}`)

	gw := NewGateway(mock, nil, GatewayOptions{})

	var out domain.Critique
	err := gw.GenerateStructured(context.Background(), "sys", "prompt", nil, &out)
	if err != nil {
		t.Fatalf("structured: %v", err)
	}
	if !out.Sufficient {
		t.Error("sufficient = false, want true")
	}
}

func TestGenerateStructuredReformulationWithoutRequiredFields(t *testing.T) {
	mock := testutil.NewMockGenerationClient()
	mock.Enqueue(
		"no json in this response",
		`{"sufficient": false}`,
	)

	gw := NewGateway(mock, nil, GatewayOptions{})

	var out domain.Critique
	err := gw.GenerateStructured(context.Background(), "sys", "prompt", nil, &out)
	if err != nil {
		t.Fatalf("structured: %v", err)
	}

	if len(mock.Requests) != 2 {
		t.Fatalf("calls = %d, want 2", len(mock.Requests))
	}
	strict := mock.Requests[1].Prompt
	if !strings.Contains(strict, "ONLY a valid JSON object") {
		t.Errorf("strict prompt missing JSON-only reminder: %q", strict)
	}
	// Without required fields the field list sentence must be absent.
	if strings.Contains(strict, "MUST contain the fields") {
		t.Errorf("strict prompt names fields that were never required: %q", strict)
	}
}
