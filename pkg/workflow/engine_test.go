package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openresearch/deepsearch/internal/testutil"
	"github.com/openresearch/deepsearch/pkg/domain"
	"github.com/openresearch/deepsearch/pkg/llm"
	"github.com/openresearch/deepsearch/pkg/search"
	"github.com/openresearch/deepsearch/pkg/state"
)

type engineFixture struct {
	llm    *testutil.MockGenerationClient
	search *testutil.MockSearchClient
	store  *state.MemoryStore
	engine *Engine
}

func newEngineFixture(t *testing.T, opts EngineOptions) *engineFixture {
	t.Helper()

	mockLLM := testutil.NewMockGenerationClient()
	mockSearch := testutil.NewMockSearchClient(
		testutil.NewTestResult("https://a.example", "evidence alpha"),
		testutil.NewTestResult("https://b.example", "evidence beta"),
	)
	store := state.NewMemoryStore()

	llmGateway := llm.NewGateway(mockLLM, nil, llm.GatewayOptions{})
	searchGateway := search.NewGateway(mockSearch, nil, search.GatewayOptions{Retries: 0})

	opts.SaveCheckpoints = true
	engine, err := NewEngine(llmGateway, searchGateway, store, opts)
	if err != nil {
		t.Fatal(err)
	}

	return &engineFixture{
		llm:    mockLLM,
		search: mockSearch,
		store:  store,
		engine: engine,
	}
}

func TestRunThreeSections(t *testing.T) {
	f := newEngineFixture(t, EngineOptions{MaxParagraphs: 5, MaxReflections: 0, MaxConcurrency: 1})
	f.llm.Enqueue(
		`[
			{"title": "History", "description": "origins"},
			{"title": "Hardware", "description": "machines"},
			{"title": "Outlook", "description": "future"}
		]`,
		`{"search_query": "history q", "reasoning": "r"}`,
		`{"paragraph_latest_state": "history body"}`,
		`{"search_query": "hardware q", "reasoning": "r"}`,
		`{"paragraph_latest_state": "hardware body"}`,
		`{"search_query": "outlook q", "reasoning": "r"}`,
		`{"paragraph_latest_state": "outlook body"}`,
	)

	result, err := f.engine.Run(testutil.NewTestContext(t), "quantum computing")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.RunID == "" {
		t.Error("result should carry the run id")
	}
	if len(result.Snapshot.Paragraphs) != 3 {
		t.Fatalf("paragraphs = %d", len(result.Snapshot.Paragraphs))
	}
	for i, para := range result.Snapshot.Paragraphs {
		if para.Phase != domain.PhaseDone {
			t.Errorf("paragraph %d phase = %s", i, para.Phase)
		}
	}
	if !result.Snapshot.Completed {
		t.Error("run should be marked completed")
	}

	for _, want := range []string{"## History", "## Hardware", "## Outlook", "history body", "## References"} {
		if !strings.Contains(result.Report, want) {
			t.Errorf("report missing %q:\n%s", want, result.Report)
		}
	}

	// Plan + (query + summary) per section.
	if got := f.llm.GetCallCount(); got != 7 {
		t.Errorf("llm calls = %d, want 7", got)
	}

	// The final checkpoint is loadable and complete.
	loaded, err := f.store.Load(context.Background(), result.RunID)
	if err != nil {
		t.Fatalf("load checkpoint: %v", err)
	}
	if !loaded.Completed() {
		t.Error("stored state should be completed")
	}
}

func TestRunPlanFailureAborts(t *testing.T) {
	f := newEngineFixture(t, EngineOptions{MaxParagraphs: 5, MaxConcurrency: 1})
	f.llm.Enqueue("not a plan", "still not a plan")

	_, err := f.engine.Run(testutil.NewTestContext(t), "topic")
	var planErr *domain.PlanError
	if !errors.As(err, &planErr) {
		t.Fatalf("expected PlanError, got %v", err)
	}
}

func TestResumeSkipsTerminalParagraphs(t *testing.T) {
	f := newEngineFixture(t, EngineOptions{MaxParagraphs: 5, MaxReflections: 0, MaxConcurrency: 1})

	// Build a checkpoint with two finished sections and one pending.
	st := state.New("run-resume", "quantum computing")
	if err := st.SeedPlan(testutil.NewTestSections("History", "Hardware", "Outlook")); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		st.UpdateParagraph(i, func(p *domain.Paragraph) {
			p.Phase = domain.PhaseDone
			p.Summary = "already researched"
		})
	}
	if err := f.store.Save(context.Background(), st); err != nil {
		t.Fatal(err)
	}

	f.llm.Enqueue(
		`{"search_query": "outlook q", "reasoning": "r"}`,
		`{"paragraph_latest_state": "outlook body"}`,
	)

	result, err := f.engine.Resume(testutil.NewTestContext(t), "run-resume")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}

	// No planning call, no re-research of finished sections.
	if got := f.llm.GetCallCount(); got != 2 {
		t.Errorf("llm calls = %d, want 2", got)
	}
	for i, para := range result.Snapshot.Paragraphs {
		if para.Phase != domain.PhaseDone {
			t.Errorf("paragraph %d phase = %s", i, para.Phase)
		}
	}
	if !strings.Contains(result.Report, "outlook body") {
		t.Error("resumed section missing from report")
	}
	if !strings.Contains(result.Report, "already researched") {
		t.Error("checkpointed sections missing from report")
	}
}

func TestResumeUnknownRunFails(t *testing.T) {
	f := newEngineFixture(t, EngineOptions{MaxConcurrency: 1})

	_, err := f.engine.Resume(testutil.NewTestContext(t), "no-such-run")
	var loadErr *domain.StateLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected StateLoadError, got %v", err)
	}
}

func TestRunConcurrentParagraphs(t *testing.T) {
	f := newEngineFixture(t, EngineOptions{MaxParagraphs: 5, MaxReflections: 0, MaxConcurrency: 3})

	// Responses are dispatched from a shared queue; with concurrency the
	// interleaving is arbitrary, so every query response must satisfy any
	// paragraph. The default covers whichever call the queue misses.
	f.llm.Default = `{"search_query": "q", "reasoning": "r", "paragraph_latest_state": "body text"}`
	f.llm.Enqueue(
		`[
			{"title": "One", "description": "a"},
			{"title": "Two", "description": "b"},
			{"title": "Three", "description": "c"}
		]`,
	)

	result, err := f.engine.Run(testutil.NewTestContext(t), "topic")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	for i, para := range result.Snapshot.Paragraphs {
		if !para.Phase.Terminal() {
			t.Errorf("paragraph %d phase = %s", i, para.Phase)
		}
	}

	// Section order in the report follows the plan regardless of which
	// paragraph finished first.
	iOne := strings.Index(result.Report, "## One")
	iTwo := strings.Index(result.Report, "## Two")
	iThree := strings.Index(result.Report, "## Three")
	if !(iOne >= 0 && iOne < iTwo && iTwo < iThree) {
		t.Errorf("sections out of order:\n%s", result.Report)
	}
}

func TestRunCancellationInterrupts(t *testing.T) {
	f := newEngineFixture(t, EngineOptions{MaxParagraphs: 5, MaxReflections: 0, MaxConcurrency: 1})

	ctx, cancel := context.WithCancel(context.Background())

	planDone := false
	f.llm.GenerateFunc = func(c context.Context, req domain.GenerationRequest) (*domain.GenerationResponse, error) {
		if !planDone {
			planDone = true
			return &domain.GenerationResponse{Content: `[{"title": "One", "description": "a"}]`}, nil
		}
		// Cancel mid-run; the next ctx check stops the paragraph.
		cancel()
		return &domain.GenerationResponse{Content: `{"search_query": "q", "reasoning": "r"}`}, nil
	}

	_, err := f.engine.Run(ctx, "topic")
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}
