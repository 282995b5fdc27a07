package domain

import (
	"testing"
	"time"
)

func TestParagraphPhaseTerminal(t *testing.T) {
	tests := []struct {
		phase    ParagraphPhase
		terminal bool
	}{
		{PhasePending, false},
		{PhaseInitialSearched, false},
		{PhaseSummarized, false},
		{PhaseReflecting, false},
		{PhaseDone, true},
		{PhaseFailed, true},
	}

	for _, tt := range tests {
		if got := tt.phase.Terminal(); got != tt.terminal {
			t.Errorf("Terminal(%s) = %v, want %v", tt.phase, got, tt.terminal)
		}
	}
}

func TestParagraphPhaseValid(t *testing.T) {
	for _, phase := range []ParagraphPhase{
		PhasePending, PhaseInitialSearched, PhaseSummarized,
		PhaseReflecting, PhaseDone, PhaseFailed,
	} {
		if !phase.Valid() {
			t.Errorf("Valid(%s) = false, want true", phase)
		}
	}

	if ParagraphPhase("bogus").Valid() {
		t.Error("Valid(bogus) = true, want false")
	}
	if ParagraphPhase("").Valid() {
		t.Error("Valid(empty) = true, want false")
	}
}

func TestSearchRecordEmpty(t *testing.T) {
	empty := SearchRecord{Query: "q"}
	if !empty.Empty() {
		t.Error("record with no results should be empty")
	}

	full := SearchRecord{
		Query:   "q",
		Results: []SearchResult{{SourceID: "https://example.com", Content: "x"}},
	}
	if full.Empty() {
		t.Error("record with results should not be empty")
	}
}

func TestParagraphCompleted(t *testing.T) {
	p := &Paragraph{Phase: PhaseDone, Summary: "text"}
	if !p.Completed() {
		t.Error("done paragraph with summary should be completed")
	}

	p = &Paragraph{Phase: PhaseDone}
	if p.Completed() {
		t.Error("done paragraph without summary should not be completed")
	}

	p = &Paragraph{Phase: PhaseFailed, Summary: "text"}
	if p.Completed() {
		t.Error("failed paragraph should not be completed")
	}
}

func TestParagraphSourcesOrder(t *testing.T) {
	now := time.Now()
	p := &Paragraph{
		InitialSearch: &SearchRecord{
			Query: "initial",
			Results: []SearchResult{
				{SourceID: "a"},
				{SourceID: "b"},
			},
			Timestamp: now,
		},
		Reflections: []ReflectionRecord{
			{
				Iteration: 1,
				Search: SearchRecord{
					Query:   "followup-1",
					Results: []SearchResult{{SourceID: "c"}},
				},
			},
			{
				Iteration: 2,
				Search: SearchRecord{
					Query:   "followup-2",
					Results: []SearchResult{{SourceID: "d"}},
				},
			},
		},
	}

	sources := p.Sources()
	want := []string{"a", "b", "c", "d"}
	if len(sources) != len(want) {
		t.Fatalf("expected %d sources, got %d", len(want), len(sources))
	}
	for i, id := range want {
		if sources[i].SourceID != id {
			t.Errorf("source %d = %s, want %s", i, sources[i].SourceID, id)
		}
	}
}

func TestParagraphSourcesNoSearches(t *testing.T) {
	p := &Paragraph{}
	if got := p.Sources(); len(got) != 0 {
		t.Errorf("expected no sources, got %d", len(got))
	}
}
