package workflow

import (
	"strings"
	"testing"

	"github.com/openresearch/deepsearch/internal/testutil"
	"github.com/openresearch/deepsearch/pkg/domain"
	"github.com/openresearch/deepsearch/pkg/state"
)

func snapshotWith(t *testing.T, mutate func(*state.ResearchState)) state.Snapshot {
	t.Helper()
	st := state.New("run-1", "quantum computing")
	if err := st.SeedPlan(testutil.NewTestSections("History", "Hardware", "Outlook")); err != nil {
		t.Fatal(err)
	}
	if mutate != nil {
		mutate(st)
	}
	return st.Snapshot()
}

func completeParagraph(st *state.ResearchState, index int, summary string, sources ...string) {
	st.UpdateParagraph(index, func(p *domain.Paragraph) {
		results := make([]domain.SearchResult, len(sources))
		for i, s := range sources {
			results[i] = testutil.NewTestResult(s, "evidence")
		}
		rec := testutil.NewTestRecord("q", results...)
		p.InitialSearch = &rec
		p.Summary = summary
		p.Phase = domain.PhaseDone
	})
}

func TestFormatSectionOrderMatchesPlan(t *testing.T) {
	snap := snapshotWith(t, func(st *state.ResearchState) {
		completeParagraph(st, 0, "history text")
		completeParagraph(st, 1, "hardware text")
		completeParagraph(st, 2, "outlook text")
	})

	report := NewFormatter().Format(snap)

	if !strings.HasPrefix(report, "# Deep Research Report: quantum computing\n") {
		t.Errorf("report title missing:\n%s", report)
	}

	iHistory := strings.Index(report, "## History")
	iHardware := strings.Index(report, "## Hardware")
	iOutlook := strings.Index(report, "## Outlook")
	if iHistory < 0 || iHardware < 0 || iOutlook < 0 {
		t.Fatalf("missing section headings:\n%s", report)
	}
	if !(iHistory < iHardware && iHardware < iOutlook) {
		t.Error("sections out of plan order")
	}
	if !strings.Contains(report, "history text") {
		t.Error("section body missing")
	}
}

func TestFormatReferencesDedupedFirstOccurrence(t *testing.T) {
	snap := snapshotWith(t, func(st *state.ResearchState) {
		completeParagraph(st, 0, "a", "https://shared.example", "https://first.example")
		completeParagraph(st, 1, "b", "https://second.example", "https://shared.example")
		completeParagraph(st, 2, "c")
	})

	report := NewFormatter().Format(snap)

	if !strings.Contains(report, "## References") {
		t.Fatalf("references section missing:\n%s", report)
	}
	refs := report[strings.Index(report, "## References"):]

	if strings.Count(refs, "https://shared.example") != 1 {
		t.Error("shared source must appear exactly once")
	}

	iShared := strings.Index(refs, "https://shared.example")
	iFirst := strings.Index(refs, "https://first.example")
	iSecond := strings.Index(refs, "https://second.example")
	if !(iShared < iFirst && iFirst < iSecond) {
		t.Errorf("references not in first-occurrence order:\n%s", refs)
	}
	if !strings.Contains(refs, "1. ") || !strings.Contains(refs, "3. ") {
		t.Errorf("references not numbered:\n%s", refs)
	}
}

func TestFormatFailedSectionKeepsPlace(t *testing.T) {
	snap := snapshotWith(t, func(st *state.ResearchState) {
		completeParagraph(st, 0, "history text")
		st.UpdateParagraph(1, func(p *domain.Paragraph) {
			p.Phase = domain.PhaseFailed
			p.FailureReason = "summary generation failed"
		})
		completeParagraph(st, 2, "outlook text")
	})

	report := NewFormatter().Format(snap)

	if !strings.Contains(report, "## Hardware") {
		t.Error("failed section heading must remain")
	}
	if !strings.Contains(report, "could not be researched") {
		t.Errorf("failed section needs a note:\n%s", report)
	}
	if !strings.Contains(report, "summary generation failed") {
		t.Error("failure reason should surface in the note")
	}
}

func TestFormatStripsRedundantHeading(t *testing.T) {
	snap := snapshotWith(t, func(st *state.ResearchState) {
		completeParagraph(st, 0, "## History\nThe actual body text.")
		completeParagraph(st, 1, "## Something Else\nBody keeps its own heading.")
		completeParagraph(st, 2, "plain body")
	})

	report := NewFormatter().Format(snap)

	if strings.Count(report, "## History") != 1 {
		t.Error("model-repeated section heading must be stripped")
	}
	if !strings.Contains(report, "The actual body text.") {
		t.Error("body lost while stripping heading")
	}
	if !strings.Contains(report, "## Something Else") {
		t.Error("unrelated headings inside a body are kept")
	}
}

func TestFormatIsDeterministic(t *testing.T) {
	snap := snapshotWith(t, func(st *state.ResearchState) {
		completeParagraph(st, 0, "a", "https://a.example")
		completeParagraph(st, 1, "b", "https://b.example")
		completeParagraph(st, 2, "c")
	})

	f := NewFormatter()
	if f.Format(snap) != f.Format(snap) {
		t.Error("formatting the same snapshot twice must be identical")
	}
}

func TestFormatNoReferencesSection(t *testing.T) {
	snap := snapshotWith(t, func(st *state.ResearchState) {
		completeParagraph(st, 0, "a")
		completeParagraph(st, 1, "b")
		completeParagraph(st, 2, "c")
	})

	report := NewFormatter().Format(snap)
	if strings.Contains(report, "## References") {
		t.Error("no sources means no references section")
	}
}
