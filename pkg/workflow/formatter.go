package workflow

import (
	"fmt"
	"strings"

	"github.com/openresearch/deepsearch/pkg/domain"
	"github.com/openresearch/deepsearch/pkg/state"
)

// Formatter assembles the final Markdown report from a completed run.
// Formatting is pure: it reads the snapshot and produces text, with no
// model calls and no mutation, so the same snapshot always yields the
// same report.
type Formatter struct{}

// NewFormatter creates a report formatter.
func NewFormatter() *Formatter {
	return &Formatter{}
}

// Format renders the report: title, one section per paragraph in plan
// order, and a consolidated reference list. Failed paragraphs keep
// their place in the report with a note instead of content.
func (f *Formatter) Format(snap state.Snapshot) string {
	var b strings.Builder

	title := snap.ReportTitle
	if title == "" {
		title = "Deep Research Report: " + snap.Query
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	refs := newReferenceList()

	for _, para := range snap.Paragraphs {
		fmt.Fprintf(&b, "## %s\n\n", para.Title)

		if para.Phase == domain.PhaseFailed {
			reason := para.FailureReason
			if reason == "" {
				reason = "research did not complete"
			}
			fmt.Fprintf(&b, "*This section could not be researched: %s.*\n\n", strings.TrimSuffix(reason, "."))
			continue
		}

		body := normalizeSection(para.Summary, para.Title)
		if body == "" {
			b.WriteString("*No content was produced for this section.*\n\n")
			continue
		}
		fmt.Fprintf(&b, "%s\n\n", body)

		for _, src := range para.Sources() {
			refs.add(src)
		}
	}

	if refs.len() > 0 {
		b.WriteString("## References\n\n")
		for i, ref := range refs.ordered {
			if ref.Title != "" {
				fmt.Fprintf(&b, "%d. %s - %s\n", i+1, ref.Title, ref.SourceID)
			} else {
				fmt.Fprintf(&b, "%d. %s\n", i+1, ref.SourceID)
			}
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// normalizeSection strips a redundant leading heading from section text.
// Models asked for a section body sometimes repeat the section title as
// a Markdown heading; the formatter owns the headings.
func normalizeSection(text, title string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}

	lines := strings.SplitN(trimmed, "\n", 2)
	first := strings.TrimSpace(lines[0])
	if strings.HasPrefix(first, "#") {
		heading := strings.TrimSpace(strings.TrimLeft(first, "#"))
		if strings.EqualFold(heading, strings.TrimSpace(title)) {
			if len(lines) == 2 {
				return strings.TrimSpace(lines[1])
			}
			return ""
		}
	}
	return trimmed
}

// referenceList numbers sources by first occurrence, deduplicated by
// source identifier across the whole report.
type referenceList struct {
	seen    map[string]bool
	ordered []domain.SearchResult
}

func newReferenceList() *referenceList {
	return &referenceList{seen: make(map[string]bool)}
}

func (r *referenceList) add(src domain.SearchResult) {
	if src.SourceID == "" || r.seen[src.SourceID] {
		return
	}
	r.seen[src.SourceID] = true
	r.ordered = append(r.ordered, src)
}

func (r *referenceList) len() int {
	return len(r.ordered)
}
