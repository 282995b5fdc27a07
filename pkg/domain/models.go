package domain

import (
	"time"
)

// ParagraphPhase represents the current state of a paragraph's research.
// Transitions are strictly forward; a paragraph reaches a terminal phase
// exactly once.
type ParagraphPhase string

const (
	PhasePending         ParagraphPhase = "pending"
	PhaseInitialSearched ParagraphPhase = "initial_searched"
	PhaseSummarized      ParagraphPhase = "summarized"
	PhaseReflecting      ParagraphPhase = "reflecting"
	PhaseDone            ParagraphPhase = "done"
	PhaseFailed          ParagraphPhase = "failed"
)

// Terminal reports whether the phase ends the paragraph's state machine.
func (p ParagraphPhase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// Valid reports whether the phase is one of the known states. Used when
// loading persisted state.
func (p ParagraphPhase) Valid() bool {
	switch p {
	case PhasePending, PhaseInitialSearched, PhaseSummarized, PhaseReflecting, PhaseDone, PhaseFailed:
		return true
	}
	return false
}

// SectionSpec is one planned report section produced by the structure
// planner: a title and the intent the researched content should cover.
type SectionSpec struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// SearchResult is a single ranked result returned by the search gateway.
// Content is already truncated to the configured maximum length.
type SearchResult struct {
	SourceID string  `json:"source_id"` // provider URL or document identifier
	Title    string  `json:"title,omitempty"`
	Content  string  `json:"content"`
	Score    float64 `json:"score"`
}

// SearchRecord captures one search invocation: the query issued, the
// results consumed, and whether any content was cut to the length limit.
// Records are immutable once created.
type SearchRecord struct {
	Query     string         `json:"query"`
	Results   []SearchResult `json:"results"`
	Truncated bool           `json:"truncated"`
	Timestamp time.Time      `json:"timestamp"`
}

// Empty reports whether the search yielded no usable evidence.
func (r SearchRecord) Empty() bool {
	return len(r.Results) == 0
}

// Critique is the structured output of one reflection pass: the knowledge
// gap identified, a follow-up query to close it, and whether the model
// considers the paragraph already sufficient.
type Critique struct {
	Gap        string `json:"gap"`
	Query      string `json:"search_query"`
	Sufficient bool   `json:"sufficient"`
}

// ReflectionRecord is one completed critique-and-revise pass. Records are
// append-only; together they form the audit trail of how a paragraph's
// summary evolved.
type ReflectionRecord struct {
	Iteration      int          `json:"iteration"`
	Gap            string       `json:"gap"`
	Query          string       `json:"search_query"`
	Search         SearchRecord `json:"search"`
	RevisedSummary string       `json:"revised_summary"`
	Timestamp      time.Time    `json:"timestamp"`
}

// Paragraph is one report section under research. Summary is replaced,
// never appended, at each phase; Reflections grow append-only.
type Paragraph struct {
	ID              string             `json:"id"`
	Order           int                `json:"order"`
	Title           string             `json:"title"`
	Description     string             `json:"description"`
	Phase           ParagraphPhase     `json:"phase"`
	Summary         string             `json:"summary,omitempty"`
	InitialSearch   *SearchRecord      `json:"initial_search,omitempty"`
	Reflections     []ReflectionRecord `json:"reflections,omitempty"`
	ReflectionCount int                `json:"reflection_count"`
	Degraded        bool               `json:"degraded,omitempty"`
	FailureReason   string             `json:"failure_reason,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
}

// Completed reports whether the paragraph finished research with a usable
// summary.
func (p *Paragraph) Completed() bool {
	return p.Phase == PhaseDone && p.Summary != ""
}

// Sources returns every search result the paragraph consumed, in the
// order the searches were issued. Used by the formatter to build the
// consolidated citation list.
func (p *Paragraph) Sources() []SearchResult {
	var sources []SearchResult
	if p.InitialSearch != nil {
		sources = append(sources, p.InitialSearch.Results...)
	}
	for _, ref := range p.Reflections {
		sources = append(sources, ref.Search.Results...)
	}
	return sources
}

// TokenUsage tracks token consumption reported by a generation provider.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ProgressSummary summarizes paragraph completion for a research run.
type ProgressSummary struct {
	TotalParagraphs     int     `json:"total_paragraphs"`
	CompletedParagraphs int     `json:"completed_paragraphs"`
	FailedParagraphs    int     `json:"failed_paragraphs"`
	DegradedParagraphs  int     `json:"degraded_paragraphs"`
	ProgressPercent     float64 `json:"progress_percent"`
	Completed           bool    `json:"is_completed"`
}
