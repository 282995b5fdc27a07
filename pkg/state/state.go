package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openresearch/deepsearch/pkg/domain"
)

// ResearchState is the top-level aggregate for one research run: the
// original query plus the ordered paragraphs under research. It is the
// only shared mutable state in the engine; all access goes through the
// lock so paragraph controllers may run concurrently.
type ResearchState struct {
	mu          sync.RWMutex
	id          string
	query       string
	reportTitle string
	paragraphs  []*domain.Paragraph
	completed   bool
	createdAt   time.Time
	updatedAt   time.Time
}

// New creates an empty research state for a query. Paragraphs are seeded
// later from the planner's output.
func New(id, query string) *ResearchState {
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	return &ResearchState{
		id:        id,
		query:     query,
		createdAt: now,
		updatedAt: now,
	}
}

// ID returns the run identifier.
func (s *ResearchState) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Query returns the original research query.
func (s *ResearchState) Query() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query
}

// SeedPlan populates the paragraph sequence from the planner's section
// specs. Order is semantically meaningful: it is the final report order.
// Seeding an already planned state is a programming error.
func (s *ResearchState) SeedPlan(specs []domain.SectionSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.paragraphs) > 0 {
		return fmt.Errorf("state %s already has a plan", s.id)
	}

	now := time.Now().UTC()
	s.reportTitle = "Deep Research Report: " + s.query
	for i, spec := range specs {
		s.paragraphs = append(s.paragraphs, &domain.Paragraph{
			ID:          uuid.NewString(),
			Order:       i,
			Title:       spec.Title,
			Description: spec.Description,
			Phase:       domain.PhasePending,
			CreatedAt:   now,
		})
	}
	s.updatedAt = now
	return nil
}

// ParagraphCount returns the number of planned paragraphs.
func (s *ResearchState) ParagraphCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.paragraphs)
}

// Paragraph returns a deep copy of the paragraph at index i. Callers
// never see the live pointer.
func (s *ResearchState) Paragraph(i int) (domain.Paragraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i < 0 || i >= len(s.paragraphs) {
		return domain.Paragraph{}, fmt.Errorf("paragraph index %d out of range [0,%d)", i, len(s.paragraphs))
	}
	return cloneParagraph(s.paragraphs[i]), nil
}

// UpdateParagraph applies fn to the paragraph at index i under the write
// lock. fn must not retain references past its return.
func (s *ResearchState) UpdateParagraph(i int, fn func(*domain.Paragraph)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.paragraphs) {
		return fmt.Errorf("paragraph index %d out of range [0,%d)", i, len(s.paragraphs))
	}
	fn(s.paragraphs[i])
	s.updatedAt = time.Now().UTC()
	return nil
}

// MarkCompleted flags the whole run as finished.
func (s *ResearchState) MarkCompleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = true
	s.updatedAt = time.Now().UTC()
}

// Completed reports whether the run finished.
func (s *ResearchState) Completed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completed
}

// AllTerminal reports whether every paragraph reached a terminal phase.
func (s *ResearchState) AllTerminal() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.paragraphs) == 0 {
		return false
	}
	for _, p := range s.paragraphs {
		if !p.Phase.Terminal() {
			return false
		}
	}
	return true
}

// Progress summarizes paragraph completion.
func (s *ResearchState) Progress() domain.ProgressSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := domain.ProgressSummary{
		TotalParagraphs: len(s.paragraphs),
		Completed:       s.completed,
	}
	for _, p := range s.paragraphs {
		switch {
		case p.Phase == domain.PhaseFailed:
			summary.FailedParagraphs++
		case p.Completed():
			summary.CompletedParagraphs++
		}
		if p.Degraded {
			summary.DegradedParagraphs++
		}
	}
	if summary.TotalParagraphs > 0 {
		done := summary.CompletedParagraphs + summary.FailedParagraphs
		summary.ProgressPercent = float64(done) / float64(summary.TotalParagraphs) * 100
	}
	return summary
}

// Snapshot returns an immutable deep copy of the state. Snapshots are the
// unit of persistence: a checkpoint is a snapshot serialized to JSON.
func (s *ResearchState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paragraphs := make([]domain.Paragraph, len(s.paragraphs))
	for i, p := range s.paragraphs {
		paragraphs[i] = cloneParagraph(p)
	}

	return Snapshot{
		ID:          s.id,
		Query:       s.query,
		ReportTitle: s.reportTitle,
		Paragraphs:  paragraphs,
		Completed:   s.completed,
		CreatedAt:   s.createdAt,
		UpdatedAt:   s.updatedAt,
	}
}

// Snapshot is the serializable representation of a research run. It
// captures every field needed to resume the run from the last completed
// transition.
type Snapshot struct {
	ID          string             `json:"id"`
	Query       string             `json:"query"`
	ReportTitle string             `json:"report_title,omitempty"`
	Paragraphs  []domain.Paragraph `json:"paragraphs"`
	Completed   bool               `json:"is_completed"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Validate checks the structural invariants a loadable snapshot must
// satisfy. A snapshot that fails validation must never populate a
// ResearchState.
func (snap Snapshot) Validate() error {
	if snap.ID == "" {
		return fmt.Errorf("missing run id")
	}
	if snap.Query == "" {
		return fmt.Errorf("missing query")
	}
	for i, p := range snap.Paragraphs {
		if !p.Phase.Valid() {
			return fmt.Errorf("paragraph %d has unknown phase %q", i, p.Phase)
		}
		if p.ReflectionCount != len(p.Reflections) {
			return fmt.Errorf("paragraph %d reflection count %d does not match %d records",
				i, p.ReflectionCount, len(p.Reflections))
		}
		if p.Order != i {
			return fmt.Errorf("paragraph %d stored with order %d", i, p.Order)
		}
	}
	return nil
}

// FromSnapshot reconstructs a mutable state from a validated snapshot.
func FromSnapshot(snap Snapshot) (*ResearchState, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	s := &ResearchState{
		id:          snap.ID,
		query:       snap.Query,
		reportTitle: snap.ReportTitle,
		completed:   snap.Completed,
		createdAt:   snap.CreatedAt,
		updatedAt:   snap.UpdatedAt,
	}
	for i := range snap.Paragraphs {
		p := cloneParagraph(&snap.Paragraphs[i])
		s.paragraphs = append(s.paragraphs, &p)
	}
	return s, nil
}

func cloneParagraph(p *domain.Paragraph) domain.Paragraph {
	c := *p
	if p.InitialSearch != nil {
		rec := cloneSearchRecord(*p.InitialSearch)
		c.InitialSearch = &rec
	}
	if p.Reflections != nil {
		c.Reflections = make([]domain.ReflectionRecord, len(p.Reflections))
		for i, ref := range p.Reflections {
			refCopy := ref
			refCopy.Search = cloneSearchRecord(ref.Search)
			c.Reflections[i] = refCopy
		}
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		c.CompletedAt = &t
	}
	return c
}

func cloneSearchRecord(r domain.SearchRecord) domain.SearchRecord {
	c := r
	if r.Results != nil {
		c.Results = make([]domain.SearchResult, len(r.Results))
		copy(c.Results, r.Results)
	}
	return c
}
