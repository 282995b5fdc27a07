package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/openresearch/deepsearch/pkg/domain"
)

// TestTimeout provides a standard timeout for test contexts
const TestTimeout = 5 * time.Second

// NewTestContext creates a context with standard test timeout
func NewTestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	t.Cleanup(cancel)
	return ctx
}

// NewTestSections creates a section plan for tests
func NewTestSections(titles ...string) []domain.SectionSpec {
	specs := make([]domain.SectionSpec, len(titles))
	for i, title := range titles {
		specs[i] = domain.SectionSpec{
			Title:       title,
			Description: "Covers " + title,
		}
	}
	return specs
}

// NewTestResult creates a search result for tests
func NewTestResult(sourceID, content string) domain.SearchResult {
	return domain.SearchResult{
		SourceID: sourceID,
		Title:    "Title for " + sourceID,
		Content:  content,
		Score:    0.9,
	}
}

// NewTestRecord creates a search record for tests
func NewTestRecord(query string, results ...domain.SearchResult) domain.SearchRecord {
	return domain.SearchRecord{
		Query:     query,
		Results:   results,
		Timestamp: time.Now().UTC(),
	}
}

// AssertEqual checks if two values are equal
func AssertEqual(t *testing.T, expected, actual interface{}, msg string) {
	t.Helper()
	if expected != actual {
		t.Errorf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// AssertNoError checks if error is nil
func AssertNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Errorf("%s: unexpected error: %v", msg, err)
	}
}

// AssertError checks if error is not nil
func AssertError(t *testing.T, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Errorf("%s: expected error but got nil", msg)
	}
}
