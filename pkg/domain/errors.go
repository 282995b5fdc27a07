package domain

import (
	"fmt"
	"strings"
)

// ConfigError reports an invalid or missing configuration value. It is
// fatal and raised at construction time, never mid-run.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// PlanError reports that the report structure could not be produced.
// There is no partial plan; the run aborts.
type PlanError struct {
	Err error
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("report planning failed: %v", e.Err)
}

func (e *PlanError) Unwrap() error { return e.Err }

// SearchError reports a search provider failure. Timeout distinguishes a
// deadline expiry from other provider errors; both are retryable.
type SearchError struct {
	Query   string
	Timeout bool
	Err     error
}

func (e *SearchError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("search timed out for query %q: %v", e.Query, e.Err)
	}
	return fmt.Sprintf("search failed for query %q: %v", e.Query, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// GenerationError reports a text-generation provider failure after the
// gateway's bounded retries were exhausted.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (provider %s): %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// SchemaError reports that a provider response did not conform to the
// requested output schema, after one stricter reformulation retry.
type SchemaError struct {
	Missing []string
	Err     error
}

func (e *SchemaError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("structured output missing required fields: %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("structured output validation failed: %v", e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// StateLoadError reports that a persisted research state could not be
// loaded. The resume operation fails; no partially populated state is
// ever returned alongside this error.
type StateLoadError struct {
	RunID string
	Err   error
}

func (e *StateLoadError) Error() string {
	return fmt.Sprintf("failed to load research state %q: %v", e.RunID, e.Err)
}

func (e *StateLoadError) Unwrap() error { return e.Err }
