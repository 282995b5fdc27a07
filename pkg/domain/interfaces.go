package domain

import (
	"context"
)

// GenerationClient is the capability interface over a text-generation
// provider. Concrete variants (DeepSeek, OpenAI, Ollama) are selected by
// configuration at construction time; callers never branch on which
// variant is active.
type GenerationClient interface {
	// Generate performs a single completion for the given request.
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResponse, error)

	// Name returns the provider identifier, for logs and spans.
	Name() string
}

// GenerationRequest carries one prompt to a generation provider.
type GenerationRequest struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	// JSONMode asks the provider to constrain output to a JSON document
	// where the provider supports it. The gateway still validates the
	// response; this is a hint, not a guarantee.
	JSONMode bool
}

// GenerationResponse is a completed generation.
type GenerationResponse struct {
	Content string
	Usage   TokenUsage
}

// SearchClient is the capability interface over a web-search provider:
// keyword query in, ranked raw results out. Truncation, deduplication and
// retry policy live in the search gateway, not in providers.
type SearchClient interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)

	// Name returns the provider identifier, for logs and spans.
	Name() string
}
