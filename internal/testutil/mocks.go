package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/openresearch/deepsearch/pkg/domain"
)

// MockGenerationClient is a mock implementation of GenerationClient for
// testing. Responses are consumed from the queue in order; when the
// queue is empty the Default response is returned.
type MockGenerationClient struct {
	mu          sync.Mutex
	Queue       []string
	Default     string
	CallCount   int
	LastRequest domain.GenerationRequest
	Requests    []domain.GenerationRequest
	// GenerateFunc allows custom behavior for tests
	GenerateFunc func(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResponse, error)
}

// NewMockGenerationClient creates a new mock generation client
func NewMockGenerationClient() *MockGenerationClient {
	return &MockGenerationClient{
		Default: "Mock response",
	}
}

// Enqueue appends responses to the queue.
func (m *MockGenerationClient) Enqueue(responses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queue = append(m.Queue, responses...)
}

// Generate implements domain.GenerationClient
func (m *MockGenerationClient) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResponse, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastRequest = req
	m.Requests = append(m.Requests, req)
	fn := m.GenerateFunc
	var content string
	if fn == nil {
		if len(m.Queue) > 0 {
			content = m.Queue[0]
			m.Queue = m.Queue[1:]
		} else {
			content = m.Default
		}
	}
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}

	return &domain.GenerationResponse{
		Content: content,
		Usage: domain.TokenUsage{
			PromptTokens:     50,
			CompletionTokens: 50,
			TotalTokens:      100,
		},
	}, nil
}

// Name implements domain.GenerationClient
func (m *MockGenerationClient) Name() string {
	return "mock"
}

// GetCallCount returns the number of Generate calls made
func (m *MockGenerationClient) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// MockSearchClient is a mock implementation of SearchClient for testing
type MockSearchClient struct {
	mu          sync.Mutex
	Results     []domain.SearchResult
	CallCount   int
	LastQuery   string
	Queries     []string
	ShouldError bool
	// SearchFunc allows custom behavior for tests
	SearchFunc func(ctx context.Context, query string, maxResults int) ([]domain.SearchResult, error)
}

// NewMockSearchClient creates a new mock search client
func NewMockSearchClient(results ...domain.SearchResult) *MockSearchClient {
	return &MockSearchClient{Results: results}
}

// Search implements domain.SearchClient
func (m *MockSearchClient) Search(ctx context.Context, query string, maxResults int) ([]domain.SearchResult, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastQuery = query
	m.Queries = append(m.Queries, query)
	fn := m.SearchFunc
	shouldError := m.ShouldError
	results := make([]domain.SearchResult, len(m.Results))
	copy(results, m.Results)
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, query, maxResults)
	}
	if shouldError {
		return nil, fmt.Errorf("mock search failure")
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

// Name implements domain.SearchClient
func (m *MockSearchClient) Name() string {
	return "mock"
}

// GetCallCount returns the number of Search calls made
func (m *MockSearchClient) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}
