package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openresearch/deepsearch/pkg/domain"
)

const tavilyBaseURL = "https://api.tavily.com"

// TavilyClient implements SearchClient for the Tavily search API.
type TavilyClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// TavilyOptions configures the Tavily client
type TavilyOptions struct {
	BaseURL string
	Timeout time.Duration
}

type tavilyRequest struct {
	APIKey            string `json:"api_key"`
	Query             string `json:"query"`
	MaxResults        int    `json:"max_results"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

type tavilyResponse struct {
	Results []struct {
		URL        string  `json:"url"`
		Title      string  `json:"title"`
		Content    string  `json:"content"`
		RawContent string  `json:"raw_content"`
		Score      float64 `json:"score"`
	} `json:"results"`
}

// NewTavilyClient creates a new Tavily client
func NewTavilyClient(apiKey string, opts *TavilyOptions) *TavilyClient {
	baseURL := tavilyBaseURL
	timeout := 30 * time.Second
	if opts != nil {
		if opts.BaseURL != "" {
			baseURL = opts.BaseURL
		}
		if opts.Timeout > 0 {
			timeout = opts.Timeout
		}
	}

	return &TavilyClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the provider identifier.
func (c *TavilyClient) Name() string {
	return "tavily"
}

// Search performs a search against Tavily. Raw page content is
// preferred over the provider's own snippet when available.
func (c *TavilyClient) Search(ctx context.Context, query string, maxResults int) ([]domain.SearchResult, error) {
	apiReq := tavilyRequest{
		APIKey:            c.apiKey,
		Query:             query,
		MaxResults:        maxResults,
		IncludeRawContent: true,
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		"POST",
		fmt.Sprintf("%s/search", c.baseURL),
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tavily returned status %d: %s", resp.StatusCode, string(body))
	}

	var apiResp tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(apiResp.Results))
	for _, r := range apiResp.Results {
		content := r.RawContent
		if content == "" {
			content = r.Content
		}
		results = append(results, domain.SearchResult{
			SourceID: r.URL,
			Title:    r.Title,
			Content:  content,
			Score:    r.Score,
		})
	}

	return results, nil
}
