package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTavilyClientSearch(t *testing.T) {
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)

		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{
					"url":         "https://a.example",
					"title":       "Alpha",
					"content":     "snippet",
					"raw_content": "full page text",
					"score":       0.95,
				},
				{
					"url":     "https://b.example",
					"title":   "Beta",
					"content": "snippet only",
					"score":   0.8,
				},
			},
		})
	}))
	defer server.Close()

	client := NewTavilyClient("tv-key", &TavilyOptions{BaseURL: server.URL})

	results, err := client.Search(context.Background(), "go errgroup", 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if gotBody["api_key"] != "tv-key" {
		t.Errorf("api_key = %v", gotBody["api_key"])
	}
	if gotBody["query"] != "go errgroup" {
		t.Errorf("query = %v", gotBody["query"])
	}
	if gotBody["max_results"] != float64(3) {
		t.Errorf("max_results = %v", gotBody["max_results"])
	}
	if gotBody["include_raw_content"] != true {
		t.Errorf("include_raw_content = %v", gotBody["include_raw_content"])
	}

	if len(results) != 2 {
		t.Fatalf("results = %d", len(results))
	}
	// Raw content preferred over the snippet when the provider has it.
	if results[0].Content != "full page text" {
		t.Errorf("content = %q", results[0].Content)
	}
	if results[1].Content != "snippet only" {
		t.Errorf("fallback content = %q", results[1].Content)
	}
	if results[0].SourceID != "https://a.example" || results[0].Score != 0.95 {
		t.Errorf("result = %+v", results[0])
	}
}

func TestTavilyClientServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewTavilyClient("bad-key", &TavilyOptions{BaseURL: server.URL})

	if _, err := client.Search(context.Background(), "q", 3); err == nil {
		t.Error("expected error for non-200 response")
	}
}
