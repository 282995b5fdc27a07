package llm

import (
	"testing"
)

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  \n{\"a\":1}\n  ", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanResponse(tt.input); got != tt.want {
				t.Errorf("CleanResponse = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	var out struct {
		SearchQuery string `json:"search_query"`
	}

	input := "Here is the query you asked for:\n```json\n{\"search_query\": \"go concurrency patterns\"}\n```\nLet me know if you need more."
	if err := ExtractJSONObject(input, &out); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if out.SearchQuery != "go concurrency patterns" {
		t.Errorf("search_query = %q", out.SearchQuery)
	}
}

func TestExtractJSONObjectNoObject(t *testing.T) {
	var out map[string]any
	if err := ExtractJSONObject("no json here", &out); err == nil {
		t.Error("expected error for response without JSON")
	}
}

func TestExtractJSONObjectMalformed(t *testing.T) {
	var out map[string]any
	if err := ExtractJSONObject(`{"a": }`, &out); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestExtractJSONArray(t *testing.T) {
	var out []struct {
		Title string `json:"title"`
	}

	input := "The plan:\n[{\"title\": \"History\"}, {\"title\": \"Outlook\"}]\nDone."
	if err := ExtractJSONArray(input, &out); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(out) != 2 || out[0].Title != "History" || out[1].Title != "Outlook" {
		t.Errorf("out = %+v", out)
	}
}

func TestExtractJSONArrayNoArray(t *testing.T) {
	var out []any
	if err := ExtractJSONArray(`{"not": "an array"}`, &out); err == nil {
		t.Error("expected error for response without array")
	}
}
