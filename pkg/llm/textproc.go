package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CleanResponse strips markdown code fences from a model response.
// Models in JSON mode still occasionally wrap their output in
// ```json ... ``` blocks; the payload inside is what we want.
func CleanResponse(content string) string {
	trimmed := strings.TrimSpace(content)

	if strings.HasPrefix(trimmed, "```") {
		// Drop the opening fence together with an optional language tag.
		if idx := strings.Index(trimmed, "\n"); idx >= 0 {
			trimmed = trimmed[idx+1:]
		} else {
			trimmed = strings.TrimPrefix(trimmed, "```")
			trimmed = strings.TrimPrefix(trimmed, "json")
		}
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
	}

	return strings.TrimSpace(trimmed)
}

// ExtractJSONObject locates and parses the first top-level JSON object
// in a model response, tolerating prose before and after it.
func ExtractJSONObject(content string, out any) error {
	cleaned := CleanResponse(content)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end < start {
		return fmt.Errorf("no JSON object found in response")
	}

	if err := json.Unmarshal([]byte(cleaned[start:end+1]), out); err != nil {
		return fmt.Errorf("failed to parse JSON object: %w", err)
	}
	return nil
}

// ExtractJSONArray locates and parses the first top-level JSON array in
// a model response.
func ExtractJSONArray(content string, out any) error {
	cleaned := CleanResponse(content)

	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start < 0 || end < start {
		return fmt.Errorf("no JSON array found in response")
	}

	if err := json.Unmarshal([]byte(cleaned[start:end+1]), out); err != nil {
		return fmt.Errorf("failed to parse JSON array: %w", err)
	}
	return nil
}
