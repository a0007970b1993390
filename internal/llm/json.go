package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseJSONResponse extracts JSON from an LLM response, tolerating
// markdown code fences and leading prose around the payload.
func ParseJSONResponse(response string, v any) error {
	cleaned := strings.TrimSpace(response)

	if strings.HasPrefix(cleaned, "```") {
		lines := strings.Split(cleaned, "\n")
		var jsonLines []string
		inBlock := false
		for _, line := range lines {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				if inBlock {
					break
				}
				inBlock = true
				continue
			}
			if inBlock {
				jsonLines = append(jsonLines, line)
			}
		}
		cleaned = strings.Join(jsonLines, "\n")
	}

	// Some models preface the object with commentary; cut to the
	// outermost braces.
	start := strings.IndexAny(cleaned, "{[")
	if start > 0 {
		var end int
		if cleaned[start] == '{' {
			end = strings.LastIndex(cleaned, "}")
		} else {
			end = strings.LastIndex(cleaned, "]")
		}
		if end > start {
			cleaned = cleaned[start : end+1]
		}
	}

	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("parsing JSON response: %w", err)
	}
	return nil
}
