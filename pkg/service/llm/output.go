package llm

import (
	"encoding/json"
	"strings"
)

// answerKeys are the fields unwrapped when a model answers with a JSON object
var answerKeys = []string{"answer", "text", "content", "response"}

// ParseOutput turns raw model output into a plain answer string: surrounding whitespace
// and a Markdown code fence are removed, and a JSON object carrying the answer in one of
// answerKeys is unwrapped. Anything else is returned trimmed and otherwise unmodified.
func ParseOutput(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") && strings.HasSuffix(s, "```") && len(s) >= 6 {
		inner := strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
		// drop an info string such as ```json
		if nl := strings.IndexByte(inner, '\n'); nl >= 0 && !strings.ContainsAny(inner[:nl], " \t{") {
			inner = inner[nl+1:]
		}
		s = strings.TrimSpace(inner)
	}

	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		var obj map[string]any
		if err := json.Unmarshal([]byte(s), &obj); err == nil {
			for _, key := range answerKeys {
				if v, ok := obj[key].(string); ok {
					return strings.TrimSpace(v)
				}
			}
		}
	}

	return s
}
