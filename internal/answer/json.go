package answer

import "strings"

// extractJSON pulls the JSON object out of model output that may carry
// prose before or after it: everything from the first '{' to the last '}'.
func extractJSON(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
