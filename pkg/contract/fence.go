package contract

import (
	"regexp"
	"strings"
)

// fencePattern matches a whole reply wrapped in a markdown code fence with an
// optional language tag.
var fencePattern = regexp.MustCompile("(?s)^```[ \\t]*[A-Za-z0-9_+-]*[ \\t]*\\n?(.*?)\\n?[ \\t]*```$")

// StripFence removes a code fence around the reply. Text without a fence is
// returned trimmed; an opening fence with no closing fence is dropped on its own.
func StripFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	// Unterminated fence: drop the opening line.
	if idx := strings.Index(text, "\n"); idx >= 0 {
		return strings.TrimSpace(text[idx+1:])
	}
	return strings.TrimSpace(strings.TrimLeft(text, "`"))
}
