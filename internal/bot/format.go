package bot

import (
	"strings"
	"unicode/utf8"
)

// MessageLimit is Telegram's maximum message length.
const MessageLimit = 4096

// splitMessage chunks text below Telegram's message size limit, preferring
// newline boundaries so code blocks and paragraphs stay readable. Cuts never
// land inside a multi-byte rune.
func splitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = MessageLimit
	}
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = runeBoundary(text, limit)
		}
		chunks = append(chunks, strings.TrimRight(text[:cut], "\n"))
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// runeBoundary backs a byte offset off to the start of the rune it falls in.
func runeBoundary(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	if i == 0 {
		return len(s)
	}
	return i
}

// truncate shortens a string for log lines.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:runeBoundary(s, maxLen)] + "..."
}
