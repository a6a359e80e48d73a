package azure

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// StripReasoning removes reasoning-model "thinking" segments from a response
// before it reaches a user. Every <think>...</think> pair is dropped, along
// with any whitespace that directly follows the closing tag; a final
// unterminated <think> is dropped through end of text. A stray closing tag
// without an opener is left alone, so ordinary answers that happen to contain
// the delimiter text survive intact. Filtering already-filtered text is a
// no-op.
func StripReasoning(s string) string {
	// Removing a segment can splice surrounding text into a fresh delimiter,
	// so iterate to a fixpoint.
	for {
		out := stripOnce(s)
		if out == s {
			return out
		}
		s = out
	}
}

func stripOnce(s string) string {
	var b strings.Builder
	for {
		start := strings.Index(s, thinkOpen)
		if start < 0 {
			b.WriteString(s)
			break
		}
		b.WriteString(s[:start])

		rest := s[start+len(thinkOpen):]
		end := strings.Index(rest, thinkClose)
		if end < 0 {
			// Unterminated segment: the model was cut off mid-thought.
			break
		}
		s = strings.TrimLeft(rest[end+len(thinkClose):], " \t\r\n")
	}
	return strings.TrimSpace(b.String())
}
