package telegram

import "strings"

// Command is a parsed bot command with its remaining argument text.
type Command struct {
	Name string
	Args string
}

// parseCommand recognizes both "!ask ..." and "/ask ..." forms, including the
// "/ask@SomeBot" addressing Telegram uses in group chats. It returns false
// for plain text.
func parseCommand(text string) (Command, bool) {
	text = strings.TrimSpace(text)
	if len(text) < 2 || (text[0] != '!' && text[0] != '/') {
		return Command{}, false
	}

	head := text[1:]
	rest := ""
	if i := strings.IndexAny(head, " \n\t"); i >= 0 {
		rest = strings.TrimSpace(head[i:])
		head = head[:i]
	}
	if at := strings.Index(head, "@"); at >= 0 {
		head = head[:at]
	}
	if head == "" {
		return Command{}, false
	}

	return Command{Name: strings.ToLower(head), Args: rest}, true
}

// stripMention removes a leading or trailing @username mention so a group
// message addressed to the bot reads as a bare question.
func stripMention(text, username string) (string, bool) {
	if username == "" {
		return text, false
	}
	mention := "@" + username
	if !strings.Contains(strings.ToLower(text), strings.ToLower(mention)) {
		return text, false
	}

	var b strings.Builder
	for _, field := range strings.Fields(text) {
		if strings.EqualFold(field, mention) {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(field)
	}
	return b.String(), true
}

// splitMessage breaks long replies at the Telegram message limit, preferring
// newline and space boundaries so words survive intact.
func splitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = 4000
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		if cut == limit {
			for i := limit; i > limit/2; i-- {
				if runes[i-1] == ' ' {
					cut = i
					break
				}
			}
		}
		parts = append(parts, strings.TrimSpace(string(runes[:cut])))
		runes = runes[cut:]
	}
	if tail := strings.TrimSpace(string(runes)); tail != "" {
		parts = append(parts, tail)
	}
	return parts
}
