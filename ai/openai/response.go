package openai

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// stripCodeFence removes a markdown code fence wrapped around a model response.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// repairJSON fixes two defects small models commonly produce: keys missing
// their opening quote (`, type":`) and trailing commas before a closing
// bracket. Text inside string literals is left alone.
func repairJSON(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)

	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]

		if inString {
			b.WriteByte(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
			b.WriteByte(ch)
		case ',':
			rest := strings.TrimLeftFunc(s[i+1:], unicode.IsSpace)
			if strings.HasPrefix(rest, "}") || strings.HasPrefix(rest, "]") {
				continue
			}
			b.WriteByte(ch)
			i = quoteBareKey(&b, s, i+1) - 1
		case '{':
			b.WriteByte(ch)
			i = quoteBareKey(&b, s, i+1) - 1
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// quoteBareKey copies whitespace starting at pos and, when it is followed by a
// bare identifier and `":`, writes the missing opening quote. It returns the
// position to continue scanning from.
func quoteBareKey(b *strings.Builder, s string, pos int) int {
	for pos < len(s) && isSpace(s[pos]) {
		b.WriteByte(s[pos])
		pos++
	}
	end := pos
	for end < len(s) && (isLetter(s[end]) || s[end] == '_') {
		end++
	}
	if end > pos && end+1 < len(s) && s[end] == '"' && s[end+1] == ':' {
		b.WriteByte('"')
		b.WriteString(s[pos:end])
		b.WriteByte('"')
		return end + 1
	}
	return pos
}

// truncateText cuts s to at most limit runes without splitting a rune.
func truncateText(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\r'
}

// isLetter returns true if the byte is an ASCII letter.
func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
