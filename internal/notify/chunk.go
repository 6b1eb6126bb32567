package notify

import (
	"strings"
	"unicode/utf8"
)

const (
	// CaptionLimit ограничивает длину подписи к фото.
	CaptionLimit = 1024
	// MessageLimit ограничивает длину отдельного сообщения.
	MessageLimit = 4096
)

// SplitChunks делит текст на части не длиннее limit символов, разрывая
// только по границам строк. strings.Join(chunks, "\n") восстанавливает
// исходный текст. Строка длиннее limit режется по символам вне сущностей
// и тегов; Compose таких строк не порождает.
func SplitChunks(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0
	started := false
	flush := func() {
		if started {
			chunks = append(chunks, current.String())
		}
		current.Reset()
		currentLen = 0
		started = false
	}

	for _, line := range strings.Split(text, "\n") {
		lineLen := utf8.RuneCountInString(line)
		if lineLen > limit {
			flush()
			chunks = append(chunks, splitRunes(line, limit)...)
			continue
		}
		if started && currentLen+1+lineLen > limit {
			flush()
		}
		if started {
			current.WriteByte('\n')
			currentLen++
		}
		current.WriteString(line)
		currentLen += lineLen
		started = true
	}
	flush()
	return chunks
}

// splitRunes режет строку длиннее limit. Разрез не попадает внутрь
// HTML-сущности &...; или тега <...>, если до него есть безопасная позиция.
func splitRunes(line string, limit int) []string {
	runes := []rune(line)
	parts := make([]string, 0, len(runes)/limit+1)
	start, safe := 0, 0
	inEntity, inTag := false, false
	for i := 0; i < len(runes); i++ {
		if !inEntity && !inTag {
			safe = i
		}
		if i-start == limit {
			cut := i
			if safe > start && safe < i {
				cut = safe
			}
			parts = append(parts, string(runes[start:cut]))
			start = cut
			i = cut
			inEntity, inTag = false, false
			safe = cut
		}
		r := runes[i]
		switch {
		case inTag:
			inTag = r != '>'
		case inEntity && (r == '#' || isAlnum(r)):
		case inEntity && r == ';':
			inEntity = false
		case r == '&':
			inEntity = true
		case r == '<':
			inEntity, inTag = false, true
		default:
			inEntity = false
		}
	}
	if start < len(runes) {
		parts = append(parts, string(runes[start:]))
	}
	return parts
}

func isAlnum(r rune) bool {
	return r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
}

// splitCaption отделяет первую часть текста под подпись, остаток
// отправляется отдельными сообщениями.
func splitCaption(text string) (string, string) {
	chunks := SplitChunks(text, CaptionLimit)
	if len(chunks) == 1 {
		return chunks[0], ""
	}
	return chunks[0], strings.Join(chunks[1:], "\n")
}
