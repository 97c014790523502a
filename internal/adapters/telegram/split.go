package telegram

import "strings"

// MessageLimit ограничивает длину текста сообщения в символах.
const MessageLimit = 4096

// Split режет текст на части не длиннее limit символов.
// Разрез делается по переводу строки, если он есть в части.
func Split(text string, limit int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	runes := []rune(trimmed)
	if limit <= 0 || len(runes) <= limit {
		return []string{trimmed}
	}

	var parts []string
	for start := 0; start < len(runes); {
		end := start + limit
		if end >= len(runes) {
			if chunk := strings.Trim(string(runes[start:]), "\n"); chunk != "" {
				parts = append(parts, chunk)
			}
			break
		}
		cut := end
		for i := end; i > start; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		if chunk := strings.Trim(string(runes[start:cut]), "\n"); chunk != "" {
			parts = append(parts, chunk)
		}
		start = cut
		for start < len(runes) && runes[start] == '\n' {
			start++
		}
	}
	if len(parts) == 0 {
		return []string{trimmed}
	}
	return parts
}

// Clip оставляет первую часть текста. Сообщение с клавиатурой нельзя разбить.
func Clip(text string, limit int) string {
	parts := Split(text, limit)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}
