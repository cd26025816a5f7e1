package edits

import "strings"

// MaxCompareLength is the number of leading characters compared and displayed
// for an edited message.
const MaxCompareLength = 400

// NoTextPlaceholder replaces empty text in rendered notifications.
const NoTextPlaceholder = "(No text)"

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// EscapeHTML escapes text for Telegram's HTML parse mode.
func EscapeHTML(text string) string {
	if text == "" {
		return NoTextPlaceholder
	}
	return htmlEscaper.Replace(text)
}

// Truncate returns at most n leading characters of text, counted in runes.
func Truncate(text string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range text {
		if count == n {
			return text[:i]
		}
		count++
	}
	return text
}
