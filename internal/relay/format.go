// Package relay shapes generated text for delivery to Telegram.
package relay

import (
	"regexp"
	"strings"
)

// MaxMessageLen is the Telegram sendMessage text limit.
const MaxMessageLen = 4096

// Compiled regexes for ToTelegram compiled once at startup.
var (
	reCode       = regexp.MustCompile("(?s)```.*?```|`[^`\n]*`")
	reBold       = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reUnderBold  = regexp.MustCompile(`__(.+?)__`)
	reItalic     = regexp.MustCompile(`\*([^\s*](?:[^*\n]*[^\s*])?)\*`)
	reStrike     = regexp.MustCompile(`~~(.+?)~~`)
	reHeading    = regexp.MustCompile("(?m)^#{1,6} +(.+)$")
	reBlockquote = regexp.MustCompile("(?m)^> ?")
)

// ToTelegram converts GitHub-flavoured Markdown, as produced by chat models,
// into Telegram's legacy Markdown parse mode. Code spans and fenced blocks use
// the same syntax in both and pass through untouched.
func ToTelegram(text string) string {
	var b strings.Builder
	last := 0
	for _, loc := range reCode.FindAllStringIndex(text, -1) {
		b.WriteString(convertInline(text[last:loc[0]]))
		b.WriteString(text[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(convertInline(text[last:]))
	return b.String()
}

// convertInline rewrites emphasis outside code. Italic needs non-space
// characters right inside the asterisks so "2 * 3 * 4" stays arithmetic.
func convertInline(text string) string {
	const boldMarker = "\x01"

	result := reBold.ReplaceAllString(text, boldMarker+"${1}"+boldMarker)
	result = reUnderBold.ReplaceAllString(result, boldMarker+"${1}"+boldMarker)
	result = reItalic.ReplaceAllString(result, "_${1}_")
	result = strings.ReplaceAll(result, boldMarker, "*")
	// Legacy Markdown has no strikethrough.
	result = reStrike.ReplaceAllString(result, "${1}")
	result = reHeading.ReplaceAllString(result, "*${1}*")
	result = reBlockquote.ReplaceAllString(result, "")

	return result
}
