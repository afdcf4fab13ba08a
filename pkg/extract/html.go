package extract

import (
	"regexp"
	"strings"
)

var (
	styleBlockRegex   = regexp.MustCompile(`(?is)<style[^>]*>.*?</style\s*>`)
	scriptBlockRegex  = regexp.MustCompile(`(?is)<script[^>]*>.*?</script\s*>`)
	paragraphEndRegex = regexp.MustCompile(`(?i)</p\s*>`)
	lineBreakRegex    = regexp.MustCompile(`(?i)<br\s*/?>`)
	htmlTagRegex      = regexp.MustCompile(`<[^>]+>`)
	newlineRunRegex   = regexp.MustCompile(`[ \t\f\v]*\n\s*`)

	entityReplacer = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
	)
)

// SanitizeHTML converts an HTML body to plain text. Style and script blocks
// are dropped with their content, paragraph ends and line breaks become
// newlines, remaining tags are removed and only the four basic entities are
// unescaped.
func SanitizeHTML(html string) string {
	text := styleBlockRegex.ReplaceAllString(html, "")
	text = scriptBlockRegex.ReplaceAllString(text, "")
	text = paragraphEndRegex.ReplaceAllString(text, "\n")
	text = lineBreakRegex.ReplaceAllString(text, "\n")
	text = htmlTagRegex.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "\r", "")
	text = newlineRunRegex.ReplaceAllString(text, "\n")
	// Unescape last so that "&lt;b&gt;" survives as literal text
	text = entityReplacer.Replace(text)
	return strings.TrimSpace(text)
}
