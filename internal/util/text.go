package util

import (
	"regexp"
	"strings"
)

var trailingSpace = regexp.MustCompile(`[ \t]+\n`)

// CleanText normalizes line endings, strips trailing per-line whitespace,
// and trims the result. Newlines inside the text are preserved.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = trailingSpace.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}
