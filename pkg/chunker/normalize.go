package chunker

import (
	"regexp"
	"strings"
)

var paragraphBreaks = regexp.MustCompile(`\n{3,}`)

// Normalize collapses paragraph breaks to a double newline, then collapses every
// remaining whitespace run to a single space and trims the result.
func Normalize(text string) string {
	text = paragraphBreaks.ReplaceAllString(text, "\n\n")
	return strings.Join(strings.Fields(text), " ")
}
