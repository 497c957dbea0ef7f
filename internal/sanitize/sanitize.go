// Package sanitize normalizes raw SQL text before a structural parse is
// attempted. The original text is kept separately by callers; sanitized output
// is only ever fed to the parser, never to the text rewriter.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	controlChars    = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	trailingComma   = regexp.MustCompile(`(?i),\s*(FROM|WHERE|GROUP\s+BY|ORDER\s+BY|LIMIT|HAVING|UNION)`)
	commaCloseParen = regexp.MustCompile(`,\s*\)`)
	trailingSpace   = regexp.MustCompile(`(?m)[ \t]+$`)
	interiorSpaces  = regexp.MustCompile(`(\S)[ \t]{2,}`)
	leadingSpaces   = regexp.MustCompile(`(?m)^[ \t]+`)
)

// Sanitize cleans up common copy-paste artifacts that defeat the parser:
// unprintable characters, CRLF line endings, trailing commas before clause
// keywords or closing parentheses, and runaway whitespace. It never fails and
// returns an empty string for empty input.
func Sanitize(sql string) string {
	if sql == "" {
		return ""
	}

	result := controlChars.ReplaceAllString(sql, "")
	result = strings.ReplaceAll(result, "\r\n", "\n")
	result = strings.ReplaceAll(result, "\r", "\n")

	// A comma directly before FROM/WHERE/... is almost always a leftover from
	// editing the select list in a spreadsheet cell.
	result = trailingComma.ReplaceAllString(result, "\n$1")
	result = commaCloseParen.ReplaceAllString(result, ")")

	result = leadingSpaces.ReplaceAllString(result, "    ")
	result = interiorSpaces.ReplaceAllString(result, "$1 ")
	result = trailingSpace.ReplaceAllString(result, "")

	return strings.TrimSpace(result)
}
