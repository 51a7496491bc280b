package ingest

import (
	"strings"
	"unicode"
)

// Normalize converts CRLF and CR line endings to LF and drops control
// characters other than newline and tab, so the splitter sees clean
// paragraph and line separators.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
}
